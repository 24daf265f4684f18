package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/viper"
)

// AlertRule is a single threshold rule from the alerts.rules config
// section. Rules are evaluated in file order against a device's
// freshly collected properties.
type AlertRule struct {
	Name       string  `mapstructure:"name" json:"name"`
	DeviceType string  `mapstructure:"device_type" json:"device_type"`
	Property   string  `mapstructure:"property" json:"property"`
	Condition  string  `mapstructure:"condition" json:"condition"`
	Threshold  float64 `mapstructure:"threshold" json:"threshold"`
	Enabled    *bool   `mapstructure:"enabled" json:"enabled,omitempty"`
}

// IsEnabled reports whether the rule is active. A rule without an
// explicit enabled flag is active.
func (r AlertRule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// ruleSchema validates the alerts.rules section. A malformed rule list
// fails configuration load rather than being silently skipped at poll
// time.
const ruleSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["name", "device_type", "property", "condition", "threshold"],
		"properties": {
			"name":        {"type": "string", "minLength": 1},
			"device_type": {"type": "string", "minLength": 1},
			"property":    {"type": "string", "minLength": 1},
			"condition":   {"enum": [">", "<", "==", ">=", "<="]},
			"threshold":   {"type": "number"},
			"enabled":     {"type": "boolean"}
		},
		"additionalProperties": false
	}
}`

func loadRules(v *viper.Viper) ([]AlertRule, error) {
	raw := v.Get("alerts.rules")
	if raw == nil {
		return nil, nil
	}

	// Round-trip through JSON so the schema sees the same document
	// shape the validator was written for.
	doc, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rules: %w", err)
	}

	if err := validateRules(doc); err != nil {
		return nil, err
	}

	var rules []AlertRule
	if err := json.Unmarshal(doc, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	return rules, nil
}

func validateRules(doc []byte) error {
	schemaMap, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(ruleSchema)))
	if err != nil {
		return fmt.Errorf("failed to unmarshal rule schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("rules.json", schemaMap); err != nil {
		return fmt.Errorf("failed to add resource: %w", err)
	}
	compiled, err := c.Compile("rules.json")
	if err != nil {
		return fmt.Errorf("failed to compile rule schema: %w", err)
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("failed to unmarshal rules: %w", err)
	}

	return compiled.Validate(instance)
}
