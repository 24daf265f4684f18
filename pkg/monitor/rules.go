package monitor

import (
	"strconv"

	"github.com/miwatch/miwatch/pkg/config"
)

// RuleMatch is one triggered rule for one property reading.
type RuleMatch struct {
	Rule     config.AlertRule
	Property string
	Value    float64 // Numeric form used for the comparison
	Raw      any     // Value as read from the device
}

// EvaluateRules matches a device's freshly collected properties
// against the configured rules, in rule order. Disabled rules, rules
// for other device types, rules whose property is absent from this
// poll, and non-numeric values are skipped. No deduplication is
// applied: the same condition triggers again on every satisfying
// poll.
func EvaluateRules(deviceType string, props map[string]any, rules []config.AlertRule) []RuleMatch {
	var matches []RuleMatch
	for _, rule := range rules {
		if !rule.IsEnabled() {
			continue
		}
		if rule.DeviceType != deviceType {
			continue
		}
		raw, ok := props[rule.Property]
		if !ok {
			continue
		}
		value, ok := numericValue(raw)
		if !ok {
			continue
		}

		if compare(value, rule.Condition, rule.Threshold) {
			matches = append(matches, RuleMatch{
				Rule:     rule,
				Property: rule.Property,
				Value:    value,
				Raw:      raw,
			})
		}
	}
	return matches
}

func compare(value float64, condition string, threshold float64) bool {
	switch condition {
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	case "==":
		return value == threshold
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	}
	return false
}

// numericValue coerces a property reading to float64. Booleans map to
// 0/1 and numeric strings are parsed; anything else is not
// comparable.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
