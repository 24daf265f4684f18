package mijia

import "strings"

// Device type constants derived from model strings. Alert rules and
// per-type poll intervals are keyed on these.
const (
	TypeSensor         = "sensor"
	TypeLight          = "light"
	TypeAirConditioner = "airconditioner"
	TypePlug           = "plug"
	TypeVacuum         = "vacuum"
	TypeDefault        = "default"
)

// typePatterns is evaluated in order; the first matching substring
// wins. The order and substrings are a behavioral contract: rule
// matching and interval defaults both key on the result.
var typePatterns = []struct {
	deviceType string
	substrings []string
}{
	{TypeSensor, []string{"sensor", "miaomiaoce"}},
	{TypeLight, []string{"light", "yeelink"}},
	{TypeAirConditioner, []string{"aircondition", "acpartner"}},
	{TypePlug, []string{"plug", "chuangmi"}},
	{TypeVacuum, []string{"vacuum", "roborock"}},
}

// DeviceType classifies a device by its model string. Matching is
// case-insensitive, first match in fixed order; unmatched models
// classify as TypeDefault.
func DeviceType(model string) string {
	lower := strings.ToLower(model)
	for _, p := range typePatterns {
		for _, s := range p.substrings {
			if strings.Contains(lower, s) {
				return p.deviceType
			}
		}
	}
	return TypeDefault
}
