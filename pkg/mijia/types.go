package mijia

// DeviceInfo is the cloud's view of a device, as returned by the
// device-listing endpoint. It is treated as an immutable snapshot:
// the monitor hands copies to workers rather than sharing pointers.
type DeviceInfo struct {
	DID      string `json:"did"`      // Stable unique device identifier
	Name     string `json:"name"`     // User-assigned name
	Model    string `json:"model"`    // Vendor model string, e.g. "yeelink.light.color2"
	RoomName string `json:"roomName"` // Room the device is assigned to
	HomeID   string `json:"homeId"`   // Home the device belongs to
	Type     string `json:"type"`     // Cloud-reported category
	Online   bool   `json:"online"`   // Cloud-reported reachability
}

// DeviceSpec describes the properties a device model exposes.
type DeviceSpec struct {
	Properties []SpecProperty `json:"properties"`
}

// SpecProperty is a single property definition from a device spec.
// RW is a capability string containing "r" and/or "w".
type SpecProperty struct {
	Name string `json:"name"`
	RW   string `json:"rw"`
	SIID int    `json:"siid"`
	PIID int    `json:"piid"`
}

// Readable reports whether the property can be read.
func (p SpecProperty) Readable() bool {
	for _, c := range p.RW {
		if c == 'r' {
			return true
		}
	}
	return false
}

// PropRequest addresses one property on one device.
type PropRequest struct {
	DID  string `json:"did"`
	SIID int    `json:"siid"`
	PIID int    `json:"piid"`
}

// PropResult is the outcome of a single property read.
// Code 0 means success; any other code is a device-side failure.
type PropResult struct {
	Code  int `json:"code"`
	Value any `json:"value"`
}

// OK reports whether the read succeeded.
func (r PropResult) OK() bool {
	return r.Code == 0
}
