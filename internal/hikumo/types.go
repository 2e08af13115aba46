package hikumo

// ClimateDeviceType is the setup "type" tag of air-to-air heat pumps.
const ClimateDeviceType = 1

// SetupData is the document returned by GET {api_url}/setup.
//
// A zero SetupData means "nothing learned this cycle".
type SetupData struct {
	Gateways []Gateway   `json:"gateways"`
	Devices  []RawDevice `json:"devices"`
}

// Complete reports whether both the gateway and device lists were present.
func (s SetupData) Complete() bool {
	return s.Gateways != nil && s.Devices != nil
}

// Gateway is a vendor network bridge. Devices behind a dead gateway are offline.
type Gateway struct {
	GatewayID string `json:"gatewayId"`
	Alive     bool   `json:"alive"`
}

// RawDevice is one entry of the setup device list.
type RawDevice struct {
	OID        string     `json:"oid"`
	Type       int        `json:"type"`
	Label      string     `json:"label"`
	DeviceURL  string     `json:"deviceURL"`
	Definition Definition `json:"definition"`
	States     []RawState `json:"states"`
}

// Definition lists the states a device advertises along with their valid values.
type Definition struct {
	States []RawDefinition `json:"states"`
}

// RawDefinition is one advertised state and its selectable values.
// Values are left untyped; non-string entries are ignored by consumers.
type RawDefinition struct {
	QualifiedName string `json:"qualifiedName"`
	Values        []any  `json:"values"`
}

// RawState is one live state reading. Value is a string or a number on the wire.
type RawState struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ApplyRequest is the body of POST {api_url}/exec/apply.
type ApplyRequest struct {
	Actions []Action `json:"actions"`
	Label   string   `json:"label"`
}

// Action targets one device.
type Action struct {
	Commands  []Command `json:"commands"`
	DeviceURL string    `json:"deviceURL"`
}

// Command is a named vendor command with positional parameters.
type Command struct {
	Name       string `json:"name"`
	Parameters []any  `json:"parameters"`
}
