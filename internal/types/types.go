// Package types contains shared type definitions used across the xtherma_bridge packages.
package types

// Reading is one raw value delivered by a transport before scaling.
// Value is the textual raw number, Factor the factor tag ("/10", "*100", "").
type Reading struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Factor string `json:"input_factor,omitempty"`
}

// DeviceDocument is the response body of the cloud API device endpoint.
type DeviceDocument struct {
	SerialNumber string       `json:"serial_number"`
	Settings     []DeviceEntry `json:"settings"`
	Telemetry    []DeviceEntry `json:"telemetry"`
}

// DeviceEntry is a single setting or telemetry value in a DeviceDocument.
// The API sends every value as a string.
type DeviceEntry struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	Value        string `json:"value"`
	Unit         string `json:"unit"`
	Min          string `json:"min,omitempty"`
	Max          string `json:"max,omitempty"`
	Mapping      string `json:"mapping,omitempty"`
	InputFactor  string `json:"input_factor"`
	OutputFactor string `json:"output_factor,omitempty"`
}

// Readings flattens the document into settings followed by telemetry.
func (d *DeviceDocument) Readings() []Reading {
	out := make([]Reading, 0, len(d.Settings)+len(d.Telemetry))
	for _, e := range d.Settings {
		out = append(out, Reading{Key: e.Key, Value: e.Value, Factor: e.InputFactor})
	}
	for _, e := range d.Telemetry {
		out = append(out, Reading{Key: e.Key, Value: e.Value, Factor: e.InputFactor})
	}
	return out
}

// WriteRecord describes one write attempt, as reported to write hooks.
type WriteRecord struct {
	Key     string
	Display float64
	Raw     int
	Err     error
}
