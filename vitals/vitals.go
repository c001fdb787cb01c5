// Package vitals defines the normalized vital-signs data model and the
// decoding rules that turn raw wearable characteristic payloads into typed
// readings.
package vitals

import "time"

// Channel identifies one logical telemetry channel of the wearable.
type Channel int

const (
	ChannelHeartRate Channel = iota
	ChannelSpO2
	ChannelTemperature
	ChannelBattery
)

func (c Channel) String() string {
	switch c {
	case ChannelHeartRate:
		return "heart_rate"
	case ChannelSpO2:
		return "spo2"
	case ChannelTemperature:
		return "temperature"
	case ChannelBattery:
		return "battery"
	default:
		return "unknown"
	}
}

// Provenance tags where an aggregate's data came from.
type Provenance string

const (
	SourceDevice    Provenance = "device"
	SourceSynthetic Provenance = "synthetic"
)

// Reading is a single decoded scalar from one channel. Ephemeral; it is
// folded into the VitalSigns aggregate immediately after decoding.
type Reading struct {
	Channel Channel
	Value   float64
	Time    time.Time
}

// VitalSigns is the merged most-recent-per-channel snapshot. Every field is
// independently optional: nil means no reading has arrived on that channel
// yet. The aggregate is republished whole on any channel update, carrying
// forward the previous values of the other channels, and is never reset on
// disconnect; consumers detect staleness via Timestamp.
type VitalSigns struct {
	HeartRate    *int     `json:"heart_rate,omitempty" yaml:"heart_rate,omitempty"`
	SpO2         *int     `json:"spo2,omitempty" yaml:"spo2,omitempty"`
	TemperatureC *float64 `json:"temperature_c,omitempty" yaml:"temperature_c,omitempty"`
	BatteryPct   *int     `json:"battery_pct,omitempty" yaml:"battery_pct,omitempty"`

	// Blood pressure and glucose come from non-BLE sources (manual entry,
	// cuff sync) and are only ever set through the aggregator's synthetic
	// path.
	SystolicBP  *int     `json:"systolic_bp,omitempty" yaml:"systolic_bp,omitempty"`
	DiastolicBP *int     `json:"diastolic_bp,omitempty" yaml:"diastolic_bp,omitempty"`
	GlucoseMgdL *float64 `json:"glucose_mgdl,omitempty" yaml:"glucose_mgdl,omitempty"`

	// Timestamp of the most recent contributing reading.
	Timestamp time.Time  `json:"timestamp" yaml:"timestamp"`
	Source    Provenance `json:"source,omitempty" yaml:"source,omitempty"`
}

// Clone returns a deep copy so published snapshots cannot alias the
// aggregator's internal state.
func (v VitalSigns) Clone() VitalSigns {
	out := v
	out.HeartRate = cloneInt(v.HeartRate)
	out.SpO2 = cloneInt(v.SpO2)
	out.TemperatureC = cloneFloat(v.TemperatureC)
	out.BatteryPct = cloneInt(v.BatteryPct)
	out.SystolicBP = cloneInt(v.SystolicBP)
	out.DiastolicBP = cloneInt(v.DiastolicBP)
	out.GlucoseMgdL = cloneFloat(v.GlucoseMgdL)
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
