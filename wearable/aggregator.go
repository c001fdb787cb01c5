package wearable

import (
	"sync"
	"time"

	"github.com/materna-health/wearlink/vitals"
)

// Aggregator merges per-channel readings into the latest VitalSigns
// snapshot. It is the sole writer to the aggregate; everything else observes
// published copies. The aggregate is never reset on disconnect; staleness
// is the consumer's call, via the timestamp.
type Aggregator struct {
	mu      sync.RWMutex
	current vitals.VitalSigns
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Apply folds one device reading into the aggregate and returns the full
// updated snapshot, stamped with the reading's timestamp.
func (a *Aggregator) Apply(r vitals.Reading) vitals.VitalSigns {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch r.Channel {
	case vitals.ChannelHeartRate:
		v := int(r.Value)
		a.current.HeartRate = &v
	case vitals.ChannelSpO2:
		v := int(r.Value)
		a.current.SpO2 = &v
	case vitals.ChannelTemperature:
		v := r.Value
		a.current.TemperatureC = &v
	case vitals.ChannelBattery:
		v := int(r.Value)
		a.current.BatteryPct = &v
	}
	a.current.Timestamp = r.Time
	a.current.Source = vitals.SourceDevice

	return a.current.Clone()
}

// SetBloodPressure records a blood-pressure pair from a non-BLE source and
// returns the updated snapshot.
func (a *Aggregator) SetBloodPressure(systolic, diastolic int, at time.Time) vitals.VitalSigns {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.current.SystolicBP = &systolic
	a.current.DiastolicBP = &diastolic
	a.current.Timestamp = at
	a.current.Source = vitals.SourceSynthetic

	return a.current.Clone()
}

// SetGlucose records a glucose value from a non-BLE source and returns the
// updated snapshot.
func (a *Aggregator) SetGlucose(mgdl float64, at time.Time) vitals.VitalSigns {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.current.GlucoseMgdL = &mgdl
	a.current.Timestamp = at
	a.current.Source = vitals.SourceSynthetic

	return a.current.Clone()
}

// Latest returns a copy of the current aggregate.
func (a *Aggregator) Latest() vitals.VitalSigns {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current.Clone()
}
