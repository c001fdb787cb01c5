package wearable_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/materna-health/wearlink/vitals"
	"github.com/materna-health/wearlink/wearable"
)

func TestAggregatorCarryForward(t *testing.T) {
	agg := wearable.NewAggregator()
	t0 := time.Now()

	snap := agg.Apply(vitals.Reading{Channel: vitals.ChannelHeartRate, Value: 72, Time: t0})
	require.NotNil(t, snap.HeartRate)
	assert.Equal(t, 72, *snap.HeartRate)
	assert.Nil(t, snap.SpO2)
	assert.Equal(t, t0, snap.Timestamp)
	assert.Equal(t, vitals.SourceDevice, snap.Source)

	t1 := t0.Add(time.Second)
	snap = agg.Apply(vitals.Reading{Channel: vitals.ChannelSpO2, Value: 98, Time: t1})
	require.NotNil(t, snap.SpO2)
	assert.Equal(t, 98, *snap.SpO2)
	require.NotNil(t, snap.HeartRate, "earlier channel must carry forward")
	assert.Equal(t, 72, *snap.HeartRate)
	assert.Equal(t, t1, snap.Timestamp, "timestamp follows the newest reading")

	snap = agg.Apply(vitals.Reading{Channel: vitals.ChannelTemperature, Value: 36.87, Time: t1})
	require.NotNil(t, snap.TemperatureC)
	assert.InDelta(t, 36.87, *snap.TemperatureC, 0.001)

	snap = agg.Apply(vitals.Reading{Channel: vitals.ChannelBattery, Value: 81, Time: t1})
	require.NotNil(t, snap.BatteryPct)
	assert.Equal(t, 81, *snap.BatteryPct)
}

func TestAggregatorSnapshotsAreIndependent(t *testing.T) {
	agg := wearable.NewAggregator()

	first := agg.Apply(vitals.Reading{Channel: vitals.ChannelHeartRate, Value: 60, Time: time.Now()})
	second := agg.Apply(vitals.Reading{Channel: vitals.ChannelHeartRate, Value: 90, Time: time.Now()})

	require.NotNil(t, first.HeartRate)
	assert.Equal(t, 60, *first.HeartRate, "published snapshot must not alias aggregator state")
	assert.Equal(t, 90, *second.HeartRate)
}

func TestAggregatorSyntheticSources(t *testing.T) {
	agg := wearable.NewAggregator()
	now := time.Now()

	agg.Apply(vitals.Reading{Channel: vitals.ChannelHeartRate, Value: 75, Time: now})

	snap := agg.SetBloodPressure(120, 80, now)
	require.NotNil(t, snap.SystolicBP)
	assert.Equal(t, 120, *snap.SystolicBP)
	require.NotNil(t, snap.DiastolicBP)
	assert.Equal(t, 80, *snap.DiastolicBP)
	assert.Equal(t, vitals.SourceSynthetic, snap.Source)
	require.NotNil(t, snap.HeartRate, "device readings coexist with synthetic ones")

	snap = agg.SetGlucose(95.2, now)
	require.NotNil(t, snap.GlucoseMgdL)
	assert.InDelta(t, 95.2, *snap.GlucoseMgdL, 0.001)

	// The next device reading flips the source back.
	snap = agg.Apply(vitals.Reading{Channel: vitals.ChannelSpO2, Value: 97, Time: now})
	assert.Equal(t, vitals.SourceDevice, snap.Source)
	require.NotNil(t, snap.GlucoseMgdL, "synthetic values carry forward too")
}

func TestAggregatorLatest(t *testing.T) {
	agg := wearable.NewAggregator()

	empty := agg.Latest()
	assert.Nil(t, empty.HeartRate)
	assert.True(t, empty.Timestamp.IsZero())

	agg.Apply(vitals.Reading{Channel: vitals.ChannelHeartRate, Value: 64, Time: time.Now()})
	latest := agg.Latest()
	require.NotNil(t, latest.HeartRate)
	assert.Equal(t, 64, *latest.HeartRate)
}
