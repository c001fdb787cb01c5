package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/materna-health/wearlink/vitals"
	"github.com/materna-health/wearlink/wearable"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"permission denied",
			&wearable.LinkError{Kind: wearable.FailurePermissionDenied, Msg: "not root"},
			"Grant Bluetooth permissions",
		},
		{
			"radio unavailable",
			&wearable.LinkError{Kind: wearable.FailureRadioUnavailable, Msg: "radio is off"},
			"Turn on Bluetooth",
		},
		{
			"command rejected",
			&wearable.LinkError{Kind: wearable.FailureCommandRejected, Msg: "not connected"},
			"Connect to the wearable",
		},
		{
			"wrapped link error",
			fmt.Errorf("monitor: %w", &wearable.LinkError{Kind: wearable.FailureConnectFailed}),
			"retry the scan",
		},
		{
			"plain error passes through",
			errors.New("something else"),
			"something else",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, FormatUserError(tt.err), tt.want)
		})
	}
}

func TestFormatVitals(t *testing.T) {
	restore := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = restore }()

	t.Run("empty aggregate", func(t *testing.T) {
		line := formatVitals(vitals.VitalSigns{})
		assert.Contains(t, line, "HR --")
		assert.Contains(t, line, "SpO2 --")
		assert.Contains(t, line, "temp --")
		assert.NotContains(t, line, "BP")
	})

	t.Run("full aggregate", func(t *testing.T) {
		hr, spo2, batt := 72, 97, 81
		temp := 36.87
		sys, dia := 120, 80
		glucose := 92.5
		line := formatVitals(vitals.VitalSigns{
			HeartRate:    &hr,
			SpO2:         &spo2,
			TemperatureC: &temp,
			BatteryPct:   &batt,
			SystolicBP:   &sys,
			DiastolicBP:  &dia,
			GlucoseMgdL:  &glucose,
		})
		assert.Contains(t, line, "HR 72 bpm")
		assert.Contains(t, line, "SpO2 97%")
		assert.Contains(t, line, "36.87°C")
		assert.Contains(t, line, "batt 81%")
		assert.Contains(t, line, "BP 120/80")
		assert.Contains(t, line, "glucose 92.5 mg/dL")
	})
}
