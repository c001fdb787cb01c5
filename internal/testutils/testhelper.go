// Package testutils provides fakes for the platform radio layer and builders
// for assembling wearable device profiles in tests.
package testutils

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug-level logger that writes
// through t.Log, so output only shows up for failing tests.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetOutput(io.Discard)
	logger.AddHook(&testLogHook{t: t})
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

type testLogHook struct {
	t *testing.T
}

func (h *testLogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *testLogHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	h.t.Log(line)
	return nil
}

// CreateVitalsDevice builds a fake wearable exposing the full vitals profile:
// heart rate, SpO2, temperature, battery and the writable command channel.
func CreateVitalsDevice(name, id string) *FakeDeviceBuilder {
	return NewFakeDeviceBuilder().
		WithName(name).
		WithID(id).
		WithRSSI(-60).
		WithNotifyCharacteristic("180d", "2a37").
		WithNotifyCharacteristic("4fafc2011fb5459e8fccc5c9c331914b", "beb5483e36e14688b7f5ea07361b26a8").
		WithNotifyCharacteristic("4fafc2011fb5459e8fccc5c9c331914b", "1c95d5e3d8f7413abf3d7a2e5d7be87e").
		WithNotifyCharacteristic("180f", "2a19").
		WithWriteCharacteristic("4fafc2011fb5459e8fccc5c9c331914b", "6d68efe5b1a54a8fb2649f9b1b4e5f62")
}
