package vitals

import "strings"

// Well-known GATT identities for the wearable's telemetry channels.
// Heart rate and battery use the Bluetooth SIG assigned numbers; SpO2,
// temperature and the command slot live in the wearable's custom vitals
// service. All constants are in normalized form (lowercase, no dashes).
const (
	HeartRateServiceUUID     = "180d"
	HeartRateMeasurementUUID = "2a37"

	BatteryServiceUUID = "180f"
	BatteryLevelUUID   = "2a19"

	VitalsServiceUUID   = "4fafc2011fb5459e8fccc5c9c331914b"
	SpO2CharUUID        = "beb5483e36e14688b7f5ea07361b26a8"
	TemperatureCharUUID = "1c95d5e3d8f7413abf3d7a2e5d7be87e"
	CommandCharUUID     = "6d68efe5b1a54a8fb2649f9b1b4e5f62"
)

// normalize folds a UUID to lowercase without dashes; short SIG UUIDs pass
// through unchanged.
func normalize(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}

// ChannelFor maps a discovered service/characteristic pair to its telemetry
// channel. Reports false for characteristics the decoder has no rule for.
func ChannelFor(serviceUUID, charUUID string) (Channel, bool) {
	switch normalize(serviceUUID) {
	case HeartRateServiceUUID:
		if normalize(charUUID) == HeartRateMeasurementUUID {
			return ChannelHeartRate, true
		}
	case BatteryServiceUUID:
		if normalize(charUUID) == BatteryLevelUUID {
			return ChannelBattery, true
		}
	case VitalsServiceUUID:
		switch normalize(charUUID) {
		case SpO2CharUUID:
			return ChannelSpO2, true
		case TemperatureCharUUID:
			return ChannelTemperature, true
		}
	}
	return 0, false
}

// IsCommandCharacteristic reports whether the pair is the wearable's
// writable command slot.
func IsCommandCharacteristic(serviceUUID, charUUID string) bool {
	return normalize(serviceUUID) == VitalsServiceUUID && normalize(charUUID) == CommandCharUUID
}
