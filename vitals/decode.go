package vitals

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Heart rate measurement flags field, per the Bluetooth heart-rate service
// wire format: bit 0 selects 8-bit vs 16-bit value width.
const hrFormat16Bit = 0x01

// temperatureScale converts the raw little-endian integer (hundredths of a
// degree) into degrees Celsius.
const temperatureScale = 100.0

// DecodeError reports a malformed or truncated characteristic payload.
// Decode failures are non-fatal: the caller logs them and keeps the previous
// aggregate value for the channel.
type DecodeError struct {
	Channel Channel
	Reason  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s payload: %s", e.Channel, e.Reason)
}

// Is allows errors.Is comparison by channel.
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	if !ok {
		return false
	}
	return e.Channel == t.Channel
}

// Decode converts a raw characteristic payload into a typed reading,
// applying the fixed per-channel wire format.
func Decode(ch Channel, payload []byte, at time.Time) (Reading, error) {
	var (
		value float64
		err   error
	)

	switch ch {
	case ChannelHeartRate:
		value, err = decodeHeartRate(payload)
	case ChannelSpO2:
		value, err = decodeByte(ChannelSpO2, payload)
	case ChannelTemperature:
		value, err = decodeTemperature(payload)
	case ChannelBattery:
		value, err = decodeByte(ChannelBattery, payload)
	default:
		err = &DecodeError{Channel: ch, Reason: "no decoding rule for channel"}
	}
	if err != nil {
		return Reading{}, err
	}

	return Reading{Channel: ch, Value: value, Time: at}, nil
}

// decodeHeartRate parses the standard heart-rate measurement format: a flags
// byte followed by an 8-bit or 16-bit little-endian value, selected by the
// format bit.
func decodeHeartRate(payload []byte) (float64, error) {
	if len(payload) < 2 {
		return 0, &DecodeError{Channel: ChannelHeartRate, Reason: fmt.Sprintf("payload too short (%d bytes)", len(payload))}
	}

	flags := payload[0]
	if flags&hrFormat16Bit != 0 {
		if len(payload) < 3 {
			return 0, &DecodeError{Channel: ChannelHeartRate, Reason: "16-bit format flag set but value truncated"}
		}
		return float64(binary.LittleEndian.Uint16(payload[1:3])), nil
	}
	return float64(payload[1]), nil
}

// decodeByte parses single-byte direct-percentage channels (SpO2, battery).
func decodeByte(ch Channel, payload []byte) (float64, error) {
	if len(payload) != 1 {
		return 0, &DecodeError{Channel: ch, Reason: fmt.Sprintf("expected 1 byte, got %d", len(payload))}
	}
	return float64(payload[0]), nil
}

// decodeTemperature parses two bytes little-endian in hundredths of a degree.
func decodeTemperature(payload []byte) (float64, error) {
	if len(payload) != 2 {
		return 0, &DecodeError{Channel: ChannelTemperature, Reason: fmt.Sprintf("expected 2 bytes, got %d", len(payload))}
	}
	raw := binary.LittleEndian.Uint16(payload)
	return float64(raw) / temperatureScale, nil
}
