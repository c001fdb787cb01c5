package main

import (
	"errors"
	"fmt"

	"github.com/materna-health/wearlink/wearable"
)

// FormatUserError translates pipeline errors into actionable messages for the
// terminal, pointing at the remedy instead of the internals.
func FormatUserError(err error) string {
	var lerr *wearable.LinkError
	if errors.As(err, &lerr) {
		switch lerr.Kind {
		case wearable.FailurePermissionDenied:
			return fmt.Sprintf("%v\nGrant Bluetooth permissions in your system settings and try again.", err)
		case wearable.FailureRadioUnavailable:
			return fmt.Sprintf("%v\nTurn on Bluetooth and try again.", err)
		case wearable.FailureScanTimeout:
			return fmt.Sprintf("%v\nMake sure the wearable is powered on and in range, then re-scan.", err)
		case wearable.FailureConnectFailed:
			return fmt.Sprintf("%v\nMove closer to the wearable and retry the scan.", err)
		case wearable.FailureCommandRejected:
			return fmt.Sprintf("%v\nConnect to the wearable before sending commands.", err)
		}
	}
	return err.Error()
}
