package models

import "errors"

// FailureReason classifies why a single day failed to export. The set is
// closed; serialized values are stable and must not change.
type FailureReason string

const (
	FailureNoVaultSelected FailureReason = "no_vault_selected"
	FailureAccessDenied    FailureReason = "access_denied"
	FailureNoHealthData    FailureReason = "no_health_data"
	FailureAcquisition     FailureReason = "acquisition_error"
	FailureDeviceLocked    FailureReason = "device_locked"
	FailureWrite           FailureReason = "write_error"
	FailureTaskExpired     FailureReason = "task_expired"
	FailureUnknown         FailureReason = "unknown"
)

// Valid reports whether r is a known reason.
func (r FailureReason) Valid() bool {
	switch r {
	case FailureNoVaultSelected, FailureAccessDenied, FailureNoHealthData,
		FailureAcquisition, FailureDeviceLocked, FailureWrite,
		FailureTaskExpired, FailureUnknown:
		return true
	}
	return false
}

// Label returns a short display name.
func (r FailureReason) Label() string {
	switch r {
	case FailureNoVaultSelected:
		return "No vault selected"
	case FailureAccessDenied:
		return "Vault access denied"
	case FailureNoHealthData:
		return "No health data"
	case FailureAcquisition:
		return "Couldn't read health data"
	case FailureDeviceLocked:
		return "Device locked"
	case FailureWrite:
		return "Couldn't write file"
	case FailureTaskExpired:
		return "Ran out of time"
	default:
		return "Unknown error"
	}
}

// Description returns a detailed user-facing explanation.
func (r FailureReason) Description() string {
	switch r {
	case FailureNoVaultSelected:
		return "No destination vault is configured. Choose a vault folder before exporting."
	case FailureAccessDenied:
		return "The vault folder exists but could not be opened for writing. Check its permissions or pick it again."
	case FailureNoHealthData:
		return "The device returned no health data for this day. Nothing was written."
	case FailureAcquisition:
		return "Reading health data from the device failed. The raw error is attached to the failed day."
	case FailureDeviceLocked:
		return "Health data is unavailable while the device is locked. Unlock the device and retry."
	case FailureWrite:
		return "The day's data was read but writing the file into the vault failed."
	case FailureTaskExpired:
		return "The background time budget ran out before this day could be exported. It will be retried on the next run."
	default:
		return "The export failed for an unrecognized reason. The raw error is attached to the failed day."
	}
}

// IsRetryable reports whether retrying the same day can plausibly succeed
// without the user changing configuration.
func (r FailureReason) IsRetryable() bool {
	switch r {
	case FailureNoVaultSelected, FailureAccessDenied:
		return false
	default:
		return true
	}
}

// ClassifyFetchError maps an acquisition failure to a reason. A timed-out
// request classifies as an acquisition failure; FailureTaskExpired is
// reserved for the run budget and assigned by the export engine.
func ClassifyFetchError(err error) FailureReason {
	switch {
	case errors.Is(err, ErrDeviceLocked):
		return FailureDeviceLocked
	case errors.Is(err, ErrNoHealthData):
		return FailureNoHealthData
	case err == nil:
		return FailureUnknown
	default:
		return FailureAcquisition
	}
}

// ClassifyWriteError maps a vault write failure to a reason.
func ClassifyWriteError(err error) FailureReason {
	switch {
	case errors.Is(err, ErrVaultAccess):
		return FailureAccessDenied
	case errors.Is(err, ErrNoVaultSelected):
		return FailureNoVaultSelected
	case err == nil:
		return FailureUnknown
	default:
		return FailureWrite
	}
}
