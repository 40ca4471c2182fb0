package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeNotPaired  = "NOT_PAIRED"
	ErrCodeVault      = "VAULT_ERROR"
	ErrCodeAcquire    = "ACQUIRE_ERROR"
	ErrCodeDecryption = "DECRYPTION_ERROR"
	ErrCodeNetwork    = "NETWORK_ERROR"
	ErrCodeStorage    = "STORAGE_ERROR"
	ErrCodeState      = "STATE_ERROR"
	ErrCodeConfig     = "CONFIG_ERROR"
	ErrCodeRateLimit  = "RATE_LIMIT"
	ErrCodeServer     = "SERVER_ERROR"
)

// Sentinel errors
var (
	ErrNotPaired        = errors.New("device not paired")
	ErrNoVaultSelected  = errors.New("no vault selected")
	ErrVaultAccess      = errors.New("vault access denied")
	ErrNoHealthData     = errors.New("no health data for date")
	ErrDeviceLocked     = errors.New("device locked")
	ErrExportInProgress = errors.New("export already in progress")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrRateLimited      = errors.New("rate limited")
	ErrConnectionLost   = errors.New("connection lost")
)

// APIError represents an error from the device's health endpoint.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// AcquireError wraps a per-date acquisition failure.
type AcquireError struct {
	Date   string
	Metric string
	Err    error
}

func (e *AcquireError) Error() string {
	if e.Metric != "" {
		return fmt.Sprintf("acquire %s [%s]: %v", e.Date, e.Metric, e.Err)
	}
	return fmt.Sprintf("acquire %s: %v", e.Date, e.Err)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}

// WriteFailedError wraps a per-date vault write failure.
type WriteFailedError struct {
	Path string
	Err  error
}

func (e *WriteFailedError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("write %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("write: %v", e.Err)
}

func (e *WriteFailedError) Unwrap() error {
	return e.Err
}

// DecryptError represents a payload decryption failure.
type DecryptError struct {
	Date   string
	Reason string
	Err    error
}

func (e *DecryptError) Error() string {
	if e.Date != "" {
		return fmt.Sprintf("decrypt %s: %s: %v", e.Date, e.Reason, e.Err)
	}
	return fmt.Sprintf("decrypt: %s: %v", e.Reason, e.Err)
}

func (e *DecryptError) Unwrap() error {
	return e.Err
}
