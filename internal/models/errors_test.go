package models_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitalvault/vitalvault/internal/models"
)

func TestAcquireError(t *testing.T) {
	tests := []struct {
		name string
		err  *models.AcquireError
		want string
	}{
		{
			name: "with metric",
			err: &models.AcquireError{
				Date:   "2025-06-01",
				Metric: "sleep",
				Err:    errors.New("connection timeout"),
			},
			want: "acquire 2025-06-01 [sleep]: connection timeout",
		},
		{
			name: "without metric",
			err: &models.AcquireError{
				Date: "2025-06-01",
				Err:  errors.New("connection timeout"),
			},
			want: "acquire 2025-06-01: connection timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAPIError(t *testing.T) {
	err := &models.APIError{
		Code:       "LOCKED",
		Message:    "Device is locked",
		StatusCode: 423,
		RequestID:  "req-123",
	}

	want := "API error 423 (LOCKED): Device is locked"
	assert.Equal(t, want, err.Error())
}

func TestWriteFailedError(t *testing.T) {
	tests := []struct {
		name string
		err  *models.WriteFailedError
		want string
	}{
		{
			name: "with path",
			err: &models.WriteFailedError{
				Path: "Health/2025-06-01.md",
				Err:  errors.New("read-only file system"),
			},
			want: "write Health/2025-06-01.md: read-only file system",
		},
		{
			name: "without path",
			err: &models.WriteFailedError{
				Err: errors.New("read-only file system"),
			},
			want: "write: read-only file system",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecryptError(t *testing.T) {
	err := &models.DecryptError{
		Date:   "2025-06-01",
		Reason: "invalid key",
		Err:    errors.New("cipher: message authentication failed"),
	}

	want := "decrypt 2025-06-01: invalid key: cipher: message authentication failed"
	assert.Equal(t, want, err.Error())
}

func TestErrorUnwrapping(t *testing.T) {
	baseErr := errors.New("base error")

	t.Run("AcquireError unwrap", func(t *testing.T) {
		acqErr := &models.AcquireError{
			Date: "2025-06-01",
			Err:  baseErr,
		}

		assert.Equal(t, baseErr, errors.Unwrap(acqErr))
	})

	t.Run("WriteFailedError unwrap", func(t *testing.T) {
		writeErr := &models.WriteFailedError{
			Path: "Health/2025-06-01.md",
			Err:  baseErr,
		}

		assert.Equal(t, baseErr, errors.Unwrap(writeErr))
	})

	t.Run("DecryptError unwrap", func(t *testing.T) {
		decryptErr := &models.DecryptError{
			Date:   "2025-06-01",
			Reason: "invalid key",
			Err:    baseErr,
		}

		assert.Equal(t, baseErr, errors.Unwrap(decryptErr))
	})
}
