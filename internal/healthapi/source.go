// Package healthapi talks to the paired device's health endpoint. It is
// the acquisition side of an export: one GET per calendar day.
package healthapi

import (
	"context"
	"time"

	"github.com/vitalvault/vitalvault/internal/models"
)

// Source provides per-day health records.
type Source interface {
	// FetchDay returns the record for one calendar day. It fails with
	// models.ErrDeviceLocked while the device is locked and
	// models.ErrNoHealthData when the device has nothing for the day.
	FetchDay(ctx context.Context, date time.Time) (*models.HealthRecord, error)

	// Ping verifies the device is reachable and the pairing is valid.
	Ping(ctx context.Context) error

	// Close releases connections.
	Close() error
}

// Pairing is the credential material returned by a pairing handshake.
type Pairing struct {
	Token      string    `json:"token"`
	DeviceName string    `json:"device_name"`
	PairedAt   time.Time `json:"paired_at"`
	KeyInfo    *KeyInfo  `json:"key_info,omitempty"`
}

// KeyInfo mirrors crypto.PayloadKeyInfo in the pairing response.
type KeyInfo struct {
	Version int    `json:"version"`
	Salt    string `json:"salt"`
	Check   string `json:"check,omitempty"`
}
