package healthapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"github.com/vitalvault/vitalvault/internal/config"
	"github.com/vitalvault/vitalvault/internal/crypto"
	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/models"
)

// Client is the HTTP implementation of Source.
type Client struct {
	client    *http.Client
	baseURL   string
	userAgent string
	token     string
	logger    *events.Logger

	// Payload decryption, nil when the device does not encrypt.
	provider   crypto.Provider
	payloadKey []byte

	// Retry configuration
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a health API client.
func NewClient(cfg *config.APIConfig, logger *events.Logger) *Client {
	// Create transport with HTTP/2 support
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			NextProtos: []string{"h2", "http/1.1"},
		},
	}

	// Configure HTTP/2
	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	return &Client{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Second,
		logger:     logger.WithField("component", "healthapi"),
	}
}

// SetToken sets the pairing token.
func (c *Client) SetToken(token string) {
	c.token = token
}

// GetToken returns the current pairing token.
func (c *Client) GetToken() string {
	return c.token
}

// EnableDecryption derives and caches the payload key so encrypted day
// responses can be opened. When the key info carries a check value the
// derived key is compared against it, rejecting a wrong passphrase up
// front rather than on the first fetch.
func (c *Client) EnableDecryption(provider crypto.Provider, passphrase string, info crypto.PayloadKeyInfo) error {
	key, err := provider.DeriveKey(passphrase, info)
	if err != nil {
		return fmt.Errorf("derive payload key: %w", err)
	}
	if err := crypto.VerifyKey(key, info); err != nil {
		return err
	}
	c.provider = provider
	c.payloadKey = key
	return nil
}

// dayEnvelope is the wire shape of a day response. Plain devices fill
// record; encrypting devices fill payload.
type dayEnvelope struct {
	Encrypted bool                 `json:"encrypted,omitempty"`
	Payload   string               `json:"payload,omitempty"`
	Record    *models.HealthRecord `json:"record,omitempty"`
}

// FetchDay returns the record for one calendar day.
func (c *Client) FetchDay(ctx context.Context, date time.Time) (*models.HealthRecord, error) {
	day := models.DayLabel(date)
	url := fmt.Sprintf("%s/api/v1/health/days/%s", c.baseURL, day)

	c.logger.WithField("date", day).Debug("Fetching day")

	body, err := c.getJSON(ctx, url)
	if err != nil {
		return nil, err
	}

	var envelope dayEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parse day response: %w", err)
	}

	if envelope.Encrypted {
		record, err := c.decryptRecord(day, envelope.Payload)
		if err != nil {
			return nil, err
		}
		// The requested day is authoritative for the record's date.
		record.Date = models.Day(date)
		return record, nil
	}

	if envelope.Record == nil {
		return nil, &models.AcquireError{Date: day, Err: fmt.Errorf("empty day response")}
	}

	envelope.Record.Date = models.Day(date)
	return envelope.Record, nil
}

// decryptRecord opens an encrypted day payload.
func (c *Client) decryptRecord(day, payload string) (*models.HealthRecord, error) {
	if c.provider == nil {
		return nil, &models.DecryptError{
			Date:   day,
			Reason: "device encrypts payloads but no passphrase is configured",
			Err:    models.ErrDecryptionFailed,
		}
	}

	blob, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &models.DecryptError{Date: day, Reason: "decode payload", Err: err}
	}

	plaintext, err := c.provider.DecryptData(blob, c.payloadKey)
	if err != nil {
		return nil, &models.DecryptError{Date: day, Reason: "open payload", Err: err}
	}

	var record models.HealthRecord
	if err := json.Unmarshal(plaintext, &record); err != nil {
		return nil, &models.DecryptError{Date: day, Reason: "parse decrypted record", Err: err}
	}

	return &record, nil
}

// Ping verifies the device is reachable and the pairing is valid.
func (c *Client) Ping(ctx context.Context) error {
	url := c.baseURL + "/api/v1/status"
	_, err := c.getJSON(ctx, url)
	return err
}

// Pair performs the pairing handshake with a code shown on the device.
func (c *Client) Pair(ctx context.Context, code string) (*Pairing, error) {
	url := c.baseURL + "/api/v1/pair"

	payload, err := json.Marshal(map[string]string{"code": code})
	if err != nil {
		return nil, fmt.Errorf("marshal pairing request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}

	var pairing Pairing
	if err := json.Unmarshal(body, &pairing); err != nil {
		return nil, fmt.Errorf("parse pairing response: %w", err)
	}

	c.token = pairing.Token
	return &pairing, nil
}

// Close releases connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// getJSON executes an authenticated GET with retry.
func (c *Client) getJSON(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	err := c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if c.isRetryable(resp.StatusCode) {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, respBody)
		}

		if resp.StatusCode != http.StatusOK {
			return statusError(resp.StatusCode, respBody)
		}

		body = respBody
		return nil
	})

	if err != nil {
		return nil, err
	}

	c.logger.WithField("size", len(body)).Debug("Received response")
	return body, nil
}

// statusError maps a non-OK status to the right error. 423 marks the
// device locked and 404 marks a day without data; both must stay
// distinguishable from generic failures.
func statusError(status int, body []byte) error {
	switch status {
	case http.StatusLocked:
		return fmt.Errorf("device reported locked: %w", models.ErrDeviceLocked)
	case http.StatusNotFound:
		return models.ErrNoHealthData
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("pairing rejected (HTTP %d): %w", status, models.ErrNotPaired)
	case http.StatusTooManyRequests:
		return models.ErrRateLimited
	}

	var apiErr models.APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		apiErr.StatusCode = status
		return &apiErr
	}
	return fmt.Errorf("HTTP %d: %s", status, body)
}

// retry executes a function with exponential backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying request")

			select {
			case <-time.After(delay):
				delay *= 2 // Exponential backoff
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		// Check if error is retryable
		if !c.isRetryableError(err) {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable checks if an HTTP status code is retryable.
func (c *Client) isRetryable(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusBadGateway ||
		status == http.StatusGatewayTimeout ||
		(status >= 500 && status < 600)
}

// isRetryableError checks if an error is retryable. Locked-device, no
// data and pairing failures are final for the current attempt; network
// errors and server errors are worth retrying.
func (c *Client) isRetryableError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, models.ErrDeviceLocked),
		errors.Is(err, models.ErrNoHealthData),
		errors.Is(err, models.ErrNotPaired),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
