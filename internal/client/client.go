// Package client assembles the application from its parts. Nothing in
// here owns domain logic; construction order and wiring only.
package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vitalvault/vitalvault/internal/config"
	"github.com/vitalvault/vitalvault/internal/crypto"
	"github.com/vitalvault/vitalvault/internal/devicelink"
	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/export"
	"github.com/vitalvault/vitalvault/internal/healthapi"
	"github.com/vitalvault/vitalvault/internal/history"
	"github.com/vitalvault/vitalvault/internal/models"
	"github.com/vitalvault/vitalvault/internal/pairing"
	"github.com/vitalvault/vitalvault/internal/render"
	"github.com/vitalvault/vitalvault/internal/schedule"
	"github.com/vitalvault/vitalvault/internal/vault"
)

// Client provides the high-level API for vitalvault operations.
type Client struct {
	Export   *export.Service
	History  history.Store
	Schedule *schedule.Store
	Pairing  *pairing.Store

	cfg    *config.Config
	logger *events.Logger
	api    *healthapi.Client
	vault  vault.Vault
	creds  *pairing.Credentials
}

// New creates a vitalvault client. An unpaired device is not an error
// here; commands that need the device fail at call time with
// models.ErrNotPaired so that `pair` itself can run.
func New(cfg *config.Config, logger *events.Logger) (*Client, error) {
	pairingStore, err := pairing.NewStore(cfg.Pairing.File, logger)
	if err != nil {
		return nil, fmt.Errorf("create pairing store: %w", err)
	}

	api := healthapi.NewClient(&cfg.API, logger)

	creds, err := pairing.Resolve(&cfg.Pairing, pairingStore)
	switch {
	case err == nil:
		api.SetToken(creds.Token)
		if err := enableDecryption(api, creds, cfg.Pairing.Passphrase, logger); err != nil {
			return nil, err
		}
	case errors.Is(err, models.ErrNotPaired):
		logger.Debug("No pairing credentials yet")
	default:
		return nil, fmt.Errorf("load pairing credentials: %w", err)
	}

	vlt, err := vault.New(&cfg.Vault, logger)
	if err != nil {
		return nil, fmt.Errorf("create vault: %w", err)
	}

	renderer, err := render.New(cfg.Export.Format)
	if err != nil {
		return nil, err
	}

	historyStore, err := history.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create history store: %w", err)
	}

	scheduleStore, err := schedule.NewStore(cfg.SchedulePath(), logger)
	if err != nil {
		return nil, fmt.Errorf("create schedule store: %w", err)
	}

	engine := export.NewEngine(api, vlt, renderer, logger)

	return &Client{
		Export:   export.NewService(engine, historyStore, scheduleStore, logger),
		History:  historyStore,
		Schedule: scheduleStore,
		Pairing:  pairingStore,
		cfg:      cfg,
		logger:   logger,
		api:      api,
		vault:    vlt,
		creds:    creds,
	}, nil
}

// enableDecryption arms the payload key when the device encrypts its
// responses. A missing passphrase is only a warning at construction;
// encrypted days then fail at fetch time with a decrypt error.
func enableDecryption(api *healthapi.Client, creds *pairing.Credentials, passphrase string, logger *events.Logger) error {
	if !creds.Encrypted() {
		return nil
	}

	if passphrase == "" {
		logger.Warn("Device encrypts payloads but pairing.passphrase is not set")
		return nil
	}

	if err := api.EnableDecryption(crypto.NewProvider(), passphrase, *creds.KeyInfo); err != nil {
		return fmt.Errorf("enable payload decryption: %w", err)
	}
	return nil
}

// API returns the device client, for pairing and status checks.
func (c *Client) API() *healthapi.Client {
	return c.api
}

// Vault returns the destination vault.
func (c *Client) Vault() vault.Vault {
	return c.vault
}

// Paired reports whether pairing credentials are available.
func (c *Client) Paired() bool {
	return c.creds != nil && c.creds.Token != ""
}

// Credentials returns the resolved pairing credentials, nil when the
// device is not paired.
func (c *Client) Credentials() *pairing.Credentials {
	return c.creds
}

// NewLink creates the device push listener. The push endpoint derives
// from the API base URL unless link.url overrides it.
func (c *Client) NewLink() (*devicelink.Listener, error) {
	if !c.Paired() {
		return nil, models.ErrNotPaired
	}

	url := c.cfg.Link.URL
	if url == "" {
		url = strings.TrimRight(c.cfg.API.BaseURL, "/") + "/api/v1/push"
	}

	return devicelink.NewListener(url, c.creds.Token, c.cfg.Link.ReconnectDelay, c.logger), nil
}

// Close releases the client's resources.
func (c *Client) Close() error {
	var firstErr error

	if err := c.api.Close(); err != nil {
		firstErr = err
	}
	if err := c.History.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}
