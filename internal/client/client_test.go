package client_test

import (
	"bytes"
	"encoding/base64"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvault/vitalvault/internal/client"
	"github.com/vitalvault/vitalvault/internal/config"
	"github.com/vitalvault/vitalvault/internal/crypto"
	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/models"
	"github.com/vitalvault/vitalvault/internal/pairing"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dataDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = dataDir
	cfg.Storage.StateDir = filepath.Join(dataDir, "state")
	cfg.Pairing.File = filepath.Join(dataDir, "state", "pairing.json")
	cfg.Vault.Path = filepath.Join(dataDir, "vault")
	require.NoError(t, cfg.EnsureDirectories())

	return cfg
}

func testLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

func TestNewClientUnpaired(t *testing.T) {
	cfg := testConfig(t)

	c, err := client.New(cfg, testLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.Paired())
	assert.Nil(t, c.Credentials())
	assert.NotNil(t, c.Export)
	assert.NotNil(t, c.History)
	assert.NotNil(t, c.Schedule)

	// Without pairing there is nothing to connect the push listener to.
	_, err = c.NewLink()
	assert.ErrorIs(t, err, models.ErrNotPaired)
}

func TestNewClientPaired(t *testing.T) {
	cfg := testConfig(t)
	logger := testLogger()

	store, err := pairing.NewStore(cfg.Pairing.File, logger)
	require.NoError(t, err)
	require.NoError(t, store.Save(&pairing.Credentials{
		ServerURL:  "http://device.local:4820",
		DeviceName: "Test Phone",
		Token:      "tok-1477",
		PairedAt:   time.Now(),
	}))

	c, err := client.New(cfg, logger)
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, c.Paired())
	require.NotNil(t, c.Credentials())
	assert.Equal(t, "Test Phone", c.Credentials().DeviceName)
	assert.Equal(t, "tok-1477", c.API().GetToken())

	link, err := c.NewLink()
	require.NoError(t, err)
	assert.NoError(t, link.Close())
}

func TestNewClientTokenOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pairing.Token = "override-tok"

	// No pairing file; the configured token alone is enough.
	c, err := client.New(cfg, testLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, c.Paired())
	assert.Equal(t, "override-tok", c.API().GetToken())
}

func TestNewClientEncryptedPairing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pairing.Passphrase = "correct horse battery staple"
	logger := testLogger()

	salt := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, 32))
	store, err := pairing.NewStore(cfg.Pairing.File, logger)
	require.NoError(t, err)
	require.NoError(t, store.Save(&pairing.Credentials{
		Token: "tok-9001",
		KeyInfo: &crypto.PayloadKeyInfo{
			Version: crypto.EncryptionVersion,
			Salt:    salt,
		},
	}))

	c, err := client.New(cfg, logger)
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, c.Paired())
	assert.True(t, c.Credentials().Encrypted())
}

func TestNewClientWrongPassphrase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pairing.Passphrase = "not the passphrase"
	logger := testLogger()

	info := crypto.PayloadKeyInfo{
		Version: crypto.EncryptionVersion,
		Salt:    base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, 32)),
	}
	key, err := crypto.NewProvider().DeriveKey("correct horse battery staple", info)
	require.NoError(t, err)
	info.Check = crypto.KeyCheck(key)

	store, err := pairing.NewStore(cfg.Pairing.File, logger)
	require.NoError(t, err)
	require.NoError(t, store.Save(&pairing.Credentials{
		Token:   "tok-9001",
		KeyInfo: &info,
	}))

	_, err = client.New(cfg, logger)
	require.Error(t, err)
	assert.ErrorIs(t, err, crypto.ErrKeyMismatch)
}

func TestNewClientBadKeyInfo(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pairing.Passphrase = "hunter2"
	logger := testLogger()

	store, err := pairing.NewStore(cfg.Pairing.File, logger)
	require.NoError(t, err)
	require.NoError(t, store.Save(&pairing.Credentials{
		Token: "tok-9001",
		KeyInfo: &crypto.PayloadKeyInfo{
			Version: 999, // unsupported
			Salt:    base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32)),
		},
	}))

	_, err = client.New(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload decryption")
}

func TestNewClientRejectsUnknownFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Format = "parquet"

	_, err := client.New(cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown export format")
}
