package testutil

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vitalvault/vitalvault/internal/config"
	"github.com/vitalvault/vitalvault/internal/crypto"
	"github.com/vitalvault/vitalvault/internal/models"
)

// DeviceToken is the pairing token issued by TestDevice.
const DeviceToken = "test-token-0001"

// DevicePairCode is the pairing code TestDevice accepts.
const DevicePairCode = "482913"

// TestDevice emulates the phone's health endpoint for integration
// tests: pairing handshake, status probe and per-day record fetches,
// with switches for the failure modes the exporter has to survive.
type TestDevice struct {
	*httptest.Server

	mu         sync.RWMutex
	deviceName string
	locked     bool
	days       map[string]*models.HealthRecord
	encrypt    bool
	key        []byte

	// failNext forces the next n day fetches to answer failStatus.
	failNext   int
	failStatus int

	dayDelay    time.Duration
	dayRequests int
}

// NewTestDevice starts a device emulator. Callers own Close.
func NewTestDevice() *TestDevice {
	td := &TestDevice{
		deviceName: "Test Phone",
		days:       make(map[string]*models.HealthRecord),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", td.handleStatus)
	mux.HandleFunc("POST /api/v1/pair", td.handlePair)
	mux.HandleFunc("GET /api/v1/health/days/{day}", td.handleDay)

	td.Server = httptest.NewServer(mux)
	return td
}

// AddDay makes a record available for its calendar day.
func (td *TestDevice) AddDay(record *models.HealthRecord) {
	td.mu.Lock()
	defer td.mu.Unlock()
	td.days[models.DayLabel(record.Date)] = record
}

// AddDays makes fully populated records available for n consecutive
// days starting at start.
func (td *TestDevice) AddDays(start time.Time, n int) {
	for i := 0; i < n; i++ {
		td.AddDay(SampleRecord(start.AddDate(0, 0, i)))
	}
}

// RemoveDay drops a day so fetches for it answer 404.
func (td *TestDevice) RemoveDay(date time.Time) {
	td.mu.Lock()
	defer td.mu.Unlock()
	delete(td.days, models.DayLabel(date))
}

// SetLocked toggles the locked state. A locked device answers 423 to
// day fetches.
func (td *TestDevice) SetLocked(locked bool) {
	td.mu.Lock()
	defer td.mu.Unlock()
	td.locked = locked
}

// FailNext forces the next n day fetches to answer the given HTTP
// status, then resumes normal service.
func (td *TestDevice) FailNext(n, status int) {
	td.mu.Lock()
	defer td.mu.Unlock()
	td.failNext = n
	td.failStatus = status
}

// SetDayDelay adds latency to every day fetch, for tests that need to
// interrupt a run mid-flight.
func (td *TestDevice) SetDayDelay(d time.Duration) {
	td.mu.Lock()
	defer td.mu.Unlock()
	td.dayDelay = d
}

// EnableEncryption switches day payloads to encrypted envelopes keyed
// by TestPassphrase. Pairing responses gain the matching key info.
func (td *TestDevice) EnableEncryption() {
	key := DeriveTestKey()
	td.mu.Lock()
	defer td.mu.Unlock()
	td.encrypt = true
	td.key = key
}

// DayRequests reports how many day fetches the device has served,
// including rejected ones. Zero proves the exporter never went to the
// device.
func (td *TestDevice) DayRequests() int {
	td.mu.RLock()
	defer td.mu.RUnlock()
	return td.dayRequests
}

func (td *TestDevice) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+DeviceToken
}

func (td *TestDevice) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !td.authorized(r) {
		http.Error(w, "not paired", http.StatusUnauthorized)
		return
	}

	td.mu.RLock()
	defer td.mu.RUnlock()
	writeJSON(w, map[string]interface{}{
		"status":      "ok",
		"device_name": td.deviceName,
		"locked":      td.locked,
	})
}

func (td *TestDevice) handlePair(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if req.Code != DevicePairCode {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid pairing code"})
		return
	}

	td.mu.RLock()
	defer td.mu.RUnlock()

	resp := map[string]interface{}{
		"token":       DeviceToken,
		"device_name": td.deviceName,
		"paired_at":   time.Now().UTC(),
	}
	if td.encrypt {
		info := TestKeyInfo()
		resp["key_info"] = map[string]interface{}{
			"version": info.Version,
			"salt":    info.Salt,
			"check":   info.Check,
		}
	}
	writeJSON(w, resp)
}

func (td *TestDevice) handleDay(w http.ResponseWriter, r *http.Request) {
	td.mu.Lock()
	td.dayRequests++
	forced := 0
	if td.failNext > 0 {
		td.failNext--
		forced = td.failStatus
	}
	locked := td.locked
	record := td.days[r.PathValue("day")]
	encrypt := td.encrypt
	key := td.key
	delay := td.dayDelay
	td.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if !td.authorized(r) {
		http.Error(w, "not paired", http.StatusUnauthorized)
		return
	}
	if forced != 0 {
		http.Error(w, "forced failure", forced)
		return
	}
	if locked {
		http.Error(w, "device locked", http.StatusLocked)
		return
	}
	if record == nil {
		http.Error(w, "no data", http.StatusNotFound)
		return
	}

	if !encrypt {
		writeJSON(w, map[string]interface{}{"record": record})
		return
	}

	plaintext, err := json.Marshal(record)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	blob, err := crypto.NewProvider().EncryptData(plaintext, key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"encrypted": true,
		"payload":   base64.StdEncoding.EncodeToString(blob),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// TestConfigWithDir creates a test configuration rooted in dataDir.
// API.BaseURL is a placeholder; tests with a TestDevice overwrite it
// with the device URL.
func TestConfigWithDir(dataDir string) *config.Config {
	return &config.Config{
		API: config.APIConfig{
			BaseURL:    "http://device.test",
			Timeout:    10 * time.Second,
			MaxRetries: 1,
			UserAgent:  "vitalvault-test/1.0",
		},
		Pairing: config.PairingConfig{
			File: filepath.Join(dataDir, "state", "pairing.json"),
		},
		Vault: config.VaultConfig{
			Backend:     config.VaultBackendLocal,
			Path:        filepath.Join(dataDir, "vault"),
			Subfolder:   "Health",
			MaxFileSize: 10 * 1024 * 1024,
		},
		Export: config.ExportConfig{
			Format: "markdown",
		},
		History: config.HistoryConfig{
			Backend: config.HistoryBackendJSON,
		},
		Storage: config.StorageConfig{
			DataDir:  dataDir,
			StateDir: filepath.Join(dataDir, "state"),
		},
		Log: config.LogConfig{
			Level:  "debug",
			Format: "json",
			Color:  false,
		},
	}
}

// TestTimeout provides timeout context for tests.
func TestTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

// TestContext creates a test context with reasonable timeout.
func TestContext() (context.Context, context.CancelFunc) {
	return TestTimeout(30 * time.Second)
}

// WaitForCondition waits for a condition to be true with timeout.
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			t.Fatalf("Timeout waiting for condition: %s", message)
		case <-ticker.C:
			if condition() {
				return
			}
		}
	}
}

// LogEntry is one captured log line.
type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// LogOutput captures log output for testing. Pass it as the writer to
// events.NewTestLogger with the json format.
type LogOutput struct {
	mu      sync.RWMutex
	entries []LogEntry
}

// NewLogOutput creates a new log output capturer.
func NewLogOutput() *LogOutput {
	return &LogOutput{}
}

// Write implements io.Writer to capture log output.
func (lo *LogOutput) Write(p []byte) (n int, err error) {
	for _, line := range bytes.Split(p, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var raw map[string]interface{}
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}

		entry := LogEntry{Fields: make(map[string]interface{})}
		for k, v := range raw {
			switch k {
			case "level":
				entry.Level, _ = v.(string)
			case "msg":
				entry.Message, _ = v.(string)
			case "time", "hostname", "caller":
				// positional metadata, not interesting to tests
			default:
				entry.Fields[k] = v
			}
		}

		lo.mu.Lock()
		lo.entries = append(lo.entries, entry)
		lo.mu.Unlock()
	}
	return len(p), nil
}

// Entries returns captured log entries.
func (lo *LogOutput) Entries() []LogEntry {
	lo.mu.RLock()
	defer lo.mu.RUnlock()

	entries := make([]LogEntry, len(lo.entries))
	copy(entries, lo.entries)
	return entries
}

// HasLevel checks if any log entry has the specified level.
func (lo *LogOutput) HasLevel(level string) bool {
	lo.mu.RLock()
	defer lo.mu.RUnlock()

	for _, entry := range lo.entries {
		if entry.Level == level {
			return true
		}
	}
	return false
}

// HasMessage checks if any log entry contains the message.
func (lo *LogOutput) HasMessage(message string) bool {
	lo.mu.RLock()
	defer lo.mu.RUnlock()

	for _, entry := range lo.entries {
		if strings.Contains(entry.Message, message) {
			return true
		}
	}
	return false
}

// Clear clears all captured entries.
func (lo *LogOutput) Clear() {
	lo.mu.Lock()
	defer lo.mu.Unlock()
	lo.entries = nil
}

// SkipIfShort skips test if testing.Short() is true.
func SkipIfShort(t *testing.T, reason string) {
	if testing.Short() {
		t.Skipf("Skipping test in short mode: %s", reason)
	}
}
