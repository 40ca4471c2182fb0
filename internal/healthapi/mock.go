package healthapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitalvault/vitalvault/internal/models"
)

// MockSource provides a mock implementation for testing.
type MockSource struct {
	mu sync.Mutex

	// Response configuration, keyed by YYYY-MM-DD.
	Records map[string]*models.HealthRecord
	Errors  map[string]error

	// Error injection for every call
	FetchError error
	PingError  error

	// Per-call delay, for cancellation tests.
	FetchDelay time.Duration

	// Request tracking
	FetchedDays []string
	PingCount   int
	closed      bool
}

// NewMockSource creates a mock source.
func NewMockSource() *MockSource {
	return &MockSource{
		Records:     make(map[string]*models.HealthRecord),
		Errors:      make(map[string]error),
		FetchedDays: []string{},
	}
}

// AddRecord registers a record for a day.
func (m *MockSource) AddRecord(record *models.HealthRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records[models.DayLabel(record.Date)] = record
}

// AddEmptyDay registers a day that fetches successfully with no data.
func (m *MockSource) AddEmptyDay(date time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records[models.DayLabel(date)] = &models.HealthRecord{Date: models.Day(date)}
}

// AddError registers a per-day fetch error.
func (m *MockSource) AddError(date time.Time, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[models.DayLabel(date)] = err
}

// FetchDay mocks a day fetch.
func (m *MockSource) FetchDay(ctx context.Context, date time.Time) (*models.HealthRecord, error) {
	m.mu.Lock()
	day := models.DayLabel(date)
	m.FetchedDays = append(m.FetchedDays, day)
	delay := m.FetchDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FetchError != nil {
		return nil, m.FetchError
	}

	if err, ok := m.Errors[day]; ok {
		return nil, err
	}

	if record, ok := m.Records[day]; ok {
		return record, nil
	}

	return nil, fmt.Errorf("no mock record for %s", day)
}

// Ping mocks a status check.
func (m *MockSource) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PingCount++
	return m.PingError
}

// Close mocks connection closing.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
