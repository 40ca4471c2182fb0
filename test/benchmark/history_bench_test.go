package benchmark

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/history"
	"github.com/vitalvault/vitalvault/internal/models"
	"github.com/vitalvault/vitalvault/test/testutil"
)

// newBenchStore builds a history store of the given backend in a
// throwaway directory.
func newBenchStore(b *testing.B, backend string, logger *events.Logger) history.Store {
	b.Helper()

	dir := b.TempDir()
	var (
		store history.Store
		err   error
	)
	switch backend {
	case "json":
		store, err = history.NewJSONStore(filepath.Join(dir, "history.json"), logger)
	case "sqlite":
		store, err = history.NewSQLiteStore(filepath.Join(dir, "history.db"), logger)
	default:
		b.Fatalf("unknown backend %q", backend)
	}
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = store.Close() })
	return store
}

func BenchmarkHistoryRecord(b *testing.B) {
	backends := []string{"json", "sqlite"}
	logger := testutil.NewTestLogger()

	for _, backend := range backends {
		b.Run(backend, func(b *testing.B) {
			store := newBenchStore(b, backend, logger)
			day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				entry := testutil.SampleHistoryEntry(models.SourceScheduled, day.AddDate(0, 0, i%365))
				if err := store.Record(&entry); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkHistoryList(b *testing.B) {
	backends := []string{"json", "sqlite"}
	logger := testutil.NewTestLogger()

	for _, backend := range backends {
		b.Run(backend, func(b *testing.B) {
			store := newBenchStore(b, backend, logger)

			// Fill to the retention cap so List pays full price.
			day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)
			for i := 0; i < models.HistoryLimit; i++ {
				entry := testutil.SampleHistoryEntry(models.SourceManual, day.AddDate(0, 0, i))
				if err := store.Record(&entry); err != nil {
					b.Fatal(err)
				}
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				entries, err := store.List()
				if err != nil {
					b.Fatal(err)
				}
				if len(entries) != models.HistoryLimit {
					b.Fatalf("expected %d entries, got %d", models.HistoryLimit, len(entries))
				}
			}
		})
	}
}

func BenchmarkHistoryEviction(b *testing.B) {
	// Recording past the cap exercises the eviction path on every call.
	logger := testutil.NewTestLogger()
	store := newBenchStore(b, "json", logger)

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)
	for i := 0; i < models.HistoryLimit; i++ {
		entry := testutil.SampleHistoryEntry(models.SourceManual, day.AddDate(0, 0, i))
		if err := store.Record(&entry); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		entry := testutil.SampleHistoryEntry(models.SourceScheduled, day.AddDate(0, 0, i%365))
		if err := store.Record(&entry); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkHistoryEntryRoundTrip(b *testing.B) {
	// One store holding failed-day detail, the worst case for entry
	// size.
	logger := testutil.NewTestLogger()
	store := newBenchStore(b, "json", logger)

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)
	result := &models.ExportResult{TotalCount: 7}
	for i := 0; i < 7; i++ {
		result.FailedDates = append(result.FailedDates, models.FailedDate{
			Date:     day.AddDate(0, 0, i),
			Reason:   models.FailureDeviceLocked,
			RawError: fmt.Sprintf("device reported locked on attempt %d", i),
		})
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		entry := models.NewHistoryEntry(models.SourceScheduled, day, day.AddDate(0, 0, 6), result, time.Now())
		if err := store.Record(&entry); err != nil {
			b.Fatal(err)
		}
		if _, err := store.List(); err != nil {
			b.Fatal(err)
		}
	}
}
