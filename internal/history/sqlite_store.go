package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/models"
)

// SQLiteStore implements SQLite-based history storage.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore creates a SQLite history store.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	// _loc=auto keeps local-midnight day values in local time on scan;
	// _fk enables cascade deletes on every pooled connection.
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000&_loc=auto&_fk=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_history_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates tables and indexes.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS export_runs (
        id TEXT PRIMARY KEY,
        timestamp TIMESTAMP NOT NULL,
        source TEXT NOT NULL,
        success INTEGER NOT NULL,
        range_start TIMESTAMP NOT NULL,
        range_end TIMESTAMP NOT NULL,
        success_count INTEGER NOT NULL,
        total_count INTEGER NOT NULL,
        failure_reason TEXT,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS failed_dates (
        run_id TEXT NOT NULL,
        date TIMESTAMP NOT NULL,
        reason TEXT NOT NULL,
        raw_error TEXT,
        PRIMARY KEY (run_id, date),
        FOREIGN KEY (run_id) REFERENCES export_runs(id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_export_runs_timestamp ON export_runs(timestamp DESC);

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );

    INSERT OR IGNORE INTO schema_info (version) VALUES (?);
    `

	if _, err := s.db.Exec(schema, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Record inserts an entry and evicts beyond the retention cap.
func (s *SQLiteStore) Record(entry *models.HistoryEntry) error {
	s.logger.WithFields(map[string]interface{}{
		"id":     entry.ID,
		"source": entry.Source,
	}).Debug("Recording history entry")

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var failureReason sql.NullString
	if entry.FailureReason != nil {
		failureReason = sql.NullString{String: string(*entry.FailureReason), Valid: true}
	}

	_, err = tx.Exec(`
        INSERT INTO export_runs
            (id, timestamp, source, success, range_start, range_end,
             success_count, total_count, failure_reason)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, entry.ID, entry.Timestamp, string(entry.Source), entry.Success,
		entry.DateRangeStart, entry.DateRangeEnd,
		entry.SuccessCount, entry.TotalCount, failureReason)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(entry.FailedDates) > 0 {
		stmt, err := tx.Prepare(`
            INSERT INTO failed_dates (run_id, date, reason, raw_error)
            VALUES (?, ?, ?, ?)
        `)
		if err != nil {
			return fmt.Errorf("prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, f := range entry.FailedDates {
			if _, err := stmt.Exec(entry.ID, f.Date, string(f.Reason), f.RawError); err != nil {
				return fmt.Errorf("insert failed date %s: %w", models.DayLabel(f.Date), err)
			}
		}
	}

	// Evict beyond the retention cap, newest first
	_, err = tx.Exec(`
        DELETE FROM export_runs
        WHERE id NOT IN (
            SELECT id FROM export_runs
            ORDER BY timestamp DESC, rowid DESC
            LIMIT ?
        )
    `, models.HistoryLimit)
	if err != nil {
		return fmt.Errorf("evict old runs: %w", err)
	}

	return tx.Commit()
}

// List returns all entries, newest first.
func (s *SQLiteStore) List() ([]*models.HistoryEntry, error) {
	rows, err := s.db.Query(`
        SELECT id, timestamp, source, success, range_start, range_end,
               success_count, total_count, failure_reason
        FROM export_runs
        ORDER BY timestamp DESC, rowid DESC
    `)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	byID := make(map[string]*models.HistoryEntry)

	for rows.Next() {
		var entry models.HistoryEntry
		var source string
		var failureReason sql.NullString

		err := rows.Scan(&entry.ID, &entry.Timestamp, &source, &entry.Success,
			&entry.DateRangeStart, &entry.DateRangeEnd,
			&entry.SuccessCount, &entry.TotalCount, &failureReason)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}

		entry.Source = models.ExportSource(source)
		if failureReason.Valid {
			reason := models.FailureReason(failureReason.String)
			entry.FailureReason = &reason
		}

		entries = append(entries, &entry)
		byID[entry.ID] = &entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	if err := s.attachFailedDates(byID); err != nil {
		return nil, err
	}

	return entries, nil
}

// attachFailedDates stitches failed dates onto their runs, preserving
// date order within a run.
func (s *SQLiteStore) attachFailedDates(byID map[string]*models.HistoryEntry) error {
	if len(byID) == 0 {
		return nil
	}

	rows, err := s.db.Query(`
        SELECT run_id, date, reason, raw_error
        FROM failed_dates
        ORDER BY run_id, date
    `)
	if err != nil {
		return fmt.Errorf("query failed dates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var runID string
		var f models.FailedDate
		var rawError sql.NullString
		var reason string

		if err := rows.Scan(&runID, &f.Date, &reason, &rawError); err != nil {
			return fmt.Errorf("scan failed date row: %w", err)
		}

		f.Reason = models.FailureReason(reason)
		if rawError.Valid {
			f.RawError = rawError.String
		}

		if entry, ok := byID[runID]; ok {
			entry.FailedDates = append(entry.FailedDates, f)
		}
	}

	return rows.Err()
}

// Clear removes all entries.
func (s *SQLiteStore) Clear() error {
	s.logger.Info("Clearing export history")

	if _, err := s.db.Exec("DELETE FROM export_runs"); err != nil {
		return fmt.Errorf("delete runs: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
