package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/insightbot/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	// Index rebuilds and transcript writes share the file; wait on the lock instead of failing.
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		name TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		dimension INTEGER NOT NULL,
		count INTEGER NOT NULL,
		index_path TEXT NOT NULL,
		built_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS records (
		dataset TEXT NOT NULL,
		id INTEGER NOT NULL,
		metadata TEXT NOT NULL,
		PRIMARY KEY (dataset, id)
	);

	CREATE TABLE IF NOT EXISTS transcripts (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		user_query TEXT NOT NULL,
		bot_response TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (session_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_transcripts_created_at ON transcripts(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// PutDataset inserts or replaces the catalog entry for a dataset.
func (s *SQLiteStorage) PutDataset(ctx context.Context, info *models.DatasetInfo) error {
	if info.BuiltAt.IsZero() {
		info.BuiltAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO datasets (name, fingerprint, dimension, count, index_path, built_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET fingerprint = excluded.fingerprint,
		   dimension = excluded.dimension, count = excluded.count,
		   index_path = excluded.index_path, built_at = excluded.built_at`,
		info.Name, info.Fingerprint, info.Dimension, info.Count, info.IndexPath, info.BuiltAt,
	)
	return err
}

// GetDataset returns a dataset by name.
func (s *SQLiteStorage) GetDataset(ctx context.Context, name string) (*models.DatasetInfo, error) {
	var info models.DatasetInfo
	err := s.db.QueryRowContext(ctx,
		`SELECT name, fingerprint, dimension, count, index_path, built_at
		 FROM datasets WHERE name = ?`, name,
	).Scan(&info.Name, &info.Fingerprint, &info.Dimension, &info.Count, &info.IndexPath, &info.BuiltAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dataset %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ListDatasets returns all datasets ordered by name.
func (s *SQLiteStorage) ListDatasets(ctx context.Context) ([]*models.DatasetInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, fingerprint, dimension, count, index_path, built_at
		 FROM datasets ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.DatasetInfo
	for rows.Next() {
		var info models.DatasetInfo
		if err := rows.Scan(&info.Name, &info.Fingerprint, &info.Dimension, &info.Count, &info.IndexPath, &info.BuiltAt); err != nil {
			return nil, err
		}
		out = append(out, &info)
	}
	return out, rows.Err()
}

// DeleteDataset removes a dataset and its records.
func (s *SQLiteStorage) DeleteDataset(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE dataset = ?`, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceRecords swaps all records of a dataset in one transaction.
func (s *SQLiteStorage) ReplaceRecords(ctx context.Context, dataset string, records []models.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE dataset = ?`, dataset); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (dataset, id, metadata) VALUES (?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, dataset, rec.ID, string(metadataJSON)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRecords returns every record of a dataset ordered by id.
func (s *SQLiteStorage) ListRecords(ctx context.Context, dataset string) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, metadata FROM records WHERE dataset = ? ORDER BY id`, dataset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var rec models.Record
		var metadataJSON string
		if err := rows.Scan(&rec.ID, &metadataJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountRecords returns the number of records stored for a dataset.
func (s *SQLiteStorage) CountRecords(ctx context.Context, dataset string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE dataset = ?`, dataset).Scan(&count)
	return count, err
}

// AppendTranscript records a completed turn for a session.
func (s *SQLiteStorage) AppendTranscript(ctx context.Context, sessionID string, turn models.Turn) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (session_id, seq, user_query, bot_response, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, turn.SequenceNumber, turn.UserQuery, turn.BotResponse, time.Now(),
	)
	return err
}

// GetTranscript returns every stored turn of a session in sequence order.
func (s *SQLiteStorage) GetTranscript(ctx context.Context, sessionID string) ([]models.TranscriptEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, user_query, bot_response, created_at
		 FROM transcripts WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TranscriptEntry
	for rows.Next() {
		e := models.TranscriptEntry{SessionID: sessionID}
		if err := rows.Scan(&e.Turn.SequenceNumber, &e.Turn.UserQuery, &e.Turn.BotResponse, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteTranscript removes all turns of a session.
func (s *SQLiteStorage) DeleteTranscript(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE session_id = ?`, sessionID)
	return err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
