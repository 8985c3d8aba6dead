// Package storage defines persistence for built datasets, their records, and chat transcripts.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/insightbot/internal/models"
)

// ErrNotFound is returned when a dataset or record does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines dataset, record and transcript persistence operations.
type Storage interface {
	// Dataset operations
	PutDataset(ctx context.Context, info *models.DatasetInfo) error
	GetDataset(ctx context.Context, name string) (*models.DatasetInfo, error)
	ListDatasets(ctx context.Context) ([]*models.DatasetInfo, error)
	DeleteDataset(ctx context.Context, name string) error

	// Record operations
	ReplaceRecords(ctx context.Context, dataset string, records []models.Record) error
	ListRecords(ctx context.Context, dataset string) ([]models.Record, error)
	CountRecords(ctx context.Context, dataset string) (int64, error)

	// Transcript operations
	AppendTranscript(ctx context.Context, sessionID string, turn models.Turn) error
	GetTranscript(ctx context.Context, sessionID string) ([]models.TranscriptEntry, error)
	DeleteTranscript(ctx context.Context, sessionID string) error

	Close() error
}
