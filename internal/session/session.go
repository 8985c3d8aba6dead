// Package session owns one conversation memory per chat session and serializes
// the questions asked in each.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/insightbot/internal/memory"
	"github.com/hyperjump/insightbot/internal/models"
	"github.com/hyperjump/insightbot/internal/rag"
	"github.com/hyperjump/insightbot/internal/search"
	"github.com/hyperjump/insightbot/internal/storage"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Datasets resolves a dataset name to its retriever.
type Datasets interface {
	Dataset(name string) (*search.Dataset, error)
}

// Session is one conversation bound to one dataset.
type Session struct {
	ID        string
	Dataset   string
	CreatedAt time.Time

	mu       sync.Mutex
	closed   bool // set under mu once the session leaves the manager
	memory   *memory.ConversationMemory
	lastUsed atomic.Int64 // unix nanos
	turns    atomic.Int32 // memory length, readable without mu
}

// Info is the reportable state of a session.
type Info struct {
	ID        string    `json:"id"`
	Dataset   string    `json:"dataset"`
	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

// Manager creates, serves and expires sessions.
type Manager struct {
	orchestrator   *rag.Orchestrator
	datasets       Datasets
	defaultDataset string
	transcripts    storage.Storage
	memoryTurns    int
	now            func() time.Time
	logger         *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithTranscripts persists every completed turn to store.
func WithTranscripts(store storage.Storage) Option {
	return func(m *Manager) { m.transcripts = store }
}

// WithMemoryTurns sets how many turns each session remembers.
func WithMemoryTurns(n int) Option {
	return func(m *Manager) { m.memoryTurns = n }
}

// WithDefaultDataset sets the dataset used when a session is created without one.
func WithDefaultDataset(name string) Option {
	return func(m *Manager) { m.defaultDataset = name }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a session manager.
func NewManager(o *rag.Orchestrator, datasets Datasets, opts ...Option) *Manager {
	m := &Manager{
		orchestrator: o,
		datasets:     datasets,
		memoryTurns:  memory.DefaultCapacity,
		now:          time.Now,
		logger:       zap.NewNop(),
		sessions:     make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a session on dataset, or on the default dataset when empty.
func (m *Manager) Create(dataset string) (*Session, error) {
	if dataset == "" {
		dataset = m.defaultDataset
	}
	if _, err := m.datasets.Dataset(dataset); err != nil {
		return nil, err
	}
	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		Dataset:   dataset,
		CreatedAt: now,
		memory:    memory.New(m.memoryTurns),
	}
	s.lastUsed.Store(now.UnixNano())

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.logger.Debug("session created", zap.String("session", s.ID), zap.String("dataset", dataset))
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Ask answers query within a session. Questions in one session are answered one
// at a time, in arrival order of the lock.
func (m *Manager) Ask(ctx context.Context, id, query string) (*models.Answer, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	ds, err := m.datasets.Dataset(s.Dataset)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.touch(s)
	ans, err := m.orchestrator.Answer(ctx, s.memory, ds, query)
	s.turns.Store(int32(s.memory.Len()))
	if err != nil {
		return nil, err
	}
	if ans.Turn != nil && m.transcripts != nil {
		// The turn is already in memory; a lost transcript row only affects history display.
		if err := m.transcripts.AppendTranscript(ctx, s.ID, *ans.Turn); err != nil {
			m.logger.Warn("failed to store transcript", zap.String("session", s.ID), zap.Error(err))
		}
	}
	return ans, nil
}

// Window returns the remembered turns of a session, oldest first.
func (m *Manager) Window(id string) ([]models.Turn, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.Window(), nil
}

// Clear empties a session's memory. The transcript is kept.
func (m *Manager) Clear(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory.Clear()
	s.turns.Store(0)
	m.touch(s)
	return nil
}

// Transcript returns every stored turn of a session.
func (m *Manager) Transcript(ctx context.Context, id string) ([]models.TranscriptEntry, error) {
	if _, err := m.Get(id); err != nil {
		return nil, err
	}
	if m.transcripts == nil {
		return nil, nil
	}
	return m.transcripts.GetTranscript(ctx, id)
}

// Delete ends a session and removes its transcript. It waits for an answer in
// progress, so no transcript row is written after the delete.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if m.transcripts != nil {
		if err := m.transcripts.DeleteTranscript(ctx, id); err != nil {
			return fmt.Errorf("delete transcript: %w", err)
		}
	}
	return nil
}

// Prune drops sessions idle for longer than ttl and returns how many it removed.
// Sessions answering a question are never idle. Transcripts are kept.
func (m *Manager) Prune(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl).UnixNano()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.lastUsed.Load() >= cutoff {
			continue
		}
		if !s.mu.TryLock() {
			continue
		}
		delete(m.sessions, id)
		s.closed = true
		s.mu.Unlock()
		n++
	}
	if n > 0 {
		m.logger.Info("pruned idle sessions", zap.Int("count", n), zap.Int("remaining", len(m.sessions)))
	}
	return n
}

// Run prunes idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Prune(ttl)
		}
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns every live session ordered by creation time.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, Info{
			ID:        s.ID,
			Dataset:   s.Dataset,
			Turns:     int(s.turns.Load()),
			CreatedAt: s.CreatedAt,
			LastUsed:  time.Unix(0, s.lastUsed.Load()),
		})
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *Manager) touch(s *Session) {
	s.lastUsed.Store(m.now().UnixNano())
}
