// Package rag answers questions by retrieving corpus records and asking a chat model,
// conditioned on the conversation so far.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/insightbot/internal/embedding"
	"github.com/hyperjump/insightbot/internal/llm"
	"github.com/hyperjump/insightbot/internal/models"
	"github.com/hyperjump/insightbot/internal/vector"
)

var (
	// ErrEmbeddingFailure wraps errors from the query embedder.
	ErrEmbeddingFailure = errors.New("embedding failure")
	// ErrGenerationFailure wraps errors from the chat model.
	ErrGenerationFailure = errors.New("generation failure")
	// ErrConfiguration means the embedder and index disagree; it is never recovered.
	ErrConfiguration = errors.New("configuration error")
	// ErrEmptyQuery is returned for blank questions.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// DefaultTopK is the number of records retrieved per question when unset.
const DefaultTopK = 4

// Memory is the conversation state Answer reads and appends to.
type Memory interface {
	Window() []models.Turn
	Append(turn models.Turn) models.Turn
}

// Retriever returns the k records nearest to a query vector, nearest first.
type Retriever interface {
	Retrieve(ctx context.Context, query []float32, k int) ([]models.Hit, error)
}

// Orchestrator answers questions. It holds no per-conversation state and is safe
// for concurrent use as long as each Memory is used by one caller at a time.
type Orchestrator struct {
	embedder     embedding.Embedder
	generator    llm.Generator
	systemPrompt string
	topK         int
	fallback     string
	condense     bool
	logger       *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithSystemPrompt sets the instruction placed before the retrieved context.
func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) { o.systemPrompt = prompt }
}

// WithTopK sets how many records are retrieved per question.
func WithTopK(k int) Option {
	return func(o *Orchestrator) { o.topK = k }
}

// WithFallbackMessage sets the reply used when embedding or generation fails.
func WithFallbackMessage(msg string) Option {
	return func(o *Orchestrator) { o.fallback = msg }
}

// WithCondenseQuestion enables rewriting follow-up questions into standalone ones before retrieval.
func WithCondenseQuestion(enabled bool) Option {
	return func(o *Orchestrator) { o.condense = enabled }
}

// New creates an orchestrator.
func New(embedder embedding.Embedder, generator llm.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		embedder:  embedder,
		generator: generator,
		topK:      DefaultTopK,
		fallback:  "Sorry, something went wrong while answering. Please try again.",
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.topK <= 0 {
		o.topK = DefaultTopK
	}
	return o
}

// Answer embeds query, retrieves context through r, asks the generator and, on
// success only, appends the turn to mem.
//
// Embedding and generation failures produce a fallback Answer and a nil error,
// leaving mem untouched. A dimension mismatch between embedder and index is
// returned as ErrConfiguration. Cancellation of ctx is returned as ctx.Err().
func (o *Orchestrator) Answer(ctx context.Context, mem Memory, r Retriever, query string) (*models.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	history := mem.Window()

	question := query
	if o.condense && len(history) > 0 {
		question = o.condenseQuestion(ctx, history, query)
	}

	vec, err := o.embedder.Embed(ctx, question)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return o.fail(question, nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)), nil
	}

	hits, err := r.Retrieve(ctx, vec, o.topK)
	if err != nil {
		if errors.Is(err, vector.ErrDimensionMismatch) || errors.Is(err, vector.ErrInvalidK) {
			o.logger.Error("retrieval misconfigured", zap.Int("query_dim", len(vec)), zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	prompt := &Prompt{
		System:   o.systemPrompt,
		Context:  make([]string, len(hits)),
		History:  history,
		Question: query,
	}
	for i, h := range hits {
		prompt.Context[i] = FormatRecord(h.Record)
	}

	response, err := o.generator.Generate(ctx, prompt.Messages())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return o.fail(question, hits, fmt.Errorf("%w: %w", ErrGenerationFailure, err)), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	turn := mem.Append(models.Turn{UserQuery: query, BotResponse: response})
	o.logger.Debug("answered",
		zap.Uint64("seq", turn.SequenceNumber),
		zap.Int("hits", len(hits)),
		zap.Int("history", len(history)),
	)
	return &models.Answer{Response: response, Question: question, Hits: hits, Turn: &turn}, nil
}

func (o *Orchestrator) fail(question string, hits []models.Hit, cause error) *models.Answer {
	o.logger.Warn("answer fell back", zap.String("question", question), zap.Error(cause))
	return &models.Answer{Response: o.fallback, Fallback: true, Question: question, Hits: hits, Cause: cause}
}

// condenseQuestion returns a standalone version of query, or query itself when rewriting fails.
func (o *Orchestrator) condenseQuestion(ctx context.Context, history []models.Turn, query string) string {
	out, err := o.generator.Generate(ctx, condenseMessages(history, query))
	out = strings.TrimSpace(out)
	if err != nil || out == "" {
		o.logger.Warn("condense question failed, using original", zap.Error(err))
		return query
	}
	return out
}

// TopK returns the number of records retrieved per question.
func (o *Orchestrator) TopK() int {
	return o.topK
}
