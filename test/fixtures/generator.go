package fixtures

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/insightbot/internal/llm"
)

// Generator is a scripted chat model. It answers "answer N: <question>" unless Err
// is set, and records the peak number of concurrent calls.
type Generator struct {
	Err   error
	Delay time.Duration

	mu       sync.Mutex
	calls    int
	inFlight int
	peak     int
	last     []llm.Message
}

func (g *Generator) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.inFlight++
	if g.inFlight > g.peak {
		g.peak = g.inFlight
	}
	g.last = messages
	err := g.Err
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.mu.Unlock()
	}()

	if g.Delay > 0 {
		select {
		case <-time.After(g.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("answer %d: %s", n, messages[len(messages)-1].Content), nil
}

func (g *Generator) Model() string { return "scripted" }
func (g *Generator) Close() error  { return nil }

// Calls returns how many times Generate ran.
func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Peak returns the highest number of overlapping Generate calls seen.
func (g *Generator) Peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}

// LastMessages returns the messages of the most recent call.
func (g *Generator) LastMessages() []llm.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
