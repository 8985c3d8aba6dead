package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/insightbot/internal/corpus"
	"github.com/hyperjump/insightbot/internal/llm"
	"github.com/hyperjump/insightbot/internal/memory"
	"github.com/hyperjump/insightbot/internal/models"
	"github.com/hyperjump/insightbot/internal/vector"
)

type fakeEmbedder struct {
	vec   []float32
	err   error
	texts []string
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.texts = append(e.texts, text)
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}
func (e *fakeEmbedder) Dimensions() int { return len(e.vec) }
func (e *fakeEmbedder) Close() error   { return nil }

type fakeGenerator struct {
	replies []string
	err     error
	calls   [][]llm.Message
	hook    func()
}

func (g *fakeGenerator) Generate(_ context.Context, messages []llm.Message) (string, error) {
	g.calls = append(g.calls, messages)
	if g.hook != nil {
		g.hook()
	}
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "ok", nil
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r, nil
}
func (g *fakeGenerator) Model() string { return "fake" }
func (g *fakeGenerator) Close() error  { return nil }

// indexRetriever resolves flat index results against the store it was built from.
type indexRetriever struct {
	idx   *vector.FlatIndex
	store *corpus.Store
}

func (r *indexRetriever) Retrieve(ctx context.Context, q []float32, k int) ([]models.Hit, error) {
	results, err := r.idx.Search(ctx, q, k)
	if err != nil {
		return nil, err
	}
	hits := make([]models.Hit, len(results))
	for i, res := range results {
		rec, _ := r.store.Record(int64(res.ID))
		hits[i] = models.Hit{Record: rec, Distance: res.Distance, Rank: i + 1}
	}
	return hits, nil
}

func newRetriever(t *testing.T) *indexRetriever {
	t.Helper()
	store, err := corpus.New(
		[][]float32{{0, 0}, {10, 0}, {0, 10}},
		[]models.Metadata{{"name": "Serum"}, {"name": "Toner"}, {"name": "Mask"}},
	)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := vector.Build(store)
	if err != nil {
		t.Fatal(err)
	}
	return &indexRetriever{idx: idx, store: store}
}

func TestAnswer_Success(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	gen := &fakeGenerator{replies: []string{"Serum is closest."}}
	o := New(emb, gen, WithTopK(2), WithSystemPrompt("SYS"))
	mem := memory.New(10)
	mem.Append(models.Turn{UserQuery: "hi", BotResponse: "hello"})

	ans, err := o.Answer(context.Background(), mem, newRetriever(t), "  which product?  ")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Fallback || ans.Response != "Serum is closest." {
		t.Fatalf("answer = %+v", ans)
	}
	if len(ans.Hits) != 2 || ans.Hits[0].Record.ID != 0 || ans.Hits[0].Distance != 1 || ans.Hits[1].Record.ID != 1 || ans.Hits[1].Distance != 81 {
		t.Errorf("hits = %+v", ans.Hits)
	}
	if ans.Turn == nil || ans.Turn.SequenceNumber != 2 {
		t.Errorf("turn = %+v", ans.Turn)
	}

	w := mem.Window()
	if len(w) != 2 || w[1].UserQuery != "which product?" || w[1].BotResponse != "Serum is closest." {
		t.Errorf("window = %+v", w)
	}

	msgs := gen.calls[0]
	if len(msgs) != 4 {
		t.Fatalf("got %d messages", len(msgs))
	}
	sys := msgs[0].Content
	if !strings.HasPrefix(sys, "SYS") || strings.Index(sys, "Serum") > strings.Index(sys, "Toner") || strings.Contains(sys, "Mask") {
		t.Errorf("system message = %q", sys)
	}
	if msgs[1].Content != "hi" || msgs[2].Role != llm.RoleAssistant || msgs[3].Content != "which product?" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestAnswer_GenerationFailureFallsBack(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("503 from upstream")}
	o := New(&fakeEmbedder{vec: []float32{1, 0}}, gen, WithFallbackMessage("Maaf"))
	mem := memory.New(10)
	mem.Append(models.Turn{UserQuery: "a", BotResponse: "b"})
	before := mem.Len()

	ans, err := o.Answer(context.Background(), mem, newRetriever(t), "q")
	if err != nil {
		t.Fatalf("generation failure must not be returned as error: %v", err)
	}
	if !ans.Fallback || ans.Response != "Maaf" {
		t.Errorf("answer = %+v", ans)
	}
	if !errors.Is(ans.Cause, ErrGenerationFailure) {
		t.Errorf("cause = %v", ans.Cause)
	}
	if mem.Len() != before {
		t.Errorf("memory changed: %d -> %d", before, mem.Len())
	}
}

func TestAnswer_EmbeddingFailureFallsBack(t *testing.T) {
	gen := &fakeGenerator{}
	o := New(&fakeEmbedder{err: errors.New("rate limited")}, gen)
	mem := memory.New(10)

	ans, err := o.Answer(context.Background(), mem, newRetriever(t), "q")
	if err != nil {
		t.Fatal(err)
	}
	if !ans.Fallback || !errors.Is(ans.Cause, ErrEmbeddingFailure) {
		t.Errorf("answer = %+v", ans)
	}
	if len(gen.calls) != 0 {
		t.Error("generator should not be called")
	}
	if mem.Len() != 0 {
		t.Error("memory should be untouched")
	}
}

func TestAnswer_DimensionMismatchIsFatal(t *testing.T) {
	o := New(&fakeEmbedder{vec: []float32{1, 0, 0}}, &fakeGenerator{})
	mem := memory.New(10)
	ans, err := o.Answer(context.Background(), mem, newRetriever(t), "q")
	if !errors.Is(err, ErrConfiguration) || !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Fatalf("err = %v", err)
	}
	if ans != nil || mem.Len() != 0 {
		t.Error("no answer and no memory change expected")
	}
}

type failingRetriever struct{ err error }

func (r failingRetriever) Retrieve(context.Context, []float32, int) ([]models.Hit, error) {
	return nil, r.err
}

func TestAnswer_RetrievalError(t *testing.T) {
	o := New(&fakeEmbedder{vec: []float32{1}}, &fakeGenerator{})
	unavailable := errors.New("index not loaded")
	_, err := o.Answer(context.Background(), memory.New(1), failingRetriever{err: unavailable}, "q")
	if !errors.Is(err, unavailable) || errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v", err)
	}
}

func TestAnswer_CanceledDuringGeneration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGenerator{hook: cancel}
	o := New(&fakeEmbedder{vec: []float32{1, 0}}, gen)
	mem := memory.New(10)

	_, err := o.Answer(ctx, mem, newRetriever(t), "q")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if mem.Len() != 0 {
		t.Error("memory must not change on cancellation")
	}
}

func TestAnswer_CanceledGeneratorError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGenerator{hook: cancel, err: context.Canceled}
	o := New(&fakeEmbedder{vec: []float32{1, 0}}, gen)
	ans, err := o.Answer(ctx, memory.New(10), newRetriever(t), "q")
	if !errors.Is(err, context.Canceled) || ans != nil {
		t.Errorf("ans=%v err=%v", ans, err)
	}
}

func TestAnswer_EmptyQuery(t *testing.T) {
	o := New(&fakeEmbedder{vec: []float32{1, 0}}, &fakeGenerator{})
	if _, err := o.Answer(context.Background(), memory.New(10), newRetriever(t), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("err = %v", err)
	}
}

func TestAnswer_MemoryBounded(t *testing.T) {
	o := New(&fakeEmbedder{vec: []float32{1, 0}}, &fakeGenerator{})
	mem := memory.New(memory.DefaultCapacity)
	r := newRetriever(t)
	for i := 1; i <= 11; i++ {
		if _, err := o.Answer(context.Background(), mem, r, fmt.Sprintf("q%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	w := mem.Window()
	if len(w) != 10 || w[0].UserQuery != "q2" || w[9].UserQuery != "q11" {
		t.Errorf("window = %+v", w)
	}
}

func TestAnswer_CondenseQuestion(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	gen := &fakeGenerator{replies: []string{"What is the price of Serum?", "Rp120.000"}}
	o := New(emb, gen, WithCondenseQuestion(true))
	mem := memory.New(10)
	mem.Append(models.Turn{UserQuery: "Tell me about Serum", BotResponse: "Serum is a skincare product."})

	ans, err := o.Answer(context.Background(), mem, newRetriever(t), "how much is it?")
	if err != nil {
		t.Fatal(err)
	}
	if emb.texts[0] != "What is the price of Serum?" || ans.Question != "What is the price of Serum?" {
		t.Errorf("embedded %q", emb.texts)
	}
	if len(gen.calls) != 2 {
		t.Fatalf("generator calls = %d", len(gen.calls))
	}
	last := gen.calls[1]
	if last[len(last)-1].Content != "how much is it?" {
		t.Error("the final prompt should carry the user's own question")
	}
	if w := mem.Window(); w[len(w)-1].UserQuery != "how much is it?" {
		t.Errorf("stored query = %q", w[len(w)-1].UserQuery)
	}
}

func TestAnswer_CondenseSkippedWithoutHistory(t *testing.T) {
	gen := &fakeGenerator{}
	o := New(&fakeEmbedder{vec: []float32{1, 0}}, gen, WithCondenseQuestion(true))
	if _, err := o.Answer(context.Background(), memory.New(10), newRetriever(t), "q"); err != nil {
		t.Fatal(err)
	}
	if len(gen.calls) != 1 {
		t.Errorf("generator calls = %d, want 1", len(gen.calls))
	}
}

func TestFormatRecord(t *testing.T) {
	rec := models.Record{Metadata: models.Metadata{"price": "120000", "name": "Serum\nVitamin  C", "notes": " "}}
	if got := FormatRecord(rec); got != "name: Serum Vitamin C; price: 120000" {
		t.Errorf("FormatRecord = %q", got)
	}
}

func TestPrompt_MessagesWithoutContext(t *testing.T) {
	p := &Prompt{System: "S", Question: "Q"}
	msgs := p.Messages()
	if len(msgs) != 2 || msgs[0].Content != "S" || msgs[1].Content != "Q" {
		t.Errorf("messages = %+v", msgs)
	}
}
