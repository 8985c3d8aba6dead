package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/insightbot/internal/models"
	"github.com/hyperjump/insightbot/internal/rag"
	"github.com/hyperjump/insightbot/internal/search"
	"github.com/hyperjump/insightbot/internal/session"
	"github.com/hyperjump/insightbot/test/fixtures"
	"github.com/hyperjump/insightbot/test/testenv"
)

type testServer struct {
	srv *Server
	env *testenv.Env
	gen *fixtures.Generator
	h   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	env := testenv.New(t, "produk", fixtures.BuildCatalog(10, 4))
	gen := &fixtures.Generator{}
	o := rag.New(env.Embedder, gen, rag.WithTopK(3), rag.WithFallbackMessage(env.Config.Retrieval.FallbackMessage))
	sessions := session.NewManager(o, env.Engine,
		session.WithTranscripts(env.Storage),
		session.WithDefaultDataset("produk"),
	)
	srv := NewServer(env.Engine, sessions, env.Builder, env.Storage, env.Config, zap.NewNop())
	return &testServer{srv: srv, env: env, gen: gen, h: srv.Handler()}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func (ts *testServer) createSession(t *testing.T) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/sessions", models.SessionRequest{Dataset: "produk"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", w.Code, w.Body.String())
	}
	var out struct {
		ID string `json:"id"`
	}
	decode(t, w, &out)
	return out.ID
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	ts := newTestServer(t)
	p := ts.env.Catalog.Products[6]

	w := ts.do(t, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: p.Name, K: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	decode(t, w, &resp)
	if resp.Dataset != "produk" || len(resp.Hits) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Hits[0].Record.ID != 6 || resp.Hits[0].Distance != 0 {
		t.Errorf("expected product 6 first, got %+v", resp.Hits[0])
	}
	if resp.Hits[0].Record.Metadata["product_name"] != p.Name {
		t.Errorf("metadata = %+v", resp.Hits[0].Record.Metadata)
	}
}

func TestHandleSearch_Errors(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"empty query", models.SearchQuery{Dataset: "produk"}, http.StatusBadRequest},
		{"unknown dataset", models.SearchQuery{Dataset: "nope", Query: "x"}, http.StatusNotFound},
		{"bad body", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/search", tt.body)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)
	p := ts.env.Catalog.Products[2]

	w := ts.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", models.AskRequest{Query: p.Name})
	if w.Code != http.StatusOK {
		t.Fatalf("ask: %d %s", w.Code, w.Body.String())
	}
	var ans models.Answer
	decode(t, w, &ans)
	if ans.Fallback || ans.Turn == nil || ans.Turn.SequenceNumber != 1 {
		t.Fatalf("unexpected answer %+v", ans)
	}
	if len(ans.Hits) != 3 || ans.Hits[0].Record.ID != 2 {
		t.Errorf("hits = %+v", ans.Hits)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/memory", nil)
	var mem struct {
		Turns []models.Turn `json:"turns"`
	}
	decode(t, w, &mem)
	if len(mem.Turns) != 1 || mem.Turns[0].UserQuery != p.Name {
		t.Errorf("memory = %+v", mem.Turns)
	}

	w = ts.do(t, http.MethodDelete, "/api/v1/sessions/"+id+"/memory", nil)
	if w.Code != http.StatusOK {
		t.Errorf("clear: %d", w.Code)
	}
	w = ts.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/memory", nil)
	decode(t, w, &mem)
	if len(mem.Turns) != 0 {
		t.Errorf("memory after clear = %+v", mem.Turns)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/transcript", nil)
	var tr struct {
		Entries []models.TranscriptEntry `json:"entries"`
	}
	decode(t, w, &tr)
	if len(tr.Entries) != 1 {
		t.Errorf("transcript = %+v", tr.Entries)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/sessions", nil)
	var list struct {
		Sessions []session.Info `json:"sessions"`
	}
	decode(t, w, &list)
	if len(list.Sessions) != 1 || list.Sessions[0].ID != id {
		t.Errorf("sessions = %+v", list.Sessions)
	}

	w = ts.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	if w.Code != http.StatusOK {
		t.Errorf("delete: %d", w.Code)
	}
	w = ts.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", models.AskRequest{Query: p.Name})
	if w.Code != http.StatusNotFound {
		t.Errorf("ask after delete: got %d, want 404", w.Code)
	}
}

func TestHandleAsk_Fallback(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)
	ts.gen.Err = errors.New("upstream 503")

	w := ts.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", models.AskRequest{Query: ts.env.Catalog.Products[0].Name})
	if w.Code != http.StatusOK {
		t.Fatalf("fallback should be 200, got %d", w.Code)
	}
	var ans models.Answer
	decode(t, w, &ans)
	if !ans.Fallback || ans.Response != ts.env.Config.Retrieval.FallbackMessage {
		t.Errorf("unexpected answer %+v", ans)
	}
	w = ts.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/memory", nil)
	var mem struct {
		Turns []models.Turn `json:"turns"`
	}
	decode(t, w, &mem)
	if len(mem.Turns) != 0 {
		t.Errorf("fallback must not touch memory, got %+v", mem.Turns)
	}
}

func TestHandleAsk_BadRequests(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t)
	w := ts.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", models.AskRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query: got %d", w.Code)
	}
	w = ts.do(t, http.MethodPost, "/api/v1/sessions/missing/messages", models.AskRequest{Query: "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown session: got %d", w.Code)
	}
	w = ts.do(t, http.MethodPost, "/api/v1/sessions", models.SessionRequest{Dataset: "nope"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown dataset: got %d", w.Code)
	}
}

func TestHandleRecords(t *testing.T) {
	ts := newTestServer(t)
	p := ts.env.Catalog.Products[4]

	w := ts.do(t, http.MethodGet, "/api/v1/datasets/produk/records/4", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get record: %d %s", w.Code, w.Body.String())
	}
	var rec models.Record
	decode(t, w, &rec)
	if rec.ID != 4 || rec.Metadata["product_name"] != p.Name {
		t.Errorf("record = %+v", rec)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/datasets/produk/records/999", http.StatusNotFound},
		{"/api/v1/datasets/produk/records/abc", http.StatusBadRequest},
		{"/api/v1/datasets/nope/records/1", http.StatusNotFound},
		{"/api/v1/datasets/produk/records", http.StatusBadRequest},
		{"/api/v1/datasets/produk/records?q=x&limit=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := ts.do(t, http.MethodGet, tt.path, nil); w.Code != tt.want {
			t.Errorf("%s: got %d, want %d", tt.path, w.Code, tt.want)
		}
	}
}

func TestHandleLookup(t *testing.T) {
	ts := newTestServer(t)
	code := "SALE7"
	w := ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/datasets/produk/records?q=%s&field=caption", code), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("lookup: %d %s", w.Code, w.Body.String())
	}
	var out struct {
		Matches []models.Match `json:"matches"`
	}
	decode(t, w, &out)
	if len(out.Matches) != 1 || out.Matches[0].Record.ID != 7 {
		t.Errorf("matches = %+v", out.Matches)
	}
}

func TestHandleDatasetsAndStatus(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/v1/datasets", nil)
	var ds struct {
		Datasets []search.DatasetStatus `json:"datasets"`
	}
	decode(t, w, &ds)
	if len(ds.Datasets) != 1 || ds.Datasets[0].Name != "produk" || ds.Datasets[0].Size != 10 {
		t.Errorf("datasets = %+v", ds.Datasets)
	}

	ts.createSession(t)
	w = ts.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var status map[string]interface{}
	decode(t, w, &status)
	if status["sessions"].(float64) != 1 {
		t.Errorf("sessions = %v", status["sessions"])
	}
	if status["built_datasets"].(float64) != 1 {
		t.Errorf("built_datasets = %v", status["built_datasets"])
	}
	if _, ok := status["disk_usage_bytes"]; !ok {
		t.Error("status should report disk usage")
	}
}

func TestHandleReload(t *testing.T) {
	ts := newTestServer(t)

	// Same seed, two more rows appended.
	cat := fixtures.BuildCatalog(12, 4)
	if _, err := fixtures.WriteDataset(dirOf(ts.env.Dataset.Vectors), "produk", cat, ".csv"); err != nil {
		t.Fatal(err)
	}
	w := ts.do(t, http.MethodPost, "/api/v1/datasets/produk/reload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reload: %d %s", w.Code, w.Body.String())
	}
	var res struct {
		Skipped bool `json:"skipped"`
		Count   int  `json:"count"`
	}
	decode(t, w, &res)
	if res.Skipped || res.Count != 12 {
		t.Errorf("reload result = %+v", res)
	}
	d, _ := ts.env.Engine.Dataset("produk")
	if d.Status().Size != 12 {
		t.Errorf("engine should serve the rebuilt index, size %d", d.Status().Size)
	}

	if w := ts.do(t, http.MethodPost, "/api/v1/datasets/nope/reload", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown dataset reload: got %d", w.Code)
	}
}

func TestHandleReload_NotEnabled(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.builder = nil
	h := ts.srv.Handler()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/datasets/produk/reload", nil))
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{search.ErrUnknownDataset, http.StatusNotFound},
		{fmt.Errorf("x: %w", session.ErrNotFound), http.StatusNotFound},
		{search.ErrNotLoaded, http.StatusServiceUnavailable},
		{rag.ErrEmptyQuery, http.StatusBadRequest},
		{fmt.Errorf("%w: dim", rag.ErrConfiguration), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func dirOf(path string) string {
	return filepath.Dir(path)
}
