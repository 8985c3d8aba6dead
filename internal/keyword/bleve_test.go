package keyword

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/insightbot/internal/models"
)

func catalog() []models.Record {
	return []models.Record{
		{ID: 0, Metadata: models.Metadata{"Product Name": "Serum Vitamin C", "category": "skincare"}},
		{ID: 1, Metadata: models.Metadata{"Product Name": "Matte Lipstick", "category": "makeup"}},
		{ID: 2, Metadata: models.Metadata{"Product Name": "Sunscreen SPF 50", "category": "skincare", "note": ""}},
	}
}

func buildIndex(t *testing.T, records []models.Record) *BleveIndex {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ads.bleve")
	if err := Build(context.Background(), path, records); err != nil {
		t.Fatalf("Build: %v", err)
	}
	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveIndex_Search(t *testing.T) {
	idx := buildIndex(t, catalog())
	ctx := context.Background()

	tests := []struct {
		name    string
		query   string
		opts    *SearchOptions
		wantIDs []int64
	}{
		{"any column", "lipstick", nil, []int64{1}},
		{"case insensitive", "SERUM", nil, []int64{0}},
		{"field scoped", "skincare", &SearchOptions{Field: "category"}, []int64{0, 2}},
		{"field scoped miss", "skincare", &SearchOptions{Field: "Product Name"}, nil},
		{"fuzzy", "lipstik", &SearchOptions{FuzzyEnabled: true}, []int64{1}},
		{"no match", "perfume", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := idx.Search(ctx, tt.query, 10, tt.opts)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			got := make(map[int64]bool)
			for _, r := range results {
				got[r.ID] = true
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %v, want ids %v", results, tt.wantIDs)
			}
			for _, id := range tt.wantIDs {
				if !got[id] {
					t.Errorf("missing id %d in %v", id, results)
				}
			}
		})
	}
}

func TestBleveIndex_Limit(t *testing.T) {
	idx := buildIndex(t, catalog())
	results, err := idx.Search(context.Background(), "skincare", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestBuild_ReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ads.bleve")
	ctx := context.Background()
	if err := Build(ctx, path, catalog()); err != nil {
		t.Fatal(err)
	}
	if err := Build(ctx, path, catalog()[:1]); err != nil {
		t.Fatal(err)
	}
	idx, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	count, err := idx.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("DocCount = %d, want 1", count)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the published index, found %d entries", len(entries))
	}
}

func TestBuild_Cancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ads.bleve")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Build(ctx, path, catalog()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("cancelled build should not publish an index")
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "none.bleve")); !errors.Is(err, ErrNoIndex) {
		t.Errorf("expected ErrNoIndex, got %v", err)
	}
}

func TestFieldName(t *testing.T) {
	tests := map[string]string{
		"Product Name": "product_name",
		" category ":   "category",
		"a.b":          "a_b",
	}
	for in, want := range tests {
		if got := fieldName(in); got != want {
			t.Errorf("fieldName(%q) = %q, want %q", in, got, want)
		}
	}
}
