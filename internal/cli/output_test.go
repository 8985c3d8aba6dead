package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/insightbot/internal/builder"
	"github.com/hyperjump/insightbot/internal/models"
	"github.com/hyperjump/insightbot/internal/search"
)

func sampleHits() []models.Hit {
	return []models.Hit{
		{Rank: 1, Distance: 0.25, Record: models.Record{ID: 3, Metadata: models.Metadata{"product_name": "Serum", "price": "120000"}}},
		{Rank: 2, Distance: 1.5, Record: models.Record{ID: 9, Metadata: models.Metadata{"product_name": "Toner"}}},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteHits_JSON(t *testing.T) {
	response := &models.SearchResponse{Dataset: "produk", Query: "serum", Hits: sampleHits(), QueryTime: 7}
	var buf bytes.Buffer
	if err := WriteHits(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteHits(json): %v", err)
	}
	var decoded models.SearchResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Dataset != "produk" || len(decoded.Hits) != 2 || decoded.Hits[1].Record.ID != 9 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteHits_Text(t *testing.T) {
	response := &models.SearchResponse{Dataset: "produk", Query: "serum", Hits: sampleHits(), QueryTime: 7}
	var buf bytes.Buffer
	if err := WriteHits(&buf, response, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 2 records in produk", "Rank: 1 | Distance: 0.2500 | ID: 3", "price: 120000; product_name: Serum"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteAnswer(t *testing.T) {
	ans := &models.Answer{
		Response: "Maaf, coba lagi.",
		Fallback: true,
		Hits:     sampleHits(),
		Cause:    errors.New("generation timed out"),
	}

	var quiet bytes.Buffer
	if err := WriteAnswer(&quiet, ans, OutputText, false); err != nil {
		t.Fatal(err)
	}
	if quiet.String() != "Maaf, coba lagi.\n" {
		t.Errorf("quiet output = %q", quiet.String())
	}

	var verbose bytes.Buffer
	_ = WriteAnswer(&verbose, ans, OutputText, true)
	if !strings.Contains(verbose.String(), "generation timed out") || !strings.Contains(verbose.String(), "2 retrieved records") {
		t.Errorf("verbose output = %q", verbose.String())
	}

	var js bytes.Buffer
	_ = WriteAnswer(&js, ans, OutputJSON, true)
	if strings.Contains(js.String(), "timed out") {
		t.Error("JSON output must not carry the failure cause")
	}
}

func TestWriteMatches(t *testing.T) {
	matches := []models.Match{{Record: models.Record{ID: 4, Metadata: models.Metadata{"caption": "promo SALE4"}}, Score: 1.2}}
	var buf bytes.Buffer
	if err := WriteMatches(&buf, "produk", "sale4", matches, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `matching "sale4"`) || !strings.Contains(buf.String(), "caption: promo SALE4") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	statuses := []search.DatasetStatus{
		{Name: "produk", Loaded: true, Size: 10, Dimension: 4, IndexType: "flat", Fingerprint: "sha256:0123456789abcdef", BuiltAt: time.Unix(0, 0).UTC()},
		{Name: "tiktok"},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, statuses, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"records:      10", "fingerprint:  0123456789ab\n", "tiktok\n  loaded:       false"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	_ = WriteStatus(&buf, nil, OutputText)
	if buf.String() != "no datasets\n" {
		t.Errorf("empty status = %q", buf.String())
	}
}

func TestWriteBuildResults(t *testing.T) {
	results := []*builder.Result{
		{Dataset: "produk", Count: 10, Dimension: 4, Duration: 1500 * time.Microsecond},
		{Dataset: "tiktok", Skipped: true, Count: 3, Fingerprint: "sha256:abc"},
	}
	var buf bytes.Buffer
	if err := WriteBuildResults(&buf, results, OutputText); err != nil {
		t.Fatal(err)
	}
	want := "produk: built 10 records of dimension 4 in 2ms\ntiktok: unchanged (3 records, abc)\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
