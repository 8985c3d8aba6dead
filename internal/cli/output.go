// Package cli formats command output for insightbot.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/insightbot/internal/builder"
	"github.com/hyperjump/insightbot/internal/models"
	"github.com/hyperjump/insightbot/internal/rag"
	"github.com/hyperjump/insightbot/internal/search"
	"github.com/hyperjump/insightbot/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const maxRecordWidth = 200

const rule = "─────────────────────────────────────────────────────────"

// ParseFormat validates an --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteHits writes a retrieval response to w in the given format.
func WriteHits(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d records in %s in %dms\n\n", len(response.Hits), response.Dataset, response.QueryTime)
	writeHitsText(w, response.Hits)
	return nil
}

func writeHitsText(w io.Writer, hits []models.Hit) {
	for _, h := range hits {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Rank: %d | Distance: %.4f | ID: %d\n", h.Rank, h.Distance, h.Record.ID)
		fmt.Fprintf(w, "%s\n\n", utils.Truncate(rag.FormatRecord(h.Record), maxRecordWidth))
	}
}

// WriteAnswer writes a bot answer. With verbose set, the retrieved records the
// answer was grounded on follow the reply in text mode.
func WriteAnswer(w io.Writer, ans *models.Answer, format OutputFormat, verbose bool) error {
	if format == OutputJSON {
		return writeJSON(w, ans)
	}
	fmt.Fprintln(w, ans.Response)
	if ans.Fallback && verbose && ans.Cause != nil {
		fmt.Fprintf(w, "\n(fallback: %v)\n", ans.Cause)
	}
	if verbose && len(ans.Hits) > 0 {
		fmt.Fprintf(w, "\n--- %d retrieved records ---\n", len(ans.Hits))
		writeHitsText(w, ans.Hits)
	}
	return nil
}

// WriteMatches writes keyword lookup results.
func WriteMatches(w io.Writer, dataset, query string, matches []models.Match, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"dataset": dataset, "query": query, "matches": matches})
	}
	fmt.Fprintf(w, "\nFound %d records in %s matching %q\n\n", len(matches), dataset, query)
	for i, m := range matches {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | ID: %d\n", i+1, m.Score, m.Record.ID)
		fmt.Fprintf(w, "%s\n\n", utils.Truncate(rag.FormatRecord(m.Record), maxRecordWidth))
	}
	return nil
}

// WriteStatus writes the status of each dataset.
func WriteStatus(w io.Writer, datasets []search.DatasetStatus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"datasets": datasets})
	}
	if len(datasets) == 0 {
		fmt.Fprintln(w, "no datasets")
		return nil
	}
	for _, d := range datasets {
		fmt.Fprintf(w, "%s\n", d.Name)
		if !d.Loaded {
			fmt.Fprintln(w, "  loaded:       false")
			continue
		}
		fmt.Fprintf(w, "  records:      %d\n", d.Size)
		fmt.Fprintf(w, "  dimension:    %d\n", d.Dimension)
		fmt.Fprintf(w, "  index_type:   %s\n", d.IndexType)
		fmt.Fprintf(w, "  keywords:     %t\n", d.Keywords)
		fmt.Fprintf(w, "  fingerprint:  %s\n", shortFingerprint(d.Fingerprint))
		if !d.BuiltAt.IsZero() {
			fmt.Fprintf(w, "  built_at:     %s\n", d.BuiltAt.Format(time.RFC3339))
		}
	}
	return nil
}

// WriteBuildResults writes one line per dataset build.
func WriteBuildResults(w io.Writer, results []*builder.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"results": results})
	}
	for _, r := range results {
		if r.Skipped {
			fmt.Fprintf(w, "%s: unchanged (%d records, %s)\n", r.Dataset, r.Count, shortFingerprint(r.Fingerprint))
			continue
		}
		fmt.Fprintf(w, "%s: built %d records of dimension %d in %s\n",
			r.Dataset, r.Count, r.Dimension, r.Duration.Round(time.Millisecond))
	}
	return nil
}

func shortFingerprint(fp string) string {
	fp = strings.TrimPrefix(fp, "sha256:")
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
