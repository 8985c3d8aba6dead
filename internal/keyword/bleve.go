package keyword

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/insightbot/internal/models"
)

const batchSize = 500

// document is the indexed form of a record. Content holds every metadata value so an
// unscoped query matches any column; Fields keeps columns addressable by name.
type document struct {
	ID      string            `json:"id"`
	Content string            `json:"content"`
	Fields  map[string]string `json:"fields"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so product names and
	// handles match as written.
	im.DefaultAnalyzer = standard.Name

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("id", keywordFieldMapping)
	// Metadata columns vary per dataset, so they are mapped dynamically.
	docMapping.AddSubDocumentMapping("fields", bleve.NewDocumentMapping())
	im.AddDocumentMapping("record", docMapping)
	im.DefaultType = "record"
	im.DefaultMapping = docMapping
	return im
}

// Build indexes records into a fresh Bleve index at path, replacing any index already
// there. The new index is written beside path and renamed into place when complete.
func Build(ctx context.Context, path string, records []models.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create keyword index dir: %w", err)
	}
	tmp := fmt.Sprintf("%s.tmp-%d", path, time.Now().UnixNano())
	index, err := bleve.New(tmp, newMapping())
	if err != nil {
		return fmt.Errorf("failed to create Bleve index: %w", err)
	}
	if err := indexRecords(ctx, index, records); err != nil {
		index.Close()
		os.RemoveAll(tmp)
		return err
	}
	if err := index.Close(); err != nil {
		os.RemoveAll(tmp)
		return fmt.Errorf("failed to close Bleve index: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		os.RemoveAll(tmp)
		return fmt.Errorf("failed to remove old keyword index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.RemoveAll(tmp)
		return fmt.Errorf("failed to publish keyword index: %w", err)
	}
	return nil
}

func indexRecords(ctx context.Context, index bleve.Index, records []models.Record) error {
	batch := index.NewBatch()
	for i, rec := range records {
		if err := batch.Index(strconv.FormatInt(rec.ID, 10), toDocument(rec)); err != nil {
			return fmt.Errorf("failed to index record %d: %w", rec.ID, err)
		}
		if batch.Size() >= batchSize || i == len(records)-1 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("failed to write keyword batch: %w", err)
			}
			batch.Reset()
		}
	}
	return nil
}

func toDocument(rec models.Record) document {
	keys := rec.Metadata.Keys()
	values := make([]string, 0, len(keys))
	fields := make(map[string]string, len(keys))
	for _, k := range keys {
		v := rec.Metadata[k]
		if v == "" {
			continue
		}
		values = append(values, v)
		fields[fieldName(k)] = v
	}
	return document{
		ID:      strconv.FormatInt(rec.ID, 10),
		Content: strings.Join(values, " \n"),
		Fields:  fields,
	}
}

// fieldName normalizes a column header into a Bleve field path segment.
func fieldName(column string) string {
	name := strings.ToLower(strings.TrimSpace(column))
	return strings.NewReplacer(".", "_", " ", "_").Replace(name)
}

// Open opens an existing Bleve index at path.
func Open(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoIndex, path)
		}
		return nil, err
	}
	index, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Search runs a match query and returns up to limit results, best first.
// When opts.FuzzyEnabled is true, fuzzy matching is used for typo tolerance.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Result, error) {
	field := "content"
	fuzzyEnabled := false
	fuzziness := 1
	if opts != nil {
		if opts.Field != "" {
			field = "fields." + fieldName(opts.Field)
		}
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	var q blevequery.Query
	if fuzzyEnabled {
		q = buildFuzzyQuery(query, fuzziness, field)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		q = mq
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]Result, 0, len(results.Hits))
	for _, hit := range results.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid record id %q in keyword index: %w", hit.ID, err)
		}
		out = append(out, Result{ID: id, Score: hit.Score})
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per term.
func buildFuzzyQuery(queryStr string, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(field)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the total number of records in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
