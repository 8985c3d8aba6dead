package corpus

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/insightbot/internal/models"
	"github.com/xuri/excelize/v2"
)

// SupportedTableExtensions lists metadata file extensions ReadTable understands.
var SupportedTableExtensions = []string{".csv", ".xlsx"}

// ReadTable reads the metadata table at path. The first row holds column names;
// every following row becomes one Metadata value.
func ReadTable(path string) ([]models.Metadata, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	return ReadTableBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ReadTableBytes parses content based on ext (with leading dot).
func ReadTableBytes(content []byte, ext string) ([]models.Metadata, error) {
	var rows [][]string
	var err error
	switch ext {
	case ".csv":
		rows, err = readCSV(content)
	case ".xlsx":
		rows, err = readExcel(content)
	default:
		return nil, fmt.Errorf("unsupported table format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return rowsToMetadata(rows), nil
}

func readCSV(content []byte) ([][]string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse CSV: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readExcel(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// rowsToMetadata maps data rows onto the header. Short rows leave missing
// columns empty; cells beyond the header are kept under positional names.
func rowsToMetadata(rows [][]string) []models.Metadata {
	if len(rows) == 0 {
		return nil
	}
	header := rows[0]
	out := make([]models.Metadata, 0, len(rows)-1)
	for _, row := range rows[1:] {
		md := make(models.Metadata, len(header))
		for i, col := range header {
			if i < len(row) {
				md[col] = row[i]
			} else {
				md[col] = ""
			}
		}
		for i := len(header); i < len(row); i++ {
			md[fmt.Sprintf("column_%d", i)] = row[i]
		}
		out = append(out, md)
	}
	return out
}
