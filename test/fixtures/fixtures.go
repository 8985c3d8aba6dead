// Package fixtures writes dataset source files for tests: .npy embedding matrices
// and their aligned CSV or XLSX metadata tables.
package fixtures

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/insightbot/internal/config"
)

// WriteNPY writes vectors as a row-major little-endian float32 .npy file (format 1.0).
func WriteNPY(path string, vectors [][]float32) error {
	d := 0
	if len(vectors) > 0 {
		d = len(vectors[0])
	}
	dict := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", len(vectors), d)
	// magic(6) + version(2) + header length(2) + dict + newline, padded to 64 bytes.
	total := 10 + len(dict) + 1
	header := dict + strings.Repeat(" ", (64-total%64)%64) + "\n"

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	w.WriteString("\x93NUMPY\x01\x00")
	binary.Write(w, binary.LittleEndian, uint16(len(header)))
	w.WriteString(header)
	var buf [4]byte
	for _, row := range vectors {
		if len(row) != d {
			f.Close()
			return fmt.Errorf("ragged row: got %d values, want %d", len(row), d)
		}
		for _, v := range row {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
			w.Write(buf[:])
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes a header row followed by rows.
func WriteCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteXLSX writes a header row followed by rows into the first sheet of a workbook.
func WriteXLSX(path string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

// WriteDataset writes the catalog's vectors and metadata under dir and returns the
// dataset entry pointing at them. ext selects the table format: ".csv" or ".xlsx".
func WriteDataset(dir, name string, c *Catalog, ext string) (config.DatasetConfig, error) {
	ds := config.DatasetConfig{
		Name:     name,
		Vectors:  filepath.Join(dir, name+".npy"),
		Metadata: filepath.Join(dir, name+ext),
	}
	if err := WriteNPY(ds.Vectors, c.Vectors()); err != nil {
		return ds, err
	}
	var err error
	switch ext {
	case ".csv":
		err = WriteCSV(ds.Metadata, c.Header, c.Rows())
	case ".xlsx":
		err = WriteXLSX(ds.Metadata, c.Header, c.Rows())
	default:
		err = fmt.Errorf("unsupported table extension %q", ext)
	}
	return ds, err
}
