package fingerprint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFiles_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.npy", "vectors")
	b := writeFile(t, dir, "b.csv", "id,name\n1,x\n")

	fp1, err := Files(a, b)
	if err != nil {
		t.Fatal(err)
	}
	fp2, err := Files(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if fp1 != fp2 {
		t.Errorf("same files should give same fingerprint: %q vs %q", fp1, fp2)
	}
	if !strings.HasPrefix(fp1, prefix) {
		t.Errorf("fingerprint should have prefix %q: got %q", prefix, fp1)
	}
}

func TestFiles_Changes(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.npy", "vectors")
	b := writeFile(t, dir, "b.csv", "meta")
	base, err := Files(a, b)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func() []string
	}{
		{"content changed", func() []string {
			writeFile(t, dir, "b.csv", "meta2")
			return []string{a, b}
		}},
		{"order swapped", func() []string {
			writeFile(t, dir, "b.csv", "meta")
			return []string{b, a}
		}},
		{"renamed", func() []string {
			c := writeFile(t, dir, "c.csv", "meta")
			return []string{a, c}
		}},
		{"boundary moved", func() []string {
			x := writeFile(t, dir, "x.npy", "vectorsm")
			y := writeFile(t, dir, "y.csv", "eta")
			return []string{x, y}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp, err := Files(tt.mutate()...)
			if err != nil {
				t.Fatal(err)
			}
			if fp == base {
				t.Errorf("fingerprint should change")
			}
		})
	}
}

func TestFiles_Missing(t *testing.T) {
	if _, err := Files(filepath.Join(t.TempDir(), "nope.npy")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDataset_IndexTypeMatters(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.npy", "vectors")
	b := writeFile(t, dir, "b.csv", "meta")
	flat, err := Dataset("flat", a, b)
	if err != nil {
		t.Fatal(err)
	}
	other, err := Dataset("ivf", a, b)
	if err != nil {
		t.Fatal(err)
	}
	if flat == other {
		t.Error("index type should affect the fingerprint")
	}
}
