// Package fingerprint provides a deterministic content hash for a dataset's source files.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const prefix = "sha256:"

// Files returns a stable fingerprint over the contents of the given files, in order.
// Each file contributes its base name, size and bytes, so swapping the contents of
// two files or renaming one changes the result.
func Files(paths ...string) (string, error) {
	h := sha256.New()
	var size [8]byte
	for _, p := range paths {
		f, err := os.Open(filepath.Clean(p))
		if err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", p, err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return "", fmt.Errorf("fingerprint %s: %w", p, err)
		}
		io.WriteString(h, filepath.Base(p))
		binary.LittleEndian.PutUint64(size[:], uint64(info.Size()))
		h.Write(size[:])
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", p, err)
		}
	}
	return prefix + hex.EncodeToString(h.Sum(nil)), nil
}

// Dataset fingerprints a dataset's vector and metadata files together with the
// index type they will be built into.
func Dataset(indexType, vectorsPath, metadataPath string) (string, error) {
	fp, err := Files(vectorsPath, metadataPath)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(indexType + "\x00" + fp))
	return prefix + hex.EncodeToString(sum[:]), nil
}
