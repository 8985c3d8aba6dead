package vector

import (
	"bufio"
	"container/heap"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

const headerSize = 8

// FlatIndex is an exhaustive squared-L2 index. It is immutable once built or
// loaded, so concurrent searches need no locking.
type FlatIndex struct {
	dimension int
	vectors   []float32 // row-major, len == len(ids)*dimension
	ids       []uint64
}

// Build copies every record vector from src into a new index, preserving record order.
func Build(src Source) (*FlatIndex, error) {
	d := src.Dimension()
	if d <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrDimensionMismatch, d)
	}
	records := src.Records()
	idx := &FlatIndex{
		dimension: d,
		vectors:   make([]float32, 0, len(records)*d),
		ids:       make([]uint64, 0, len(records)),
	}
	for _, rec := range records {
		if len(rec.Vector) != d {
			return nil, fmt.Errorf("%w: record %d has length %d, expected %d", ErrDimensionMismatch, rec.ID, len(rec.Vector), d)
		}
		idx.vectors = append(idx.vectors, rec.Vector...)
		idx.ids = append(idx.ids, uint64(rec.ID))
	}
	return idx, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Dimension returns the vector length.
func (f *FlatIndex) Dimension() int {
	return f.dimension
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	return len(f.ids)
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}

// Vector returns the vector stored at slot.
func (f *FlatIndex) Vector(slot int) []float32 {
	return f.vectors[slot*f.dimension : (slot+1)*f.dimension]
}

// Search returns the min(k, n) nearest vectors by squared L2 distance, ascending,
// with ties ordered by slot.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: query has length %d, index expects %d", ErrDimensionMismatch, len(query), f.dimension)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	n := len(f.ids)
	if k > n {
		k = n
	}
	h := make(resultHeap, 0, k)
	for slot := 0; slot < n; slot++ {
		if slot%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		dist := SquaredL2(query, f.Vector(slot))
		if len(h) < k {
			heap.Push(&h, Result{ID: f.ids[slot], Slot: slot, Distance: dist})
			continue
		}
		// Slots arrive in increasing order, so an equal distance never displaces the top.
		if dist < h[0].Distance {
			h[0] = Result{ID: f.ids[slot], Slot: slot, Distance: dist}
			heap.Fix(&h, 0)
		}
	}
	out := make([]Result, len(h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Result)
	}
	return out, nil
}

// Save writes the index to path via a temp file and rename. Format (little endian):
// dimension uint32, count uint32, count*dimension float32, count uint64 ids.
func (f *FlatIndex) Save(path string) error {
	if path == "" {
		return fmt.Errorf("index path is empty")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	if err := f.encode(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("publish index: %w", err)
	}
	return nil
}

func (f *FlatIndex) encode(w *bufio.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(f.dimension)); err != nil {
		return fmt.Errorf("write dimension: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(f.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	if _, err := w.Write(float32SliceToBytes(f.vectors)); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, f.ids); err != nil {
		return fmt.Errorf("write ids: %w", err)
	}
	return nil
}

// LoadFlat reads an index written by Save. The payload must be exactly the size
// the header declares.
func LoadFlat(path string) (*FlatIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index file: %w", err)
	}
	return decodeFlat(data)
}

func decodeFlat(data []byte) (*FlatIndex, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptIndex, len(data))
	}
	d := uint64(binary.LittleEndian.Uint32(data[0:4]))
	n := uint64(binary.LittleEndian.Uint32(data[4:8]))
	if d == 0 {
		return nil, fmt.Errorf("%w: zero dimension", ErrCorruptIndex)
	}
	// Each row is d float32s plus one uint64 id. Dividing the payload by the row
	// size cannot overflow, unlike multiplying the header out.
	row := 4*d + 8
	body := uint64(len(data) - headerSize)
	if body%row != 0 || body/row != n {
		return nil, fmt.Errorf("%w: header declares %d x %d, payload has %d bytes", ErrCorruptIndex, n, d, body)
	}
	vecBytes := n * d * 4
	payload := data[headerSize:]
	idx := &FlatIndex{
		dimension: int(d),
		vectors:   bytesToFloat32Slice(payload[:vecBytes]),
		ids:       make([]uint64, n),
	}
	idBytes := payload[vecBytes:]
	for i := range idx.ids {
		idx.ids[i] = binary.LittleEndian.Uint64(idBytes[i*8 : (i+1)*8])
	}
	return idx, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// resultHeap is a max-heap on (Distance, Slot): the root is the worst kept result.
type resultHeap []Result

func (h resultHeap) Len() int { return len(h) }
func (h resultHeap) Less(i, j int) bool {
	if h[i].Distance != h[j].Distance {
		return h[i].Distance > h[j].Distance
	}
	return h[i].Slot > h[j].Slot
}
func (h resultHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)   { *h = append(*h, x.(Result)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
