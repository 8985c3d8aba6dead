package corpus

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"
)

// ReadVectors reads a two-dimensional float32 or float64 NumPy array from path.
// float64 input is narrowed to float32.
func ReadVectors(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vectors: %w", err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read npy header %s: %w", path, err)
	}
	shape := r.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, fmt.Errorf("%w: %s has shape %v, expected (n, d)", ErrShapeMismatch, path, shape)
	}
	n, d := shape[0], shape[1]
	if n < 0 || d < 0 {
		return nil, fmt.Errorf("%w: %s has shape %v", ErrShapeMismatch, path, shape)
	}
	if n == 0 {
		return nil, nil
	}

	var elem int64
	switch r.Header.Descr.Type {
	case "<f4", "f4", "float32":
		elem = 4
	case "<f8", "f8", "float64":
		elem = 8
	default:
		return nil, fmt.Errorf("unsupported npy dtype %q in %s", r.Header.Descr.Type, path)
	}
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat vectors: %w", err)
	}
	// The data cannot be larger than the file; this also rules out n*d overflowing.
	if d == 0 || int64(n) > st.Size()/elem/int64(d) {
		return nil, fmt.Errorf("%w: %s declares shape %v but holds %d bytes", ErrShapeMismatch, path, shape, st.Size())
	}

	flat := make([]float32, n*d)
	switch elem {
	case 4:
		if err := r.Read(&flat); err != nil {
			return nil, fmt.Errorf("read npy data %s: %w", path, err)
		}
	case 8:
		wide := make([]float64, n*d)
		if err := r.Read(&wide); err != nil {
			return nil, fmt.Errorf("read npy data %s: %w", path, err)
		}
		for i, v := range wide {
			flat[i] = float32(v)
		}
	}

	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		row := make([]float32, d)
		if r.Header.Descr.Fortran {
			for j := 0; j < d; j++ {
				row[j] = flat[j*n+i]
			}
		} else {
			copy(row, flat[i*d:(i+1)*d])
		}
		out[i] = row
	}
	return out, nil
}
