package vector

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sbinet/npyio"
)

// ReadNPYFile reads a 2-D float32 or float64 NumPy array from path.
func ReadNPYFile(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open npy file: %w", err)
	}
	defer f.Close()
	rows, err := ReadNPY(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// ReadNPY decodes a 2-D C-ordered NumPy array of dtype f4 or f8 into rows of
// float32. The shape in the header must be backed by the data that follows it.
func ReadNPY(r io.Reader) ([][]float32, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read npy: %w", err)
	}
	br := bytes.NewReader(data)
	nr, err := npyio.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("not an npy file: %w", err)
	}

	descr := nr.Header.Descr
	var itemSize int
	switch descr.Type {
	case "<f4", ">f4", "=f4", "|f4":
		itemSize = 4
	case "<f8", ">f8", "=f8", "|f8":
		itemSize = 8
	default:
		return nil, fmt.Errorf("unsupported npy dtype %q (want f4 or f8)", descr.Type)
	}
	if descr.Fortran {
		return nil, fmt.Errorf("fortran-ordered npy arrays are not supported")
	}
	if len(descr.Shape) != 2 {
		return nil, fmt.Errorf("npy array must be 2-D, got shape %v", descr.Shape)
	}
	n, d := descr.Shape[0], descr.Shape[1]
	if n < 0 || d < 0 {
		return nil, fmt.Errorf("invalid npy shape %v", descr.Shape)
	}
	if d > 0 && n > math.MaxInt/d/itemSize {
		return nil, fmt.Errorf("npy shape %v overflows", descr.Shape)
	}
	if need, have := n*d*itemSize, br.Len(); need > have {
		return nil, fmt.Errorf("npy data truncated: shape %v needs %d bytes, have %d", descr.Shape, need, have)
	}

	rows := make([][]float32, n)
	if itemSize == 4 {
		var flat []float32
		if err := nr.Read(&flat); err != nil {
			return nil, fmt.Errorf("read npy data: %w", err)
		}
		for i := range rows {
			rows[i] = flat[i*d : (i+1)*d : (i+1)*d]
		}
		return rows, nil
	}

	var flat []float64
	if err := nr.Read(&flat); err != nil {
		return nil, fmt.Errorf("read npy data: %w", err)
	}
	for i := range rows {
		row := make([]float32, d)
		for j := range row {
			row[j] = float32(flat[i*d+j])
		}
		rows[i] = row
	}
	return rows, nil
}
