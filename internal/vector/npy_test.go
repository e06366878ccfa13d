package vector

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var npyMagic = []byte("\x93NUMPY")

// npyBytes builds a version 1.0 .npy payload. values are written in the order given.
func npyBytes(t *testing.T, descr string, fortran bool, shape string, values []float64) []byte {
	t.Helper()
	order := "False"
	if fortran {
		order = "True"
	}
	header := "{'descr': '" + descr + "', 'fortran_order': " + order + ", 'shape': " + shape + ", }"
	pad := 64 - (len(npyMagic)+4+len(header)+1)%64
	header += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	var bo binary.ByteOrder = binary.LittleEndian
	if descr[0] == '>' {
		bo = binary.BigEndian
	}
	for _, v := range values {
		if strings.HasSuffix(descr, "f4") {
			b := make([]byte, 4)
			bo.PutUint32(b, math.Float32bits(float32(v)))
			buf.Write(b)
		} else {
			b := make([]byte, 8)
			bo.PutUint64(b, math.Float64bits(v))
			buf.Write(b)
		}
	}
	return buf.Bytes()
}

func TestReadNPY(t *testing.T) {
	want := [][]float32{{1, 2, 3}, {4, 5, 6}}
	tests := []struct {
		name    string
		descr   string
		fortran bool
		values  []float64
	}{
		{"float32 little endian", "<f4", false, []float64{1, 2, 3, 4, 5, 6}},
		{"float64 little endian", "<f8", false, []float64{1, 2, 3, 4, 5, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := npyBytes(t, tt.descr, tt.fortran, "(2, 3)", tt.values)
			got, err := ReadNPY(bytes.NewReader(data))
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 {
				t.Fatalf("rows = %d, want 2", len(got))
			}
			for i := range want {
				for j := range want[i] {
					if got[i][j] != want[i][j] {
						t.Errorf("[%d][%d] = %v, want %v", i, j, got[i][j], want[i][j])
					}
				}
			}
		})
	}
}

func TestReadNPY_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not npy", []byte("hello world, definitely not numpy")},
		{"int dtype", npyBytes(t, "<i8", false, "(1, 1)", []float64{0})},
		{"one dimensional", npyBytes(t, "<f4", false, "(3,)", []float64{1, 2, 3})},
		{"truncated data", npyBytes(t, "<f4", false, "(2, 2)", []float64{1, 2, 3})},
		{"fortran order", npyBytes(t, "<f4", true, "(2, 2)", []float64{1, 3, 2, 4})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadNPY(bytes.NewReader(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReadNPY_ShapeNotBackedByData(t *testing.T) {
	tests := []struct {
		name  string
		shape string
	}{
		{"overflowing element count", "(4000000000, 4000000000)"},
		{"large shape without data", "(200000, 100000)"},
		{"rows without data", "(3, 2)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := npyBytes(t, "<f4", false, tt.shape, []float64{1, 2})
			rows, err := ReadNPY(bytes.NewReader(data))
			if err == nil {
				t.Fatalf("expected error, got %d rows", len(rows))
			}
		})
	}
}

func TestReadNPYFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emb.npy")
	if err := os.WriteFile(path, npyBytes(t, "<f4", false, "(1, 2)", []float64{0.5, -0.5}), 0600); err != nil {
		t.Fatal(err)
	}
	rows, err := ReadNPYFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0][0] != 0.5 || rows[0][1] != -0.5 {
		t.Errorf("rows = %v", rows)
	}
	short := filepath.Join(t.TempDir(), "short.npy")
	if err := os.WriteFile(short, npyBytes(t, "<f8", false, "(1000, 384)", []float64{1}), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadNPYFile(short); err == nil {
		t.Error("expected error for truncated file")
	}
	if _, err := ReadNPYFile(filepath.Join(t.TempDir(), "missing.npy")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEncodeDecodeFloat32s(t *testing.T) {
	in := []float32{1.5, -2, 0, float32(math.Pi)}
	out, err := DecodeFloat32s(EncodeFloat32s(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	if _, err := DecodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for odd-length blob")
	}
}
