package utils

import (
	"math"
	"reflect"
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("got %s", got)
	}
	if got := Truncate("hello world", 6); got != "hello..." {
		t.Errorf("trailing space should be trimmed, got %q", got)
	}
	if got := Truncate("千と千尋の神隠し", 3); got != "千と千..." {
		t.Errorf("rune-aware truncate: got %s", got)
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Action|Sci-Fi", []string{"Action", "Sci-Fi"}},
		{"Drama, Romance ,", []string{"Drama", "Romance"}},
		{"", []string{}},
		{" | ", []string{}},
	}
	for _, tt := range tests {
		if got := SplitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeL2(t *testing.T) {
	x := []float32{3, 4}
	NormalizeL2(x)
	if math.Abs(float64(x[0])-0.6) > 1e-6 || math.Abs(float64(x[1])-0.8) > 1e-6 {
		t.Errorf("NormalizeL2 = %v", x)
	}
	zero := []float32{0, 0}
	NormalizeL2(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}
