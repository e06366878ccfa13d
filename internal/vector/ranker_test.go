package vector

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func mustMatrix(t *testing.T, rows [][]float32) *Matrix {
	t.Helper()
	m, err := NewMatrix(rows)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	return m
}

func TestRank_TopTwo(t *testing.T) {
	m := mustMatrix(t, [][]float32{{1, 0}, {0, 1}, {1, 1}})
	got, err := Rank([]float32{1, 0}, m, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].Index != 0 || math.Abs(got[0].Score-1.0) > 1e-9 {
		t.Errorf("first match = %+v, want index 0 score 1.0", got[0])
	}
	if got[1].Index != 2 || math.Abs(got[1].Score-math.Sqrt2/2) > 1e-6 {
		t.Errorf("second match = %+v, want index 2 score ~0.707", got[1])
	}
}

func TestRank_ZeroVectorScoresZero(t *testing.T) {
	m := mustMatrix(t, [][]float32{{0.5, 0.5}, {0, 0}, {-1, 0}})
	got, err := Rank([]float32{1, 0}, m, 3)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, r := range got {
		if math.IsNaN(r.Score) {
			t.Fatalf("NaN score for index %d", r.Index)
		}
		if r.Index == 1 {
			found = true
			if r.Score != 0 {
				t.Errorf("zero vector score = %v, want exactly 0", r.Score)
			}
		}
	}
	if !found {
		t.Error("zero vector missing from results")
	}
	if got[2].Index != 2 || got[2].Score != -1 {
		t.Errorf("opposite vector should rank last with -1, got %+v", got[2])
	}
}

func TestRank_ZeroQuery(t *testing.T) {
	m := mustMatrix(t, [][]float32{{1, 0}, {0, 1}, {1, 1}})
	got, err := Rank([]float32{0, 0}, m, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []Match{{Index: 0, Score: 0}, {Index: 1, Score: 0}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Rank(zero query) = %+v, want %+v", got, want)
	}
}

func TestRank_TieBreakByIndex(t *testing.T) {
	// Rows 1, 3 and 4 are parallel to the query with different magnitudes.
	m := mustMatrix(t, [][]float32{{0, 1}, {2, 0}, {0, -1}, {1, 0}, {5, 0}})
	got, err := Rank([]float32{1, 0}, m, 3)
	if err != nil {
		t.Fatal(err)
	}
	wantIdx := []int{1, 3, 4}
	for i, r := range got {
		if r.Index != wantIdx[i] {
			t.Errorf("position %d: index %d, want %d (results %+v)", i, r.Index, wantIdx[i], got)
		}
	}
}

func TestRank_LengthClamped(t *testing.T) {
	m := mustMatrix(t, [][]float32{{1, 0}, {0, 1}})
	tests := []struct {
		k    int
		want int
	}{
		{1, 1},
		{2, 2},
		{3, 2},
		{100, 2},
	}
	for _, tt := range tests {
		got, err := Rank([]float32{1, 1}, m, tt.k)
		if err != nil {
			t.Fatalf("k=%d: %v", tt.k, err)
		}
		if len(got) != tt.want {
			t.Errorf("k=%d: len=%d, want %d", tt.k, len(got), tt.want)
		}
	}
}

func TestRank_DescendingAndDeterministic(t *testing.T) {
	rows := make([][]float32, 200)
	for i := range rows {
		rows[i] = []float32{float32(math.Sin(float64(i))), float32(math.Cos(float64(i*7))), float32(i%5) - 2}
	}
	m := mustMatrix(t, rows)
	query := []float32{0.3, -0.2, 0.9}
	first, err := Rank(query, m, 25)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(first); i++ {
		if first[i-1].Score < first[i].Score {
			t.Fatalf("not descending at %d: %+v then %+v", i, first[i-1], first[i])
		}
		if first[i-1].Score == first[i].Score && first[i-1].Index > first[i].Index {
			t.Fatalf("tie not ordered by index at %d", i)
		}
	}
	for n := 0; n < 5; n++ {
		again, err := Rank(query, m, 25)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatal("Rank is not deterministic")
		}
	}
}

func TestRank_MatchesFullSort(t *testing.T) {
	rows := make([][]float32, 50)
	for i := range rows {
		rows[i] = []float32{float32(i % 7), float32(i % 3), 1}
	}
	m := mustMatrix(t, rows)
	query := []float32{1, 2, 0.5}
	all, err := Rank(query, m, m.Len())
	if err != nil {
		t.Fatal(err)
	}
	top, err := Rank(query, m, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(all[:10], top) {
		t.Errorf("top-10 differs from prefix of full ranking:\n%+v\n%+v", top, all[:10])
	}
}

func TestRank_SelfSimilarity(t *testing.T) {
	rows := [][]float32{{0.2, 0.1, 0.7}, {0.9, 0.3, 0.1}, {0.1, 0.8, 0.2}}
	m := mustMatrix(t, rows)
	for i, row := range rows {
		got, err := Rank(row, m, 1)
		if err != nil {
			t.Fatal(err)
		}
		if got[0].Index != i {
			t.Errorf("row %d: top index %d", i, got[0].Index)
		}
		if math.Abs(got[0].Score-1) > 1e-6 || got[0].Score > 1 {
			t.Errorf("row %d: self score %v", i, got[0].Score)
		}
	}
}

func TestRank_DoesNotMutateInputs(t *testing.T) {
	rows := [][]float32{{3, 4}, {1, 0}}
	m := mustMatrix(t, rows)
	query := []float32{6, 8}
	if _, err := Rank(query, m, 2); err != nil {
		t.Fatal(err)
	}
	if query[0] != 6 || query[1] != 8 {
		t.Errorf("query mutated: %v", query)
	}
	row, _ := m.Row(0)
	if row[0] != 3 || row[1] != 4 {
		t.Errorf("matrix row mutated: %v", row)
	}
}

func TestRank_Errors(t *testing.T) {
	m := mustMatrix(t, [][]float32{{1, 0, 0}})
	empty := mustMatrix(t, nil)
	nan := float32(math.NaN())
	tests := []struct {
		name  string
		query []float32
		m     *Matrix
		k     int
		want  error
	}{
		{"dimension mismatch short", []float32{1, 0}, m, 1, ErrDimensionMismatch},
		{"dimension mismatch long", []float32{1, 0, 0, 0}, m, 1, ErrDimensionMismatch},
		{"empty catalog", []float32{1, 0, 0}, empty, 1, ErrEmptyCatalog},
		{"nil catalog", []float32{1, 0, 0}, nil, 1, ErrEmptyCatalog},
		{"zero k", []float32{1, 0, 0}, m, 0, ErrInvalidK},
		{"negative k", []float32{1, 0, 0}, m, -3, ErrInvalidK},
		{"nan query", []float32{nan, 0, 0}, m, 1, ErrNonFinite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Rank(tt.query, tt.m, tt.k)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if got != nil {
				t.Errorf("expected no partial result, got %+v", got)
			}
		})
	}
}

func BenchmarkRank(b *testing.B) {
	rows := make([][]float32, 10000)
	for i := range rows {
		rows[i] = make([]float32, 384)
		rows[i][i%384] = 1
		rows[i][0] += float32(i) / 10000
	}
	m, _ := NewMatrix(rows)
	query := make([]float32, 384)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Rank(query, m, 5)
	}
}
