package vector

import (
	"container/heap"
	"fmt"
)

// Rank scores every row of m against query by cosine similarity and returns the
// min(k, m.Len()) best matches, ordered by descending score with ties broken by
// ascending row index. Rows or queries with zero norm score exactly 0.
//
// Rank never mutates query or m and holds no state, so concurrent calls against
// the same Matrix need no coordination.
func Rank(query []float32, m *Matrix, k int) ([]Match, error) {
	if m.Len() == 0 {
		return nil, ErrEmptyCatalog
	}
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, catalog has %d", ErrDimensionMismatch, len(query), m.dimensions)
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if !finite(query) {
		return nil, fmt.Errorf("%w: query", ErrNonFinite)
	}
	if k > m.Len() {
		k = m.Len()
	}

	qNorm := L2Norm(query)
	h := make(matchHeap, 0, k)
	for i, row := range m.rows {
		c := Match{Index: i, Score: cosine(InnerProduct(query, row), qNorm, m.norms[i])}
		if len(h) < k {
			heap.Push(&h, c)
			continue
		}
		if better(c, h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	out := make([]Match, len(h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Match)
	}
	return out, nil
}

// better reports whether a ranks ahead of b.
func better(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

// matchHeap keeps the k best matches seen so far with the worst at the root.
type matchHeap []Match

func (h matchHeap) Len() int           { return len(h) }
func (h matchHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h matchHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *matchHeap) Push(x any) { *h = append(*h, x.(Match)) }

func (h *matchHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
