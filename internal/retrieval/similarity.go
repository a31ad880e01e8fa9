package retrieval

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when two vectors have different lengths.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// CosineSimilarity returns dot(a,b) / (|a|·|b|) in [-1, 1]. It returns 0 when
// either vector is all zeros, and ErrDimensionMismatch when the lengths
// differ. Accumulation is done in float64.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, aSq, bSq float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		aSq += x * x
		bSq += y * y
	}
	if aSq == 0 || bSq == 0 {
		return 0, nil
	}
	sim := dot / (math.Sqrt(aSq) * math.Sqrt(bSq))
	// Rounding can push |sim| a hair past 1.
	return math.Max(-1, math.Min(1, sim)), nil
}

// scored pairs an index into the candidate slice with its similarity.
type scored struct {
	idx   int
	score float64
}

// scoredHeap is a min-heap ordered by score, used to keep the best K.
type scoredHeap []scored

func (h scoredHeap) Len() int { return len(h) }
func (h scoredHeap) Less(i, j int) bool {
	if h[i].score == h[j].score {
		return h[i].idx > h[j].idx
	}
	return h[i].score < h[j].score
}
func (h scoredHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x any)   { *h = append(*h, x.(scored)) }
func (h *scoredHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topK returns the k best entries in descending score order. Ties keep the
// candidates' original order. k <= 0 keeps everything.
func topK(entries []scored, k int) []scored {
	if k <= 0 || k > len(entries) {
		k = len(entries)
	}
	h := make(scoredHeap, 0, k+1)
	for _, e := range entries {
		heap.Push(&h, e)
		if h.Len() > k {
			heap.Pop(&h)
		}
	}
	out := make([]scored, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(scored)
	}
	return out
}
