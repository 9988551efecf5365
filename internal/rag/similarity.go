package rag

import (
	"math"
	"sort"
)

// CosineDistance returns 1 - cosine similarity, the same measure pgvector's
// <=> operator uses. A zero vector is maximally distant from everything.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// rankDocuments scores docs against query and returns the closest limit.
// Documents without an embedding are skipped.
func rankDocuments(docs []Document, query []float32, limit int) []Result {
	top := newTopResults(limit)
	for _, d := range docs {
		top.offer(query, d)
	}
	return top.results()
}

// topResults keeps the closest limit results seen so far, so a backend can
// stream its candidates instead of loading them all. A non-positive limit
// keeps everything.
type topResults struct {
	limit int
	items []Result
}

func newTopResults(limit int) *topResults {
	return &topResults{limit: limit, items: []Result{}}
}

func (t *topResults) offer(query []float32, d Document) {
	if len(d.Embedding) == 0 {
		return
	}
	r := Result{
		ID:        d.ID,
		Content:   d.Content,
		Metadata:  d.Metadata,
		Distance:  CosineDistance(query, d.Embedding),
		UpdatedAt: d.UpdatedAt,
	}
	if t.limit > 0 && len(t.items) == t.limit {
		if !resultLess(r, t.items[len(t.items)-1]) {
			return
		}
		t.items = t.items[:len(t.items)-1]
	}
	at := sort.Search(len(t.items), func(i int) bool { return resultLess(r, t.items[i]) })
	t.items = append(t.items, Result{})
	copy(t.items[at+1:], t.items[at:])
	t.items[at] = r
}

func (t *topResults) results() []Result {
	return t.items
}

// resultLess is the store ordering: distance, then newest, then id.
func resultLess(a, b Result) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID < b.ID
}

func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool { return resultLess(results[i], results[j]) })
}
