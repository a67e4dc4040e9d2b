package fulltext

import (
	"cmp"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/gram"
)

// MergedIndex maps each key to the union of the grams of every text inserted
// under it. Repeated inserts under one key accumulate, which lets a caller
// build up a key's text over several calls.
type MergedIndex[K comparable] struct {
	depth   int
	compare func(a, b K) int
	grams   map[K]gram.Set
}

// NewMerged creates a merged index over ordered keys.
func NewMerged[K cmp.Ordered](depth int) *MergedIndex[K] {
	return NewMergedFunc[K](depth, cmp.Compare[K])
}

// DefaultMerged creates a merged index with DefaultDepth.
func DefaultMerged[K cmp.Ordered]() *MergedIndex[K] {
	return NewMerged[K](DefaultDepth)
}

// NewMergedFunc creates a merged index over any comparable key; see
// NewInvertedFunc for the contract of compare.
func NewMergedFunc[K comparable](depth int, compare func(a, b K) int) *MergedIndex[K] {
	return &MergedIndex[K]{
		depth:   depth,
		compare: compare,
		grams:   make(map[K]gram.Set),
	}
}

func (idx *MergedIndex[K]) Depth() int {
	return idx.depth
}

func (idx *MergedIndex[K]) Insert(key K, text string) {
	idx.merge(key, gram.Generate(text, idx.depth))
}

func (idx *MergedIndex[K]) InsertBounded(key K, text string) {
	idx.Insert(key, gram.Wrap(text))
}

func (idx *MergedIndex[K]) Query(text string) []K {
	return Keys(idx.Score(text))
}

func (idx *MergedIndex[K]) QueryBounded(text string) []K {
	return Keys(idx.ScoreBounded(text))
}

// Score intersects the grams of text with every key's stored set.
func (idx *MergedIndex[K]) Score(text string) []Match[K] {
	grams := gram.Generate(text, idx.depth)
	counts := make(map[K]int)
	if grams.Len() == 0 {
		return rank(counts, idx.compare)
	}
	for key, stored := range idx.grams {
		if n := stored.IntersectionLen(grams); n > 0 {
			counts[key] = n
		}
	}
	return rank(counts, idx.compare)
}

func (idx *MergedIndex[K]) ScoreBounded(text string) []Match[K] {
	return idx.Score(gram.Wrap(text))
}

func (idx *MergedIndex[K]) Stats() Stats {
	s := Stats{Keys: len(idx.grams)}
	seen := make(gram.Set)
	for _, set := range idx.grams {
		s.Pairs += set.Len()
		seen.Union(set)
	}
	s.Grams = seen.Len()
	return s
}

// merge unions grams into the set stored for key. Keys whose text produced no
// grams are not stored, matching InvertedIndex which has no posting to hold
// them.
func (idx *MergedIndex[K]) merge(key K, grams gram.Set) {
	if grams.Len() == 0 {
		return
	}
	stored, ok := idx.grams[key]
	if !ok {
		idx.grams[key] = grams
		return
	}
	stored.Union(grams)
}

func (idx *MergedIndex[K]) each(fn func(key K, g string)) {
	for key, set := range idx.grams {
		for g := range set {
			fn(key, g)
		}
	}
}
