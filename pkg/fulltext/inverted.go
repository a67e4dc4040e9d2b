package fulltext

import (
	"cmp"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/gram"
	"github.com/RoaringBitmap/roaring/v2"
)

// InvertedIndex maps each gram to the set of keys whose text produced it.
//
// Keys are given dense ordinals in first-seen order and posting lists are
// roaring bitmaps of ordinals. Ordinals never leak out of the index, so the
// order in which keys arrive does not affect query results.
type InvertedIndex[K comparable] struct {
	depth    int
	compare  func(a, b K) int
	keys     []K
	ordinals map[K]uint32
	postings map[string]*roaring.Bitmap
}

// NewInverted creates an inverted index over ordered keys.
func NewInverted[K cmp.Ordered](depth int) *InvertedIndex[K] {
	return NewInvertedFunc[K](depth, cmp.Compare[K])
}

// DefaultInverted creates an inverted index with DefaultDepth.
func DefaultInverted[K cmp.Ordered]() *InvertedIndex[K] {
	return NewInverted[K](DefaultDepth)
}

// NewInvertedFunc creates an inverted index over any comparable key. compare
// must be a strict three-way comparison; it only breaks ranking ties.
func NewInvertedFunc[K comparable](depth int, compare func(a, b K) int) *InvertedIndex[K] {
	return &InvertedIndex[K]{
		depth:    depth,
		compare:  compare,
		ordinals: make(map[K]uint32),
		postings: make(map[string]*roaring.Bitmap),
	}
}

func (idx *InvertedIndex[K]) Depth() int {
	return idx.depth
}

func (idx *InvertedIndex[K]) Insert(key K, text string) {
	grams := gram.Generate(text, idx.depth)
	if grams.Len() == 0 {
		return
	}
	ord := idx.ordinal(key)
	for g := range grams {
		idx.addPosting(g, ord)
	}
}

func (idx *InvertedIndex[K]) InsertBounded(key K, text string) {
	idx.Insert(key, gram.Wrap(text))
}

func (idx *InvertedIndex[K]) Query(text string) []K {
	return Keys(idx.Score(text))
}

func (idx *InvertedIndex[K]) QueryBounded(text string) []K {
	return Keys(idx.ScoreBounded(text))
}

// Score counts, for every key, how many distinct grams of text have that key
// in their posting list.
func (idx *InvertedIndex[K]) Score(text string) []Match[K] {
	grams := gram.Generate(text, idx.depth)
	counts := make(map[K]int)
	for g := range grams {
		bm, ok := idx.postings[g]
		if !ok {
			continue
		}
		it := bm.Iterator()
		for it.HasNext() {
			counts[idx.keys[it.Next()]]++
		}
	}
	return rank(counts, idx.compare)
}

func (idx *InvertedIndex[K]) ScoreBounded(text string) []Match[K] {
	return idx.Score(gram.Wrap(text))
}

func (idx *InvertedIndex[K]) Stats() Stats {
	s := Stats{Keys: len(idx.keys), Grams: len(idx.postings)}
	for _, bm := range idx.postings {
		s.Pairs += int(bm.GetCardinality())
	}
	return s
}

// ordinal returns the ordinal of key, assigning the next one on first sight.
func (idx *InvertedIndex[K]) ordinal(key K) uint32 {
	if ord, ok := idx.ordinals[key]; ok {
		return ord
	}
	ord := uint32(len(idx.keys))
	idx.keys = append(idx.keys, key)
	idx.ordinals[key] = ord
	return ord
}

func (idx *InvertedIndex[K]) addPosting(g string, ord uint32) {
	bm, ok := idx.postings[g]
	if !ok {
		bm = roaring.New()
		idx.postings[g] = bm
	}
	bm.Add(ord)
}

// each calls fn for every (key, gram) pair of the relation.
func (idx *InvertedIndex[K]) each(fn func(key K, g string)) {
	for g, bm := range idx.postings {
		it := bm.Iterator()
		for it.HasNext() {
			fn(idx.keys[it.Next()], g)
		}
	}
}
