// Package fulltext provides approximate full-text matching over character
// n-grams.
//
// Two representations of the same key↔gram relation are offered:
//
//   - InvertedIndex maps each gram to the keys whose text produced it.
//   - MergedIndex maps each key to the union of every gram produced for it.
//
// Both satisfy Index, rank identically for any sequence of inserts, and can be
// rebuilt from each other with ToMerged and ToInverted.
//
// # Ranking
//
// A key's score for a query is the number of distinct query grams it shares.
// Keys are returned by descending score; equal scores are ordered by ascending
// key under the index's comparison function. Keys sharing no gram are omitted.
//
// # Thread Safety
//
// Indexes carry no locks. Concurrent queries against an index that is not
// being mutated are safe; any mutation must be serialized by the caller.
package fulltext

import (
	"cmp"
	"sort"
)

// DefaultDepth is the depth used by the zero-argument constructors.
const DefaultDepth = 6

// Queryable is the read side of an index.
type Queryable[K comparable] interface {
	// Query returns keys ranked by gram overlap with text.
	Query(text string) []K
	// QueryBounded is Query over gram.Wrap(text).
	QueryBounded(text string) []K
}

// Indexable is a Queryable that accepts new text.
type Indexable[K comparable] interface {
	Queryable[K]
	// Insert adds the grams of text under key.
	Insert(key K, text string)
	// InsertBounded is Insert of gram.Wrap(text).
	InsertBounded(key K, text string)
}

// Match is a ranked key and the number of query grams it shares.
type Match[K comparable] struct {
	Key   K   `json:"key"`
	Score int `json:"score"`
}

// Scorer returns ranked keys together with their scores.
type Scorer[K comparable] interface {
	Score(text string) []Match[K]
	ScoreBounded(text string) []Match[K]
}

// Stats describes the size of the stored relation.
type Stats struct {
	Keys  int `json:"keys"`
	Grams int `json:"grams"`
	Pairs int `json:"pairs"`
}

// Index is the full capability set shared by both representations.
type Index[K comparable] interface {
	Indexable[K]
	Scorer[K]
	Depth() int
	Stats() Stats
}

var (
	_ Index[string] = (*InvertedIndex[string])(nil)
	_ Index[string] = (*MergedIndex[string])(nil)
)

// rank orders scored keys by descending score, then ascending key.
func rank[K comparable](scores map[K]int, compare func(a, b K) int) []Match[K] {
	result := make([]Match[K], 0, len(scores))
	for key, score := range scores {
		if score > 0 {
			result = append(result, Match[K]{Key: key, Score: score})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if c := cmp.Compare(result[i].Score, result[j].Score); c != 0 {
			return c > 0
		}
		return compare(result[i].Key, result[j].Key) < 0
	})
	return result
}

// Keys strips the scores from ranked matches.
func Keys[K comparable](matches []Match[K]) []K {
	keys := make([]K, len(matches))
	for i, m := range matches {
		keys[i] = m.Key
	}
	return keys
}
