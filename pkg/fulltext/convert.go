package fulltext

import "github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/gram"

// ToMerged rebuilds an inverted index as a merged index with the same depth
// and key ordering. The result shares no storage with src.
func ToMerged[K comparable](src *InvertedIndex[K]) *MergedIndex[K] {
	dst := NewMergedFunc[K](src.depth, src.compare)
	src.each(func(key K, g string) {
		set, ok := dst.grams[key]
		if !ok {
			set = make(gram.Set)
			dst.grams[key] = set
		}
		set.Add(g)
	})
	return dst
}

// ToInverted rebuilds a merged index as an inverted index with the same depth
// and key ordering. The result shares no storage with src.
func ToInverted[K comparable](src *MergedIndex[K]) *InvertedIndex[K] {
	dst := NewInvertedFunc[K](src.depth, src.compare)
	src.each(func(key K, g string) {
		dst.addPosting(g, dst.ordinal(key))
	})
	return dst
}
