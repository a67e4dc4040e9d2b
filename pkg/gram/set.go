package gram

import "sort"

// Set is a deduplicated collection of grams.
type Set map[string]struct{}

// NewSet returns a set holding the given grams.
func NewSet(grams ...string) Set {
	s := make(Set, len(grams))
	for _, g := range grams {
		s[g] = struct{}{}
	}
	return s
}

func (s Set) Add(g string) {
	s[g] = struct{}{}
}

func (s Set) Contains(g string) bool {
	_, ok := s[g]
	return ok
}

func (s Set) Len() int {
	return len(s)
}

// Union adds every gram of other to s.
func (s Set) Union(other Set) {
	for g := range other {
		s[g] = struct{}{}
	}
}

// IntersectionLen counts the grams present in both sets. It iterates the
// smaller of the two.
func (s Set) IntersectionLen(other Set) int {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	n := 0
	for g := range small {
		if _, ok := large[g]; ok {
			n++
		}
	}
	return n
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for g := range s {
		c[g] = struct{}{}
	}
	return c
}

// Sorted returns the grams in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for g := range s {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
