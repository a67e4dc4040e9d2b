package gram

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		depth int
		want  []string
	}{
		{"empty", "", 6, []string{}},
		{"single codepoint", "a", 6, []string{}},
		{"zero depth", "boof", 0, []string{}},
		{"negative depth", "boof", -3, []string{}},
		{"depth one gives bigrams", "abc", 1, []string{"ab", "bc"}},
		{"default depth", "boof", 6, []string{"bo", "boo", "boof", "of", "oo", "oof"}},
		{"depth bounds length", "abcd", 2, []string{"ab", "abc", "bc", "bcd", "cd"}},
		{"repeated grams collapse", "aaaa", 6, []string{"aa", "aaa", "aaaa"}},
		{"case folded", "BoOF", 6, []string{"bo", "boo", "boof", "of", "oo", "oof"}},
		{"multibyte codepoints", "日本語", 6, []string{"日本", "日本語", "本語"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Generate(tt.text, tt.depth).Sorted())
		})
	}
}

func TestGenerateGramLengths(t *testing.T) {
	for depth := 1; depth <= 8; depth++ {
		grams := Generate("the quick brown fox jumps", depth)
		require.NotZero(t, grams.Len())
		for g := range grams {
			n := utf8.RuneCountInString(g)
			assert.GreaterOrEqual(t, n, 2, "gram %q", g)
			assert.LessOrEqual(t, n, depth+1, "gram %q at depth %d", g, depth)
		}
	}
}

func TestGenerateSameSubstringsSameSet(t *testing.T) {
	foo := Generate("foobarbazfoobar", 6)
	bar := Generate("barbazfoobarbaz", 6)
	assert.Equal(t, foo, bar)
}

func TestGenerateNormalizationForms(t *testing.T) {
	precomposed := "Créme Brûlée"
	decomposed := "cre\u0301me bru\u0302le\u0301e"
	assert.Equal(t, Generate(precomposed, 6), Generate(decomposed, 6))
	assert.Equal(t, Generate("ÉCRU", 4), Generate("e\u0301cru", 4))
}

func TestGenerateNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Hello, World",
		"Ångström",
		"A\u030angstro\u0308m",
		"STRASSE straße",
		"ΟΔΟΣ",
		"日本語のテキスト",
		"",
	}
	for _, s := range inputs {
		for _, depth := range []int{1, 3, 6} {
			assert.Equal(t, Generate(s, depth), Generate(Normalize(s), depth), "input %q depth %d", s, depth)
		}
	}
}

func TestGenerateSplitsCombiningMarks(t *testing.T) {
	grams := Generate("ét", 6)
	// é decomposes to e + U+0301, so the accent is a codepoint of its own.
	assert.True(t, grams.Contains("e\u0301"))
	assert.True(t, grams.Contains("\u0301t"))
	assert.True(t, grams.Contains("e\u0301t"))
	assert.Equal(t, 3, grams.Len())
}

func TestWrap(t *testing.T) {
	assert.Equal(t, "\u0002ab\u0003", Wrap("ab"))
	assert.Equal(t, StartMarker+EndMarker, Wrap(""))

	grams := Generate(Wrap("ab"), 6)
	assert.Equal(t, []string{"\u0002a", "\u0002ab", "\u0002ab\u0003", "ab", "ab\u0003", "b\u0003"}, grams.Sorted())
}

func TestWrapMarkersSurviveNormalization(t *testing.T) {
	assert.Equal(t, Wrap("abc"), Normalize(Wrap("ABC")))
}

func TestSet(t *testing.T) {
	a := NewSet("ab", "bc", "cd")
	b := NewSet("bc", "cd", "de", "ef")

	assert.Equal(t, 2, a.IntersectionLen(b))
	assert.Equal(t, 2, b.IntersectionLen(a))
	assert.Equal(t, 0, a.IntersectionLen(NewSet()))

	c := a.Clone()
	c.Union(b)
	assert.Equal(t, []string{"ab", "bc", "cd", "de", "ef"}, c.Sorted())
	assert.Equal(t, 3, a.Len(), "clone must not alias")
	assert.False(t, a.Contains("de"))
}

func BenchmarkGenerate(b *testing.B) {
	text := "Approximate string matching with character n-grams over Unicode text"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Generate(text, 6)
	}
}

func TestProducesAgreesWithGenerate(t *testing.T) {
	inputs := []string{"", "a", "ab", "\u00e9", "e\u0301", Wrap(""), "boof", " "}
	for _, depth := range []int{0, 1, 6} {
		for _, in := range inputs {
			assert.Equal(t, Generate(in, depth).Len() > 0, Produces(in, depth), "%q depth %d", in, depth)
		}
	}
}
