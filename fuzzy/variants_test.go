package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand_Luminarc(t *testing.T) {
	variants := Expand("luminarc")

	require.NotEmpty(t, variants)
	assert.LessOrEqual(t, len(variants), MaxVariants)
	assert.Equal(t, "luminarc", variants[0])
	assert.Contains(t, variants, "luminark")
}

func TestExpand_RanksSingleEditsBeforeSwaps(t *testing.T) {
	variants := Expand("luminarc")

	assert.Equal(t, []string{"luminarc", "lumimarc", "luminark", "luminarq", "luminars"}, variants)
}

func TestExpand_KeepsOriginalSpelling(t *testing.T) {
	variants := Expand("  Luminarc ")

	require.NotEmpty(t, variants)
	assert.Equal(t, "Luminarc", variants[0])
}

func TestExpand_BlankInput(t *testing.T) {
	assert.Empty(t, Expand(""))
	assert.Empty(t, Expand("   \t "))
}

func TestExpand_Properties(t *testing.T) {
	phrases := []string{
		"luminarc",
		"Limoges porcelain",
		"Villeroy & Boch",
		"Château d'Or vintage",
		"soufflenheim poterie alsace ancienne",
		"a",
		"Le Creuset cocotte 24cm",
	}

	for _, phrase := range phrases {
		t.Run(phrase, func(t *testing.T) {
			variants := Expand(phrase)
			assert.LessOrEqual(t, len(variants), MaxVariants)

			keys := make(map[string]struct{}, len(variants))
			for _, v := range variants {
				key := Normalize(v)
				_, dup := keys[key]
				assert.False(t, dup, "duplicate normalized variant %q", key)
				keys[key] = struct{}{}
			}
			assert.Contains(t, keys, Normalize(phrase))
		})
	}
}

func TestExpand_SingleLetterUsesTableOnly(t *testing.T) {
	assert.Equal(t, []string{"a"}, Expand("a"))
	assert.Equal(t, []string{"c", "k", "q", "s"}, Expand("c"))
}

func TestExpand_CustomCap(t *testing.T) {
	// A small cap also shrinks the candidate pool, so only swaps are reached.
	variants := NewExpander(2).Expand("luminarc")
	assert.Equal(t, []string{"luminarc", "lmuinarc"}, variants)

	assert.Len(t, NewExpander(0).Expand("luminarc"), MaxVariants)
}

func TestExpand_CustomTable(t *testing.T) {
	e := NewExpanderWithTable(5, map[string][]string{"x": {"ks"}})
	assert.Equal(t, []string{"x", "ks", "sk"}, e.Expand("x"))
}

func TestWordVariants(t *testing.T) {
	e := NewExpander(MaxVariants)

	tests := []struct {
		name    string
		word    string
		want    []string
		notWant []string
	}{
		{
			name: "collapses doubled letters",
			word: "soufflenheim",
			want: []string{"souflenheim"},
		},
		{
			name:    "swaps neighbouring letters",
			word:    "ab",
			want:    []string{"ba", "av"},
			notWant: []string{"ab"},
		},
		{
			name: "applies longer patterns",
			word: "phone",
			want: []string{"fone", "hpone"},
		},
		{
			name:    "substitutes one occurrence at a time",
			word:    "cocoa",
			want:    []string{"kocoa", "cokoa", "socoa", "cosoa"},
			notWant: []string{"kokoa"},
		},
		{
			name: "reversible pairs",
			word: "shop",
			want: []string{"chop"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.wordVariants(tt.word)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, got, w)
			}
		})
	}
}

func TestWordVariants_Deterministic(t *testing.T) {
	e := NewExpander(MaxVariants)
	first := e.wordVariants("schoolbook")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.wordVariants("schoolbook"))
	}
}

func TestOrderedPatterns_LongestFirst(t *testing.T) {
	patterns := orderedPatterns(map[string][]string{"c": {"k"}, "ck": {"k"}, "ph": {"f"}, "": {"x"}})
	assert.Equal(t, []string{"ck", "ph", "c"}, patterns)
}
