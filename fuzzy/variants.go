package fuzzy

import (
	"slices"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

const (
	// MaxVariants caps the number of phrases Expand returns.
	MaxVariants = 5

	// maxEditDepth is how many single-token edits may be chained.
	maxEditDepth = 2

	// poolFactor bounds the candidate pool to poolFactor*cap entries.
	poolFactor = 3
)

// Expander generates ranked spelling variants of a search phrase.
// It holds no mutable state after construction and is safe for concurrent use.
type Expander struct {
	maxVariants   int
	substitutions map[string][]string
	patterns      []string
}

// NewExpander returns an Expander capped at maxVariants results using the
// default substitution table. A non-positive cap falls back to MaxVariants.
func NewExpander(maxVariants int) *Expander {
	return NewExpanderWithTable(maxVariants, WordSubstitutions)
}

// NewExpanderWithTable is NewExpander with a custom substitution table.
func NewExpanderWithTable(maxVariants int, table map[string][]string) *Expander {
	if maxVariants < 1 {
		maxVariants = MaxVariants
	}
	return &Expander{
		maxVariants:   maxVariants,
		substitutions: table,
		patterns:      orderedPatterns(table),
	}
}

var defaultExpander = NewExpander(MaxVariants)

// Expand returns at most MaxVariants variants of phrase, the phrase itself
// included, using the default substitution table.
func Expand(phrase string) []string {
	return defaultExpander.Expand(phrase)
}

// variantPool keeps candidates keyed by their normalized form, in insertion order.
type variantPool struct {
	keys   []string
	values map[string]string
}

func newVariantPool() *variantPool {
	return &variantPool{values: make(map[string]string)}
}

func (p *variantPool) add(value string) {
	key := Normalize(value)
	if key == "" {
		return
	}
	if _, ok := p.values[key]; ok {
		return
	}
	p.keys = append(p.keys, key)
	p.values[key] = strings.TrimSpace(value)
}

func (p *variantPool) len() int { return len(p.keys) }

type editNode struct {
	tokens []string
	depth  int
}

// Expand returns the phrase and its most plausible misspellings, closest to
// the normalized phrase first. Blank input yields nil.
func (e *Expander) Expand(phrase string) []string {
	base := strings.TrimSpace(phrase)
	if base == "" {
		return nil
	}

	normalizedBase := Normalize(base)
	pool := newVariantPool()
	pool.add(base)
	pool.add(strings.ToLower(base))
	pool.add(Transliterate(base))

	if tokens := strings.Fields(normalizedBase); len(tokens) > 0 {
		e.search(tokens, pool)
	}

	return e.rank(normalizedBase, pool)
}

// search runs a breadth-first walk over token edits until the tree is
// exhausted or the pool reaches its guard size.
func (e *Expander) search(tokens []string, pool *variantPool) {
	guard := e.maxVariants * poolFactor
	seen := map[string]struct{}{strings.Join(tokens, " "): {}}
	queue := []editNode{{tokens: tokens}}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		for idx, token := range node.tokens {
			for _, candidate := range e.wordVariants(token) {
				next := slices.Clone(node.tokens)
				next[idx] = candidate
				key := strings.Join(next, " ")
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}

				pool.add(key)
				if pool.len() >= guard {
					return
				}
				if node.depth+1 < maxEditDepth {
					queue = append(queue, editNode{tokens: next, depth: node.depth + 1})
				}
			}
		}
	}
}

type rankedVariant struct {
	key      string
	value    string
	distance int
}

func (e *Expander) rank(normalizedBase string, pool *variantPool) []string {
	ranked := make([]rankedVariant, 0, pool.len())
	for _, key := range pool.keys {
		ranked = append(ranked, rankedVariant{
			key:      key,
			value:    pool.values[key],
			distance: levenshtein.ComputeDistance(normalizedBase, key),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].distance != ranked[j].distance {
			return ranked[i].distance < ranked[j].distance
		}
		return ranked[i].key < ranked[j].key
	})

	if len(ranked) > e.maxVariants {
		ranked = ranked[:e.maxVariants]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.value
	}
	return out
}

// wordVariants returns single-edit typo variants of one normalized word:
// doubled letters collapsed, neighbouring letters swapped, then every
// substitution rule applied at each occurrence of its pattern.
func (e *Expander) wordVariants(word string) []string {
	if word == "" {
		return nil
	}

	var out []string
	seen := map[string]struct{}{word: {}}
	add := func(v string) {
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	runes := []rune(word)
	for i := 0; i+1 < len(runes); i++ {
		if runes[i] == runes[i+1] {
			add(string(runes[:i]) + string(runes[i+1:]))
		}
	}

	for i := 0; i+1 < len(runes); i++ {
		if runes[i] != runes[i+1] {
			swapped := slices.Clone(runes)
			swapped[i], swapped[i+1] = swapped[i+1], swapped[i]
			add(string(swapped))
		}
	}

	for _, pattern := range e.patterns {
		for start := 0; start < len(word); {
			found := strings.Index(word[start:], pattern)
			if found < 0 {
				break
			}
			found += start
			for _, replacement := range e.substitutions[pattern] {
				add(word[:found] + replacement + word[found+len(pattern):])
			}
			start = found + 1
		}
	}

	return out
}
