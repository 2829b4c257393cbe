package markov

import (
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
)

// DefaultMaxWords bounds how many successors a walk may append after the
// two starting words.
const DefaultMaxWords = 20

// Generator produces sentences by random walk over a Table.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a Generator drawing from r, or from a randomly seeded
// source when r is nil.
func NewGenerator(r *rand.Rand) *Generator {
	if r == nil {
		//nolint:gosec // G404: text generation, not security
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rng: r}
}

// Generate picks a starting key uniformly at random and walks from it.
// It returns "" when the table is empty.
func (g *Generator) Generate(t *Table, maxWords int) string {
	if t.Len() == 0 {
		return ""
	}
	keys := t.Keys()
	// map order is random but not uniform; sort so the rng alone decides
	slices.Sort(keys)
	return g.GenerateFrom(t, keys[g.rng.IntN(len(keys))], maxWords)
}

// GenerateFrom walks the table starting at key. The result always begins with
// both words of key and holds at most maxWords+2 words. A key with no
// successors ends the walk early. maxWords <= 0 uses DefaultMaxWords.
func (g *Generator) GenerateFrom(t *Table, key string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	prev, cur := SplitKey(key)
	words := make([]string, 0, maxWords+2)
	words = append(words, prev, cur)
	slog.Debug("starting generation", slog.String("key", key), slog.String("component", "markov"))

	for range maxWords {
		next := t.Successors(Key(prev, cur))
		if len(next) == 0 {
			break
		}
		word := next[g.rng.IntN(len(next))]
		words = append(words, word)
		prev, cur = cur, word
	}
	return strings.Join(words, " ")
}
