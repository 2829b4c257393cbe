// Package markov holds the learned bigram model: the transition table, the
// ingestion filter that guards it, and the random-walk sentence generator.
//
// A Table maps a bigram key ("w1|w2") to the ordered list of words observed
// after that pair. Duplicates are kept on purpose: a successor seen five times
// appears five times, so sampling uniformly from the list is frequency weighted.
//
// Table is not safe for concurrent use; callers serialize access (see package bot).
package markov

import (
	"log/slog"
	"math/rand/v2"
	"strings"
)

// KeySeparator joins the two words of a bigram key.
const KeySeparator = "|"

// MinLearnTokens is the shortest message (in space separated tokens) that can
// contribute a transition: two words of context plus one successor.
const MinLearnTokens = 3

// Key builds the bigram key for two consecutive words.
func Key(first, second string) string { return first + KeySeparator + second }

// SplitKey returns the two words of a bigram key. Keys whose first word itself
// contains the separator split on the last occurrence so the second word stays intact.
func SplitKey(key string) (string, string) {
	i := strings.LastIndex(key, KeySeparator)
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+len(KeySeparator):]
}

// Table is the transition table.
type Table struct {
	transitions map[string][]string

	// maxSuccessors > 0 caps every successor list with reservoir sampling.
	maxSuccessors int
	seen          map[string]int
	rng           *rand.Rand
}

// Option configures a Table.
type Option func(*Table)

// WithMaxSuccessors bounds each successor list to n entries. Once a list is
// full, new observations replace a random slot with probability n/seen, so the
// list stays a uniform sample of everything observed for that key.
func WithMaxSuccessors(n int) Option {
	return func(t *Table) {
		if n > 0 {
			t.maxSuccessors = n
		}
	}
}

// WithRand sets the random source used for reservoir replacement.
func WithRand(r *rand.Rand) Option {
	return func(t *Table) { t.rng = r }
}

// NewTable returns an empty table.
func NewTable(opts ...Option) *Table {
	t := &Table{transitions: make(map[string][]string)}
	for _, opt := range opts {
		opt(t)
	}
	if t.maxSuccessors > 0 {
		t.seen = make(map[string]int)
	}
	if t.rng == nil {
		//nolint:gosec // G404: sampling, not security
		t.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return t
}

// Learn splits text on single spaces and appends every (w[i], w[i+1]) -> w[i+2]
// transition. Tokens are used verbatim. Messages shorter than MinLearnTokens
// are ignored. It returns the number of transitions recorded.
func (t *Table) Learn(text string) int {
	words := strings.Split(text, " ")
	if len(words) < MinLearnTokens {
		return 0
	}
	for i := 0; i+2 < len(words); i++ {
		key := Key(words[i], words[i+1])
		if _, ok := t.transitions[key]; !ok {
			slog.Debug("learning new key", slog.String("key", key), slog.String("component", "markov"))
		}
		t.add(key, words[i+2])
		slog.Debug("adding transition", slog.String("key", key), slog.String("next", words[i+2]), slog.String("component", "markov"))
	}
	return len(words) - 2
}

func (t *Table) add(key, next string) {
	if t.maxSuccessors <= 0 {
		t.transitions[key] = append(t.transitions[key], next)
		return
	}
	n := t.seen[key]
	if n < len(t.transitions[key]) {
		// hydrated lists count as already observed
		n = len(t.transitions[key])
	}
	n++
	t.seen[key] = n
	list := t.transitions[key]
	if len(list) < t.maxSuccessors {
		t.transitions[key] = append(list, next)
		return
	}
	if j := t.rng.IntN(n); j < t.maxSuccessors {
		list[j] = next
	}
}

// Successors returns the successor list for key. The slice is shared with the
// table and must not be modified.
func (t *Table) Successors(key string) []string { return t.transitions[key] }

// Keys returns all bigram keys in unspecified order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.transitions))
	for k := range t.transitions {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of bigram keys.
func (t *Table) Len() int { return len(t.transitions) }

// SuccessorCount returns the total number of stored successor entries.
func (t *Table) SuccessorCount() int {
	n := 0
	for _, s := range t.transitions {
		n += len(s)
	}
	return n
}

// Snapshot returns a deep copy of the transitions, suitable for serialization
// while the table keeps learning.
func (t *Table) Snapshot() map[string][]string {
	out := make(map[string][]string, len(t.transitions))
	for k, s := range t.transitions {
		out[k] = append([]string(nil), s...)
	}
	return out
}

// Replace swaps the table contents for a hydrated snapshot. Keys with empty
// successor lists are dropped so every key keeps at least one successor.
// Lists longer than the configured cap are truncated.
func (t *Table) Replace(data map[string][]string) {
	t.transitions = make(map[string][]string, len(data))
	if t.seen != nil {
		t.seen = make(map[string]int)
	}
	for k, s := range data {
		if len(s) == 0 {
			continue
		}
		list := append([]string(nil), s...)
		if t.maxSuccessors > 0 {
			t.seen[k] = len(list)
			if len(list) > t.maxSuccessors {
				list = list[:t.maxSuccessors]
			}
		}
		t.transitions[k] = list
	}
}
