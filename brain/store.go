// Package brain persists the learned transition table.
//
// Every backend stores the same document: a JSON object mapping each bigram
// key to its successor array, duplicates and append order preserved, e.g.
//
//	{"the|quick":["brown"],"quick|brown":["fox","fox"]}
//
// Backends:
//   - file: a JSON file replaced on every save (default).
//   - postgres: the document in the kv table under key "markov_brain".
//   - redis: the document under a single string key.
//
// Stores report failures as errors; Manager turns them into the "keep going
// with an empty or in-memory table" fallback.
package brain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Store.Load when nothing has been saved yet.
var ErrNotFound = errors.New("brain not found")

// Store reads and writes the whole transition document.
type Store interface {
	Load(ctx context.Context) (map[string][]string, error)
	Save(ctx context.Context, transitions map[string][]string) error
	// Name identifies the backend in logs and /status.
	Name() string
}

func encode(transitions map[string][]string) ([]byte, error) {
	if transitions == nil {
		transitions = map[string][]string{}
	}
	b, err := json.Marshal(transitions)
	if err != nil {
		return nil, fmt.Errorf("encode brain: %w", err)
	}
	return b, nil
}

func decode(data []byte) (map[string][]string, error) {
	var out map[string][]string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode brain: %w", err)
	}
	if out == nil {
		// literal "null"
		out = map[string][]string{}
	}
	return out, nil
}
