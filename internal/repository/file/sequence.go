package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jwalitptl/labreport/internal/model"
	"github.com/jwalitptl/labreport/internal/repository"
)

type sequenceRepository struct {
	mu   sync.Mutex
	path string
}

// NewSequenceRepository keeps the sequencer state in a small JSON document
// of named entries. Writes go through a temp file and a rename so a crash
// never leaves half a document behind. It serializes callers within one
// process only.
func NewSequenceRepository(path string) repository.SequenceRepository {
	return &sequenceRepository{path: path}
}

func (r *sequenceRepository) Backend() string { return "file" }

func (r *sequenceRepository) Get(ctx context.Context) (*model.SequencerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		return nil, err
	}
	return entry(doc)
}

func (r *sequenceRepository) Advance(ctx context.Context, next func(prior *model.SequencerState) model.SequencerState) (model.SequencerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return model.SequencerState{}, err
	}

	doc, err := r.read()
	if err != nil {
		return model.SequencerState{}, err
	}

	prior, err := entry(doc)
	if err != nil {
		return model.SequencerState{}, err
	}
	out := next(prior)

	data, err := json.Marshal(out)
	if err != nil {
		return model.SequencerState{}, fmt.Errorf("failed to marshal sequence: %w", err)
	}
	doc[repository.SequenceKey] = data

	if err := r.write(doc); err != nil {
		return model.SequencerState{}, err
	}
	return out, nil
}

func (r *sequenceRepository) read() (map[string]json.RawMessage, error) {
	doc := map[string]json.RawMessage{}

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sequence file: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", repository.ErrCorruptState, r.path, err)
	}
	return doc, nil
}

func (r *sequenceRepository) write(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sequence file: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create sequence directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sequence-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write sequence file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync sequence file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close sequence file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace sequence file: %w", err)
	}
	return nil
}

func entry(doc map[string]json.RawMessage) (*model.SequencerState, error) {
	raw, ok := doc[repository.SequenceKey]
	if !ok {
		return nil, nil
	}
	var state model.SequencerState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("%w: %s entry: %v", repository.ErrCorruptState, repository.SequenceKey, err)
	}
	return &state, nil
}
