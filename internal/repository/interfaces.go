package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/labreport/internal/model"
)

var ErrNotFound = errors.New("record not found")

// ErrCorruptState means a stored sequencer state could not be decoded. The
// store is left untouched so identifiers already issued are never reused.
var ErrCorruptState = errors.New("stored sequence state is corrupt")

// SequenceKey is the name the sequencer state is stored under.
const SequenceKey = "patientSeries"

// All repository interfaces in one file
type (
	// SequenceRepository persists the daily identifier counter.
	SequenceRepository interface {
		// Get returns the stored state, or nil when nothing was stored yet.
		Get(ctx context.Context) (*model.SequencerState, error)
		// Advance loads the stored state, passes it to next and stores the
		// result as one atomic step. next may be called more than once when
		// the store retries a conflicting write.
		Advance(ctx context.Context, next func(prior *model.SequencerState) model.SequencerState) (model.SequencerState, error)
		// Backend names the store for logs and metrics.
		Backend() string
	}

	// DraftRepository holds report drafts in memory.
	DraftRepository interface {
		Create(ctx context.Context, draft *model.Draft) error
		Get(ctx context.Context, id uuid.UUID) (*model.Draft, error)
		Update(ctx context.Context, draft *model.Draft) error
		Delete(ctx context.Context, id uuid.UUID) error
		Count() int
	}
)
