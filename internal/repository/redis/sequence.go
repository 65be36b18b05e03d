package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/labreport/internal/model"
	"github.com/jwalitptl/labreport/internal/repository"
)

// ErrContention is returned when the key kept changing under every attempt.
var ErrContention = errors.New("sequence key changed concurrently")

const defaultMaxAttempts = 10

type sequenceRepository struct {
	client      *redis.Client
	key         string
	maxAttempts int
}

// NewSequenceRepository keeps the sequencer state as JSON under
// <prefix>patientSeries and advances it with WATCH/MULTI/EXEC.
func NewSequenceRepository(client *redis.Client, prefix string) repository.SequenceRepository {
	return &sequenceRepository{
		client:      client,
		key:         prefix + repository.SequenceKey,
		maxAttempts: defaultMaxAttempts,
	}
}

func (r *sequenceRepository) Backend() string { return "redis" }

func (r *sequenceRepository) Get(ctx context.Context) (*model.SequencerState, error) {
	return load(ctx, r.client, r.key)
}

func (r *sequenceRepository) Advance(ctx context.Context, next func(prior *model.SequencerState) model.SequencerState) (model.SequencerState, error) {
	var out model.SequencerState

	txf := func(tx *redis.Tx) error {
		prior, err := load(ctx, tx, r.key)
		if err != nil {
			return err
		}
		out = next(prior)

		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to marshal sequence: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < r.maxAttempts; i++ {
		err := r.client.Watch(ctx, txf, r.key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return model.SequencerState{}, fmt.Errorf("failed to advance sequence: %w", err)
	}
	return model.SequencerState{}, ErrContention
}

func load(ctx context.Context, c redis.Cmdable, key string) (*model.SequencerState, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sequence: %w", err)
	}
	var state model.SequencerState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: key %s: %v", repository.ErrCorruptState, key, err)
	}
	return &state, nil
}
