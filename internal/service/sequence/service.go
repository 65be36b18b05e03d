package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/labreport/internal/model"
	"github.com/jwalitptl/labreport/internal/repository"
	"github.com/jwalitptl/labreport/pkg/metrics"
)

type SequenceService interface {
	Issue(ctx context.Context) (string, time.Time, error)
	Current(ctx context.Context) (*model.SequencerState, error)
}

type Service struct {
	repo    repository.SequenceRepository
	loc     *time.Location
	now     func() time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(repo repository.SequenceRepository, loc *time.Location, m *metrics.Metrics, opts ...Option) *Service {
	if loc == nil {
		loc = time.Local
	}
	s := &Service{
		repo:    repo,
		loc:     loc,
		now:     time.Now,
		metrics: m,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue hands out the next patient identifier together with the local time
// it was issued at. The new counter is stored before the identifier is
// returned, so a failed save never yields an identifier.
func (s *Service) Issue(ctx context.Context) (string, time.Time, error) {
	today := s.now().In(s.loc)

	var id string
	state, err := s.repo.Advance(ctx, func(prior *model.SequencerState) model.SequencerState {
		var next model.SequencerState
		id, next = NextIdentifier(today, prior)
		return next
	})
	if err != nil {
		s.metrics.SequenceErrors.WithLabelValues(s.repo.Backend()).Inc()
		if errors.Is(err, repository.ErrCorruptState) {
			s.logger.Error().Err(err).Str("backend", s.repo.Backend()).Msg("stored sequence state is corrupt, refusing to issue identifiers until it is repaired")
		} else {
			s.logger.Error().Err(err).Str("backend", s.repo.Backend()).Msg("failed to advance sequence")
		}
		return "", time.Time{}, fmt.Errorf("failed to issue patient identifier: %w", err)
	}

	s.metrics.IdentifiersIssued.Inc()
	if state.Series == 1 {
		s.metrics.SequenceResets.Inc()
	}
	s.logger.Debug().Str("patient_id", id).Int("series", state.Series).Msg("patient identifier issued")

	return id, today, nil
}

// Current returns the stored state, nil before the first identifier.
func (s *Service) Current(ctx context.Context) (*model.SequencerState, error) {
	state, err := s.repo.Get(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("backend", s.repo.Backend()).Msg("failed to read sequence")
		return nil, fmt.Errorf("failed to read sequence: %w", err)
	}
	return state, nil
}
