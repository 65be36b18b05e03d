package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/labreport/pkg/metrics"
)

// DraftCounter is the part of the draft store the sweeper reads.
type DraftCounter interface {
	Count() int
}

// DraftSweeper keeps the active drafts gauge honest. Drafts expire inside
// the cache without telling anyone, so the gauge is re-read on a ticker.
type DraftSweeper struct {
	drafts   DraftCounter
	interval time.Duration
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewDraftSweeper(drafts DraftCounter, interval time.Duration, m *metrics.Metrics, logger zerolog.Logger) *DraftSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &DraftSweeper{
		drafts:   drafts,
		interval: interval,
		metrics:  m,
		logger:   logger,
	}
}

func (w *DraftSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last := w.sweep(-1)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last = w.sweep(last)
		}
	}
}

func (w *DraftSweeper) sweep(last int) int {
	n := w.drafts.Count()
	w.metrics.DraftsActive.Set(float64(n))
	if last >= 0 && n < last {
		w.logger.Debug().Int("active", n).Int("previous", last).Msg("drafts expired or discarded")
	}
	return n
}
