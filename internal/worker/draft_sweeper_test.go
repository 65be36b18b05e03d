package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/labreport/pkg/metrics"
)

type countingDrafts struct {
	n atomic.Int64
}

func (d *countingDrafts) Count() int {
	return int(d.n.Load())
}

func TestDraftSweeper_TracksCount(t *testing.T) {
	m := metrics.NewNop()
	drafts := &countingDrafts{}
	drafts.n.Store(3)

	w := NewDraftSweeper(drafts, 5*time.Millisecond, m, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.DraftsActive) == 3
	}, time.Second, 5*time.Millisecond)

	drafts.n.Store(1)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.DraftsActive) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
