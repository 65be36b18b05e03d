package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("labreport", reg)

	m.IdentifiersIssued.Inc()
	m.ExportsTotal.WithLabelValues("pdf", "success").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IdentifiersIssued))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ExportsTotal.WithLabelValues("pdf", "success")))
}

func TestNewNop_Independent(t *testing.T) {
	a := NewNop()
	b := NewNop()
	a.IdentifiersIssued.Inc()
	assert.Equal(t, float64(0), testutil.ToFloat64(b.IdentifiersIssued))
}
