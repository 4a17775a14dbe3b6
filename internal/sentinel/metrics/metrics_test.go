package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.Ingested(3)
	m.Ingested(0)
	m.Rejected()
	m.Duplicate()
	m.Duplicate()
	m.Evicted(7)
	m.Action("Quarantine", OutcomeApplied)
	m.Action("Quarantine", OutcomeDenied)
	m.Action("Quarantine", OutcomeDenied)
	m.Reconnected()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsIngested))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsRejected))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsDuplicate))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.EventsEvicted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Actions.WithLabelValues("Quarantine", OutcomeDenied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconnects))
}

func TestMetrics_Observe(t *testing.T) {
	set, err := endpoint.NewSet([]endpoint.Endpoint{
		{ID: "a", Status: endpoint.Online},
		{ID: "b", Status: endpoint.Quarantined},
		{ID: "c", Status: endpoint.Online},
	})
	require.NoError(t, err)

	m := New()
	m.Observe(42, set)

	assert.Equal(t, 42.0, testutil.ToFloat64(m.StoreSize))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Endpoints.WithLabelValues("Online")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Endpoints.WithLabelValues("Offline")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Endpoints.WithLabelValues("Quarantined")))

	n, err := testutil.GatherAndCount(m.Registry)
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Ingested(1)
		m.Rejected()
		m.Duplicate()
		m.Evicted(1)
		m.Action("Isolate", OutcomeApplied)
		m.Reconnected()
		m.Observe(1, endpoint.Set{})
	})
}
