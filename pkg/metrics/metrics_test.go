package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.UnitsTotal.WithLabelValues(OutcomeEmpty).Inc()
	m.ListingsCommitted.Add(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnitsTotal.WithLabelValues(OutcomeEmpty)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ListingsCommitted))

	n, err := testutil.GatherAndCount(reg, "scraper_units_total", "scraper_listings_committed_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewTwiceOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
