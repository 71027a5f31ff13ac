package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_IndependentRegistries(t *testing.T) {
	// Two collectors on separate registries must not collide.
	a := NewCollector("seb", prometheus.NewRegistry())
	b := NewCollector("seb", prometheus.NewRegistry())

	a.RecordDatasetLoad("S6", "ok")
	a.RecordDatasetLoad("S6", "ok")
	b.RecordDatasetLoad("S6", "header_format")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.DatasetLoadsTotal.WithLabelValues("S6", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.DatasetLoadsTotal.WithLabelValues("S6", "header_format")))
}

func TestCollector_RecordRows(t *testing.T) {
	c := NewCollector("seb", prometheus.NewRegistry())

	c.RecordRows("S5", 100, 0)
	c.RecordRows("S5", 20, 3)

	assert.Equal(t, 120.0, testutil.ToFloat64(c.RowsParsedTotal.WithLabelValues("S5")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.RowFormatErrorsTotal.WithLabelValues("S5")))
}

func TestCollector_DBPool(t *testing.T) {
	c := NewCollector("seb", prometheus.NewRegistry())
	c.UpdateDBConnectionPool(2, 3, 5)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("in_use")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("total")))
}
