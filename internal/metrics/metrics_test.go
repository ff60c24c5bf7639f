package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSince(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_latency_seconds"})
	ObserveSince(h, time.Now().Add(-time.Second))
	assert.Equal(t, 1, testutil.CollectAndCount(h))
}

func TestCountersByLabel(t *testing.T) {
	before := testutil.ToFloat64(Commands.WithLabelValues("TOGGLE"))
	Commands.WithLabelValues("TOGGLE").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Commands.WithLabelValues("TOGGLE")))
}

func TestServeDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	Serve(ctx, "")
}
