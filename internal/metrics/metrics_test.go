package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webtiming/timingsrc/internal/dataset"
	"github.com/webtiming/timingsrc/internal/interval"
	"github.com/webtiming/timingsrc/internal/motion"
	"github.com/webtiming/timingsrc/internal/schedule"
	"github.com/webtiming/timingsrc/internal/sequencer"
	"github.com/webtiming/timingsrc/internal/testutil"
	"github.com/webtiming/timingsrc/internal/timing"
)

var (
	_ dataset.Metrics   = (*Collectors)(nil)
	_ schedule.Metrics  = (*Collectors)(nil)
	_ sequencer.Metrics = (*Collectors)(nil)
)

func TestCollectors_NilIsNoop(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.ObserveBatch(1)
		c.SetCues(2)
		c.ObserveLoad(3)
		c.CountTransition("enter")
	})
}

func TestCollectors_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveBatch(3)
	c.ObserveBatch(1)
	c.SetCues(7)
	c.ObserveLoad(2)
	c.CountTransition("enter")
	c.CountTransition("enter")
	c.CountTransition("exit")

	assert.Equal(t, 2.0, promtest.ToFloat64(c.batches))
	assert.Equal(t, 7.0, promtest.ToFloat64(c.cues))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.loads))
	assert.Equal(t, 2.0, promtest.ToFloat64(c.transitions.WithLabelValues("enter")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.transitions.WithLabelValues("exit")))

	n, err := promtest.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestCollectors_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestCollectors_WiredIntoSequencing(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	clock := testutil.NewManualClock(0)

	ds := dataset.New(dataset.WithMetrics(c))
	_, err := ds.Update([]dataset.Arg{
		dataset.PutInterval("a", interval.MustNew(1, 2, true, true)),
		dataset.PutInterval("b", interval.MustNew(3, 4, true, true)),
	})
	require.NoError(t, err)
	assert.Equal(t, 2.0, promtest.ToFloat64(c.cues))

	obj := timing.NewObject(clock, timing.WithVector(motion.Vector{Velocity: 1}))
	seq := sequencer.NewPoint(ds, obj, sequencer.WithMetrics(c))
	defer seq.Close()
	clock.Advance(10)

	assert.Equal(t, 2.0, promtest.ToFloat64(c.transitions.WithLabelValues("enter")))
	assert.Equal(t, 2.0, promtest.ToFloat64(c.transitions.WithLabelValues("exit")))
	assert.GreaterOrEqual(t, promtest.ToFloat64(c.loads), 1.0)
}
