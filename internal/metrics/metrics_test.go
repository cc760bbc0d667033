package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
	"github.com/aatumaykin/cmsjobs/internal/runtime"
	"github.com/aatumaykin/cmsjobs/internal/workers"
)

type fixedDepth int

func (d fixedDepth) Depth() int { return int(d) }

func TestJobCollector_CountsTickOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewJobCollector("test", reg)
	agg := notifications.New(logger.Nop())
	c.Subscribe(agg)

	level := runtime.NewState(runtime.LevelRun)
	deps := backgroundjobs.Dependencies{
		Runtime: level,
		Roles:   runtime.StaticRoleAccessor{Role: runtime.RoleSingle},
		MainDom: runtime.NewMainDomFlag(true),
		Events:  agg,
	}
	var fail bool
	job := backgroundjobs.NewJobFunc(backgroundjobs.NewJobBase("scrub", time.Hour, 0),
		func(ctx context.Context) error {
			if fail {
				return errors.New("nope")
			}
			return nil
		})
	svc := backgroundjobs.NewHostedService(job, deps, logger.Nop())

	ctx := context.Background()
	svc.PerformExecute(ctx)
	svc.PerformExecute(ctx)
	fail = true
	svc.PerformExecute(ctx)
	level.SetLevel(runtime.LevelBoot)
	svc.PerformExecute(ctx)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.executions.WithLabelValues("scrub", "executed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.executions.WithLabelValues("scrub", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.executions.WithLabelValues("scrub", "ignored")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestJobCollector_QueueMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewJobCollector("", reg)
	c.RegisterQueueDepth("", fixedDepth(7))

	c.RecordQueueResult(workers.Result{Duration: time.Millisecond})
	c.RecordQueueResult(workers.Result{Error: errors.New("x")})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.queueItems.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queueItems.WithLabelValues("failed")))

	families, err := reg.Gather()
	require.NoError(t, err)
	var depth float64
	for _, f := range families {
		if f.GetName() == "cmsjobs_background_queue_depth" {
			depth = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 7.0, depth)
}
