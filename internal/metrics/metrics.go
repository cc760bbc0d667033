// Package metrics exposes job and background queue metrics to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
	"github.com/aatumaykin/cmsjobs/internal/workers"
)

const DefaultNamespace = "cmsjobs"

// QueueDepth reports the number of pending background items.
type QueueDepth interface {
	Depth() int
}

type JobCollector struct {
	registry      prometheus.Registerer
	executions    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	lifecycle     *prometheus.CounterVec
	queueItems    *prometheus.CounterVec
	queueDuration prometheus.Histogram
}

func NewJobCollector(namespace string, reg prometheus.Registerer) *JobCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &JobCollector{
		registry: reg,
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_executions_total",
				Help:      "Recurring job ticks by outcome",
			},
			[]string{"job", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_execution_duration_seconds",
				Help:      "Duration of recurring job ticks that ran the job body",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"job"},
		),
		lifecycle: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_lifecycle_events_total",
				Help:      "Hosted service start and stop events",
			},
			[]string{"job", "event"},
		),
		queueItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "background_queue_items_total",
				Help:      "Background work items by result",
			},
			[]string{"result"},
		),
		queueDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "background_queue_item_duration_seconds",
				Help:      "Duration of background work items",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	reg.MustRegister(
		c.executions,
		c.duration,
		c.lifecycle,
		c.queueItems,
		c.queueDuration,
	)

	return c
}

// RegisterQueueDepth exposes background_queue_depth read from q on scrape.
func (c *JobCollector) RegisterQueueDepth(namespace string, q QueueDepth) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	c.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "background_queue_depth",
			Help:      "Number of background work items waiting to run",
		},
		func() float64 { return float64(q.Depth()) },
	))
}

// Subscribe hooks the collector into job lifecycle notifications.
func (c *JobCollector) Subscribe(agg *notifications.Aggregator) func() {
	offs := []func(){
		notifications.On(agg, func(_ context.Context, n *backgroundjobs.JobExecuted) error {
			c.RecordTick(n.JobName(), backgroundjobs.OutcomeExecuted, tickDuration(n.State()))
			return nil
		}),
		notifications.On(agg, func(_ context.Context, n *backgroundjobs.JobFailed) error {
			c.RecordTick(n.JobName(), backgroundjobs.OutcomeFailed, tickDuration(n.State()))
			return nil
		}),
		notifications.On(agg, func(_ context.Context, n *backgroundjobs.JobIgnored) error {
			c.RecordTick(n.JobName(), backgroundjobs.OutcomeIgnored, 0)
			return nil
		}),
		notifications.On(agg, func(_ context.Context, n *backgroundjobs.JobStarted) error {
			c.lifecycle.WithLabelValues(n.JobName(), "started").Inc()
			return nil
		}),
		notifications.On(agg, func(_ context.Context, n *backgroundjobs.JobStopped) error {
			c.lifecycle.WithLabelValues(n.JobName(), "stopped").Inc()
			return nil
		}),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// RecordTick counts a tick. Ignored ticks never ran the body and are not
// timed.
func (c *JobCollector) RecordTick(job string, outcome backgroundjobs.Outcome, d time.Duration) {
	c.executions.WithLabelValues(job, outcome.String()).Inc()
	if outcome != backgroundjobs.OutcomeIgnored {
		c.duration.WithLabelValues(job).Observe(d.Seconds())
	}
}

// RecordQueueResult is suitable for workers.TaskQueue.OnResult.
func (c *JobCollector) RecordQueueResult(r workers.Result) {
	status := "completed"
	if r.Error != nil {
		status = "failed"
	}
	c.queueItems.WithLabelValues(status).Inc()
	c.queueDuration.Observe(r.Duration.Seconds())
}

func tickDuration(state map[string]any) time.Duration {
	started, ok := state[backgroundjobs.StateKeyStartedAt].(time.Time)
	if !ok {
		return 0
	}
	return time.Since(started)
}
