package workers

// Metrics returns a snapshot of the queue counters.
func (q *TaskQueue) Metrics() QueueMetrics {
	q.metricsMu.RLock()
	defer q.metricsMu.RUnlock()
	return q.metrics
}

// Depth returns the number of items waiting to run.
func (q *TaskQueue) Depth() int {
	return len(q.items)
}

func (q *TaskQueue) incrementQueued() {
	q.metricsMu.Lock()
	defer q.metricsMu.Unlock()
	q.metrics.Queued++
}

func (q *TaskQueue) incrementDropped() {
	q.metricsMu.Lock()
	defer q.metricsMu.Unlock()
	q.metrics.Dropped++
}

// recordResult updates counters for a finished item.
func (q *TaskQueue) recordResult(r Result) {
	q.metricsMu.Lock()
	defer q.metricsMu.Unlock()
	if r.Error != nil {
		q.metrics.Failed++
	} else {
		q.metrics.Completed++
	}
	q.metrics.TotalDuration += r.Duration
}
