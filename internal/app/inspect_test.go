package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cmsjobs/internal/audit"
	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs/jobs"
	"github.com/aatumaykin/cmsjobs/internal/logger"
)

func TestDescribeJobs(t *testing.T) {
	cfg := createTestConfig(t, "[jobs.log_scrubber]\nperiod_seconds = 7200\n[jobs.health_check]\nenabled = false\n")

	got, err := DescribeJobs(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, JobDescription{
		Name:   jobs.LogScrubberName,
		Period: "2h0m0s",
		Delay:  "5m0s",
		Roles:  []string{"single", "scheduling_publisher"},
	}, got[0])
}

func TestJobHistory(t *testing.T) {
	cfg := createTestConfig(t, "")
	ctx := context.Background()

	a := New(cfg, logger.Nop())
	require.NoError(t, a.Initialize(ctx))
	require.NoError(t, a.Storage().Audit.Add(ctx, &audit.Entry{Job: "log-scrubber", Event: audit.EventExecuted}))
	require.NoError(t, a.Storage().Audit.Add(ctx, &audit.Entry{Job: "touch-server", Event: audit.EventFailed}))
	require.NoError(t, a.Shutdown(ctx))

	entries, err := JobHistory(ctx, cfg, logger.Nop(), "log-scrubber", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.EventExecuted, entries[0].Event)

	all, err := JobHistory(ctx, cfg, logger.Nop(), "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
