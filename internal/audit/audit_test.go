package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs"
	"github.com/aatumaykin/cmsjobs/internal/db"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
	"github.com/aatumaykin/cmsjobs/internal/runtime"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "audit.db"), nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background(), conn, nil))
	rdb := db.NewRetryDB(conn, db.DefaultRetryPolicy(), logger.Nop())
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb)
}

func TestStore_AddRecentPrune(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	old := &Entry{Job: "a", Event: EventExecuted, OccurredAt: now.Add(-48 * time.Hour)}
	require.NoError(t, s.Add(ctx, old))
	assert.NotZero(t, old.ID)
	require.NoError(t, s.Add(ctx, &Entry{Job: "a", Event: EventFailed, Detail: "boom", OccurredAt: now.Add(-time.Hour)}))
	require.NoError(t, s.Add(ctx, &Entry{Job: "b", Event: EventExecuted, OccurredAt: now}))

	all, err := s.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "b", all[0].Job)

	onlyA, err := s.Recent(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, "boom", onlyA[0].Detail)

	n, err := s.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err = s.Recent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSubscriber_RecordsTickOutcomes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	agg := notifications.New(logger.Nop())
	off := NewSubscriber(s, logger.Nop()).Subscribe(agg)
	defer off()

	deps := backgroundjobs.Dependencies{
		Runtime: runtime.NewState(runtime.LevelRun),
		Roles:   runtime.StaticRoleAccessor{Role: runtime.RoleSingle},
		MainDom: runtime.NewMainDomFlag(true),
		Events:  agg,
	}

	fail := true
	job := backgroundjobs.NewJobFunc(
		backgroundjobs.NewJobBase("flaky", time.Hour, 0),
		func(ctx context.Context) error {
			if fail {
				return errors.New("disk full")
			}
			return nil
		})
	svc := backgroundjobs.NewHostedService(job, deps, logger.Nop())

	assert.Equal(t, backgroundjobs.OutcomeFailed, svc.PerformExecute(ctx))
	fail = false
	assert.Equal(t, backgroundjobs.OutcomeExecuted, svc.PerformExecute(ctx))

	entries, err := s.Recent(ctx, "flaky", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, EventExecuted, entries[0].Event)
	assert.Equal(t, EventFailed, entries[1].Event)
	assert.Contains(t, entries[1].Detail, `error="disk full"`)
	assert.Contains(t, entries[1].Detail, "tick=")
}

func TestSubscriber_IgnoredTicksAreNotRecorded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	agg := notifications.New(logger.Nop())
	NewSubscriber(s, logger.Nop()).Subscribe(agg)

	deps := backgroundjobs.Dependencies{
		Runtime: runtime.NewState(runtime.LevelBoot),
		Roles:   runtime.StaticRoleAccessor{Role: runtime.RoleSingle},
		MainDom: runtime.NewMainDomFlag(true),
		Events:  agg,
	}
	job := backgroundjobs.NewJobFunc(backgroundjobs.NewJobBase("idle", time.Hour, 0),
		func(ctx context.Context) error { return nil })

	assert.Equal(t, backgroundjobs.OutcomeIgnored,
		backgroundjobs.NewHostedService(job, deps, logger.Nop()).PerformExecute(ctx))

	entries, err := s.Recent(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
