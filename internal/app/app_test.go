package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs"
	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs/jobs"
	"github.com/aatumaykin/cmsjobs/internal/config"
	"github.com/aatumaykin/cmsjobs/internal/deliveryindex"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/runtime"
	"github.com/aatumaykin/cmsjobs/internal/search"
)

func createTestConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Parse([]byte(fmt.Sprintf(`
[logging]
output = "discard"
[database]
path = %q
%s`, filepath.Join(dir, "cms.db"), extra)))
	require.NoError(t, err)
	require.Empty(t, cfg.Validate())
	return cfg
}

func TestApp_InitializeAndShutdown(t *testing.T) {
	cfg := createTestConfig(t, `
[runtime]
server_role = "auto"
[server_registration]
enabled = true
[main_dom]
enabled = true
[delivery_api]
enabled = true
`)
	a := New(cfg, logger.Nop())
	ctx := context.Background()

	require.NoError(t, a.Initialize(ctx))
	assert.Equal(t, runtime.LevelRun, a.State().Level())
	assert.ErrorIs(t, a.Initialize(ctx), ErrAlreadyStarted)

	// first registered server schedules
	assert.Equal(t, runtime.RoleSchedulingPublisher, a.cluster.Roles.CurrentServerRole())
	assert.True(t, a.cluster.MainDom.IsMainDom())
	require.NotNil(t, a.DeliveryIndex())

	var names []string
	for _, e := range a.Runner().Services() {
		names = append(names, e.Name)
		assert.True(t, e.Service.State().Running())
	}
	assert.ElementsMatch(t, []string{jobs.LogScrubberName, jobs.TouchServerName, jobs.HealthCheckNotifierName}, names)

	svc, err := a.Runner().Service(jobs.HealthCheckNotifierName)
	require.NoError(t, err)
	assert.Equal(t, backgroundjobs.OutcomeExecuted, svc.PerformExecute(ctx))

	entries, err := a.Storage().Audit.Recent(ctx, jobs.HealthCheckNotifierName, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	families, err := a.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(shutdownCtx))
	assert.Equal(t, runtime.LevelUnknown, a.State().Level())
	assert.NoError(t, a.Shutdown(shutdownCtx))
}

func TestApp_ShutdownNotStarted(t *testing.T) {
	a := New(createTestConfig(t, ""), logger.Nop())
	assert.NoError(t, a.Shutdown(context.Background()))
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	a := New(createTestConfig(t, ""), logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.State().Level() == runtime.LevelRun }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApp_RunFailsOnBadRole(t *testing.T) {
	cfg := createTestConfig(t, "")
	cfg.Runtime.ServerRole = "primary"
	a := New(cfg, logger.Nop())

	err := a.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, runtime.LevelBootFailed, a.State().Level())
}

func TestApp_ApplyConfig(t *testing.T) {
	cfg := createTestConfig(t, "[delivery_api]\nenabled = true\n")
	a := New(cfg, logger.Nop())
	require.NoError(t, a.Initialize(context.Background()))
	t.Cleanup(func() { a.Shutdown(context.Background()) })

	reloaded := *cfg
	reloaded.Jobs.LogScrubber.PeriodSeconds = 600
	reloaded.DeliveryAPI.MemberAuthorization = true
	reloaded.DeliveryAPI.DisallowedContentTypes = []string{"secret"}
	a.ApplyConfig(&reloaded)

	svc, err := a.Runner().Service(jobs.LogScrubberName)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, svc.Period())

	settings := a.DeliveryIndex().Settings.Get()
	assert.True(t, settings.MemberAuthorizationEnabled)
	assert.Equal(t, []string{"secret"}, settings.DisallowedContentTypes)
}

const fixtureYAML = `
content:
  - id: 1
    name: Home
    content_type_id: 10
    content_type_alias: page
    published: true
    cultures: [en-US]
  - id: 2
    parent_id: 1
    name: Members
    content_type_id: 10
    content_type_alias: page
    published: true
    cultures: [en-US]
  - id: 3
    parent_id: 1
    name: Draft
    content_type_id: 10
    content_type_alias: page
    published: false
public_access:
  - protected_node_id: 2
    login_node_id: 1
    no_access_node_id: 1
    rules:
      - type: MemberRole
        value: members
`

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0644))

	f, err := LoadFixture(path)
	require.NoError(t, err)
	require.Len(t, f.Content, 3)
	require.Len(t, f.PublicAccess, 1)
	assert.Equal(t, 1, f.Content[1].ParentID)
	assert.Equal(t, "members", f.PublicAccess[0].Rules[0].Value)

	_, err = LoadFixture(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func seedFixture(t *testing.T, cfg *config.Config) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0644))
	f, err := LoadFixture(path)
	require.NoError(t, err)

	res, err := Seed(context.Background(), cfg, logger.Nop(), f)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Content: 3, PublicAccess: 1}, res)
}

func docCount(t *testing.T, path string) uint64 {
	t.Helper()
	idx, err := search.OpenIndex(deliveryindex.IndexName, path, logger.Nop())
	require.NoError(t, err)
	defer idx.Close()
	n, err := idx.DocCount(context.Background())
	require.NoError(t, err)
	return n
}

func TestSeedAndRefreshPublicAccess(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "delivery.bleve")
	cfg := createTestConfig(t, fmt.Sprintf(`
[delivery_api]
enabled = true
member_authorization = true
index_path = %q
`, indexPath))

	seedFixture(t, cfg)
	// home and members, the draft is unpublished
	assert.Equal(t, uint64(2), docCount(t, indexPath))

	cfg.DeliveryAPI.MemberAuthorization = false
	require.NoError(t, RefreshPublicAccess(context.Background(), cfg, logger.Nop()))
	assert.Equal(t, uint64(1), docCount(t, indexPath))
}

func TestRefreshPublicAccess_DeliveryDisabled(t *testing.T) {
	assert.Error(t, RefreshPublicAccess(context.Background(), createTestConfig(t, ""), logger.Nop()))
}
