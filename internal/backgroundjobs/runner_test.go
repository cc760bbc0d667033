package backgroundjobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	name     string
	startErr error
	stopErr  error
	starts   int
	stops    int
	log      *[]string
}

func (f *fakeService) Start(context.Context) error {
	f.starts++
	*f.log = append(*f.log, "start:"+f.name)
	return f.startErr
}

func (f *fakeService) Stop(context.Context) error {
	f.stops++
	*f.log = append(*f.log, "stop:"+f.name)
	return f.stopErr
}

func TestRunner_StartsOneServicePerJob(t *testing.T) {
	var calls []string
	built := map[string]*fakeService{}
	factory := func(job RecurringJob) (*fakeService, error) {
		svc := &fakeService{name: job.Name(), log: &calls}
		built[job.Name()] = svc
		return svc, nil
	}
	jobs := []RecurringJob{
		newCountingJob("a", time.Hour, 0),
		newCountingJob("b", time.Hour, 0),
		newCountingJob("c", time.Hour, 0),
	}

	runner := NewRunner(jobs, factory, testLogger())
	require.NoError(t, runner.Start(context.Background()))

	services := runner.Services()
	require.Len(t, services, 3)
	assert.Equal(t, "a", services[0].Name)

	runner.Stop(context.Background())

	assert.Equal(t, []string{"start:a", "start:b", "start:c", "stop:a", "stop:b", "stop:c"}, calls)
	for _, svc := range built {
		assert.Equal(t, 1, svc.starts)
		assert.Equal(t, 1, svc.stops)
	}
}

func TestRunner_PartialStartFailure(t *testing.T) {
	var calls []string
	factory := func(job RecurringJob) (*fakeService, error) {
		switch job.Name() {
		case "unbuildable":
			return nil, errors.New("no constructor")
		case "unstartable":
			return &fakeService{name: job.Name(), log: &calls, startErr: errors.New("port in use")}, nil
		}
		return &fakeService{name: job.Name(), log: &calls}, nil
	}
	jobs := []RecurringJob{
		newCountingJob("first", time.Hour, 0),
		newCountingJob("unbuildable", time.Hour, 0),
		newCountingJob("unstartable", time.Hour, 0),
		newCountingJob("last", time.Hour, 0),
	}

	runner := NewRunner(jobs, factory, testLogger())
	require.NoError(t, runner.Start(context.Background()))

	services := runner.Services()
	require.Len(t, services, 2)
	assert.Equal(t, "first", services[0].Name)
	assert.Equal(t, "last", services[1].Name)

	runner.Stop(context.Background())
	assert.Equal(t, []string{"start:first", "start:unstartable", "start:last", "stop:first", "stop:last"}, calls)
}

func TestRunner_PartialStopFailure(t *testing.T) {
	var calls []string
	factory := func(job RecurringJob) (*fakeService, error) {
		svc := &fakeService{name: job.Name(), log: &calls}
		if job.Name() == "stubborn" {
			svc.stopErr = errors.New("still busy")
		}
		return svc, nil
	}
	jobs := []RecurringJob{
		newCountingJob("stubborn", time.Hour, 0),
		newCountingJob("polite", time.Hour, 0),
	}

	runner := NewRunner(jobs, factory, testLogger())
	require.NoError(t, runner.Start(context.Background()))
	runner.Stop(context.Background())

	assert.Contains(t, calls, "stop:stubborn")
	assert.Contains(t, calls, "stop:polite")
	assert.Empty(t, runner.Services())
}

func TestRunner_DuplicateNamesSkipped(t *testing.T) {
	var calls []string
	factory := func(job RecurringJob) (*fakeService, error) {
		return &fakeService{name: job.Name(), log: &calls}, nil
	}
	jobs := []RecurringJob{
		newCountingJob("same", time.Hour, 0),
		newCountingJob("same", time.Minute, 0),
	}

	runner := NewRunner(jobs, factory, testLogger())
	require.NoError(t, runner.Start(context.Background()))
	assert.Len(t, runner.Services(), 1)
	assert.ErrorIs(t, runner.Start(context.Background()), ErrRunnerStarted)
}

func TestRunner_ServiceLookup(t *testing.T) {
	deps, _ := runnableDeps()
	jobs := []RecurringJob{newCountingJob("lookup", time.Hour, time.Hour)}

	runner := NewRunner(jobs, NewFactory(deps, testLogger()), testLogger())
	require.NoError(t, runner.Start(context.Background()))
	defer runner.Stop(context.Background())

	svc, err := runner.Service("lookup")
	require.NoError(t, err)
	assert.Equal(t, "lookup", svc.Job().Name())
	assert.Equal(t, StateIdle, svc.State())

	_, err = runner.Service("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
