package app

import (
	"context"

	"github.com/aatumaykin/cmsjobs/internal/app/builders"
	"github.com/aatumaykin/cmsjobs/internal/audit"
	"github.com/aatumaykin/cmsjobs/internal/config"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
)

// JobDescription is the configured schedule of one job.
type JobDescription struct {
	Name   string   `yaml:"name"`
	Period string   `yaml:"period"`
	Delay  string   `yaml:"delay"`
	Roles  []string `yaml:"roles"`
}

// DescribeJobs lists the jobs the configuration enables, without starting
// them.
func DescribeJobs(ctx context.Context, cfg *config.Config, log *logger.Logger) ([]JobDescription, error) {
	storage, err := builders.NewStorageBuilder(cfg, log).Build(ctx, notifications.New(log))
	if err != nil {
		return nil, err
	}
	defer storage.Close()

	cluster, err := builders.NewClusterBuilder(cfg, log).Build(storage)
	if err != nil {
		return nil, err
	}

	var out []JobDescription
	for _, j := range builders.NewJobsBuilder(cfg, log).Build(storage, cluster, nil).List() {
		d := JobDescription{
			Name:   j.Name(),
			Period: j.Period().String(),
			Delay:  j.Delay().String(),
		}
		for _, r := range j.ServerRoles() {
			d.Roles = append(d.Roles, r.String())
		}
		out = append(out, d)
	}
	return out, nil
}

// JobHistory returns the latest audit entries of job, newest first. An
// empty job returns entries of all jobs.
func JobHistory(ctx context.Context, cfg *config.Config, log *logger.Logger, job string, limit int) ([]*audit.Entry, error) {
	storage, err := builders.NewStorageBuilder(cfg, log).Build(ctx, notifications.New(log))
	if err != nil {
		return nil, err
	}
	defer storage.Close()

	return storage.Audit.Recent(ctx, job, limit)
}
