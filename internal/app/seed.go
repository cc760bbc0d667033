package app

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aatumaykin/cmsjobs/internal/app/builders"
	"github.com/aatumaykin/cmsjobs/internal/config"
	"github.com/aatumaykin/cmsjobs/internal/content"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
	"github.com/aatumaykin/cmsjobs/internal/publicaccess"
	"github.com/aatumaykin/cmsjobs/internal/workers"
)

// Fixture is a YAML document of content items and public access entries.
// Content must be listed parents first.
type Fixture struct {
	Content      []*content.Content    `yaml:"content"`
	PublicAccess []*publicaccess.Entry `yaml:"public_access"`
}

// SeedResult counts what Seed stored.
type SeedResult struct {
	Content      int
	PublicAccess int
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &f, nil
}

// Seed stores the fixture. When the delivery API is enabled the index is
// kept in sync through the regular change notifications.
func Seed(ctx context.Context, cfg *config.Config, log *logger.Logger, f *Fixture) (SeedResult, error) {
	var res SeedResult

	events := notifications.New(log)
	storage, err := builders.NewStorageBuilder(cfg, log).Build(ctx, events)
	if err != nil {
		return res, err
	}
	defer storage.Close()

	if cfg.DeliveryAPI.Enabled {
		queue := workers.NewTaskQueue(cfg.BackgroundQueue.Capacity, log)
		queue.Start()
		idx, err := builders.NewIndexBuilder(cfg, log).Build(storage, queue)
		if err != nil {
			return res, err
		}
		unsubscribe := idx.Subscribe(events)
		defer func() {
			if err := queue.Stop(context.WithoutCancel(ctx)); err != nil {
				log.Error("failed to drain index updates", err)
			}
			unsubscribe()
			idx.Close()
		}()
	}

	for _, c := range f.Content {
		if err := storage.Content.Save(ctx, c); err != nil {
			return res, fmt.Errorf("content %d: %w", c.ID, err)
		}
		res.Content++
	}
	for _, e := range f.PublicAccess {
		if err := storage.PublicAccess.Save(ctx, e); err != nil {
			return res, fmt.Errorf("public access for node %d: %w", e.ProtectedNodeID, err)
		}
		res.PublicAccess++
	}

	log.Info("fixture seeded",
		logger.Field{Key: "content", Value: res.Content},
		logger.Field{Key: "public_access", Value: res.PublicAccess})
	return res, nil
}

// RefreshPublicAccess resynchronizes protected documents in the delivery
// index without starting the job runner.
func RefreshPublicAccess(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if !cfg.DeliveryAPI.Enabled {
		return fmt.Errorf("delivery api is disabled")
	}

	storage, err := builders.NewStorageBuilder(cfg, log).Build(ctx, notifications.New(log))
	if err != nil {
		return err
	}
	defer storage.Close()

	queue := workers.NewTaskQueue(cfg.BackgroundQueue.Capacity, log)
	queue.Start()
	defer queue.Stop(context.WithoutCancel(ctx))

	idx, err := builders.NewIndexBuilder(cfg, log).Build(storage, queue)
	if err != nil {
		return err
	}
	defer idx.Close()

	return idx.PublicAccess.Synchronize(ctx)
}
