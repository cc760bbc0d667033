package builders

import (
	"fmt"

	"github.com/aatumaykin/cmsjobs/internal/config"
	"github.com/aatumaykin/cmsjobs/internal/deliveryindex"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
	"github.com/aatumaykin/cmsjobs/internal/search"
)

// DeliveryIndex is the wired delivery API index.
type DeliveryIndex struct {
	Index              search.Index
	Settings           *deliveryindex.SettingsHolder
	Helper             *deliveryindex.Helper
	Indexer            *deliveryindex.Indexer
	PublicAccess       *deliveryindex.PublicAccessHandler
	ContentChanges     *deliveryindex.ContentChangesHandler
	ContentTypeChanges *deliveryindex.ContentTypeChangesHandler
}

// Subscribe registers the change handlers on agg.
func (d *DeliveryIndex) Subscribe(agg *notifications.Aggregator) func() {
	return deliveryindex.Subscribe(agg, d.PublicAccess, d.ContentChanges, d.ContentTypeChanges)
}

// Close closes the index.
func (d *DeliveryIndex) Close() error {
	return d.Index.Close()
}

type IndexBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewIndexBuilder(cfg *config.Config, log *logger.Logger) *IndexBuilder {
	return &IndexBuilder{
		config: cfg,
		logger: log,
	}
}

// SettingsFrom maps the delivery API config section to index settings.
func SettingsFrom(cfg config.DeliveryAPIConfig) deliveryindex.Settings {
	return deliveryindex.Settings{
		MemberAuthorizationEnabled: cfg.MemberAuthorization,
		DisallowedContentTypes:     append([]string(nil), cfg.DisallowedContentTypes...),
	}
}

func (b *IndexBuilder) Build(storage *Storage, queue deliveryindex.BackgroundQueue) (*DeliveryIndex, error) {
	var (
		index search.Index
		err   error
	)
	if path := b.config.DeliveryAPI.IndexPath; path != "" {
		index, err = search.OpenIndex(deliveryindex.IndexName, path, b.logger)
	} else {
		index, err = search.NewMemIndex(deliveryindex.IndexName, b.logger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open delivery index: %w", err)
	}

	settings := deliveryindex.NewSettingsHolder(SettingsFrom(b.config.DeliveryAPI))
	helper := deliveryindex.NewHelper(index, storage.Content)
	valueSets := deliveryindex.NewValueSetBuilder(storage.PublicAccess, settings)
	indexer := deliveryindex.NewIndexer(index, valueSets, helper, b.logger)

	return &DeliveryIndex{
		Index:    index,
		Settings: settings,
		Helper:   helper,
		Indexer:  indexer,
		PublicAccess: deliveryindex.NewPublicAccessHandler(
			index, helper, indexer, storage.Content, storage.PublicAccess, settings, queue, b.logger),
		ContentChanges:     deliveryindex.NewContentChangesHandler(helper, indexer, storage.Content, queue, b.logger),
		ContentTypeChanges: deliveryindex.NewContentTypeChangesHandler(helper, indexer, storage.Content, queue, b.logger),
	}, nil
}
