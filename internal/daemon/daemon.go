package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/revmarket/marketplace-engine/internal/config"
	"github.com/revmarket/marketplace-engine/internal/config/di"
	"github.com/revmarket/marketplace-engine/internal/dev"
	"github.com/revmarket/marketplace-engine/internal/elastic_search"
	"github.com/revmarket/marketplace-engine/internal/event"
	"github.com/revmarket/marketplace-engine/internal/marketplace"
	"github.com/revmarket/marketplace-engine/internal/messenger"
)

var container *di.Container

func Execute() {
	initialize()

	container.GetElastic().InstallMappings()

	if config.Get().Reindex == true {
		zap.L().Info("Reindex complete")
		return
	}

	if config.Get().Subscribe == true {
		container.GetMarketIndexer().Subscribe()
		publishActions()
		publishMetadataRefreshes()
	}

	go persistLoop()

	serve()
}

func initialize() {
	config.Init()

	var err error
	container, err = di.NewContainer()
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}

	zap.L().Info("Market Started")
}

// publishActions forwards settlements onto the message bus for downstream
// consumers. Publish failures go into the archive as dev errors so the lost
// message can be recovered.
func publishActions() {
	publish := func(msg interface{}) {
		body, err := json.Marshal(msg)
		if err != nil {
			zap.L().With(zap.Error(err)).Error("Failed to marshal settlement")
			return
		}

		if err := container.GetMessenger().SendMessage(messenger.MarketActions, body, false); err != nil {
			zap.L().With(zap.Error(err)).Error("Failed to publish settlement")
			capturePublishFailure(messenger.MarketActions, body, err)
		}
	}

	event.AddEventListener(event.SaleSettledEvent, publish)
	event.AddEventListener(event.AuctionSettledEvent, publish)
	event.AddEventListener(event.OfferAcceptedEvent, publish)
}

// publishMetadataRefreshes queues freshly minted tokens so a downstream
// worker re-fetches their metadata.
func publishMetadataRefreshes() {
	publish := func(msg interface{}) {
		body, ok := metadataRefreshPayload(msg)
		if !ok {
			return
		}

		if err := container.GetMessenger().SendMessage(messenger.MetadataRefresh, body, false); err != nil {
			zap.L().With(zap.Error(err)).Error("Failed to publish metadata refresh")
			capturePublishFailure(messenger.MetadataRefresh, body, err)
		}
	}

	event.AddEventListener(event.TokenMintedEvent, publish)
}

func metadataRefreshPayload(msg interface{}) ([]byte, bool) {
	minted, ok := msg.(marketplace.TokenMinted)
	if !ok {
		return nil, false
	}

	body, err := json.Marshal(minted.Ref)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to marshal metadata refresh")
		return nil, false
	}

	return body, true
}

func capturePublishFailure(item messenger.Item, body []byte, err error) {
	container.GetElastic().AddIndexRequest(
		elastic_search.DevErrorIndex.Get(),
		dev.NewError("messenger", string(item), err, map[string]interface{}{"body": string(body)}),
		elastic_search.DevError,
	)
}

func persistLoop() {
	for {
		time.Sleep(5 * time.Second)
		if !container.GetElastic().BatchPersist() {
			container.GetElastic().Persist()
		}
	}
}

func serve() {
	addr := fmt.Sprintf("%s:%s", config.Get().Api.Host, config.Get().Api.Port)
	zap.L().With(zap.String("addr", addr)).Info("Starting API")

	if err := http.ListenAndServe(addr, container.GetApi().Router()); err != nil {
		zap.L().With(zap.Error(err)).Fatal("API server failed")
	}
}
