package di

import (
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sarulabs/di/v2"
	"go.uber.org/zap"

	"github.com/revmarket/marketplace-engine/internal/access"
	"github.com/revmarket/marketplace-engine/internal/api"
	"github.com/revmarket/marketplace-engine/internal/config"
	"github.com/revmarket/marketplace-engine/internal/elastic_search"
	"github.com/revmarket/marketplace-engine/internal/indexer"
	"github.com/revmarket/marketplace-engine/internal/ledger"
	"github.com/revmarket/marketplace-engine/internal/marketplace"
	"github.com/revmarket/marketplace-engine/internal/messenger"
	"github.com/revmarket/marketplace-engine/internal/metadata"
	"github.com/revmarket/marketplace-engine/internal/repository"
)

var definitions = []di.Def{
	{
		Name: "elastic",
		Build: func(ctn di.Container) (interface{}, error) {
			elastic, err := elastic_search.New()
			if err != nil {
				zap.L().With(zap.Error(err)).Fatal("Failed to start ES")
			}

			return elastic, nil
		},
	},
	{
		Name: "ledger",
		Build: func(ctn di.Container) (interface{}, error) {
			return ledger.NewMemoryLedger(), nil
		},
	},
	{
		Name: "access",
		Build: func(ctn di.Container) (interface{}, error) {
			cfg := config.Get().Market
			return access.New(cfg.Owner, cfg.RoyaltyRate), nil
		},
	},
	{
		Name: "marketplace",
		Build: func(ctn di.Container) (interface{}, error) {
			cfg := config.Get().Market
			return marketplace.New(
				ctn.Get("ledger").(ledger.Ledger),
				ctn.Get("access").(*access.Control),
				cfg.NativeCollection,
				cfg.MintFee,
			), nil
		},
	},
	{
		Name: "market.indexer",
		Build: func(ctn di.Container) (interface{}, error) {
			return indexer.NewMarketIndexer(
				ctn.Get("elastic").(elastic_search.Index),
				ctn.Get("marketplace").(*marketplace.Marketplace),
			), nil
		},
	},
	{
		Name: "action.repo",
		Build: func(ctn di.Container) (interface{}, error) {
			return repository.NewMarketActionRepository(ctn.Get("elastic").(elastic_search.Index)), nil
		},
	},
	{
		Name: "token.repo",
		Build: func(ctn di.Container) (interface{}, error) {
			return repository.NewTokenRepository(ctn.Get("elastic").(elastic_search.Index)), nil
		},
	},
	{
		Name: "messenger",
		Build: func(ctn di.Container) (interface{}, error) {
			return messenger.NewMessenger(config.Get().Rabbit.Uri), nil
		},
	},
	{
		Name: "metadata",
		Build: func(ctn di.Container) (interface{}, error) {
			client := retryablehttp.NewClient()
			client.RetryMax = config.Get().MetadataRetries
			client.HTTPClient.Timeout = time.Duration(config.Get().IpfsTimeout) * time.Second
			client.Logger = nil

			return metadata.NewMetadataService(client), nil
		},
	},
	{
		Name: "api",
		Build: func(ctn di.Container) (interface{}, error) {
			return api.NewServer(
				ctn.Get("marketplace").(*marketplace.Marketplace),
				ctn.Get("metadata").(metadata.Service),
			), nil
		},
	},
}

type Container struct {
	ctn di.Container
}

func NewContainer() (*Container, error) {
	builder, err := di.NewBuilder()
	if err != nil {
		return nil, err
	}

	if err := builder.Add(definitions...); err != nil {
		return nil, err
	}

	return &Container{ctn: builder.Build()}, nil
}

func (c *Container) GetElastic() elastic_search.Index {
	return c.ctn.Get("elastic").(elastic_search.Index)
}

func (c *Container) GetLedger() ledger.Ledger {
	return c.ctn.Get("ledger").(ledger.Ledger)
}

func (c *Container) GetAccess() *access.Control {
	return c.ctn.Get("access").(*access.Control)
}

func (c *Container) GetMarketplace() *marketplace.Marketplace {
	return c.ctn.Get("marketplace").(*marketplace.Marketplace)
}

func (c *Container) GetMarketIndexer() indexer.MarketIndexer {
	return c.ctn.Get("market.indexer").(indexer.MarketIndexer)
}

func (c *Container) GetActionRepo() repository.MarketActionRepository {
	return c.ctn.Get("action.repo").(repository.MarketActionRepository)
}

func (c *Container) GetTokenRepo() repository.TokenRepository {
	return c.ctn.Get("token.repo").(repository.TokenRepository)
}

func (c *Container) GetMessenger() messenger.MessageService {
	return c.ctn.Get("messenger").(messenger.MessageService)
}

func (c *Container) GetMetadata() metadata.Service {
	return c.ctn.Get("metadata").(metadata.Service)
}

func (c *Container) GetApi() api.Server {
	return c.ctn.Get("api").(api.Server)
}
