package main

import (
	"os"
	"strconv"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/revmarket/marketplace-engine/internal/config"
	"github.com/revmarket/marketplace-engine/internal/config/di"
	"github.com/revmarket/marketplace-engine/internal/elastic_search"
	"github.com/revmarket/marketplace-engine/internal/messenger"
	"github.com/revmarket/marketplace-engine/internal/repository"
)

var (
	container        *di.Container
	elastic          elastic_search.Index
	actionRepo       repository.MarketActionRepository
	tokenRepo        repository.TokenRepository
	messengerService messenger.MessageService
)

func main() {
	config.Init()

	var err error
	container, err = di.NewContainer()
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}
	elastic = container.GetElastic()
	actionRepo = container.GetActionRepo()
	tokenRepo = container.GetTokenRepo()
	messengerService = container.GetMessenger()

	app := &cli.App{
		Commands: []*cli.Command{
			{
				Name:   "mappings",
				Usage:  "Install the elastic search mappings",
				Action: installMappings,
			},
			{
				Name:   "actions",
				Usage:  "Show archived actions for a token",
				Action: showActions,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "contract", Value: "", Usage: "Collection contract address"},
				},
			},
			{
				Name:   "tokens",
				Usage:  "Show archived tokens for an owner",
				Action: showTokens,
			},
			{
				Name:   "royalty",
				Usage:  "Show the configured royalty rate",
				Action: showRoyalty,
			},
			{
				Name:   "queue",
				Usage:  "Show the market actions queue size",
				Action: showQueueSize,
			},
		},
	}

	err = app.Run(os.Args)
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to start CLI")
	}
}

func installMappings(c *cli.Context) error {
	elastic.InstallMappings()
	zap.L().Info("Mappings installed")

	return nil
}

func showActions(c *cli.Context) error {
	contract := c.String("contract")
	tokenID, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		zap.L().Error("No token id provided")
		return nil
	}

	actions, total, err := actionRepo.GetActionsByToken(contract, tokenID, 100, 1)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to get actions")
		return err
	}

	zap.S().Infof("Found %d actions", total)
	for _, action := range actions {
		zap.S().Infof("%s %s -> %s cost=%s fee=%s royalty=%s at %s",
			action.Action, action.From, action.To, action.Cost, action.Fee, action.Royalty, action.Time)
	}

	return nil
}

func showTokens(c *cli.Context) error {
	owner := c.Args().First()
	if owner == "" {
		zap.L().Error("No owner provided")
		return nil
	}

	tokens, total, err := tokenRepo.GetTokensByOwner(owner, 100, 1)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to get tokens")
		return err
	}

	zap.S().Infof("Found %d tokens", total)
	for _, token := range tokens {
		zap.S().Infof("%s/%d owner=%s forSale=%t forAuction=%t", token.TokenAddress, token.TokenID, token.Owner, token.ForSale, token.ForAuction)
	}

	return nil
}

func showRoyalty(c *cli.Context) error {
	zap.S().Infof("Royalty rate: %d", container.GetAccess().Royalty())

	return nil
}

func showQueueSize(c *cli.Context) error {
	size, err := messengerService.GetQueueSize(messenger.MarketActions)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Could not get the queue size")
		return nil
	}

	zap.S().Infof("Queue size: %d", *size)

	return nil
}
