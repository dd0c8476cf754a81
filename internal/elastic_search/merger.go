package elastic_search

import (
	"go.uber.org/zap"

	"github.com/revmarket/marketplace-engine/internal/entity"
)

func mergeRequests(index string, cached Request, action RequestAction, e entity.Entity) entity.Entity {
	switch {
	case index == MarketActionIndex.Get():
		// Actions are append-only, the newest write wins.
		return e

	case index == TokenIndex.Get():
		result := cached.Entity.(entity.Token)
		if action == TokenTransfer {
			result.Owner = e.(entity.Token).Owner
		}

		if action == TokenTrade {
			result.Owner = e.(entity.Token).Owner
			result.History = e.(entity.Token).History
			result.ForSale = e.(entity.Token).ForSale
			result.ForAuction = e.(entity.Token).ForAuction
			result.AskPrice = e.(entity.Token).AskPrice
		}

		if action == MarketListing || action == MarketDelisting {
			result.ForSale = e.(entity.Token).ForSale
			result.ForAuction = e.(entity.Token).ForAuction
			result.SellID = e.(entity.Token).SellID
			result.AuctionID = e.(entity.Token).AuctionID
			result.AskPrice = e.(entity.Token).AskPrice
		}

		if action == MarketOffer {
			result.Offers = e.(entity.Token).Offers
		}

		return result
	}

	zap.L().Fatal("Failed to merge request")
	return nil
}
