package indexer

import (
	"time"

	"go.uber.org/zap"

	"github.com/revmarket/marketplace-engine/internal/auction"
	"github.com/revmarket/marketplace-engine/internal/elastic_search"
	"github.com/revmarket/marketplace-engine/internal/entity"
	"github.com/revmarket/marketplace-engine/internal/event"
	"github.com/revmarket/marketplace-engine/internal/ledger"
	"github.com/revmarket/marketplace-engine/internal/marketplace"
	"github.com/revmarket/marketplace-engine/internal/offer"
	"github.com/revmarket/marketplace-engine/internal/sale"
)

// MarketIndexer turns marketplace events into MarketAction rows and buffered
// token documents for the archive.
type MarketIndexer interface {
	Subscribe()
}

type marketIndexer struct {
	elastic elastic_search.Index
	market  *marketplace.Marketplace
}

func NewMarketIndexer(elastic elastic_search.Index, market *marketplace.Marketplace) MarketIndexer {
	return marketIndexer{elastic, market}
}

// Subscribe attaches the indexer to the event stream. Call once at startup,
// before the market starts taking traffic.
func (i marketIndexer) Subscribe() {
	event.AddEventListener(event.TokenMintedEvent, i.tokenMinted)
	event.AddEventListener(event.TokenTransferEvent, i.tokenTransferred)
	event.AddEventListener(event.SaleListedEvent, i.saleListed)
	event.AddEventListener(event.SaleDelistedEvent, i.saleDelisted)
	event.AddEventListener(event.SaleSettledEvent, i.saleSettled)
	event.AddEventListener(event.AuctionListedEvent, i.auctionListed)
	event.AddEventListener(event.AuctionSettledEvent, i.auctionSettled)
	event.AddEventListener(event.AuctionDelistedEvent, i.auctionDelisted)
	event.AddEventListener(event.OfferMadeEvent, i.offerMade)
	event.AddEventListener(event.OfferAcceptedEvent, i.offerAccepted)

	zap.L().Info("MarketIndexer: Subscribed to market events")
}

func (i marketIndexer) tokenMinted(msg interface{}) {
	minted, ok := msg.(marketplace.TokenMinted)
	if !ok {
		return
	}

	i.indexAction(entity.MarketAction{
		Contract: minted.Ref.TokenAddress,
		TokenID:  minted.Ref.TokenID,
		Action:   entity.MintAction,
		To:       minted.Owner,
		Time:     minted.Time,
	}, elastic_search.TokenMint)

	i.refreshToken(minted.Ref, elastic_search.TokenMint)
}

func (i marketIndexer) tokenTransferred(msg interface{}) {
	transfer, ok := msg.(marketplace.TokenTransfer)
	if !ok {
		return
	}

	i.indexAction(entity.MarketAction{
		Contract: transfer.Ref.TokenAddress,
		TokenID:  transfer.Ref.TokenID,
		Action:   entity.TransferAction,
		From:     transfer.From,
		To:       transfer.To,
		Time:     transfer.Time,
	}, elastic_search.TokenTransfer)

	i.refreshToken(transfer.Ref, elastic_search.TokenTransfer)
}

func (i marketIndexer) saleListed(msg interface{}) {
	listing, ok := msg.(entity.SaleListing)
	if !ok {
		return
	}

	for _, tokenID := range listing.TokenIDs {
		ref := entity.TokenRef{TokenAddress: listing.TokenAddress, TokenID: tokenID}

		i.indexAction(entity.MarketAction{
			Contract: listing.TokenAddress,
			TokenID:  tokenID,
			Action:   entity.ListingAction,
			From:     listing.Seller,
			Cost:     listing.AskPrice.String(),
			Currency: string(ledger.Native),
			Time:     time.Now(),
		}, elastic_search.MarketListing)

		i.refreshToken(ref, elastic_search.MarketListing)
	}
}

func (i marketIndexer) saleDelisted(msg interface{}) {
	listing, ok := msg.(entity.SaleListing)
	if !ok {
		return
	}

	for _, tokenID := range listing.TokenIDs {
		i.indexAction(entity.MarketAction{
			Contract: listing.TokenAddress,
			TokenID:  tokenID,
			Action:   entity.DelistingAction,
			From:     listing.Seller,
			Time:     time.Now(),
		}, elastic_search.MarketDelisting)

		i.refreshToken(entity.TokenRef{TokenAddress: listing.TokenAddress, TokenID: tokenID}, elastic_search.MarketDelisting)
	}
}

func (i marketIndexer) saleSettled(msg interface{}) {
	receipt, ok := msg.(sale.Receipt)
	if !ok {
		return
	}

	for _, tokenID := range receipt.Listing.TokenIDs {
		i.indexAction(entity.MarketAction{
			Contract: receipt.Listing.TokenAddress,
			TokenID:  tokenID,
			Action:   entity.SaleAction,
			From:     receipt.Listing.Seller,
			To:       receipt.Buyer,
			Cost:     receipt.Breakdown.Amount.String(),
			Fee:      receipt.Breakdown.Fee.String(),
			Royalty:  receipt.Breakdown.Royalty.String(),
			Currency: string(ledger.Native),
			Time:     time.Now(),
		}, elastic_search.MarketSale)

		i.refreshToken(entity.TokenRef{TokenAddress: receipt.Listing.TokenAddress, TokenID: tokenID}, elastic_search.TokenTrade)
	}
}

func (i marketIndexer) auctionListed(msg interface{}) {
	a, ok := msg.(entity.Auction)
	if !ok {
		return
	}

	for _, tokenID := range a.TokenIDs {
		i.indexAction(entity.MarketAction{
			Contract: a.TokenAddress,
			TokenID:  tokenID,
			Action:   entity.ListingAction,
			From:     a.Seller,
			Cost:     a.Price.String(),
			Currency: string(ledger.WETH),
			Time:     a.ListedAt,
		}, elastic_search.MarketListing)

		i.refreshToken(entity.TokenRef{TokenAddress: a.TokenAddress, TokenID: tokenID}, elastic_search.MarketListing)
	}
}

func (i marketIndexer) auctionSettled(msg interface{}) {
	receipt, ok := msg.(auction.Receipt)
	if !ok {
		return
	}

	for _, tokenID := range receipt.Auction.TokenIDs {
		i.indexAction(entity.MarketAction{
			Contract: receipt.Auction.TokenAddress,
			TokenID:  tokenID,
			Action:   entity.AuctionAction,
			From:     receipt.Auction.Seller,
			To:       receipt.Winner.AskPerson,
			Cost:     receipt.Breakdown.Amount.String(),
			Fee:      receipt.Breakdown.Fee.String(),
			Royalty:  receipt.Breakdown.Royalty.String(),
			Currency: string(ledger.WETH),
			Time:     time.Now(),
		}, elastic_search.MarketAuction)

		i.refreshToken(entity.TokenRef{TokenAddress: receipt.Auction.TokenAddress, TokenID: tokenID}, elastic_search.TokenTrade)
	}
}

func (i marketIndexer) auctionDelisted(msg interface{}) {
	a, ok := msg.(entity.Auction)
	if !ok {
		return
	}

	for _, tokenID := range a.TokenIDs {
		i.indexAction(entity.MarketAction{
			Contract: a.TokenAddress,
			TokenID:  tokenID,
			Action:   entity.DelistingAction,
			From:     a.Seller,
			Time:     time.Now(),
		}, elastic_search.MarketDelisting)

		i.refreshToken(entity.TokenRef{TokenAddress: a.TokenAddress, TokenID: tokenID}, elastic_search.MarketDelisting)
	}
}

func (i marketIndexer) offerMade(msg interface{}) {
	made, ok := msg.(entity.Offer)
	if !ok {
		return
	}

	i.refreshToken(entity.TokenRef{TokenAddress: made.TokenAddress, TokenID: made.TokenID}, elastic_search.MarketOffer)
}

func (i marketIndexer) offerAccepted(msg interface{}) {
	receipt, ok := msg.(offer.Receipt)
	if !ok {
		return
	}

	i.indexAction(entity.MarketAction{
		Contract: receipt.Offer.TokenAddress,
		TokenID:  receipt.Offer.TokenID,
		Action:   entity.OfferAction,
		From:     receipt.Offer.Offerer,
		Cost:     receipt.Breakdown.Amount.String(),
		Fee:      receipt.Breakdown.Fee.String(),
		Royalty:  receipt.Breakdown.Royalty.String(),
		Currency: string(ledger.WETH),
		Time:     time.Now(),
	}, elastic_search.MarketOffer)

	i.refreshToken(entity.TokenRef{TokenAddress: receipt.Offer.TokenAddress, TokenID: receipt.Offer.TokenID}, elastic_search.TokenTrade)
}

func (i marketIndexer) indexAction(action entity.MarketAction, reqAction elastic_search.RequestAction) {
	i.elastic.AddIndexRequest(elastic_search.MarketActionIndex.Get(), action, reqAction)
}

func (i marketIndexer) refreshToken(ref entity.TokenRef, reqAction elastic_search.RequestAction) {
	token, err := i.market.GetTokenDetail(ref.TokenAddress, ref.TokenID)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("slug", ref.Slug())).Warn("MarketIndexer: Token missing from registry")
		return
	}

	i.elastic.AddUpdateRequest(elastic_search.TokenIndex.Get(), token, reqAction)
}
