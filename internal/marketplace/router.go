package marketplace

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/revmarket/marketplace-engine/internal/access"
	"github.com/revmarket/marketplace-engine/internal/auction"
	"github.com/revmarket/marketplace-engine/internal/entity"
	"github.com/revmarket/marketplace-engine/internal/event"
	"github.com/revmarket/marketplace-engine/internal/ledger"
	"github.com/revmarket/marketplace-engine/internal/offer"
	"github.com/revmarket/marketplace-engine/internal/registry"
	"github.com/revmarket/marketplace-engine/internal/sale"
	"github.com/revmarket/marketplace-engine/internal/settlement"
)

// Marketplace is the single entry point over the registry and the three
// trading engines. Mutating calls are serialized under one mutex, which is
// what makes the sale/auction mutual delisting safe: an engine never calls
// back into the other except from inside a Marketplace operation.
type Marketplace struct {
	mu       sync.Mutex
	Registry *registry.Registry
	Sales    *sale.Engine
	Auctions *auction.Engine
	Offers   *offer.Engine
	Access   *access.Control
	Ledger   ledger.Ledger
}

func New(led ledger.Ledger, acl *access.Control, nativeNFT string, mintFee decimal.Decimal) *Marketplace {
	reg := registry.New(led, acl, nativeNFT, mintFee)
	dist := settlement.NewDistributor(led, acl)

	sales := sale.NewEngine(reg, led, acl, dist)
	auctions := auction.NewEngine(reg, led, acl, dist)
	offers := offer.NewEngine(reg, led, acl, dist)

	sales.SetAuctionCanceller(auctions)
	auctions.SetSaleDelister(sales)

	return &Marketplace{
		Registry: reg,
		Sales:    sales,
		Auctions: auctions,
		Offers:   offers,
		Access:   acl,
		Ledger:   led,
	}
}

// SetClock points every engine at the same time source.
func (m *Marketplace) SetClock(now func() time.Time) {
	m.Sales.SetClock(now)
	m.Auctions.SetClock(now)
	m.Offers.SetClock(now)
}

// Registry surface

func (m *Marketplace) AddCollection(caller, collection string, tokenIDs []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Registry.AddCollection(caller, collection, tokenIDs)
}

func (m *Marketplace) RemoveNFT(caller, collection string, tokenIDs []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Registry.RemoveNFT(caller, collection, tokenIDs)
}

func (m *Marketplace) BatchTransfer(caller, to string, refs []entity.TokenRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Registry.BatchTransfer(caller, to, refs); err != nil {
		return err
	}

	for _, ref := range refs {
		event.EmitEvent(event.TokenTransferEvent, TokenTransfer{Ref: ref, From: caller, To: to, Time: time.Now()})
	}

	return nil
}

func (m *Marketplace) MintNFT(caller, tokenURI string, payment decimal.Decimal) (entity.TokenRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref, err := m.Registry.MintNFT(caller, tokenURI, payment)
	if err != nil {
		return entity.TokenRef{}, err
	}

	event.EmitEvent(event.TokenMintedEvent, TokenMinted{Ref: ref, Owner: caller, TokenURI: tokenURI, Time: time.Now()})

	return ref, nil
}

func (m *Marketplace) CreateCollection(caller, name, symbol, baseURI string, mintFee decimal.Decimal) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Registry.CreateCollection(caller, name, symbol, baseURI, mintFee)
}

func (m *Marketplace) MintInCollection(caller, collection, tokenURI string, payment decimal.Decimal) (entity.TokenRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref, err := m.Registry.MintInCollection(caller, collection, tokenURI, payment)
	if err != nil {
		return entity.TokenRef{}, err
	}

	event.EmitEvent(event.TokenMintedEvent, TokenMinted{Ref: ref, Owner: caller, TokenURI: tokenURI, Time: time.Now()})

	return ref, nil
}

// Sale surface

func (m *Marketplace) ListNFTForSale(caller, collection string, tokenIDs []uint64, price decimal.Decimal) (entity.SaleListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Access.RequireNotPaused(); err != nil {
		return entity.SaleListing{}, err
	}

	listing, err := m.Sales.ListNFTForSale(caller, collection, tokenIDs, price)
	if err != nil {
		return entity.SaleListing{}, err
	}

	event.EmitEvent(event.SaleListedEvent, listing)

	return listing, nil
}

func (m *Marketplace) ListNFTForReserveSale(caller, collection, reservedBuyer string, tokenIDs []uint64, price decimal.Decimal) (entity.SaleListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Access.RequireNotPaused(); err != nil {
		return entity.SaleListing{}, err
	}

	listing, err := m.Sales.ListNFTForReserveSale(caller, collection, reservedBuyer, tokenIDs, price)
	if err != nil {
		return entity.SaleListing{}, err
	}

	event.EmitEvent(event.SaleListedEvent, listing)

	return listing, nil
}

func (m *Marketplace) BuyNFTs(caller string, sellID uint64, payment decimal.Decimal) (sale.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Access.RequireNotPaused(); err != nil {
		return sale.Receipt{}, err
	}

	receipt, err := m.Sales.BuyNFTs(caller, sellID, payment)
	if err != nil {
		return sale.Receipt{}, err
	}

	event.EmitEvent(event.SaleSettledEvent, receipt)

	return receipt, nil
}

func (m *Marketplace) CloseSale(caller string, sellID uint64) (entity.SaleListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	listing, err := m.Sales.CloseSale(caller, sellID)
	if err != nil {
		return entity.SaleListing{}, err
	}

	event.EmitEvent(event.SaleDelistedEvent, listing)

	return listing, nil
}

func (m *Marketplace) ChangeSalePrice(caller string, sellID uint64, newPrice decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Sales.ChangeSalePrice(caller, sellID, newPrice)
}

// Auction surface

func (m *Marketplace) ListAuction(caller, collection string, tokenIDs []uint64, auctionType entity.AuctionType, price decimal.Decimal, timeLimit uint64) (entity.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Access.RequireNotPaused(); err != nil {
		return entity.Auction{}, err
	}

	a, err := m.Auctions.ListAuction(caller, collection, tokenIDs, auctionType, price, timeLimit)
	if err != nil {
		return entity.Auction{}, err
	}

	event.EmitEvent(event.AuctionListedEvent, a)

	return a, nil
}

func (m *Marketplace) ListAuctionForReserve(caller, collection, reservedBidder string, tokenIDs []uint64, auctionType entity.AuctionType, price decimal.Decimal, timeLimit uint64) (entity.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Access.RequireNotPaused(); err != nil {
		return entity.Auction{}, err
	}

	a, err := m.Auctions.ListAuctionForReserve(caller, collection, reservedBidder, tokenIDs, auctionType, price, timeLimit)
	if err != nil {
		return entity.Auction{}, err
	}

	event.EmitEvent(event.AuctionListedEvent, a)

	return a, nil
}

func (m *Marketplace) BidAuction(caller string, auctionID uint64, amount decimal.Decimal) (auction.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Access.RequireNotPaused(); err != nil {
		return auction.Receipt{}, err
	}

	receipt, err := m.Auctions.BidAuction(caller, auctionID, amount)
	if err != nil {
		return auction.Receipt{}, err
	}

	if receipt.Settled {
		event.EmitEvent(event.AuctionSettledEvent, receipt)
	} else {
		event.EmitEvent(event.AuctionBidEvent, receipt)
	}

	return receipt, nil
}

func (m *Marketplace) CloseAuction(caller string, auctionID uint64) (auction.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	receipt, err := m.Auctions.CloseAuction(caller, auctionID)
	if err != nil {
		return auction.Receipt{}, err
	}

	if receipt.Settled {
		event.EmitEvent(event.AuctionSettledEvent, receipt)
	} else {
		event.EmitEvent(event.AuctionDelistedEvent, receipt.Auction)
	}

	return receipt, nil
}

func (m *Marketplace) CancelAuction(caller string, auctionID uint64) (entity.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.Auctions.CancelAuction(caller, auctionID)
	if err != nil {
		return entity.Auction{}, err
	}

	event.EmitEvent(event.AuctionDelistedEvent, a)

	return a, nil
}

func (m *Marketplace) CancelBidAuction(caller string, auctionID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Auctions.CancelBidAuction(caller, auctionID)
}

func (m *Marketplace) ChangeAuctionPrice(caller string, auctionID uint64, newPrice decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Auctions.ChangeAuctionPrice(caller, auctionID, newPrice)
}

// Offer surface

func (m *Marketplace) MakeOffer(caller string, refs []entity.TokenRef, amount decimal.Decimal) (entity.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Access.RequireNotPaused(); err != nil {
		return entity.Offer{}, err
	}

	made, err := m.Offers.MakeOffer(caller, refs, amount)
	if err != nil {
		return entity.Offer{}, err
	}

	event.EmitEvent(event.OfferMadeEvent, made)

	return made, nil
}

func (m *Marketplace) AcceptOffer(caller string, ref entity.TokenRef, offerIndex uint64, expectedAmount decimal.Decimal) (offer.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Access.RequireNotPaused(); err != nil {
		return offer.Receipt{}, err
	}

	receipt, err := m.Offers.AcceptOffer(caller, ref, offerIndex, expectedAmount)
	if err != nil {
		return offer.Receipt{}, err
	}

	event.EmitEvent(event.OfferAcceptedEvent, receipt)

	return receipt, nil
}

func (m *Marketplace) CancelOffer(caller, collection string, tokenID uint64) (entity.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cancelled, err := m.Offers.CancelOffer(caller, collection, tokenID)
	if err != nil {
		return entity.Offer{}, err
	}

	event.EmitEvent(event.OfferCancelledEvent, cancelled)

	return cancelled, nil
}

// Views

func (m *Marketplace) GetAllTokens() []entity.Token {
	return m.Registry.GetAllTokens()
}

func (m *Marketplace) GetTokensByOwner(owner string) []entity.Token {
	return m.Registry.GetTokensByOwner(owner)
}

func (m *Marketplace) GetTokenDetail(collection string, tokenID uint64) (entity.Token, error) {
	return m.Registry.GetTokenDetail(collection, tokenID)
}

func (m *Marketplace) GetTrendingList() []entity.Token {
	return m.Registry.GetTrendingList()
}

func (m *Marketplace) GetTokensForSale(viewer string) []entity.SaleListing {
	return m.Sales.GetTokensForSale(viewer)
}

func (m *Marketplace) GetSaleTokensByOwner(viewer, owner string) []entity.SaleListing {
	return m.Sales.GetSaleTokensByOwner(viewer, owner)
}

func (m *Marketplace) GetAuctionList(viewer string) []entity.Auction {
	return m.Auctions.GetAuctionList(viewer)
}

func (m *Marketplace) GetAuctionListByOwner(viewer, owner string) []entity.Auction {
	return m.Auctions.GetAuctionListByOwner(viewer, owner)
}

func (m *Marketplace) GetBidderInfo(auctionID uint64) ([]entity.Bid, error) {
	return m.Auctions.GetBidderInfo(auctionID)
}

func (m *Marketplace) GetOffers(collection string, tokenID uint64) ([]entity.Offer, error) {
	return m.Offers.GetOffers(collection, tokenID)
}

func (m *Marketplace) GetPriceHistory(collection string, tokenID uint64) ([]entity.PriceEntry, error) {
	return m.Registry.GetPriceHistory(collection, tokenID)
}

func (m *Marketplace) GetSaleHistory(collection string, tokenID uint64) ([]entity.PriceEntry, error) {
	return m.Registry.GetSaleHistory(collection, tokenID)
}

func (m *Marketplace) GetAuctionHistory(collection string, tokenID uint64) ([]entity.PriceEntry, error) {
	return m.Registry.GetAuctionHistory(collection, tokenID)
}

// Admin surface

func (m *Marketplace) Pause(caller string) error {
	return m.Access.Pause(caller)
}

func (m *Marketplace) Unpause(caller string) error {
	return m.Access.Unpause(caller)
}

func (m *Marketplace) AddMultiSigWallet(caller, wallet string) error {
	return m.Access.AddMultiSigWallet(caller, wallet)
}

func (m *Marketplace) AddModerate(caller, moderator string) error {
	return m.Access.AddModerate(caller, moderator)
}

func (m *Marketplace) AddToBlackList(caller, addr string) error {
	return m.Access.AddToBlackList(caller, addr)
}

func (m *Marketplace) SetFundAddress(caller, addr string) error {
	return m.Access.SetFundAddress(caller, addr)
}

func (m *Marketplace) SetRoyalty(caller string, rate int64) error {
	return m.Access.SetRoyalty(caller, rate)
}

// WithDraw sweeps accumulated fees, both currencies, from the escrow account
// to the fund address. The market must be paused first.
func (m *Marketplace) WithDraw(caller string) error {
	if !m.Access.Paused() {
		return access.ErrNotPaused
	}
	if err := m.Access.RequireOwner(caller); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fund := m.Access.FundAddress()
	for _, currency := range []ledger.Currency{ledger.Native, ledger.WETH} {
		balance := m.Ledger.Balance(ledger.EscrowAccount, currency)
		if balance.IsZero() {
			continue
		}
		if err := m.Ledger.Transfer(ledger.EscrowAccount, fund, currency, balance); err != nil {
			return err
		}

		zap.L().With(
			zap.String("currency", string(currency)),
			zap.String("amount", balance.String()),
			zap.String("fundAddress", fund),
		).Info("Marketplace: fees withdrawn")
	}

	return nil
}
