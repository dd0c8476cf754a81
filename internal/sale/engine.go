package sale

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/revmarket/marketplace-engine/internal/access"
	"github.com/revmarket/marketplace-engine/internal/entity"
	"github.com/revmarket/marketplace-engine/internal/ledger"
	"github.com/revmarket/marketplace-engine/internal/registry"
	"github.com/revmarket/marketplace-engine/internal/settlement"
)

var (
	ErrIncorrectInfo    = errors.New("incorrect info")
	ErrNotApproved      = errors.New("not approved")
	ErrNotTokenOwner    = errors.New("not token owner")
	ErrNotSameOwner     = errors.New("not same owner")
	ErrAlreadyListed    = errors.New("already listed")
	ErrNotOwner         = errors.New("not owner")
	ErrNotCorrectSellID = errors.New("sale: not correct sellID")
	ErrNotCorrectCost   = errors.New("sale: not correct cost")
	ErrSaleOwner        = errors.New("sale: sale owner")
	ErrNotAllowed       = errors.New("sale: not allowed")
)

// AuctionCanceller lets a sale settlement cancel the live auction on a token
// it just sold; the auction engine implements it.
type AuctionCanceller interface {
	CancelForToken(ref entity.TokenRef) error
}

// Receipt describes one completed purchase.
type Receipt struct {
	Listing   entity.SaleListing
	Buyer     string
	Breakdown settlement.Breakdown
}

// Engine runs fixed-price listings: list, buy, close, reprice. Payment for
// sales is the native currency.
type Engine struct {
	mu       sync.Mutex
	reg      *registry.Registry
	led      ledger.Ledger
	acl      *access.Control
	dist     settlement.Distributor
	auctions AuctionCanceller
	listings map[uint64]*entity.SaleListing
	order    []uint64
	nextID   uint64
	now      func() time.Time
}

func NewEngine(reg *registry.Registry, led ledger.Ledger, acl *access.Control, dist settlement.Distributor) *Engine {
	return &Engine{
		reg:      reg,
		led:      led,
		acl:      acl,
		dist:     dist,
		listings: make(map[uint64]*entity.SaleListing),
		order:    make([]uint64, 0),
		nextID:   1,
		now:      time.Now,
	}
}

// SetAuctionCanceller wires the auction engine in after construction; the two
// engines reference each other for the sale/auction mutual exclusion.
func (e *Engine) SetAuctionCanceller(c AuctionCanceller) {
	e.auctions = c
}

// SetClock replaces the engine's time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) ListNFTForSale(caller, collection string, tokenIDs []uint64, price decimal.Decimal) (entity.SaleListing, error) {
	return e.list(caller, collection, "", tokenIDs, price)
}

// ListNFTForReserveSale restricts the purchase to one pre-designated buyer.
func (e *Engine) ListNFTForReserveSale(caller, collection, reservedBuyer string, tokenIDs []uint64, price decimal.Decimal) (entity.SaleListing, error) {
	return e.list(caller, collection, reservedBuyer, tokenIDs, price)
}

func (e *Engine) list(caller, collection, reservedBuyer string, tokenIDs []uint64, price decimal.Decimal) (entity.SaleListing, error) {
	if err := e.acl.RequireClean(caller); err != nil {
		return entity.SaleListing{}, err
	}
	if len(tokenIDs) == 0 || !price.IsPositive() {
		return entity.SaleListing{}, ErrIncorrectInfo
	}

	bundleOwner := ""
	for _, tokenID := range tokenIDs {
		token, err := e.reg.Get(entity.TokenRef{TokenAddress: collection, TokenID: tokenID})
		if err != nil {
			return entity.SaleListing{}, err
		}
		if !e.led.IsApproved(collection, tokenID, ledger.EscrowAccount) {
			return entity.SaleListing{}, ErrNotApproved
		}

		owner, err := e.led.OwnerOf(collection, tokenID)
		if err != nil {
			return entity.SaleListing{}, ErrNotTokenOwner
		}
		if bundleOwner == "" {
			bundleOwner = owner
		} else if owner != bundleOwner {
			return entity.SaleListing{}, ErrNotSameOwner
		}
		if token.ForSale {
			return entity.SaleListing{}, ErrAlreadyListed
		}
	}
	if bundleOwner != caller {
		return entity.SaleListing{}, ErrNotTokenOwner
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	listing := &entity.SaleListing{
		SellID:        e.nextID,
		Seller:        caller,
		TokenAddress:  collection,
		TokenIDs:      append([]uint64(nil), tokenIDs...),
		AskPrice:      price,
		ReservedBuyer: reservedBuyer,
	}
	e.nextID++
	e.listings[listing.SellID] = listing
	e.order = append(e.order, listing.SellID)

	for _, tokenID := range tokenIDs {
		_ = e.reg.Mutate(entity.TokenRef{TokenAddress: collection, TokenID: tokenID}, func(t *entity.Token) error {
			t.ForSale = true
			t.SellID = listing.SellID
			t.AskPrice = price
			return nil
		})
	}

	zap.L().With(
		zap.Uint64("sellID", listing.SellID),
		zap.String("seller", caller),
		zap.String("collection", collection),
		zap.Uint64s("tokenIDs", tokenIDs),
		zap.String("price", price.String()),
	).Info("Sale: listed")

	return *listing, nil
}

// BuyNFTs settles a listing. Payment, in native currency, must equal the
// asking price exactly; the sale/auction mutual exclusion is enforced here by
// cancelling any live auction on the bundle.
func (e *Engine) BuyNFTs(caller string, sellID uint64, payment decimal.Decimal) (Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	listing, ok := e.listings[sellID]
	if !ok {
		return Receipt{}, ErrNotCorrectSellID
	}
	if !payment.Equal(listing.AskPrice) {
		return Receipt{}, ErrNotCorrectCost
	}
	if caller == listing.Seller {
		return Receipt{}, ErrSaleOwner
	}
	if listing.IsReserved() && caller != listing.ReservedBuyer {
		return Receipt{}, ErrNotAllowed
	}

	// The seller must still hold the whole bundle before any funds move;
	// settlement either completes in full or changes nothing.
	for _, tokenID := range listing.TokenIDs {
		if _, err := e.reg.Get(entity.TokenRef{TokenAddress: listing.TokenAddress, TokenID: tokenID}); err != nil {
			return Receipt{}, err
		}
		owner, err := e.led.OwnerOf(listing.TokenAddress, tokenID)
		if err != nil || owner != listing.Seller {
			return Receipt{}, ErrNotTokenOwner
		}
	}

	creator := listing.Seller
	if token, err := e.reg.Get(entity.TokenRef{TokenAddress: listing.TokenAddress, TokenID: listing.TokenIDs[0]}); err == nil {
		creator = token.Creator
	}

	if err := e.led.Transfer(caller, ledger.EscrowAccount, ledger.Native, payment); err != nil {
		return Receipt{}, err
	}

	breakdown, err := e.dist.Settle(ledger.Native, payment, listing.Seller, creator)
	if err != nil {
		return Receipt{}, err
	}

	now := e.now()
	for _, tokenID := range listing.TokenIDs {
		ref := entity.TokenRef{TokenAddress: listing.TokenAddress, TokenID: tokenID}

		if err := e.led.TransferToken(listing.TokenAddress, tokenID, listing.Seller, caller); err != nil {
			return Receipt{}, err
		}
		if err := e.reg.RecordTrade(ref, listing.AskPrice, entity.SaleTrade, caller, now); err != nil {
			return Receipt{}, err
		}

		_ = e.reg.Mutate(ref, func(t *entity.Token) error {
			t.ForSale = false
			t.SellID = 0
			t.AskPrice = decimal.Zero
			return nil
		})

		if e.auctions != nil {
			if err := e.auctions.CancelForToken(ref); err != nil {
				return Receipt{}, err
			}
		}
	}

	e.remove(sellID)
	e.reg.InvalidateTrending()

	zap.L().With(
		zap.Uint64("sellID", sellID),
		zap.String("seller", listing.Seller),
		zap.String("buyer", caller),
		zap.String("cost", payment.String()),
		zap.String("fee", breakdown.Fee.String()),
		zap.String("royalty", breakdown.Royalty.String()),
	).Info("Sale: settled")

	return Receipt{Listing: *listing, Buyer: caller, Breakdown: breakdown}, nil
}

// CloseSale delists without a trade; only the lister may close.
func (e *Engine) CloseSale(caller string, sellID uint64) (entity.SaleListing, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	listing, ok := e.listings[sellID]
	if !ok {
		return entity.SaleListing{}, ErrNotCorrectSellID
	}
	if caller != listing.Seller {
		return entity.SaleListing{}, ErrNotOwner
	}

	e.delist(listing)
	e.remove(sellID)

	return *listing, nil
}

// ChangeSalePrice reprices in place; the new price is immediately observable
// through every listing query.
func (e *Engine) ChangeSalePrice(caller string, sellID uint64, newPrice decimal.Decimal) error {
	if !newPrice.IsPositive() {
		return ErrIncorrectInfo
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	listing, ok := e.listings[sellID]
	if !ok {
		return ErrNotCorrectSellID
	}
	if caller != listing.Seller {
		return ErrNotOwner
	}

	listing.AskPrice = newPrice
	for _, tokenID := range listing.TokenIDs {
		_ = e.reg.Mutate(entity.TokenRef{TokenAddress: listing.TokenAddress, TokenID: tokenID}, func(t *entity.Token) error {
			t.AskPrice = newPrice
			return nil
		})
	}

	return nil
}

// CancelForToken removes the live sale listing containing the token, if any.
// The auction engine calls this when an auction settles.
func (e *Engine) CancelForToken(ref entity.TokenRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	token, err := e.reg.Get(ref)
	if err != nil || !token.ForSale {
		return nil
	}

	listing, ok := e.listings[token.SellID]
	if !ok {
		return nil
	}

	e.delist(listing)
	e.remove(listing.SellID)

	zap.L().With(zap.Uint64("sellID", listing.SellID)).Info("Sale: cancelled by auction settlement")

	return nil
}

func (e *Engine) delist(listing *entity.SaleListing) {
	for _, tokenID := range listing.TokenIDs {
		_ = e.reg.Mutate(entity.TokenRef{TokenAddress: listing.TokenAddress, TokenID: tokenID}, func(t *entity.Token) error {
			t.ForSale = false
			t.SellID = 0
			t.AskPrice = decimal.Zero
			return nil
		})
	}
}

func (e *Engine) remove(sellID uint64) {
	delete(e.listings, sellID)
	for i, id := range e.order {
		if id == sellID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// GetListing returns the live listing for a sellID.
func (e *Engine) GetListing(sellID uint64) (entity.SaleListing, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	listing, ok := e.listings[sellID]
	if !ok {
		return entity.SaleListing{}, ErrNotCorrectSellID
	}

	return *listing, nil
}

// GetTokensForSale lists active listings visible to the viewer, oldest
// first. Reserve listings are hidden from third parties.
func (e *Engine) GetTokensForSale(viewer string) []entity.SaleListing {
	e.mu.Lock()
	defer e.mu.Unlock()

	listings := make([]entity.SaleListing, 0, len(e.order))
	for _, id := range e.order {
		if e.listings[id].VisibleTo(viewer) {
			listings = append(listings, *e.listings[id])
		}
	}

	return listings
}

func (e *Engine) GetSaleTokensByOwner(viewer, owner string) []entity.SaleListing {
	listings := make([]entity.SaleListing, 0)
	for _, listing := range e.GetTokensForSale(viewer) {
		if listing.Seller == owner {
			listings = append(listings, listing)
		}
	}

	return listings
}
