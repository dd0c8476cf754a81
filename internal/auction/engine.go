package auction

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

// Reason strings carry the exact spacing of the contract suite they settle
// for; several begin with a space.
var (
	ErrIncorrectInfo       = errors.New("incorrect info")
	ErrNotApproved         = errors.New("not approved")
	ErrNotTokenOwner       = errors.New("not token owner")
	ErrNotSameOwner        = errors.New("not same owner")
	ErrAlreadyListed       = errors.New(" already listed")
	ErrNotAllowedLimitTime = errors.New(" not allowed limit time")
	ErrNotExistAuction     = errors.New(" not exist auction")
	ErrClosedAuction       = errors.New(" closed auction")
	ErrOwnerCanNotBid      = errors.New(" owner can not bid")
	ErrTimeOut             = errors.New(" time out")
	ErrNotCorrectBidAmount = errors.New(" not correct bid amount")
	ErrNotMeetFloorPrice   = errors.New(" not meet floor price")
	ErrNotAllowed          = errors.New("not allowed")
	ErrNoPermissionToClose = errors.New(" not have permission to close")
	ErrNotExistSuchAuction = errors.New(" not exist such auction")
	ErrNotFinished         = errors.New(" not finished")
	ErrNotOwner            = errors.New("not owner")
)

// SaleDelister lets an auction settlement remove the live sale listing on a
// token it just sold; the sale engine implements it.
type SaleDelister interface {
	CancelForToken(ref entity.TokenRef) error
}

// Receipt describes the outcome of a settled or delisted auction. Settled is
// false when an auction closed without bidders.
type Receipt struct {
	Auction   entity.Auction
	Winner    entity.Bid
	Breakdown settlement.Breakdown
	Settled   bool
}

// Engine runs the four auction types. Bids are escrowed in WETH the moment
// they are accepted; every path out of an auction (settle, cancel, lose,
// withdraw) releases escrow in the same atomic step.
type Engine struct {
	mu       sync.Mutex
	reg      *registry.Registry
	led      ledger.Ledger
	acl      *access.Control
	dist     settlement.Distributor
	sales    SaleDelister
	auctions map[uint64]*entity.Auction
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
		auctions: make(map[uint64]*entity.Auction),
		order:    make([]uint64, 0),
		nextID:   1,
		now:      time.Now,
	}
}

func (e *Engine) SetSaleDelister(s SaleDelister) {
	e.sales = s
}

// SetClock replaces the engine's time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) ListAuction(caller, collection string, tokenIDs []uint64, auctionType entity.AuctionType, price decimal.Decimal, timeLimit uint64) (entity.Auction, error) {
	return e.list(caller, collection, "", tokenIDs, auctionType, price, timeLimit)
}

// ListAuctionForReserve restricts bidding to one pre-designated bidder.
func (e *Engine) ListAuctionForReserve(caller, collection, reservedBidder string, tokenIDs []uint64, auctionType entity.AuctionType, price decimal.Decimal, timeLimit uint64) (entity.Auction, error) {
	return e.list(caller, collection, reservedBidder, tokenIDs, auctionType, price, timeLimit)
}

func (e *Engine) list(caller, collection, reservedBidder string, tokenIDs []uint64, auctionType entity.AuctionType, price decimal.Decimal, timeLimit uint64) (entity.Auction, error) {
	if err := e.acl.RequireClean(caller); err != nil {
		return entity.Auction{}, err
	}
	if len(tokenIDs) == 0 || !price.IsPositive() {
		return entity.Auction{}, ErrIncorrectInfo
	}

	bundleOwner := ""
	for _, tokenID := range tokenIDs {
		token, err := e.reg.Get(entity.TokenRef{TokenAddress: collection, TokenID: tokenID})
		if err != nil {
			return entity.Auction{}, err
		}
		if !e.led.IsApproved(collection, tokenID, ledger.EscrowAccount) {
			return entity.Auction{}, ErrNotApproved
		}

		owner, err := e.led.OwnerOf(collection, tokenID)
		if err != nil {
			return entity.Auction{}, ErrNotTokenOwner
		}
		if bundleOwner == "" {
			bundleOwner = owner
		} else if owner != bundleOwner {
			return entity.Auction{}, ErrNotSameOwner
		}
		if token.ForAuction {
			return entity.Auction{}, ErrAlreadyListed
		}
	}
	if bundleOwner != caller {
		return entity.Auction{}, ErrNotTokenOwner
	}
	if auctionType == entity.AuctionTime && timeLimit == 0 {
		return entity.Auction{}, ErrNotAllowedLimitTime
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a := &entity.Auction{
		AuctionID:      e.nextID,
		Type:           auctionType,
		Seller:         caller,
		TokenAddress:   collection,
		TokenIDs:       append([]uint64(nil), tokenIDs...),
		Price:          price,
		TimeLimit:      timeLimit,
		ListedAt:       e.now(),
		ReservedBidder: reservedBidder,
		Bidders:        make([]entity.Bid, 0),
	}
	e.nextID++
	e.auctions[a.AuctionID] = a
	e.order = append(e.order, a.AuctionID)

	for _, tokenID := range tokenIDs {
		_ = e.reg.Mutate(entity.TokenRef{TokenAddress: collection, TokenID: tokenID}, func(t *entity.Token) error {
			t.ForAuction = true
			t.AuctionID = a.AuctionID
			return nil
		})
	}

	zap.L().With(
		zap.Uint64("auctionID", a.AuctionID),
		zap.String("type", a.Type.String()),
		zap.String("seller", caller),
		zap.String("collection", collection),
		zap.Uint64s("tokenIDs", tokenIDs),
		zap.String("price", price.String()),
		zap.Uint64("timeLimit", timeLimit),
	).Info("Auction: listed")

	return *a, nil
}

// BidAuction places or raises a bid. A SALE-type auction settles on its
// first (exact-price) bid; the other types escrow the amount and keep one
// entry per bidder, updated in place on a re-bid.
func (e *Engine) BidAuction(caller string, auctionID uint64, amount decimal.Decimal) (Receipt, error) {
	if err := e.acl.RequireClean(caller); err != nil {
		return Receipt{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok {
		return Receipt{}, ErrNotExistAuction
	}
	if a.Closed {
		return Receipt{}, ErrClosedAuction
	}
	if caller == a.Seller {
		return Receipt{}, ErrOwnerCanNotBid
	}
	if a.IsReserved() && caller != a.ReservedBidder {
		return Receipt{}, ErrNotAllowed
	}

	now := e.now()
	if a.Expired(now) {
		return Receipt{}, ErrTimeOut
	}

	if a.Type == entity.AuctionSale {
		if !amount.Equal(a.Price) {
			return Receipt{}, ErrNotCorrectBidAmount
		}

		return e.settleInstant(a, caller, amount, now)
	}

	if amount.LessThan(a.Price) {
		return Receipt{}, ErrNotMeetFloorPrice
	}

	if i := a.BidderIndex(caller); i >= 0 {
		prior := a.Bidders[i]
		if !amount.GreaterThan(prior.AskPrice) {
			return Receipt{}, ErrNotCorrectBidAmount
		}

		// Release the prior escrow before taking the new one; the entry
		// keeps its position in the list.
		if err := e.led.Transfer(ledger.EscrowAccount, caller, ledger.WETH, prior.AskPrice); err != nil {
			return Receipt{}, err
		}
		if err := e.led.Transfer(caller, ledger.EscrowAccount, ledger.WETH, amount); err != nil {
			_ = e.led.Transfer(caller, ledger.EscrowAccount, ledger.WETH, prior.AskPrice)
			return Receipt{}, err
		}

		a.Bidders[i].AskPrice = amount
		a.Bidders[i].Time = now
	} else {
		if err := e.led.Transfer(caller, ledger.EscrowAccount, ledger.WETH, amount); err != nil {
			return Receipt{}, err
		}

		a.Bidders = append(a.Bidders, entity.Bid{AskPerson: caller, AskPrice: amount, Time: now})
	}

	zap.L().With(
		zap.Uint64("auctionID", auctionID),
		zap.String("bidder", caller),
		zap.String("amount", amount.String()),
		zap.String("type", a.Type.String()),
	).Info("Auction: bid accepted")

	return Receipt{Auction: *a}, nil
}

// CloseAuction settles to the highest recorded bid, or just delists when
// nobody bid. Only the lister may close; timed auctions only after expiry.
func (e *Engine) CloseAuction(caller string, auctionID uint64) (Receipt, error) {
	if err := e.acl.RequireClean(caller); err != nil {
		return Receipt{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok || a.Closed {
		return Receipt{}, ErrNotExistSuchAuction
	}
	if caller != a.Seller {
		return Receipt{}, ErrNoPermissionToClose
	}

	now := e.now()
	if a.HasDeadline() && now.Before(a.Deadline()) {
		return Receipt{}, ErrNotFinished
	}

	winner, hasBid := a.TopBid()
	if !hasBid {
		e.delist(a)
		zap.L().With(zap.Uint64("auctionID", auctionID)).Info("Auction: closed without bids")
		return Receipt{Auction: *a}, nil
	}

	if err := e.verifyBundle(a); err != nil {
		return Receipt{}, err
	}

	// Losing escrows go back before the winning one is distributed.
	for _, bid := range a.Bidders {
		if bid.AskPerson == winner.AskPerson {
			continue
		}
		if err := e.led.Transfer(ledger.EscrowAccount, bid.AskPerson, ledger.WETH, bid.AskPrice); err != nil {
			return Receipt{}, err
		}
	}

	return e.settle(a, winner, now)
}

func (e *Engine) settleInstant(a *entity.Auction, buyer string, amount decimal.Decimal, now time.Time) (Receipt, error) {
	if err := e.verifyBundle(a); err != nil {
		return Receipt{}, err
	}

	if err := e.led.Transfer(buyer, ledger.EscrowAccount, ledger.WETH, amount); err != nil {
		return Receipt{}, err
	}

	return e.settle(a, entity.Bid{AskPerson: buyer, AskPrice: amount, Time: now}, now)
}

// verifyBundle confirms the seller still holds every token in the auction
// before any funds move; settlement either completes in full or changes
// nothing.
func (e *Engine) verifyBundle(a *entity.Auction) error {
	for _, tokenID := range a.TokenIDs {
		if _, err := e.reg.Get(entity.TokenRef{TokenAddress: a.TokenAddress, TokenID: tokenID}); err != nil {
			return err
		}
		owner, err := e.led.OwnerOf(a.TokenAddress, tokenID)
		if err != nil || owner != a.Seller {
			return ErrNotTokenOwner
		}
	}

	return nil
}

func (e *Engine) settle(a *entity.Auction, winner entity.Bid, now time.Time) (Receipt, error) {
	creator := a.Seller
	if token, err := e.reg.Get(entity.TokenRef{TokenAddress: a.TokenAddress, TokenID: a.TokenIDs[0]}); err == nil {
		creator = token.Creator
	}

	breakdown, err := e.dist.Settle(ledger.WETH, winner.AskPrice, a.Seller, creator)
	if err != nil {
		return Receipt{}, err
	}

	for _, tokenID := range a.TokenIDs {
		ref := entity.TokenRef{TokenAddress: a.TokenAddress, TokenID: tokenID}

		if err := e.led.TransferToken(a.TokenAddress, tokenID, a.Seller, winner.AskPerson); err != nil {
			return Receipt{}, err
		}
		if err := e.reg.RecordTrade(ref, winner.AskPrice, entity.AuctionTrade, winner.AskPerson, now); err != nil {
			return Receipt{}, err
		}

		if e.sales != nil {
			if err := e.sales.CancelForToken(ref); err != nil {
				return Receipt{}, err
			}
		}
	}

	e.delist(a)
	e.reg.InvalidateTrending()

	zap.L().With(
		zap.Uint64("auctionID", a.AuctionID),
		zap.String("type", a.Type.String()),
		zap.String("seller", a.Seller),
		zap.String("winner", winner.AskPerson),
		zap.String("cost", winner.AskPrice.String()),
		zap.String("fee", breakdown.Fee.String()),
		zap.String("royalty", breakdown.Royalty.String()),
	).Info("Auction: settled")

	return Receipt{Auction: *a, Winner: winner, Breakdown: breakdown, Settled: true}, nil
}

// CancelAuction withdraws a listing; every escrowed bid is returned.
func (e *Engine) CancelAuction(caller string, auctionID uint64) (entity.Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok || a.Closed {
		return entity.Auction{}, ErrNotExistSuchAuction
	}
	if caller != a.Seller {
		return entity.Auction{}, ErrNotOwner
	}

	if err := e.refundAll(a); err != nil {
		return entity.Auction{}, err
	}
	e.delist(a)

	zap.L().With(zap.Uint64("auctionID", auctionID)).Info("Auction: cancelled")

	return *a, nil
}

// CancelBidAuction withdraws the caller's own bid and refunds its escrow.
func (e *Engine) CancelBidAuction(caller string, auctionID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok || a.Closed {
		return ErrNotExistAuction
	}

	i := a.BidderIndex(caller)
	if i < 0 {
		return ErrNotAllowed
	}

	if err := e.led.Transfer(ledger.EscrowAccount, caller, ledger.WETH, a.Bidders[i].AskPrice); err != nil {
		return err
	}
	a.Bidders = append(a.Bidders[:i], a.Bidders[i+1:]...)

	return nil
}

// ChangeAuctionPrice reprices the floor/ask in place.
func (e *Engine) ChangeAuctionPrice(caller string, auctionID uint64, newPrice decimal.Decimal) error {
	if !newPrice.IsPositive() {
		return ErrIncorrectInfo
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok || a.Closed {
		return ErrNotExistAuction
	}
	if caller != a.Seller {
		return ErrNotOwner
	}

	a.Price = newPrice

	return nil
}

// CancelForToken removes the live auction containing the token and refunds
// its bidders. The sale engine calls this when a sale settles.
func (e *Engine) CancelForToken(ref entity.TokenRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	token, err := e.reg.Get(ref)
	if err != nil || !token.ForAuction {
		return nil
	}

	a, ok := e.auctions[token.AuctionID]
	if !ok || a.Closed {
		return nil
	}

	if err := e.refundAll(a); err != nil {
		return err
	}
	e.delist(a)

	zap.L().With(zap.Uint64("auctionID", a.AuctionID)).Info("Auction: cancelled by sale settlement")

	return nil
}

func (e *Engine) refundAll(a *entity.Auction) error {
	for _, bid := range a.Bidders {
		if err := e.led.Transfer(ledger.EscrowAccount, bid.AskPerson, ledger.WETH, bid.AskPrice); err != nil {
			return err
		}
	}

	return nil
}

// delist flags the auction closed and clears the token records. The record
// itself is kept so late bids report a closed auction rather than a missing
// one.
func (e *Engine) delist(a *entity.Auction) {
	a.Closed = true

	for i, id := range e.order {
		if id == a.AuctionID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}

	for _, tokenID := range a.TokenIDs {
		_ = e.reg.Mutate(entity.TokenRef{TokenAddress: a.TokenAddress, TokenID: tokenID}, func(t *entity.Token) error {
			t.ForAuction = false
			t.AuctionID = 0
			return nil
		})
	}
}

// GetAuction returns the auction record, live or closed.
func (e *Engine) GetAuction(auctionID uint64) (entity.Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok {
		return entity.Auction{}, ErrNotExistAuction
	}

	return *a, nil
}

// GetAuctionList returns active auctions visible to the viewer in listing
// order. Reserve auctions are hidden from third parties.
func (e *Engine) GetAuctionList(viewer string) []entity.Auction {
	e.mu.Lock()
	defer e.mu.Unlock()

	auctions := make([]entity.Auction, 0, len(e.order))
	for _, id := range e.order {
		if e.auctions[id].VisibleTo(viewer) {
			auctions = append(auctions, *e.auctions[id])
		}
	}

	return auctions
}

func (e *Engine) GetAuctionListByOwner(viewer, owner string) []entity.Auction {
	auctions := make([]entity.Auction, 0)
	for _, a := range e.GetAuctionList(viewer) {
		if a.Seller == owner {
			auctions = append(auctions, a)
		}
	}

	return auctions
}

// GetBidderInfo returns bid entries in submission/update order. Sealed-bid
// auctions expose nothing until they close.
func (e *Engine) GetBidderInfo(auctionID uint64) ([]entity.Bid, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok {
		return nil, ErrNotExistAuction
	}

	if a.Type == entity.AuctionSlient && !a.Closed {
		return []entity.Bid{}, nil
	}

	bidders := make([]entity.Bid, len(a.Bidders))
	copy(bidders, a.Bidders)

	return bidders, nil
}
