package offer

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
	ErrIncorrectInfo = errors.New("incorrect info")
	ErrNotExistOffer = errors.New("not exist offer")
	ErrNotOwner      = errors.New("not owner")
)

// Receipt describes an accepted offer settlement.
type Receipt struct {
	Offer     entity.Offer
	Breakdown settlement.Breakdown
}

// Engine keeps offers attached to the token they target. The offered amount
// is escrowed in WETH when the offer is made and released when it is
// accepted, replaced, or cancelled.
type Engine struct {
	mu   sync.Mutex
	reg  *registry.Registry
	led  ledger.Ledger
	acl  *access.Control
	dist settlement.Distributor
	now  func() time.Time
}

func NewEngine(reg *registry.Registry, led ledger.Ledger, acl *access.Control, dist settlement.Distributor) *Engine {
	return &Engine{
		reg:  reg,
		led:  led,
		acl:  acl,
		dist: dist,
		now:  time.Now,
	}
}

func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// MakeOffer escrows amount against the first token of refs. A repeat offer
// from the same address replaces the old one; the old escrow is released
// before the new one is taken.
func (e *Engine) MakeOffer(caller string, refs []entity.TokenRef, amount decimal.Decimal) (entity.Offer, error) {
	if err := e.acl.RequireClean(caller); err != nil {
		return entity.Offer{}, err
	}
	if len(refs) == 0 || !amount.IsPositive() {
		return entity.Offer{}, ErrIncorrectInfo
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	target := refs[0]
	if _, err := e.reg.Get(target); err != nil {
		return entity.Offer{}, err
	}

	made := entity.Offer{
		TokenAddress: target.TokenAddress,
		TokenID:      target.TokenID,
		Offerer:      caller,
		Amount:       amount,
		Refs:         append([]entity.TokenRef(nil), refs...),
		Time:         e.now(),
	}

	err := e.reg.Mutate(target, func(t *entity.Token) error {
		for i, o := range t.Offers {
			if o.Offerer != caller {
				continue
			}
			if err := e.led.Transfer(ledger.EscrowAccount, caller, ledger.WETH, o.Amount); err != nil {
				return err
			}
			if err := e.led.Transfer(caller, ledger.EscrowAccount, ledger.WETH, amount); err != nil {
				_ = e.led.Transfer(caller, ledger.EscrowAccount, ledger.WETH, o.Amount)
				return err
			}

			made.OfferIndex = o.OfferIndex
			t.Offers[i] = made

			return nil
		}

		if err := e.led.Transfer(caller, ledger.EscrowAccount, ledger.WETH, amount); err != nil {
			return err
		}

		made.OfferIndex = uint64(len(t.Offers))
		t.Offers = append(t.Offers, made)

		return nil
	})
	if err != nil {
		return entity.Offer{}, err
	}

	zap.L().With(
		zap.String("collection", target.TokenAddress),
		zap.Uint64("tokenID", target.TokenID),
		zap.String("offerer", caller),
		zap.String("amount", amount.String()),
	).Info("Offer: made")

	return made, nil
}

// AcceptOffer settles one offer against the caller's token and removes only
// that offer; the others stay live with their escrow intact. A non-zero
// expectedAmount guards against accepting a just-replaced offer.
func (e *Engine) AcceptOffer(caller string, ref entity.TokenRef, offerIndex uint64, expectedAmount decimal.Decimal) (Receipt, error) {
	if err := e.acl.RequireClean(caller); err != nil {
		return Receipt{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	token, err := e.reg.Get(ref)
	if err != nil {
		return Receipt{}, err
	}

	idx := -1
	for i, o := range token.Offers {
		if o.OfferIndex == offerIndex {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Receipt{}, ErrNotExistOffer
	}

	accepted := token.Offers[idx]
	if caller != token.Owner {
		return Receipt{}, ErrNotOwner
	}
	if !expectedAmount.IsZero() && !expectedAmount.Equal(accepted.Amount) {
		return Receipt{}, ErrNotExistOffer
	}

	// The caller must still hold the token on the ledger before any funds
	// move; settlement either completes in full or changes nothing.
	if owner, err := e.led.OwnerOf(ref.TokenAddress, ref.TokenID); err != nil || owner != caller {
		return Receipt{}, ErrNotOwner
	}

	breakdown, err := e.dist.Settle(ledger.WETH, accepted.Amount, caller, token.Creator)
	if err != nil {
		return Receipt{}, err
	}

	if err := e.led.TransferToken(ref.TokenAddress, ref.TokenID, caller, accepted.Offerer); err != nil {
		return Receipt{}, err
	}
	if err := e.reg.RecordTrade(ref, accepted.Amount, entity.OfferTrade, accepted.Offerer, e.now()); err != nil {
		return Receipt{}, err
	}

	err = e.reg.Mutate(ref, func(t *entity.Token) error {
		for i, o := range t.Offers {
			if o.OfferIndex == offerIndex {
				t.Offers = append(t.Offers[:i], t.Offers[i+1:]...)
				break
			}
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	e.reg.InvalidateTrending()

	zap.L().With(
		zap.String("collection", ref.TokenAddress),
		zap.Uint64("tokenID", ref.TokenID),
		zap.String("seller", caller),
		zap.String("offerer", accepted.Offerer),
		zap.String("cost", accepted.Amount.String()),
		zap.String("fee", breakdown.Fee.String()),
		zap.String("royalty", breakdown.Royalty.String()),
	).Info("Offer: accepted")

	return Receipt{Offer: accepted, Breakdown: breakdown}, nil
}

// CancelOffer withdraws the caller's own offer and refunds its escrow.
func (e *Engine) CancelOffer(caller, collection string, tokenID uint64) (entity.Offer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ref := entity.TokenRef{TokenAddress: collection, TokenID: tokenID}
	if _, err := e.reg.Get(ref); err != nil {
		return entity.Offer{}, err
	}

	var cancelled entity.Offer
	err := e.reg.Mutate(ref, func(t *entity.Token) error {
		for i, o := range t.Offers {
			if o.Offerer != caller {
				continue
			}
			if err := e.led.Transfer(ledger.EscrowAccount, caller, ledger.WETH, o.Amount); err != nil {
				return err
			}

			cancelled = o
			t.Offers = append(t.Offers[:i], t.Offers[i+1:]...)

			return nil
		}

		return ErrNotExistOffer
	})
	if err != nil {
		return entity.Offer{}, err
	}

	zap.L().With(
		zap.String("collection", collection),
		zap.Uint64("tokenID", tokenID),
		zap.String("offerer", caller),
	).Info("Offer: cancelled")

	return cancelled, nil
}

// GetOffers returns the live offers on a token in submission order.
func (e *Engine) GetOffers(collection string, tokenID uint64) ([]entity.Offer, error) {
	return e.reg.GetOffers(collection, tokenID)
}
