package settlement

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/revmarket/marketplace-engine/internal/access"
	"github.com/revmarket/marketplace-engine/internal/ledger"
)

// Breakdown is the exact split of one settlement amount. Conservation holds:
// Proceeds + Fee + Royalty equals the settled amount.
type Breakdown struct {
	Amount   decimal.Decimal
	Fee      decimal.Decimal
	Royalty  decimal.Decimal
	Proceeds decimal.Decimal
}

// Distributor routes settlement funds out of the marketplace escrow account:
// proceeds to the seller, royalty to the creator, the fee stays on the
// escrow balance until withdrawn.
type Distributor interface {
	Split(amount decimal.Decimal, seller, creator string) Breakdown
	Settle(currency ledger.Currency, amount decimal.Decimal, seller, creator string) (Breakdown, error)
}

type distributor struct {
	led ledger.Ledger
	acl *access.Control
}

func NewDistributor(led ledger.Ledger, acl *access.Control) Distributor {
	return distributor{led: led, acl: acl}
}

func (d distributor) Split(amount decimal.Decimal, seller, creator string) Breakdown {
	fee := amount.Mul(access.FeeFraction())
	royalty := amount.Mul(d.acl.RoyaltyFraction())
	proceeds := amount.Sub(fee).Sub(royalty)

	if seller == creator {
		// The royalty beneficiary is selling: the royalty flows straight
		// back, leaving the fee as the only net deduction.
		proceeds = proceeds.Add(royalty)
		royalty = decimal.Zero
	}

	return Breakdown{Amount: amount, Fee: fee, Royalty: royalty, Proceeds: proceeds}
}

// Settle pays a settlement out of escrow. The caller has already moved the
// full amount onto the escrow account within the same atomic step.
func (d distributor) Settle(currency ledger.Currency, amount decimal.Decimal, seller, creator string) (Breakdown, error) {
	b := d.Split(amount, seller, creator)

	if err := d.led.Transfer(ledger.EscrowAccount, seller, currency, b.Proceeds); err != nil {
		return Breakdown{}, err
	}

	if b.Royalty.IsPositive() {
		if err := d.led.Transfer(ledger.EscrowAccount, creator, currency, b.Royalty); err != nil {
			return Breakdown{}, err
		}
	}

	zap.L().With(
		zap.String("currency", string(currency)),
		zap.String("amount", b.Amount.String()),
		zap.String("fee", b.Fee.String()),
		zap.String("royalty", b.Royalty.String()),
		zap.String("seller", seller),
		zap.String("creator", creator),
	).Info("Settlement: funds distributed")

	return b, nil
}
