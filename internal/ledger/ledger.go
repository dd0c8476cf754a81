package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Currency names a fund type held on the ledger. The marketplace settles
// sales in the native currency and auctions/offers in WETH.
type Currency string

const (
	Native Currency = "ETH"
	WETH   Currency = "WETH"
)

// EscrowAccount is the address holding marketplace escrow and fee balances.
const EscrowAccount = "marketplace"

var (
	ErrUnknownToken      = errors.New("ledger: unknown token")
	ErrTokenExists       = errors.New("ledger: token exists")
	ErrNotTokenOwner     = errors.New("ledger: not token owner")
	ErrInsufficientFunds = errors.New("not enough money")
)

// Ledger is the atomic state-transition substrate the engine settles on.
// Every call either fully applies or leaves the ledger untouched.
type Ledger interface {
	MintToken(contract string, tokenID uint64, owner string) error
	OwnerOf(contract string, tokenID uint64) (string, error)
	Approve(contract string, tokenID uint64, operator string) error
	SetApprovalForAll(contract, owner, operator string, approved bool)
	IsApproved(contract string, tokenID uint64, operator string) bool
	TransferToken(contract string, tokenID uint64, from, to string) error

	Balance(addr string, currency Currency) decimal.Decimal
	Deposit(addr string, currency Currency, amount decimal.Decimal)
	Transfer(from, to string, currency Currency, amount decimal.Decimal) error
}
