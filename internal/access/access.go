package access

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrNotOwner      = errors.New("Ownable: caller is not the owner")
	ErrNotMultiSig   = errors.New("caller not multisig")
	ErrNotPaused     = errors.New("Pausable: not paused")
	ErrPaused        = errors.New("Pausable: paused")
	ErrScamAddress   = errors.New("scam address")
	ErrNotProperRate = errors.New("not proper rate")
)

// Royalty rates are expressed in 1e5 units: 600 is 0.6% of a settlement.
// Rates outside the accepted band are rejected as configuration mistakes.
const (
	RoyaltyDenominator = 100000
	MinRoyaltyRate     = 500
	MaxRoyaltyRate     = 10000
)

// TxFeePercent is the fixed marketplace fee taken on every settlement.
const TxFeePercent = 2

// Control holds the owner-gated singleton configuration: royalty rate, fund
// address, multisig wallets, moderators and the blacklist. It is injected
// into the engines rather than inherited by them.
type Control struct {
	mu sync.RWMutex

	owner       string
	fundAddress string
	multisig    map[string]bool
	moderators  map[string]bool
	blacklist   map[string]bool
	paused      bool
	royaltyRate int64
}

func New(owner string, royaltyRate int64) *Control {
	return &Control{
		owner:       owner,
		multisig:    make(map[string]bool),
		moderators:  make(map[string]bool),
		blacklist:   make(map[string]bool),
		royaltyRate: royaltyRate,
	}
}

func (c *Control) Owner() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.owner
}

func (c *Control) RequireOwner(caller string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if caller != c.owner {
		return ErrNotOwner
	}

	return nil
}

func (c *Control) RequireMultiSig(caller string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.multisig[caller] {
		return ErrNotMultiSig
	}

	return nil
}

// RequireClean rejects blacklisted addresses at the entry of every listing,
// bidding and registration operation.
func (c *Control) RequireClean(caller string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.blacklist[caller] {
		return ErrScamAddress
	}

	return nil
}

func (c *Control) AddMultiSigWallet(caller, wallet string) error {
	if err := c.RequireOwner(caller); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.multisig[wallet] = true
	zap.L().With(zap.String("wallet", wallet)).Info("Access: multisig wallet added")

	return nil
}

func (c *Control) AddModerate(caller, moderator string) error {
	if err := c.RequireOwner(caller); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.moderators[moderator] = true

	return nil
}

func (c *Control) IsModerator(addr string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.moderators[addr]
}

func (c *Control) AddToBlackList(caller, addr string) error {
	if err := c.RequireMultiSig(caller); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.blacklist[addr] = true
	zap.L().With(zap.String("address", addr)).Warn("Access: address blacklisted")

	return nil
}

func (c *Control) IsBlacklisted(addr string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.blacklist[addr]
}

func (c *Control) Pause(caller string) error {
	if err := c.RequireMultiSig(caller); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.paused = true

	return nil
}

func (c *Control) Unpause(caller string) error {
	if err := c.RequireMultiSig(caller); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.paused = false

	return nil
}

func (c *Control) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.paused
}

// RequireNotPaused gates new trades while the market is paused; cancels and
// withdrawals of existing positions stay available.
func (c *Control) RequireNotPaused() error {
	if c.Paused() {
		return ErrPaused
	}

	return nil
}

func (c *Control) SetFundAddress(caller, addr string) error {
	if err := c.RequireOwner(caller); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fundAddress = addr

	return nil
}

// FundAddress is where withdrawn balances go; the owner when never set.
func (c *Control) FundAddress() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.fundAddress == "" {
		return c.owner
	}

	return c.fundAddress
}

func (c *Control) SetRoyalty(caller string, rate int64) error {
	if err := c.RequireOwner(caller); err != nil {
		return err
	}

	if rate < MinRoyaltyRate || rate > MaxRoyaltyRate {
		return ErrNotProperRate
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.royaltyRate = rate
	zap.L().With(zap.Int64("rate", rate)).Info("Access: royalty rate updated")

	return nil
}

func (c *Control) Royalty() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.royaltyRate
}

// RoyaltyFraction is the royalty rate as a decimal multiplier.
func (c *Control) RoyaltyFraction() decimal.Decimal {
	return decimal.NewFromInt(c.Royalty()).Div(decimal.NewFromInt(RoyaltyDenominator))
}

// FeeFraction is the fixed transaction fee as a decimal multiplier.
func FeeFraction() decimal.Decimal {
	return decimal.NewFromInt(TxFeePercent).Div(decimal.NewFromInt(100))
}
