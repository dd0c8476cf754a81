package ledger

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

type tokenKey string

func makeTokenKey(contract string, tokenID uint64) tokenKey {
	return tokenKey(fmt.Sprintf("%s/%d", contract, tokenID))
}

// MemoryLedger is an in-process Ledger. Per-token approvals are cleared on
// transfer, operator approvals persist, matching the token standard the
// contract suite targets.
type MemoryLedger struct {
	mu        sync.RWMutex
	owners    map[tokenKey]string
	approvals map[tokenKey]string
	operators map[string]bool
	balances  map[string]map[Currency]decimal.Decimal
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		owners:    make(map[tokenKey]string),
		approvals: make(map[tokenKey]string),
		operators: make(map[string]bool),
		balances:  make(map[string]map[Currency]decimal.Decimal),
	}
}

func (l *MemoryLedger) MintToken(contract string, tokenID uint64, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := makeTokenKey(contract, tokenID)
	if _, ok := l.owners[key]; ok {
		return ErrTokenExists
	}

	l.owners[key] = owner

	return nil
}

func (l *MemoryLedger) OwnerOf(contract string, tokenID uint64) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	owner, ok := l.owners[makeTokenKey(contract, tokenID)]
	if !ok {
		return "", ErrUnknownToken
	}

	return owner, nil
}

func (l *MemoryLedger) Approve(contract string, tokenID uint64, operator string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := makeTokenKey(contract, tokenID)
	if _, ok := l.owners[key]; !ok {
		return ErrUnknownToken
	}

	l.approvals[key] = operator

	return nil
}

func operatorKey(contract, owner, operator string) string {
	return fmt.Sprintf("%s/%s/%s", contract, owner, operator)
}

func (l *MemoryLedger) SetApprovalForAll(contract, owner, operator string, approved bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.operators[operatorKey(contract, owner, operator)] = approved
}

func (l *MemoryLedger) IsApproved(contract string, tokenID uint64, operator string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	key := makeTokenKey(contract, tokenID)
	if l.approvals[key] == operator {
		return true
	}

	owner, ok := l.owners[key]
	if !ok {
		return false
	}

	return l.operators[operatorKey(contract, owner, operator)]
}

func (l *MemoryLedger) TransferToken(contract string, tokenID uint64, from, to string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := makeTokenKey(contract, tokenID)
	owner, ok := l.owners[key]
	if !ok {
		return ErrUnknownToken
	}
	if owner != from {
		return ErrNotTokenOwner
	}

	l.owners[key] = to
	delete(l.approvals, key)

	return nil
}

func (l *MemoryLedger) Balance(addr string, currency Currency) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if funds, ok := l.balances[addr]; ok {
		return funds[currency]
	}

	return decimal.Zero
}

func (l *MemoryLedger) Deposit(addr string, currency Currency, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.credit(addr, currency, amount)
}

func (l *MemoryLedger) Transfer(from, to string, currency Currency, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := decimal.Zero
	if funds, ok := l.balances[from]; ok {
		balance = funds[currency]
	}
	if balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	l.balances[from][currency] = balance.Sub(amount)
	l.credit(to, currency, amount)

	return nil
}

func (l *MemoryLedger) credit(addr string, currency Currency, amount decimal.Decimal) {
	funds, ok := l.balances[addr]
	if !ok {
		funds = make(map[Currency]decimal.Decimal)
		l.balances[addr] = funds
	}

	funds[currency] = funds[currency].Add(amount)
}
