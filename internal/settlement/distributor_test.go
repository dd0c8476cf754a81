package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revmarket/marketplace-engine/internal/access"
	"github.com/revmarket/marketplace-engine/internal/ledger"
)

func TestSplit(t *testing.T) {
	acl := access.New("owner", 2500)
	dist := NewDistributor(ledger.NewMemoryLedger(), acl)

	b := dist.Split(decimal.NewFromInt(100), "seller", "creator")

	assert.Equal(t, "2", b.Fee.String())
	assert.Equal(t, "2.5", b.Royalty.String())
	assert.Equal(t, "95.5", b.Proceeds.String())
	assert.True(t, b.Proceeds.Add(b.Fee).Add(b.Royalty).Equal(b.Amount))
}

func TestSplitSellerIsCreator(t *testing.T) {
	acl := access.New("owner", 2500)
	dist := NewDistributor(ledger.NewMemoryLedger(), acl)

	b := dist.Split(decimal.NewFromInt(100), "alice", "alice")

	assert.Equal(t, "2", b.Fee.String())
	assert.True(t, b.Royalty.IsZero())
	assert.Equal(t, "98", b.Proceeds.String())
}

func TestSettleLeavesFeeInEscrow(t *testing.T) {
	led := ledger.NewMemoryLedger()
	acl := access.New("owner", 2500)
	dist := NewDistributor(led, acl)

	led.Deposit(ledger.EscrowAccount, ledger.WETH, decimal.NewFromInt(100))

	b, err := dist.Settle(ledger.WETH, decimal.NewFromInt(100), "seller", "creator")
	require.NoError(t, err)

	assert.True(t, led.Balance("seller", ledger.WETH).Equal(b.Proceeds))
	assert.True(t, led.Balance("creator", ledger.WETH).Equal(b.Royalty))
	assert.True(t, led.Balance(ledger.EscrowAccount, ledger.WETH).Equal(b.Fee))
}

func TestSettleInsufficientEscrow(t *testing.T) {
	led := ledger.NewMemoryLedger()
	acl := access.New("owner", 2500)
	dist := NewDistributor(led, acl)

	_, err := dist.Settle(ledger.Native, decimal.NewFromInt(100), "seller", "creator")
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}
