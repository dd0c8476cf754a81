package auction

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revmarket/marketplace-engine/internal/access"
	"github.com/revmarket/marketplace-engine/internal/entity"
	"github.com/revmarket/marketplace-engine/internal/ledger"
	"github.com/revmarket/marketplace-engine/internal/registry"
	"github.com/revmarket/marketplace-engine/internal/settlement"
)

type auctionEnv struct {
	led    *ledger.MemoryLedger
	acl    *access.Control
	reg    *registry.Registry
	engine *Engine
	now    time.Time
}

func newAuctionEnv(t *testing.T) *auctionEnv {
	t.Helper()

	led := ledger.NewMemoryLedger()
	acl := access.New("owner", 2500)
	reg := registry.New(led, acl, "revnft", decimal.Zero)
	dist := settlement.NewDistributor(led, acl)

	env := &auctionEnv{led: led, acl: acl, reg: reg, engine: NewEngine(reg, led, acl, dist)}
	env.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	env.engine.SetClock(func() time.Time { return env.now })

	return env
}

func (env *auctionEnv) mint(t *testing.T, owner string) entity.TokenRef {
	t.Helper()

	ref, err := env.reg.MintNFT(owner, "", decimal.Zero)
	require.NoError(t, err)
	env.led.SetApprovalForAll(ref.TokenAddress, owner, ledger.EscrowAccount, true)

	return ref
}

func (env *auctionEnv) fund(addr string, n int64) {
	env.led.Deposit(addr, ledger.WETH, decimal.NewFromInt(n))
}

func (env *auctionEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

func price(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestListAuction(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, price(3), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), a.AuctionID)

	token, err := env.reg.Get(ref)
	require.NoError(t, err)
	assert.True(t, token.ForAuction)
	assert.Equal(t, uint64(1), token.AuctionID)
}

func TestListAuctionValidation(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	_, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, decimal.Zero, 0)
	assert.EqualError(t, err, "incorrect info")

	_, err = env.engine.ListAuction("bob", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, price(3), 0)
	assert.EqualError(t, err, "not token owner")

	_, err = env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionTime, price(3), 0)
	assert.EqualError(t, err, " not allowed limit time")

	_, err = env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, price(3), 0)
	require.NoError(t, err)
	_, err = env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, price(3), 0)
	assert.EqualError(t, err, " already listed")
}

func TestListAuctionWithoutApproval(t *testing.T) {
	env := newAuctionEnv(t)

	ref, err := env.reg.MintNFT("alice", "", decimal.Zero)
	require.NoError(t, err)

	_, err = env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, price(3), 0)
	assert.EqualError(t, err, "not approved")
}

func TestBidFlow(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, price(3), 0)
	require.NoError(t, err)

	env.fund("bob", 10)
	env.fund("carol", 10)
	env.fund("dave", 10)

	_, err = env.engine.BidAuction("bob", a.AuctionID, price(5))
	require.NoError(t, err)
	env.advance(time.Second)

	// Lower than the current top but above the floor: accepted.
	_, err = env.engine.BidAuction("carol", a.AuctionID, price(4))
	require.NoError(t, err)
	env.advance(time.Second)

	_, err = env.engine.BidAuction("dave", a.AuctionID, price(7))
	require.NoError(t, err)

	bidders, err := env.engine.GetBidderInfo(a.AuctionID)
	require.NoError(t, err)
	require.Len(t, bidders, 3)
	assert.Equal(t, "bob", bidders[0].AskPerson)
	assert.Equal(t, "carol", bidders[1].AskPerson)
	assert.Equal(t, "dave", bidders[2].AskPerson)

	// Each bid is escrowed.
	assert.True(t, env.led.Balance("bob", ledger.WETH).Equal(price(5)))
	assert.True(t, env.led.Balance(ledger.EscrowAccount, ledger.WETH).Equal(price(16)))
}

func TestBidValidation(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, price(3), 0)
	require.NoError(t, err)

	_, err = env.engine.BidAuction("bob", 10, price(5))
	assert.EqualError(t, err, " not exist auction")

	_, err = env.engine.BidAuction("alice", a.AuctionID, price(5))
	assert.EqualError(t, err, " owner can not bid")

	env.fund("bob", 10)
	_, err = env.engine.BidAuction("bob", a.AuctionID, price(2))
	assert.EqualError(t, err, " not meet floor price")
}

func TestRebidReplacesOwnEntry(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, price(3), 0)
	require.NoError(t, err)

	env.fund("bob", 20)
	env.fund("carol", 20)

	_, err = env.engine.BidAuction("bob", a.AuctionID, price(6))
	require.NoError(t, err)
	_, err = env.engine.BidAuction("carol", a.AuctionID, price(4))
	require.NoError(t, err)

	// A re-bid must beat the bidder's own previous amount.
	_, err = env.engine.BidAuction("bob", a.AuctionID, price(6))
	assert.EqualError(t, err, " not correct bid amount")

	_, err = env.engine.BidAuction("bob", a.AuctionID, price(8))
	require.NoError(t, err)

	bidders, err := env.engine.GetBidderInfo(a.AuctionID)
	require.NoError(t, err)
	require.Len(t, bidders, 2)
	assert.Equal(t, "bob", bidders[0].AskPerson)
	assert.Equal(t, "8", bidders[0].AskPrice.String())

	// The prior escrow was released before the new one was taken.
	assert.True(t, env.led.Balance("bob", ledger.WETH).Equal(price(12)))
}

func TestCloseAuctionSettlesHighestBid(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, price(3), 0)
	require.NoError(t, err)

	env.fund("bob", 10)
	env.fund("carol", 10)

	_, err = env.engine.BidAuction("bob", a.AuctionID, price(5))
	require.NoError(t, err)
	_, err = env.engine.BidAuction("carol", a.AuctionID, price(7))
	require.NoError(t, err)

	_, err = env.engine.CloseAuction("bob", a.AuctionID)
	assert.EqualError(t, err, " not have permission to close")

	receipt, err := env.engine.CloseAuction("alice", a.AuctionID)
	require.NoError(t, err)
	require.True(t, receipt.Settled)
	assert.Equal(t, "carol", receipt.Winner.AskPerson)

	owner, err := env.led.OwnerOf(ref.TokenAddress, ref.TokenID)
	require.NoError(t, err)
	assert.Equal(t, "carol", owner)

	// Loser refunded, winner's escrow distributed, fee held back.
	assert.True(t, env.led.Balance("bob", ledger.WETH).Equal(price(10)))
	fee := price(7).Mul(access.FeeFraction())
	assert.True(t, env.led.Balance(ledger.EscrowAccount, ledger.WETH).Equal(fee))
	assert.True(t, env.led.Balance("alice", ledger.WETH).Equal(price(7).Sub(fee)))

	token, err := env.reg.Get(ref)
	require.NoError(t, err)
	assert.False(t, token.ForAuction)
	require.Len(t, token.History, 1)
	assert.Equal(t, entity.AuctionTrade, token.History[0].Kind)

	// The record survives as closed.
	_, err = env.engine.BidAuction("bob", a.AuctionID, price(9))
	assert.EqualError(t, err, " closed auction")
	_, err = env.engine.CloseAuction("alice", a.AuctionID)
	assert.EqualError(t, err, " not exist such auction")
}

func TestCloseAuctionWithoutBids(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, price(3), 0)
	require.NoError(t, err)

	receipt, err := env.engine.CloseAuction("alice", a.AuctionID)
	require.NoError(t, err)
	assert.False(t, receipt.Settled)

	token, err := env.reg.Get(ref)
	require.NoError(t, err)
	assert.False(t, token.ForAuction)
	assert.Empty(t, token.History)
}

func TestSaleTypeAuctionSettlesInstantly(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionSale, price(5), 0)
	require.NoError(t, err)

	env.fund("bob", 10)

	_, err = env.engine.BidAuction("bob", a.AuctionID, price(6))
	assert.EqualError(t, err, " not correct bid amount")

	receipt, err := env.engine.BidAuction("bob", a.AuctionID, price(5))
	require.NoError(t, err)
	require.True(t, receipt.Settled)
	assert.Equal(t, "bob", receipt.Winner.AskPerson)

	owner, err := env.led.OwnerOf(ref.TokenAddress, ref.TokenID)
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)
}

func TestTimeAuctionDeadline(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionTime, price(3), 30)
	require.NoError(t, err)

	env.fund("bob", 10)
	_, err = env.engine.BidAuction("bob", a.AuctionID, price(5))
	require.NoError(t, err)

	_, err = env.engine.CloseAuction("alice", a.AuctionID)
	assert.EqualError(t, err, " not finished")

	env.advance(31 * time.Second)

	_, err = env.engine.BidAuction("bob", a.AuctionID, price(6))
	assert.EqualError(t, err, " time out")

	receipt, err := env.engine.CloseAuction("alice", a.AuctionID)
	require.NoError(t, err)
	assert.True(t, receipt.Settled)
	assert.Equal(t, "bob", receipt.Winner.AskPerson)
}

func TestNormalAuctionIgnoresTimeLimit(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, price(3), 30)
	require.NoError(t, err)

	env.advance(time.Hour)

	env.fund("bob", 10)
	_, err = env.engine.BidAuction("bob", a.AuctionID, price(5))
	require.NoError(t, err)

	_, err = env.engine.CloseAuction("alice", a.AuctionID)
	require.NoError(t, err)
}

func TestSlientAuctionHidesBidders(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionSlient, price(3), 60)
	require.NoError(t, err)

	env.fund("bob", 10)
	_, err = env.engine.BidAuction("bob", a.AuctionID, price(5))
	require.NoError(t, err)

	bidders, err := env.engine.GetBidderInfo(a.AuctionID)
	require.NoError(t, err)
	assert.Empty(t, bidders)

	env.advance(61 * time.Second)
	_, err = env.engine.CloseAuction("alice", a.AuctionID)
	require.NoError(t, err)

	bidders, err = env.engine.GetBidderInfo(a.AuctionID)
	require.NoError(t, err)
	require.Len(t, bidders, 1)
	assert.Equal(t, "bob", bidders[0].AskPerson)
}

func TestReserveAuction(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuctionForReserve("alice", ref.TokenAddress, "bob", []uint64{ref.TokenID}, entity.AuctionNormal, price(4), 0)
	require.NoError(t, err)

	env.fund("carol", 10)
	_, err = env.engine.BidAuction("carol", a.AuctionID, price(4))
	assert.EqualError(t, err, "not allowed")

	env.fund("bob", 10)
	_, err = env.engine.BidAuction("bob", a.AuctionID, price(6))
	require.NoError(t, err)

	// Hidden from third parties, visible to both sides.
	assert.Empty(t, env.engine.GetAuctionList("carol"))
	assert.Len(t, env.engine.GetAuctionList("bob"), 1)
	assert.Len(t, env.engine.GetAuctionList("alice"), 1)
}

func TestCancelAuctionRefundsBidders(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, price(3), 0)
	require.NoError(t, err)

	env.fund("bob", 10)
	env.fund("carol", 10)
	_, err = env.engine.BidAuction("bob", a.AuctionID, price(5))
	require.NoError(t, err)
	_, err = env.engine.BidAuction("carol", a.AuctionID, price(7))
	require.NoError(t, err)

	_, err = env.engine.CancelAuction("bob", a.AuctionID)
	assert.EqualError(t, err, "not owner")

	_, err = env.engine.CancelAuction("alice", a.AuctionID)
	require.NoError(t, err)

	assert.True(t, env.led.Balance("bob", ledger.WETH).Equal(price(10)))
	assert.True(t, env.led.Balance("carol", ledger.WETH).Equal(price(10)))
	assert.True(t, env.led.Balance(ledger.EscrowAccount, ledger.WETH).IsZero())

	token, err := env.reg.Get(ref)
	require.NoError(t, err)
	assert.False(t, token.ForAuction)
}

func TestCancelBid(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, price(3), 0)
	require.NoError(t, err)

	env.fund("bob", 10)
	_, err = env.engine.BidAuction("bob", a.AuctionID, price(5))
	require.NoError(t, err)

	assert.EqualError(t, env.engine.CancelBidAuction("carol", a.AuctionID), "not allowed")
	require.NoError(t, env.engine.CancelBidAuction("bob", a.AuctionID))

	assert.True(t, env.led.Balance("bob", ledger.WETH).Equal(price(10)))

	bidders, err := env.engine.GetBidderInfo(a.AuctionID)
	require.NoError(t, err)
	assert.Empty(t, bidders)
}

func TestChangeAuctionPrice(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, price(3), 0)
	require.NoError(t, err)

	assert.EqualError(t, env.engine.ChangeAuctionPrice("bob", a.AuctionID, price(5)), "not owner")
	require.NoError(t, env.engine.ChangeAuctionPrice("alice", a.AuctionID, price(5)))

	got, err := env.engine.GetAuction(a.AuctionID)
	require.NoError(t, err)
	assert.Equal(t, "5", got.Price.String())

	env.fund("bob", 10)
	_, err = env.engine.BidAuction("bob", a.AuctionID, price(4))
	assert.EqualError(t, err, " not meet floor price")
}

func TestTopBidTiePrefersEarliest(t *testing.T) {
	a := entity.Auction{Bidders: []entity.Bid{
		{AskPerson: "bob", AskPrice: price(5)},
		{AskPerson: "carol", AskPrice: price(5)},
	}}

	top, ok := a.TopBid()
	require.True(t, ok)
	assert.Equal(t, "bob", top.AskPerson)
}

func TestCloseAuctionNoEffectsWhenSellerLostToken(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionNormal, price(5), 0)
	require.NoError(t, err)

	env.fund("bob", 10)
	env.fund("carol", 10)
	_, err = env.engine.BidAuction("bob", a.AuctionID, price(6))
	require.NoError(t, err)
	_, err = env.engine.BidAuction("carol", a.AuctionID, price(7))
	require.NoError(t, err)

	// The token leaves the seller's wallet behind the auction's back.
	require.NoError(t, env.led.TransferToken(ref.TokenAddress, ref.TokenID, "alice", "dave"))

	_, err = env.engine.CloseAuction("alice", a.AuctionID)
	assert.EqualError(t, err, "not token owner")

	// No refunds and no payout happened, so every escrow is still intact.
	assert.True(t, env.led.Balance("bob", ledger.WETH).Equal(price(4)))
	assert.True(t, env.led.Balance("carol", ledger.WETH).Equal(price(3)))
	assert.True(t, env.led.Balance("alice", ledger.WETH).IsZero())
	assert.True(t, env.led.Balance(ledger.EscrowAccount, ledger.WETH).Equal(price(13)))

	// Cancelling afterwards refunds each bidder exactly once.
	_, err = env.engine.CancelAuction("alice", a.AuctionID)
	require.NoError(t, err)
	assert.True(t, env.led.Balance("bob", ledger.WETH).Equal(price(10)))
	assert.True(t, env.led.Balance("carol", ledger.WETH).Equal(price(10)))
	assert.True(t, env.led.Balance(ledger.EscrowAccount, ledger.WETH).IsZero())
}

func TestSaleAuctionBidNoEffectsWhenSellerLostToken(t *testing.T) {
	env := newAuctionEnv(t)
	ref := env.mint(t, "alice")

	a, err := env.engine.ListAuction("alice", ref.TokenAddress, []uint64{ref.TokenID}, entity.AuctionSale, price(5), 0)
	require.NoError(t, err)

	require.NoError(t, env.led.TransferToken(ref.TokenAddress, ref.TokenID, "alice", "dave"))

	env.fund("bob", 10)
	_, err = env.engine.BidAuction("bob", a.AuctionID, price(5))
	assert.EqualError(t, err, "not token owner")

	assert.True(t, env.led.Balance("bob", ledger.WETH).Equal(price(10)))
	assert.True(t, env.led.Balance("alice", ledger.WETH).IsZero())
	assert.True(t, env.led.Balance(ledger.EscrowAccount, ledger.WETH).IsZero())
}
