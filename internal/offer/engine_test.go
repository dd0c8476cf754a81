package offer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revmarket/marketplace-engine/internal/access"
	"github.com/revmarket/marketplace-engine/internal/entity"
	"github.com/revmarket/marketplace-engine/internal/ledger"
	"github.com/revmarket/marketplace-engine/internal/registry"
	"github.com/revmarket/marketplace-engine/internal/settlement"
)

type offerEnv struct {
	led    *ledger.MemoryLedger
	reg    *registry.Registry
	engine *Engine
}

func newOfferEnv(t *testing.T) *offerEnv {
	t.Helper()

	led := ledger.NewMemoryLedger()
	acl := access.New("owner", 2500)
	reg := registry.New(led, acl, "revnft", decimal.Zero)
	dist := settlement.NewDistributor(led, acl)

	return &offerEnv{led: led, reg: reg, engine: NewEngine(reg, led, acl, dist)}
}

func (env *offerEnv) mint(t *testing.T, owner string) entity.TokenRef {
	t.Helper()

	ref, err := env.reg.MintNFT(owner, "", decimal.Zero)
	require.NoError(t, err)

	return ref
}

func price(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestMakeOffer(t *testing.T) {
	env := newOfferEnv(t)
	ref := env.mint(t, "alice")

	env.led.Deposit("bob", ledger.WETH, price(10))

	made, err := env.engine.MakeOffer("bob", []entity.TokenRef{ref}, price(4))
	require.NoError(t, err)
	assert.Equal(t, ref.TokenAddress, made.TokenAddress)
	assert.Equal(t, uint64(0), made.OfferIndex)

	// Escrowed on submission.
	assert.True(t, env.led.Balance("bob", ledger.WETH).Equal(price(6)))
	assert.True(t, env.led.Balance(ledger.EscrowAccount, ledger.WETH).Equal(price(4)))

	offers, err := env.engine.GetOffers(ref.TokenAddress, ref.TokenID)
	require.NoError(t, err)
	require.Len(t, offers, 1)
}

func TestMakeOfferTargetsFirstRef(t *testing.T) {
	env := newOfferEnv(t)
	target := env.mint(t, "alice")
	other := env.mint(t, "alice")

	env.led.Deposit("bob", ledger.WETH, price(10))

	made, err := env.engine.MakeOffer("bob", []entity.TokenRef{target, other}, price(4))
	require.NoError(t, err)
	assert.Equal(t, target.TokenID, made.TokenID)
	require.Len(t, made.Refs, 2)

	offers, err := env.engine.GetOffers(target.TokenAddress, target.TokenID)
	require.NoError(t, err)
	assert.Len(t, offers, 1)

	offers, err = env.engine.GetOffers(other.TokenAddress, other.TokenID)
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestRepeatOfferReplaces(t *testing.T) {
	env := newOfferEnv(t)
	ref := env.mint(t, "alice")

	env.led.Deposit("bob", ledger.WETH, price(10))

	_, err := env.engine.MakeOffer("bob", []entity.TokenRef{ref}, price(4))
	require.NoError(t, err)

	made, err := env.engine.MakeOffer("bob", []entity.TokenRef{ref}, price(6))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), made.OfferIndex)

	offers, err := env.engine.GetOffers(ref.TokenAddress, ref.TokenID)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "6", offers[0].Amount.String())

	// Only the new amount is escrowed.
	assert.True(t, env.led.Balance("bob", ledger.WETH).Equal(price(4)))
	assert.True(t, env.led.Balance(ledger.EscrowAccount, ledger.WETH).Equal(price(6)))
}

func TestAcceptOffer(t *testing.T) {
	env := newOfferEnv(t)
	ref := env.mint(t, "alice")

	env.led.Deposit("bob", ledger.WETH, price(10))
	env.led.Deposit("carol", ledger.WETH, price(10))

	madeBob, err := env.engine.MakeOffer("bob", []entity.TokenRef{ref}, price(4))
	require.NoError(t, err)
	_, err = env.engine.MakeOffer("carol", []entity.TokenRef{ref}, price(5))
	require.NoError(t, err)

	_, err = env.engine.AcceptOffer("mallory", ref, madeBob.OfferIndex, decimal.Zero)
	assert.EqualError(t, err, "not owner")

	receipt, err := env.engine.AcceptOffer("alice", ref, madeBob.OfferIndex, price(4))
	require.NoError(t, err)
	assert.Equal(t, "bob", receipt.Offer.Offerer)

	owner, err := env.led.OwnerOf(ref.TokenAddress, ref.TokenID)
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)

	// Only the accepted offer is removed; carol's stays live with escrow.
	offers, err := env.engine.GetOffers(ref.TokenAddress, ref.TokenID)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "carol", offers[0].Offerer)
	assert.True(t, env.led.Balance("carol", ledger.WETH).Equal(price(5)))

	token, err := env.reg.Get(ref)
	require.NoError(t, err)
	require.Len(t, token.History, 1)
	assert.Equal(t, entity.OfferTrade, token.History[0].Kind)
}

func TestAcceptOfferValidation(t *testing.T) {
	env := newOfferEnv(t)
	ref := env.mint(t, "alice")

	env.led.Deposit("bob", ledger.WETH, price(10))
	made, err := env.engine.MakeOffer("bob", []entity.TokenRef{ref}, price(4))
	require.NoError(t, err)

	_, err = env.engine.AcceptOffer("alice", ref, 99, decimal.Zero)
	assert.EqualError(t, err, "not exist offer")

	// Stale expected amount rejects the just-replaced offer.
	_, err = env.engine.AcceptOffer("alice", ref, made.OfferIndex, price(3))
	assert.EqualError(t, err, "not exist offer")
}

func TestCancelOffer(t *testing.T) {
	env := newOfferEnv(t)
	ref := env.mint(t, "alice")

	env.led.Deposit("bob", ledger.WETH, price(10))
	_, err := env.engine.MakeOffer("bob", []entity.TokenRef{ref}, price(4))
	require.NoError(t, err)

	_, err = env.engine.CancelOffer("carol", ref.TokenAddress, ref.TokenID)
	assert.EqualError(t, err, "not exist offer")

	cancelled, err := env.engine.CancelOffer("bob", ref.TokenAddress, ref.TokenID)
	require.NoError(t, err)
	assert.Equal(t, "4", cancelled.Amount.String())

	assert.True(t, env.led.Balance("bob", ledger.WETH).Equal(price(10)))

	offers, err := env.engine.GetOffers(ref.TokenAddress, ref.TokenID)
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestAcceptOfferNoEffectsWhenSellerLostToken(t *testing.T) {
	env := newOfferEnv(t)
	ref := env.mint(t, "alice")

	env.led.Deposit("bob", ledger.WETH, price(5))
	made, err := env.engine.MakeOffer("bob", []entity.TokenRef{ref}, price(5))
	require.NoError(t, err)

	// The token leaves the seller's wallet behind the registry's back.
	require.NoError(t, env.led.TransferToken(ref.TokenAddress, ref.TokenID, "alice", "dave"))

	_, err = env.engine.AcceptOffer("alice", ref, made.OfferIndex, price(5))
	assert.EqualError(t, err, "not owner")

	// The offer and its escrow survive the failed acceptance untouched.
	offers, err := env.engine.GetOffers(ref.TokenAddress, ref.TokenID)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.True(t, env.led.Balance(ledger.EscrowAccount, ledger.WETH).Equal(price(5)))
	assert.True(t, env.led.Balance("alice", ledger.WETH).IsZero())
}
