package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerChecks(t *testing.T) {
	acl := New("owner", 2500)

	assert.NoError(t, acl.RequireOwner("owner"))
	assert.ErrorIs(t, acl.RequireOwner("mallory"), ErrNotOwner)
}

func TestPauseIsMultiSigOnly(t *testing.T) {
	acl := New("owner", 2500)

	assert.ErrorIs(t, acl.Pause("owner"), ErrNotMultiSig)

	require.NoError(t, acl.AddMultiSigWallet("owner", "safe"))
	assert.ErrorIs(t, acl.AddMultiSigWallet("mallory", "other"), ErrNotOwner)

	require.NoError(t, acl.Pause("safe"))
	assert.True(t, acl.Paused())

	assert.ErrorIs(t, acl.Unpause("owner"), ErrNotMultiSig)
	require.NoError(t, acl.Unpause("safe"))
	assert.False(t, acl.Paused())
}

func TestBlacklist(t *testing.T) {
	acl := New("owner", 2500)

	assert.NoError(t, acl.RequireClean("scammer"))

	require.NoError(t, acl.AddToBlackList("owner", "scammer"))
	assert.ErrorIs(t, acl.RequireClean("scammer"), ErrScamAddress)
	assert.ErrorIs(t, acl.AddToBlackList("mallory", "victim"), ErrNotOwner)
}

func TestSetRoyaltyBand(t *testing.T) {
	acl := New("owner", 2500)

	assert.ErrorIs(t, acl.SetRoyalty("owner", 499), ErrNotProperRate)
	assert.ErrorIs(t, acl.SetRoyalty("owner", 10001), ErrNotProperRate)
	assert.ErrorIs(t, acl.SetRoyalty("mallory", 600), ErrNotOwner)

	require.NoError(t, acl.SetRoyalty("owner", 500))
	assert.Equal(t, int64(500), acl.Royalty())

	require.NoError(t, acl.SetRoyalty("owner", 10000))
	assert.Equal(t, int64(10000), acl.Royalty())
}

func TestRoyaltyFraction(t *testing.T) {
	acl := New("owner", 2500)

	// 2500 / 100000 = 2.5%
	assert.Equal(t, "0.025", acl.RoyaltyFraction().String())
	assert.Equal(t, "0.02", FeeFraction().String())
}

func TestFundAddressDefaultsToOwner(t *testing.T) {
	acl := New("owner", 2500)

	assert.Equal(t, "owner", acl.FundAddress())

	require.NoError(t, acl.SetFundAddress("owner", "treasury"))
	assert.Equal(t, "treasury", acl.FundAddress())

	assert.ErrorIs(t, acl.SetFundAddress("mallory", "mallory"), ErrNotOwner)
}

func TestModerators(t *testing.T) {
	acl := New("owner", 2500)

	assert.False(t, acl.IsModerator("mod"))
	require.NoError(t, acl.AddModerate("owner", "mod"))
	assert.True(t, acl.IsModerator("mod"))
}

func TestRequireNotPaused(t *testing.T) {
	acl := New("owner", 2500)

	assert.NoError(t, acl.RequireNotPaused())

	require.NoError(t, acl.AddMultiSigWallet("owner", "ms"))
	require.NoError(t, acl.Pause("ms"))
	assert.ErrorIs(t, acl.RequireNotPaused(), ErrPaused)

	require.NoError(t, acl.Unpause("ms"))
	assert.NoError(t, acl.RequireNotPaused())
}
