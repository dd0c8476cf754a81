package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(n int64) PriceEntry {
	return PriceEntry{Price: decimal.NewFromInt(n), Kind: SaleTrade}
}

func TestTradePriceIsMeanOfHistory(t *testing.T) {
	token := Token{}
	assert.True(t, token.TradePrice().IsZero())

	token.History = []PriceEntry{entry(3), entry(6), entry(1), entry(7)}
	assert.Equal(t, "4.25", token.TradePrice().String())
}

func TestPricePrefersAskWhileForSale(t *testing.T) {
	token := Token{
		ForSale:  true,
		AskPrice: decimal.NewFromInt(9),
		History:  []PriceEntry{entry(2), entry(5)},
	}

	assert.Equal(t, "9", token.Price().String())

	token.ForSale = false
	assert.Equal(t, "3.5", token.Price().String())
}

func TestMetadataURI(t *testing.T) {
	token := Token{TokenURI: "https://meta.example/1.json"}
	uri, err := token.MetadataURI()
	require.NoError(t, err)
	assert.Equal(t, "https://meta.example/1.json", uri)

	token = Token{TokenURI: "ipfs://QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"}
	uri, err = token.MetadataURI()
	require.NoError(t, err)
	assert.Equal(t, "ipfs://QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", uri)

	// A bare gateway URL carrying a CID is normalized to the ipfs scheme.
	token = Token{TokenURI: "https://gateway.pinata.cloud/ipfs/QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"}
	uri, err = token.MetadataURI()
	require.NoError(t, err)
	assert.Equal(t, "ipfs://QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", uri)

	token = Token{TokenURI: "nope"}
	_, err = token.MetadataURI()
	assert.Error(t, err)
}

func TestSlugIsStable(t *testing.T) {
	a := Token{TokenAddress: "punks", TokenID: 7}
	b := TokenRef{TokenAddress: "punks", TokenID: 7}

	assert.Equal(t, a.Slug(), b.Slug())
}
