package entity

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

// TokenRef identifies a single token inside a collection.
type TokenRef struct {
	TokenAddress string `json:"tokenAddress"`
	TokenID      uint64 `json:"tokenID"`
}

func (r TokenRef) Slug() string {
	return CreateTokenSlug(r.TokenID, r.TokenAddress)
}

type TradeKind string

const (
	SaleTrade    TradeKind = "sale"
	AuctionTrade TradeKind = "auction"
	OfferTrade   TradeKind = "offer"
)

// PriceEntry is one settled trade in a token's history.
type PriceEntry struct {
	Price decimal.Decimal `json:"price"`
	Time  time.Time       `json:"time"`
	Kind  TradeKind       `json:"kind"`
}

// Token is the registry record for a single NFT known to the marketplace.
// A token is flagged in and out of sale/auction state but never deleted,
// except by an explicit RemoveNFT.
type Token struct {
	TokenAddress string `json:"tokenAddress"`
	TokenID      uint64 `json:"tokenID"`
	TokenURI     string `json:"tokenUri"`
	Owner        string `json:"owner"`
	Creator      string `json:"creator"`

	ForSale    bool   `json:"forSale"`
	ForAuction bool   `json:"forAuction"`
	SellID     uint64 `json:"sellID"`
	AuctionID  uint64 `json:"auctionID"`

	AskPrice decimal.Decimal `json:"askPrice"`
	Offers   []Offer         `json:"offers"`
	History  []PriceEntry    `json:"history"`
}

func (t Token) Slug() string {
	return CreateTokenSlug(t.TokenID, t.TokenAddress)
}

func CreateTokenSlug(tokenID uint64, tokenAddress string) string {
	return slug.Make(fmt.Sprintf("token-%d-%s", tokenID, tokenAddress))
}

func (t Token) Ref() TokenRef {
	return TokenRef{TokenAddress: t.TokenAddress, TokenID: t.TokenID}
}

func (t Token) OfferCount() int {
	return len(t.Offers)
}

// TradePrice is the arithmetic mean of all settled trades, zero if the token
// has never traded.
func (t Token) TradePrice() decimal.Decimal {
	if len(t.History) == 0 {
		return decimal.Zero
	}

	sum := decimal.Zero
	for _, entry := range t.History {
		sum = sum.Add(entry.Price)
	}

	return sum.Div(decimal.NewFromInt(int64(len(t.History))))
}

// Price is the externally quoted price: the asking price while the token is
// listed for sale, the mean trade price otherwise.
func (t Token) Price() decimal.Decimal {
	if t.ForSale {
		return t.AskPrice
	}

	return t.TradePrice()
}

func (t Token) MetadataURI() (string, error) {
	metadataURI := t.TokenURI
	if ipfs := getIpfs(metadataURI); ipfs != "" {
		metadataURI = ipfs
	}

	if len(metadataURI) >= 7 && metadataURI[:7] == "ipfs://" {
		return metadataURI, nil
	}
	if len(metadataURI) < 4 || metadataURI[:4] != "http" {
		return "", errors.New("invalid metadata")
	}

	return metadataURI, nil
}

func getIpfs(metadataURI string) string {
	if len(metadataURI) < 7 {
		return ""
	}

	if metadataURI[:7] == "ipfs://" {
		return metadataURI
	}

	re := regexp.MustCompile("(Qm[1-9A-HJ-NP-Za-km-z]{44})")
	parts := re.FindStringSubmatch(metadataURI)
	if len(parts) == 2 {
		return "ipfs://" + parts[1]
	}

	return ""
}
