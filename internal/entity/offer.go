package entity

import (
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

// Offer is an off-listing bid against a token. The target token is the first
// entry of Refs; the rest of the bundle is what the offerer is willing to
// take in exchange. An address holds at most one live offer per token.
type Offer struct {
	TokenAddress string          `json:"tokenAddress"`
	TokenID      uint64          `json:"tokenID"`
	Offerer      string          `json:"offerer"`
	Amount       decimal.Decimal `json:"amount"`
	Refs         []TokenRef      `json:"refs"`
	OfferIndex   uint64          `json:"offerIndex"`
	Time         time.Time       `json:"time"`
}

func (o Offer) Slug() string {
	return slug.Make(fmt.Sprintf("offer-%d-%s-%s", o.TokenID, o.TokenAddress, o.Offerer))
}
