package entity

import (
	"crypto/md5"
	"fmt"
	"time"
)

// MarketAction is the archived form of a marketplace event, one row per
// listing, delisting or settlement.
type MarketAction struct {
	Contract string     `json:"contract"`
	TokenID  uint64     `json:"tokenId"`
	Action   ActionType `json:"action"`
	From     string     `json:"from"`
	To       string     `json:"to"`
	Cost     string     `json:"cost"`
	Fee      string     `json:"fee"`
	Royalty  string     `json:"royalty"`
	Currency string     `json:"currency"`
	Time     time.Time  `json:"time"`
}

type ActionType string

const (
	MintAction      ActionType = "mint"
	TransferAction  ActionType = "transfer"
	ListingAction   ActionType = "listing"
	DelistingAction ActionType = "delisting"
	SaleAction      ActionType = "sale"
	AuctionAction   ActionType = "auction"
	OfferAction     ActionType = "offer"
)

func (a MarketAction) Slug() string {
	return CreateMarketActionSlug(a.TokenID, a.Contract, string(a.Action), a.Time.UnixNano())
}

func CreateMarketActionSlug(tokenID uint64, contract, action string, nanos int64) string {
	data := []byte(fmt.Sprintf("marketaction-%d-%s-%s-%d", tokenID, contract, action, nanos))
	return fmt.Sprintf("%x", md5.Sum(data))
}
