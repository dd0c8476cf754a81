package entity

import (
	"fmt"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

// SaleListing is a fixed-price listing of one token bundle. All tokens in the
// bundle share one owner at listing time. ReservedBuyer, when set, restricts
// the purchase to that single address.
type SaleListing struct {
	SellID        uint64          `json:"sellID"`
	Seller        string          `json:"seller"`
	TokenAddress  string          `json:"tokenAddress"`
	TokenIDs      []uint64        `json:"tokenIDs"`
	AskPrice      decimal.Decimal `json:"price"`
	ReservedBuyer string          `json:"reservedBuyer,omitempty"`
}

func (s SaleListing) Slug() string {
	return slug.Make(fmt.Sprintf("sale-%d", s.SellID))
}

func (s SaleListing) IsReserved() bool {
	return s.ReservedBuyer != ""
}

// VisibleTo reports whether a viewer may see the listing. Reserve listings
// are hidden from everyone but the seller and the reserved buyer.
func (s SaleListing) VisibleTo(viewer string) bool {
	if !s.IsReserved() {
		return true
	}

	return viewer == s.ReservedBuyer || viewer == s.Seller
}
