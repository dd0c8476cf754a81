package entity

import (
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

// AuctionType values match the wire encoding of the contract suite this
// engine settles for, including the historical SLIENT spelling.
type AuctionType int

const (
	AuctionSale   AuctionType = 0
	AuctionNormal AuctionType = 1
	AuctionTime   AuctionType = 2
	AuctionSlient AuctionType = 3
)

func (t AuctionType) String() string {
	switch t {
	case AuctionSale:
		return "SALE"
	case AuctionNormal:
		return "NORMAL"
	case AuctionTime:
		return "TIME"
	case AuctionSlient:
		return "SLIENT"
	}

	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}

// Bid is one bidder entry. The list on an auction holds at most one entry per
// address and keeps submission/update order.
type Bid struct {
	AskPerson string          `json:"askPerson"`
	AskPrice  decimal.Decimal `json:"askPrice"`
	Time      time.Time       `json:"time"`
}

type Auction struct {
	AuctionID      uint64          `json:"auctionID"`
	Type           AuctionType     `json:"type"`
	Seller         string          `json:"seller"`
	TokenAddress   string          `json:"tokenAddress"`
	TokenIDs       []uint64        `json:"tokenIDs"`
	Price          decimal.Decimal `json:"price"`
	TimeLimit      uint64          `json:"timeLimit"`
	ListedAt       time.Time       `json:"listedAt"`
	ReservedBidder string          `json:"reservedBidder,omitempty"`
	Bidders        []Bid           `json:"bidders"`
	Closed         bool            `json:"closed"`
}

func (a Auction) Slug() string {
	return slug.Make(fmt.Sprintf("auction-%d", a.AuctionID))
}

func (a Auction) IsReserved() bool {
	return a.ReservedBidder != ""
}

func (a Auction) VisibleTo(viewer string) bool {
	if !a.IsReserved() {
		return true
	}

	return viewer == a.ReservedBidder || viewer == a.Seller
}

// HasDeadline reports whether the auction expires. Only timed and sealed-bid
// auctions carry a deadline; NORMAL auctions ignore their time limit.
func (a Auction) HasDeadline() bool {
	return a.TimeLimit > 0 && (a.Type == AuctionTime || a.Type == AuctionSlient)
}

func (a Auction) Deadline() time.Time {
	return a.ListedAt.Add(time.Duration(a.TimeLimit) * time.Second)
}

func (a Auction) Expired(now time.Time) bool {
	return a.HasDeadline() && !now.Before(a.Deadline())
}

// BidderIndex returns the position of an address in the bidder list, -1 when
// the address has no live bid.
func (a Auction) BidderIndex(addr string) int {
	for i, b := range a.Bidders {
		if b.AskPerson == addr {
			return i
		}
	}

	return -1
}

// TopBid is the winning entry: the numerically highest amount, the earliest
// entry on ties. Submission order of the list is not the winner order.
func (a Auction) TopBid() (Bid, bool) {
	if len(a.Bidders) == 0 {
		return Bid{}, false
	}

	top := a.Bidders[0]
	for _, b := range a.Bidders[1:] {
		if b.AskPrice.GreaterThan(top.AskPrice) {
			top = b
		}
	}

	return top, true
}
