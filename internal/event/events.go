package event

type Type string

const (
	TokenMintedEvent     Type = "TokenMintedEvent"
	TokenTransferEvent   Type = "TokenTransferEvent"
	SaleListedEvent      Type = "SaleListedEvent"
	SaleDelistedEvent    Type = "SaleDelistedEvent"
	SaleSettledEvent     Type = "SaleSettledEvent"
	AuctionListedEvent   Type = "AuctionListedEvent"
	AuctionBidEvent      Type = "AuctionBidEvent"
	AuctionSettledEvent  Type = "AuctionSettledEvent"
	AuctionDelistedEvent Type = "AuctionDelistedEvent"
	OfferMadeEvent       Type = "OfferMadeEvent"
	OfferAcceptedEvent   Type = "OfferAcceptedEvent"
	OfferCancelledEvent  Type = "OfferCancelledEvent"
)
