package entity

import (
	"time"

	"github.com/user/soldprice-service/pkg/money"
)

// FormatKind tags the buying format of a sold listing.
type FormatKind string

const (
	FormatAuction    FormatKind = "auction"
	FormatFixedPrice FormatKind = "fixed_price"
)

// BuyingFormat is either an auction or a fixed-price sale. BidCount is only
// meaningful for auctions and AcceptsOffers only for fixed-price listings.
type BuyingFormat struct {
	Kind          FormatKind `json:"kind"`
	BidCount      int        `json:"bid_count,omitempty"`
	AcceptsOffers bool       `json:"accepts_offers,omitempty"`
	OfferAccepted bool       `json:"offer_accepted"`
}

// Auction builds an auction format.
func Auction(bids int, offerAccepted bool) BuyingFormat {
	return BuyingFormat{Kind: FormatAuction, BidCount: bids, OfferAccepted: offerAccepted}
}

// FixedPrice builds a fixed-price ("Buy It Now") format.
func FixedPrice(acceptsOffers, offerAccepted bool) BuyingFormat {
	return BuyingFormat{Kind: FormatFixedPrice, AcceptsOffers: acceptsOffers, OfferAccepted: offerAccepted}
}

// Bids returns the bid count for auctions.
func (f BuyingFormat) Bids() (int, bool) {
	if f.Kind != FormatAuction {
		return 0, false
	}
	return f.BidCount, true
}

// Offers returns whether a fixed-price listing accepted offers.
func (f BuyingFormat) Offers() (bool, bool) {
	if f.Kind != FormatFixedPrice {
		return false, false
	}
	return f.AcceptsOffers, true
}

// Listing is one observed sale. ExternalID is the marketplace item number.
type Listing struct {
	ExternalID int64        `json:"external_id"`
	Title      string       `json:"title"`
	SaleDate   time.Time    `json:"sale_date"`
	Price      money.Money  `json:"price"`
	URL        string       `json:"url"`
	Format     BuyingFormat `json:"format"`
}
