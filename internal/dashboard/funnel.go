package dashboard

import (
	"context"
	"fmt"

	"listingpulse/internal/analytics"
	"listingpulse/internal/events"
	"listingpulse/internal/listings"
	"listingpulse/internal/timeframe"
)

// ListingFunnel is the funnel of one listing over a range.
type ListingFunnel struct {
	ListingID uint                   `json:"listing_id"`
	Range     timeframe.Range        `json:"range"`
	Steps     []analytics.FunnelStep `json:"steps"`
}

// ListingFunnel loads the listing's VIEW and CLICK rows for r and computes its
// funnel. It returns listings.ErrListingNotFound for unknown ids.
func (b *Builder) ListingFunnel(ctx context.Context, listingID uint, r timeframe.Range) (*ListingFunnel, error) {
	if _, err := listings.GetListing(ctx, b.db, listingID); err != nil {
		return nil, err
	}

	tf := timeframe.NewTimeFrame(r, b.clock.Now())
	load := func(kind events.ConversionKind) ([]events.ConversionEvent, error) {
		rows, err := events.LoadConversions(ctx, b.db, events.ConversionFilter{
			Kind:      kind,
			From:      tf.From,
			To:        tf.To,
			ListingID: listingID,
		})
		if err != nil {
			return nil, fmt.Errorf("listing funnel: %w", err)
		}
		return rows, nil
	}

	views, err := load(events.ConversionKindView)
	if err != nil {
		return nil, err
	}
	clicks, err := load(events.ConversionKindClick)
	if err != nil {
		return nil, err
	}

	return &ListingFunnel{
		ListingID: listingID,
		Range:     r,
		Steps:     analytics.ListingFunnel(listingID, views, clicks),
	}, nil
}
