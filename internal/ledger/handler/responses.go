package handler

import (
	"twubi/internal/ledger/models"
	"twubi/internal/ledger/wad"
	audit "twubi/pkg/platform/audit"
)

// RateIndexResponse is a region's rate index as of the current epoch.
type RateIndexResponse struct {
	*models.RateIndex
	Epoch int64 `json:"epoch"`
}

// ConversionsResponse lists a wallet's unclaimed conversions.
type ConversionsResponse struct {
	Conversions []*models.PendingConversion `json:"conversions"`
}

// TreasuryResponse reports the treasury balance after a funding.
type TreasuryResponse struct {
	BalanceBU wad.Amount `json:"treasury_balance_bu"`
}

// EventsResponse is one page of the event log. NextAfter is the cursor for
// the following page.
type EventsResponse struct {
	Events    []audit.Event `json:"events"`
	NextAfter int64         `json:"next_after"`
}

func toEventsResponse(events []audit.Event, after int64) EventsResponse {
	if events == nil {
		events = []audit.Event{}
	}
	next := after
	if n := len(events); n > 0 {
		next = events[n-1].ID
	}
	return EventsResponse{Events: events, NextAfter: next}
}
