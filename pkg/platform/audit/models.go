package audit

import (
	"context"
	"encoding/json"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers balance-affecting ledger transitions.
	// These require tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers identity-affecting changes such as wallet rotation.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers controller and oracle activity.
	CategoryOperations EventCategory = "operations"
)

// EventType names a state transition recorded in the log.
type EventType string

const (
	// Registry events
	EventPersonRegistered EventType = "person_registered"
	EventWalletRotated    EventType = "wallet_rotated"

	// Claim and conversion events
	EventUBIClaimed          EventType = "ubi_claimed"
	EventConversionRequested EventType = "conversion_requested"
	EventConversionClaimed   EventType = "conversion_claimed"

	// Treasury events
	EventTreasuryFunded EventType = "treasury_funded"

	// Controller events
	EventOracleSubmitted EventType = "oracle_submitted"
	EventRateIndexRolled EventType = "rate_index_rolled"
)

var eventCategories = map[EventType]EventCategory{
	EventPersonRegistered:    CategoryCompliance,
	EventUBIClaimed:          CategoryCompliance,
	EventConversionRequested: CategoryCompliance,
	EventConversionClaimed:   CategoryCompliance,
	EventTreasuryFunded:      CategoryCompliance,

	EventWalletRotated: CategorySecurity,

	EventOracleSubmitted: CategoryOperations,
	EventRateIndexRolled: CategoryOperations,
}

// Category returns the EventCategory for this event type.
// Unknown types default to CategoryOperations.
func (t EventType) Category() EventCategory {
	if cat, ok := eventCategories[t]; ok {
		return cat
	}
	return CategoryOperations
}

// IsKnown reports whether t is one of the declared event types.
func (t EventType) IsKnown() bool {
	_, ok := eventCategories[t]
	return ok
}

// Event is one immutable entry of the append-only log. Payload carries the
// post-state of every entity the transition mutated, so the log can be
// replayed to rebuild ledger state.
type Event struct {
	// ID is the insertion sequence assigned by the store; zero until appended.
	ID        int64           `json:"id"`
	Type      EventType       `json:"type"`
	Category  EventCategory   `json:"category"`
	Timestamp time.Time       `json:"timestamp"`
	Subject   string          `json:"subject"`
	RequestID string          `json:"request_id,omitempty"`
	ActorID   string          `json:"actor_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Store persists events. Append joins the transaction carried by ctx when
// there is one. The log has no update or delete.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListAfter(ctx context.Context, afterID int64, limit int) ([]Event, error)
}
