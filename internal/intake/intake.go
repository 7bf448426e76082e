// Package intake implements the per-bill conversation state machine that
// sits between an inbound chat image, the vision scanner and the durable
// bill store.
package intake

import (
	"time"

	"billbot/internal/scanning"
)

// State is the position of a pending intake in its lifecycle.
type State string

const (
	// StateParsing means the scanner call is in flight. Replies are never
	// attributed to an intake in this state.
	StateParsing State = "parsing"
	// StateAwaitingChoice means the draft was presented and the owner has
	// not yet picked manual, auto or skip.
	StateAwaitingChoice State = "awaiting_choice"
	// StateAwaitingText means the owner picked manual and the next free
	// text from them is the description.
	StateAwaitingText State = "awaiting_text"
	// StateFinalizing means the record write is in flight.
	StateFinalizing State = "finalizing"
)

// Pending is the ephemeral state of one bill between image receipt and
// commit. It is keyed by (owner, correlation id), mutated only by the
// Controller, and lost on restart by design.
type Pending struct {
	Owner         string
	CorrelationID string
	State         State
	Draft         *scanning.Draft
	ImagePath     string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}
