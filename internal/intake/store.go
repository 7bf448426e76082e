package intake

import (
	"log/slog"
	"sync"
	"time"

	"billbot/internal/scanning"
)

// Store holds pending intakes in memory. All mutations happen under one
// lock; Claim in particular selects and transitions in a single critical
// section so a reply can never attach to an intake that just moved on.
type Store struct {
	mu      sync.Mutex
	intakes map[string]*Pending
	ttl     time.Duration
	now     func() time.Time
	discard func(*Pending)
}

// NewStore creates a Store whose entries expire ttl after creation.
func NewStore(ttl time.Duration) *Store {
	return NewStoreWithClock(ttl, time.Now)
}

// NewStoreWithClock creates a Store with a custom clock for testing.
func NewStoreWithClock(ttl time.Duration, now func() time.Time) *Store {
	return &Store{
		intakes: make(map[string]*Pending),
		ttl:     ttl,
		now:     now,
	}
}

func storeKey(owner, correlationID string) string {
	return owner + "\x00" + correlationID
}

// Create registers a new pending intake in the parsing state.
func (s *Store) Create(owner, correlationID, imagePath string) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p := &Pending{
		Owner:         owner,
		CorrelationID: correlationID,
		State:         StateParsing,
		ImagePath:     imagePath,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}
	s.intakes[storeKey(owner, correlationID)] = p
	return copyOf(p)
}

// Get returns a copy of the intake, if present and not expired.
func (s *Store) Get(owner, correlationID string) (*Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.intakes[storeKey(owner, correlationID)]
	if !ok || s.expired(p) {
		return nil, false
	}
	return copyOf(p), true
}

// Delete removes the intake.
func (s *Store) Delete(owner, correlationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.intakes, storeKey(owner, correlationID))
}

// Present attaches the parsed draft and moves the intake to
// awaiting_choice in one step. Returns false if the intake is gone or
// expired.
func (s *Store) Present(owner, correlationID string, draft *scanning.Draft) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.intakes[storeKey(owner, correlationID)]
	if !ok || s.expired(p) {
		return false
	}
	p.Draft = draft
	p.State = StateAwaitingChoice
	return true
}

// SetState moves the intake into state. Returns false if the intake is
// gone or expired.
func (s *Store) SetState(owner, correlationID string, state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.intakes[storeKey(owner, correlationID)]
	if !ok || s.expired(p) {
		return false
	}
	p.State = state
	return true
}

// Claim finds the owner's most recently created live intake whose state is
// in from, transitions it to to, and returns a copy still carrying the
// pre-claim state (so a failed operation can restore it). The whole lookup
// and transition is one atomic step.
func (s *Store) Claim(owner string, from []State, to State) (*Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newest *Pending
	for _, p := range s.intakes {
		if p.Owner != owner || s.expired(p) {
			continue
		}
		matches := false
		for _, st := range from {
			if p.State == st {
				matches = true
				break
			}
		}
		if !matches {
			continue
		}
		if newest == nil || p.CreatedAt.After(newest.CreatedAt) {
			newest = p
		}
	}
	if newest == nil {
		return nil, false
	}

	claimed := copyOf(newest)
	newest.State = to
	return claimed, true
}

// OnDiscard registers fn to run for every intake removed by expiry, so
// the owner of the store can release artifacts tied to the intake. The
// callback runs outside the store lock.
func (s *Store) OnDiscard(fn func(*Pending)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discard = fn
}

// Sweep removes expired intakes and returns how many were discarded.
func (s *Store) Sweep() int {
	s.mu.Lock()
	var discarded []*Pending
	for key, p := range s.intakes {
		if s.expired(p) {
			delete(s.intakes, key)
			discarded = append(discarded, copyOf(p))
			slog.Info("Discarding expired intake",
				"owner", p.Owner,
				"correlation_id", p.CorrelationID,
				"state", p.State,
				"created_at", p.CreatedAt,
			)
		}
	}
	fn := s.discard
	s.mu.Unlock()

	if fn != nil {
		for _, p := range discarded {
			fn(p)
		}
	}
	return len(discarded)
}

// StartSweep runs Sweep on the given interval until the returned stop
// function is called.
func (s *Store) StartSweep(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

// Len reports the number of live intakes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, p := range s.intakes {
		if !s.expired(p) {
			n++
		}
	}
	return n
}

// expired is called with the lock held. Expired entries are treated as
// absent everywhere even before the sweep removes them.
func (s *Store) expired(p *Pending) bool {
	return !s.now().Before(p.ExpiresAt)
}

func copyOf(p *Pending) *Pending {
	cp := *p
	return &cp
}
