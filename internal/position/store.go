// Package position implements the position lifecycle core: the in-memory
// registry of live positions, the daily trade counter, and the manager that
// drives a validated signal through entry, protection, and close.
package position

import (
	"fmt"
	"sync"

	"github.com/voltrade/revbot/internal/domain"
)

// Store is the in-memory registry of live positions, keyed by entry order
// ID with a secondary index over protective (TP/SL) order IDs for O(1) fill
// matching. All methods are safe for concurrent use; mutating methods hold
// the lock only for the map operation itself, never across I/O.
//
// Reads return value copies, so callers can never mutate a stored position
// without going through the store.
type Store struct {
	mu      sync.Mutex
	byEntry map[string]*domain.Position
	byChild map[string]string // protective order ID -> entry order ID
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		byEntry: make(map[string]*domain.Position),
		byChild: make(map[string]string),
	}
}

// Insert registers a new position. A duplicate entry order ID is a
// collaborator contract breach and returns ErrStoreInvariant.
func (s *Store) Insert(pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEntry[pos.EntryOrderID]; exists {
		return fmt.Errorf("insert: duplicate entry order %s: %w", pos.EntryOrderID, domain.ErrStoreInvariant)
	}
	p := pos
	s.byEntry[pos.EntryOrderID] = &p
	return nil
}

// Get returns a copy of the position with the given entry order ID.
func (s *Store) Get(entryOrderID string) (domain.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byEntry[entryOrderID]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// FindByChildOrderID returns a copy of the position whose TP or SL order
// matches the given order ID.
func (s *Store) FindByChildOrderID(orderID string) (domain.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, ok := s.byChild[orderID]
	if !ok {
		return domain.Position{}, false
	}
	p, ok := s.byEntry[entryID]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// Promote moves a position from PENDING_ENTRY to OPEN.
func (s *Store) Promote(entryOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byEntry[entryOrderID]
	if !ok {
		return fmt.Errorf("promote %s: %w", entryOrderID, domain.ErrNotFound)
	}
	if p.Status != domain.StatusPendingEntry {
		return fmt.Errorf("promote %s from %s: %w", entryOrderID, p.Status, domain.ErrStoreInvariant)
	}
	p.Status = domain.StatusOpen
	return nil
}

// SetTPOrder records the take-profit order ID and indexes it for fill
// matching.
func (s *Store) SetTPOrder(entryOrderID, tpOrderID string) error {
	return s.setChild(entryOrderID, tpOrderID, true)
}

// SetSLOrder records the stop-loss order ID and indexes it for fill
// matching.
func (s *Store) SetSLOrder(entryOrderID, slOrderID string) error {
	return s.setChild(entryOrderID, slOrderID, false)
}

func (s *Store) setChild(entryOrderID, childID string, takeProfit bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byEntry[entryOrderID]
	if !ok {
		return fmt.Errorf("set protective order on %s: %w", entryOrderID, domain.ErrNotFound)
	}
	if takeProfit {
		p.TPOrderID = childID
	} else {
		p.SLOrderID = childID
	}
	s.byChild[childID] = entryOrderID
	return nil
}

// BeginClose atomically transitions a position from OPEN to CLOSING and
// returns a snapshot of it. It returns ok=false when the position does not
// exist or is not OPEN, which makes duplicate fill delivery a no-op: only
// the first event for a position wins this check-and-set.
func (s *Store) BeginClose(entryOrderID string) (domain.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byEntry[entryOrderID]
	if !ok || p.Status != domain.StatusOpen {
		return domain.Position{}, false
	}
	p.Status = domain.StatusClosing
	return *p, true
}

// Remove finalizes a close, deleting the position and its child-order index
// entries. Only CLOSING positions may be removed; anything else is an
// invariant violation.
func (s *Store) Remove(entryOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byEntry[entryOrderID]
	if !ok {
		return fmt.Errorf("remove %s: %w", entryOrderID, domain.ErrNotFound)
	}
	if p.Status != domain.StatusClosing {
		return fmt.Errorf("remove %s in state %s: %w", entryOrderID, p.Status, domain.ErrStoreInvariant)
	}
	s.deleteLocked(p)
	return nil
}

// Abandon removes a position whose entry order never filled (rejected or
// cancelled by the exchange while still PENDING_ENTRY). OPEN and CLOSING
// positions cannot be abandoned.
func (s *Store) Abandon(entryOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byEntry[entryOrderID]
	if !ok {
		return fmt.Errorf("abandon %s: %w", entryOrderID, domain.ErrNotFound)
	}
	if p.Status != domain.StatusPendingEntry {
		return fmt.Errorf("abandon %s in state %s: %w", entryOrderID, p.Status, domain.ErrStoreInvariant)
	}
	s.deleteLocked(p)
	return nil
}

func (s *Store) deleteLocked(p *domain.Position) {
	if p.TPOrderID != "" {
		delete(s.byChild, p.TPOrderID)
	}
	if p.SLOrderID != "" {
		delete(s.byChild, p.SLOrderID)
	}
	delete(s.byEntry, p.EntryOrderID)
}

// Count returns the number of live positions (any non-terminal state).
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byEntry)
}

// All returns a snapshot of every live position. Iterating the result is
// safe while the store mutates.
func (s *Store) All() []domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Position, 0, len(s.byEntry))
	for _, p := range s.byEntry {
		out = append(out, *p)
	}
	return out
}
