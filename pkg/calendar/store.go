package calendar

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Store is the authoritative collection of calendar events.
type Store interface {
	// WithTransaction runs fn against a view of the store; the writes made through that view
	// become visible only if fn returns nil.
	WithTransaction(ctx context.Context, fn func(store Store) error) error
	// List returns the events in insertion order.
	List(ctx context.Context) ([]Event, error)
	ReplaceAll(ctx context.Context, events []Event) error
	// Upsert replaces the event with the same UID or appends it.
	Upsert(ctx context.Context, event Event) error
	// RemoveWhere deletes every event matching pred and reports how many were removed.
	RemoveWhere(ctx context.Context, pred func(Event) bool) (int, error)
}

// MemoryStore keeps the events of the running process. Transactions are serialized, so a
// gesture's read-compute-write never interleaves with another one.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: []Event{}}
}

func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(store Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Work on a copy, the original slice stays untouched until commit
	tx := &memoryTx{events: cloneEvents(s.events)}
	if err := fn(tx); err != nil {
		return err
	}
	s.events = tx.events
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEvents(s.events), nil
}

func (s *MemoryStore) ReplaceAll(ctx context.Context, events []Event) error {
	return s.WithTransaction(ctx, func(store Store) error {
		return store.ReplaceAll(ctx, events)
	})
}

func (s *MemoryStore) Upsert(ctx context.Context, event Event) error {
	return s.WithTransaction(ctx, func(store Store) error {
		return store.Upsert(ctx, event)
	})
}

func (s *MemoryStore) RemoveWhere(ctx context.Context, pred func(Event) bool) (int, error) {
	var removed int
	err := s.WithTransaction(ctx, func(store Store) error {
		var err error
		removed, err = store.RemoveWhere(ctx, pred)
		return err
	})
	return removed, err
}

// Len reports the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// memoryTx is the working copy handed to a MemoryStore transaction.
type memoryTx struct {
	events []Event
}

// WithTransaction joins the running transaction.
func (tx *memoryTx) WithTransaction(ctx context.Context, fn func(store Store) error) error {
	return fn(tx)
}

func (tx *memoryTx) List(ctx context.Context) ([]Event, error) {
	return cloneEvents(tx.events), nil
}

func (tx *memoryTx) ReplaceAll(ctx context.Context, events []Event) error {
	if err := checkUniqueUIDs(events); err != nil {
		return err
	}
	tx.events = cloneEvents(events)
	return nil
}

func (tx *memoryTx) Upsert(ctx context.Context, event Event) error {
	if event.UID == uuid.Nil {
		return ErrMissingEventUID
	}
	for i, e := range tx.events {
		if e.UID == event.UID {
			tx.events[i] = event.Clone()
			return nil
		}
	}
	tx.events = append(tx.events, event.Clone())
	return nil
}

func (tx *memoryTx) RemoveWhere(ctx context.Context, pred func(Event) bool) (int, error) {
	kept := tx.events[:0:0]
	for _, e := range tx.events {
		if !pred(e) {
			kept = append(kept, e)
		}
	}
	removed := len(tx.events) - len(kept)
	tx.events = kept
	return removed, nil
}

func checkUniqueUIDs(events []Event) error {
	seen := make(map[uuid.UUID]struct{}, len(events))
	for _, e := range events {
		if e.UID == uuid.Nil {
			return ErrMissingEventUID
		}
		if _, ok := seen[e.UID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateEventUID, e.UID)
		}
		seen[e.UID] = struct{}{}
	}
	return nil
}
