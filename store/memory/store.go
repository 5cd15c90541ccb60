// Package memory provides an in-memory Store implementation for unit
// testing and single-node development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/connection"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/destination"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/source"
	hookstore "github.com/hookline/hookline/store"
)

// compile-time interface check.
var _ hookstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	sources        map[string]*source.Source           // keyed by ID string
	sourcesByToken map[string]*source.Source           // keyed by ingest token
	destinations   map[string]*destination.Destination // keyed by ID string
	connections    map[string]*connection.Connection   // keyed by ID string
	events         map[string]*event.Event             // keyed by ID string
	deliveries     map[string]*delivery.Delivery       // keyed by ID string
	claimed        map[string]bool                     // simulates SKIP LOCKED
	attempts       map[string][]*delivery.Attempt      // keyed by delivery ID string

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		sources:        make(map[string]*source.Source),
		sourcesByToken: make(map[string]*source.Source),
		destinations:   make(map[string]*destination.Destination),
		connections:    make(map[string]*connection.Connection),
		events:         make(map[string]*event.Event),
		deliveries:     make(map[string]*delivery.Delivery),
		claimed:        make(map[string]bool),
		attempts:       make(map[string][]*delivery.Attempt),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks that the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return hookline.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// source.Store
// ──────────────────────────────────────────────────

// CreateSource persists a new source, enforcing ingest token uniqueness.
func (s *Store) CreateSource(_ context.Context, src *source.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sourcesByToken[src.IngestToken]; ok {
		return hookline.ErrDuplicateIngestToken
	}
	s.sources[src.ID.String()] = src
	s.sourcesByToken[src.IngestToken] = src
	return nil
}

// GetSource returns a source by ID.
func (s *Store) GetSource(_ context.Context, srcID id.ID) (*source.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.sources[srcID.String()]
	if !ok {
		return nil, hookline.ErrSourceNotFound
	}
	return src, nil
}

// GetSourceByToken returns a source by its ingest token.
func (s *Store) GetSourceByToken(_ context.Context, token string) (*source.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.sourcesByToken[token]
	if !ok {
		return nil, hookline.ErrSourceNotFound
	}
	return src, nil
}

// UpdateSource modifies an existing source. The ingest token is immutable,
// so the token index never changes.
func (s *Store) UpdateSource(_ context.Context, src *source.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sources[src.ID.String()]
	if !ok {
		return hookline.ErrSourceNotFound
	}
	src.IngestToken = existing.IngestToken
	src.UpdatedAt = time.Now().UTC()
	s.sources[src.ID.String()] = src
	s.sourcesByToken[src.IngestToken] = src
	return nil
}

// DeleteSource removes a source.
func (s *Store) DeleteSource(_ context.Context, srcID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[srcID.String()]
	if !ok {
		return hookline.ErrSourceNotFound
	}
	delete(s.sources, srcID.String())
	delete(s.sourcesByToken, src.IngestToken)
	return nil
}

// ListSources returns sources, optionally filtered by status.
func (s *Store) ListSources(_ context.Context, opts source.ListOpts) ([]*source.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*source.Source, 0, len(s.sources))
	for _, src := range s.sources {
		if opts.Status != nil && src.Status != *opts.Status {
			continue
		}
		result = append(result, src)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// destination.Store
// ──────────────────────────────────────────────────

// CreateDestination persists a new destination.
func (s *Store) CreateDestination(_ context.Context, dst *destination.Destination) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.destinations[dst.ID.String()] = dst
	return nil
}

// GetDestination returns a destination by ID.
func (s *Store) GetDestination(_ context.Context, dstID id.ID) (*destination.Destination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dst, ok := s.destinations[dstID.String()]
	if !ok {
		return nil, hookline.ErrDestinationNotFound
	}
	return dst, nil
}

// UpdateDestination modifies an existing destination.
func (s *Store) UpdateDestination(_ context.Context, dst *destination.Destination) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.destinations[dst.ID.String()]; !ok {
		return hookline.ErrDestinationNotFound
	}
	dst.UpdatedAt = time.Now().UTC()
	s.destinations[dst.ID.String()] = dst
	return nil
}

// DeleteDestination removes a destination.
func (s *Store) DeleteDestination(_ context.Context, dstID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.destinations[dstID.String()]; !ok {
		return hookline.ErrDestinationNotFound
	}
	delete(s.destinations, dstID.String())
	return nil
}

// ListDestinations returns destinations, optionally filtered by status.
func (s *Store) ListDestinations(_ context.Context, opts destination.ListOpts) ([]*destination.Destination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*destination.Destination, 0, len(s.destinations))
	for _, dst := range s.destinations {
		if opts.Status != nil && dst.Status != *opts.Status {
			continue
		}
		result = append(result, dst)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// connection.Store
// ──────────────────────────────────────────────────

// CreateConnection persists a new connection.
func (s *Store) CreateConnection(_ context.Context, conn *connection.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connections[conn.ID.String()] = conn
	return nil
}

// GetConnection returns a connection by ID.
func (s *Store) GetConnection(_ context.Context, connID id.ID) (*connection.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.connections[connID.String()]
	if !ok {
		return nil, hookline.ErrConnectionNotFound
	}
	return conn, nil
}

// UpdateConnection modifies an existing connection.
func (s *Store) UpdateConnection(_ context.Context, conn *connection.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.connections[conn.ID.String()]; !ok {
		return hookline.ErrConnectionNotFound
	}
	conn.UpdatedAt = time.Now().UTC()
	s.connections[conn.ID.String()] = conn
	return nil
}

// DeleteConnection removes a connection.
func (s *Store) DeleteConnection(_ context.Context, connID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.connections[connID.String()]; !ok {
		return hookline.ErrConnectionNotFound
	}
	delete(s.connections, connID.String())
	return nil
}

// ListBySource returns a source's connections ordered by priority ascending.
func (s *Store) ListBySource(_ context.Context, srcID id.ID, opts connection.ListOpts) ([]*connection.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*connection.Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		if conn.SourceID.String() != srcID.String() {
			continue
		}
		if opts.Status != nil && conn.Status != *opts.Status {
			continue
		}
		result = append(result, conn)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority < result[j].Priority
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

// CreateEvent persists a new event.
func (s *Store) CreateEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[evt.ID.String()] = evt
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(_ context.Context, evtID id.ID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return nil, hookline.ErrEventNotFound
	}
	return evt, nil
}

// UpdateEventStatus changes an event's ingestion status.
func (s *Store) UpdateEventStatus(_ context.Context, evtID id.ID, status event.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return hookline.ErrEventNotFound
	}
	evt.Status = status
	evt.UpdatedAt = time.Now().UTC()
	return nil
}

// ListEvents returns events newest first, optionally filtered.
func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Event, 0, len(s.events))
	for _, evt := range s.events {
		if opts.SourceID != nil && evt.SourceID.String() != opts.SourceID.String() {
			continue
		}
		if opts.Status != nil && evt.Status != *opts.Status {
			continue
		}
		result = append(result, evt)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ReceivedAt.After(result[j].ReceivedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

// CreateDelivery persists a new delivery.
func (s *Store) CreateDelivery(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliveries[d.ID.String()] = d
	return nil
}

// GetDelivery returns a copy of the delivery by ID.
func (s *Store) GetDelivery(_ context.Context, delID id.ID) (*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deliveries[delID.String()]
	if !ok {
		return nil, hookline.ErrDeliveryNotFound
	}
	return copyDelivery(d), nil
}

// UpdateDelivery modifies a delivery and releases its claim.
func (s *Store) UpdateDelivery(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deliveries[d.ID.String()]; !ok {
		return hookline.ErrDeliveryNotFound
	}
	s.deliveries[d.ID.String()] = copyDelivery(d)
	delete(s.claimed, d.ID.String())
	return nil
}

// ListDeliveries returns deliveries newest first, optionally filtered.
func (s *Store) ListDeliveries(_ context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*delivery.Delivery, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		if opts.EventID != nil && d.EventID.String() != opts.EventID.String() {
			continue
		}
		if opts.DestinationID != nil && d.DestinationID.String() != opts.DestinationID.String() {
			continue
		}
		if opts.Status != nil && d.Status != *opts.Status {
			continue
		}
		result = append(result, copyDelivery(d))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// DueDeliveries claims non-terminal deliveries whose next attempt is due,
// simulating FOR UPDATE SKIP LOCKED with a claim set.
func (s *Store) DueDeliveries(_ context.Context, now time.Time, limit int) ([]*delivery.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*delivery.Delivery, 0, limit)
	for key, d := range s.deliveries {
		if limit > 0 && len(result) >= limit {
			break
		}
		if s.claimed[key] || d.Terminal() {
			continue
		}
		if d.NextAttemptAt == nil || d.NextAttemptAt.After(now) {
			continue
		}
		s.claimed[key] = true
		result = append(result, copyDelivery(d))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].NextAttemptAt.Before(*result[j].NextAttemptAt)
	})
	return result, nil
}

// CountPending returns the number of non-terminal deliveries.
func (s *Store) CountPending(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, d := range s.deliveries {
		if !d.Terminal() {
			count++
		}
	}
	return count, nil
}

// CreateAttempt records one attempt.
func (s *Store) CreateAttempt(_ context.Context, a *delivery.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := a.DeliveryID.String()
	s.attempts[key] = append(s.attempts[key], a)
	return nil
}

// ListAttempts returns a delivery's attempts ordered by number.
func (s *Store) ListAttempts(_ context.Context, delID id.ID) ([]*delivery.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attempts := s.attempts[delID.String()]
	result := make([]*delivery.Attempt, len(attempts))
	copy(result, attempts)

	sort.Slice(result, func(i, j int) bool {
		return result[i].Number < result[j].Number
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyDelivery(d *delivery.Delivery) *delivery.Delivery {
	dup := *d
	if d.NextAttemptAt != nil {
		t := *d.NextAttemptAt
		dup.NextAttemptAt = &t
	}
	if d.CompletedAt != nil {
		t := *d.CompletedAt
		dup.CompletedAt = &t
	}
	return &dup
}

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
