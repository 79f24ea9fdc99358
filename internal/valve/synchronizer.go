package valve

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/luftujha/luftujha-core/internal/upstream"
)

// UpstreamClient is the slice of the upstream REST surface the
// synchronizer consumes.
type UpstreamClient interface {
	ListValveEntities(ctx context.Context) ([]upstream.EntityState, error)
	SetNumericValue(ctx context.Context, entityID string, value float64) error
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Synchronizer owns the valve snapshot table.
//
// Thread Safety: all methods are safe for concurrent use. SetValue
// holds no lock during the upstream call, so commands for different
// entities never block each other.
type Synchronizer struct {
	client   UpstreamClient
	onUpdate func(Snapshot)
	logger   Logger

	mu     sync.RWMutex
	valves map[string]Snapshot
}

// NewSynchronizer creates a synchronizer over the given upstream
// client. onUpdate receives every accepted change; it runs on the
// caller's goroutine and must not block.
func NewSynchronizer(client UpstreamClient, onUpdate func(Snapshot)) *Synchronizer {
	return &Synchronizer{
		client:   client,
		onUpdate: onUpdate,
		logger:   noopLogger{},
		valves:   make(map[string]Snapshot),
	}
}

// SetLogger sets an optional logger. Must be called before Start.
func (s *Synchronizer) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Start populates the table with a bulk fetch from upstream.
//
// A fetch failure leaves the table unchanged so a retrying caller does
// not lose state already mirrored.
func (s *Synchronizer) Start(ctx context.Context) error {
	entities, err := s.client.ListValveEntities(ctx)
	if err != nil {
		return fmt.Errorf("bulk fetch: %w", err)
	}

	s.mu.Lock()
	for _, entity := range entities {
		s.valves[entity.EntityID] = SnapshotFromEntity(entity)
	}
	count := len(s.valves)
	s.mu.Unlock()

	s.logger.Info("valve snapshot populated", "entities", count)
	return nil
}

// Apply ingests one upstream state change, overwriting the entity's row
// last-write-wins and broadcasting a single update.
func (s *Synchronizer) Apply(change upstream.StateChange) {
	snapshot := SnapshotFromEntity(change.NewState)

	s.mu.Lock()
	s.valves[change.EntityID] = snapshot
	s.mu.Unlock()

	s.logger.Debug("valve updated",
		"entity_id", change.EntityID,
		"value", snapshot.Value,
		"state", snapshot.State,
	)

	if s.onUpdate != nil {
		s.onUpdate(snapshot)
	}
}

// SetValue commands upstream to set a valve's opening.
//
// Fails immediately with ErrUnknownEntity if the entity is absent from
// the snapshot, without any upstream call. On success it returns once
// upstream acknowledges the command; the authoritative value arrives
// later via Apply.
func (s *Synchronizer) SetValue(ctx context.Context, entityID string, value float64) error {
	s.mu.RLock()
	_, known := s.valves[entityID]
	s.mu.RUnlock()

	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}

	if err := s.client.SetNumericValue(ctx, entityID, value); err != nil {
		return fmt.Errorf("set %s=%v: %w", entityID, value, err)
	}
	return nil
}

// Get returns one entity's snapshot.
func (s *Synchronizer) Get(entityID string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.valves[entityID]
	return snapshot, ok
}

// All returns every known snapshot sorted by entity ID, for the
// connect-time snapshot frame.
func (s *Synchronizer) All() []Snapshot {
	s.mu.RLock()
	snapshots := make([]Snapshot, 0, len(s.valves))
	for _, snapshot := range s.valves {
		snapshots = append(snapshots, snapshot)
	}
	s.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].EntityID < snapshots[j].EntityID
	})
	return snapshots
}

// Count returns the number of known entities.
func (s *Synchronizer) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.valves)
}
