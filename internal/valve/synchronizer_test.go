package valve

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/luftujha/luftujha-core/internal/upstream"
)

// fakeUpstream is a hand-rolled UpstreamClient.
type fakeUpstream struct {
	mu       sync.Mutex
	entities []upstream.EntityState
	listErr  error
	setCalls []string
	setErr   error

	// blockOn holds SetNumericValue for this entity until released.
	blockOn string
	release chan struct{}
}

func (f *fakeUpstream) ListValveEntities(context.Context) ([]upstream.EntityState, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.entities, nil
}

func (f *fakeUpstream) SetNumericValue(_ context.Context, entityID string, _ float64) error {
	f.mu.Lock()
	f.setCalls = append(f.setCalls, entityID)
	block := f.blockOn == entityID
	f.mu.Unlock()

	if block {
		<-f.release
	}
	return f.setErr
}

func (f *fakeUpstream) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.setCalls...)
}

func entity(id, state string, attrs map[string]any) upstream.EntityState {
	return upstream.EntityState{EntityID: id, State: state, Attributes: attrs}
}

func TestStartPopulatesSnapshot(t *testing.T) {
	client := &fakeUpstream{entities: []upstream.EntityState{
		entity("number.luftator_supply_living", "55", map[string]any{
			"friendly_name": "Living room supply",
			"min":           float64(0),
			"max":           float64(100),
			"step":          float64(5),
		}),
		entity("number.luftator_supply_bedroom", "30", nil),
	}}

	syncer := NewSynchronizer(client, nil)
	if err := syncer.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if syncer.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", syncer.Count())
	}

	snapshot, ok := syncer.Get("number.luftator_supply_living")
	if !ok {
		t.Fatal("Get() missing populated entity")
	}
	if snapshot.Name != "Living room supply" || snapshot.Value != 55 || snapshot.Max != 100 || snapshot.Step != 5 {
		t.Errorf("snapshot = %+v, parsed attributes wrong", snapshot)
	}
}

func TestStartFetchFailure(t *testing.T) {
	client := &fakeUpstream{listErr: errors.New("upstream down")}

	syncer := NewSynchronizer(client, nil)
	if err := syncer.Start(context.Background()); err == nil {
		t.Error("Start() with failing fetch succeeded, want error")
	}
	if syncer.Count() != 0 {
		t.Errorf("Count() after failed fetch = %d, want 0", syncer.Count())
	}
}

func TestApplyOverwritesAndBroadcasts(t *testing.T) {
	var broadcasts []Snapshot
	syncer := NewSynchronizer(&fakeUpstream{}, func(s Snapshot) {
		broadcasts = append(broadcasts, s)
	})

	syncer.Apply(upstream.StateChange{
		EntityID: "number.luftator_supply_living",
		NewState: entity("number.luftator_supply_living", "55", nil),
	})
	syncer.Apply(upstream.StateChange{
		EntityID: "number.luftator_supply_living",
		NewState: entity("number.luftator_supply_living", "70", nil),
	})

	if len(broadcasts) != 2 {
		t.Fatalf("broadcasts = %d, want 2", len(broadcasts))
	}
	if broadcasts[1].Value != 70 {
		t.Errorf("second broadcast value = %v, want 70", broadcasts[1].Value)
	}

	snapshot, _ := syncer.Get("number.luftator_supply_living")
	if snapshot.Value != 70 {
		t.Errorf("stored value = %v, want 70 (last write wins)", snapshot.Value)
	}
}

func TestSetValueUnknownEntity(t *testing.T) {
	client := &fakeUpstream{}
	syncer := NewSynchronizer(client, nil)

	err := syncer.SetValue(context.Background(), "number.luftator_missing", 50)
	if !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("SetValue() error = %v, want ErrUnknownEntity", err)
	}
	if len(client.calls()) != 0 {
		t.Errorf("upstream calls = %d, want 0 for unknown entity", len(client.calls()))
	}
}

func TestSetValueIssuesCommand(t *testing.T) {
	client := &fakeUpstream{entities: []upstream.EntityState{
		entity("number.luftator_supply_living", "55", nil),
	}}

	syncer := NewSynchronizer(client, nil)
	if err := syncer.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := syncer.SetValue(context.Background(), "number.luftator_supply_living", 80); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}
	if calls := client.calls(); len(calls) != 1 || calls[0] != "number.luftator_supply_living" {
		t.Errorf("upstream calls = %v, want one for the entity", calls)
	}

	// No optimistic local write; the snapshot holds the old value
	// until the authoritative echo arrives via Apply.
	snapshot, _ := syncer.Get("number.luftator_supply_living")
	if snapshot.Value != 55 {
		t.Errorf("value after SetValue = %v, want 55 until echo", snapshot.Value)
	}
}

func TestSetValueConcurrentEntitiesDoNotBlock(t *testing.T) {
	client := &fakeUpstream{
		entities: []upstream.EntityState{
			entity("number.luftator_a", "10", nil),
			entity("number.luftator_b", "20", nil),
		},
		blockOn: "number.luftator_a",
		release: make(chan struct{}),
	}

	syncer := NewSynchronizer(client, nil)
	if err := syncer.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	go syncer.SetValue(context.Background(), "number.luftator_a", 50)

	// Wait until the blocked call is inside the upstream client.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(client.calls()) == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	done := make(chan error, 1)
	go func() {
		done <- syncer.SetValue(context.Background(), "number.luftator_b", 60)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SetValue(b) error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("SetValue(b) blocked behind unrelated entity")
	}

	close(client.release)
}

func TestAllSorted(t *testing.T) {
	syncer := NewSynchronizer(&fakeUpstream{}, nil)

	for _, id := range []string{"number.luftator_c", "number.luftator_a", "number.luftator_b"} {
		syncer.Apply(upstream.StateChange{EntityID: id, NewState: entity(id, "0", nil)})
	}

	all := syncer.All()
	if len(all) != 3 {
		t.Fatalf("All() = %d entries, want 3", len(all))
	}
	for i, want := range []string{"number.luftator_a", "number.luftator_b", "number.luftator_c"} {
		if all[i].EntityID != want {
			t.Errorf("All()[%d] = %s, want %s", i, all[i].EntityID, want)
		}
	}
}

func TestSnapshotFromEntityNonNumericState(t *testing.T) {
	s := SnapshotFromEntity(entity("number.luftator_a", "unavailable", nil))
	if s.Value != 0 {
		t.Errorf("Value = %v, want 0 for non-numeric state", s.Value)
	}
	if s.State != "unavailable" {
		t.Errorf("State = %q, want raw string preserved", s.State)
	}
	if s.Name != "number.luftator_a" {
		t.Errorf("Name = %q, want entity ID fallback", s.Name)
	}
}
