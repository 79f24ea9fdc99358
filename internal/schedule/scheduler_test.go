package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/luftujha/luftujha-core/internal/hru"
)

// fakeSource serves a fixed rule slice, optionally failing.
type fakeSource struct {
	mu    sync.Mutex
	rules []*Rule
	err   error
	calls int
}

func (f *fakeSource) ListEnabled(ctx context.Context) ([]*Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	// Enabled filtering happens at the store level in production.
	var enabled []*Rule
	for _, r := range f.rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	return enabled, nil
}

func (f *fakeSource) setRules(rules []*Rule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = rules
}

type valveCall struct {
	entityID string
	value    float64
}

// fakeValves records SetValue calls and can fail selected entities.
type fakeValves struct {
	mu      sync.Mutex
	calls   []valveCall
	failFor map[string]error
}

func (f *fakeValves) SetValue(ctx context.Context, entityID string, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, valveCall{entityID, value})
	if err, ok := f.failFor[entityID]; ok {
		return err
	}
	return nil
}

func (f *fakeValves) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeValves) callsCopy() []valveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]valveCall(nil), f.calls...)
}

// fakeDevice records applied directives.
type fakeDevice struct {
	mu         sync.Mutex
	directives []hru.Directive
	err        error
}

func (f *fakeDevice) ApplyDirective(ctx context.Context, d hru.Directive) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directives = append(f.directives, d)
	return f.err
}

func (f *fakeDevice) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.directives)
}

// windowRule is a rule active every day in [start,end) minutes.
func windowRule(id string, start, end, priority int, targets map[string]float64) *Rule {
	return &Rule{
		ID:           id,
		Name:         id,
		Start:        start,
		End:          end,
		Priority:     priority,
		Enabled:      true,
		ValveTargets: targets,
	}
}

// at builds a wall-clock time on a fixed Wednesday.
func at(hour, minute int) time.Time {
	return time.Date(2026, time.August, 26, hour, minute, 0, 0, time.Local)
}

func newTestScheduler(source RuleSource, valves ValveWriter, device DeviceWriter) *Scheduler {
	return NewScheduler(source, valves, device, time.Second, false)
}

func TestSelectRuleWindowBoundary(t *testing.T) {
	rule := windowRule("morning", 8*60, 14*60, 50, nil)
	rules := []*Rule{rule}

	if got := selectRule(rules, at(13, 59)); got == nil {
		t.Error("rule should be active at 13:59")
	}
	if got := selectRule(rules, at(14, 0)); got != nil {
		t.Error("rule should be inactive at 14:00, window end is exclusive")
	}
	if got := selectRule(rules, at(8, 0)); got == nil {
		t.Error("rule should be active at 08:00, window start is inclusive")
	}
	if got := selectRule(rules, at(7, 59)); got != nil {
		t.Error("rule should be inactive at 07:59")
	}
}

func TestSelectRuleDayOfWeek(t *testing.T) {
	wednesday := 2
	rule := windowRule("midweek", 0, 1440, 50, nil)
	rule.DayOfWeek = &wednesday

	// 2026-08-26 is a Wednesday (day index 2), 2026-08-27 a Thursday.
	if got := selectRule([]*Rule{rule}, at(12, 0)); got == nil {
		t.Error("rule should match on Wednesday")
	}
	thursday := time.Date(2026, time.August, 27, 12, 0, 0, 0, time.Local)
	if got := selectRule([]*Rule{rule}, thursday); got != nil {
		t.Error("rule should not match on Thursday")
	}
}

func TestSelectRulePriorityWins(t *testing.T) {
	low := windowRule("low", 0, 1440, 10, nil)
	high := windowRule("high", 0, 1440, 90, nil)

	// Store order must not affect the outcome.
	if got := selectRule([]*Rule{low, high}, at(12, 0)); got.ID != "high" {
		t.Errorf("winner = %s, want high", got.ID)
	}
	if got := selectRule([]*Rule{high, low}, at(12, 0)); got.ID != "high" {
		t.Errorf("winner = %s, want high", got.ID)
	}
}

func TestSelectRuleTieBreakLaterStart(t *testing.T) {
	early := windowRule("early", 6*60, 18*60, 50, nil)
	late := windowRule("late", 10*60, 14*60, 50, nil)

	if got := selectRule([]*Rule{early, late}, at(12, 0)); got.ID != "late" {
		t.Errorf("winner = %s, want late (later start wins ties)", got.ID)
	}
	if got := selectRule([]*Rule{late, early}, at(12, 0)); got.ID != "late" {
		t.Errorf("winner = %s, want late regardless of order", got.ID)
	}
}

func TestSelectRuleNoneActive(t *testing.T) {
	rule := windowRule("morning", 8*60, 9*60, 50, nil)
	if got := selectRule([]*Rule{rule}, at(12, 0)); got != nil {
		t.Errorf("winner = %v, want nil", got)
	}
}

func TestTickAppliesWinnerOnce(t *testing.T) {
	power := 60.0
	rule := windowRule("boost", 0, 1440, 50, map[string]float64{
		"number.luftator_extract_bath":  40,
		"number.luftator_supply_living": 70,
	})
	rule.Directive = &hru.Directive{Power: &power}

	source := &fakeSource{rules: []*Rule{rule}}
	valves := &fakeValves{}
	device := &fakeDevice{}
	s := newTestScheduler(source, valves, device)

	s.tick(context.Background(), at(12, 0))

	calls := valves.callsCopy()
	if len(calls) != 2 {
		t.Fatalf("valve calls = %d, want 2", len(calls))
	}
	// Targets are applied in sorted entity order.
	if calls[0].entityID != "number.luftator_extract_bath" || calls[0].value != 40 {
		t.Errorf("first call = %+v", calls[0])
	}
	if calls[1].entityID != "number.luftator_supply_living" || calls[1].value != 70 {
		t.Errorf("second call = %+v", calls[1])
	}
	if device.count() != 1 {
		t.Errorf("directive count = %d, want 1", device.count())
	}

	// Same winner, no change: second tick is a no-op.
	s.tick(context.Background(), at(12, 1))
	if valves.callCount() != 2 {
		t.Errorf("valve calls after repeat tick = %d, want 2", valves.callCount())
	}
}

func TestTickReappliesAfterRuleChange(t *testing.T) {
	dayRule := windowRule("day", 0, 1440, 10, map[string]float64{"number.luftator_a": 30})
	boost := windowRule("boost", 11*60, 13*60, 90, map[string]float64{"number.luftator_a": 80})

	source := &fakeSource{rules: []*Rule{dayRule, boost}}
	valves := &fakeValves{}
	s := newTestScheduler(source, valves, &fakeDevice{})

	s.tick(context.Background(), at(10, 0)) // day wins
	s.tick(context.Background(), at(11, 30)) // boost takes over
	s.tick(context.Background(), at(13, 30)) // back to day

	calls := valves.callsCopy()
	if len(calls) != 3 {
		t.Fatalf("valve calls = %d, want 3", len(calls))
	}
	wantValues := []float64{30, 80, 30}
	for i, want := range wantValues {
		if calls[i].value != want {
			t.Errorf("call %d value = %v, want %v", i, calls[i].value, want)
		}
	}
}

func TestTickEmptySetKeepsLastApplied(t *testing.T) {
	rule := windowRule("morning", 8*60, 9*60, 50, map[string]float64{"number.luftator_a": 50})

	source := &fakeSource{rules: []*Rule{rule}}
	valves := &fakeValves{}
	s := newTestScheduler(source, valves, &fakeDevice{})

	s.tick(context.Background(), at(8, 30))
	if s.lastAppliedRuleID != "morning" {
		t.Fatalf("lastAppliedRuleID = %q, want morning", s.lastAppliedRuleID)
	}

	// Outside every window: nothing is written, the marker stays.
	s.tick(context.Background(), at(10, 0))
	if valves.callCount() != 1 {
		t.Errorf("valve calls = %d, want 1", valves.callCount())
	}
	if s.lastAppliedRuleID != "morning" {
		t.Errorf("lastAppliedRuleID = %q, want morning preserved", s.lastAppliedRuleID)
	}

	// Re-entering the same window the next day does not reapply.
	s.tick(context.Background(), at(8, 45))
	if valves.callCount() != 1 {
		t.Errorf("valve calls after re-entry = %d, want 1", valves.callCount())
	}
}

func TestTickDisabledRuleNeverSelected(t *testing.T) {
	rule := windowRule("paused", 0, 1440, 90, map[string]float64{"number.luftator_a": 50})
	rule.Enabled = false

	source := &fakeSource{rules: []*Rule{rule}}
	valves := &fakeValves{}
	s := newTestScheduler(source, valves, &fakeDevice{})

	s.tick(context.Background(), at(12, 0))
	if valves.callCount() != 0 {
		t.Errorf("valve calls = %d, want 0 for disabled rule", valves.callCount())
	}
}

func TestTickFetchFailureSkips(t *testing.T) {
	source := &fakeSource{err: errors.New("db locked")}
	valves := &fakeValves{}
	s := newTestScheduler(source, valves, &fakeDevice{})

	s.tick(context.Background(), at(12, 0))
	if valves.callCount() != 0 {
		t.Errorf("valve calls = %d, want 0 after fetch failure", valves.callCount())
	}
	if s.lastAppliedRuleID != "" {
		t.Errorf("lastAppliedRuleID = %q, want empty", s.lastAppliedRuleID)
	}
}

func TestTickRetriesAfterApplyFailure(t *testing.T) {
	rule := windowRule("boost", 0, 1440, 50, map[string]float64{
		"number.luftator_bad":  40,
		"number.luftator_good": 70,
	})

	source := &fakeSource{rules: []*Rule{rule}}
	valves := &fakeValves{failFor: map[string]error{
		"number.luftator_bad": errors.New("upstream unreachable"),
	}}
	s := newTestScheduler(source, valves, &fakeDevice{})

	s.tick(context.Background(), at(12, 0))
	// Failure on one entity does not stop the other target.
	if valves.callCount() != 2 {
		t.Fatalf("valve calls = %d, want 2", valves.callCount())
	}
	if !s.lastApplyFailed {
		t.Fatal("lastApplyFailed should be set")
	}

	// Next tick retries the whole rule even though the winner is unchanged.
	s.tick(context.Background(), at(12, 1))
	if valves.callCount() != 4 {
		t.Errorf("valve calls = %d, want 4 after retry", valves.callCount())
	}

	// Once the failure clears, retries stop.
	valves.mu.Lock()
	valves.failFor = nil
	valves.mu.Unlock()
	s.tick(context.Background(), at(12, 2))
	if s.lastApplyFailed {
		t.Fatal("lastApplyFailed should clear after a clean apply")
	}
	s.tick(context.Background(), at(12, 3))
	if valves.callCount() != 6 {
		t.Errorf("valve calls = %d, want 6 (no further retries)", valves.callCount())
	}
}

func TestFreshSchedulerReappliesOnStart(t *testing.T) {
	rule := windowRule("day", 0, 1440, 50, map[string]float64{"number.luftator_a": 50})
	source := &fakeSource{rules: []*Rule{rule}}

	first := &fakeValves{}
	s1 := newTestScheduler(source, first, &fakeDevice{})
	s1.tick(context.Background(), at(12, 0))

	// A restarted process holds no memory of the last applied rule,
	// so the first tick always reapplies.
	second := &fakeValves{}
	s2 := newTestScheduler(source, second, &fakeDevice{})
	s2.tick(context.Background(), at(12, 1))
	if second.callCount() != 1 {
		t.Errorf("valve calls on fresh scheduler = %d, want 1", second.callCount())
	}
}

func TestSchedulerOnApplied(t *testing.T) {
	rule := windowRule("boost", 0, 1440, 50, map[string]float64{"number.luftator_a": 50})
	source := &fakeSource{rules: []*Rule{rule}}
	s := newTestScheduler(source, &fakeValves{}, &fakeDevice{})

	var (
		gotID      string
		gotSuccess bool
	)
	s.SetOnApplied(func(ruleID, ruleName string, success bool) {
		gotID = ruleID
		gotSuccess = success
	})

	s.tick(context.Background(), at(12, 0))
	if gotID != "boost" || !gotSuccess {
		t.Errorf("onApplied got (%q, %v), want (boost, true)", gotID, gotSuccess)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	rule := windowRule("day", 0, 1440, 50, map[string]float64{"number.luftator_a": 50})
	source := &fakeSource{rules: []*Rule{rule}}
	valves := &fakeValves{}

	s := NewScheduler(source, valves, &fakeDevice{}, 10*time.Millisecond, false)
	s.Start(context.Background())
	s.Start(context.Background()) // no-op on a running scheduler

	deadline := time.After(time.Second)
	for valves.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never applied the rule")
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.Stop()
	s.Stop() // idempotent

	source.mu.Lock()
	callsAtStop := source.calls
	source.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	source.mu.Lock()
	callsAfter := source.calls
	source.mu.Unlock()
	if callsAfter != callsAtStop {
		t.Errorf("source polled after Stop: %d -> %d", callsAtStop, callsAfter)
	}
}

func TestSchedulerAlignedFirstTickImmediate(t *testing.T) {
	rule := windowRule("day", 0, 1440, 50, map[string]float64{"number.luftator_a": 50})
	source := &fakeSource{rules: []*Rule{rule}}
	valves := &fakeValves{}

	// Alignment shifts the cadence onto minute boundaries but must not
	// delay the first evaluation after a restart.
	s := NewScheduler(source, valves, &fakeDevice{}, time.Minute, true)
	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(500 * time.Millisecond)
	for valves.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("aligned scheduler did not run its first tick immediately")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDayIndex(t *testing.T) {
	tests := []struct {
		weekday time.Weekday
		want    int
	}{
		{time.Monday, 0},
		{time.Tuesday, 1},
		{time.Wednesday, 2},
		{time.Thursday, 3},
		{time.Friday, 4},
		{time.Saturday, 5},
		{time.Sunday, 6},
	}
	for _, tt := range tests {
		if got := DayIndex(tt.weekday); got != tt.want {
			t.Errorf("DayIndex(%v) = %d, want %d", tt.weekday, got, tt.want)
		}
	}
}

func TestMinuteOfDay(t *testing.T) {
	if got := MinuteOfDay(at(13, 59)); got != 13*60+59 {
		t.Errorf("MinuteOfDay = %d, want %d", got, 13*60+59)
	}
}
