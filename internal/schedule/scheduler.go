package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/luftujha/luftujha-core/internal/hru"
)

const defaultTickInterval = 30 * time.Second

// Logger is the minimal logging interface the scheduler requires.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// RuleSource provides the enabled rule set for each evaluation tick.
type RuleSource interface {
	ListEnabled(ctx context.Context) ([]*Rule, error)
}

// ValveWriter issues position commands for valve entities.
type ValveWriter interface {
	SetValue(ctx context.Context, entityID string, value float64) error
}

// DeviceWriter applies ventilation unit directives.
type DeviceWriter interface {
	ApplyDirective(ctx context.Context, d hru.Directive) error
}

// Scheduler evaluates schedule rules on a fixed interval and applies
// the winning rule's effects when it changes.
//
// Rules are re-read from the source on every tick, so edits made
// through the API take effect at the next evaluation without a
// restart. A rule is reapplied only when the winner differs from the
// last applied rule, or when the previous application failed.
//
// Thread Safety: Start, Stop, and TriggerTick are safe for concurrent
// use. Ticks are serialized internally.
type Scheduler struct {
	source   RuleSource
	valves   ValveWriter
	device   DeviceWriter
	interval time.Duration
	align    bool
	logger   Logger

	// onApplied, when set, is invoked after each rule application
	// attempt with the outcome.
	onApplied func(ruleID, ruleName string, success bool)

	mu                sync.Mutex
	running           bool
	cancel            context.CancelFunc
	done              chan struct{}
	lastAppliedRuleID string
	lastApplyFailed   bool
}

// NewScheduler creates a scheduler over the given rule source and writers.
// A non-positive interval falls back to the default of 30 seconds.
func NewScheduler(source RuleSource, valves ValveWriter, device DeviceWriter, interval time.Duration, alignToMinute bool) *Scheduler {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	return &Scheduler{
		source:   source,
		valves:   valves,
		device:   device,
		interval: interval,
		align:    alignToMinute,
		logger:   noopLogger{},
	}
}

// SetLogger replaces the scheduler's logger. Call before Start.
func (s *Scheduler) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetOnApplied registers a callback invoked after every rule
// application attempt. Call before Start.
func (s *Scheduler) SetOnApplied(fn func(ruleID, ruleName string, success bool)) {
	s.onApplied = fn
}

// Start begins the evaluation loop. The first tick always runs
// immediately; minute alignment only shifts the steady-state cadence
// onto wall-clock minute boundaries. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(loopCtx)
}

// Stop halts the evaluation loop and waits for an in-flight tick to
// finish. Safe to call on a stopped scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// TriggerTick runs one evaluation immediately, outside the interval
// cadence. Intended for tests and for applying rule edits promptly.
func (s *Scheduler) TriggerTick(ctx context.Context) {
	s.tick(ctx, time.Now())
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	// The first evaluation fires immediately so a restart reapplies
	// the active rule without waiting out the cadence.
	s.tick(ctx, time.Now())

	if s.align {
		if !s.sleepUntilNextMinute(ctx) {
			return
		}
		s.tick(ctx, time.Now())
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

// sleepUntilNextMinute blocks until the next wall-clock minute
// boundary. Returns false if the context was cancelled while waiting.
func (s *Scheduler) sleepUntilNextMinute(ctx context.Context) bool {
	now := time.Now()
	wait := now.Truncate(time.Minute).Add(time.Minute).Sub(now)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(wait):
		return true
	}
}

// tick runs a single evaluation. Ticks are serialized by the mutex so
// a slow device write never overlaps the next evaluation.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := s.source.ListEnabled(ctx)
	if err != nil {
		s.logger.Error("rule fetch failed, skipping tick", "error", err)
		return
	}

	winner := selectRule(rules, now)
	if winner == nil {
		// No rule matches this instant. The last applied rule is
		// remembered so re-entering its window does not reapply it.
		s.logger.Debug("no active rule", "time", now.Format("15:04"))
		return
	}

	if winner.ID == s.lastAppliedRuleID && !s.lastApplyFailed {
		return
	}

	s.logger.Info("applying rule",
		"rule_id", winner.ID,
		"name", winner.Name,
		"priority", winner.Priority)

	success := s.applyRule(ctx, winner)
	s.lastAppliedRuleID = winner.ID
	s.lastApplyFailed = !success

	if s.onApplied != nil {
		s.onApplied(winner.ID, winner.Name, success)
	}
}

// selectRule returns the highest-precedence rule active at the given
// time, or nil when none match. Priority descending wins; ties break
// on the later start minute.
func selectRule(rules []*Rule, now time.Time) *Rule {
	day := DayIndex(now.Weekday())
	minute := MinuteOfDay(now)

	var active []*Rule
	for _, r := range rules {
		if r.Enabled && r.ActiveAt(day, minute) {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return nil
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		return active[i].Start > active[j].Start
	})
	return active[0]
}

// applyRule pushes a rule's valve targets and device directive.
// Valve failures are isolated per entity; any failure marks the
// application failed so the next tick retries the whole rule.
func (s *Scheduler) applyRule(ctx context.Context, rule *Rule) bool {
	success := true

	for _, entityID := range sortedTargetKeys(rule.ValveTargets) {
		value := rule.ValveTargets[entityID]
		if err := s.valves.SetValue(ctx, entityID, value); err != nil {
			s.logger.Error("valve target failed",
				"rule_id", rule.ID,
				"entity_id", entityID,
				"value", value,
				"error", err)
			success = false
		}
	}

	if rule.Directive != nil && !rule.Directive.IsZero() {
		if err := s.device.ApplyDirective(ctx, *rule.Directive); err != nil {
			s.logger.Error("device directive failed",
				"rule_id", rule.ID,
				"error", err)
			success = false
		}
	}

	return success
}

func sortedTargetKeys(targets map[string]float64) []string {
	keys := make([]string, 0, len(targets))
	for k := range targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
