package frequency

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/canvasync/canvasync/internal/model"
)

// Conditions is a snapshot of the device state relevant to sync
// scheduling. The caller probes the hardware; the Manager never does.
type Conditions struct {
	BatteryLow     bool
	Charging       bool
	OnWifi         bool
	NetworkMetered bool
}

// Recorder persists sync records. Satisfied by *history.Store.
type Recorder interface {
	Append(ctx context.Context, rec model.SyncRecord) error
	Prune(ctx context.Context, keep int) error
}

// defaultTailSize bounds the in-memory record tail the policy decides
// over. The durable log in the history store is pruned separately.
const defaultTailSize = 50

// overdueFactor marks an inter-sync gap as overdue when it exceeds this
// multiple of the configured interval.
const overdueFactor = 1.5

// Manager is the adaptive frequency control loop. It owns the sync
// history: every orchestrator pass reports its outcome here, and nothing
// else writes the record log.
//
// Thread-safety: all methods are safe for concurrent use. The external
// trigger polls ShouldSyncNow from its own goroutine while the
// orchestrator reports outcomes.
type Manager struct {
	mu sync.Mutex

	interval         model.SyncInterval
	adaptiveEnabled  bool
	batteryOptimized bool
	wifiOnly         bool

	lastSyncTime *time.Time
	tail         []model.SyncRecord
	tailSize     int

	policy   Policy
	recorder Recorder
	retain   int
	logger   *slog.Logger
	now      func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPolicy injects the recommendation policy. Defaults to
// DefaultPolicy().
func WithPolicy(p Policy) ManagerOption {
	return func(m *Manager) {
		m.policy = p
	}
}

// WithRecorder attaches a durable record log. Without one the history is
// in-memory only.
func WithRecorder(r Recorder, retain int) ManagerOption {
	return func(m *Manager) {
		m.recorder = r
		m.retain = retain
	}
}

// WithTailSize bounds the in-memory record tail.
func WithTailSize(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.tailSize = n
		}
	}
}

// WithManagerLogger sets the logger. Defaults to slog.Default().
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithManagerNow overrides the wall-clock source for tests.
func WithManagerNow(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager from the settings snapshot taken at engine
// construction. Settings changes re-create the engine, so the flags here
// are fixed for the Manager's lifetime.
func NewManager(settings model.SyncSettings, adaptive bool, opts ...ManagerOption) *Manager {
	m := &Manager{
		interval:         settings.AutoSyncInterval,
		adaptiveEnabled:  adaptive,
		batteryOptimized: settings.BatteryOptimizedSync,
		wifiOnly:         settings.WifiOnlySync,
		tailSize:         defaultTailSize,
		policy:           DefaultPolicy(),
		logger:           slog.Default(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CurrentInterval returns the configured (non-adapted) interval.
func (m *Manager) CurrentInterval() model.SyncInterval {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// SetInterval replaces the configured interval, e.g. after the user
// accepts a recommendation.
func (m *Manager) SetInterval(i model.SyncInterval) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = i
}

// AdaptedInterval returns the interval the trigger should actually use
// under the given conditions.
//
// With adaptive mode off the configured interval is returned unchanged.
// Otherwise adverse conditions widen it one step each: low battery (when
// battery-optimized sync is on), and non-wifi or metered connectivity
// (when wifi-only sync is on). Favorable conditions simply apply no
// widening; the adapted interval never drops below the configured one.
// The result is always a member of the enumerated set.
func (m *Manager) AdaptedInterval(cond Conditions) model.SyncInterval {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adaptedIntervalLocked(cond)
}

func (m *Manager) adaptedIntervalLocked(cond Conditions) model.SyncInterval {
	if !m.adaptiveEnabled {
		return m.interval
	}

	adapted := m.interval
	if m.batteryOptimized && cond.BatteryLow && !cond.Charging {
		adapted = adapted.Widen()
	}
	if m.wifiOnly && (!cond.OnWifi || cond.NetworkMetered) {
		adapted = adapted.Widen()
	}
	return adapted
}

// ShouldSyncNow reports whether a sync is due: true when no sync has ever
// run, or when the adapted interval has elapsed since the last one.
func (m *Manager) ShouldSyncNow(cond Conditions) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastSyncTime == nil {
		return true
	}
	adapted := m.adaptedIntervalLocked(cond)
	return !m.now().Before(m.lastSyncTime.Add(adapted.Duration()))
}

// LastSyncTime returns the timestamp of the most recent recorded pass.
func (m *Manager) LastSyncTime() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastSyncTime == nil {
		return nil
	}
	t := *m.lastSyncTime
	return &t
}

// Preload seeds the record tail from a persisted history, oldest first.
// Used at startup so recommendations survive process restarts. The tail
// is replaced, not appended to.
func (m *Manager) Preload(records []model.SyncRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(records) > m.tailSize {
		records = records[len(records)-m.tailSize:]
	}
	m.tail = append([]model.SyncRecord(nil), records...)
	if len(m.tail) > 0 {
		t := m.tail[len(m.tail)-1].Timestamp
		m.lastSyncTime = &t
	}
}

// RecordSync appends a pass outcome to the history. The durable log, when
// attached, is pruned to the retention cap on every append; a logging
// failure never fails the pass that reported it.
func (m *Manager) RecordSync(ctx context.Context, rec model.SyncRecord) {
	m.mu.Lock()
	m.tail = append(m.tail, rec)
	if len(m.tail) > m.tailSize {
		m.tail = m.tail[len(m.tail)-m.tailSize:]
	}
	t := rec.Timestamp
	m.lastSyncTime = &t
	recorder := m.recorder
	retain := m.retain
	m.mu.Unlock()

	if recorder == nil {
		return
	}
	if err := recorder.Append(ctx, rec); err != nil {
		m.logger.Warn("sync record append failed", "error", err)
		return
	}
	if err := recorder.Prune(ctx, retain); err != nil {
		m.logger.Warn("sync record prune failed", "error", err)
	}
}

// Recommend asks the policy whether a different interval would serve
// better, given the recent record tail. The returned interval is a member
// of the enumerated set and equals the current interval when no change is
// warranted.
func (m *Manager) Recommend() model.SyncInterval {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.recentStatsLocked()
	recommended := m.policy.Recommend(m.interval, stats)
	if recommended != m.interval {
		m.logger.Info("interval change recommended",
			"current", m.interval.String(),
			"recommended", recommended.String(),
			"success_rate", stats.SuccessRate,
			"overdue_ratio", stats.OverdueRatio)
	}
	return recommended
}

// recentStatsLocked derives the policy inputs from the record tail.
func (m *Manager) recentStatsLocked() RecentStats {
	stats := RecentStats{Records: len(m.tail)}
	if stats.Records == 0 {
		return stats
	}

	successes := 0
	overdue := 0
	gaps := 0
	threshold := time.Duration(float64(m.interval.Duration()) * overdueFactor)
	for i, rec := range m.tail {
		if rec.Success {
			successes++
		}
		if i == 0 {
			continue
		}
		gaps++
		if rec.Timestamp.Sub(m.tail[i-1].Timestamp) > threshold {
			overdue++
		}
	}

	stats.SuccessRate = float64(successes) / float64(stats.Records)
	if gaps > 0 {
		stats.OverdueRatio = float64(overdue) / float64(gaps)
	}
	return stats
}
