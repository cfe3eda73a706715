package cli

import (
	"context"
	"fmt"

	"github.com/canvasync/canvasync/internal/calendar"
	"github.com/canvasync/canvasync/internal/config"
	"github.com/canvasync/canvasync/internal/engine"
	"github.com/canvasync/canvasync/internal/frequency"
	"github.com/canvasync/canvasync/internal/gateway"
	"github.com/canvasync/canvasync/internal/history"
	"github.com/canvasync/canvasync/internal/model"
	"github.com/canvasync/canvasync/internal/reminder"
)

// staticSettings serves the config-derived settings snapshot.
type staticSettings struct {
	settings model.SyncSettings
}

// Snapshot implements gateway.SettingsStore.
func (s staticSettings) Snapshot(ctx context.Context) (model.SyncSettings, error) {
	return s.settings, nil
}

// harness is a fully wired engine instance over the fixture source and the
// in-memory device gateways, with real durable history.
type harness struct {
	orch     *engine.Orchestrator
	store    *history.Store
	manager  *frequency.Manager
	calendar *gateway.MemoryCalendar
	notifier *gateway.MemoryNotifier
}

// buildHarness wires an engine from the config and fixture file. The
// caller owns store closure via harness.Close.
func buildHarness(ctx context.Context, cfg config.Config, fixturePath string) (*harness, error) {
	source, courseNames, err := loadFixture(fixturePath)
	if err != nil {
		return nil, err
	}

	store, err := history.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	settings := cfg.Settings()
	manager := frequency.NewManager(settings, cfg.Sync.Adaptive,
		frequency.WithPolicy(cfg.ThresholdPolicy()),
		frequency.WithRecorder(store, cfg.Retention),
	)

	// Seed the recommendation tail from the durable log so advice
	// survives restarts. Recent returns newest first; the tail is
	// chronological.
	records, err := store.Recent(ctx, 0)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load sync history: %w", err)
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	manager.Preload(records)

	cal := gateway.NewMemoryCalendar()
	notifier := gateway.NewMemoryNotifier()

	orch := engine.New(
		source,
		staticSettings{settings: settings},
		calendar.NewReconciler(cal),
		calendar.NewResolver(cal, nil),
		reminder.NewCoordinator(notifier),
		manager,
		engine.WithCalendarID(cfg.CalendarID),
		engine.WithDeleteOrphans(cfg.Sync.DeleteOrphans),
		engine.WithCourseNames(courseNames),
		engine.WithStatsProvider(store),
	)

	return &harness{
		orch:     orch,
		store:    store,
		manager:  manager,
		calendar: cal,
		notifier: notifier,
	}, nil
}

// Close releases the history store.
func (h *harness) Close() error {
	return h.store.Close()
}
