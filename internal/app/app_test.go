package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ykvlv/time-signal/internal/center"
	"github.com/ykvlv/time-signal/internal/debounce"
	"github.com/ykvlv/time-signal/internal/domain"
	"github.com/ykvlv/time-signal/internal/engine"
	"github.com/ykvlv/time-signal/internal/notify/notifytest"
	"github.com/ykvlv/time-signal/internal/selection"
	"github.com/ykvlv/time-signal/internal/store"
)

type flashRecorder struct {
	mu      sync.Mutex
	flashes []time.Time
}

func (r *flashRecorder) Present(center.Delivery) error { return nil }

func (r *flashRecorder) Flash(at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flashes = append(r.flashes, at)
	return nil
}

func newTestApp(t *testing.T) (*App, *notifytest.Service, *flashRecorder) {
	t.Helper()
	ctx := context.Background()
	sel, err := selection.Open(ctx, store.NewMemKV(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, sel.ApplyBulk(ctx, domain.MustMinuteSet(0, 30)))
	require.NoError(t, sel.SetEnabled(ctx, true))

	svc := notifytest.New()
	rec := &flashRecorder{}
	a := &App{
		log:       zap.NewNop(),
		loc:       time.UTC,
		sel:       sel,
		presenter: rec,
		engine:    engine.New(svc, nil, nil, zap.NewNop(), engine.Options{Mode: engine.ModeHourly}),
	}
	return a, svc, rec
}

func TestRebuild_InstallsSelection(t *testing.T) {
	a, svc, _ := newTestApp(t)
	a.rebuild(context.Background())
	assert.Equal(t, []string{"timesignal.everyHour.0", "timesignal.everyHour.30"}, svc.Pending())
}

func TestRebuild_AfterSwitchOffInstallsNothing(t *testing.T) {
	a, svc, _ := newTestApp(t)
	ctx := context.Background()
	a.rebuild(ctx)
	require.Len(t, svc.Pending(), 2)

	// The off path runs in full before the queued reschedule reaches the engine.
	require.NoError(t, a.sel.SetEnabled(ctx, false))
	_, err := a.engine.ClearOwned(ctx)
	require.NoError(t, err)
	a.rebuild(ctx)
	assert.Empty(t, svc.Pending())
}

func TestShutdownReschedule_FlushesPendingEdit(t *testing.T) {
	a, svc, _ := newTestApp(t)
	ctx := context.Background()
	a.trigger = debounce.New(time.Hour, func() { a.rebuild(ctx) })
	a.sel.SetRescheduler(a.trigger)

	require.NoError(t, a.sel.ToggleMinute(ctx, 15))
	require.True(t, a.trigger.Pending())

	a.shutdownReschedule()
	assert.False(t, a.trigger.Pending())
	assert.Equal(t, []string{"timesignal.everyHour.0", "timesignal.everyHour.15", "timesignal.everyHour.30"}, svc.Pending())

	// Stopped: later edits no longer arm the window.
	require.NoError(t, a.sel.ToggleMinute(ctx, 45))
	assert.False(t, a.trigger.Pending())
}

func TestAdvisories_SoundDisabledReportedOnce(t *testing.T) {
	a, _, _ := newTestApp(t)
	silent := engine.Summary{
		State:     engine.StateDone,
		Installed: []string{"timesignal.everyHour.0"},
		Warnings:  []engine.Warning{{Kind: engine.WarnSoundDisabled}, {Kind: engine.WarnMissingResource, Sound: "Bell"}},
	}

	first := a.advisories(silent, nil)
	assert.True(t, first.HasWarning(engine.WarnSoundDisabled))

	second := a.advisories(silent, nil)
	assert.False(t, second.HasWarning(engine.WarnSoundDisabled))
	assert.True(t, second.HasWarning(engine.WarnMissingResource))
	assert.Len(t, silent.Warnings, 2)

	// A clear or a failed rebuild says nothing about sound.
	a.advisories(engine.Summary{State: engine.StateDone}, nil)
	a.advisories(engine.Summary{State: engine.StateAborted}, engine.ErrNotAuthorized)
	assert.False(t, a.advisories(silent, nil).HasWarning(engine.WarnSoundDisabled))

	// Sound came back, then went away again.
	a.advisories(engine.Summary{State: engine.StateDone, Installed: []string{"timesignal.everyHour.0"}}, nil)
	assert.True(t, a.advisories(silent, nil).HasWarning(engine.WarnSoundDisabled))
}

func TestCheckFlash(t *testing.T) {
	a, _, rec := newTestApp(t)
	ctx := context.Background()
	p := a.sel.Preferences()
	p.FlashEnabled = true
	require.NoError(t, a.sel.SetPreferences(ctx, p))

	at := func(m, s int) time.Time { return time.Date(2026, 3, 2, 10, m, s, 0, time.UTC) }

	a.checkFlash(at(29, 40)) // startup minute
	a.checkFlash(at(30, 1))  // drifted past :00
	a.checkFlash(at(30, 2))
	a.checkFlash(at(31, 0))
	require.Len(t, rec.flashes, 1)
	assert.WithinDuration(t, at(30, 0), rec.flashes[0], 0)

	require.NoError(t, a.sel.SetEnabled(ctx, false))
	a.checkFlash(at(0, 0).Add(time.Hour))
	assert.Len(t, rec.flashes, 1)
}
