package app

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/time-signal/internal/domain"
	"github.com/ykvlv/time-signal/internal/engine"
	"github.com/ykvlv/time-signal/internal/telegram"
)

// rebuild is the debounced reschedule. The selection is read by the engine
// once the rebuild holds it, then the outcome goes to the owner chat.
func (a *App) rebuild(ctx context.Context) {
	sum, err := a.engine.RebuildFrom(ctx, func() engine.Request {
		snap := a.sel.Snapshot()
		return engine.Request{
			Enabled: snap.Enabled,
			Minutes: snap.Minutes,
			Prefs:   snap.Prefs,
			Now:     a.now(),
		}
	})
	if err != nil && !errors.Is(err, engine.ErrSuperseded) {
		a.log.Warn("rebuild failed", zap.Stringer("state", sum.State), zap.Error(err))
	}
	if sum.InstallErr != nil {
		a.log.Warn("some signals were not scheduled", zap.Error(sum.InstallErr))
	}
	if a.router != nil {
		a.router.Report(telegram.SummaryText(a.advisories(sum, err), err))
	}
}

// advisories drops the sound-disabled warning once it has been reported. It
// is reported again after a rebuild that installed without it.
func (a *App) advisories(sum engine.Summary, err error) engine.Summary {
	if err != nil || (len(sum.Installed) == 0 && sum.Failed == 0) {
		return sum
	}
	a.reportMu.Lock()
	defer a.reportMu.Unlock()

	disabled := sum.HasWarning(engine.WarnSoundDisabled)
	if disabled && a.soundWarned {
		sum.Warnings = slices.DeleteFunc(slices.Clone(sum.Warnings), func(w engine.Warning) bool {
			return w.Kind == engine.WarnSoundDisabled
		})
	}
	a.soundWarned = disabled
	return sum
}

// shutdownReschedule applies an edit still waiting in the debounce window,
// then stops the trigger.
func (a *App) shutdownReschedule() {
	if a.trigger.Pending() {
		a.log.Info("applying pending reschedule before exit")
		a.trigger.Flush()
	}
	a.trigger.Stop()
}

// checkFlash fires the flash cue once per selected minute. The clock ticks
// every second but may drift past :00, so it is evaluated once at the start
// of each new minute. The minute the app starts in never flashes.
func (a *App) checkFlash(now time.Time) {
	minute := now.Truncate(time.Minute)
	if minute.Equal(a.lastFlash) {
		return
	}
	first := a.lastFlash.IsZero()
	a.lastFlash = minute
	if first {
		return
	}

	snap := a.sel.Snapshot()
	if !domain.ShouldFlash(minute, snap.Enabled, snap.Minutes, snap.Prefs) {
		return
	}
	if err := a.presenter.Flash(minute); err != nil {
		a.log.Warn("flash failed", zap.Error(err))
	}
}
