// Package engine turns the selected minute marks and notification
// preferences into the set of triggers installed on the notification service.
//
// Every rebuild replaces this app's triggers wholesale: it cancels each
// pending request carrying the owned prefix, then installs the new plan.
// Rebuilds are serialized, and a rebuild still waiting for its turn when a
// newer one arrives is dropped, so the installed set always converges to the
// latest request.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/ykvlv/time-signal/internal/domain"
	"github.com/ykvlv/time-signal/internal/notify"
)

const (
	DefaultPrefix     = "timesignal."
	DefaultSlotBudget = 64

	// PreviewIdentifier sits outside the owned prefix, so rebuilds leave a
	// pending preview alone.
	PreviewIdentifier = "timesignal-preview"
	Category          = "timesignal.category"

	previewDelay = time.Second
	bannerTitle  = "Time Signal"
	blankText    = " "
)

// Options configures an Engine.
type Options struct {
	Mode       Mode
	SlotBudget int
	Prefix     string
}

// Request is a read-only snapshot of the selection taken when the rebuild fires.
type Request struct {
	Enabled bool
	Minutes domain.MinuteSet
	Prefs   domain.Preferences
	Now     time.Time
}

// Engine is the notification scheduling engine.
type Engine struct {
	svc      notify.Service
	sounds   domain.Catalog
	resolver Resolver
	log      *zap.Logger
	opts     Options

	mu  sync.Mutex // held for the whole of a rebuild or clear
	gen atomic.Uint64
}

// New creates an Engine. Zero options fall back to minute-only mode, a budget
// of 64 and the "timesignal." prefix.
func New(svc notify.Service, sounds domain.Catalog, resolver Resolver, log *zap.Logger, opts Options) *Engine {
	if opts.SlotBudget <= 0 {
		opts.SlotBudget = DefaultSlotBudget
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	return &Engine{
		svc:      svc,
		sounds:   sounds,
		resolver: resolver,
		log:      log.Named("engine"),
		opts:     opts,
	}
}

// Mode returns the configured scheduling mode.
func (e *Engine) Mode() Mode { return e.opts.Mode }

// Plan returns the triggers a rebuild at now would install and those the
// slot budget would drop.
func (e *Engine) Plan(minutes domain.MinuteSet, now time.Time) (kept, dropped []ScheduledTrigger) {
	return ApplyBudget(Candidates(e.opts.Mode, e.opts.Prefix, minutes, now), e.opts.SlotBudget)
}

// Rebuild replaces this app's installed triggers with the plan for req.
//
// A disabled feature or an empty selection clears every owned trigger.
// Without authorization the rebuild aborts with ErrNotAuthorized and the
// previous schedule stays as it was. Individual install failures do not stop
// the batch; they are counted and collected in Summary.InstallErr.
func (e *Engine) Rebuild(ctx context.Context, req Request) (Summary, error) {
	return e.RebuildFrom(ctx, func() Request { return req })
}

// RebuildFrom is Rebuild with the request read from snapshot once this
// rebuild holds the engine. A clear that finished before it therefore cannot
// be undone by state read earlier.
func (e *Engine) RebuildFrom(ctx context.Context, snapshot func() Request) (Summary, error) {
	gen := e.gen.Add(1)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen.Load() != gen {
		e.log.Debug("rebuild superseded", zap.Uint64("gen", gen))
		return Summary{State: StateAborted}, ErrSuperseded
	}
	return e.rebuild(ctx, snapshot())
}

// ClearOwned cancels every trigger carrying the owned prefix. It supersedes
// rebuilds that are still waiting.
func (e *Engine) ClearOwned(ctx context.Context) (int, error) {
	e.gen.Add(1)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clearOwned(ctx)
}

func (e *Engine) rebuild(ctx context.Context, req Request) (Summary, error) {
	sum := Summary{State: StateIdle}
	log := e.log.With(zap.Stringer("mode", e.opts.Mode), zap.Int("minutes", req.Minutes.Len()))

	if !req.Enabled || req.Minutes.IsEmpty() {
		sum.State = StateClearingOwned
		n, err := e.clearOwned(ctx)
		sum.Removed = n
		if err != nil {
			sum.State = StateAborted
			return sum, fmt.Errorf("clear owned: %w", err)
		}
		sum.State = StateDone
		log.Info("schedule cleared", zap.Bool("enabled", req.Enabled), zap.Int("removed", n))
		return sum, nil
	}

	sum.State = StateCheckingAuthorization
	log.Debug("rebuild", zap.Stringer("state", sum.State))
	settings, err := e.svc.QueryAuthorization(ctx)
	if err != nil {
		sum.State = StateAborted
		return sum, fmt.Errorf("query authorization: %w", err)
	}
	if !settings.Status.Allowed() {
		sum.State = StateAborted
		log.Warn("rebuild aborted", zap.Stringer("authorization", settings.Status))
		return sum, fmt.Errorf("%w: status %s", ErrNotAuthorized, settings.Status)
	}
	if !settings.SoundEnabled {
		sum.Warnings = append(sum.Warnings, Warning{Kind: WarnSoundDisabled})
	}

	kept, dropped := e.Plan(req.Minutes, req.Now)
	sum.Dropped = len(dropped)

	sum.State = StateClearingOwned
	log.Debug("rebuild", zap.Stringer("state", sum.State))
	removed, err := e.clearOwned(ctx)
	sum.Removed = removed
	if err != nil {
		sum.State = StateAborted
		return sum, fmt.Errorf("clear owned: %w", err)
	}

	sum.State = StateInstalling
	log.Debug("rebuild", zap.Stringer("state", sum.State), zap.Int("triggers", len(kept)))
	sound, warn := e.resolveSound(req.Prefs)
	if warn != nil {
		sum.Warnings = append(sum.Warnings, *warn)
	}

	var installErr *multierror.Error
	sum.Installed = make([]string, 0, len(kept))
	for _, t := range kept {
		r := notify.Request{
			Identifier: t.Identifier,
			Content:    e.content(t, req.Prefs, sound),
			Trigger:    t.Trigger(),
		}
		if err := e.svc.Schedule(ctx, r); err != nil {
			if ctx.Err() != nil {
				sum.State = StateAborted
				return sum, ctx.Err()
			}
			sum.Failed++
			installErr = multierror.Append(installErr, &PlatformError{Identifier: t.Identifier, Err: err})
			log.Warn("schedule failed", zap.String("id", t.Identifier), zap.Error(err))
			continue
		}
		sum.Installed = append(sum.Installed, t.Identifier)
	}
	sum.InstallErr = installErr.ErrorOrNil()
	sum.State = StateDone

	for _, w := range sum.Warnings {
		log.Warn("rebuild advisory", zap.String("warning", w.String()))
	}
	log.Info("schedule rebuilt",
		zap.Int("installed", len(sum.Installed)),
		zap.Int("removed", sum.Removed),
		zap.Int("dropped", sum.Dropped),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}

// clearOwned cancels pending requests with the owned prefix. The caller holds e.mu.
func (e *Engine) clearOwned(ctx context.Context) (int, error) {
	ids, err := e.svc.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}
	owned := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.HasPrefix(id, e.opts.Prefix) {
			owned = append(owned, id)
		}
	}
	if len(owned) == 0 {
		return 0, nil
	}
	if err := e.svc.Cancel(ctx, owned); err != nil {
		return 0, fmt.Errorf("cancel: %w", err)
	}
	return len(owned), nil
}

// content builds what one trigger shows and plays.
func (e *Engine) content(t ScheduledTrigger, prefs domain.Preferences, sound notify.Sound) notify.Content {
	c := notify.Content{
		Title:        blankText,
		Body:         blankText,
		Sound:        sound,
		Category:     Category,
		Interruption: notify.InterruptionTimeSensitive,
	}
	if prefs.BannerEnabled {
		c.Title = bannerTitle
		if t.Hour == nil && t.Minute == 0 {
			c.Title = "00:00 " + bannerTitle
		}
		c.Body = t.TimeString()
	}
	if !prefs.SoundEnabled {
		c.Sound = notify.Sound{Kind: notify.SoundNone}
	}
	return c
}

// resolveSound maps the selected sound to a platform sound. A declared but
// absent resource falls back to the default sound with a warning.
func (e *Engine) resolveSound(prefs domain.Preferences) (notify.Sound, *Warning) {
	opt, ok := e.sounds.Lookup(prefs.SelectedSoundID)
	if !ok {
		e.log.Debug("unknown sound, using default", zap.String("sound", string(prefs.SelectedSoundID)))
		return notify.DefaultSound(), nil
	}
	if opt.UsesDefault() {
		return notify.DefaultSound(), nil
	}
	if e.resolver != nil {
		if path, found := e.resolver.Resolve(opt.ResourceFile); found {
			return notify.NamedSound(path), nil
		}
	}
	return notify.DefaultSound(), &Warning{Kind: WarnMissingResource, Sound: opt.DisplayName, File: opt.ResourceFile}
}

// PreviewSound schedules a one-shot notification that plays the selected
// sound about a second from now, regardless of the sound toggle.
func (e *Engine) PreviewSound(ctx context.Context, prefs domain.Preferences) ([]Warning, error) {
	settings, err := e.svc.QueryAuthorization(ctx)
	if err != nil {
		return nil, fmt.Errorf("query authorization: %w", err)
	}
	if !settings.Status.Allowed() {
		return nil, fmt.Errorf("%w: status %s", ErrNotAuthorized, settings.Status)
	}

	var warnings []Warning
	if !settings.SoundEnabled {
		warnings = append(warnings, Warning{Kind: WarnSoundDisabled})
	}
	sound, warn := e.resolveSound(prefs)
	if warn != nil {
		warnings = append(warnings, *warn)
	}

	name := string(prefs.SelectedSoundID)
	if opt, ok := e.sounds.Lookup(prefs.SelectedSoundID); ok {
		name = opt.DisplayName
	}
	req := notify.Request{
		Identifier: PreviewIdentifier,
		Content: notify.Content{
			Title:        "Sound preview",
			Body:         "Playing " + name,
			Sound:        sound,
			Category:     Category,
			Interruption: notify.InterruptionTimeSensitive,
		},
		Trigger: notify.In(previewDelay),
	}
	if err := e.svc.Schedule(ctx, req); err != nil {
		return warnings, &PlatformError{Identifier: PreviewIdentifier, Err: err}
	}
	return warnings, nil
}
