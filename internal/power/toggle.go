// Package power implements the on/off switch. It is the only place that
// asks the notification service for authorization.
package power

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ykvlv/time-signal/internal/engine"
	"github.com/ykvlv/time-signal/internal/notify"
)

// State of the switch.
type State int

const (
	StateOff State = iota
	StateRequestingAuthorization
	StateOn
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateRequestingAuthorization:
		return "requesting_authorization"
	case StateOn:
		return "on"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EnabledStore persists the on/off flag. selection.Store implements it.
type EnabledStore interface {
	Enabled() bool
	SetEnabled(ctx context.Context, on bool) error
}

// Clearer removes every owned trigger. engine.Engine implements it.
type Clearer interface {
	ClearOwned(ctx context.Context) (int, error)
}

// Rescheduler receives the rebuild request issued after switching on.
type Rescheduler interface {
	RequestReschedule()
}

// Toggle is the power state machine:
// Off → RequestingAuthorization → On, Off → On when already authorized, On → Off.
type Toggle struct {
	svc     notify.Service
	flag    EnabledStore
	clr     Clearer
	resched Rescheduler
	log     *zap.Logger

	mu    sync.Mutex
	state State
	busy  bool   // a TurnOn is in flight
	epoch uint64 // bumped by TurnOff; a TurnOn that sees it move gives up
}

// New starts in the persisted state.
func New(svc notify.Service, flag EnabledStore, clr Clearer, resched Rescheduler, log *zap.Logger) *Toggle {
	t := &Toggle{svc: svc, flag: flag, clr: clr, resched: resched, log: log.Named("power")}
	if flag.Enabled() {
		t.state = StateOn
	}
	return t
}

func (t *Toggle) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Flip turns the switch off when it is on and on otherwise.
func (t *Toggle) Flip(ctx context.Context) (State, error) {
	if t.State() == StateOn {
		return StateOff, t.TurnOff(ctx)
	}
	return t.TurnOn(ctx)
}

// TurnOn switches on and requests a rebuild. If authorization was never
// asked for, it is requested first; a denial leaves the switch off and
// returns engine.ErrNotAuthorized.
func (t *Toggle) TurnOn(ctx context.Context) (State, error) {
	t.mu.Lock()
	if t.state == StateOn || t.busy {
		st := t.state
		t.mu.Unlock()
		return st, nil
	}
	t.busy = true
	epoch := t.epoch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.busy = false
		t.mu.Unlock()
	}()

	settings, err := t.svc.QueryAuthorization(ctx)
	if err != nil {
		return t.fail(epoch, fmt.Errorf("query authorization: %w", err))
	}

	switch {
	case settings.Status.Allowed():
	case settings.Status == notify.StatusNotDetermined:
		t.mu.Lock()
		if t.epoch == epoch {
			t.state = StateRequestingAuthorization
		}
		t.mu.Unlock()

		granted, err := t.svc.RequestAuthorization(ctx, notify.AuthOptions{Alert: true, Sound: true, Badge: true})
		if err != nil {
			return t.fail(epoch, fmt.Errorf("request authorization: %w", err))
		}
		if !granted {
			t.log.Info("authorization denied by user")
			return t.fail(epoch, engine.ErrNotAuthorized)
		}
	default:
		return t.fail(epoch, fmt.Errorf("%w: status %s", engine.ErrNotAuthorized, settings.Status))
	}

	t.mu.Lock()
	if t.epoch != epoch {
		// Switched off while we were waiting on the platform.
		st := t.state
		t.mu.Unlock()
		return st, nil
	}
	t.state = StateOn
	t.mu.Unlock()

	if err := t.flag.SetEnabled(ctx, true); err != nil {
		t.log.Error("persist on flag failed", zap.Error(err))
	}
	t.log.Info("switched on")
	t.resched.RequestReschedule()
	return StateOn, nil
}

func (t *Toggle) fail(epoch uint64, err error) (State, error) {
	t.mu.Lock()
	if t.epoch == epoch {
		t.state = StateOff
	}
	st := t.state
	t.mu.Unlock()
	return st, err
}

// TurnOff switches off and clears every owned trigger, whatever the
// previous state.
func (t *Toggle) TurnOff(ctx context.Context) error {
	t.mu.Lock()
	t.state = StateOff
	t.epoch++
	t.mu.Unlock()

	if err := t.flag.SetEnabled(ctx, false); err != nil {
		t.log.Error("persist off flag failed", zap.Error(err))
	}
	n, err := t.clr.ClearOwned(ctx)
	if err != nil {
		return fmt.Errorf("clear owned: %w", err)
	}
	t.log.Info("switched off", zap.Int("removed", n))
	return nil
}
