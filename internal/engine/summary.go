package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthorized aborts a rebuild; the previous schedule is left untouched.
	ErrNotAuthorized = errors.New("notifications not authorized")
	// ErrSuperseded is returned by a rebuild that a newer request replaced
	// before it touched the platform.
	ErrSuperseded = errors.New("rebuild superseded")
)

// State is the position of a rebuild in its state machine:
// Idle → CheckingAuthorization → (Aborted | ClearingOwned → Installing → Done).
type State int

const (
	StateIdle State = iota
	StateCheckingAuthorization
	StateAborted
	StateClearingOwned
	StateInstalling
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingAuthorization:
		return "checking_authorization"
	case StateAborted:
		return "aborted"
	case StateClearingOwned:
		return "clearing_owned"
	case StateInstalling:
		return "installing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// WarningKind classifies a non-fatal advisory.
type WarningKind int

const (
	// WarnSoundDisabled: system sound delivery is off for this app; reminders
	// still arrive silently.
	WarnSoundDisabled WarningKind = iota
	// WarnMissingResource: the selected sound file is not bundled; the
	// platform default plays instead.
	WarnMissingResource
)

// Warning is an advisory surfaced to the user. Scheduling went ahead.
type Warning struct {
	Kind  WarningKind
	Sound string // display name, for WarnMissingResource
	File  string
}

func (w Warning) String() string {
	switch w.Kind {
	case WarnSoundDisabled:
		return "notification sound is disabled in system settings"
	case WarnMissingResource:
		return fmt.Sprintf("sound %q is missing (%s), using the default sound", w.Sound, w.File)
	default:
		return fmt.Sprintf("warning(%d)", int(w.Kind))
	}
}

// PlatformError records one request the notification service rejected.
type PlatformError struct {
	Identifier string
	Err        error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("schedule %s: %v", e.Identifier, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// Summary reports the outcome of a rebuild.
type Summary struct {
	State     State
	Installed []string // identifiers, nearest first
	Removed   int      // owned requests cancelled before installing
	Dropped   int      // candidates cut by the slot budget
	Failed    int
	Warnings  []Warning
	// InstallErr aggregates PlatformErrors, nil when every install succeeded.
	InstallErr error
}

// HasWarning reports whether a warning of kind k was raised.
func (s Summary) HasWarning(k WarningKind) bool {
	for _, w := range s.Warnings {
		if w.Kind == k {
			return true
		}
	}
	return false
}
