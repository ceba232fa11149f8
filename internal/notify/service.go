// Package notify defines the contract between the scheduling engine and the
// notification service that actually delivers reminders.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTrigger is returned by Schedule for a trigger the service cannot represent.
var ErrInvalidTrigger = errors.New("invalid trigger")

// AuthorizationStatus mirrors the platform's permission states.
type AuthorizationStatus int

const (
	StatusNotDetermined AuthorizationStatus = iota
	StatusDenied
	StatusAuthorized
	StatusProvisional
	StatusEphemeral
)

func (s AuthorizationStatus) String() string {
	switch s {
	case StatusNotDetermined:
		return "not_determined"
	case StatusDenied:
		return "denied"
	case StatusAuthorized:
		return "authorized"
	case StatusProvisional:
		return "provisional"
	case StatusEphemeral:
		return "ephemeral"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Allowed reports whether notifications may be scheduled in this state.
func (s AuthorizationStatus) Allowed() bool {
	return s == StatusAuthorized || s == StatusProvisional || s == StatusEphemeral
}

// Settings is the result of an authorization query.
type Settings struct {
	Status       AuthorizationStatus
	SoundEnabled bool
}

// AuthOptions lists what an authorization request asks for.
type AuthOptions struct {
	Alert bool
	Sound bool
	Badge bool
}

// InterruptionLevel hints how aggressively a notification may break through focus modes.
type InterruptionLevel int

const (
	InterruptionActive InterruptionLevel = iota
	InterruptionTimeSensitive
)

// Sound selects what plays on delivery.
type Sound struct {
	Kind SoundKind `json:"kind"`
	File string    `json:"file,omitempty"` // set for SoundNamed
}

type SoundKind int

const (
	SoundNone SoundKind = iota
	SoundDefault
	SoundNamed
)

// DefaultSound is the platform default sound.
func DefaultSound() Sound { return Sound{Kind: SoundDefault} }

// NamedSound plays a bundled resource file.
func NamedSound(file string) Sound { return Sound{Kind: SoundNamed, File: file} }

// Content is what the user sees and hears.
type Content struct {
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	Sound        Sound             `json:"sound"`
	Category     string            `json:"category,omitempty"`
	Interruption InterruptionLevel `json:"interruption"`
}

// Trigger describes when a request fires.
//
// A repeating trigger matches a calendar minute: with Hour nil it fires every
// hour at Minute; with Hour set it fires daily at Hour:Minute. A one-shot
// trigger fires once, After the moment it is scheduled.
type Trigger struct {
	Hour    *int
	Minute  int
	Repeats bool
	After   time.Duration
}

// EveryHourAt is a repeating minute-only trigger.
func EveryHourAt(minute int) Trigger { return Trigger{Minute: minute, Repeats: true} }

// DailyAt is a repeating hour×minute trigger.
func DailyAt(hour, minute int) Trigger {
	h := hour
	return Trigger{Hour: &h, Minute: minute, Repeats: true}
}

// In is a one-shot trigger.
func In(d time.Duration) Trigger { return Trigger{After: d} }

// Validate checks the trigger's ranges.
func (t Trigger) Validate() error {
	if !t.Repeats {
		if t.After <= 0 {
			return fmt.Errorf("%w: one-shot delay must be positive", ErrInvalidTrigger)
		}
		return nil
	}
	if t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("%w: minute %d", ErrInvalidTrigger, t.Minute)
	}
	if t.Hour != nil && (*t.Hour < 0 || *t.Hour > 23) {
		return fmt.Errorf("%w: hour %d", ErrInvalidTrigger, *t.Hour)
	}
	return nil
}

// Request is one schedulable notification.
type Request struct {
	Identifier string
	Content    Content
	Trigger    Trigger
}

// Service is the notification service capability. Every call may block on
// the platform; implementations honour ctx cancellation.
type Service interface {
	QueryAuthorization(ctx context.Context) (Settings, error)
	RequestAuthorization(ctx context.Context, opts AuthOptions) (bool, error)
	// ListPending returns identifiers of every pending request, from any owner.
	ListPending(ctx context.Context) ([]string, error)
	Cancel(ctx context.Context, identifiers []string) error
	Schedule(ctx context.Context, req Request) error
}
