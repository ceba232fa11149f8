package engine

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/ykvlv/time-signal/internal/domain"
	"github.com/ykvlv/time-signal/internal/notify"
)

// Mode selects how selected minutes map onto platform triggers.
type Mode int

const (
	// ModeHourly installs one minute-only recurring trigger per selected mark.
	// It never exceeds the slot budget for a valid MinuteSet.
	ModeHourly Mode = iota
	// ModeDaily installs one daily trigger per hour×minute pair and keeps the
	// nearest ones when the slot budget is exceeded.
	ModeDaily
)

func (m Mode) String() string {
	if m == ModeDaily {
		return "daily"
	}
	return "hourly"
}

// ParseMode accepts "hourly" and "daily".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "hourly":
		return ModeHourly, nil
	case "daily":
		return ModeDaily, nil
	default:
		return 0, fmt.Errorf("unknown schedule mode %q", s)
	}
}

// ScheduledTrigger is one planned trigger. Hour is nil in ModeHourly.
type ScheduledTrigger struct {
	Identifier      string
	Hour            *int
	Minute          int
	DistanceMinutes int
}

// Trigger converts the plan entry into a platform trigger.
func (t ScheduledTrigger) Trigger() notify.Trigger {
	if t.Hour == nil {
		return notify.EveryHourAt(t.Minute)
	}
	return notify.DailyAt(*t.Hour, t.Minute)
}

// TimeString is the human-readable time shown in the banner.
func (t ScheduledTrigger) TimeString() string {
	if t.Hour == nil {
		return domain.FormatMark(t.Minute)
	}
	return domain.FormatClock(*t.Hour, t.Minute)
}

// Identifier derives the stable identifier of an (hour?, minute) key.
func Identifier(prefix string, hour *int, minute int) string {
	if hour == nil {
		return prefix + "everyHour." + strconv.Itoa(minute)
	}
	return prefix + strconv.Itoa(*hour) + "." + strconv.Itoa(minute)
}

// Candidates lists every trigger the selection asks for, nearest first.
// Seconds of now are ignored.
func Candidates(mode Mode, prefix string, minutes domain.MinuteSet, now time.Time) []ScheduledTrigger {
	marks := minutes.Minutes()
	var out []ScheduledTrigger

	switch mode {
	case ModeDaily:
		out = make([]ScheduledTrigger, 0, len(marks)*24)
		for h := 0; h < 24; h++ {
			hour := h
			for _, m := range marks {
				out = append(out, ScheduledTrigger{
					Identifier:      Identifier(prefix, &hour, m),
					Hour:            &hour,
					Minute:          m,
					DistanceMinutes: domain.MinutesUntil(now, hour, m),
				})
			}
		}
	default:
		out = make([]ScheduledTrigger, 0, len(marks))
		for _, m := range marks {
			out = append(out, ScheduledTrigger{
				Identifier:      Identifier(prefix, nil, m),
				Minute:          m,
				DistanceMinutes: domain.MinutesUntilMark(now, m),
			})
		}
	}

	// Distances are unique per key within a mode; the identifier only makes
	// the order total.
	slices.SortFunc(out, func(a, b ScheduledTrigger) int {
		if c := cmp.Compare(a.DistanceMinutes, b.DistanceMinutes); c != 0 {
			return c
		}
		return cmp.Compare(a.Identifier, b.Identifier)
	})
	return out
}

// ApplyBudget keeps the first budget candidates of a nearest-first list.
func ApplyBudget(sorted []ScheduledTrigger, budget int) (kept, dropped []ScheduledTrigger) {
	if budget < 0 {
		budget = 0
	}
	if len(sorted) <= budget {
		return sorted, nil
	}
	return sorted[:budget], sorted[budget:]
}
