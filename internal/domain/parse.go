package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrEmptyName = errors.New("empty name")

// MaxSetNameLen caps saved set names.
const MaxSetNameLen = 64

// ParseMinute parses a minute mark like "15", ":15" or "05".
func ParseMinute(s string) (int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), ":")
	if s == "" {
		return 0, fmt.Errorf("%w: empty minute", ErrInvalidArgument)
	}
	m, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a minute", ErrInvalidArgument, s)
	}
	if err := ValidMinute(m); err != nil {
		return 0, err
	}
	return m, nil
}

// ParseMinuteList parses a comma or space separated list like "0, 15 :30".
func ParseMinuteList(s string) (MinuteSet, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: no minutes given", ErrInvalidArgument)
	}
	var set MinuteSet
	for _, f := range fields {
		m, err := ParseMinute(f)
		if err != nil {
			return 0, err
		}
		set |= 1 << uint(m)
	}
	return set, nil
}

// NormalizeSetName trims and bounds a saved set name.
func NormalizeSetName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if r := []rune(name); len(r) > MaxSetNameLen {
		name = string(r[:MaxSetNameLen])
	}
	return name, nil
}

// FormatClock returns HH:MM.
func FormatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// FormatMark returns the hour-independent form ":MM".
func FormatMark(minute int) string {
	return fmt.Sprintf(":%02d", minute)
}

// FormatMinutes renders a set as ":00 :15 :30", or "—" when empty.
func FormatMinutes(s MinuteSet) string {
	if s.IsEmpty() {
		return "—"
	}
	parts := make([]string, 0, s.Len())
	for _, m := range s.Minutes() {
		parts = append(parts, FormatMark(m))
	}
	return strings.Join(parts, " ")
}

// LoadZone resolves a zone name; "" and "Local" mean the host zone.
func LoadZone(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
