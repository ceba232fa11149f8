package domain

import (
	"errors"
	"fmt"
	"math/bits"

	json "github.com/goccy/go-json"
)

// ErrInvalidArgument is returned for minute marks outside [0,59].
var ErrInvalidArgument = errors.New("invalid argument")

const (
	MinMinute = 0
	MaxMinute = 59
)

// MinuteSet is a set of minute marks in [0,59], stored as a bitmask.
// It is a value type: every mutation returns a new set.
type MinuteSet uint64

// ValidMinute reports ErrInvalidArgument if m is not a minute of the hour.
func ValidMinute(m int) error {
	if m < MinMinute || m > MaxMinute {
		return fmt.Errorf("%w: minute %d out of range [0,59]", ErrInvalidArgument, m)
	}
	return nil
}

// NewMinuteSet builds a set from the given minutes, rejecting any out of range.
func NewMinuteSet(minutes ...int) (MinuteSet, error) {
	var s MinuteSet
	for _, m := range minutes {
		if err := ValidMinute(m); err != nil {
			return 0, err
		}
		s |= 1 << uint(m)
	}
	return s, nil
}

// MustMinuteSet is NewMinuteSet for static tables.
func MustMinuteSet(minutes ...int) MinuteSet {
	s, err := NewMinuteSet(minutes...)
	if err != nil {
		panic(err)
	}
	return s
}

// SelectableMinutes returns the marks shown on the clock face (every 5 minutes).
func SelectableMinutes() MinuteSet {
	var s MinuteSet
	for m := 0; m < 60; m += 5 {
		s |= 1 << uint(m)
	}
	return s
}

func (s MinuteSet) Has(m int) bool {
	if m < MinMinute || m > MaxMinute {
		return false
	}
	return s&(1<<uint(m)) != 0
}

// Toggle flips m. The caller must validate m first.
func (s MinuteSet) Toggle(m int) MinuteSet { return s ^ (1 << uint(m)) }

func (s MinuteSet) Union(o MinuteSet) MinuteSet    { return s | o }
func (s MinuteSet) Subtract(o MinuteSet) MinuteSet { return s &^ o }

// ContainsAll reports whether every member of o is in s.
func (s MinuteSet) ContainsAll(o MinuteSet) bool { return s&o == o }

func (s MinuteSet) Len() int      { return bits.OnesCount64(uint64(s)) }
func (s MinuteSet) IsEmpty() bool { return s == 0 }

// Minutes returns the members in ascending order.
func (s MinuteSet) Minutes() []int {
	out := make([]int, 0, s.Len())
	for m := MinMinute; m <= MaxMinute; m++ {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

// MarshalJSON encodes the set as a list of minutes.
func (s MinuteSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Minutes())
}

// UnmarshalJSON decodes a list of minutes, rejecting out-of-range values.
func (s *MinuteSet) UnmarshalJSON(b []byte) error {
	var list []int
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	set, err := NewMinuteSet(list...)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
