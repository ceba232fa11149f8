// Package selection holds the authoritative selection: the minute marks, the
// notification preferences, the saved sets and the on/off flag. It is their
// only writer; every mutation is persisted and, when it changes what must be
// delivered, followed by a reschedule request.
package selection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ykvlv/time-signal/internal/domain"
	"github.com/ykvlv/time-signal/internal/store"
)

// ErrSetNotFound is returned for an unknown saved set id.
var ErrSetNotFound = errors.New("saved set not found")

// Rescheduler receives reschedule requests. The debounced trigger implements it.
type Rescheduler interface {
	RequestReschedule()
}

// Snapshot is a read-only copy handed to the scheduling engine.
type Snapshot struct {
	Enabled bool
	Minutes domain.MinuteSet
	Prefs   domain.Preferences
}

// Store is the Selection Store.
type Store struct {
	kv  store.KV
	log *zap.Logger

	mu      sync.RWMutex
	resched Rescheduler
	enabled bool
	minutes domain.MinuteSet
	prefs   domain.Preferences
	sets    []domain.SavedSet
}

// Open loads the persisted selection. Absent or unreadable values fall back
// to their defaults; only a failing backing store is an error.
func Open(ctx context.Context, kv store.KV, log *zap.Logger) (*Store, error) {
	s := &Store{
		kv:    kv,
		log:   log.Named("selection"),
		prefs: domain.DefaultPreferences(),
	}

	if b, ok, err := loadBlob(ctx, kv, KeyMinutes); err != nil {
		return nil, err
	} else if ok {
		if m, err := decodeMinutes(b); err != nil {
			s.unreadable(KeyMinutes, err)
		} else {
			s.minutes = m
		}
	}

	if b, ok, err := loadBlob(ctx, kv, KeyPreferences); err != nil {
		return nil, err
	} else if ok {
		p, err := decodePreferences(b)
		if err != nil {
			s.unreadable(KeyPreferences, err)
		}
		s.prefs = p
	}

	if b, ok, err := loadBlob(ctx, kv, KeySavedSets); err != nil {
		return nil, err
	} else if ok {
		if sets, err := decodeSets(b); err != nil {
			s.unreadable(KeySavedSets, err)
		} else {
			s.sets = sets
		}
	}

	if b, ok, err := loadBlob(ctx, kv, KeyIsOn); err != nil {
		return nil, err
	} else if ok {
		if on, err := decodeBool(b); err != nil {
			s.unreadable(KeyIsOn, err)
		} else {
			s.enabled = on
		}
	}

	s.log.Info("selection loaded",
		zap.Bool("enabled", s.enabled),
		zap.Ints("minutes", s.minutes.Minutes()),
		zap.Int("saved_sets", len(s.sets)),
	)
	return s, nil
}

func (s *Store) unreadable(key string, err error) {
	s.log.Warn("stored value unreadable, using default", zap.String("key", key), zap.Error(err))
}

// SetRescheduler wires the reschedule target. Until it is set, mutations
// only persist.
func (s *Store) SetRescheduler(r Rescheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resched = r
}

func (s *Store) requestReschedule() {
	s.mu.RLock()
	r := s.resched
	s.mu.RUnlock()
	if r != nil {
		r.RequestReschedule()
	}
}

// Snapshot returns the current state for a rebuild.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Enabled: s.enabled, Minutes: s.minutes, Prefs: s.prefs}
}

func (s *Store) Minutes() domain.MinuteSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minutes
}

func (s *Store) Preferences() domain.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

func (s *Store) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Sets returns a copy of the saved sets in creation order.
func (s *Store) Sets() []domain.SavedSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sets)
}

// ToggleMinute flips m. An out-of-range m fails with domain.ErrInvalidArgument
// and changes nothing.
func (s *Store) ToggleMinute(ctx context.Context, m int) error {
	if err := domain.ValidMinute(m); err != nil {
		return err
	}
	return s.updateMinutes(ctx, func(cur domain.MinuteSet) domain.MinuteSet { return cur.Toggle(m) })
}

// ApplyBulk toggles minutes as a block: if all of them are selected they are
// all removed, otherwise all are added.
func (s *Store) ApplyBulk(ctx context.Context, minutes domain.MinuteSet) error {
	return s.updateMinutes(ctx, func(cur domain.MinuteSet) domain.MinuteSet {
		if cur.ContainsAll(minutes) {
			return cur.Subtract(minutes)
		}
		return cur.Union(minutes)
	})
}

// ClearAll empties the selection.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.updateMinutes(ctx, func(domain.MinuteSet) domain.MinuteSet { return 0 })
}

// SelectAll selects every mark on the clock face.
func (s *Store) SelectAll(ctx context.Context) error {
	return s.updateMinutes(ctx, func(domain.MinuteSet) domain.MinuteSet { return domain.SelectableMinutes() })
}

// updateMinutes applies fn, persists the result and requests a reschedule.
// The in-memory change stands even if persisting fails.
func (s *Store) updateMinutes(ctx context.Context, fn func(domain.MinuteSet) domain.MinuteSet) error {
	s.mu.Lock()
	s.minutes = fn(s.minutes)
	err := save(ctx, s.kv, KeyMinutes, s.minutes)
	s.mu.Unlock()

	if err != nil {
		s.log.Error("persist minutes failed", zap.Error(err))
	}
	s.requestReschedule()
	return err
}

// SetPreferences replaces the preferences. Only changes that alter delivery
// request a reschedule; flash is evaluated against the local clock.
func (s *Store) SetPreferences(ctx context.Context, p domain.Preferences) error {
	if p.SelectedSoundID == "" {
		p.SelectedSoundID = domain.DefaultSoundID
	}
	s.mu.Lock()
	changed := s.prefs.AffectsDelivery(p)
	s.prefs = p
	err := save(ctx, s.kv, KeyPreferences, s.prefs)
	s.mu.Unlock()

	if err != nil {
		s.log.Error("persist preferences failed", zap.Error(err))
	}
	if changed {
		s.requestReschedule()
	}
	return err
}

// SetEnabled persists the on/off flag. The power toggle decides what to
// schedule; this call only records the state.
func (s *Store) SetEnabled(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = on
	return save(ctx, s.kv, KeyIsOn, on)
}

// SaveCurrentAsSet stores the current selection under name. If persisting
// fails the set is still kept in memory and returned along with the error.
func (s *Store) SaveCurrentAsSet(ctx context.Context, name string) (domain.SavedSet, error) {
	name, err := domain.NormalizeSetName(name)
	if err != nil {
		return domain.SavedSet{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set := domain.SavedSet{ID: uuid.New(), Name: name, Minutes: s.minutes}
	s.sets = append(s.sets, set)
	if err := save(ctx, s.kv, KeySavedSets, s.sets); err != nil {
		return set, err
	}
	return set, nil
}

// LoadSet makes a saved set the active selection and requests a reschedule.
func (s *Store) LoadSet(ctx context.Context, id uuid.UUID) error {
	s.mu.RLock()
	i := s.indexLocked(id)
	var minutes domain.MinuteSet
	if i >= 0 {
		minutes = s.sets[i].Minutes
	}
	s.mu.RUnlock()
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSetNotFound, id)
	}
	return s.updateMinutes(ctx, func(domain.MinuteSet) domain.MinuteSet { return minutes })
}

// RenameSet changes a saved set's name.
func (s *Store) RenameSet(ctx context.Context, id uuid.UUID, name string) error {
	name, err := domain.NormalizeSetName(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSetNotFound, id)
	}
	s.sets[i].Name = name
	return save(ctx, s.kv, KeySavedSets, s.sets)
}

// DeleteSet removes a saved set. The active selection is not affected.
func (s *Store) DeleteSet(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSetNotFound, id)
	}
	s.sets = slices.Delete(s.sets, i, i+1)
	return save(ctx, s.kv, KeySavedSets, s.sets)
}

func (s *Store) indexLocked(id uuid.UUID) int {
	return slices.IndexFunc(s.sets, func(set domain.SavedSet) bool { return set.ID == id })
}
