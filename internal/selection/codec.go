package selection

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/ykvlv/time-signal/internal/domain"
	"github.com/ykvlv/time-signal/internal/store"
)

// Backing store keys.
const (
	KeyMinutes     = "selectedMinutes"
	KeyPreferences = "notificationPreferences"
	KeySavedSets   = "savedSets"
	KeyIsOn        = "isOn"
)

// loadBlob returns the raw value under key. An absent key is (nil, false, nil);
// only a failing backing store is an error.
func loadBlob(ctx context.Context, kv store.KV, key string) ([]byte, bool, error) {
	b, err := kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	return b, true, nil
}

func save(ctx context.Context, kv store.KV, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, b); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

func decodeMinutes(b []byte) (domain.MinuteSet, error) {
	var m domain.MinuteSet
	if err := json.Unmarshal(b, &m); err != nil {
		return 0, err
	}
	return m, nil
}

func decodeSets(b []byte) ([]domain.SavedSet, error) {
	var sets []domain.SavedSet
	if err := json.Unmarshal(b, &sets); err != nil {
		return nil, err
	}
	return sets, nil
}

func decodeBool(b []byte) (bool, error) {
	var v bool
	err := json.Unmarshal(b, &v)
	return v, err
}

// decodePreferences applies a stored blob over the defaults, so fields added
// later keep their default values. A blob that fails to decode yields the
// defaults unchanged.
func decodePreferences(b []byte) (domain.Preferences, error) {
	p := domain.DefaultPreferences()
	if err := json.Unmarshal(b, &p); err != nil {
		return domain.DefaultPreferences(), err
	}
	if p.SelectedSoundID == "" {
		p.SelectedSoundID = domain.DefaultSoundID
	}
	return p, nil
}
