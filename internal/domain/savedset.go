package domain

import "github.com/google/uuid"

// SavedSet is a named preset of minute marks.
type SavedSet struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Minutes MinuteSet `json:"minutes"`
}

// BulkPreset is a fixed block of minutes applied with toggle-as-a-block semantics.
type BulkPreset struct {
	Key     string
	Name    string
	Minutes MinuteSet
}

// BulkPresets lists the built-in blocks in display order.
func BulkPresets() []BulkPreset {
	return []BulkPreset{
		{Key: "10m", Name: "Every 10m", Minutes: MustMinuteSet(0, 10, 20, 30, 40, 50)},
		{Key: "15m", Name: "Every 15m", Minutes: MustMinuteSet(0, 15, 30, 45)},
		{Key: "30m", Name: "Every 30m", Minutes: MustMinuteSet(0, 30)},
	}
}

// FindBulkPreset returns the preset registered under key.
func FindBulkPreset(key string) (BulkPreset, bool) {
	for _, p := range BulkPresets() {
		if p.Key == key {
			return p, true
		}
	}
	return BulkPreset{}, false
}
