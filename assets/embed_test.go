package assets

import (
	"testing"

	"github.com/ykvlv/time-signal/internal/domain"
)

func TestSounds_DefaultFirst(t *testing.T) {
	c, err := Sounds()
	if err != nil {
		t.Fatalf("sounds: %v", err)
	}
	if len(c) != 4 {
		t.Fatalf("want 4 sounds, got %d", len(c))
	}
	if c[0].ID != domain.DefaultSoundID || !c[0].UsesDefault() {
		t.Fatalf("first entry must be the platform default, got %+v", c[0])
	}
	bell, ok := c.Lookup("bell")
	if !ok || bell.ResourceFile != "bell.caf" {
		t.Fatalf("bell: %+v %v", bell, ok)
	}
}
