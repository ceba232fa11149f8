package domain

// SoundID names an entry of the sound catalog.
type SoundID string

// DefaultSoundID selects the platform default sound.
const DefaultSoundID SoundID = "default"

// Preferences controls how each reminder is delivered.
type Preferences struct {
	BannerEnabled   bool    `json:"bannerEnabled"`
	SoundEnabled    bool    `json:"soundEnabled"`
	FlashEnabled    bool    `json:"flashEnabled"`
	SelectedSoundID SoundID `json:"selectedSoundId"`
}

// DefaultPreferences is used on first run and whenever the stored blob is unreadable.
func DefaultPreferences() Preferences {
	return Preferences{
		BannerEnabled:   true,
		SoundEnabled:    true,
		FlashEnabled:    false,
		SelectedSoundID: DefaultSoundID,
	}
}

// AffectsDelivery reports whether switching from p to next changes what the
// notification service has to deliver. Flash runs against the local clock,
// so a flash-only change does not.
func (p Preferences) AffectsDelivery(next Preferences) bool {
	return p.BannerEnabled != next.BannerEnabled ||
		p.SoundEnabled != next.SoundEnabled ||
		p.SelectedSoundID != next.SelectedSoundID
}

// SoundOption is one entry of the static sound catalog.
// An empty ResourceFile means the platform default sound.
type SoundOption struct {
	ID           SoundID `json:"id"`
	DisplayName  string  `json:"displayName"`
	ResourceFile string  `json:"resourceFile,omitempty"`
}

func (o SoundOption) UsesDefault() bool { return o.ResourceFile == "" }

// Catalog is the ordered list of selectable sounds.
type Catalog []SoundOption

// Lookup finds a sound by id.
func (c Catalog) Lookup(id SoundID) (SoundOption, bool) {
	for _, o := range c {
		if o.ID == id {
			return o, true
		}
	}
	return SoundOption{}, false
}
