package assets

import (
	"embed"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/ykvlv/time-signal/internal/domain"
)

//go:embed sounds.json
var catalogFS embed.FS

// Sounds returns the bundled sound catalog. The first entry is the default.
func Sounds() (domain.Catalog, error) {
	b, err := catalogFS.ReadFile("sounds.json")
	if err != nil {
		return nil, err
	}
	var c domain.Catalog
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decode sound catalog: %w", err)
	}
	return c, nil
}

// MustSounds panics if the embedded catalog is broken.
func MustSounds() domain.Catalog {
	c, err := Sounds()
	if err != nil {
		panic(err)
	}
	return c
}
