package engine

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// Resolver finds bundled resource files.
type Resolver interface {
	// Resolve returns the path of fileName, or false when it is absent.
	Resolve(fileName string) (string, bool)
}

// FSResolver looks resources up in a directory of an afero filesystem.
type FSResolver struct {
	fs   afero.Fs
	root string
}

// NewFSResolver resolves names relative to root on fs.
func NewFSResolver(fs afero.Fs, root string) *FSResolver {
	return &FSResolver{fs: fs, root: root}
}

func (r *FSResolver) Resolve(fileName string) (string, bool) {
	if fileName == "" {
		return "", false
	}
	p := filepath.Join(r.root, filepath.Base(fileName))
	info, err := r.fs.Stat(p)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return "", false
	}
	return p, true
}
