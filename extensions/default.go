package extensions

import (
	"embed"
	"fmt"
	"path"
	"sync"
)

// DefaultURIPrefix is the base URI of the bundled signature libraries.
const DefaultURIPrefix = "https://github.com/substrait-io/substrait/blob/main/extensions/"

//go:embed library/*.yaml
var library embed.FS

var (
	defaultOnce       sync.Once
	defaultCollection *Collection
	defaultErr        error
)

// DefaultCollection returns the bundled libraries (arithmetic, decimal
// arithmetic, comparison, boolean, string and generic aggregates). The result
// is shared and must not be modified.
func DefaultCollection() (*Collection, error) {
	defaultOnce.Do(func() {
		defaultCollection, defaultErr = loadBundled()
	})
	return defaultCollection, defaultErr
}

func loadBundled() (*Collection, error) {
	entries, err := library.ReadDir("library")
	if err != nil {
		return nil, fmt.Errorf("failed to list bundled libraries: %w", err)
	}
	out, _ := NewCollection()
	for _, e := range entries {
		f, err := library.Open(path.Join("library", e.Name()))
		if err != nil {
			return nil, err
		}
		c, err := LoadYAML(DefaultURIPrefix+e.Name(), f)
		f.Close()
		if err != nil {
			return nil, err
		}
		if out, err = out.Merge(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}
