// Package dashboard holds the presentation state of the map grid: the
// user's favorite metrics, metric search, grid selection, and the tile and
// focus views built from one metric's artifact.
package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Favorites is an insertion-ordered set of metric ids. It is safe for
// concurrent use.
type Favorites struct {
	mu    sync.RWMutex
	order []string
	set   map[string]struct{}
}

// NewFavorites returns a set holding ids, duplicates and empty ids dropped.
func NewFavorites(ids ...string) *Favorites {
	f := &Favorites{set: make(map[string]struct{})}
	for _, id := range ids {
		f.add(id)
	}
	return f
}

// Has reports whether id is a favorite.
func (f *Favorites) Has(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.set[id]
	return ok
}

// Len returns the number of favorites.
func (f *Favorites) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.order)
}

// IDs returns the favorites in the order they were added.
func (f *Favorites) IDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Add marks id as a favorite. It reports whether the set changed.
func (f *Favorites) Add(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.add(id)
}

// Remove unmarks id. It reports whether the set changed.
func (f *Favorites) Remove(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remove(id)
}

// Toggle flips id and returns whether it is now a favorite.
func (f *Favorites) Toggle(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remove(id) {
		return false
	}
	return f.add(id)
}

// Clear removes every favorite.
func (f *Favorites) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = nil
	f.set = make(map[string]struct{})
}

func (f *Favorites) add(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := f.set[id]; ok {
		return false
	}
	f.set[id] = struct{}{}
	f.order = append(f.order, id)
	return true
}

func (f *Favorites) remove(id string) bool {
	if _, ok := f.set[id]; !ok {
		return false
	}
	delete(f.set, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return true
}

// LoadFavorites reads a JSON array of ids from path. A missing file yields an
// empty set. Non-string entries are skipped. A corrupt file yields an empty
// set together with the decode error so the caller can log it and carry on.
func LoadFavorites(path string) (*Favorites, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewFavorites(), nil
	}
	if err != nil {
		return NewFavorites(), fmt.Errorf("read favorites: %w", err)
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewFavorites(), fmt.Errorf("decode favorites: %w", err)
	}

	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return NewFavorites(ids...), nil
}

// SaveFavorites writes favs to path as a JSON array.
func SaveFavorites(path string, favs *Favorites) error {
	data, err := json.Marshal(favs.IDs())
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create favorites dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write favorites: %w", err)
	}
	return nil
}
