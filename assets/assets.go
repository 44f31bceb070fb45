// Package assets defines the asset source that load callbacks read from and an
// in-memory catalog implementation of it. Nothing here touches the filesystem;
// the catalog only resolves paths to handles and tracks their load state.
package assets

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a path is not known to the source.
var ErrNotFound = errors.New("asset not found")

// handleNamespace scopes the name-based handle ids so the same path always maps
// to the same id across processes.
var handleNamespace = uuid.MustParse("6f1c2b1e-6d8a-4c53-9a4e-2a7c0d9b5e11")

// LoadState describes where an asset is in its loading lifecycle.
type LoadState int

const (
	StatePending LoadState = iota
	StateLoaded
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle identifies an asset returned by a Source.
type Handle struct {
	ID   uuid.UUID
	Path string
}

// Source is the read-only asset access handed to load callbacks.
type Source interface {
	Load(path string) (Handle, error)
	State(h Handle) LoadState
}

// Entry describes one asset known to a Catalog.
type Entry struct {
	Path    string `yaml:"path"`
	Kind    string `yaml:"kind"`
	Pending bool   `yaml:"pending,omitempty"`
	Failed  bool   `yaml:"failed,omitempty"`
}

type manifest struct {
	Assets []Entry `yaml:"assets"`
}

type catalogEntry struct {
	entry  Entry
	handle Handle
	state  LoadState
}

// Catalog is an in-memory Source. Not safe for concurrent use; it lives on the
// goroutine that runs the scheduler.
type Catalog struct {
	entries map[string]*catalogEntry
	byID    map[uuid.UUID]*catalogEntry
	loads   int
}

// NewCatalog creates a catalog holding the given entries.
func NewCatalog(entries ...Entry) *Catalog {
	c := &Catalog{
		entries: make(map[string]*catalogEntry, len(entries)),
		byID:    make(map[uuid.UUID]*catalogEntry, len(entries)),
	}
	for _, e := range entries {
		c.Add(e)
	}
	return c
}

// LoadManifest builds a catalog from a YAML manifest of the form
//
//	assets:
//	  - path: sprites/player.png
//	    kind: texture
func LoadManifest(r io.Reader) (*Catalog, error) {
	var m manifest
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode asset manifest: %w", err)
	}

	for i, e := range m.Assets {
		if e.Path == "" {
			return nil, fmt.Errorf("asset manifest entry %d: empty path", i)
		}
	}
	return NewCatalog(m.Assets...), nil
}

// Add registers or replaces an entry.
func (c *Catalog) Add(e Entry) Handle {
	h := Handle{ID: uuid.NewSHA1(handleNamespace, []byte(e.Path)), Path: e.Path}

	state := StateLoaded
	switch {
	case e.Failed:
		state = StateFailed
	case e.Pending:
		state = StatePending
	}

	ce := &catalogEntry{entry: e, handle: h, state: state}
	c.entries[e.Path] = ce
	c.byID[h.ID] = ce
	return h
}

// Load resolves a path to its handle.
func (c *Catalog) Load(path string) (Handle, error) {
	ce, ok := c.entries[path]
	if !ok {
		return Handle{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	c.loads++
	return ce.handle, nil
}

// State returns the load state of a handle; unknown handles report StateFailed.
func (c *Catalog) State(h Handle) LoadState {
	ce, ok := c.byID[h.ID]
	if !ok {
		return StateFailed
	}
	return ce.state
}

// MarkLoaded flips a pending asset to loaded.
func (c *Catalog) MarkLoaded(path string) bool {
	ce, ok := c.entries[path]
	if !ok {
		return false
	}
	ce.state = StateLoaded
	return true
}

// Entry returns the catalog entry for a path.
func (c *Catalog) Entry(path string) (Entry, bool) {
	ce, ok := c.entries[path]
	if !ok {
		return Entry{}, false
	}
	return ce.entry, true
}

// Paths returns every known path in sorted order.
func (c *Catalog) Paths() []string {
	paths := make([]string, 0, len(c.entries))
	for p := range c.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Loads returns how many successful Load calls the catalog has served.
func (c *Catalog) Loads() int {
	return c.loads
}
