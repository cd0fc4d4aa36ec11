// Package schema wraps the YANG modelling library consumed by the NETCONF
// core's handshake and capability resolver (component B of the design):
// it loads module text, tracks per-module feature enablement, and serves as
// the plug point for an on-demand module-fetch callback (typically backed by
// <get-schema>) so the core never has to know where a module came from.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/openconfig/goyang/pkg/yang"
	"github.com/pkg/errors"
)

// FetchFunc retrieves the source text of a module by name and optional
// revision. It is installed by the handshake layer, typically backed by a
// <get-schema> RPC issued over the session under construction.
type FetchFunc func(name, revision string) (text []byte, err error)

// Module is a loaded, feature-resolved YANG module.
type Module struct {
	Name     string
	Revision string
	Entry    *yang.Entry
	Features map[string]bool
}

// EnableFeature marks a feature as enabled on this module. Lookups against
// unknown feature names are tolerated; the handshake layer only ever enables
// features it has itself parsed from a capability URI.
func (m *Module) EnableFeature(name string) {
	if m.Features == nil {
		m.Features = make(map[string]bool)
	}
	m.Features[name] = true
}

// FeatureEnabled reports whether name has been enabled on this module.
func (m *Module) FeatureEnabled(name string) bool {
	return m.Features != nil && m.Features[name]
}

// Context holds every module a session (or group of sessions, when shared)
// has loaded, plus the on-disk fallback directory and optional fetch
// callback used to resolve a module that isn't already cached.
//
// A Context may be shared across sessions (Connect's sharedSchema argument);
// mutation is serialized here with a mutex exactly as component B requires,
// so the schema library itself doesn't need to reason about concurrent
// sessions driving the same context.
type Context struct {
	mu sync.Mutex

	dir   string
	fetch FetchFunc

	modules *ttlcache.Cache[string, *Module]
}

// NewContext creates a schema Context rooted at dir (the last-resort,
// on-disk ".yang" source directory), with modules cached for ttl before being
// evicted and requiring a reload.
func NewContext(dir string, ttl time.Duration) *Context {
	c := &Context{
		dir: dir,
		modules: ttlcache.New[string, *Module](
			ttlcache.WithTTL[string, *Module](ttl),
		),
	}
	go c.modules.Start()
	return c
}

// Close stops the underlying cache's eviction goroutine. Safe to call on a
// shared context only once the last session referencing it has closed.
func (c *Context) Close() { c.modules.Stop() }

// SetFetch installs (or clears, passing nil) the module-fetch callback used
// when a module is requested that is neither cached nor found on disk. The
// handshake layer swaps this out temporarily while retrying a failed load
// through the in-memory/disk path only, per the design's retry rule.
func (c *Context) SetFetch(fn FetchFunc) (previous FetchFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous = c.fetch
	c.fetch = fn
	return previous
}

func cacheKey(name, revision string) string { return name + "@" + revision }

// Module returns a previously loaded module by name/revision, or nil if not loaded.
func (c *Context) Module(name, revision string) *Module {
	item := c.modules.Get(cacheKey(name, revision))
	if item == nil {
		return nil
	}
	return item.Value()
}

// Load resolves name/revision, trying in order: the cache, the fetch
// callback (if installed), and the on-disk SchemaDir as ".yang" text. The
// parsed module is cached and returned.
func (c *Context) Load(name, revision string) (*Module, error) {
	if m := c.Module(name, revision); m != nil {
		return m, nil
	}

	c.mu.Lock()
	fetch := c.fetch
	c.mu.Unlock()

	var (
		text []byte
		err  error
	)

	if fetch != nil {
		if text, err = fetch(name, revision); err != nil {
			text = nil
		}
	}
	if text == nil {
		if text, err = c.readDisk(name, revision); err != nil {
			return nil, errors.Wrapf(err, "load module %s@%s", name, revision)
		}
	}

	mod, err := c.parse(name, revision, text)
	if err != nil {
		return nil, err
	}

	c.modules.Set(cacheKey(name, revision), mod, ttlcache.DefaultTTL)
	return mod, nil
}

// LoadWithoutFetch behaves like Load but temporarily disables the fetch
// callback, per the design's rule that a failed disk/cache load may be
// retried through non-callback sources before re-enabling <get-schema>.
func (c *Context) LoadWithoutFetch(name, revision string) (*Module, error) {
	prev := c.SetFetch(nil)
	defer c.SetFetch(prev)
	return c.Load(name, revision)
}

func (c *Context) readDisk(name, revision string) ([]byte, error) {
	fname := name
	if revision != "" {
		fname = fmt.Sprintf("%s@%s", name, revision)
	}
	path := filepath.Join(c.dir, fname+".yang")
	text, err := os.ReadFile(path) // nolint: gosec
	if err != nil {
		path = filepath.Join(c.dir, name+".yang")
		text, err = os.ReadFile(path) // nolint: gosec
	}
	return text, err
}

func (c *Context) parse(name, revision string, text []byte) (*Module, error) {
	ms := yang.NewModules()
	if err := ms.Parse(string(text), name+".yang"); err != nil {
		return nil, errors.Wrapf(err, "parse module %s", name)
	}
	ym, ok := ms.Modules[name]
	if !ok {
		// Fall back to whatever single module came out of the parse, since
		// the peer-supplied text may not key itself under the requested name
		// (e.g. a revision-qualified lookup against an unversioned file).
		for _, m := range ms.Modules {
			ym = m
			break
		}
	}
	if ym == nil {
		return nil, errors.Errorf("module %s not found after parse", name)
	}

	entries := yang.ToEntry(ym)
	return &Module{Name: name, Revision: revision, Entry: entries, Features: map[string]bool{}}, nil
}

// RequireModule confirms that a module is present in the context, the first
// half of the strict-mode check the RPC builder performs before emitting a
// tree (component F's "required module missing" failure case); the builder
// separately validates the tree's structure against the module once loaded.
func (c *Context) RequireModule(name string) error {
	if c.Module(name, "") != nil {
		return nil
	}
	// Accept any cached revision of the module.
	found := false
	c.modules.Range(func(item *ttlcache.Item[string, *Module]) bool {
		if item.Value().Name == name {
			found = true
			return false
		}
		return true
	})
	if !found {
		return errors.Errorf("required module %q not present in schema context", name)
	}
	return nil
}

// ParseModuleFetch extracts (name, revision) from the identifier/version
// pair accepted by a <get-schema> request, matching ietf-netconf-monitoring
// semantics where version doubles as revision-date.
func ParseModuleFetch(identifier, version string) (name, revision string) {
	return identifier, version
}
