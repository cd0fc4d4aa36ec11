package schema

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModuleText = `
module test-module {
  namespace "urn:test:test-module";
  prefix t;

  feature extra;
}
`

func newTestContext(t *testing.T) *Context {
	t.Helper()
	ctx := NewContext(t.TempDir(), time.Minute)
	t.Cleanup(ctx.Close)
	return ctx
}

func TestLoadViaFetch(t *testing.T) {
	ctx := newTestContext(t)

	var gotName, gotRevision string
	ctx.SetFetch(func(name, revision string) ([]byte, error) {
		gotName, gotRevision = name, revision
		return []byte(testModuleText), nil
	})

	mod, err := ctx.Load("test-module", "2020-01-01")
	require.NoError(t, err)
	assert.Equal(t, "test-module", gotName)
	assert.Equal(t, "2020-01-01", gotRevision)
	assert.Equal(t, "test-module", mod.Name)
	assert.NotNil(t, mod.Entry)
}

func TestLoadCachesResult(t *testing.T) {
	ctx := newTestContext(t)

	calls := 0
	ctx.SetFetch(func(name, revision string) ([]byte, error) {
		calls++
		return []byte(testModuleText), nil
	})

	_, err := ctx.Load("test-module", "")
	require.NoError(t, err)
	_, err = ctx.Load("test-module", "")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestLoadFallsBackToDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test-module.yang"), []byte(testModuleText), 0o600))

	ctx := NewContext(dir, time.Minute)
	t.Cleanup(ctx.Close)

	mod, err := ctx.Load("test-module", "")
	require.NoError(t, err)
	assert.Equal(t, "test-module", mod.Name)
}

func TestLoadWithoutFetchDisablesCallback(t *testing.T) {
	ctx := newTestContext(t)

	called := false
	ctx.SetFetch(func(name, revision string) ([]byte, error) {
		called = true
		return []byte(testModuleText), nil
	})

	_, err := ctx.LoadWithoutFetch("test-module", "")
	assert.Error(t, err, "no disk fallback installed, fetch disabled")
	assert.False(t, called)

	// The fetch callback must be restored once LoadWithoutFetch returns.
	mod, err := ctx.Load("test-module", "")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "test-module", mod.Name)
}

func TestRequireModule(t *testing.T) {
	ctx := newTestContext(t)
	ctx.SetFetch(func(name, revision string) ([]byte, error) {
		return []byte(testModuleText), nil
	})

	assert.Error(t, ctx.RequireModule("test-module"))

	_, err := ctx.Load("test-module", "2020-01-01")
	require.NoError(t, err)

	assert.NoError(t, ctx.RequireModule("test-module"))
}

func TestModuleFeatures(t *testing.T) {
	m := &Module{Name: "test-module"}
	assert.False(t, m.FeatureEnabled("extra"))
	m.EnableFeature("extra")
	assert.True(t, m.FeatureEnabled("extra"))
	assert.False(t, m.FeatureEnabled("missing"))
}

func TestParseModuleFetch(t *testing.T) {
	name, revision := ParseModuleFetch("ietf-interfaces", "2018-01-09")
	assert.Equal(t, "ietf-interfaces", name)
	assert.Equal(t, "2018-01-09", revision)
}
