package netconf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilitySetHas(t *testing.T) {
	cs := NewCapabilitySet(CapBase10, CapBase11, CapXPath)
	assert.True(t, cs.Has(CapBase11))
	assert.False(t, cs.Has(CapCandidate))
	assert.True(t, cs.SupportsChunkedFraming())
}

func TestCapabilitySetHasModule(t *testing.T) {
	cs := NewCapabilitySet("http://example.com/yang/foo?module=foo&revision=2020-01-01")
	assert.True(t, cs.HasModule("foo"))
	assert.False(t, cs.HasModule("bar"))
}

func TestParseModuleCapability(t *testing.T) {
	mc, ok := ParseModuleCapability("http://example.com/yang/foo?module=foo&revision=2020-01-01&features=f1,f2")
	require.True(t, ok)
	assert.Equal(t, "foo", mc.Module)
	assert.Equal(t, "2020-01-01", mc.Revision)
	assert.Equal(t, []string{"f1", "f2"}, mc.Features)
}

func TestParseModuleCapabilityRejectsBaseCapability(t *testing.T) {
	_, ok := ParseModuleCapability(CapBase11)
	assert.False(t, ok)
}

func TestParseModuleCapabilityRequiresModuleParam(t *testing.T) {
	_, ok := ParseModuleCapability("http://example.com/yang/foo?revision=2020-01-01")
	assert.False(t, ok)
}

func TestParseURLCapability(t *testing.T) {
	schemes, ok := ParseURLCapability(CapURL + "?scheme=http,https,file")
	require.True(t, ok)
	assert.Equal(t, []string{"http", "https", "file"}, schemes)

	_, ok = ParseURLCapability(CapCandidate)
	assert.False(t, ok)
}
