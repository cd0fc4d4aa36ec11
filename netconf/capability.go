package netconf

import (
	"net/url"
	"strings"
)

// Base NETCONF protocol capability URIs.
const (
	baseCapPrefix = "urn:ietf:params:netconf:"

	CapBase10              = "urn:ietf:params:netconf:base:1.0"
	CapBase11              = "urn:ietf:params:netconf:base:1.1"
	CapWritableRunning     = "urn:ietf:params:netconf:capability:writable-running:1.0"
	CapCandidate           = "urn:ietf:params:netconf:capability:candidate:1.0"
	CapConfirmedCommit     = "urn:ietf:params:netconf:capability:confirmed-commit:1.1"
	CapRollbackOnError     = "urn:ietf:params:netconf:capability:rollback-on-error:1.0"
	CapValidate            = "urn:ietf:params:netconf:capability:validate:1.1"
	CapStartup             = "urn:ietf:params:netconf:capability:startup:1.0"
	CapURL                 = "urn:ietf:params:netconf:capability:url:1.0"
	CapXPath               = "urn:ietf:params:netconf:capability:xpath:1.0"
	CapWithDefaults        = "urn:ietf:params:netconf:capability:with-defaults:1.0"
	CapNotification        = "urn:ietf:params:netconf:capability:notification:1.0"
	CapNetconfMonitoring   = "ietf-netconf-monitoring"
)

// DefaultCapabilities are advertised by this client in its own <hello>.
var DefaultCapabilities = []string{
	CapBase10,
	CapBase11,
	CapXPath,
}

// CapabilitySet is a set of capability URIs advertised by a peer, grounded on
// the source's prefix-expanding capability-set helper.
type CapabilitySet struct {
	caps map[string]struct{}
}

// NewCapabilitySet builds a CapabilitySet from a peer's <hello> capability list.
func NewCapabilitySet(capabilities ...string) CapabilitySet {
	cs := CapabilitySet{caps: make(map[string]struct{}, len(capabilities))}
	for _, c := range capabilities {
		cs.caps[c] = struct{}{}
	}
	return cs
}

// Has reports whether the exact capability URI is present.
func (cs CapabilitySet) Has(uri string) bool {
	_, ok := cs.caps[uri]
	return ok
}

// HasModule reports whether any capability in the set is a YANG-module
// capability whose module= parameter equals name; used to detect
// ietf-netconf-monitoring regardless of the URI's other query parameters.
func (cs CapabilitySet) HasModule(name string) bool {
	for c := range cs.caps {
		if mc, ok := ParseModuleCapability(c); ok && mc.Module == name {
			return true
		}
	}
	return false
}

// All returns every capability URI in the set.
func (cs CapabilitySet) All() []string {
	all := make([]string, 0, len(cs.caps))
	for c := range cs.caps {
		all = append(all, c)
	}
	return all
}

// SupportsChunkedFraming reports whether the set advertises NETCONF 1.1.
func (cs CapabilitySet) SupportsChunkedFraming() bool { return cs.Has(CapBase11) }

// ModuleCapability is the decoded query string of a YANG-module capability
// URI: module=<name>[&revision=YYYY-MM-DD][&features=f1,f2,...][&deviations=...].
type ModuleCapability struct {
	Module     string
	Revision   string
	Features   []string
	Deviations []string
}

// ParseModuleCapability parses a capability URI as a YANG-module capability.
// Base NETCONF protocol capabilities (prefix urn:ietf:params:netconf:) never
// match, since they carry no module= query parameter.
func ParseModuleCapability(uri string) (ModuleCapability, bool) {
	if strings.HasPrefix(uri, baseCapPrefix) {
		return ModuleCapability{}, false
	}

	u, err := url.Parse(uri)
	if err != nil {
		return ModuleCapability{}, false
	}

	q := u.Query()
	module := q.Get("module")
	if module == "" {
		return ModuleCapability{}, false
	}

	mc := ModuleCapability{Module: module, Revision: q.Get("revision")}
	if f := q.Get("features"); f != "" {
		mc.Features = strings.Split(f, ",")
	}
	if d := q.Get("deviations"); d != "" {
		mc.Deviations = strings.Split(d, ",")
	}
	return mc, true
}

// ParseURLCapability extracts the set of schemes a peer's :url capability
// advertises, e.g. "...:url:1.0?scheme=http,https,file".
func ParseURLCapability(uri string) (schemes []string, ok bool) {
	if !strings.HasPrefix(uri, CapURL) {
		return nil, false
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, false
	}
	s := u.Query().Get("scheme")
	if s == "" {
		return nil, true
	}
	return strings.Split(s, ","), true
}

// URLSchemes returns the set of URL schemes the peer advertised via its :url
// capability, and whether the peer advertised :url at all. An empty (nil)
// scheme list with advertised true means the peer accepts any scheme.
func (cs CapabilitySet) URLSchemes() (schemes []string, advertised bool) {
	for c := range cs.caps {
		if s, ok := ParseURLCapability(c); ok {
			return s, true
		}
	}
	return nil, false
}
