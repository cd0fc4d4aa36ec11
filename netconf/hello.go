package netconf

import (
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/ncclient/netconf-core/netconf/rfc6242"
)

// sendClientHello writes this client's <hello>, advertising base:1.0,
// base:1.1 (unless Config.DisableChunkedCodec) and the other entries of
// DefaultCapabilities.
func (s *Session) sendClientHello() error {
	doc := etree.NewDocument()
	hello := doc.CreateElement("hello")
	hello.CreateAttr("xmlns", NetconfNamespace)
	caps := hello.CreateElement("capabilities")
	for _, c := range DefaultCapabilities {
		if c == CapBase11 && s.cfg.DisableChunkedCodec {
			continue
		}
		caps.CreateElement("capability").SetText(c)
	}
	return s.writeFramedDoc(doc)
}

// readServerHello reads the peer's first message, which must be a <hello>,
// within Config.SetupTimeoutSecs. It records the session-id and capability
// set and, if both sides support NETCONF 1.1 and chunked framing was not
// disabled, switches the codec to chunked framing for every message from
// here on.
func (s *Session) readServerHello() error {
	type result struct {
		doc *etree.Document
		err error
	}
	done := make(chan result, 1)
	go func() {
		doc, err := s.readFramedDoc()
		done <- result{doc, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-time.After(time.Duration(s.cfg.SetupTimeoutSecs) * time.Second):
		return transportError(nil, "timed out waiting for server hello")
	}
	if r.err != nil {
		return r.err
	}

	root := r.doc.Root()
	if root == nil || root.Tag != "hello" {
		return protocolError(nil, "expected <hello> as first message, got %v", root)
	}

	sessionIDEl := root.FindElement("./session-id")
	if sessionIDEl == nil {
		return protocolError(nil, "server hello missing session-id")
	}
	id, err := strconv.ParseUint(strings.TrimSpace(sessionIDEl.Text()), 10, 64)
	if err != nil {
		return protocolError(err, "server hello has malformed session-id")
	}

	var caps []string
	for _, c := range root.FindElements("./capabilities/capability") {
		caps = append(caps, strings.TrimSpace(c.Text()))
	}

	s.id = id
	s.capabilities = NewCapabilitySet(caps...)

	if s.capabilities.SupportsChunkedFraming() && !s.cfg.DisableChunkedCodec {
		rfc6242.SetChunkedFraming(s.dec, s.enc)
	}
	return nil
}

// baseCapFeatures maps a base NETCONF capability URI to the matching
// ietf-netconf feature name. resolveCapabilities enables each of these on
// the loaded ietf-netconf module when the peer advertises the capability, so
// a later build pass can gate operations like edit-config on running behind
// the writable-running feature actually being enabled.
var baseCapFeatures = map[string]string{
	CapWritableRunning: "writable-running",
	CapCandidate:       "candidate",
	CapConfirmedCommit: "confirmed-commit",
	CapRollbackOnError: "rollback-on-error",
	CapValidate:        "validate",
	CapStartup:         "startup",
	CapURL:             "url",
	CapXPath:           "xpath",
}

// resolveCapabilities implements component E's post-handshake schema
// resolution: ietf-netconf is always loaded (with disk fallback), a
// <get-schema>-backed fetch callback is installed when the peer advertises
// ietf-netconf-monitoring, and every YANG-module capability the peer
// advertised is loaded and feature-enabled. Module load failures are
// aggregated into a single KindPartialSchema error rather than aborting the
// session, since a session with some modules missing is still usable for
// operations that don't need them.
func (s *Session) resolveCapabilities() error {
	var failures []string

	if s.capabilities.HasModule("ietf-netconf-monitoring") {
		prev := s.schemaCtx.SetFetch(s.fetchSchema)
		if _, err := s.schemaCtx.Load("ietf-netconf-monitoring", ""); err != nil {
			s.trace.SchemaLoad("ietf-netconf-monitoring", "", err)
			failures = append(failures, "ietf-netconf-monitoring: "+err.Error())
			s.schemaCtx.SetFetch(prev)
		}
	}

	if mod, err := s.schemaCtx.Load("ietf-netconf", ""); err != nil {
		s.trace.SchemaLoad("ietf-netconf", "", err)
		failures = append(failures, "ietf-netconf: "+err.Error())
	} else {
		s.trace.SchemaLoad("ietf-netconf", "", nil)
		for capURI, feature := range baseCapFeatures {
			if s.capabilities.Has(capURI) {
				mod.EnableFeature(feature)
			}
		}
	}

	for _, uri := range s.capabilities.All() {
		mc, ok := ParseModuleCapability(uri)
		if !ok {
			continue
		}
		mod, err := s.schemaCtx.Load(mc.Module, mc.Revision)
		s.trace.SchemaLoad(mc.Module, mc.Revision, err)
		if err != nil {
			// Retry once through cache/disk only, in case the fetch callback
			// itself is the reason the load failed (e.g. get-schema not yet
			// usable this early in the handshake).
			if mod, err = s.schemaCtx.LoadWithoutFetch(mc.Module, mc.Revision); err != nil {
				failures = append(failures, mc.Module+": "+err.Error())
				continue
			}
		}
		for _, f := range mc.Features {
			mod.EnableFeature(f)
		}
	}

	if len(failures) > 0 {
		return partialSchemaError("failed to load %d capability module(s): %s", len(failures), strings.Join(failures, "; "))
	}
	return nil
}

// fetchSchema is installed as the schema.Context's FetchFunc once the peer
// advertises ietf-netconf-monitoring: it issues a <get-schema> RPC over this
// same session and returns the returned module text.
func (s *Session) fetchSchema(name, revision string) ([]byte, error) {
	version := revision
	req := GetSchemaRequest{Identifier: name}
	if version != "" {
		req.Version = &version
	}

	ctx, cancel := contextWithTimeout(s.cfg.GetSchemaTimeout)
	defer cancel()

	reply, err := s.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if reply.Data == nil {
		return nil, protocolError(nil, "get-schema reply for %s carried no data", name)
	}
	return []byte(reply.Data.Text()), nil
}
