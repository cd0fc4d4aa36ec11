package netconf

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/AlekSi/pointer"
	"github.com/beevik/etree"
	"github.com/ncclient/netconf-core/netconf/schema"
)

// buildRPC realizes req as a schema-bound XML tree rooted at <rpc>, assigning
// the given message-id attribute. It aborts (returning an error, with no
// partially-built tree escaping) on any missing-module, unadvertised-feature
// or malformed-content failure, per component F's scoped-ownership rule.
func buildRPC(ctx *schema.Context, caps CapabilitySet, msgID uint64, req Request) (*etree.Document, error) {
	// Every variant names the module its operation (and, where relevant, its
	// reply data) belongs to via schemaHint; GenericRequest alone returns ""
	// since it carries an arbitrary, possibly vendor, operation with no
	// module of its own to require.
	if name := req.schemaHint(); name != "" {
		if err := ctx.RequireModule(name); err != nil {
			return nil, schemaError(err, "build %T", req)
		}
	}

	if err := checkFeatureRequirements(ctx.Module("ietf-netconf", ""), req); err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	rpc := doc.CreateElement("rpc")
	rpc.Space = ""
	rpc.CreateAttr("xmlns", NetconfNamespace)
	rpc.CreateAttr("message-id", strconv.FormatUint(msgID, 10))

	if err := appendOperation(rpc, caps, req); err != nil {
		return nil, err
	}

	if err := validateAgainstSchema(ctx, rpc, req); err != nil {
		return nil, err
	}

	return doc, nil
}

// checkFeatureRequirements rejects an operation whose semantics depend on a
// base capability the peer never advertised (and so never had its matching
// ietf-netconf feature enabled by resolveCapabilities), rather than sending
// it to a peer that would itself reject it. mod is nil in contexts where
// ietf-netconf hasn't been loaded (e.g. GenericRequest's arbitrary
// operation), in which case no feature can be checked and the request is let
// through; the caller has already required the module for every variant that
// actually needs this check.
func checkFeatureRequirements(mod *schema.Module, req Request) error {
	if mod == nil {
		return nil
	}
	require := func(feature string) error {
		if !mod.FeatureEnabled(feature) {
			return schemaError(nil, "%T requires ietf-netconf feature %q, not enabled for this peer", req, feature)
		}
		return nil
	}
	switch r := req.(type) {
	case LockRequest:
		if r.Target == Candidate {
			return require("candidate")
		}
	case UnlockRequest:
		if r.Target == Candidate {
			return require("candidate")
		}
	case EditConfigRequest:
		switch r.Target {
		case Running:
			if err := require("writable-running"); err != nil {
				return err
			}
		case Candidate:
			if err := require("candidate"); err != nil {
				return err
			}
		}
		if r.ErrorOption == "rollback-on-error" {
			return require("rollback-on-error")
		}
	case CopyConfigRequest:
		if r.Target.Datastore == Running {
			return require("writable-running")
		}
	case CommitRequest:
		if r.Confirmed {
			return require("confirmed-commit")
		}
	case CancelCommitRequest:
		return require("confirmed-commit")
	case DiscardChangesRequest:
		return require("candidate")
	case ValidateRequest:
		return require("validate")
	}
	return nil
}

// validateAgainstSchema implements component F's strict-mode pass: the
// constructed <rpc>'s single operation element must name an actual rpc
// statement of the loaded ietf-netconf module, and each of that operation's
// immediate children must name an actual input child of that rpc; anything
// else is a malformed request the peer would itself reject. GenericRequest
// carries an arbitrary operation with no module to validate structurally
// against, so it is exempt.
func validateAgainstSchema(ctx *schema.Context, rpc *etree.Element, req Request) error {
	if _, ok := req.(GenericRequest); ok {
		return nil
	}

	mod := ctx.Module("ietf-netconf", "")
	if mod == nil || mod.Entry == nil || mod.Entry.Dir == nil {
		return nil
	}

	children := rpc.ChildElements()
	if len(children) != 1 {
		return schemaError(nil, "rpc must contain exactly one operation element, got %d", len(children))
	}
	op := children[0]

	// get-schema/create-subscription are defined by their own modules, not
	// ietf-netconf, and are schema-validated via their own RequireModule call
	// above rather than here.
	if req.schemaHint() != "ietf-netconf" {
		return nil
	}

	rpcEntry, ok := mod.Entry.Dir[op.Tag]
	if !ok || rpcEntry.RPC == nil {
		return schemaError(nil, "%q is not an rpc defined by ietf-netconf", op.Tag)
	}

	input := rpcEntry.RPC.Input
	if input == nil || input.Dir == nil {
		return nil
	}
	for _, child := range op.ChildElements() {
		if _, ok := input.Dir[child.Tag]; !ok {
			return schemaError(nil, "ietf-netconf rpc %q has no input element %q", op.Tag, child.Tag)
		}
	}
	return nil
}

func appendOperation(rpc *etree.Element, caps CapabilitySet, req Request) error {
	switch r := req.(type) {
	case GenericRequest:
		return appendGeneric(rpc, r)
	case GetConfigRequest:
		return appendGetConfig(rpc, r)
	case GetRequest:
		return appendGet(rpc, r)
	case EditConfigRequest:
		return appendEditConfig(rpc, caps, r)
	case CopyConfigRequest:
		return appendCopyConfig(rpc, caps, r)
	case DeleteConfigRequest:
		return appendDeleteConfig(rpc, caps, r)
	case LockRequest:
		appendTargetOp(rpc, "lock", r.Target)
		return nil
	case UnlockRequest:
		appendTargetOp(rpc, "unlock", r.Target)
		return nil
	case KillSessionRequest:
		op := rpc.CreateElement("kill-session")
		op.CreateElement("session-id").SetText(strconv.FormatUint(r.SessionID, 10))
		return nil
	case CommitRequest:
		return appendCommit(rpc, r)
	case DiscardChangesRequest:
		rpc.CreateElement("discard-changes")
		return nil
	case CancelCommitRequest:
		op := rpc.CreateElement("cancel-commit")
		if id := pointer.GetString(r.PersistID); id != "" {
			op.CreateElement("persist-id").SetText(id)
		}
		return nil
	case ValidateRequest:
		op := rpc.CreateElement("validate")
		return appendLocationAsSource(op, caps, r.Source)
	case GetSchemaRequest:
		return appendGetSchema(rpc, r)
	case SubscribeRequest:
		return appendSubscribe(rpc, r)
	default:
		return internalError("unsupported request type %T", req)
	}
}

func appendGeneric(rpc *etree.Element, r GenericRequest) error {
	if r.Payload == "" {
		return argError("generic request payload must not be empty")
	}
	frag := etree.NewDocument()
	if err := frag.ReadFromString(wrapFragment(r.Payload)); err != nil {
		return argError("generic request payload is not well-formed XML: %v", err)
	}
	for _, child := range frag.Root().ChildElements() {
		rpc.AddChild(child.Copy())
	}
	return nil
}

func wrapFragment(inner string) string {
	return "<_>" + inner + "</_>"
}

func appendTargetOp(rpc *etree.Element, op string, target Datastore) {
	o := rpc.CreateElement(op)
	t := o.CreateElement("target")
	t.CreateElement(string(target))
}

func appendGetConfig(rpc *etree.Element, r GetConfigRequest) error {
	op := rpc.CreateElement("get-config")
	s := op.CreateElement("source")
	s.CreateElement(string(r.Source))
	if err := appendFilter(op, r.Filter); err != nil {
		return err
	}
	appendWithDefaults(op, r.WithDefaults)
	return nil
}

func appendGet(rpc *etree.Element, r GetRequest) error {
	op := rpc.CreateElement("get")
	if err := appendFilter(op, r.Filter); err != nil {
		return err
	}
	appendWithDefaults(op, r.WithDefaults)
	return nil
}

// appendFilter implements the `<`-vs-XPath discrimination of component F:
// a filter beginning with '<' is subtree XML, anything else is an XPath
// expression carried in the select attribute.
func appendFilter(op *etree.Element, filter string) error {
	if filter == "" {
		return nil
	}
	f := op.CreateElement("filter")
	if strings.HasPrefix(strings.TrimSpace(filter), "<") {
		f.CreateAttr("type", "subtree")
		frag := etree.NewDocument()
		if err := frag.ReadFromString(wrapFragment(filter)); err != nil {
			return argError("filter is not well-formed subtree XML: %v", err)
		}
		for _, child := range frag.Root().ChildElements() {
			f.AddChild(child.Copy())
		}
		return nil
	}
	f.CreateAttr("type", "xpath")
	f.CreateAttr("select", filter)
	return nil
}

func appendWithDefaults(op *etree.Element, mode WithDefaultsMode) {
	if mode == "" {
		return
	}
	op.CreateElement("with-defaults").SetText(string(mode))
}

func appendEditConfig(rpc *etree.Element, caps CapabilitySet, r EditConfigRequest) error {
	op := rpc.CreateElement("edit-config")
	t := op.CreateElement("target")
	t.CreateElement(string(r.Target))

	if r.DefaultOperation != "" {
		op.CreateElement("default-operation").SetText(r.DefaultOperation)
	}
	if r.TestOption != "" {
		op.CreateElement("test-option").SetText(r.TestOption)
	}
	if r.ErrorOption != "" {
		op.CreateElement("error-option").SetText(r.ErrorOption)
	}

	if r.Config == "" {
		return argError("edit-config requires non-empty content")
	}
	if strings.HasPrefix(strings.TrimSpace(r.Config), "<") {
		cfg := op.CreateElement("config")
		frag := etree.NewDocument()
		if err := frag.ReadFromString(wrapFragment(r.Config)); err != nil {
			return argError("edit-config content is not well-formed XML: %v", err)
		}
		for _, child := range frag.Root().ChildElements() {
			cfg.AddChild(child.Copy())
		}
		return nil
	}
	if err := validateURLScheme(caps, r.Config); err != nil {
		return err
	}
	op.CreateElement("url").SetText(r.Config)
	return nil
}

func appendLocationAsSource(op *etree.Element, caps CapabilitySet, loc Location) error {
	return appendLocation(op, caps, "source", loc)
}

func appendLocation(op *etree.Element, caps CapabilitySet, tag string, loc Location) error {
	el := op.CreateElement(tag)
	switch {
	case loc.URL != "":
		if err := validateURLScheme(caps, loc.URL); err != nil {
			return err
		}
		el.CreateElement("url").SetText(loc.URL)
	case loc.Config != "":
		cfg := el.CreateElement("config")
		frag := etree.NewDocument()
		if err := frag.ReadFromString(wrapFragment(loc.Config)); err != nil {
			return argError("%s config is not well-formed XML: %v", tag, err)
		}
		for _, child := range frag.Root().ChildElements() {
			cfg.AddChild(child.Copy())
		}
	case loc.Datastore != "":
		el.CreateElement(string(loc.Datastore))
	default:
		return argError("%s requires one of Datastore, URL or Config", tag)
	}
	return nil
}

// validateURLScheme rejects a Location or edit-config url value with a
// SchemaError unless its scheme appears in the peer's advertised :url
// capability. A peer that advertises :url without a scheme= query parameter
// is treated as accepting any scheme (RFC 6241 §8.3.3's "absent parameter"
// case).
func validateURLScheme(caps CapabilitySet, rawurl string) error {
	schemes, advertised := caps.URLSchemes()
	if !advertised {
		return schemaError(nil, "peer does not advertise the :url capability")
	}
	if len(schemes) == 0 {
		return nil
	}
	u, err := url.Parse(rawurl)
	if err != nil {
		return argError("invalid URL %q: %v", rawurl, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return schemaError(nil, "URL scheme %q not advertised by peer (allowed: %s)", u.Scheme, strings.Join(schemes, ","))
}

func appendCopyConfig(rpc *etree.Element, caps CapabilitySet, r CopyConfigRequest) error {
	op := rpc.CreateElement("copy-config")
	if err := appendLocation(op, caps, "target", r.Target); err != nil {
		return err
	}
	if err := appendLocation(op, caps, "source", r.Source); err != nil {
		return err
	}
	appendWithDefaults(op, r.WithDefaults)
	return nil
}

func appendDeleteConfig(rpc *etree.Element, caps CapabilitySet, r DeleteConfigRequest) error {
	op := rpc.CreateElement("delete-config")
	return appendLocation(op, caps, "target", r.Target)
}

func appendCommit(rpc *etree.Element, r CommitRequest) error {
	op := rpc.CreateElement("commit")
	if r.Confirmed {
		op.CreateElement("confirmed")
		if t := pointer.GetUint32(r.TimeoutSecs); t > 0 {
			op.CreateElement("confirm-timeout").SetText(strconv.FormatUint(uint64(t), 10))
		}
	}
	if persist := pointer.GetString(r.Persist); persist != "" {
		op.CreateElement("persist").SetText(persist)
	}
	if id := pointer.GetString(r.PersistID); id != "" {
		op.CreateElement("persist-id").SetText(id)
	}
	return nil
}

func appendGetSchema(rpc *etree.Element, r GetSchemaRequest) error {
	if r.Identifier == "" {
		return argError("get-schema requires an identifier")
	}
	op := rpc.CreateElement("get-schema")
	op.CreateAttr("xmlns", MonitoringNamespace)
	op.CreateElement("identifier").SetText(r.Identifier)
	if version := pointer.GetString(r.Version); version != "" {
		op.CreateElement("version").SetText(version)
	}
	format := pointer.GetString(r.Format)
	if format == "" {
		format = "yang"
	}
	op.CreateElement("format").SetText(format)
	return nil
}

func appendSubscribe(rpc *etree.Element, r SubscribeRequest) error {
	op := rpc.CreateElement("create-subscription")
	op.CreateAttr("xmlns", NotificationNamespace)
	if r.Stream != "" {
		op.CreateElement("stream").SetText(r.Stream)
	}
	if r.Filter != "" {
		if err := appendFilter(op, r.Filter); err != nil {
			return err
		}
	}
	if r.StartTime != "" {
		op.CreateElement("startTime").SetText(r.StartTime)
	}
	if r.StopTime != "" {
		op.CreateElement("stopTime").SetText(r.StopTime)
	}
	return nil
}
