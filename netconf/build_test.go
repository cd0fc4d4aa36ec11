package netconf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncclient/netconf-core/netconf/schema"
)

func newTestSchemaContext(t *testing.T) *schema.Context {
	t.Helper()
	ctx := schema.NewContext(t.TempDir(), time.Minute)
	t.Cleanup(ctx.Close)
	return ctx
}

const minimalNetconfModule = `
module ietf-netconf {
  namespace "urn:ietf:params:xml:ns:netconf:base:1.0";
  prefix nc;

  feature writable-running {}
  feature candidate {}
  feature confirmed-commit {}
  feature rollback-on-error {}
  feature validate {}
  feature startup {}
  feature url {}
  feature xpath {}

  rpc get-config {
    input {
      container source {}
      container filter {}
      leaf with-defaults { type string; }
    }
    output { container data {} }
  }
  rpc get {
    input {
      container filter {}
      leaf with-defaults { type string; }
    }
    output { container data {} }
  }
  rpc edit-config {
    input {
      container target {}
      leaf default-operation { type string; }
      leaf test-option { type string; }
      leaf error-option { type string; }
      container config {}
      leaf url { type string; }
    }
  }
  rpc copy-config {
    input {
      container target {}
      container source {}
      leaf with-defaults { type string; }
    }
  }
  rpc delete-config { input { container target {} } }
  rpc lock { input { container target {} } }
  rpc unlock { input { container target {} } }
  rpc kill-session { input { leaf session-id { type uint32; } } }
  rpc commit {
    input {
      leaf confirmed { type empty; }
      leaf confirm-timeout { type uint32; }
      leaf persist { type string; }
      leaf persist-id { type string; }
    }
  }
  rpc discard-changes {}
  rpc cancel-commit { input { leaf persist-id { type string; } } }
  rpc validate { input { container source {} } }
}
`

// loadTestNetconfModule loads minimalNetconfModule into ctx and enables the
// named features on it, standing in for what resolveCapabilities does against
// a real peer's advertised base capabilities.
func loadTestNetconfModule(t *testing.T, ctx *schema.Context, features ...string) {
	t.Helper()
	ctx.SetFetch(func(name, revision string) ([]byte, error) {
		return []byte(minimalNetconfModule), nil
	})
	mod, err := ctx.Load("ietf-netconf", "")
	require.NoError(t, err)
	for _, f := range features {
		mod.EnableFeature(f)
	}
	ctx.SetFetch(nil)
}

func noURLCaps() CapabilitySet { return NewCapabilitySet() }

func urlCaps(schemes ...string) CapabilitySet {
	uri := CapURL
	if len(schemes) > 0 {
		uri += "?scheme=" + joinCommas(schemes)
	}
	return NewCapabilitySet(uri)
}

func joinCommas(ss []string) string {
	out := ss[0]
	for _, s := range ss[1:] {
		out += "," + s
	}
	return out
}

func TestBuildRPCGeneric(t *testing.T) {
	ctx := newTestSchemaContext(t)
	doc, err := buildRPC(ctx, noURLCaps(), 7, GenericRequest{Payload: "<get><foo/></get>"})
	require.NoError(t, err)

	root := doc.Root()
	assert.Equal(t, "rpc", root.Tag)
	assert.Equal(t, "7", root.SelectAttrValue("message-id", ""))
	assert.NotNil(t, root.FindElement("./get/foo"))
}

func TestBuildRPCGenericRejectsEmptyPayload(t *testing.T) {
	ctx := newTestSchemaContext(t)
	_, err := buildRPC(ctx, noURLCaps(), 1, GenericRequest{})
	assert.Error(t, err)
}

func TestBuildRPCGetWithSubtreeFilter(t *testing.T) {
	ctx := newTestSchemaContext(t)
	loadTestNetconfModule(t, ctx)
	doc, err := buildRPC(ctx, noURLCaps(), 1, GetRequest{Filter: `<interfaces/>`})
	require.NoError(t, err)

	filter := doc.Root().FindElement("./get/filter")
	require.NotNil(t, filter)
	assert.Equal(t, "subtree", filter.SelectAttrValue("type", ""))
	assert.NotNil(t, filter.FindElement("./interfaces"))
}

func TestBuildRPCGetWithXPathFilter(t *testing.T) {
	ctx := newTestSchemaContext(t)
	loadTestNetconfModule(t, ctx)
	doc, err := buildRPC(ctx, noURLCaps(), 1, GetRequest{Filter: "/interfaces/interface"})
	require.NoError(t, err)

	filter := doc.Root().FindElement("./get/filter")
	require.NotNil(t, filter)
	assert.Equal(t, "xpath", filter.SelectAttrValue("type", ""))
	assert.Equal(t, "/interfaces/interface", filter.SelectAttrValue("select", ""))
}

func TestBuildRPCRequiresNetconfModule(t *testing.T) {
	ctx := newTestSchemaContext(t)
	_, err := buildRPC(ctx, noURLCaps(), 1, GetRequest{Filter: `<interfaces/>`})
	assert.Error(t, err, "get should require ietf-netconf to already be loaded")
}

func TestBuildRPCEditConfigRequiresContent(t *testing.T) {
	ctx := newTestSchemaContext(t)
	loadTestNetconfModule(t, ctx, "writable-running")
	_, err := buildRPC(ctx, noURLCaps(), 1, EditConfigRequest{Target: "running"})
	assert.Error(t, err)
}

func TestBuildRPCEditConfigRequiresWritableRunningFeature(t *testing.T) {
	ctx := newTestSchemaContext(t)
	loadTestNetconfModule(t, ctx)
	_, err := buildRPC(ctx, noURLCaps(), 1, EditConfigRequest{Target: "running", Config: "<foo/>"})
	assert.Error(t, err, "edit-config on running should require writable-running to be enabled")
}

func TestBuildRPCEditConfigOnCandidateOk(t *testing.T) {
	ctx := newTestSchemaContext(t)
	loadTestNetconfModule(t, ctx, "candidate")
	doc, err := buildRPC(ctx, noURLCaps(), 1, EditConfigRequest{Target: "candidate", Config: "<foo/>"})
	require.NoError(t, err)
	assert.NotNil(t, doc.Root().FindElement("./edit-config/config/foo"))
}

func TestBuildRPCLockUnlock(t *testing.T) {
	ctx := newTestSchemaContext(t)
	loadTestNetconfModule(t, ctx, "candidate")
	doc, err := buildRPC(ctx, noURLCaps(), 1, LockRequest{Target: "candidate"})
	require.NoError(t, err)
	assert.NotNil(t, doc.Root().FindElement("./lock/target/candidate"))

	doc, err = buildRPC(ctx, noURLCaps(), 2, UnlockRequest{Target: "candidate"})
	require.NoError(t, err)
	assert.NotNil(t, doc.Root().FindElement("./unlock/target/candidate"))
}

func TestBuildRPCLockCandidateRequiresFeature(t *testing.T) {
	ctx := newTestSchemaContext(t)
	loadTestNetconfModule(t, ctx)
	_, err := buildRPC(ctx, noURLCaps(), 1, LockRequest{Target: "candidate"})
	assert.Error(t, err)
}

func TestBuildRPCCommitConfirmedRequiresFeature(t *testing.T) {
	ctx := newTestSchemaContext(t)
	loadTestNetconfModule(t, ctx)
	_, err := buildRPC(ctx, noURLCaps(), 1, CommitRequest{Confirmed: true})
	assert.Error(t, err)
}

func TestBuildRPCCancelCommitRequiresConfirmedCommitFeature(t *testing.T) {
	ctx := newTestSchemaContext(t)
	loadTestNetconfModule(t, ctx)
	_, err := buildRPC(ctx, noURLCaps(), 1, CancelCommitRequest{})
	assert.Error(t, err)
}

func TestBuildRPCEditConfigURLRequiresAdvertisedCapability(t *testing.T) {
	ctx := newTestSchemaContext(t)
	loadTestNetconfModule(t, ctx, "writable-running")
	_, err := buildRPC(ctx, noURLCaps(), 1, EditConfigRequest{Target: "running", Config: "ftp://host/cfg"})
	assert.Error(t, err, "url location should require peer to advertise :url")
}

func TestBuildRPCEditConfigURLRequiresAdvertisedScheme(t *testing.T) {
	ctx := newTestSchemaContext(t)
	loadTestNetconfModule(t, ctx, "writable-running")
	_, err := buildRPC(ctx, urlCaps("http", "https"), 1, EditConfigRequest{Target: "running", Config: "ftp://host/cfg"})
	assert.Error(t, err, "ftp was not among the advertised schemes")
}

func TestBuildRPCEditConfigURLAllowedScheme(t *testing.T) {
	ctx := newTestSchemaContext(t)
	loadTestNetconfModule(t, ctx, "writable-running")
	doc, err := buildRPC(ctx, urlCaps("http", "https"), 1, EditConfigRequest{Target: "running", Config: "https://host/cfg"})
	require.NoError(t, err)
	assert.Equal(t, "https://host/cfg", doc.Root().FindElement("./edit-config/url").Text())
}

func TestBuildRPCValidateURLSourceUnrestrictedScheme(t *testing.T) {
	ctx := newTestSchemaContext(t)
	loadTestNetconfModule(t, ctx, "validate")
	doc, err := buildRPC(ctx, urlCaps(), 1, ValidateRequest{Source: FromURL("ftp://host/cfg")})
	require.NoError(t, err, "advertising :url with no scheme= parameter accepts any scheme")
	assert.Equal(t, "ftp://host/cfg", doc.Root().FindElement("./validate/source/url").Text())
}

const minimalMonitoringModule = `
module ietf-netconf-monitoring {
  namespace "urn:ietf:params:xml:ns:yang:ietf-netconf-monitoring";
  prefix ncm;
}
`

func TestBuildRPCGetSchemaRequiresMonitoringModule(t *testing.T) {
	ctx := newTestSchemaContext(t)

	_, err := buildRPC(ctx, noURLCaps(), 1, GetSchemaRequest{Identifier: "foo"})
	assert.Error(t, err, "get-schema should require ietf-netconf-monitoring to already be loaded")

	ctx.SetFetch(func(name, revision string) ([]byte, error) {
		return []byte(minimalMonitoringModule), nil
	})
	_, err = ctx.Load("ietf-netconf-monitoring", "")
	require.NoError(t, err)

	doc, err := buildRPC(ctx, noURLCaps(), 2, GetSchemaRequest{Identifier: "foo"})
	require.NoError(t, err)
	op := doc.Root().FindElement("./get-schema")
	require.NotNil(t, op)
	assert.Equal(t, "foo", op.FindElement("./identifier").Text())
	assert.Equal(t, "yang", op.FindElement("./format").Text())
}
