package netconf_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/ncclient/netconf-core/netconf"
	"github.com/ncclient/netconf-core/netconf/testserver"
)

// e2eNetconfModule stands in for the real ietf-netconf module: it only
// defines the rpcs and the candidate feature these tests actually exercise,
// just enough for resolveCapabilities/buildRPC's strict-mode checks to pass
// against a peer that has no real schema source to fetch from.
const e2eNetconfModule = `
module ietf-netconf {
  namespace "urn:ietf:params:xml:ns:netconf:base:1.0";
  prefix nc;

  feature candidate {}

  rpc lock { input { container target {} } }
  rpc unlock { input { container target {} } }
}
`

const e2eNotificationsModule = `
module notifications {
  namespace "urn:ietf:params:xml:ns:netconf:notification:1.0";
  prefix ncEvents;
}
`

// e2eSchemaDir writes the fixture modules above to disk so a client dialed
// against testserver.TestNCServer (which answers no get-schema requests of
// its own) can still resolve ietf-netconf/notifications via the on-disk
// fallback path.
func e2eSchemaDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ietf-netconf.yang"), []byte(e2eNetconfModule), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notifications.yang"), []byte(e2eNotificationsModule), 0o600))
	return dir
}

// withExtraCaps returns a copy of netconf.DefaultCapabilities plus extra, so
// callers can't trip over append reusing DefaultCapabilities' backing array.
func withExtraCaps(extra ...string) []string {
	caps := make([]string, 0, len(netconf.DefaultCapabilities)+len(extra))
	caps = append(caps, netconf.DefaultCapabilities...)
	return append(caps, extra...)
}

func dialTestServer(t *testing.T, ts *testserver.TestNCServer) *netconf.Session {
	t.Helper()
	addr := fmt.Sprintf("localhost:%d", ts.Port())
	client := netconf.NewClient(e2eSchemaDir(t), netconf.DefaultConfig)
	sshCfg := &ssh.ClientConfig{
		User:            testserver.TestUserName,
		Auth:            []ssh.AuthMethod{ssh.Password(testserver.TestPassword)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	s, err := client.DialSSHAddr(context.Background(), addr, sshCfg)
	if err != nil && !netconf.IsPartialSchema(err) {
		require.NoError(t, err)
	}
	return s
}

func TestSessionExecuteReturnsRPCError(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t).
		WithCapabilities(withExtraCaps(netconf.CapCandidate)).
		WithRequestHandler(func(op *etree.Element) (string, bool) {
			if op.Tag != "lock" {
				return "", false
			}
			return `<rpc-error>
				<error-type>protocol</error-type>
				<error-tag>lock-denied</error-tag>
				<error-severity>error</error-severity>
				<error-message>lock already held</error-message>
			</rpc-error>`, true
		})
	defer ts.Close()

	s := dialTestServer(t, ts)
	defer s.Close()

	reply, err := s.Execute(context.Background(), netconf.LockRequest{Target: netconf.Candidate})
	require.Error(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, netconf.ReplyErrorKind, reply.Kind)

	var rpcErr *netconf.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, netconf.ErrLockDenied, rpcErr.Tag)
}

func TestSessionExecuteOkForUnlock(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t).
		WithCapabilities(withExtraCaps(netconf.CapCandidate))
	defer ts.Close()

	s := dialTestServer(t, ts)
	defer s.Close()

	reply, err := s.Execute(context.Background(), netconf.UnlockRequest{Target: netconf.Candidate})
	require.NoError(t, err)
	assert.Equal(t, netconf.ReplyOk, reply.Kind)
}

func TestSessionSubscribeDeliversNotification(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t).
		WithCapabilities(withExtraCaps("urn:ietf:params:xml:ns:yang:notifications?module=notifications"))
	defer ts.Close()

	s := dialTestServer(t, ts)
	defer s.Close()

	nchan := make(chan *etree.Element, 4)
	reply, err := s.Subscribe(context.Background(), netconf.SubscribeRequest{Stream: "NETCONF"}, nchan)
	require.NoError(t, err)
	assert.Equal(t, netconf.ReplyOk, reply.Kind)

	handler := ts.SessionHandler(s.ID())
	require.NoError(t, handler.SendNotification(`<config-change xmlns="urn:test:events"/>`))

	select {
	case n := <-nchan:
		require.NotNil(t, n)
		assert.NotNil(t, n.FindElement("./config-change"))
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}
}

func TestSessionExecuteFailsAfterClose(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t)
	defer ts.Close()

	s := dialTestServer(t, ts)
	s.Close()

	_, err := s.Execute(context.Background(), netconf.GenericRequest{Payload: "<get/>"})
	require.Error(t, err)
}
