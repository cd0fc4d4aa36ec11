package netconf

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	gossh "golang.org/x/crypto/ssh"

	"github.com/ncclient/netconf-core/netconf/schema"
	ncssh "github.com/ncclient/netconf-core/netconf/transport/ssh"
	nctls "github.com/ncclient/netconf-core/netconf/transport/tls"
)

// schemaCacheTTL bounds how long a Client's shared schema.Context retains a
// loaded module before requiring a reload, independent of any one session's
// lifetime.
const schemaCacheTTL = 30 * time.Minute

// Client is the explicit, per-application replacement for the process-wide
// mutable state a NETCONF client library is otherwise tempted to keep (a
// single global schema search path, a single global call-home registry),
// making that state an ordinary value a caller owns. A Client lazily creates
// one schema.Context, shared by every Session it opens, rooted at
// SchemaSearchPath.
type Client struct {
	// SchemaSearchPath is the on-disk directory of .yang files consulted as
	// the last-resort module source, and for bootstrapping ietf-netconf
	// itself before any session has negotiated capabilities.
	SchemaSearchPath string

	cfg *Config

	mu        sync.Mutex
	schemaCtx *schema.Context
}

// NewClient creates a Client. cfg may be nil, in which case DefaultConfig is
// used for every session this Client opens.
func NewClient(schemaSearchPath string, cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig
	}
	return &Client{SchemaSearchPath: schemaSearchPath, cfg: cfg}
}

// sharedSchema lazily creates the Client's schema.Context on first use.
func (c *Client) sharedSchema() *schema.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.schemaCtx == nil {
		c.schemaCtx = schema.NewContext(c.SchemaSearchPath, schemaCacheTTL)
	}
	return c.schemaCtx
}

// DialSSH opens a new SSH connection via dialer, requests the "netconf"
// subsystem, and completes the hello handshake, returning a running Session
// whose schema context is shared with every other session this Client opens.
func (c *Client) DialSSH(ctx context.Context, dialer ncssh.Dialer) (*Session, error) {
	rwc, target, err := ncssh.Dial(ctx, dialer)
	if err != nil {
		return nil, err
	}
	return c.open(ctx, rwc, target)
}

// DialSSHAddr is a convenience wrapper over DialSSH for the common case of
// dialing a fresh TCP+SSH connection to addr.
func (c *Client) DialSSHAddr(ctx context.Context, addr string, sshCfg *gossh.ClientConfig) (*Session, error) {
	return c.DialSSH(ctx, ncssh.NewDialer(addr, sshCfg))
}

// DialSSHClient opens a session over an already-connected *ssh.Client that
// the caller continues to own; Session.Close will not close it.
func (c *Client) DialSSHClient(ctx context.Context, client *gossh.Client) (*Session, error) {
	return c.DialSSH(ctx, ncssh.NewReusingDialer(client))
}

// DialTLS opens a NETCONF-over-TLS (RFC 7589) session.
func (c *Client) DialTLS(ctx context.Context, network, addr string, tlsCfg *tls.Config) (*Session, error) {
	rwc, target, err := nctls.Dial(ctx, network, addr, tlsCfg)
	if err != nil {
		return nil, err
	}
	return c.open(ctx, rwc, target)
}

// Open completes a NETCONF handshake over an already-established transport
// (any io.ReadWriteCloser that already speaks RFC 6242 framing), useful for
// non-SSH/TLS bindings (e.g. call-home, or a transport under test).
func (c *Client) Open(ctx context.Context, t Transport, target string) (*Session, error) {
	return c.open(ctx, t, target)
}

// open completes the handshake and returns the Session even when Connect's
// error is a KindPartialSchema failure: the session is still usable for any
// operation whose module did load, and IsPartialSchema lets the caller
// detect and react to the gap.
func (c *Client) open(ctx context.Context, t Transport, target string) (*Session, error) {
	return Connect(ctx, t, target, c.sharedSchema(), true, c.cfg)
}

// Close stops the Client's shared schema context. Call it only once every
// Session opened through this Client has itself been closed.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.schemaCtx != nil {
		c.schemaCtx.Close()
	}
}
