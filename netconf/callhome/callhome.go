// Package callhome implements the server side of RFC 8071 NETCONF call
// home: a listener that accepts inbound connections from devices dialing
// out to a fixed management address, upgrades each to a transport keyed by
// the peer's source IP, and completes the hello handshake through the core's
// package-level netconf.Connect.
package callhome

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	gossh "golang.org/x/crypto/ssh"

	"github.com/ncclient/netconf-core/netconf"
	"github.com/ncclient/netconf-core/netconf/schema"
	ncssh "github.com/ncclient/netconf-core/netconf/transport/ssh"
)

// ErrNoClientConfig is returned when a connection arrives from an address
// with no registered Upgrader.
var ErrNoClientConfig = errors.New("callhome: no transport configured for this peer")

// Upgrader turns an accepted net.Conn into a netconf.Transport, choosing the
// handshake appropriate to the peer's call-home binding (SSH or TLS).
type Upgrader interface {
	Upgrade(conn net.Conn) (t netconf.Transport, target string, err error)
}

// SSHUpgrader upgrades the connection using an SSH client handshake and the
// "netconf" subsystem, per RFC 8071's SSH call-home binding.
type SSHUpgrader struct {
	Config *gossh.ClientConfig
}

// Upgrade implements Upgrader.
func (u *SSHUpgrader) Upgrade(conn net.Conn) (netconf.Transport, string, error) {
	sshConn, chans, reqs, err := gossh.NewClientConn(conn, conn.RemoteAddr().String(), u.Config)
	if err != nil {
		return nil, "", err
	}
	client := gossh.NewClient(sshConn, chans, reqs)
	rwc, target, err := ncssh.Dial(context.Background(), ncssh.NewReusingDialer(client))
	if err != nil {
		return nil, "", err
	}
	return rwc, target, nil
}

// TLSUpgrader upgrades the connection using a TLS server handshake, per RFC
// 8071's TLS call-home binding.
type TLSUpgrader struct {
	Config *tls.Config
}

// Upgrade implements Upgrader.
func (u *TLSUpgrader) Upgrade(conn net.Conn) (netconf.Transport, string, error) {
	tlsConn := tls.Server(conn, u.Config)
	if err := tlsConn.Handshake(); err != nil {
		return nil, "", err
	}
	return tlsConn, tlsConn.RemoteAddr().String(), nil
}

// Client is a completed call-home session paired with the peer address that
// originated it.
type Client struct {
	Session *netconf.Session
	Address string
}

// ClientError reports a failed call-home connection attempt.
type ClientError struct {
	Address string
	Err     error
}

func (e *ClientError) Error() string { return fmt.Sprintf("callhome: %s: %v", e.Address, e.Err) }
func (e *ClientError) Unwrap() error { return e.Err }

// Server accepts inbound call-home TCP connections, matches each by source
// IP against a registered Upgrader, and completes the NETCONF handshake over
// the upgraded transport. It takes its schema context and Config directly
// from NewServer, not from a netconf.Client.
type Server struct {
	network   string
	addr      string
	upgraders map[string]Upgrader

	schemaCtx *schema.Context
	cfg       *netconf.Config

	listener net.Listener
	clients  chan *Client
	errors   chan *ClientError
}

// Option configures a Server.
type Option func(*Server)

// WithAddress sets the listen address (default "0.0.0.0:4334", the IANA
// call-home port).
func WithAddress(addr string) Option { return func(s *Server) { s.addr = addr } }

// WithNetwork sets the listen network, one of "tcp", "tcp4", "tcp6".
func WithNetwork(network string) Option { return func(s *Server) { s.network = network } }

// WithUpgrader registers the Upgrader used for connections from peerAddr
// (an IP address, matched against net.Conn.RemoteAddr()).
func WithUpgrader(peerAddr string, u Upgrader) Option {
	return func(s *Server) { s.upgraders[peerAddr] = u }
}

// NewServer creates a Server that resolves each accepted session's schema
// against schemaCtx (ordinarily shared across all call-home peers) using
// cfg.
func NewServer(schemaCtx *schema.Context, cfg *netconf.Config, opts ...Option) (*Server, error) {
	s := &Server{
		network:   "tcp",
		addr:      "0.0.0.0:4334",
		upgraders: make(map[string]Upgrader),
		schemaCtx: schemaCtx,
		cfg:       cfg,
		clients:   make(chan *Client),
		errors:    make(chan *ClientError),
	}
	for _, opt := range opts {
		opt(s)
	}
	switch s.network {
	case "tcp", "tcp4", "tcp6":
	default:
		return nil, fmt.Errorf("callhome: invalid network %q", s.network)
	}
	return s, nil
}

// Listen blocks accepting connections until the listener is closed, sending
// each completed session to Clients() and each failure to Errors().
func (s *Server) Listen() error {
	ln, err := net.Listen(s.network, s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	defer s.Close() // nolint: errcheck

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	addr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		s.errors <- &ClientError{Address: conn.RemoteAddr().String(), Err: errors.New("callhome: non-TCP peer")}
		return
	}

	u, ok := s.upgraders[addr.IP.String()]
	if !ok {
		s.errors <- &ClientError{Address: addr.String(), Err: ErrNoClientConfig}
		return
	}

	t, target, err := u.Upgrade(conn)
	if err != nil {
		s.errors <- &ClientError{Address: addr.String(), Err: err}
		return
	}

	session, err := netconf.Connect(context.Background(), t, target, s.schemaCtx, true, s.cfg)
	if err != nil {
		s.errors <- &ClientError{Address: addr.String(), Err: err}
		return
	}

	s.clients <- &Client{Session: session, Address: addr.String()}
}

// Clients returns the channel of successfully established call-home sessions.
func (s *Server) Clients() <-chan *Client { return s.clients }

// Errors returns the channel of failed call-home attempts.
func (s *Server) Errors() <-chan *ClientError { return s.errors }

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
