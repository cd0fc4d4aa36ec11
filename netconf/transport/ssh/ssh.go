// Package ssh implements netconf.Transport over an SSH "netconf" subsystem
// channel (RFC 6242 §3), the transport binding most NETCONF peers use.
package ssh

import (
	"context"
	"io"

	"golang.org/x/crypto/ssh"
)

// Dialer obtains an *ssh.Client for a transport to connect over. The two
// implementations below cover "dial a new TCP connection" and "reuse a
// client the caller already established".
type Dialer interface {
	Dial(ctx context.Context) (*ssh.Client, error)
	// Close closes the client returned by an earlier Dial call, if this
	// Dialer owns its lifecycle (a reused client is left running).
	Close(*ssh.Client) error
}

// NewDialer builds a Dialer that opens a fresh TCP+SSH connection to target
// using clientConfig.
func NewDialer(target string, clientConfig *ssh.ClientConfig) Dialer {
	return &tcpDialer{target: target, config: clientConfig}
}

type tcpDialer struct {
	target string
	config *ssh.ClientConfig
}

func (d *tcpDialer) Dial(context.Context) (*ssh.Client, error) {
	return ssh.Dial("tcp", d.target, d.config)
}

func (d *tcpDialer) Close(cli *ssh.Client) error {
	if cli == nil {
		return nil
	}
	return cli.Close()
}

// NewReusingDialer builds a Dialer over an already-connected *ssh.Client
// that this transport does not own; Close is a no-op.
func NewReusingDialer(client *ssh.Client) Dialer {
	return &reusingDialer{client: client}
}

type reusingDialer struct {
	client *ssh.Client
}

func (d *reusingDialer) Dial(context.Context) (*ssh.Client, error) { return d.client, nil }
func (d *reusingDialer) Close(*ssh.Client) error                   { return nil }

// transport implements netconf.Transport by requesting the "netconf" SSH
// subsystem on a session channel and exposing its stdin/stdout pipes as a
// single io.ReadWriteCloser.
type transport struct {
	client  *ssh.Client
	session *ssh.Session
	r       io.Reader
	w       io.WriteCloser
	dialer  Dialer
}

// Dial opens a new SSH connection via dialer and requests the "netconf"
// subsystem on it, returning a netconf.Transport (an io.ReadWriteCloser)
// suitable for netconf.Connect.
func Dial(ctx context.Context, dialer Dialer) (rwc io.ReadWriteCloser, target string, err error) {
	t := &transport{dialer: dialer}

	defer func() {
		if err != nil {
			t.Close() // nolint: errcheck
		}
	}()

	if t.client, err = dialer.Dial(ctx); err != nil {
		return nil, "", err
	}
	if t.session, err = t.client.NewSession(); err != nil {
		return nil, "", err
	}
	if err = t.session.RequestSubsystem("netconf"); err != nil {
		return nil, "", err
	}
	if t.r, err = t.session.StdoutPipe(); err != nil {
		return nil, "", err
	}
	if t.w, err = t.session.StdinPipe(); err != nil {
		return nil, "", err
	}

	return t, t.client.RemoteAddr().String(), nil
}

func (t *transport) Read(p []byte) (int, error)  { return t.r.Read(p) }
func (t *transport) Write(p []byte) (int, error) { return t.w.Write(p) }

// Close tears down, in order, the stdin pipe, the SSH session and (if this
// transport owns it) the SSH client. It returns the client's close error if
// there is one, else the stdin pipe's, else the session's.
func (t *transport) Close() error {
	var writeErr, sessionErr error
	if t.w != nil {
		writeErr = t.w.Close()
	}
	if t.session != nil {
		sessionErr = t.session.Close()
	}

	var clientErr error
	if t.dialer != nil {
		clientErr = t.dialer.Close(t.client)
	}

	switch {
	case clientErr != nil:
		return clientErr
	case writeErr != nil:
		return writeErr
	default:
		return sessionErr
	}
}
