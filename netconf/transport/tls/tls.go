// Package tls implements netconf.Transport over RFC 7589 (NETCONF over
// TLS): a bare *tls.Conn used as an io.ReadWriteCloser, since RFC 6242
// framing is applied one layer up by the core session, not by the
// transport itself.
package tls

import (
	"context"
	"crypto/tls"
	"io"
	"net"
)

// Dial connects to addr over TLS and returns a netconf.Transport (an
// io.ReadWriteCloser) ready for netconf.Connect, along with the peer
// address to use as the session's trace target.
func Dial(ctx context.Context, network, addr string, config *tls.Config) (rwc io.ReadWriteCloser, target string, err error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, "", err
	}

	tlsConn := tls.Client(conn, config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		tlsConn.Close() // nolint: errcheck
		return nil, "", err
	}

	return tlsConn, tlsConn.RemoteAddr().String(), nil
}
