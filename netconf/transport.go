package netconf

import "io"

// Transport is the byte-level communication path between client and server
// (component A, "out of scope" per the design — consumed here as an external
// collaborator with a named interface only). Any io.ReadWriteCloser that
// delivers the peer's framed NETCONF stream satisfies it; concrete
// implementations live in netconf/transport/ssh and netconf/transport/tls.
type Transport interface {
	io.ReadWriteCloser
}
