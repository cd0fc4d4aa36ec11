// Package netconf implements the client-side core of a NETCONF (RFC 6241)
// session: hello handshake, on-demand YANG schema resolution, a concurrent
// RPC/notification multiplexer keyed on message-id, and a typed RPC builder
// with reply classification. Transport, schema parsing and the server side
// are external collaborators consumed through small interfaces rather than
// implemented here.
package netconf
