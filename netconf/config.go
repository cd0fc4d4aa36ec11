package netconf

import (
	"time"

	"github.com/imdario/mergo"
)

// Config defines properties that configure netconf session behaviour. It is
// grounded on the source library's Config/DefaultConfig + mergo.Merge
// defaulting pattern, extended with the timeouts and schema options the
// handshake/schema resolver and router need.
type Config struct {
	// SetupTimeoutSecs is the time the client will wait to receive a hello
	// message from the server.
	SetupTimeoutSecs int

	// DisableChunkedCodec prevents advertising the chunked-framing (1.1)
	// capability, forcing end-of-message framing even if the peer supports 1.1.
	DisableChunkedCodec bool

	// SchemaDir names an on-disk directory of .yang schema files. No part of
	// this package reads it: the directory a session falls back to is the one
	// its schema.Context was created with (NewClient's schemaSearchPath).
	SchemaDir string

	// GetSchemaTimeout bounds each <get-schema> round trip issued by the
	// module-fetch callback during capability resolution.
	GetSchemaTimeout time.Duration

	// NotifThreadSleep is the fallback poll interval used by the notification
	// dispatcher on a spurious wakeup; the primary signaling path is the
	// session's condition variable, not this sleep.
	NotifThreadSleep time.Duration

	// DropUnmatchedReplies reverts to source-literal behaviour: a reply whose
	// message-id the current waiter doesn't want is logged and discarded
	// rather than retained for a later waiter.
	DropUnmatchedReplies bool

	// ReplyTTL bounds how long an unmatched reply is retained (when
	// DropUnmatchedReplies is false) before it is evicted. Eviction is not
	// logged and fires no trace hook.
	ReplyTTL time.Duration

	// MaxMessageBytes bounds both the rfc6242 scanner buffer and the
	// single-read buffer used to pull a fully framed message off the wire.
	MaxMessageBytes int
}

// DefaultConfig is applied, via mergo.Merge, to fill any zero-valued field of
// a caller-supplied Config.
var DefaultConfig = &Config{
	SetupTimeoutSecs:     5,
	DisableChunkedCodec:  false,
	SchemaDir:            "/etc/netconf/schemas",
	GetSchemaTimeout:     250 * time.Millisecond,
	NotifThreadSleep:     50 * time.Millisecond,
	DropUnmatchedReplies: false,
	ReplyTTL:             30 * time.Second,
	MaxMessageBytes:      4 << 20,
}

// withDefaults returns a Config with every zero-valued field of cfg filled in
// from DefaultConfig via mergo.Merge, so a caller-supplied partial Config
// (e.g. just DisableChunkedCodec set) never leaves MaxMessageBytes or
// NotifThreadSleep at a zero value that would break the reader or hang Close.
func withDefaults(cfg *Config) (*Config, error) {
	if cfg == nil {
		clone := *DefaultConfig
		return &clone, nil
	}
	merged := *cfg
	if err := mergo.Merge(&merged, *DefaultConfig); err != nil {
		return nil, err
	}
	return &merged, nil
}
