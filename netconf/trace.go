package netconf

import (
	"context"
	"time"

	"github.com/imdario/mergo"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

// unique type to prevent assignment collision on the context key.
type clientTraceContextKey struct{}

// ContextClientTrace returns the Trace associated with ctx, defaulting any
// unset hook to the corresponding no-op, exactly as the source's
// mergo.Merge-against-NoOp pattern does.
func ContextClientTrace(ctx context.Context) *ClientTrace {
	trace, _ := ctx.Value(clientTraceContextKey{}).(*ClientTrace)
	if trace == nil {
		trace = NoOpLoggingHooks
	} else {
		_ = mergo.Merge(trace, NoOpLoggingHooks)
	}
	return trace
}

// WithClientTrace returns a context whose NETCONF operations will invoke the
// supplied trace hooks.
func WithClientTrace(ctx context.Context, trace *ClientTrace) context.Context {
	return context.WithValue(ctx, clientTraceContextKey{}, trace)
}

// ClientTrace defines hook points fired around connection, handshake, I/O,
// and RPC execution, the structured-logging/observability seam the source
// calls client tracing.
type ClientTrace struct {
	ConnectStart     func(target string)
	ConnectDone      func(target string, err error, d time.Duration)
	DialStart        func(clientConfig *ssh.ClientConfig, target string)
	DialDone         func(clientConfig *ssh.ClientConfig, target string, err error, d time.Duration)
	HelloDone        func(sessionID uint64, capabilities []string)
	ConnectionClosed func(target string, err error)

	ReadStart func(buf []byte)
	ReadDone  func(buf []byte, c int, err error, d time.Duration)
	WriteStart func(buf []byte)
	WriteDone  func(buf []byte, c int, err error, d time.Duration)

	Error func(context, target string, err error)

	NotificationReceived func(eventType string)
	NotificationDropped  func(eventType string)

	ExecuteStart func(req Request, async bool)
	ExecuteDone  func(req Request, async bool, reply *Reply, err error, d time.Duration)

	// SchemaLoad fires once per module load attempt during capability
	// resolution, success or failure.
	SchemaLoad func(module, revision string, err error)
}

var log = logrus.WithField("component", "netconf")

// DefaultLoggingHooks logs only errors, at Error level via logrus.
var DefaultLoggingHooks = &ClientTrace{
	Error: func(context, target string, err error) {
		log.WithFields(logrus.Fields{"context": context, "target": target}).WithError(err).Error("netconf error")
	},
}

// MetricLoggingHooks logs connection/read/write/execute timings as
// structured fields (target, took_ms), the pattern the retrieval pack's
// logrus-backed services use throughout.
var MetricLoggingHooks = &ClientTrace{
	ConnectDone: func(target string, err error, d time.Duration) {
		log.WithFields(logrus.Fields{"target": target, "took_ms": d.Milliseconds()}).WithError(err).Debug("connect done")
	},
	DialDone: func(clientConfig *ssh.ClientConfig, target string, err error, d time.Duration) {
		log.WithFields(logrus.Fields{"target": target, "took_ms": d.Milliseconds()}).WithError(err).Debug("dial done")
	},
	ReadDone: func(p []byte, c int, err error, d time.Duration) {
		log.WithFields(logrus.Fields{"len": c, "took_ms": d.Milliseconds()}).WithError(err).Trace("read done")
	},
	WriteDone: func(p []byte, c int, err error, d time.Duration) {
		log.WithFields(logrus.Fields{"len": c, "took_ms": d.Milliseconds()}).WithError(err).Trace("write done")
	},
	Error: DefaultLoggingHooks.Error,
	ExecuteDone: func(req Request, async bool, reply *Reply, err error, d time.Duration) {
		log.WithFields(logrus.Fields{"async": async, "took_ms": d.Milliseconds()}).WithError(err).Debug("execute done")
	},
}

// DiagnosticLoggingHooks additionally logs every start event, at Debug level
// except ReadStart/WriteStart, which log at Trace level.
var DiagnosticLoggingHooks = &ClientTrace{
	ConnectStart: func(target string) {
		log.WithField("target", target).Debug("connect start")
	},
	ConnectDone: MetricLoggingHooks.ConnectDone,
	DialStart: func(clientConfig *ssh.ClientConfig, target string) {
		log.WithField("target", target).Debug("dial start")
	},
	DialDone: MetricLoggingHooks.DialDone,
	ConnectionClosed: func(target string, err error) {
		log.WithField("target", target).WithError(err).Debug("connection closed")
	},
	ReadStart: func(p []byte) {
		log.WithField("capacity", len(p)).Trace("read start")
	},
	ReadDone: MetricLoggingHooks.ReadDone,
	WriteStart: func(p []byte) {
		log.WithField("len", len(p)).Trace("write start")
	},
	WriteDone: MetricLoggingHooks.WriteDone,
	Error:     DefaultLoggingHooks.Error,
	NotificationReceived: func(eventType string) {
		log.WithField("event", eventType).Debug("notification received")
	},
	NotificationDropped: func(eventType string) {
		log.WithField("event", eventType).Warn("notification dropped")
	},
	ExecuteStart: func(req Request, async bool) {
		log.WithField("async", async).Debugf("execute start %T", req)
	},
	ExecuteDone: func(req Request, async bool, reply *Reply, err error, d time.Duration) {
		log.WithFields(logrus.Fields{"async": async, "took_ms": d.Milliseconds()}).WithError(err).Debugf("execute done %T", req)
	},
	SchemaLoad: func(module, revision string, err error) {
		log.WithFields(logrus.Fields{"module": module, "revision": revision}).WithError(err).Debug("schema load")
	},
}

// NoOpLoggingHooks is the all-fields-present, do-nothing trace used as the
// mergo.Merge default target so ContextClientTrace never returns a struct
// with a nil function field.
var NoOpLoggingHooks = &ClientTrace{
	ConnectStart:         func(target string) {},
	ConnectDone:          func(target string, err error, d time.Duration) {},
	DialStart:            func(clientConfig *ssh.ClientConfig, target string) {},
	DialDone:             func(clientConfig *ssh.ClientConfig, target string, err error, d time.Duration) {},
	ConnectionClosed:     func(target string, err error) {},
	HelloDone:            func(sessionID uint64, capabilities []string) {},
	ReadStart:            func(p []byte) {},
	ReadDone:             func(p []byte, c int, err error, d time.Duration) {},
	WriteStart:           func(p []byte) {},
	WriteDone:            func(p []byte, c int, err error, d time.Duration) {},
	Error:                func(context, target string, err error) {},
	NotificationReceived: func(eventType string) {},
	NotificationDropped:  func(eventType string) {},
	ExecuteStart:         func(req Request, async bool) {},
	ExecuteDone:          func(req Request, async bool, reply *Reply, err error, d time.Duration) {},
	SchemaLoad:           func(module, revision string, err error) {},
}
