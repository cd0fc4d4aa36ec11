package netconf

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/beevik/etree"
	"github.com/ncclient/netconf-core/netconf/rfc6242"
	"github.com/ncclient/netconf-core/netconf/schema"
)

// sessionStatus mirrors the starting/running/closing/invalid lifecycle.
type sessionStatus int32

const (
	statusStarting sessionStatus = iota
	statusRunning
	statusClosing
	statusInvalid
)

// Session is one NETCONF session multiplexed over a single Transport: the
// hello handshake, capability resolution, the reply/notification router and
// the public RPC surface components C/D/E/F/G/H compose around.
type Session struct {
	id uint64

	status int32 // sessionStatus, accessed atomically

	t   Transport
	dec *rfc6242.Decoder
	enc *rfc6242.Encoder

	schemaCtx    *schema.Context
	sharedSchema bool
	capabilities CapabilitySet

	trace  *ClientTrace
	target string
	cfg    *Config

	writeLock *timedLock
	router    *router

	msgID uint64 // atomic counter, last-assigned message-id

	// pending maps an outstanding message-id (string form) to the request
	// that produced it, consulted by the dispatcher so classifyReply knows
	// which output schema to apply.
	pending sync.Map

	notifyMu sync.Mutex
	notify   *notifyDispatcher

	// confirmMu guards confirmedCommits, the small in-session table of
	// outstanding confirmed commits (keyed by persist-id, "" for a
	// non-persistent confirmed commit) that a later CancelCommitRequest is
	// validated against.
	confirmMu        sync.Mutex
	confirmedCommits map[string]bool

	closeOnce sync.Once
}

// Connect performs the hello handshake over t (already established by a
// transport package such as netconf/transport/ssh) and returns a running
// Session. schemaCtx may be shared across sessions (sharedSchema true), in
// which case Close leaves it running for its other owners.
func Connect(ctx context.Context, t Transport, target string, schemaCtx *schema.Context, sharedSchema bool, cfg *Config) (*Session, error) {
	cfg, err := withDefaults(cfg)
	if err != nil {
		return nil, internalError("merge config defaults: %v", err)
	}
	trace := ContextClientTrace(ctx)

	s := &Session{
		t:                t,
		dec:              rfc6242.NewDecoder(t, rfc6242.WithScannerBufferSize(cfg.MaxMessageBytes)),
		enc:              rfc6242.NewEncoder(t),
		schemaCtx:        schemaCtx,
		sharedSchema:     sharedSchema,
		trace:            trace,
		target:           target,
		cfg:              cfg,
		writeLock:        newTimedLock(),
		router:           newRouter(cfg.ReplyTTL, cfg.DropUnmatchedReplies),
		status:           int32(statusStarting),
		confirmedCommits: make(map[string]bool),
	}

	trace.ConnectStart(target)
	start := time.Now()

	if err := s.sendClientHello(); err != nil {
		trace.ConnectDone(target, err, time.Since(start))
		s.t.Close() // nolint: errcheck
		return nil, err
	}

	if err := s.readServerHello(); err != nil {
		trace.ConnectDone(target, err, time.Since(start))
		s.t.Close() // nolint: errcheck
		return nil, err
	}

	atomic.StoreInt32(&s.status, int32(statusRunning))
	trace.ConnectDone(target, nil, time.Since(start))
	trace.HelloDone(s.id, s.capabilities.All())

	go s.dispatchLoop()

	return s, s.resolveCapabilities()
}

// ID returns the server-allocated session-id from the hello exchange.
func (s *Session) ID() uint64 { return s.id }

// ServerCapabilities returns the peer's advertised capability URIs.
func (s *Session) ServerCapabilities() []string { return s.capabilities.All() }

// Execute sends req and blocks for its reply, applying ctx's deadline (if
// any) to both the write-lock acquisition and the reply wait.
func (s *Session) Execute(ctx context.Context, req Request) (reply *Reply, err error) {
	s.trace.ExecuteStart(req, false)
	start := time.Now()
	defer func() { s.trace.ExecuteDone(req, false, reply, err, time.Since(start)) }()

	id, err := s.send(ctx, req)
	if err != nil {
		return nil, err
	}
	msgID := strconv.FormatUint(id, 10)
	defer s.pending.Delete(msgID)

	parked, err := s.router.awaitReply(msgID, timeoutFromContext(ctx))
	if err != nil {
		return nil, err
	}

	reply, err = classifyReply(parked.root, parked.req)
	if err != nil {
		return reply, err
	}
	if reply.Kind == ReplyErrorKind {
		if first := reply.FirstError(); first != nil {
			return reply, first
		}
	}
	s.recordConfirmedCommit(req, reply)
	return reply, nil
}

// ExecuteAsync sends req and arranges for its reply to be delivered to
// rchan, which is closed instead of receiving a value if the wait fails.
func (s *Session) ExecuteAsync(ctx context.Context, req Request, rchan chan *Reply) error {
	s.trace.ExecuteStart(req, true)
	start := time.Now()

	id, err := s.send(ctx, req)
	if err != nil {
		s.trace.ExecuteDone(req, true, nil, err, time.Since(start))
		return err
	}
	msgID := strconv.FormatUint(id, 10)

	go func() {
		defer s.pending.Delete(msgID)
		parked, err := s.router.awaitReply(msgID, -1)
		var reply *Reply
		if err == nil {
			reply, err = classifyReply(parked.root, parked.req)
		}
		s.trace.ExecuteDone(req, true, reply, err, time.Since(start))
		if err != nil {
			s.trace.Error("execute-async", s.target, err)
			close(rchan)
			return
		}
		s.recordConfirmedCommit(req, reply)
		rchan <- reply
	}()
	return nil
}

// checkConfirmedCommit rejects a CancelCommitRequest up front, before it is
// even built and sent, if its persist-id (or the anonymous, non-persistent
// case) does not name a confirmed commit this session actually has
// outstanding.
func (s *Session) checkConfirmedCommit(req Request) error {
	r, ok := req.(CancelCommitRequest)
	if !ok {
		return nil
	}
	id := pointer.GetString(r.PersistID)
	s.confirmMu.Lock()
	defer s.confirmMu.Unlock()
	if !s.confirmedCommits[id] {
		return argError("cancel-commit: no outstanding confirmed commit for persist-id %q", id)
	}
	return nil
}

// recordConfirmedCommit updates the outstanding-confirmed-commit table once
// a request that changes confirmed-commit state has itself succeeded: a
// confirmed CommitRequest opens an entry, a non-confirmed CommitRequest (the
// final confirming commit) or a successful cancel-commit / discard-changes
// closes it.
func (s *Session) recordConfirmedCommit(req Request, reply *Reply) {
	if reply == nil || reply.Kind != ReplyOk {
		return
	}
	s.confirmMu.Lock()
	defer s.confirmMu.Unlock()
	switch r := req.(type) {
	case CommitRequest:
		if r.Confirmed {
			s.confirmedCommits[pointer.GetString(r.Persist)] = true
		} else {
			delete(s.confirmedCommits, pointer.GetString(r.PersistID))
		}
	case CancelCommitRequest:
		delete(s.confirmedCommits, pointer.GetString(r.PersistID))
	case DiscardChangesRequest:
		for id := range s.confirmedCommits {
			delete(s.confirmedCommits, id)
		}
	}
}

// Subscribe issues req (ordinarily a SubscribeRequest) and, if it succeeds,
// starts delivering received <notification> elements to nchan.
func (s *Session) Subscribe(ctx context.Context, req Request, nchan chan *etree.Element) (*Reply, error) {
	reply, err := s.Execute(ctx, req)
	if err != nil {
		return reply, err
	}
	s.startNotifyDispatcher(nchan)
	return reply, nil
}

// Close tears down the session: the notification dispatcher, the
// transport, the router (waking any blocked caller with a transport error),
// and, unless the schema context is shared with other sessions, the schema
// context itself.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		atomic.StoreInt32(&s.status, int32(statusClosing))
		s.stopNotifyDispatcher()
		s.router.stop()
		if err := s.t.Close(); err != nil {
			s.trace.Error("close", s.target, err)
		}
		if !s.sharedSchema {
			s.schemaCtx.Close()
		}
		s.trace.ConnectionClosed(s.target, nil)
	})
}

// send builds and writes req under the write lock, registering it in
// pending before the bytes hit the wire so a reply racing the write's
// return is never missed.
func (s *Session) send(ctx context.Context, req Request) (msgID uint64, err error) {
	if sessionStatus(atomic.LoadInt32(&s.status)) != statusRunning {
		return 0, transportError(nil, "session is not running")
	}

	if err := s.checkConfirmedCommit(req); err != nil {
		return 0, err
	}

	id := atomic.AddUint64(&s.msgID, 1)
	doc, err := buildRPC(s.schemaCtx, s.capabilities, id, req)
	if err != nil {
		return 0, err
	}

	ok, _ := s.writeLock.acquire(timeoutFromContext(ctx))
	if !ok {
		return 0, wouldBlockError("timed out acquiring write lock for message-id %d", id)
	}
	defer s.writeLock.release()

	key := strconv.FormatUint(id, 10)
	s.pending.Store(key, req)
	if err := s.writeFramedDoc(doc); err != nil {
		s.pending.Delete(key)
		return 0, err
	}
	return id, nil
}

// dispatchLoop is the session's single background reader: it owns the
// transport's read side for the session's lifetime, classifying each framed
// message by its root element and routing it to the reply store or the
// notification queue. A <hello> or <rpc> arriving here (i.e. after the
// initial handshake) is a protocol violation and invalidates the session.
func (s *Session) dispatchLoop() {
	for {
		doc, err := s.readFramedDoc()
		if err != nil {
			s.invalidate(err)
			return
		}
		root := doc.Root()
		if root == nil {
			continue
		}
		switch root.Tag {
		case "rpc-reply":
			s.handleReply(root)
		case "notification":
			s.handleNotification(root)
		case "hello", "rpc":
			s.invalidate(protocolError(nil, "unexpected <%s> received from peer after handshake", root.Tag))
			return
		default:
			s.trace.Error("dispatch", s.target, protocolError(nil, "unrecognized message root <%s>", root.Tag))
		}
	}
}

func (s *Session) handleReply(root *etree.Element) {
	msgID := root.SelectAttrValue("message-id", "")
	var req Request
	if v, ok := s.pending.Load(msgID); ok {
		req, _ = v.(Request)
	}
	s.router.deliverReply(msgID, root, req, func() {
		s.trace.Error("dispatch", s.target, protocolError(nil, "dropped unmatched reply message-id %s", msgID))
	})
}

func (s *Session) handleNotification(root *etree.Element) {
	s.router.deliverNotification(root)
}

// invalidate marks the session unusable and wakes every blocked caller so
// none waits forever on a transport that has failed.
func (s *Session) invalidate(err error) {
	atomic.StoreInt32(&s.status, int32(statusInvalid))
	s.trace.ConnectionClosed(s.target, err)
	s.router.stop()
}

// readFramedDoc reads exactly one RFC 6242-framed message off the transport
// and parses it as an XML document. Messages larger than Config.
// MaxMessageBytes are not supported; the scanner buffer is sized to that
// bound, so such a peer message surfaces here as a transport error rather
// than silently truncating.
func (s *Session) readFramedDoc() (*etree.Document, error) {
	buf := make([]byte, s.cfg.MaxMessageBytes)
	s.trace.ReadStart(buf)
	start := time.Now()
	n, err := s.dec.Read(buf)
	s.trace.ReadDone(buf, n, err, time.Since(start))
	if err != nil {
		return nil, transportError(err, "read framed message")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(buf[:n]); err != nil {
		return nil, protocolError(err, "parse framed message")
	}
	return doc, nil
}

// writeFramedDoc serializes doc and terminates it with the active framing
// marker (end-of-message or chunk-end, per the encoder's current mode).
func (s *Session) writeFramedDoc(doc *etree.Document) error {
	s.trace.WriteStart(nil)
	start := time.Now()
	n, err := doc.WriteTo(s.enc)
	if err == nil {
		err = s.enc.EndOfMessage()
	}
	s.trace.WriteDone(nil, int(n), err, time.Since(start))
	if err != nil {
		return transportError(err, "write framed message")
	}
	return nil
}

// contextWithTimeout is a small convenience wrapper so internal callers (the
// schema fetch callback) don't need their own "context" import just to build
// a bounded context.
func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

// timeoutFromContext derives a timedLock-style timeout (negative meaning
// block indefinitely) from ctx's deadline, if any.
func timeoutFromContext(ctx context.Context) time.Duration {
	if ctx == nil {
		return -1
	}
	if dl, ok := ctx.Deadline(); ok {
		return time.Until(dl)
	}
	return -1
}
