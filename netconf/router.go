package netconf

import (
	"container/list"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/jellydator/ttlcache/v3"
)

// parkedReply is a reply the background dispatcher has read off the wire but
// that nobody has claimed yet, alongside the request that produced it (the
// classifier needs the request's variant to select the right output schema).
type parkedReply struct {
	root *etree.Element
	req  Request
}

// router owns the per-session queues and condition variable component D
// ("get_msg") is built around. It is embedded in Session rather than
// exported directly.
type router struct {
	mu   sync.Mutex
	cond *sync.Cond

	// replies retains a parked rpc-reply keyed by message-id until its
	// waiter arrives or ReplyTTL elapses, per the "retain unmatched
	// replies" open-question resolution. In DropUnmatchedReplies mode a
	// reply for an id nobody is currently waiting on is logged and
	// discarded instead of being inserted here.
	replies *ttlcache.Cache[string, *parkedReply]

	// notifications preserves wire arrival order for a single dispatcher/
	// waiter, so it is a plain FIFO list rather than a map.
	notifications *list.List

	// waiting tracks message-ids some goroutine is actively blocked on, used
	// by DropUnmatchedReplies mode to decide whether an arriving reply
	// should be parked at all.
	waiting map[string]bool

	dropUnmatched bool

	// closed is set by stop, so a blocked awaitReply/awaitNotification wakes
	// and returns a transport error instead of waiting forever on a session
	// that will never deliver anything again.
	closed bool
}

func newRouter(replyTTL time.Duration, dropUnmatched bool) *router {
	r := &router{
		notifications: list.New(),
		waiting:       make(map[string]bool),
		dropUnmatched: dropUnmatched,
		replies: ttlcache.New[string, *parkedReply](
			ttlcache.WithTTL[string, *parkedReply](replyTTL),
		),
	}
	r.cond = sync.NewCond(&r.mu)
	go r.replies.Start()
	return r
}

// stop tears down the reply cache's eviction goroutine and wakes every
// goroutine parked in awaitReply/awaitNotification so a closed or invalidated
// session never leaves a caller blocked indefinitely.
func (r *router) stop() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cond.Broadcast()
	r.replies.Stop()
}

// deliverReply is called by the background dispatcher when a <rpc-reply> is
// read off the wire. It parks the reply and wakes any goroutine waiting in
// awaitReply, unless DropUnmatchedReplies is set and nobody is currently
// waiting on this id, in which case it is dropped (the source-literal
// "log-and-discard" behaviour), with onDropped invoked for tracing.
func (r *router) deliverReply(msgID string, root *etree.Element, req Request, onDropped func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dropUnmatched && !r.waiting[msgID] {
		if onDropped != nil {
			onDropped()
		}
		return
	}
	r.replies.Set(msgID, &parkedReply{root: root, req: req}, ttlcache.DefaultTTL)
	r.cond.Broadcast()
}

// deliverNotification is called by the background dispatcher for a
// <notification>.
func (r *router) deliverNotification(root *etree.Element) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications.PushBack(root)
	r.cond.Broadcast()
}

// awaitReply implements the reply half of get_msg: drain path first (a
// matching reply may already be parked), else wait on the condition
// variable until one arrives or timeout elapses.
func (r *router) awaitReply(msgID string, timeout time.Duration) (*parkedReply, error) {
	r.mu.Lock()
	r.waiting[msgID] = true
	defer func() {
		r.mu.Lock()
		delete(r.waiting, msgID)
		r.mu.Unlock()
	}()
	defer r.mu.Unlock()

	deadline := computeDeadline(timeout)
	for {
		if item := r.replies.Get(msgID); item != nil {
			r.replies.Delete(msgID)
			return item.Value(), nil
		}
		if r.closed {
			return nil, transportError(nil, "session closed while awaiting reply to message-id %s", msgID)
		}
		if timedOut := r.waitOrDeadline(deadline); timedOut {
			return nil, wouldBlockError("no reply for message-id %s within timeout", msgID)
		}
	}
}

// awaitNotification implements the notification half of get_msg.
func (r *router) awaitNotification(timeout time.Duration) (*etree.Element, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deadline := computeDeadline(timeout)
	for {
		if front := r.notifications.Front(); front != nil {
			r.notifications.Remove(front)
			return front.Value.(*etree.Element), nil
		}
		if r.closed {
			return nil, transportError(nil, "session closed while awaiting notification")
		}
		if timedOut := r.waitOrDeadline(deadline); timedOut {
			return nil, wouldBlockError("no notification within timeout")
		}
	}
}

// waitOrDeadline blocks on the condition variable (mu must be held by the
// caller) until woken or deadline passes, returning true on timeout. A zero
// deadline.IsZero() means block indefinitely, matching the "negative timeout"
// API contract of component D.
func (r *router) waitOrDeadline(deadline time.Time) (timedOut bool) {
	if deadline.IsZero() {
		r.cond.Wait()
		return false
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return true
	}

	woken := make(chan struct{})
	timer := time.AfterFunc(remaining, func() {
		r.mu.Lock()
		close(woken)
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	defer timer.Stop()

	r.cond.Wait()

	select {
	case <-woken:
		return true
	default:
		return false
	}
}

func computeDeadline(timeout time.Duration) time.Time {
	if timeout < 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
