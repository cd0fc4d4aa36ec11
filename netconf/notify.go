package netconf

import (
	"github.com/beevik/etree"
)

// notifyDispatcher is the one-worker-per-session notification pump of
// component H: it repeatedly drains the router's notification queue and
// forwards each <notification> element to the subscriber's channel,
// dropping (and counting, via the trace hooks) one that arrives while the
// channel is full rather than blocking the dispatcher.
type notifyDispatcher struct {
	nchan chan *etree.Element
	stop  chan struct{}
	done  chan struct{}
}

// startNotifyDispatcher launches the dispatcher goroutine for this session.
// Only one dispatcher may run at a time; a second Subscribe call replaces
// the first, stopping it first.
func (s *Session) startNotifyDispatcher(nchan chan *etree.Element) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if s.notify != nil {
		s.stopNotifyDispatcherLocked()
	}

	d := &notifyDispatcher{
		nchan: nchan,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	s.notify = d

	go s.runNotifyDispatcher(d)
}

func (s *Session) runNotifyDispatcher(d *notifyDispatcher) {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			return
		default:
		}

		root, err := s.router.awaitNotification(s.cfg.NotifThreadSleep)
		if err != nil {
			if IsWouldBlock(err) {
				continue
			}
			// Any other error means the router (and so the session) is
			// shutting down; nothing more will ever arrive.
			return
		}

		eventType := root.Tag
		for _, c := range root.ChildElements() {
			if c.Tag != "eventTime" {
				eventType = c.Tag
				break
			}
		}

		select {
		case d.nchan <- root:
			s.trace.NotificationReceived(eventType)
		default:
			s.trace.NotificationDropped(eventType)
		}

		if eventType == "notificationComplete" {
			return
		}
	}
}

// stopNotifyDispatcher stops the active dispatcher, if any, and waits for
// its goroutine to exit.
func (s *Session) stopNotifyDispatcher() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.stopNotifyDispatcherLocked()
}

func (s *Session) stopNotifyDispatcherLocked() {
	if s.notify == nil {
		return
	}
	close(s.notify.stop)
	<-s.notify.done
	s.notify = nil
}
