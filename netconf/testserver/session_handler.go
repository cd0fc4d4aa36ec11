package testserver

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/beevik/etree"
	assert "github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/ncclient/netconf-core/netconf"
	"github.com/ncclient/netconf-core/netconf/rfc6242"
)

// RequestHandler inspects one client <rpc> element and, if it recognizes the
// operation, returns the inner XML to place inside the corresponding
// <rpc-reply> (e.g. "<ok/>", or a <data> subtree). Returning handled=false
// lets a later handler (or the default <ok/>) take the request.
type RequestHandler func(op *etree.Element) (replyInner string, handled bool)

// SessionHandler drives one simulated NETCONF session over an accepted SSH
// channel: it performs the server side of the hello handshake and then
// answers each <rpc> using reqHandlers, falling back to <ok/>.
type SessionHandler struct {
	ncs          *TestNCServer
	id           uint64
	capabilities []string
	reqHandlers  []RequestHandler

	ch   ssh.Channel
	dec  *rfc6242.Decoder
	enc  *rfc6242.Encoder

	reqCount uint64
	lastReq  *etree.Element
}

func newSessionHandler(ncs *TestNCServer, id uint64) *SessionHandler {
	return &SessionHandler{ncs: ncs, id: id}
}

var notificationCounter uint64

// Handle implements testserver.SSHHandler: it completes the hello exchange
// on ch and then services <rpc> requests until the channel closes.
func (h *SessionHandler) Handle(t assert.TestingT, ch ssh.Channel) {
	h.ch = ch
	h.dec = rfc6242.NewDecoder(ch)
	h.enc = rfc6242.NewEncoder(ch)

	if err := h.sendServerHello(); err != nil {
		return
	}
	if err := h.readClientHello(); err != nil {
		return
	}

	for {
		doc := etree.NewDocument()
		buf := make([]byte, 1<<20)
		n, err := h.dec.Read(buf)
		if err != nil {
			return
		}
		if err := doc.ReadFromBytes(buf[:n]); err != nil {
			return
		}
		root := doc.Root()
		if root == nil || root.Tag != "rpc" {
			continue
		}
		h.handleRPC(root)
	}
}

func (h *SessionHandler) sendServerHello() error {
	doc := etree.NewDocument()
	hello := doc.CreateElement("hello")
	hello.CreateAttr("xmlns", netconf.NetconfNamespace)
	caps := hello.CreateElement("capabilities")
	for _, c := range h.capabilities {
		caps.CreateElement("capability").SetText(c)
	}
	hello.CreateElement("session-id").SetText(strconv.FormatUint(h.id, 10))
	return h.write(doc)
}

func (h *SessionHandler) readClientHello() error {
	buf := make([]byte, 1<<16)
	n, err := h.dec.Read(buf)
	if err != nil {
		return err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(buf[:n]); err != nil {
		return err
	}
	if root := doc.Root(); root == nil || root.Tag != "hello" {
		return fmt.Errorf("expected client hello")
	}
	if hasChunkedCap(h.capabilities) {
		rfc6242.SetChunkedFraming(h.dec, h.enc)
	}
	return nil
}

func hasChunkedCap(caps []string) bool {
	for _, c := range caps {
		if c == netconf.CapBase11 {
			return true
		}
	}
	return false
}

// ReqCount reports how many <rpc> requests this handler has serviced.
func (h *SessionHandler) ReqCount() int {
	return int(atomic.LoadUint64(&h.reqCount))
}

// LastReq returns the operation element of the most recently serviced
// <rpc>, or nil if none has been handled yet.
func (h *SessionHandler) LastReq() *etree.Element {
	return h.lastReq
}

func (h *SessionHandler) handleRPC(root *etree.Element) {
	atomic.AddUint64(&h.reqCount, 1)
	msgID := root.SelectAttrValue("message-id", "")
	var op *etree.Element
	for _, c := range root.ChildElements() {
		op = c
		break
	}
	h.lastReq = op

	inner := "<ok/>"
	if op != nil {
		for _, rh := range h.reqHandlers {
			if out, handled := rh(op); handled {
				inner = out
				break
			}
		}
	}

	doc := etree.NewDocument()
	reply := doc.CreateElement("rpc-reply")
	reply.CreateAttr("xmlns", netconf.NetconfNamespace)
	reply.CreateAttr("message-id", msgID)
	frag := etree.NewDocument()
	if err := frag.ReadFromString("<_>" + inner + "</_>"); err == nil {
		for _, child := range frag.Root().ChildElements() {
			reply.AddChild(child.Copy())
		}
	}
	h.write(doc) // nolint: errcheck
}

// SendNotification emits a <notification> carrying eventXML (the inner
// event element, e.g. "<my-event xmlns=\"...\">...</my-event>").
func (h *SessionHandler) SendNotification(eventXML string) error {
	atomic.AddUint64(&notificationCounter, 1)
	doc := etree.NewDocument()
	notif := doc.CreateElement("notification")
	notif.CreateAttr("xmlns", netconf.NotificationNamespace)
	notif.CreateElement("eventTime").SetText("1970-01-01T00:00:00Z")
	frag := etree.NewDocument()
	if err := frag.ReadFromString("<_>" + eventXML + "</_>"); err != nil {
		return err
	}
	for _, child := range frag.Root().ChildElements() {
		notif.AddChild(child.Copy())
	}
	return h.write(doc)
}

func (h *SessionHandler) write(doc *etree.Document) error {
	if _, err := doc.WriteTo(h.enc); err != nil {
		return err
	}
	return h.enc.EndOfMessage()
}

// Close closes the underlying SSH channel, if any.
func (h *SessionHandler) Close() {
	if h.ch != nil {
		h.ch.Close() // nolint: errcheck
	}
}
