package netconf

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ErrorType classifies where an rpc-error originated.
type ErrorType string

// ErrorType values (RFC 6241 §4.3).
const (
	ErrorTypeTransport   ErrorType = "transport"
	ErrorTypeRPC         ErrorType = "rpc"
	ErrorTypeProtocol    ErrorType = "protocol"
	ErrorTypeApplication ErrorType = "application"
)

// ErrorTag enumerates the standard error-tag values of RFC 6241 §4.3.
type ErrorTag string

// The 20 standard error-tag values.
const (
	ErrInUse                 ErrorTag = "in-use"
	ErrInvalidValue          ErrorTag = "invalid-value"
	ErrTooBig                ErrorTag = "too-big"
	ErrMissingAttribute      ErrorTag = "missing-attribute"
	ErrBadAttribute          ErrorTag = "bad-attribute"
	ErrUnknownAttribute      ErrorTag = "unknown-attribute"
	ErrMissingElement        ErrorTag = "missing-element"
	ErrBadElement            ErrorTag = "bad-element"
	ErrUnknownElement        ErrorTag = "unknown-element"
	ErrUnknownNamespace      ErrorTag = "unknown-namespace"
	ErrAccessDenied          ErrorTag = "access-denied"
	ErrLockDenied            ErrorTag = "lock-denied"
	ErrResourceDenied        ErrorTag = "resource-denied"
	ErrRollbackFailed        ErrorTag = "rollback-failed"
	ErrDataExists            ErrorTag = "data-exists"
	ErrDataMissing           ErrorTag = "data-missing"
	ErrOperationNotSupported ErrorTag = "operation-not-supported"
	ErrOperationFailed       ErrorTag = "operation-failed"
	ErrPartialOperation      ErrorTag = "partial-operation"
	ErrMalformedMessage      ErrorTag = "malformed-message"
)

// ErrorSeverity is the error-severity leaf of an rpc-error.
type ErrorSeverity string

// Severity values.
const (
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
)

// RPCError is the fully decoded form of one <rpc-error> element.
type RPCError struct {
	Type         ErrorType
	Tag          ErrorTag
	Severity     ErrorSeverity
	AppTag       string
	Path         string
	Message      string
	MessageLang  string
	SessionID    string
	BadAttribute []string
	BadElement   []string
	BadNamespace []string
	OtherInfo    []string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("netconf rpc-error [%s/%s] %s: %s", e.Type, e.Tag, e.Severity, e.Message)
}

// ReplyKind discriminates the three reply variants of component G.
type ReplyKind int

// ReplyKind values.
const (
	ReplyOk ReplyKind = iota
	ReplyErrorKind
	ReplyData
)

// Reply is the classified form of an <rpc-reply>.
type Reply struct {
	Kind      ReplyKind
	MessageID string
	Errors    []*RPCError
	// Data is the schema-selected root of the reply's data content, present
	// only when Kind == ReplyData.
	Data *etree.Element
}

// FirstError returns the first error-severity RPCError, or nil if the reply
// carries only warnings (or isn't a ReplyErrorKind at all). Session.Execute
// uses this to decide whether it should itself return an error.
func (r *Reply) FirstError() *RPCError {
	for _, e := range r.Errors {
		if e.Severity == SeverityError {
			return e
		}
	}
	return nil
}

// classifyReply implements component G: given the root <rpc-reply> element
// and the originating request, produce exactly one of Ok/Error/Data.
func classifyReply(root *etree.Element, req Request) (*Reply, error) {
	msgID := root.SelectAttrValue("message-id", "")
	children := root.ChildElements()

	if len(children) == 0 {
		return nil, protocolError(nil, "rpc-reply %s has no content", msgID)
	}

	if isOk(children[0]) {
		if len(children) > 1 {
			return nil, protocolError(nil, "rpc-reply %s: <ok/> with sibling elements", msgID)
		}
		return &Reply{Kind: ReplyOk, MessageID: msgID}, nil
	}

	if isRPCError(children[0]) {
		errs, err := parseRPCErrors(children)
		if err != nil {
			return nil, err
		}
		return &Reply{Kind: ReplyErrorKind, MessageID: msgID, Errors: errs}, nil
	}

	data, err := selectData(root, req)
	if err != nil {
		return nil, err
	}
	return &Reply{Kind: ReplyData, MessageID: msgID, Data: data}, nil
}

func isOk(el *etree.Element) bool {
	return el.Tag == "ok" && (el.Space == "" || el.NamespaceURI() == NetconfNamespace)
}

func isRPCError(el *etree.Element) bool {
	return el.Tag == "rpc-error"
}

func parseRPCErrors(children []*etree.Element) ([]*RPCError, error) {
	errs := make([]*RPCError, 0, len(children))
	for _, child := range children {
		if !isRPCError(child) {
			return nil, protocolError(nil, "rpc-reply mixes rpc-error with other content")
		}
		errs = append(errs, parseOneError(child))
	}
	return errs, nil
}

// parseOneError parses a single rpc-error element. Per the first-wins rule
// for duplicate child tags, only the first occurrence of each scalar field
// is kept; a later duplicate is ignored rather than overwriting it.
func parseOneError(el *etree.Element) *RPCError {
	re := &RPCError{}
	for _, c := range el.ChildElements() {
		text := strings.TrimSpace(c.Text())
		switch c.Tag {
		case "error-type":
			if re.Type == "" {
				re.Type = ErrorType(text)
			}
		case "error-tag":
			if re.Tag == "" {
				re.Tag = ErrorTag(text)
			}
		case "error-severity":
			if re.Severity == "" {
				re.Severity = ErrorSeverity(text)
			}
		case "error-app-tag":
			if re.AppTag == "" {
				re.AppTag = text
			}
		case "error-path":
			if re.Path == "" {
				re.Path = text
			}
		case "error-message":
			if re.Message == "" {
				re.Message = text
				re.MessageLang = c.SelectAttrValue("xml:lang", "")
			}
		case "error-info":
			parseErrorInfo(c, re)
		default:
			// Unknown top-level rpc-error child: logged by the caller via
			// trace hooks, not fatal.
		}
	}
	return re
}

func parseErrorInfo(info *etree.Element, re *RPCError) {
	for _, c := range info.ChildElements() {
		text := strings.TrimSpace(c.Text())
		switch {
		case c.Tag == "session-id" && (c.Space == "" || c.NamespaceURI() == NetconfNamespace):
			re.SessionID = text
		case c.Tag == "bad-attribute" && (c.Space == "" || c.NamespaceURI() == NetconfNamespace):
			re.BadAttribute = append(re.BadAttribute, text)
		case c.Tag == "bad-element" && (c.Space == "" || c.NamespaceURI() == NetconfNamespace):
			re.BadElement = append(re.BadElement, text)
		case c.Tag == "bad-namespace" && (c.Space == "" || c.NamespaceURI() == NetconfNamespace):
			re.BadNamespace = append(re.BadNamespace, text)
		default:
			// Unknown-namespace error-info content is preserved verbatim.
			doc := etree.NewDocument()
			doc.SetRoot(c.Copy())
			out, _ := doc.WriteToString()
			re.OtherInfo = append(re.OtherInfo, out)
		}
	}
}

// selectData implements component G's per-variant schema selection for data
// replies: GetConfig/Get parse the children of <data>; GetSchema parses the
// <data> text itself; Generic falls back to the raw root; any variant with
// no defined output is a protocol error.
func selectData(root *etree.Element, req Request) (*etree.Element, error) {
	switch req.(type) {
	case GetConfigRequest, GetRequest:
		data := root.FindElement("./data")
		if data == nil {
			return nil, protocolError(nil, "expected <data> in reply to %T", req)
		}
		return data, nil
	case GetSchemaRequest:
		data := root.FindElement("./data")
		if data == nil {
			return nil, protocolError(nil, "expected <data> in reply to get-schema")
		}
		return data, nil
	case GenericRequest:
		return root, nil
	default:
		return nil, protocolError(nil, "%T has no defined data output, but reply carried data", req)
	}
}
