package netconf

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseReplyDoc(t *testing.T, xmlText string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xmlText))
	return doc.Root()
}

func TestClassifyReplyOk(t *testing.T) {
	root := parseReplyDoc(t, `<rpc-reply xmlns="`+NetconfNamespace+`" message-id="1"><ok/></rpc-reply>`)
	reply, err := classifyReply(root, LockRequest{Target: "candidate"})
	require.NoError(t, err)
	assert.Equal(t, ReplyOk, reply.Kind)
	assert.Equal(t, "1", reply.MessageID)
}

func TestClassifyReplyError(t *testing.T) {
	root := parseReplyDoc(t, `<rpc-reply xmlns="`+NetconfNamespace+`" message-id="2">
		<rpc-error>
			<error-type>protocol</error-type>
			<error-tag>lock-denied</error-tag>
			<error-severity>error</error-severity>
			<error-message>lock already held</error-message>
			<error-info><session-id>4</session-id></error-info>
		</rpc-error>
	</rpc-reply>`)

	reply, err := classifyReply(root, LockRequest{Target: "candidate"})
	require.NoError(t, err)
	require.Equal(t, ReplyErrorKind, reply.Kind)
	require.Len(t, reply.Errors, 1)

	first := reply.FirstError()
	require.NotNil(t, first)
	assert.Equal(t, ErrLockDenied, first.Tag)
	assert.Equal(t, SeverityError, first.Severity)
	assert.Equal(t, "4", first.SessionID)
	assert.Equal(t, "lock already held", first.Message)
}

func TestClassifyReplyDataForGet(t *testing.T) {
	root := parseReplyDoc(t, `<rpc-reply xmlns="`+NetconfNamespace+`" message-id="3">
		<data><interfaces><interface>eth0</interface></interfaces></data>
	</rpc-reply>`)

	reply, err := classifyReply(root, GetRequest{})
	require.NoError(t, err)
	require.Equal(t, ReplyData, reply.Kind)
	require.NotNil(t, reply.Data)
	assert.Equal(t, "interfaces", reply.Data.ChildElements()[0].Tag)
}

func TestClassifyReplyDataRequiresKnownRequestType(t *testing.T) {
	root := parseReplyDoc(t, `<rpc-reply xmlns="`+NetconfNamespace+`" message-id="4">
		<data/>
	</rpc-reply>`)

	_, err := classifyReply(root, LockRequest{Target: "candidate"})
	assert.Error(t, err)
}

func TestClassifyReplyEmptyIsProtocolError(t *testing.T) {
	root := parseReplyDoc(t, `<rpc-reply xmlns="`+NetconfNamespace+`" message-id="5"/>`)
	_, err := classifyReply(root, LockRequest{Target: "candidate"})
	require.Error(t, err)
	assert.False(t, IsWouldBlock(err))
}

func TestFirstErrorSkipsWarnings(t *testing.T) {
	reply := &Reply{Errors: []*RPCError{
		{Severity: SeverityWarning, Message: "heads up"},
		{Severity: SeverityError, Message: "boom"},
	}}
	first := reply.FirstError()
	require.NotNil(t, first)
	assert.Equal(t, "boom", first.Message)
}
