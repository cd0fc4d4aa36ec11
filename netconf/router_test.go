package netconf

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterAwaitReplyAlreadyParked(t *testing.T) {
	r := newRouter(time.Minute, false)
	defer r.stop()

	root := etree.NewElement("rpc-reply")
	r.deliverReply("1", root, GetRequest{}, nil)

	parked, err := r.awaitReply("1", time.Second)
	require.NoError(t, err)
	assert.Same(t, root, parked.root)
}

func TestRouterAwaitReplyWakesOnDeliver(t *testing.T) {
	r := newRouter(time.Minute, false)
	defer r.stop()

	done := make(chan error, 1)
	go func() {
		_, err := r.awaitReply("2", 2*time.Second)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	r.deliverReply("2", etree.NewElement("rpc-reply"), GetRequest{}, nil)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("awaitReply did not wake after deliverReply")
	}
}

func TestRouterAwaitReplyTimesOut(t *testing.T) {
	r := newRouter(time.Minute, false)
	defer r.stop()

	_, err := r.awaitReply("3", 30*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsWouldBlock(err))
}

func TestRouterAwaitReplyUnblocksOnStop(t *testing.T) {
	r := newRouter(time.Minute, false)

	done := make(chan error, 1)
	go func() {
		_, err := r.awaitReply("4", -1)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	r.stop()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.False(t, IsWouldBlock(err))
	case <-time.After(time.Second):
		t.Fatal("awaitReply did not unblock after stop")
	}
}

func TestRouterDropUnmatchedReply(t *testing.T) {
	r := newRouter(time.Minute, true)
	defer r.stop()

	dropped := false
	r.deliverReply("5", etree.NewElement("rpc-reply"), GetRequest{}, func() { dropped = true })
	assert.True(t, dropped)

	_, err := r.awaitReply("5", 30*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsWouldBlock(err))
}

func TestRouterWaitingRegistersBeforeDeliver(t *testing.T) {
	r := newRouter(time.Minute, true)
	defer r.stop()

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		r.mu.Lock()
		r.waiting["6"] = true
		r.mu.Unlock()
		close(ready)
		_, err := r.awaitReply("6", time.Second)
		done <- err
	}()

	<-ready
	time.Sleep(10 * time.Millisecond)
	dropped := false
	r.deliverReply("6", etree.NewElement("rpc-reply"), GetRequest{}, func() { dropped = true })
	assert.False(t, dropped)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("awaitReply did not complete")
	}
}

func TestRouterNotificationFIFOOrder(t *testing.T) {
	r := newRouter(time.Minute, false)
	defer r.stop()

	first := etree.NewElement("notification")
	first.CreateAttr("seq", "1")
	second := etree.NewElement("notification")
	second.CreateAttr("seq", "2")

	r.deliverNotification(first)
	r.deliverNotification(second)

	got1, err := r.awaitNotification(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "1", got1.SelectAttrValue("seq", ""))

	got2, err := r.awaitNotification(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "2", got2.SelectAttrValue("seq", ""))
}

func TestRouterAwaitNotificationTimesOut(t *testing.T) {
	r := newRouter(time.Minute, false)
	defer r.stop()

	_, err := r.awaitNotification(30 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsWouldBlock(err))
}
