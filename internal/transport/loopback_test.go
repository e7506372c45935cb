package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextEvent(t *testing.T, sess Session) Event {
	t.Helper()
	select {
	case ev, ok := <-sess.Events():
		require.True(t, ok, "event channel closed early")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for transport event")
		return Event{}
	}
}

func TestLoopbackPairsThenOpens(t *testing.T) {
	creds := NewMemoryCredentialStore()
	d := &LoopbackDialer{Credentials: creds}

	sess, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	ev := nextEvent(t, sess)
	assert.Equal(t, EventPairingChallenge, ev.Type)
	assert.NotEmpty(t, ev.Challenge)

	ev = nextEvent(t, sess)
	assert.Equal(t, EventOpened, ev.Type)

	// Pairing persisted the credential blob.
	exists, err := creds.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)

	ev = nextEvent(t, sess)
	require.Equal(t, EventMessage, ev.Type)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "loopback@local", ev.Message.ConversationID)
}

func TestLoopbackSkipsPairingWhenCredentialsExist(t *testing.T) {
	creds := NewMemoryCredentialStore()
	require.NoError(t, creds.Save(context.Background(), []byte("blob")))
	d := &LoopbackDialer{Credentials: creds}

	sess, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	ev := nextEvent(t, sess)
	assert.Equal(t, EventOpened, ev.Type)
}

func TestLoopbackCloseEndsEventStream(t *testing.T) {
	creds := NewMemoryCredentialStore()
	require.NoError(t, creds.Save(context.Background(), []byte("blob")))
	d := &LoopbackDialer{Credentials: creds}

	sess, err := d.Dial(context.Background())
	require.NoError(t, err)

	nextEvent(t, sess) // opened
	nextEvent(t, sess) // seed message

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	select {
	case _, ok := <-sess.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("event channel not closed after Close")
	}
}

func TestLoopbackContextCancelEmitsClosed(t *testing.T) {
	creds := NewMemoryCredentialStore()
	require.NoError(t, creds.Save(context.Background(), []byte("blob")))
	d := &LoopbackDialer{Credentials: creds}

	ctx, cancel := context.WithCancel(context.Background())
	sess, err := d.Dial(ctx)
	require.NoError(t, err)
	defer sess.Close()

	nextEvent(t, sess) // opened
	nextEvent(t, sess) // seed message

	cancel()

	ev := nextEvent(t, sess)
	assert.Equal(t, EventClosed, ev.Type)
	assert.Equal(t, "connection_lost", ev.Reason)
}
