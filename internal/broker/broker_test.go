package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilthontt/syncbroker/internal/channel"
	"github.com/hilthontt/syncbroker/internal/credentials"
	"github.com/hilthontt/syncbroker/internal/domain"
	"github.com/hilthontt/syncbroker/internal/protocol"
)

type noopAudit struct{}

func (noopAudit) Record(context.Context, domain.RoomAuditEvent) error { return nil }

type noopEvents struct{}

func (noopEvents) Publish(context.Context, domain.RoomAuditEvent) error { return nil }

func newTestBroker() *Broker {
	return New(credentials.New(), noopAudit{}, noopEvents{}, nil, nil)
}

func newConnectedPeer(b *Broker, user domain.User) (*Peer, *channel.Memory) {
	ch := channel.NewMemory()
	p := NewPeer(b, user, ch)
	p.Start()
	return p, ch
}

// replyToNextRequest waits for a Request frame to appear in ch.Sent at or
// after fromIndex, then delivers a Response carrying result back over the
// same channel — the in-process stand-in for "the host's client answers".
func replyToNextRequest(t *testing.T, ch *channel.Memory, fromIndex int, result any) {
	t.Helper()

	var req protocol.Request
	require.Eventually(t, func() bool {
		for i := fromIndex; i < len(ch.Sent); i++ {
			env, err := protocol.Decode(ch.Sent[i])
			if err != nil {
				continue
			}
			if r, ok := env.(protocol.Request); ok {
				req = r
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	payload, err := json.Marshal(result)
	require.NoError(t, err)

	data, err := protocol.Encode(protocol.Response{ID: req.ID, Response: payload})
	require.NoError(t, err)
	ch.Deliver(data)
}

// Property 1: every live peer is present in its room's peer set via the
// peer index.
func TestPeerIndexConsistency(t *testing.T) {
	b := newTestBroker()
	host, _ := newConnectedPeer(b, domain.User{ID: "h1", Name: "Host"})

	room, err := b.Manager.joinAsHost(host, "room-1")
	require.NoError(t, err)

	guest, _ := newConnectedPeer(b, domain.User{ID: "g1", Name: "Guest"})
	_, err = b.Manager.joinAsGuest(guest, "room-1")
	require.NoError(t, err)

	for _, p := range []*Peer{host, guest} {
		indexed := b.Manager.GetRoomByPeerID(p.ID)
		require.NotNil(t, indexed)
		assert.Equal(t, room.ID, indexed.ID)

		found := false
		for _, member := range indexed.Peers() {
			if member.ID == p.ID {
				found = true
			}
		}
		assert.True(t, found, "peer %s missing from its own room's peer set", p.ID)
	}
}

// Property 2: Peers() is host-first, guests in join order.
func TestRoomPeersOrdering(t *testing.T) {
	b := newTestBroker()
	host, _ := newConnectedPeer(b, domain.User{ID: "h1", Name: "Host"})
	room, err := b.Manager.joinAsHost(host, "room-1")
	require.NoError(t, err)

	bob, _ := newConnectedPeer(b, domain.User{ID: "g1", Name: "Bob"})
	carol, _ := newConnectedPeer(b, domain.User{ID: "g2", Name: "Carol"})
	_, err = b.Manager.joinAsGuest(bob, "room-1")
	require.NoError(t, err)
	_, err = b.Manager.joinAsGuest(carol, "room-1")
	require.NoError(t, err)

	peers := room.Peers()
	require.Len(t, peers, 3)
	assert.Equal(t, host.ID, peers[0].ID)
	assert.Equal(t, bob.ID, peers[1].ID)
	assert.Equal(t, carol.ID, peers[2].ID)
}

// Property 3: a relayed request settles exactly once, and the entry is
// gone afterward.
func TestRelayRequestSettlesExactlyOnce(t *testing.T) {
	b := newTestBroker()
	host, hostCh := newConnectedPeer(b, domain.User{ID: "h1", Name: "Host"})

	go replyToNextRequest(t, hostCh, len(hostCh.Sent), true)

	resp, err := b.Relay.sendRequest(context.Background(), host, protocol.MethodPeerJoin, json.RawMessage(`[{"name":"Bob"}]`))
	require.NoError(t, err)

	var approved bool
	require.NoError(t, json.Unmarshal(resp, &approved))
	assert.True(t, approved)

	b.Relay.mu.Lock()
	defer b.Relay.mu.Unlock()
	assert.Empty(t, b.Relay.pending, "entry should be removed once settled")
}

// Property 4: a broadcast reaches every other room peer exactly once and
// never its origin.
func TestBroadcastFanOutExcludesOrigin(t *testing.T) {
	b := newTestBroker()
	host, hostCh := newConnectedPeer(b, domain.User{ID: "h1", Name: "Host"})
	_, err := b.Manager.joinAsHost(host, "room-1")
	require.NoError(t, err)

	bob, bobCh := newConnectedPeer(b, domain.User{ID: "g1", Name: "Bob"})
	_, err = b.Manager.joinAsGuest(bob, "room-1")
	require.NoError(t, err)

	carol, carolCh := newConnectedPeer(b, domain.User{ID: "g2", Name: "Carol"})
	_, err = b.Manager.joinAsGuest(carol, "room-1")
	require.NoError(t, err)

	beforeHost, beforeCarol := len(hostCh.Sent), len(carolCh.Sent)

	err = b.Relay.sendBroadcast(context.Background(), bob, protocol.MethodEditorUpdate, json.RawMessage(`{"path":"a.txt"}`))
	require.NoError(t, err)

	assert.Len(t, hostCh.Sent, beforeHost+1)
	assert.Len(t, carolCh.Sent, beforeCarol+1)

	for _, ch := range []*channel.Memory{hostCh, carolCh} {
		env, err := protocol.Decode(ch.Sent[len(ch.Sent)-1])
		require.NoError(t, err)
		bc, ok := env.(protocol.Broadcast)
		require.True(t, ok)
		assert.Equal(t, bob.ID, bc.ClientID)
	}

	for _, frame := range bobCh.Sent {
		env, err := protocol.Decode(frame)
		require.NoError(t, err)
		if bc, ok := env.(protocol.Broadcast); ok {
			assert.NotEqual(t, bob.ID, bc.ClientID, "origin must never receive its own broadcast")
		}
	}
}

// S6: a response arriving after its entry has already been removed (e.g.
// post-timeout) is dropped silently.
func TestLateResponseAfterEntryRemovedIsDroppedSilently(t *testing.T) {
	b := newTestBroker()

	entry := &pendingEntry{ch: make(chan entryResult, 1), targetPeerID: "gone"}
	entry.timer = time.AfterFunc(time.Hour, func() {})
	b.Relay.mu.Lock()
	b.Relay.pending["late-id"] = entry
	b.Relay.mu.Unlock()
	b.Relay.dispose("late-id")

	idJSON, err := json.Marshal("late-id")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		b.Relay.pushResponse(protocol.Response{ID: idJSON, Response: json.RawMessage(`true`)})
	})

	select {
	case <-entry.ch:
		t.Fatal("a dropped late response must not settle the original waiter")
	default:
	}
}

// Property 3 (third case) / S4: a request nobody ever answers settles with
// domain.ErrRequestTimeout once rl.requestTimeout elapses, and the entry is
// removed from the pending table.
func TestRelayRequestTimesOutWhenNeverAnswered(t *testing.T) {
	b := newTestBroker()
	b.Relay.requestTimeout = 20 * time.Millisecond

	host, _ := newConnectedPeer(b, domain.User{ID: "h1", Name: "Host"})

	_, err := b.Relay.sendRequest(context.Background(), host, protocol.MethodPeerJoin, json.RawMessage(`[{"name":"Bob"}]`))
	assert.ErrorIs(t, err, domain.ErrRequestTimeout)

	b.Relay.mu.Lock()
	defer b.Relay.mu.Unlock()
	assert.Empty(t, b.Relay.pending, "timed-out entry must be removed from the pending table")
}

// S2: host disconnect closes the room, flushing room/closed to remaining
// members before force-closing their channels.
func TestHostDisconnectClosesRoom(t *testing.T) {
	b := newTestBroker()
	host, _ := newConnectedPeer(b, domain.User{ID: "h1", Name: "Host"})
	_, err := b.Manager.joinAsHost(host, "room-1")
	require.NoError(t, err)

	guest, guestCh := newConnectedPeer(b, domain.User{ID: "g1", Name: "Bob"})
	_, err = b.Manager.joinAsGuest(guest, "room-1")
	require.NoError(t, err)

	host.handleClose()

	require.Nil(t, b.Manager.GetRoomByID("room-1"))
	require.Nil(t, b.Manager.GetRoomByPeerID(guest.ID))

	var sawRoomClosed bool
	for _, frame := range guestCh.Sent {
		env, err := protocol.Decode(frame)
		require.NoError(t, err)
		if bc, ok := env.(protocol.Broadcast); ok && bc.Method == protocol.MethodRoomClosed {
			sawRoomClosed = true
		}
	}
	assert.True(t, sawRoomClosed)
}

// S1 + S5: RequestJoin signs a guest claim on host approval and maps
// rejection to ErrJoinRejected.
func TestRequestJoinApprovedAndRejected(t *testing.T) {
	b := newTestBroker()
	host, hostCh := newConnectedPeer(b, domain.User{ID: "h1", Name: "Host"})
	room, err := b.Manager.joinAsHost(host, "room-1")
	require.NoError(t, err)

	go replyToNextRequest(t, hostCh, len(hostCh.Sent), true)
	token, err := b.Manager.RequestJoin(room, domain.User{ID: "g1", Name: "Bob"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claim, err := b.Credentials.Signer.GetRoomClaim(token)
	require.NoError(t, err)
	assert.Equal(t, "room-1", claim.Room)
	assert.False(t, claim.Host)

	go replyToNextRequest(t, hostCh, len(hostCh.Sent), false)
	_, err = b.Manager.RequestJoin(room, domain.User{ID: "g2", Name: "Carol"})
	assert.ErrorIs(t, err, domain.ErrJoinRejected)
}
