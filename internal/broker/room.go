package broker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hilthontt/syncbroker/internal/credentials"
	"github.com/hilthontt/syncbroker/internal/domain"
	"github.com/hilthontt/syncbroker/internal/protocol"
)

// Room is a set of peers with exactly one host for its entire lifetime.
// Peers is the ordered union [host, ...guests]; guests append in join
// order.
type Room struct {
	ID   string
	Host *Peer

	mu     sync.RWMutex
	guests []*Peer
}

// Peers returns the stable-ordered union host-then-guests. Snapshotting
// under the lock keeps concurrent addGuest/removeGuest calls from racing
// with a fan-out in progress.
func (r *Room) Peers() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Peer, 0, len(r.guests)+1)
	out = append(out, r.Host)
	out = append(out, r.guests...)
	return out
}

func (r *Room) addGuest(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guests = append(r.guests, p)
}

func (r *Room) removeGuest(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, g := range r.guests {
		if g.ID == peerID {
			r.guests = append(r.guests[:i:i], r.guests[i+1:]...)
			return
		}
	}
}

// RoomManager owns rooms and the peer-to-room index. Grounded on the
// teacher's roomRepository (mutex-guarded map, Create/GetByID/Update
// shape); idle-eviction and capacity limits are dropped because spec.md
// gives rooms no TTL or bound — a room lives exactly as long as its
// host's channel stays open.
type RoomManager struct {
	broker *Broker

	mu        sync.RWMutex
	rooms     map[string]*Room
	peerIndex map[string]*Room
}

func newRoomManager(b *Broker) *RoomManager {
	return &RoomManager{
		broker:    b,
		rooms:     make(map[string]*Room),
		peerIndex: make(map[string]*Room),
	}
}

// PrepareRoom generates a secure room id and signs a host RoomClaim for
// it, without yet creating the Room entry — the room stays implicit
// (PREPARED) until the host actually connects.
func (m *RoomManager) PrepareRoom(user domain.User) (domain.PreparedRoom, error) {
	id := credentials.SecureID()
	claim := domain.RoomClaim{Room: id, User: user, Host: true}

	token, err := m.broker.Credentials.Signer.GenerateJWT(claim)
	if err != nil {
		return domain.PreparedRoom{}, err
	}
	return domain.PreparedRoom{ID: id, JWT: token}, nil
}

// Join admits peer into roomID as either the host (creating the room) or
// a guest (appending to an existing one), indexes it, and fires the
// peer/info and room/joined notifications spec.md §4.6 names.
func (m *RoomManager) Join(peer *Peer, roomID string, host bool) (*Room, error) {
	if host {
		return m.joinAsHost(peer, roomID)
	}
	return m.joinAsGuest(peer, roomID)
}

func (m *RoomManager) joinAsHost(peer *Peer, roomID string) (*Room, error) {
	room := &Room{ID: roomID, Host: peer}

	m.mu.Lock()
	m.rooms[roomID] = room
	m.peerIndex[peer.ID] = room
	m.mu.Unlock()

	peer.bindRoom(roomID)
	peer.onDisconnect = func() { m.CloseRoom(roomID) }

	m.broker.recordAndPublish(domain.NewRoomCreatedEvent(newEventID(), roomID, peer.ID))

	_ = m.broker.Relay.sendNotification(peer, protocol.MethodPeerInfo, mustMarshal(peer.PublicView()))

	return room, nil
}

func (m *RoomManager) joinAsGuest(peer *Peer, roomID string) (*Room, error) {
	m.mu.RLock()
	room, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	room.addGuest(peer)

	m.mu.Lock()
	m.peerIndex[peer.ID] = room
	m.mu.Unlock()

	peer.bindRoom(roomID)
	peer.onDisconnect = func() { m.handleGuestDisconnect(room, peer) }

	m.broker.recordAndPublish(domain.NewPeerJoinedEvent(newEventID(), roomID, peer.ID))

	_ = m.broker.Relay.sendNotification(peer, protocol.MethodPeerInfo, mustMarshal(peer.PublicView()))
	_ = m.broker.Relay.sendBroadcast(context.Background(), peer, protocol.MethodRoomJoined, mustMarshal(peer.PublicView()))

	return room, nil
}

// RequestJoin issues the peer/join admission handshake to room's host and
// waits for its boolean verdict, signing a guest RoomClaim on approval.
func (m *RoomManager) RequestJoin(room *Room, user domain.User) (string, error) {
	params := mustMarshal([]domain.PublicUser{user.Public()})

	resp, err := m.broker.Relay.sendRequest(context.Background(), room.Host, protocol.MethodPeerJoin, params)
	if err != nil {
		m.broker.recordAndPublish(domain.NewJoinRejectedEvent(newEventID(), room.ID, user.ID))
		if err == domain.ErrRequestTimeout {
			return "", domain.ErrJoinTimeout
		}
		return "", domain.ErrJoinRejected
	}

	var approved bool
	if err := json.Unmarshal(resp, &approved); err != nil || !approved {
		m.broker.recordAndPublish(domain.NewJoinRejectedEvent(newEventID(), room.ID, user.ID))
		return "", domain.ErrJoinRejected
	}

	claim := domain.RoomClaim{Room: room.ID, User: user, Host: false}
	return m.broker.Credentials.Signer.GenerateJWT(claim)
}

// handleGuestDisconnect removes peer from membership/indices before
// broadcasting room/left, per spec.md §5's ordering requirement.
func (m *RoomManager) handleGuestDisconnect(room *Room, peer *Peer) {
	room.removeGuest(peer.ID)

	m.mu.Lock()
	delete(m.peerIndex, peer.ID)
	m.mu.Unlock()

	m.broker.recordAndPublish(domain.NewPeerLeftEvent(newEventID(), room.ID, peer.ID))

	data, err := protocol.Encode(protocol.Broadcast{
		ClientID: peer.ID,
		Method:   protocol.MethodRoomLeft,
		Params:   mustMarshal(peer.PublicView()),
	})
	if err != nil {
		return
	}
	for _, p := range room.Peers() {
		_ = p.Channel.Send(data)
	}
}

// CloseRoom tears a room down: removes bookkeeping first, then makes a
// best-effort attempt to flush room/closed to every remaining member
// before force-closing their channels. Idempotent — closing an unknown id
// is a no-op, since a room's host disconnect and an already-in-flight
// close can race.
func (m *RoomManager) CloseRoom(id string) {
	m.mu.Lock()
	room, ok := m.rooms[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.rooms, id)
	peers := room.Peers()
	for _, p := range peers {
		delete(m.peerIndex, p.ID)
	}
	m.mu.Unlock()

	m.broker.recordAndPublish(domain.NewRoomClosedEvent(newEventID(), id))

	data, err := protocol.Encode(protocol.Broadcast{ClientID: room.Host.ID, Method: protocol.MethodRoomClosed})
	if err == nil {
		for _, p := range peers {
			if p.ID == room.Host.ID {
				continue
			}
			_ = p.Channel.Send(data)
		}
	}

	for _, p := range peers {
		_ = p.Channel.Close()
	}
}

// GetRoomByID is a read-only lookup.
func (m *RoomManager) GetRoomByID(id string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[id]
}

// GetRoomByPeerID is a read-only lookup.
func (m *RoomManager) GetRoomByPeerID(peerID string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peerIndex[peerID]
}
