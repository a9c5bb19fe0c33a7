package broker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/hilthontt/syncbroker/internal/channel"
	"github.com/hilthontt/syncbroker/internal/domain"
	"github.com/hilthontt/syncbroker/internal/protocol"
)

// Peer is a single live, transport-connected participant: one actor per
// connection, handling inbound messages one at a time in arrival order.
// Its only room-related state is roomID — a lookup key, never a pointer it
// owns — per spec.md's back-reference design note.
type Peer struct {
	ID      string
	User    domain.User
	Channel channel.Channel

	broker *Broker
	roomID string

	// onDisconnect is set by the RoomManager at Join time; host and guest
	// disconnects unwind differently, so Peer itself stays oblivious to
	// which kind it is.
	onDisconnect func()
}

// NewPeer constructs a Peer over an already-open Channel. Its id is a
// fresh opaque identifier, distinct from user.ID, so a single user may
// hold multiple concurrent peers.
func NewPeer(b *Broker, user domain.User, ch channel.Channel) *Peer {
	return &Peer{
		ID:      uuid.NewString(),
		User:    user,
		Channel: ch,
		broker:  b,
	}
}

// PublicView is the projection advertised to other peers: never the
// server-side user id.
func (p *Peer) PublicView() domain.PeerView {
	return domain.PeerView{ID: p.ID, User: p.User.Public()}
}

// Start subscribes the peer to its channel's message stream. Must be
// called after the RoomManager has bound the peer to a room.
func (p *Peer) Start() {
	p.Channel.OnMessage(p.handleMessage)
	p.Channel.OnClose(p.handleClose)
}

func (p *Peer) bindRoom(roomID string) {
	p.roomID = roomID
}

func (p *Peer) send(e protocol.Envelope) error {
	data, err := protocol.Encode(e)
	if err != nil {
		return err
	}
	return p.Channel.Send(data)
}

func (p *Peer) handleMessage(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		_ = p.send(protocol.Error{Message: err.Error()})
		_ = p.Channel.Close()
		return
	}

	switch e := env.(type) {
	case protocol.Response, protocol.ResponseError:
		p.broker.Relay.pushResponse(env)
	case protocol.Request:
		p.handleRequest(e)
	case protocol.Notification:
		p.handleNotification(e)
	case protocol.Broadcast:
		p.handleBroadcast(e)
	default:
		_ = p.send(protocol.Error{Message: "unhandled envelope kind"})
		_ = p.Channel.Close()
	}
}

func (p *Peer) host() *Peer {
	room := p.broker.Manager.GetRoomByPeerID(p.ID)
	if room == nil {
		return nil
	}
	return room.Host
}

// handleRequest relays req to the room's host. There's no inbound
// request-scoped context here — the channel's message callback isn't tied
// to an HTTP request — so the relay span for it starts from
// context.Background().
func (p *Peer) handleRequest(req protocol.Request) {
	target := p.host()
	if target == nil {
		_ = p.send(protocol.ResponseError{ID: req.ID, Message: domain.ErrNoRoom.Error()})
		return
	}

	resp, err := p.broker.Relay.sendRequest(context.Background(), target, req.Method, req.Params)
	if err != nil {
		_ = p.send(protocol.ResponseError{ID: req.ID, Message: err.Error()})
		return
	}
	_ = p.send(protocol.Response{ID: req.ID, Response: resp})
}

func (p *Peer) handleNotification(n protocol.Notification) {
	target := p.host()
	if target == nil {
		return
	}
	_ = p.broker.Relay.sendNotification(target, n.Method, n.Params)
}

func (p *Peer) handleBroadcast(b protocol.Broadcast) {
	_ = p.broker.Relay.sendBroadcast(context.Background(), p, b.Method, b.Params)
}

// handleClose runs exactly once, triggered by the channel's own OnClose.
// It drains this peer's outstanding relay entries before handing off to
// the room-manager's host/guest-specific teardown.
func (p *Peer) handleClose() {
	p.broker.Relay.drainTarget(p.ID)
	if p.onDisconnect != nil {
		p.onDisconnect()
	}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("broker: marshal of well-known type failed: " + err.Error())
	}
	return data
}
