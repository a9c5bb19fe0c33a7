package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hilthontt/syncbroker/internal/channel"
	"github.com/hilthontt/syncbroker/internal/credentials"
	"github.com/hilthontt/syncbroker/internal/domain"
	"github.com/hilthontt/syncbroker/internal/protocol"
)

// defaultRequestTimeout bounds how long a relayed request may go
// unanswered.
const defaultRequestTimeout = 60 * time.Second

// errPeerGone settles a pending entry whose target disconnected before
// answering. Distinct from domain.ErrRequestTimeout so callers can tell
// "nobody ever will" from "didn't in time", though both surface to the
// origin as a ResponseError.
var errPeerGone = errors.New("broker: target peer disconnected")

type entryResult struct {
	response json.RawMessage
	err      error
}

// pendingEntry is one outstanding relayed request. The settlement handle
// (settle) fires at most once, safe to call from the timer callback or
// from pushResponse, per spec.md's "deferred values" design note.
type pendingEntry struct {
	ch           chan entryResult
	timer        *time.Timer
	targetPeerID string
	once         sync.Once
}

func (e *pendingEntry) settle(r entryResult) {
	e.once.Do(func() {
		e.timer.Stop()
		e.ch <- r
		close(e.ch)
	})
}

// Relay owns the pending-request table and performs all cross-peer
// delivery: requests (correlated), notifications (fire-and-forget), and
// broadcasts (fan-out excluding origin). Grounded on the teacher's
// RoomManager.BroadcastToRoom iteration-over-a-client-map shape,
// generalized with request/response correlation.
type Relay struct {
	broker *Broker

	// requestTimeout bounds how long sendRequest waits for a reply. A
	// struct field (not a package constant) so tests can shorten it to
	// exercise the real timeout path instead of simulating it by hand.
	requestTimeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingEntry
}

func newRelay(b *Broker) *Relay {
	return &Relay{broker: b, pending: make(map[string]*pendingEntry), requestTimeout: defaultRequestTimeout}
}

// sendRequest allocates a fresh correlation id, arms rl.requestTimeout, and
// blocks the calling peer's goroutine until the request settles. If
// target's channel is already closed, the send fails and it rejects
// immediately with channel.ErrClosed, removing the entry it had just
// inserted into the pending table. The relayed request is wrapped in a span
// carrying room.id, peer.id, and envelope.method attributes.
func (rl *Relay) sendRequest(ctx context.Context, target *Peer, method string, params json.RawMessage) (json.RawMessage, error) {
	ctx, span := rl.broker.Tracer.Start(ctx, "broker.relay.request", trace.WithAttributes(
		attribute.String("room.id", target.roomID),
		attribute.String("peer.id", target.ID),
		attribute.String("envelope.method", method),
	))
	defer span.End()

	res, err := rl.doSendRequest(ctx, target, method, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (rl *Relay) doSendRequest(_ context.Context, target *Peer, method string, params json.RawMessage) (json.RawMessage, error) {
	correlationID := credentials.SecureID()
	idJSON, _ := json.Marshal(correlationID)

	entry := &pendingEntry{ch: make(chan entryResult, 1), targetPeerID: target.ID}

	rl.mu.Lock()
	rl.pending[correlationID] = entry
	rl.mu.Unlock()

	entry.timer = time.AfterFunc(rl.requestTimeout, func() {
		rl.dispose(correlationID)
		entry.settle(entryResult{err: domain.ErrRequestTimeout})
	})

	data, err := protocol.Encode(protocol.Request{ID: idJSON, Method: method, Params: params})
	if err != nil {
		rl.dispose(correlationID)
		entry.settle(entryResult{err: err})
		return nil, err
	}

	if err := target.Channel.Send(data); err != nil {
		rl.dispose(correlationID)
		entry.settle(entryResult{err: channel.ErrClosed})
		return nil, channel.ErrClosed
	}

	res := <-entry.ch
	return res.response, res.err
}

// pushResponse resolves the pending entry named by a Response or
// ResponseError's id. An entry not found means the request already timed
// out (or this is a duplicate) — dropped silently per S6.
func (rl *Relay) pushResponse(env protocol.Envelope) {
	var id string
	var result entryResult

	switch e := env.(type) {
	case protocol.Response:
		if err := json.Unmarshal(e.ID, &id); err != nil {
			return
		}
		result = entryResult{response: e.Response}
	case protocol.ResponseError:
		if err := json.Unmarshal(e.ID, &id); err != nil {
			return
		}
		result = entryResult{err: errors.New(e.Message)}
	default:
		return
	}

	rl.mu.Lock()
	entry, ok := rl.pending[id]
	if ok {
		delete(rl.pending, id)
	}
	rl.mu.Unlock()

	if !ok {
		return
	}
	entry.settle(result)
}

// sendNotification delivers once, fire-and-forget, no correlation.
func (rl *Relay) sendNotification(target *Peer, method string, params json.RawMessage) error {
	data, err := protocol.Encode(protocol.Notification{Method: method, Params: params})
	if err != nil {
		return err
	}
	return target.Channel.Send(data)
}

// sendBroadcast resolves origin's room, stamps clientId, and delivers to
// every other room peer in stable order. A send error from an
// already-closed peer is ignored and the fan-out continues with the rest.
// Each delivery goes through the peer's Channel.Send, so a peer whose
// outbound buffer is full holds up the peers after it until its Send
// returns; it is not skipped. The fan-out is wrapped in a span carrying
// room.id, peer.id, and envelope.method attributes.
func (rl *Relay) sendBroadcast(ctx context.Context, origin *Peer, method string, params json.RawMessage) error {
	room := rl.broker.Manager.GetRoomByPeerID(origin.ID)

	roomID := ""
	if room != nil {
		roomID = room.ID
	}
	_, span := rl.broker.Tracer.Start(ctx, "broker.relay.broadcast", trace.WithAttributes(
		attribute.String("room.id", roomID),
		attribute.String("peer.id", origin.ID),
		attribute.String("envelope.method", method),
	))
	defer span.End()

	if room == nil {
		span.RecordError(domain.ErrNoRoom)
		span.SetStatus(codes.Error, domain.ErrNoRoom.Error())
		return domain.ErrNoRoom
	}

	data, err := protocol.Encode(protocol.Broadcast{ClientID: origin.ID, Method: method, Params: params})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for _, peer := range room.Peers() {
		if peer.ID == origin.ID {
			continue
		}
		_ = peer.Channel.Send(data)
	}
	return nil
}

// drainTarget rejects and removes every pending entry awaiting a response
// from peerID, called when that peer's channel closes so the table never
// grows with requests nobody will ever answer.
func (rl *Relay) drainTarget(peerID string) {
	rl.mu.Lock()
	var toDispose []*pendingEntry
	for id, entry := range rl.pending {
		if entry.targetPeerID == peerID {
			toDispose = append(toDispose, entry)
			delete(rl.pending, id)
		}
	}
	rl.mu.Unlock()

	for _, entry := range toDispose {
		entry.settle(entryResult{err: errPeerGone})
	}
}

func (rl *Relay) dispose(id string) {
	rl.mu.Lock()
	delete(rl.pending, id)
	rl.mu.Unlock()
}
