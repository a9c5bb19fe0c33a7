// Package broker implements the session broker's core: peers, rooms, and
// the message relay that ties them together. This is the teacher's
// internal/infrastructure/ws and internal/infrastructure/repository
// concerns fused into one package, generalized from a chat-room relay into
// a host/guest collaboration relay, and kept together (rather than split
// per-type) so Peer and Room never hold direct pointers to each other —
// only the RoomManager's indices do.
package broker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hilthontt/syncbroker/internal/credentials"
	"github.com/hilthontt/syncbroker/internal/domain"
)

// AuditRecorder is the interface C8 implementations (Mongo-backed or
// no-op) satisfy. Defined here, not in package audit, so broker never
// imports the audit/events packages — those import domain and broker
// instead, wiring happens in cmd/syncbroker.
type AuditRecorder interface {
	Record(ctx context.Context, event domain.RoomAuditEvent) error
}

// EventPublisher is the interface C9 implementations satisfy.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.RoomAuditEvent) error
}

// sideEffectTimeout bounds how long a fire-and-forget audit/event call may
// run before it's abandoned, so an unreachable Mongo or RabbitMQ can never
// stall a relay or room-manager mutation.
const sideEffectTimeout = 3 * time.Second

// Broker bundles the process-wide state named in spec.md's design notes:
// the JWT secret (via Credentials), the rooms map and peer index (via
// Manager), and the pending-request table (via Relay). Constructed once at
// startup; never a package-level singleton.
type Broker struct {
	Credentials *credentials.Credentials
	Manager     *RoomManager
	Relay       *Relay

	Audit  AuditRecorder
	Events EventPublisher
	Logger *zap.SugaredLogger

	// Tracer starts the per-relayed-message spans C11 requires. New
	// substitutes a no-op tracer when it is given nil; Relay itself does
	// not check for nil.
	Tracer trace.Tracer
}

// New wires a Broker's mutually-referencing pieces together: Relay needs
// Manager to resolve a broadcast origin's room, Manager needs Relay to
// issue peer/join requests and lifecycle broadcasts. tracer may be nil, in
// which case relayed messages go unspanned.
func New(creds *credentials.Credentials, audit AuditRecorder, events EventPublisher, logger *zap.SugaredLogger, tracer trace.Tracer) *Broker {
	if tracer == nil {
		tracer = trace.NewNoopTracerProvider().Tracer("")
	}

	b := &Broker{
		Credentials: creds,
		Audit:       audit,
		Events:      events,
		Logger:      logger,
		Tracer:      tracer,
	}
	b.Relay = newRelay(b)
	b.Manager = newRoomManager(b)
	return b
}

// recordAndPublish fires the audit and event side effects for a lifecycle
// transition without blocking the caller (room-manager mutations stay on
// the hot path; Mongo/RabbitMQ never gate them).
func (b *Broker) recordAndPublish(event domain.RoomAuditEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if err := b.Audit.Record(ctx, event); err != nil && b.Logger != nil {
			b.Logger.Warnw("audit record failed", "eventType", event.EventType, "roomId", event.RoomID, "err", err)
		}
		if err := b.Events.Publish(ctx, event); err != nil && b.Logger != nil {
			b.Logger.Warnw("event publish failed", "eventType", event.EventType, "roomId", event.RoomID, "err", err)
		}
	}()
}

func newEventID() string {
	return uuid.NewString()
}
