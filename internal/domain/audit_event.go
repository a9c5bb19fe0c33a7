package domain

import "time"

// RoomEventType enumerates the lifecycle transitions the broker records to
// its audit trail and publishes to the event exchange. These are
// operational facts about a room, never room or document content, so they
// fall outside the "does not persist rooms" non-goal.
type RoomEventType string

const (
	EventRoomCreated  RoomEventType = "room_created"
	EventPeerJoined   RoomEventType = "peer_joined"
	EventPeerLeft     RoomEventType = "peer_left"
	EventRoomClosed   RoomEventType = "room_closed"
	EventJoinRejected RoomEventType = "join_rejected"
)

// RoomAuditEvent is one append-only row: a single lifecycle transition for
// a single room. Never read back into live broker state.
type RoomAuditEvent struct {
	ID        string         `json:"id" bson:"_id"`
	RoomID    string         `json:"roomId" bson:"roomId"`
	EventType RoomEventType  `json:"eventType" bson:"eventType"`
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

func newAuditEvent(id string, roomID string, eventType RoomEventType, metadata map[string]any) RoomAuditEvent {
	return RoomAuditEvent{
		ID:        id,
		RoomID:    roomID,
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

func NewRoomCreatedEvent(id, roomID string, hostPeerID string) RoomAuditEvent {
	return newAuditEvent(id, roomID, EventRoomCreated, map[string]any{"hostPeerId": hostPeerID})
}

func NewPeerJoinedEvent(id, roomID, peerID string) RoomAuditEvent {
	return newAuditEvent(id, roomID, EventPeerJoined, map[string]any{"peerId": peerID})
}

func NewPeerLeftEvent(id, roomID, peerID string) RoomAuditEvent {
	return newAuditEvent(id, roomID, EventPeerLeft, map[string]any{"peerId": peerID})
}

func NewRoomClosedEvent(id, roomID string) RoomAuditEvent {
	return newAuditEvent(id, roomID, EventRoomClosed, nil)
}

func NewJoinRejectedEvent(id, roomID, userID string) RoomAuditEvent {
	return newAuditEvent(id, roomID, EventJoinRejected, map[string]any{"userId": userID})
}
