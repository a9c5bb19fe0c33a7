// Package audit implements the broker's append-only lifecycle record
// (C8): a Mongo-backed recorder grounded on the teacher's sibling
// room_auditlog.go repository, and a no-op recorder selected when no
// Mongo URI is configured.
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hilthontt/syncbroker/internal/broker"
	"github.com/hilthontt/syncbroker/internal/domain"
)

// auditTTL bounds how long an audit row survives before Mongo's TTL index
// reaps it. Operational visibility, not a permanent record.
const auditTTL = 90 * 24 * time.Hour

var _ broker.AuditRecorder = (*MongoRecorder)(nil)
var _ broker.AuditRecorder = (*NoopRecorder)(nil)

// MongoRecorder persists RoomAuditEvents to a single collection, grounded
// on http/internal/persistence/repository/room_auditlog.go's index and
// filter shape.
type MongoRecorder struct {
	collection *mongo.Collection
}

func NewMongoRecorder(db *mongo.Database) *MongoRecorder {
	return &MongoRecorder{collection: db.Collection("room_audit_log")}
}

// EnsureIndexes creates the TTL index on timestamp and a lookup index on
// roomId. Call once at startup.
func (r *MongoRecorder) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(auditTTL.Seconds())),
		},
		{
			Keys: bson.D{{Key: "roomId", Value: 1}},
		},
	})
	return err
}

func (r *MongoRecorder) Record(ctx context.Context, event domain.RoomAuditEvent) error {
	_, err := r.collection.InsertOne(ctx, event)
	return err
}

func (r *MongoRecorder) ListByRoom(ctx context.Context, roomID string, limit int64) ([]domain.RoomAuditEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{"roomId": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []domain.RoomAuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// NoopRecorder discards every event. Selected when SYNCBROKER_AUDIT_MONGOURI is
// unset, so the broker runs standalone with zero external dependencies.
type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context, domain.RoomAuditEvent) error { return nil }
