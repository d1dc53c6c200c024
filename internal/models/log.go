package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LogEntry is one row of the audit trail.
type LogEntry struct {
	ID          primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	ActorID     primitive.ObjectID `json:"actorId,omitempty" bson:"actor_id,omitempty"`
	Action      string             `json:"action" bson:"action"`
	Description string             `json:"description" bson:"description"`
	IPAddress   string             `json:"ipAddress,omitempty" bson:"ip_address,omitempty"`
	Timestamp   time.Time          `json:"timestamp" bson:"timestamp"`
	Metadata    map[string]any     `json:"metadata,omitempty" bson:"metadata,omitempty"`
}
