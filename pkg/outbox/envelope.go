package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

// EnvelopeVersion is bumped when the envelope shape changes, not the payloads.
const EnvelopeVersion = 1

// Actor is the hierarchy node whose request caused the event.
type Actor struct {
	NodeID uuid.UUID  `json:"nodeId"`
	Role   enums.Role `json:"role,omitempty"`
}

// ActorOf returns nil for system changes such as cron closeouts.
func ActorOf(nodeID uuid.UUID, role enums.Role) *Actor {
	if nodeID == uuid.Nil {
		return nil
	}
	return &Actor{NodeID: nodeID, Role: role}
}

// Envelope is the JSON stored in outbox_events.payload and published verbatim.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    uuid.UUID       `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *Actor          `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

var errEmptyData = errors.New("envelope has no data")

// DecodeEnvelope parses a stored payload and rejects shapes the relay cannot publish.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version != EnvelopeVersion {
		return Envelope{}, fmt.Errorf("envelope version %d not supported", env.Version)
	}
	if env.EventID == uuid.Nil {
		return Envelope{}, errors.New("envelope has no event id")
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Envelope{}, errEmptyData
	}
	return env, nil
}

// Attributes are the Pub/Sub attributes subscribers filter on.
func Attributes(row models.OutboxEvent, env Envelope) map[string]string {
	attrs := map[string]string{
		"event_id":       env.EventID.String(),
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"occurred_at":    env.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if env.Actor != nil && env.Actor.Role != "" {
		attrs["actor_role"] = string(env.Actor.Role)
	}
	return attrs
}
