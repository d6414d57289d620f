package outbox

import (
	"encoding/json"
	"time"
)

// The Kafka topic name equals EventType; availability-service consumes
// settings.changed.v1 to invalidate cached feeds.
const EventTypeSettingsChanged = "settings.changed.v1"

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type settingsChangedPayload struct {
	OwnerID   string `json:"ownerId"`
	Kind      string `json:"kind"`
	ChangedAt string `json:"changedAt"`
}

// SettingsChanged builds the event emitted after any write that can alter an
// owner's resolved feed. kind distinguishes schedule edits from connection
// changes for consumers that care.
func SettingsChanged(ownerID, kind string) (Event, error) {
	payload, err := json.Marshal(settingsChangedPayload{
		OwnerID:   ownerID,
		Kind:      kind,
		ChangedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "owner_settings",
		AggregateID:   ownerID,
		EventType:     EventTypeSettingsChanged,
		Payload:       payload,
	}, nil
}
