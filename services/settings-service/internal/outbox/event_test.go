package outbox

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSettingsChanged(t *testing.T) {
	evt, err := SettingsChanged("owner-1", "connection")
	if err != nil {
		t.Fatalf("SettingsChanged failed: %v", err)
	}
	if evt.EventType != EventTypeSettingsChanged {
		t.Fatalf("unexpected event type %q", evt.EventType)
	}
	if evt.AggregateID != "owner-1" {
		t.Fatalf("events must aggregate by owner, got %q", evt.AggregateID)
	}

	var payload struct {
		OwnerID   string `json:"ownerId"`
		Kind      string `json:"kind"`
		ChangedAt string `json:"changedAt"`
	}
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("payload must be JSON: %v", err)
	}
	if payload.OwnerID != "owner-1" || payload.Kind != "connection" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if _, err := time.Parse(time.RFC3339, payload.ChangedAt); err != nil {
		t.Fatalf("changedAt must be RFC3339: %v", err)
	}
}
