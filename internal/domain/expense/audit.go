package expense

import (
	"encoding/json"
	"time"
)

// StatusLogEntry is one append-only audit record of an accepted status transition.
// Entries are never updated or deleted; ChangedAt orders the trail for replay.
type StatusLogEntry struct {
	ID        string         `json:"id"`
	ExpenseID string         `json:"expense_id"`
	OldStatus Status         `json:"old_status"`
	NewStatus Status         `json:"new_status"`
	ChangedBy string         `json:"changed_by"`
	ChangedAt time.Time      `json:"changed_at"`
	Reason    string         `json:"reason,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MetadataJSON serializes the metadata bag for storage. An empty bag encodes as "{}".
func (s *StatusLogEntry) MetadataJSON() string {
	if len(s.Metadata) == 0 {
		return "{}"
	}
	b, err := json.Marshal(s.Metadata)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ParseMetadata restores the metadata bag from its stored JSON form
func (s *StatusLogEntry) ParseMetadata(raw string) {
	if raw == "" {
		return
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err == nil {
		s.Metadata = m
	}
}

// FieldChangeEntry is one append-only audit record of a single tracked-field
// mutation on an expense that was in review or auth at the time. Pending-state
// edits are drafting and are never recorded here.
type FieldChangeEntry struct {
	ID           string    `json:"id"`
	ExpenseID    string    `json:"expense_id"`
	FieldName    string    `json:"field_name"`
	OldValue     string    `json:"old_value"`
	NewValue     string    `json:"new_value"`
	ChangedBy    string    `json:"changed_by"`
	ChangedAt    time.Time `json:"changed_at"`
	StatusAtTime Status    `json:"expense_status_at_time"`
	Reason       string    `json:"reason,omitempty"`
}
