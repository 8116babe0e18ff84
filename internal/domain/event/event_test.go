package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{name: "expense created", eventType: TypeExpenseCreated, want: true},
		{name: "expense updated", eventType: TypeExpenseUpdated, want: true},
		{name: "status changed", eventType: TypeStatusChanged, want: true},
		{name: "receipt processed", eventType: TypeReceiptProcessed, want: true},
		{name: "unknown type", eventType: Type("expense.exploded"), want: false},
		{name: "empty type", eventType: Type(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	evt := NewEvent(TypeExpenseCreated, "exp-1", "proj-1", map[string]any{"source": "scan"})

	if evt.ID == "" {
		t.Error("expected auto-generated ID")
	}
	if evt.CorrelationID == "" {
		t.Error("expected auto-generated correlation ID")
	}
	if evt.ExpenseID != "exp-1" || evt.ProjectID != "proj-1" {
		t.Errorf("unexpected identifiers: %s / %s", evt.ExpenseID, evt.ProjectID)
	}
	if evt.Timestamp.Before(before) {
		t.Error("timestamp should not predate creation")
	}
	if evt.GetPayloadString("source") != "scan" {
		t.Errorf("GetPayloadString = %q, want scan", evt.GetPayloadString("source"))
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	evt := NewEventWithCorrelation(TypeStatusChanged, "exp-1", "proj-1", nil, "corr-42")
	if evt.CorrelationID != "corr-42" {
		t.Errorf("CorrelationID = %q, want corr-42", evt.CorrelationID)
	}
}

func TestEvent_WithPayload(t *testing.T) {
	evt := NewEvent(TypeExpenseUpdated, "exp-1", "proj-1", map[string]any{"a": "1"})
	evt2 := evt.WithPayload("b", true)

	if _, ok := evt.Payload["b"]; ok {
		t.Error("WithPayload must not mutate the original event")
	}
	if !evt2.GetPayloadBool("b") {
		t.Error("expected payload key on copy")
	}
	if evt2.ID != evt.ID || evt2.CorrelationID != evt.CorrelationID {
		t.Error("copy must preserve identity and correlation")
	}
}

func TestEvent_PayloadAccessorsMissingKeys(t *testing.T) {
	evt := NewEvent(TypeReceiptProcessed, "exp-1", "proj-1", nil)
	if evt.GetPayloadString("nope") != "" {
		t.Error("missing string key should yield empty string")
	}
	if evt.GetPayloadBool("nope") {
		t.Error("missing bool key should yield false")
	}
}
