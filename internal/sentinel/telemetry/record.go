package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
)

// Record is a raw telemetry record as delivered by an endpoint agent. Details carries
// the category payload; Admin and Audit records carry Description instead.
type Record struct {
	EventID      string          `json:"event_id,omitempty"`
	Timestamp    string          `json:"timestamp"`
	EndpointID   string          `json:"endpoint_id"`
	EventType    string          `json:"event_type"`
	Action       string          `json:"action,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	Description  string          `json:"description,omitempty"`
	AnomalyScore *float64        `json:"anomaly_score,omitempty"`
}

// Decode validates a record and builds the unclassified event. Records without an id
// get a fresh UUID; timestamps are parsed leniently and read as UTC when zoneless.
func Decode(r Record) (event.Event, error) {
	category, err := event.ParseCategory(r.EventType)
	if err != nil {
		return event.Event{}, err
	}
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return event.Event{}, err
	}
	if strings.TrimSpace(r.EndpointID) == "" {
		return event.Event{}, fmt.Errorf("%w: missing endpoint_id", event.ErrInvalidEvent)
	}
	details, err := event.DecodeDetails(category, r.Details, r.Description)
	if err != nil {
		return event.Event{}, err
	}

	id := r.EventID
	if id == "" {
		id = uuid.NewString()
	}
	e, err := event.New(id, ts, r.EndpointID, category, r.Action, details)
	if err != nil {
		return event.Event{}, err
	}
	e.AnomalyScore = r.AnomalyScore
	return e, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, fmt.Errorf("%w: missing timestamp", event.ErrInvalidEvent)
	}
	ts, err := dateparse.ParseIn(strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %v", event.ErrInvalidEvent, s, err)
	}
	return ts.UTC(), nil
}

// FromEvent renders an event back into its raw record form.
func FromEvent(e event.Event) (Record, error) {
	r := Record{
		EventID:      e.ID,
		Timestamp:    e.Timestamp.UTC().Format(time.RFC3339Nano),
		EndpointID:   e.EndpointID,
		EventType:    string(e.Category),
		Action:       e.Action,
		AnomalyScore: e.AnomalyScore,
	}
	if d, ok := e.Details.(event.Description); ok {
		r.Description = d.Text
		return r, nil
	}
	raw, err := json.Marshal(e.Details)
	if err != nil {
		return Record{}, fmt.Errorf("marshal details: %w", err)
	}
	r.Details = raw
	return r, nil
}
