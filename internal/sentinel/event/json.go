package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// record is the NDJSON form of an Event. Exactly one of Details or Description is set,
// chosen by EventType.
type record struct {
	EventID      string          `json:"event_id"`
	Timestamp    string          `json:"timestamp"` // RFC3339Nano UTC
	EndpointID   string          `json:"endpoint_id"`
	EventType    Category        `json:"event_type"`
	Action       string          `json:"action,omitempty"`
	RiskLevel    RiskLevel       `json:"risk_level"`
	AnomalyScore *float64        `json:"anomaly_score,omitempty"`
	RiskReason   string          `json:"risk_reason,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	Description  string          `json:"description,omitempty"`
}

// MarshalJSON encodes the event in its NDJSON schema.
func (e Event) MarshalJSON() ([]byte, error) {
	r := record{
		EventID:      e.ID,
		Timestamp:    e.Timestamp.UTC().Format(time.RFC3339Nano),
		EndpointID:   e.EndpointID,
		EventType:    e.Category,
		Action:       e.Action,
		RiskLevel:    e.RiskLevel,
		AnomalyScore: e.AnomalyScore,
		RiskReason:   e.RiskReason,
	}
	if d, ok := e.Details.(Description); ok {
		r.Description = d.Text
	} else {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return nil, fmt.Errorf("marshal details: %w", err)
		}
		r.Details = raw
	}
	return json.Marshal(r)
}

// UnmarshalJSON decodes an event and re-validates it against its category.
func (e *Event) UnmarshalJSON(b []byte) error {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: timestamp %q", ErrInvalidEvent, r.Timestamp)
	}
	category, err := ParseCategory(string(r.EventType))
	if err != nil {
		return err
	}
	details, err := DecodeDetails(category, r.Details, r.Description)
	if err != nil {
		return err
	}
	built, err := New(r.EventID, ts, r.EndpointID, category, r.Action, details)
	if err != nil {
		return err
	}
	if r.RiskLevel != 0 {
		built.RiskLevel = r.RiskLevel
	}
	built.AnomalyScore = r.AnomalyScore
	built.RiskReason = r.RiskReason
	*e = built
	return nil
}

// DecodeDetails decodes a raw details payload into the type fixed by category.
func DecodeDetails(category Category, raw json.RawMessage, description string) (Details, error) {
	var (
		d   Details
		err error
	)
	switch category {
	case FileSystem:
		var v FileDetails
		err = unmarshalDetails(raw, &v)
		d = v
	case Process:
		var v ProcessDetails
		err = unmarshalDetails(raw, &v)
		d = v
	case Usb:
		var v UsbDetails
		err = unmarshalDetails(raw, &v)
		d = v
	case Network:
		var v NetworkDetails
		err = unmarshalDetails(raw, &v)
		d = v
	case LoginAttempt:
		var v LoginDetails
		err = unmarshalDetails(raw, &v)
		d = v
	case Admin, Audit:
		d = Description{Kind: category, Text: description}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s details: %v", ErrInvalidEvent, category, err)
	}
	return d, nil
}

func unmarshalDetails(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing details")
	}
	return json.Unmarshal(raw, v)
}
