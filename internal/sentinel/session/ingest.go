package session

import (
	"fmt"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/logger"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/telemetry"
)

// Rejection is one record refused during ingestion.
type Rejection struct {
	Index   int
	EventID string
	Err     error
}

// IngestReport summarises one Ingest call.
type IngestReport struct {
	Accepted   []event.Event
	Rejected   []Rejection
	Duplicates int
	Evicted    int
}

// Ingest decodes, classifies and inserts raw as a single batch. Records that fail
// are reported and dropped; the rest of the batch is still inserted.
func (s *Session) Ingest(raw ...telemetry.Record) IngestReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.View()
	var rep IngestReport
	batch := make([]event.Event, 0, len(raw))
	for i, r := range raw {
		e, err := s.admit(cur, r)
		if err != nil {
			rep.Rejected = append(rep.Rejected, Rejection{Index: i, EventID: r.EventID, Err: err})
			s.metrics.Rejected()
			logger.L().Warnw("telemetry record rejected", "index", i, "event_id", r.EventID, "error", err)
			continue
		}
		if s.seen(e.ID) {
			rep.Duplicates++
			s.metrics.Duplicate()
			logger.L().Debugw("duplicate event dropped", "event_id", e.ID)
			continue
		}
		batch = append(batch, e)
	}
	if len(batch) == 0 {
		return rep
	}

	before := len(cur.Events)
	next := s.insert(cur, batch)
	s.publish(next)

	rep.Accepted = batch
	rep.Evicted = before + len(batch) - len(next.Events)
	s.metrics.Ingested(len(batch))
	logger.L().Debugw("batch ingested",
		"accepted", len(batch),
		"rejected", len(rep.Rejected),
		"duplicates", rep.Duplicates,
		"store_size", len(next.Events))
	return rep
}

// admit decodes and classifies one record against the endpoints of v.
func (s *Session) admit(v *View, r telemetry.Record) (event.Event, error) {
	e, err := telemetry.Decode(r)
	if err != nil {
		return event.Event{}, err
	}
	switch e.Category {
	case event.Admin, event.Audit:
		return event.Event{}, fmt.Errorf("%w: %s events are produced by the console, not telemetry",
			event.ErrInvalidEvent, e.Category)
	}
	resolved, ok := v.Endpoints.Get(e.EndpointID)
	if !ok {
		logger.L().Debugw("event for unregistered endpoint", "event_id", e.ID, "endpoint_id", e.EndpointID)
		return s.classifier.Classify(e, nil)
	}
	return s.classifier.Classify(e, &resolved)
}
