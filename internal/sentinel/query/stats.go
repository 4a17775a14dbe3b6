package query

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
)

// AnomalyThreshold is the score above which an event counts as an AI anomaly.
const AnomalyThreshold = 0.7

// Stats tracks the dashboard counters over a query result and the endpoint registry.
//
// Fields:
// - InputEvents: events evaluated (including errors)
// - MatchedEvents: events that passed all filters
// - ErrorEvents: events that failed to parse or had I/O errors
// - HighRisk: matched events at High or Critical
// - Anomalies: matched events whose anomaly score exceeds AnomalyThreshold
// - EndpointsOnline/EndpointsTotal/Quarantined: registry counters
// - ByRiskLevel/ByCategory: breakdowns of matched events
// - FirstTimestamp/LastTimestamp: time range of matched events
type Stats struct {
	InputEvents     int
	MatchedEvents   int
	ErrorEvents     int
	HighRisk        int
	Anomalies       int
	EndpointsOnline int
	EndpointsTotal  int
	Quarantined     int
	ByRiskLevel     map[string]int
	ByCategory      map[string]int
	FirstTimestamp  *time.Time
	LastTimestamp   *time.Time
}

// NewStats creates a new Stats instance with initialized maps.
func NewStats() *Stats {
	return &Stats{
		ByRiskLevel: make(map[string]int),
		ByCategory:  make(map[string]int),
	}
}

// Compute builds Stats for a query result against an endpoint list.
func Compute(matched []event.Event, endpoints []endpoint.Endpoint) *Stats {
	s := NewStats()
	for _, e := range matched {
		s.IncrementInput()
		s.IncrementMatched(e)
	}
	s.AddEndpoints(endpoints)
	return s
}

// IncrementInput increments the input events counter.
func (s *Stats) IncrementInput() {
	s.InputEvents++
}

// IncrementError increments the error events counter.
func (s *Stats) IncrementError() {
	s.ErrorEvents++
}

// IncrementMatched counts an event that passed all filters.
func (s *Stats) IncrementMatched(e event.Event) {
	s.MatchedEvents++
	s.ByRiskLevel[e.RiskLevel.String()]++
	s.ByCategory[string(e.Category)]++

	if e.RiskLevel >= event.High {
		s.HighRisk++
	}
	if e.IsAnomalous(AnomalyThreshold) {
		s.Anomalies++
	}

	ts := e.Timestamp
	if s.FirstTimestamp == nil || ts.Before(*s.FirstTimestamp) {
		s.FirstTimestamp = &ts
	}
	if s.LastTimestamp == nil || ts.After(*s.LastTimestamp) {
		s.LastTimestamp = &ts
	}
}

// AddEndpoints counts registry state.
func (s *Stats) AddEndpoints(endpoints []endpoint.Endpoint) {
	for _, ep := range endpoints {
		s.EndpointsTotal++
		switch ep.Status {
		case endpoint.Online:
			s.EndpointsOnline++
		case endpoint.Quarantined:
			s.Quarantined++
		}
	}
}

// PrintSummary prints a formatted summary to the writer.
// The breakdowns are sorted by count (descending) then by name (ascending) for readability.
func (s *Stats) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Total events processed: %d\n", s.InputEvents)
	if s.ErrorEvents > 0 {
		fmt.Fprintf(w, "  Errors: %d\n", s.ErrorEvents)
	}

	if s.FirstTimestamp != nil && s.LastTimestamp != nil {
		fmt.Fprintf(w, "  Time range: %s to %s\n",
			s.FirstTimestamp.Format(time.RFC3339),
			s.LastTimestamp.Format(time.RFC3339))
	}

	fmt.Fprintf(w, "  Matched: %d\n", s.MatchedEvents)
	fmt.Fprintf(w, "  High-risk alerts: %d\n", s.HighRisk)
	fmt.Fprintf(w, "  AI anomalies: %d\n", s.Anomalies)
	if s.EndpointsTotal > 0 {
		fmt.Fprintf(w, "  Endpoints online: %d / %d\n", s.EndpointsOnline, s.EndpointsTotal)
		fmt.Fprintf(w, "  Quarantined: %d\n", s.Quarantined)
	}
	fmt.Fprintf(w, "\n")

	if len(s.ByRiskLevel) > 0 {
		fmt.Fprintf(w, "  By risk level:\n")
		printSortedMap(w, s.ByRiskLevel, "    ")
		fmt.Fprintf(w, "\n")
	}

	if len(s.ByCategory) > 0 {
		fmt.Fprintf(w, "  By event type:\n")
		printSortedMap(w, s.ByCategory, "    ")
	}
}

// printSortedMap prints a map sorted by value (descending) then by key (ascending).
func printSortedMap(w io.Writer, m map[string]int, indent string) {
	type kv struct {
		key   string
		value int
	}

	pairs := make([]kv, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, kv{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].value == pairs[j].value {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value > pairs[j].value
	})

	for _, pair := range pairs {
		fmt.Fprintf(w, "%s%s: %d\n", indent, pair.key, pair.value)
	}
}

// GetSummaryMap returns the statistics as a map for programmatic access.
func (s *Stats) GetSummaryMap() map[string]interface{} {
	summary := map[string]interface{}{
		"total_events_processed": s.InputEvents,
		"matched_events":         s.MatchedEvents,
		"error_events":           s.ErrorEvents,
		"high_risk_alerts":       s.HighRisk,
		"ai_anomalies":           s.Anomalies,
		"endpoints_online":       s.EndpointsOnline,
		"endpoints_total":        s.EndpointsTotal,
		"quarantined":            s.Quarantined,
		"by_risk_level":          s.ByRiskLevel,
		"by_event_type":          s.ByCategory,
	}

	if s.FirstTimestamp != nil && s.LastTimestamp != nil {
		summary["time_range"] = map[string]string{
			"start": s.FirstTimestamp.Format(time.RFC3339),
			"end":   s.LastTimestamp.Format(time.RFC3339),
		}
	}

	return summary
}
