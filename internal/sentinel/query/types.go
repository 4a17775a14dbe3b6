package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
)

// TimeRange is the single time window selector of a FilterState.
type TimeRange string

const (
	Last15Minutes TimeRange = "15m"
	LastHour      TimeRange = "1h"
	Last24Hours   TimeRange = "24h"
	AllTime       TimeRange = "all"
)

// Window returns the lookback of the range; zero for AllTime.
func (r TimeRange) Window() time.Duration {
	switch r {
	case Last15Minutes:
		return 15 * time.Minute
	case LastHour:
		return time.Hour
	case Last24Hours:
		return 24 * time.Hour
	default:
		return 0
	}
}

// ParseTimeRange resolves "15m", "1h", "24h" or "all". Empty means all.
func ParseTimeRange(s string) (TimeRange, error) {
	switch r := TimeRange(strings.ToLower(strings.TrimSpace(s))); r {
	case Last15Minutes, LastHour, Last24Hours, AllTime:
		return r, nil
	case "":
		return AllTime, nil
	default:
		return "", fmt.Errorf("invalid time range %q (want 15m, 1h, 24h or all)", s)
	}
}

// Set is an inclusion set. An empty set places no restriction on its dimension.
type Set[T comparable] map[T]struct{}

// NewSet builds a set from values.
func NewSet[T comparable](values ...T) Set[T] {
	s := make(Set[T], len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Allows reports whether v passes the set: always when the set is empty.
func (s Set[T]) Allows(v T) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[v]
	return ok
}

// Has reports whether v is selected.
func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}

// FilterState is the operator's current selection over the event log.
//
// Each set dimension (risk levels, event types, endpoint statuses) is either empty,
// meaning "match all", or a non-empty inclusion set. TimeRange always has a value;
// AllTime disables the time predicate.
type FilterState struct {
	RiskLevels Set[event.RiskLevel]
	Types      Set[event.Category]
	Statuses   Set[endpoint.Status]
	TimeRange  TimeRange
}

// Dimension names a toggleable FilterState dimension.
type Dimension string

const (
	DimRisk   Dimension = "risk"
	DimType   Dimension = "type"
	DimStatus Dimension = "status"
	DimTime   Dimension = "time"
)

// Resolver looks up the endpoint an event references.
type Resolver func(id string) (endpoint.Endpoint, bool)

// EventFilter is a function that determines if an event matches certain criteria.
// Filters are composable and are combined using AND logic in evaluation order.
type EventFilter func(event.Event) bool

// EventResult represents the result of reading an event from input.
// Errors are sent on the channel rather than stopping processing entirely.
type EventResult struct {
	Event event.Event
	Err   error
}

// Options contains the CLI flags of the query command.
type Options struct {
	InputFiles    []string // Input NDJSON file(s), empty means stdin
	OutputFile    string   // Output file path, empty means stdout
	InventoryFile string   // YAML endpoint inventory used by status filters and search

	Filters FilterState
	Search  string

	Since time.Time // Include events on or after this time, combined with Filters.TimeRange
	Now   time.Time // Reference instant for the time range, zero means time.Now

	Summary bool // Print summary counts instead of full events
	Limit   int  // Limit number of output events (0 = no limit)
}
