package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
)

// DefaultFilters returns a FilterState that matches every event.
func DefaultFilters() FilterState {
	return FilterState{
		RiskLevels: Set[event.RiskLevel]{},
		Types:      Set[event.Category]{},
		Statuses:   Set[endpoint.Status]{},
		TimeRange:  AllTime,
	}
}

// Toggle adds value to a set dimension, or removes it when already selected. For the
// time dimension value replaces the current range. The receiver is left untouched; the
// updated state is returned.
func (f FilterState) Toggle(dim Dimension, value string) (FilterState, error) {
	next := f.clone()
	switch dim {
	case DimRisk:
		lvl, err := event.ParseRiskLevel(value)
		if err != nil {
			return f, err
		}
		toggle(next.RiskLevels, lvl)
	case DimType:
		c, err := event.ParseCategory(value)
		if err != nil {
			return f, err
		}
		toggle(next.Types, c)
	case DimStatus:
		st, err := endpoint.ParseStatus(value)
		if err != nil {
			return f, err
		}
		toggle(next.Statuses, st)
	case DimTime:
		r, err := ParseTimeRange(value)
		if err != nil {
			return f, err
		}
		next.TimeRange = r
	default:
		return f, fmt.Errorf("unknown filter dimension %q", dim)
	}
	return next, nil
}

func (f FilterState) clone() FilterState {
	next := FilterState{
		RiskLevels: make(Set[event.RiskLevel], len(f.RiskLevels)),
		Types:      make(Set[event.Category], len(f.Types)),
		Statuses:   make(Set[endpoint.Status], len(f.Statuses)),
		TimeRange:  f.TimeRange,
	}
	for k := range f.RiskLevels {
		next.RiskLevels[k] = struct{}{}
	}
	for k := range f.Types {
		next.Types[k] = struct{}{}
	}
	for k := range f.Statuses {
		next.Statuses[k] = struct{}{}
	}
	if next.TimeRange == "" {
		next.TimeRange = AllTime
	}
	return next
}

func toggle[T comparable](s Set[T], v T) {
	if s.Has(v) {
		delete(s, v)
		return
	}
	s[v] = struct{}{}
}

// FilterByTimeRange creates a filter that rejects events older than now minus the window.
// AllTime (or an empty range) matches every event.
func FilterByTimeRange(r TimeRange, now time.Time) EventFilter {
	window := r.Window()
	return func(e event.Event) bool {
		if window == 0 {
			return true
		}
		return !e.Timestamp.Before(now.Add(-window))
	}
}

// FilterBySince creates a filter that matches events on or after since.
func FilterBySince(since time.Time) EventFilter {
	return func(e event.Event) bool {
		return !e.Timestamp.Before(since)
	}
}

// FilterByRisk creates a filter that matches events whose risk level is selected.
func FilterByRisk(levels Set[event.RiskLevel]) EventFilter {
	return func(e event.Event) bool {
		return levels.Allows(e.RiskLevel)
	}
}

// FilterByType creates a filter that matches events whose category is selected.
func FilterByType(types Set[event.Category]) EventFilter {
	return func(e event.Event) bool {
		return types.Allows(e.Category)
	}
}

// FilterByEndpointStatus creates a filter on the status of the event's endpoint.
//
// An event whose endpoint is not resident only fails when the status set is non-empty;
// with no status filter active such events pass.
func FilterByEndpointStatus(statuses Set[endpoint.Status], resolve Resolver) EventFilter {
	return func(e event.Event) bool {
		if len(statuses) == 0 {
			return true
		}
		ep, ok := lookup(resolve, e.EndpointID)
		if !ok {
			return false
		}
		return statuses.Has(ep.Status)
	}
}

// buildFilters translates a FilterState into the predicate chain, in evaluation order:
// time range, risk, type, endpoint status.
func buildFilters(f FilterState, resolve Resolver, now time.Time) []EventFilter {
	var filters []EventFilter

	if f.TimeRange.Window() > 0 {
		filters = append(filters, FilterByTimeRange(f.TimeRange, now))
	}
	if len(f.RiskLevels) > 0 {
		filters = append(filters, FilterByRisk(f.RiskLevels))
	}
	if len(f.Types) > 0 {
		filters = append(filters, FilterByType(f.Types))
	}
	if len(f.Statuses) > 0 {
		filters = append(filters, FilterByEndpointStatus(f.Statuses, resolve))
	}
	return filters
}

// MatchesSearch reports whether term occurs, case-insensitively, in the hostname, user
// or IP of the event's endpoint, or in the event's searchable text. An empty term
// matches everything. The error is non-nil only for events outside the closed set of
// categories.
func MatchesSearch(e event.Event, resolve Resolver, term string) (bool, error) {
	if term == "" {
		return true, nil
	}
	needle := strings.ToLower(term)
	if ep, ok := lookup(resolve, e.EndpointID); ok {
		if containsLower(ep.Hostname, needle) || containsLower(ep.User, needle) || containsLower(ep.IP, needle) {
			return true, nil
		}
	}
	texts, err := e.SearchText()
	if err != nil {
		return false, err
	}
	for _, s := range texts {
		if containsLower(s, needle) {
			return true, nil
		}
	}
	return false, nil
}

// Query evaluates filters and a search term over events, preserving their order.
// It never modifies events.
func Query(events []event.Event, resolve Resolver, f FilterState, term string, now time.Time) ([]event.Event, error) {
	filters := buildFilters(f, resolve, now)
	out := make([]event.Event, 0, len(events))
	for _, e := range events {
		if !matchAll(e, filters) {
			continue
		}
		ok, err := MatchesSearch(e, resolve, term)
		if err != nil {
			return nil, fmt.Errorf("search event %s: %w", e.ID, err)
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// matchAll applies all filters to an event using AND logic, stopping at the first
// failing predicate. If no filters are provided, all events match.
func matchAll(e event.Event, filters []EventFilter) bool {
	for _, filter := range filters {
		if !filter(e) {
			return false
		}
	}
	return true
}

func lookup(resolve Resolver, id string) (endpoint.Endpoint, bool) {
	if resolve == nil {
		return endpoint.Endpoint{}, false
	}
	return resolve(id)
}

// SetResolver adapts an endpoint.Set to a Resolver.
func SetResolver(s endpoint.Set) Resolver {
	return s.Get
}
