package session

import (
	"fmt"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/access"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/action"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/logger"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/metrics"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/settings"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/store"
)

// SettingsEndpointID is the endpoint id carried by settings Audit events.
const SettingsEndpointID = "dashboard"

// Result describes a dispatched action.
type Result struct {
	Action   action.Action
	Endpoint endpoint.Endpoint // state after the action
	Event    *event.Event      // the event the action was taken from, when still in the log
	Recorded *event.Event      // the Admin event appended, nil for View Details
	Changed  bool              // endpoint status changed
}

// PerformAction applies an operator action to endpointID on behalf of role.
//
// Authorization is checked before anything is read or written. View Details is
// read-only and requires eventID to resolve. The other actions append one Admin
// event together with any status change, in the same published view.
func (s *Session) PerformAction(role access.Role, name, eventID, endpointID string) (Result, error) {
	a, err := action.Parse(name)
	if err != nil {
		s.metrics.Action(name, metrics.OutcomeFailed)
		return Result{}, err
	}
	if err := s.gate.Require(role, a.Required()...); err != nil {
		s.metrics.Action(string(a), metrics.OutcomeDenied)
		logger.L().Warnw("action denied", "action", a, "role", role, "endpoint_id", endpointID)
		return Result{}, err
	}

	if !a.Mutating() {
		return s.viewDetails(a, eventID, endpointID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.View()
	ep, ok := cur.Endpoints.Get(endpointID)
	if !ok {
		s.metrics.Action(string(a), metrics.OutcomeFailed)
		return Result{}, fmt.Errorf("%w: %s", endpoint.ErrUnknownEndpoint, endpointID)
	}

	res := Result{Action: a, Endpoint: ep}
	if target, ok := store.Find(cur.Events, eventID); ok {
		res.Event = &target
	}

	next := *cur
	if a.Quarantines() {
		var changed bool
		res.Endpoint, changed = ep.Quarantine()
		if changed {
			if next.Endpoints, err = cur.Endpoints.With(res.Endpoint); err != nil {
				return Result{}, err
			}
			res.Changed = true
		}
	}

	admin, err := event.NewAdmin(s.newID(), s.now(), endpointID, action.Describe(a, role, ep.Hostname))
	if err != nil {
		return Result{}, err
	}
	s.publish(s.insert(&next, []event.Event{admin}))
	s.record(admin)

	res.Recorded = &admin
	outcome := metrics.OutcomeApplied
	if a.Quarantines() && !res.Changed {
		outcome = metrics.OutcomeNoop
	}
	s.metrics.Action(string(a), outcome)
	logger.L().Infow("action applied",
		"action", a,
		"role", role,
		"endpoint_id", endpointID,
		"hostname", ep.Hostname,
		"status", res.Endpoint.Status,
		"changed", res.Changed)
	return res, nil
}

func (s *Session) viewDetails(a action.Action, eventID, endpointID string) (Result, error) {
	v := s.View()
	ep, ok := v.Endpoints.Get(endpointID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", endpoint.ErrUnknownEndpoint, endpointID)
	}
	e, ok := store.Find(v.Events, eventID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownEvent, eventID)
	}
	s.metrics.Action(string(a), metrics.OutcomeApplied)
	return Result{Action: a, Endpoint: ep, Event: &e}, nil
}

// UpdateSetting changes one setting on behalf of role and records an Audit event
// naming the old and new values.
func (s *Session) UpdateSetting(role access.Role, key, value string) (settings.State, error) {
	if err := s.gate.Require(role, access.ManageSettings); err != nil {
		logger.L().Warnw("settings change denied", "role", role, "key", key)
		return s.View().Settings, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.View()
	change, err := cur.Settings.Apply(key, value)
	if err != nil {
		return cur.Settings, err
	}
	audit, err := event.NewAudit(s.newID(), s.now(), SettingsEndpointID, change.Describe())
	if err != nil {
		return cur.Settings, err
	}

	next := *cur
	next.Settings = change.New
	s.publish(s.insert(&next, []event.Event{audit}))
	s.record(audit)

	logger.L().Infow("setting updated",
		"role", role,
		"key", change.Key,
		"old", change.Old.DataRetentionPeriod,
		"new", change.New.DataRetentionPeriod)
	return change.New, nil
}
