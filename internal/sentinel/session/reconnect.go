package session

import (
	"fmt"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/logger"
)

// ReconnectReport describes one burst replay.
type ReconnectReport struct {
	EndpointID string
	Hostname   string
	Replayed   int
	Evicted    int
}

// ReconnectTick runs one reconnection step. The first Offline endpoint in registry
// order with queued events is eligible; it reconnects with the configured chance.
// ok is false when nothing reconnected.
func (s *Session) ReconnectTick() (rep ReconnectReport, ok bool) {
	if s.bursts == nil {
		return ReconnectReport{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.View()
	var candidate *endpoint.Endpoint
	for _, ep := range cur.Endpoints.List() {
		if ep.Status == endpoint.Offline && ep.QueuedEvents > 0 {
			candidate = &ep
			break
		}
	}
	if candidate == nil || !s.chance(s.reconnectChance) {
		return ReconnectReport{}, false
	}

	rep, err := s.reconnect(cur, *candidate)
	if err != nil {
		logger.L().Errorw("reconnect failed", "endpoint_id", candidate.ID, "error", err)
		return ReconnectReport{}, false
	}
	return rep, true
}

// SetConnectivity applies an agent connectivity change. Going online replays the
// endpoint's backlog in the same step as the status flip.
func (s *Session) SetConnectivity(endpointID string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.View()
	ep, ok := cur.Endpoints.Get(endpointID)
	if !ok {
		return fmt.Errorf("%w: %s", endpoint.ErrUnknownEndpoint, endpointID)
	}

	if online {
		_, err := s.reconnect(cur, ep)
		return err
	}

	down, err := ep.Disconnect()
	if err != nil {
		return err
	}
	next := *cur
	if next.Endpoints, err = cur.Endpoints.With(down); err != nil {
		return err
	}
	s.publish(&next)
	logger.L().Infow("endpoint offline", "endpoint_id", ep.ID, "hostname", ep.Hostname)
	return nil
}

// reconnect materialises ep's backlog, flips it Online and publishes both as one view.
// Nothing is published when any backlog record fails to classify.
func (s *Session) reconnect(cur *View, ep endpoint.Endpoint) (ReconnectReport, error) {
	up, err := ep.Reconnect()
	if err != nil {
		return ReconnectReport{}, err
	}

	var burst []event.Event
	if ep.QueuedEvents > 0 {
		if s.bursts == nil {
			return ReconnectReport{}, fmt.Errorf("endpoint %s has %d queued events and no burst source", ep.ID, ep.QueuedEvents)
		}
		records := s.bursts.Burst(ep.ID, ep.QueuedEvents, s.burstWindow, s.now())
		burst = make([]event.Event, 0, len(records))
		for i, r := range records {
			e, err := s.admit(cur, r)
			if err != nil {
				return ReconnectReport{}, fmt.Errorf("backlog record %d: %w", i, err)
			}
			burst = append(burst, e)
		}
	}

	next := *cur
	if next.Endpoints, err = cur.Endpoints.With(up); err != nil {
		return ReconnectReport{}, err
	}
	final := s.insert(&next, burst)
	for _, e := range burst {
		s.seen(e.ID)
	}
	s.publish(final)

	rep := ReconnectReport{
		EndpointID: ep.ID,
		Hostname:   ep.Hostname,
		Replayed:   len(burst),
		Evicted:    len(cur.Events) + len(burst) - len(final.Events),
	}
	s.metrics.Reconnected()
	s.metrics.Ingested(len(burst))
	logger.L().Infow("endpoint reconnected",
		"endpoint_id", ep.ID,
		"hostname", ep.Hostname,
		"replayed", rep.Replayed,
		"evicted", rep.Evicted)
	return rep, nil
}
