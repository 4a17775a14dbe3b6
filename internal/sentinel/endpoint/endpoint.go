package endpoint

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownEndpoint is returned when an id does not resolve to a resident endpoint.
	ErrUnknownEndpoint = errors.New("unknown endpoint")

	// ErrInvalidTransition is returned for status changes outside the state machine.
	ErrInvalidTransition = errors.New("invalid endpoint status transition")
)

// Status of a monitored host.
//
//	Online <-> Offline        agent connectivity
//	{Online,Offline} -> Quarantined   operator action, one-way
type Status string

const (
	Online      Status = "Online"
	Offline     Status = "Offline"
	Quarantined Status = "Quarantined"
)

// Statuses lists every status in display order.
var Statuses = []Status{Online, Offline, Quarantined}

// ParseStatus resolves a status name, case-insensitively.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid endpoint status %q", s)
}

// Connection describes the agent channel.
type Connection struct {
	Protocol   string `yaml:"protocol" json:"protocol"`       // TLSv1.3 | TLSv1.2
	AuthMethod string `yaml:"auth_method" json:"auth_method"` // Token | mTLS
	Status     string `yaml:"status" json:"status"`           // Secure | Compromised | Unavailable
}

const (
	ConnSecure      = "Secure"
	ConnCompromised = "Compromised"
	ConnUnavailable = "Unavailable"
)

// Endpoint is a monitored host.
type Endpoint struct {
	ID           string     `yaml:"id" json:"id"`
	Hostname     string     `yaml:"hostname" json:"hostname"`
	User         string     `yaml:"user" json:"user"`
	IP           string     `yaml:"ip" json:"ip"`
	Status       Status     `yaml:"status" json:"status"`
	OS           string     `yaml:"os" json:"os"`
	AgentVersion string     `yaml:"agent_version" json:"agent_version"`
	CPUUsage     float64    `yaml:"cpu_usage" json:"cpu_usage"`
	Connection   Connection `yaml:"connection" json:"connection"`
	QueuedEvents int        `yaml:"queued_events" json:"queued_events"`
}

// Quarantine moves the endpoint to Quarantined. changed is false when it already was.
func (e Endpoint) Quarantine() (out Endpoint, changed bool) {
	if e.Status == Quarantined {
		return e, false
	}
	e.Status = Quarantined
	return e, true
}

// Reconnect moves an Offline endpoint Online, clearing its queue.
func (e Endpoint) Reconnect() (Endpoint, error) {
	if e.Status != Offline {
		return e, fmt.Errorf("%w: %s is %s, not %s", ErrInvalidTransition, e.ID, e.Status, Offline)
	}
	e.Status = Online
	e.QueuedEvents = 0
	e.Connection.Status = ConnSecure
	return e, nil
}

// Disconnect moves an Online endpoint Offline.
func (e Endpoint) Disconnect() (Endpoint, error) {
	if e.Status != Online {
		return e, fmt.Errorf("%w: %s is %s, not %s", ErrInvalidTransition, e.ID, e.Status, Online)
	}
	e.Status = Offline
	e.Connection.Status = ConnUnavailable
	return e, nil
}

// Set is an immutable, ordered collection of endpoints. Mutators return a new Set.
type Set struct {
	order []string
	byID  map[string]Endpoint
}

// NewSet builds a Set, rejecting blank and duplicate ids.
func NewSet(endpoints []Endpoint) (Set, error) {
	s := Set{order: make([]string, 0, len(endpoints)), byID: make(map[string]Endpoint, len(endpoints))}
	for i, ep := range endpoints {
		if strings.TrimSpace(ep.ID) == "" {
			return Set{}, fmt.Errorf("endpoint %d has no id", i)
		}
		if _, dup := s.byID[ep.ID]; dup {
			return Set{}, fmt.Errorf("duplicate endpoint id %q", ep.ID)
		}
		if ep.Status == "" {
			ep.Status = Online
		}
		if _, err := ParseStatus(string(ep.Status)); err != nil {
			return Set{}, fmt.Errorf("endpoint %q: %w", ep.ID, err)
		}
		s.order = append(s.order, ep.ID)
		s.byID[ep.ID] = ep
	}
	return s, nil
}

// Get resolves an endpoint by id.
func (s Set) Get(id string) (Endpoint, bool) {
	ep, ok := s.byID[id]
	return ep, ok
}

// Len returns the number of endpoints.
func (s Set) Len() int { return len(s.order) }

// List returns the endpoints in registry order.
func (s Set) List() []Endpoint {
	out := make([]Endpoint, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// With returns a copy of s where ep replaces the endpoint of the same id.
func (s Set) With(ep Endpoint) (Set, error) {
	if _, ok := s.byID[ep.ID]; !ok {
		return s, fmt.Errorf("%w: %s", ErrUnknownEndpoint, ep.ID)
	}
	next := Set{order: s.order, byID: make(map[string]Endpoint, len(s.byID))}
	for id, v := range s.byID {
		next.byID[id] = v
	}
	next.byID[ep.ID] = ep
	return next, nil
}

// CountByStatus returns how many endpoints are in each status.
func (s Set) CountByStatus() map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, ep := range s.byID {
		counts[ep.Status]++
	}
	return counts
}

type inventory struct {
	Endpoints []Endpoint `yaml:"endpoints"`
}

// DecodeInventory reads a YAML endpoint inventory.
func DecodeInventory(r io.Reader) (Set, error) {
	var inv inventory
	if err := yaml.NewDecoder(r).Decode(&inv); err != nil {
		return Set{}, fmt.Errorf("decode inventory YAML: %w", err)
	}
	return NewSet(inv.Endpoints)
}

// LoadInventory reads a YAML endpoint inventory from path.
func LoadInventory(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return Set{}, fmt.Errorf("open inventory: %w", err)
	}
	defer f.Close()
	return DecodeInventory(f)
}

// EncodeInventory writes endpoints in the format DecodeInventory reads.
func EncodeInventory(w io.Writer, endpoints []Endpoint) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(inventory{Endpoints: endpoints}); err != nil {
		return fmt.Errorf("encode inventory YAML: %w", err)
	}
	return enc.Close()
}
