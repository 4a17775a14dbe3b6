package settings

import (
	"fmt"
	"strings"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/config"
)

// KeyDataRetentionPeriod is the only settable key.
const KeyDataRetentionPeriod = "dataRetentionPeriod"

// Retention is a data retention period. It is a policy label; nothing is deleted by it.
type Retention string

const (
	Retention30Days     Retention = "30d"
	Retention90Days     Retention = "90d"
	RetentionOneYear    Retention = "1y"
	RetentionIndefinite Retention = "indefinite"
)

// Retentions lists the enumerated periods.
var Retentions = []Retention{Retention30Days, Retention90Days, RetentionOneYear, RetentionIndefinite}

var labels = map[Retention]string{
	Retention30Days:     "30 Days",
	Retention90Days:     "90 Days",
	RetentionOneYear:    "1 Year",
	RetentionIndefinite: "Indefinite",
}

// Label returns the human readable name of r.
func (r Retention) Label() string {
	if l, ok := labels[r]; ok {
		return l
	}
	return string(r)
}

// ParseRetention accepts either the code ("90d") or the label ("90 Days").
func ParseRetention(s string) (Retention, error) {
	s = strings.TrimSpace(s)
	for _, r := range Retentions {
		if strings.EqualFold(string(r), s) || strings.EqualFold(labels[r], s) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: retention period %q is not one of 30d, 90d, 1y, indefinite", config.ErrConfiguration, s)
}

// State is the settings snapshot.
type State struct {
	DataRetentionPeriod Retention `json:"data_retention_period"`
}

// Default returns the shipped settings.
func Default() State {
	return State{DataRetentionPeriod: Retention90Days}
}

// FromConfig builds the initial state, validating the configured value.
func FromConfig(c config.SettingsCfg) (State, error) {
	if c.DataRetentionPeriod == "" {
		return Default(), nil
	}
	r, err := ParseRetention(c.DataRetentionPeriod)
	if err != nil {
		return State{}, err
	}
	return State{DataRetentionPeriod: r}, nil
}

// Change is an applied settings update.
type Change struct {
	Key      string
	Old, New State
}

// Apply returns s with key set to value.
func (s State) Apply(key, value string) (Change, error) {
	switch key {
	case KeyDataRetentionPeriod, "data_retention_period":
		r, err := ParseRetention(value)
		if err != nil {
			return Change{}, err
		}
		next := s
		next.DataRetentionPeriod = r
		return Change{Key: KeyDataRetentionPeriod, Old: s, New: next}, nil
	default:
		return Change{}, fmt.Errorf("%w: unknown setting %q", config.ErrConfiguration, key)
	}
}

// Describe renders the Audit event description for a change.
func (c Change) Describe() string {
	return fmt.Sprintf("Admin updated Data Retention Policy from '%s' to '%s'",
		c.Old.DataRetentionPeriod.Label(), c.New.DataRetentionPeriod.Label())
}
