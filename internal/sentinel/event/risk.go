package event

import (
	"fmt"
	"strings"
)

// RiskLevel is the ordinal severity of an event.
// Hierarchy (lowest to highest): Low < Medium < High < Critical.
type RiskLevel int

const (
	Low RiskLevel = iota + 1
	Medium
	High
	Critical
)

// RiskLevels lists every level from lowest to highest.
var RiskLevels = []RiskLevel{Low, Medium, High, Critical}

func (r RiskLevel) String() string {
	switch r {
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	case Critical:
		return "Critical"
	default:
		return fmt.Sprintf("RiskLevel(%d)", int(r))
	}
}

// Valid reports whether r is one of the four defined levels.
func (r RiskLevel) Valid() bool {
	return r >= Low && r <= Critical
}

// ParseRiskLevel resolves a level name, case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, error) {
	for _, r := range RiskLevels {
		if strings.EqualFold(r.String(), strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("invalid risk level %q", s)
}

// MaxRisk returns the higher of two levels.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if a > b {
		return a
	}
	return b
}

// CompareRiskLevels returns -1, 0 or 1 as a is lower than, equal to or higher than b.
func CompareRiskLevels(a, b RiskLevel) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// MarshalText encodes the level by name.
func (r RiskLevel) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid risk level %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a level name.
func (r *RiskLevel) UnmarshalText(b []byte) error {
	lvl, err := ParseRiskLevel(string(b))
	if err != nil {
		return err
	}
	*r = lvl
	return nil
}
