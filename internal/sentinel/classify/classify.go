package classify

import (
	"fmt"
	"path"
	"strings"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/config"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/logger"
)

// Anomaly reasons attached by the overlay.
const (
	ReasonCritical = "Critical deviation from baseline behavior."
	ReasonUnusual  = "Unusual activity pattern detected."
	ReasonMinor    = "Minor behavioral anomaly detected."
)

// Score bands of the anomaly overlay. A score strictly above a band selects it.
const (
	CriticalBand = 0.9
	HighBand     = 0.7
)

// AnomalySource is an external behavioral model. ok is false when the model has no opinion.
type AnomalySource interface {
	Score(e event.Event, ep *endpoint.Endpoint) (score float64, ok bool)
}

// ScoreFunc adapts a function to AnomalySource.
type ScoreFunc func(e event.Event, ep *endpoint.Endpoint) (float64, bool)

func (f ScoreFunc) Score(e event.Event, ep *endpoint.Endpoint) (float64, bool) { return f(e, ep) }

// Classifier assigns risk levels from the policy tables and the anomaly overlay.
type Classifier struct {
	sensitivePaths   map[string]struct{}
	sensitiveNames   map[string]struct{}
	suspicious       []string
	untrustedSerials map[string]struct{}
	anomaly          AnomalySource
}

// New builds a classifier. A nil policy uses config.DefaultPolicy; a nil source disables
// model scoring, though scores already carried by an event are still honored.
func New(policy *config.Policy, anomaly AnomalySource) *Classifier {
	if policy == nil {
		policy = config.DefaultPolicy()
	}
	c := &Classifier{
		sensitivePaths:   make(map[string]struct{}, len(policy.SensitivePaths)),
		sensitiveNames:   make(map[string]struct{}),
		untrustedSerials: make(map[string]struct{}, len(policy.UntrustedSerials)),
		anomaly:          anomaly,
	}
	for _, p := range policy.SensitivePaths {
		c.sensitivePaths[p] = struct{}{}
		// bare file names match in any directory
		if !strings.ContainsAny(p, `/\`) {
			c.sensitiveNames[p] = struct{}{}
		}
	}
	for _, p := range policy.SuspiciousProcesses {
		c.suspicious = append(c.suspicious, strings.ToLower(p))
	}
	for _, s := range policy.UntrustedSerials {
		c.untrustedSerials[s] = struct{}{}
	}

	logger.L().Debugw("Creating classifier",
		"sensitive_paths", len(policy.SensitivePaths),
		"suspicious_processes", len(policy.SuspiciousProcesses),
		"untrusted_serials", len(policy.UntrustedSerials),
		"anomaly_model", anomaly != nil)
	return c
}

// Classify returns e annotated with its risk level, policy flags and any anomaly overlay.
// ep is the endpoint snapshot the event references, or nil when it is not resident.
func (c *Classifier) Classify(e event.Event, ep *endpoint.Endpoint) (event.Event, error) {
	base, details, err := c.baseRisk(e)
	if err != nil {
		return event.Event{}, err
	}
	e.Details = details
	e.RiskLevel = base
	e.RiskReason = ""

	if !overlayApplies(e.Category) {
		e.AnomalyScore = nil
		return e, nil
	}

	score, ok := c.score(e, ep)
	if !ok {
		return e, nil
	}
	if score < 0 || score > 1 {
		logger.L().Warnw("Ignoring anomaly score outside [0,1]",
			"event_id", e.ID,
			"score", score)
		e.AnomalyScore = nil
		return e, nil
	}

	level, reason := Overlay(base, score)
	e.AnomalyScore = &score
	e.RiskLevel = level
	e.RiskReason = reason

	logger.L().Debugw("Applied anomaly overlay",
		"event_id", e.ID,
		"category", e.Category,
		"score", score,
		"base_risk", base,
		"risk", level)
	return e, nil
}

// score prefers a score delivered with the event over the model.
func (c *Classifier) score(e event.Event, ep *endpoint.Endpoint) (float64, bool) {
	if e.AnomalyScore != nil {
		return *e.AnomalyScore, true
	}
	if c.anomaly == nil {
		return 0, false
	}
	return c.anomaly.Score(e, ep)
}

// Overlay combines a base level with an anomaly score. The result is never below base.
func Overlay(base event.RiskLevel, score float64) (event.RiskLevel, string) {
	switch {
	case score > CriticalBand:
		return event.MaxRisk(base, event.Critical), ReasonCritical
	case score > HighBand:
		return event.MaxRisk(base, event.High), ReasonUnusual
	default:
		return base, ReasonMinor
	}
}

func overlayApplies(c event.Category) bool {
	switch c {
	case event.FileSystem, event.Process, event.Network:
		return true
	}
	return false
}

// baseRisk applies the policy table. Policy flags on the details are recomputed so the
// payload always agrees with the tables in force.
func (c *Classifier) baseRisk(e event.Event) (event.RiskLevel, event.Details, error) {
	switch d := e.Details.(type) {
	case event.FileDetails:
		d.IsSensitive = c.isSensitivePath(d.Path)
		switch {
		case d.IsSensitive:
			return event.High, d, nil
		case e.Action == event.FileAccessed:
			return event.Low, d, nil
		default:
			return event.Medium, d, nil
		}
	case event.ProcessDetails:
		d.IsSuspicious = c.isSuspicious(d.ProcessName, d.CommandLine)
		if d.IsSuspicious {
			return event.Critical, d, nil
		}
		return event.Medium, d, nil
	case event.UsbDetails:
		_, d.IsUntrusted = c.untrustedSerials[d.SerialNumber]
		if d.IsUntrusted && e.Action == event.UsbConnected {
			return event.Critical, d, nil
		}
		return event.Medium, d, nil
	case event.NetworkDetails:
		if isWebPort(d.DestinationPort) {
			return event.Low, d, nil
		}
		return event.Medium, d, nil
	case event.LoginDetails:
		if e.Action == event.LoginFailure {
			return event.High, d, nil
		}
		return event.Low, d, nil
	case event.Description:
		return event.Low, d, nil
	default:
		return 0, nil, fmt.Errorf("%w: %T on event %s", event.ErrUnknownCategory, e.Details, e.ID)
	}
}

func (c *Classifier) isSensitivePath(p string) bool {
	if _, ok := c.sensitivePaths[p]; ok {
		return true
	}
	base := path.Base(strings.ReplaceAll(p, `\`, "/"))
	_, ok := c.sensitiveNames[base]
	return ok
}

// isSuspicious matches an entry against the process name, or against the command line
// for entries that carry arguments (e.g. "powershell.exe -enc").
func (c *Classifier) isSuspicious(name, cmdline string) bool {
	name = strings.ToLower(name)
	cmdline = strings.ToLower(cmdline)
	for _, s := range c.suspicious {
		if s == name {
			return true
		}
		if strings.Contains(s, " ") && strings.Contains(cmdline, s) {
			return true
		}
	}
	return false
}

func isWebPort(port int) bool {
	return port == 80 || port == 443
}
