package event

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnknownCategory is returned when a record names a category outside the closed set.
	ErrUnknownCategory = errors.New("unknown event category")

	// ErrInvalidEvent is returned when a record's action or details do not fit its category.
	ErrInvalidEvent = errors.New("invalid event")
)

// Category is the tag of the event sum type.
type Category string

const (
	FileSystem   Category = "File System"
	Process      Category = "Process"
	Usb          Category = "USB"
	Network      Category = "Network"
	LoginAttempt Category = "Login Attempt"
	Admin        Category = "Admin Action"
	Audit        Category = "Audit"
)

// Categories lists every category in display order.
var Categories = []Category{FileSystem, Process, Usb, Network, LoginAttempt, Admin, Audit}

// TelemetryCategories are the categories produced by endpoint agents.
var TelemetryCategories = []Category{FileSystem, Process, Usb, Network, LoginAttempt}

// ParseCategory resolves a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Details is the category-specific payload. Only types in this package implement it.
type Details interface {
	Category() Category
	validate(action string) error
}

// FileDetails is the payload of a FileSystem event.
type FileDetails struct {
	Path        string `json:"path"`
	ProcessName string `json:"process_name"`
	ProcessID   int    `json:"process_id"`
	IsSensitive bool   `json:"is_sensitive"`
}

// ProcessDetails is the payload of a Process event.
type ProcessDetails struct {
	ProcessName  string `json:"process_name"`
	ProcessID    int    `json:"process_id"`
	CommandLine  string `json:"command_line"`
	IsSuspicious bool   `json:"is_suspicious"`
}

// UsbDetails is the payload of a Usb event.
type UsbDetails struct {
	DeviceName   string `json:"device_name"`
	SerialNumber string `json:"serial_number"`
	IsUntrusted  bool   `json:"is_untrusted"`
}

// NetworkDetails is the payload of a Network event.
type NetworkDetails struct {
	DestinationIP   string `json:"destination_ip"`
	DestinationPort int    `json:"destination_port"`
	Protocol        string `json:"protocol"`
}

// LoginDetails is the payload of a LoginAttempt event.
type LoginDetails struct {
	Username string `json:"username"`
	SourceIP string `json:"source_ip"`
}

// Description is the payload of Admin and Audit events.
type Description struct {
	Kind Category `json:"-"`
	Text string   `json:"description"`
}

func (FileDetails) Category() Category    { return FileSystem }
func (ProcessDetails) Category() Category { return Process }
func (UsbDetails) Category() Category     { return Usb }
func (NetworkDetails) Category() Category { return Network }
func (LoginDetails) Category() Category   { return LoginAttempt }
func (d Description) Category() Category  { return d.Kind }

// Actions per category.
const (
	FileCreated  = "Created"
	FileModified = "Modified"
	FileDeleted  = "Deleted"
	FileAccessed = "Accessed"
	FileRenamed  = "Renamed"

	ProcessStarted    = "Started"
	ProcessTerminated = "Terminated"

	UsbConnected    = "Connected"
	UsbDisconnected = "Disconnected"

	NetworkAttempt     = "Connection Attempt"
	NetworkEstablished = "Connection Established"

	LoginSuccess = "Success"
	LoginFailure = "Failure"
)

var actionsByCategory = map[Category][]string{
	FileSystem:   {FileCreated, FileModified, FileDeleted, FileAccessed, FileRenamed},
	Process:      {ProcessStarted, ProcessTerminated},
	Usb:          {UsbConnected, UsbDisconnected},
	Network:      {NetworkAttempt, NetworkEstablished},
	LoginAttempt: {LoginSuccess, LoginFailure},
}

// Actions returns the valid actions for a telemetry category.
func Actions(c Category) []string {
	return actionsByCategory[c]
}

func checkAction(c Category, action string) error {
	for _, a := range actionsByCategory[c] {
		if a == action {
			return nil
		}
	}
	return fmt.Errorf("%w: action %q is not valid for %s", ErrInvalidEvent, action, c)
}

func requireField(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: missing %s", ErrInvalidEvent, field)
	}
	return nil
}

func (d FileDetails) validate(action string) error {
	if err := checkAction(FileSystem, action); err != nil {
		return err
	}
	if err := requireField("path", d.Path); err != nil {
		return err
	}
	return requireField("process_name", d.ProcessName)
}

func (d ProcessDetails) validate(action string) error {
	if err := checkAction(Process, action); err != nil {
		return err
	}
	return requireField("process_name", d.ProcessName)
}

func (d UsbDetails) validate(action string) error {
	if err := checkAction(Usb, action); err != nil {
		return err
	}
	if err := requireField("device_name", d.DeviceName); err != nil {
		return err
	}
	return requireField("serial_number", d.SerialNumber)
}

func (d NetworkDetails) validate(action string) error {
	if err := checkAction(Network, action); err != nil {
		return err
	}
	if err := requireField("destination_ip", d.DestinationIP); err != nil {
		return err
	}
	if d.Protocol != "TCP" && d.Protocol != "UDP" {
		return fmt.Errorf("%w: protocol %q", ErrInvalidEvent, d.Protocol)
	}
	return nil
}

func (d LoginDetails) validate(action string) error {
	if err := checkAction(LoginAttempt, action); err != nil {
		return err
	}
	if err := requireField("username", d.Username); err != nil {
		return err
	}
	return requireField("source_ip", d.SourceIP)
}

func (d Description) validate(action string) error {
	if d.Kind != Admin && d.Kind != Audit {
		return fmt.Errorf("%w: %q carries no description", ErrUnknownCategory, d.Kind)
	}
	return requireField("description", d.Text)
}

// Event is a single recorded occurrence on an endpoint. Events are values;
// once built they are only annotated by the classifier and never mutated after insertion.
type Event struct {
	ID           string
	Timestamp    time.Time
	EndpointID   string
	Category     Category
	Action       string
	RiskLevel    RiskLevel
	AnomalyScore *float64
	RiskReason   string
	Details      Details
}

// New builds an event and checks that details and action belong to category.
func New(id string, ts time.Time, endpointID string, category Category, action string, details Details) (Event, error) {
	if err := requireField("id", id); err != nil {
		return Event{}, err
	}
	if details == nil {
		return Event{}, fmt.Errorf("%w: %s event has no details", ErrInvalidEvent, category)
	}
	switch category {
	case FileSystem, Process, Usb, Network, LoginAttempt, Admin, Audit:
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if details.Category() != category {
		return Event{}, fmt.Errorf("%w: %s details on %s event", ErrInvalidEvent, details.Category(), category)
	}
	if err := details.validate(action); err != nil {
		return Event{}, err
	}
	return Event{
		ID:         id,
		Timestamp:  ts,
		EndpointID: endpointID,
		Category:   category,
		Action:     action,
		RiskLevel:  Low,
		Details:    details,
	}, nil
}

// NewFileSystem builds a FileSystem event.
func NewFileSystem(id string, ts time.Time, endpointID, action string, d FileDetails) (Event, error) {
	return New(id, ts, endpointID, FileSystem, action, d)
}

// NewProcess builds a Process event.
func NewProcess(id string, ts time.Time, endpointID, action string, d ProcessDetails) (Event, error) {
	return New(id, ts, endpointID, Process, action, d)
}

// NewUsb builds a Usb event.
func NewUsb(id string, ts time.Time, endpointID, action string, d UsbDetails) (Event, error) {
	return New(id, ts, endpointID, Usb, action, d)
}

// NewNetwork builds a Network event.
func NewNetwork(id string, ts time.Time, endpointID, action string, d NetworkDetails) (Event, error) {
	return New(id, ts, endpointID, Network, action, d)
}

// NewLoginAttempt builds a LoginAttempt event.
func NewLoginAttempt(id string, ts time.Time, endpointID, action string, d LoginDetails) (Event, error) {
	return New(id, ts, endpointID, LoginAttempt, action, d)
}

// NewAdmin builds an Admin event. Admin events are always Low risk.
func NewAdmin(id string, ts time.Time, endpointID, description string) (Event, error) {
	return New(id, ts, endpointID, Admin, "", Description{Kind: Admin, Text: description})
}

// NewAudit builds an Audit event. Audit events are always Low risk.
func NewAudit(id string, ts time.Time, endpointID, description string) (Event, error) {
	return New(id, ts, endpointID, Audit, "", Description{Kind: Audit, Text: description})
}

// Description returns the free-text description of Admin and Audit events.
func (e Event) Description() string {
	if d, ok := e.Details.(Description); ok {
		return d.Text
	}
	return ""
}

// SearchText returns the category-specific strings matched by free-text search.
func (e Event) SearchText() ([]string, error) {
	switch d := e.Details.(type) {
	case FileDetails:
		return []string{d.Path, d.ProcessName}, nil
	case ProcessDetails:
		return []string{d.ProcessName, d.CommandLine, strconv.Itoa(d.ProcessID)}, nil
	case UsbDetails:
		return []string{d.DeviceName, d.SerialNumber}, nil
	case NetworkDetails:
		return []string{d.DestinationIP}, nil
	case LoginDetails:
		return []string{d.Username, d.SourceIP}, nil
	case Description:
		return []string{d.Text}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCategory, e.Details)
	}
}

// IsAnomalous reports whether the event carries an anomaly score above threshold.
func (e Event) IsAnomalous(threshold float64) bool {
	return e.AnomalyScore != nil && *e.AnomalyScore > threshold
}
