package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/config"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
)

// Shared lists for synthetic telemetry.
var (
	hostPrefixes   = []string{"CORP-LT", "FIN-WS", "HR-PC", "DEV-MBP", "SRV-DB", "ENG-WS", "OPS-LT"}
	operatingSys   = []string{"Windows", "macOS", "Linux"}
	agentVersions  = []string{"1.0.2", "1.0.3", "1.1.0", "1.2.0"}
	tlsVersions    = []string{"TLSv1.3", "TLSv1.2"}
	authMethods    = []string{"Token", "mTLS"}
	ordinaryPaths  = []string{"/home/user/report.pdf", `C:\Users\Public\notes.txt`, "/var/log/syslog", "/tmp/build.log", `C:\Program Files\App\config.ini`}
	ordinaryProcs  = []string{"chrome.exe", "explorer.exe", "svchost.exe", "code", "bash", "outlook.exe", "python3"}
	usbDevices     = []string{"SanDisk Ultra", "Kingston DataTraveler", "Logitech Receiver", "Samsung T7", "YubiKey 5"}
	networkPorts   = []int{80, 443, 22, 53, 3389, 4444, 8080}
	networkProtos  = []string{"TCP", "UDP"}
	untrustedNames = []string{"Malicious USB", "Unknown Mass Storage"}
)

// Generator produces synthetic endpoints and telemetry. It stands in for a real agent
// feed and is safe for concurrent use.
type Generator struct {
	mu          sync.Mutex
	faker       *gofakeit.Faker
	policy      *config.Policy
	anomalyRate float64
}

// NewGenerator returns a generator seeded with seed; zero seeds randomly. A nil policy
// uses config.DefaultPolicy so that generated events hit the tables in force.
func NewGenerator(seed int64, policy *config.Policy, anomalyRate float64) *Generator {
	if policy == nil {
		policy = config.DefaultPolicy()
	}
	return &Generator{
		faker:       gofakeit.New(uint64(seed)),
		policy:      policy,
		anomalyRate: anomalyRate,
	}
}

// Chance reports true with probability p.
func (g *Generator) Chance(p float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.faker.Float64Range(0, 1) < p
}

// Endpoints generates n endpoints. Roughly one in four starts Offline with a backlog.
func (g *Generator) Endpoints(n int) []endpoint.Endpoint {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]endpoint.Endpoint, 0, n)
	for i := 1; i <= n; i++ {
		ep := endpoint.Endpoint{
			ID:           fmt.Sprintf("endpoint-%d", i),
			Hostname:     fmt.Sprintf("%s-%02d", g.faker.RandomString(hostPrefixes), i),
			User:         strings.ToLower(g.faker.FirstName()[:1] + "." + g.faker.LastName()),
			IP:           fmt.Sprintf("192.168.1.%d", 99+i),
			Status:       endpoint.Online,
			OS:           g.faker.RandomString(operatingSys),
			AgentVersion: g.faker.RandomString(agentVersions),
			CPUUsage:     round2(g.faker.Float64Range(1, 95)),
			Connection: endpoint.Connection{
				Protocol:   g.faker.RandomString(tlsVersions),
				AuthMethod: g.faker.RandomString(authMethods),
				Status:     endpoint.ConnSecure,
			},
		}
		if g.faker.Float64Range(0, 1) < 0.25 {
			ep.Status = endpoint.Offline
			ep.Connection.Status = endpoint.ConnUnavailable
			ep.QueuedEvents = g.faker.Number(5, 20)
		}
		out = append(out, ep)
	}
	return out
}

// Live produces one record for the live feed, preferring Online endpoints and falling
// back to any endpoint. ok is false when there are no endpoints.
func (g *Generator) Live(endpoints []endpoint.Endpoint, at time.Time) (rec Record, ok bool) {
	if len(endpoints) == 0 {
		return Record{}, false
	}
	var online []endpoint.Endpoint
	for _, ep := range endpoints {
		if ep.Status == endpoint.Online {
			online = append(online, ep)
		}
	}
	pool := online
	if len(pool) == 0 {
		pool = endpoints
	}

	g.mu.Lock()
	ep := pool[g.faker.Number(0, len(pool)-1)]
	g.mu.Unlock()
	return g.Record(ep.ID, at), true
}

// Batch produces n records spread over endpoints, timestamped within window before now.
func (g *Generator) Batch(endpoints []endpoint.Endpoint, n int, window time.Duration, now time.Time) []Record {
	if len(endpoints) == 0 {
		return nil
	}
	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		g.mu.Lock()
		ep := endpoints[g.faker.Number(0, len(endpoints)-1)]
		at := now.Add(-g.backdate(window))
		g.mu.Unlock()
		out = append(out, g.Record(ep.ID, at))
	}
	return out
}

// Burst materialises count backlog records for endpointID with timestamps within window
// before now.
func (g *Generator) Burst(endpointID string, count int, window time.Duration, now time.Time) []Record {
	out := make([]Record, 0, count)
	for i := 0; i < count; i++ {
		g.mu.Lock()
		at := now.Add(-g.backdate(window))
		g.mu.Unlock()
		out = append(out, g.Record(endpointID, at))
	}
	return out
}

func (g *Generator) backdate(window time.Duration) time.Duration {
	if window <= 0 {
		return 0
	}
	return time.Duration(g.faker.Float64Range(0, 1) * float64(window))
}

// Record produces one telemetry record of a random category.
func (g *Generator) Record(endpointID string, at time.Time) Record {
	g.mu.Lock()
	defer g.mu.Unlock()

	category := event.TelemetryCategories[g.faker.Number(0, len(event.TelemetryCategories)-1)]
	actions := event.Actions(category)
	rec := Record{
		EventID:    g.faker.UUID(),
		Timestamp:  at.UTC().Format(time.RFC3339Nano),
		EndpointID: endpointID,
		EventType:  string(category),
		Action:     actions[g.faker.Number(0, len(actions)-1)],
	}

	var details any
	switch category {
	case event.FileSystem:
		path := g.faker.RandomString(ordinaryPaths)
		if g.faker.Float64Range(0, 1) < 0.2 {
			path = g.faker.RandomString(g.policy.SensitivePaths)
		}
		details = event.FileDetails{Path: path, ProcessName: g.faker.RandomString(ordinaryProcs), ProcessID: g.faker.Number(100, 9999)}
	case event.Process:
		name := g.faker.RandomString(ordinaryProcs)
		cmd := name
		if g.faker.Float64Range(0, 1) < 0.15 {
			cmd = g.faker.RandomString(g.policy.SuspiciousProcesses)
			name = firstWord(cmd)
			cmd += " " + g.faker.LetterN(8)
		}
		details = event.ProcessDetails{ProcessName: name, ProcessID: g.faker.Number(100, 9999), CommandLine: cmd}
	case event.Usb:
		d := event.UsbDetails{DeviceName: g.faker.RandomString(usbDevices), SerialNumber: "SN-" + g.faker.DigitN(8)}
		if g.faker.Float64Range(0, 1) < 0.2 {
			d.DeviceName = g.faker.RandomString(untrustedNames)
			d.SerialNumber = g.faker.RandomString(g.policy.UntrustedSerials)
		}
		details = d
	case event.Network:
		details = event.NetworkDetails{
			DestinationIP:   g.faker.IPv4Address(),
			DestinationPort: networkPorts[g.faker.Number(0, len(networkPorts)-1)],
			Protocol:        g.faker.RandomString(networkProtos),
		}
	case event.LoginAttempt:
		details = event.LoginDetails{Username: strings.ToLower(g.faker.Username()), SourceIP: g.faker.IPv4Address()}
	}
	// the detail types only hold strings, ints and bools
	rec.Details, _ = json.Marshal(details)

	if g.anomalyRate > 0 && overlayCategory(category) && g.faker.Float64Range(0, 1) < g.anomalyRate {
		score := round2(g.faker.Float64Range(0.5, 1.0))
		rec.AnomalyScore = &score
	}
	return rec
}

// Score implements an anomaly model that fires with the generator's anomaly rate.
func (g *Generator) Score(e event.Event, _ *endpoint.Endpoint) (float64, bool) {
	if g.anomalyRate <= 0 || !overlayCategory(e.Category) {
		return 0, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.faker.Float64Range(0, 1) >= g.anomalyRate {
		return 0, false
	}
	return round2(g.faker.Float64Range(0.5, 1.0)), true
}

func overlayCategory(c event.Category) bool {
	return c == event.FileSystem || c == event.Process || c == event.Network
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func firstWord(s string) string {
	name, _, _ := strings.Cut(s, " ")
	return name
}
