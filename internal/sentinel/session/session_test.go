package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/access"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/action"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/config"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/ledger"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/metrics"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/query"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/telemetry"
)

var now = time.Date(2025, 9, 19, 12, 0, 0, 0, time.UTC)

func registry(t *testing.T) endpoint.Set {
	t.Helper()
	set, err := endpoint.NewSet([]endpoint.Endpoint{
		{ID: "endpoint-1", Hostname: "CORP-LT-01", User: "j.doe", IP: "192.168.1.100", Status: endpoint.Online,
			Connection: endpoint.Connection{Protocol: "TLSv1.3", AuthMethod: "mTLS", Status: endpoint.ConnSecure}},
		{ID: "endpoint-2", Hostname: "FIN-WS-05", User: "a.smith", IP: "192.168.1.101", Status: endpoint.Offline,
			QueuedEvents: 12, Connection: endpoint.Connection{Status: endpoint.ConnUnavailable}},
		{ID: "endpoint-3", Hostname: "HR-PC-02", User: "m.jones", IP: "192.168.1.102", Status: endpoint.Online},
	})
	require.NoError(t, err)
	return set
}

type fixture struct {
	s      *Session
	ledger *bytes.Buffer
	m      *metrics.Metrics
}

func newFixture(t *testing.T, mutate ...func(*Options)) fixture {
	t.Helper()
	var n atomic.Int64
	buf := &bytes.Buffer{}
	m := metrics.New()
	opts := Options{
		DedupeWindow:    64,
		Endpoints:       registry(t),
		Bursts:          telemetry.NewGenerator(7, nil, 0),
		BurstWindow:     10 * time.Minute,
		ReconnectChance: 0.25,
		Now:             func() time.Time { return now },
		Chance:          func(float64) bool { return true },
		NewID:           func() string { return fmt.Sprintf("op-%d", n.Add(1)) },
		Ledger:          ledger.NewChain(buf, ledger.Genesis(), ""),
		Metrics:         m,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	s, err := New(opts)
	require.NoError(t, err)
	return fixture{s: s, ledger: buf, m: m}
}

func fileRecord(id, endpointID, path string) telemetry.Record {
	details, _ := json.Marshal(event.FileDetails{Path: path, ProcessName: "cat", ProcessID: 42})
	return telemetry.Record{
		EventID:    id,
		Timestamp:  now.Add(-time.Minute).Format(time.RFC3339),
		EndpointID: endpointID,
		EventType:  "File System",
		Action:     event.FileModified,
		Details:    details,
	}
}

func countBy(events []event.Event, pred func(event.Event) bool) int {
	n := 0
	for _, e := range events {
		if pred(e) {
			n++
		}
	}
	return n
}

func isAdmin(e event.Event) bool { return e.Category == event.Admin }

func TestIngest_ClassifiesAndRejects(t *testing.T) {
	f := newFixture(t)

	bad := fileRecord("r-bad", "endpoint-1", "/tmp/x")
	bad.EventType = "Printer"
	forged := telemetry.Record{EventID: "r-forged", Timestamp: now.Format(time.RFC3339), EndpointID: "endpoint-1",
		EventType: "Admin", Description: "Admin action 'Quarantine'"}

	rep := f.s.Ingest(
		fileRecord("r1", "endpoint-1", "/etc/shadow"),
		bad,
		fileRecord("r2", "endpoint-3", "/home/m.jones/notes.txt"),
		forged,
		fileRecord("r1", "endpoint-1", "/etc/shadow"),
	)

	require.Len(t, rep.Accepted, 2)
	require.Len(t, rep.Rejected, 2)
	assert.Equal(t, 1, rep.Rejected[0].Index)
	assert.ErrorIs(t, rep.Rejected[0].Err, event.ErrUnknownCategory)
	assert.ErrorIs(t, rep.Rejected[1].Err, event.ErrInvalidEvent)
	assert.Equal(t, 1, rep.Duplicates)

	v := f.s.View()
	require.Len(t, v.Events, 2)
	r1, _ := findEvent(v.Events, "r1")
	assert.Equal(t, event.High, r1.RiskLevel)
	assert.True(t, r1.Details.(event.FileDetails).IsSensitive)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.m.EventsIngested))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.m.EventsRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.EventsDuplicate))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.m.StoreSize))
}

func TestIngest_AllRejectedPublishesNothing(t *testing.T) {
	f := newFixture(t)
	before := f.s.View()

	bad := fileRecord("r-bad", "", "/etc/shadow")
	rep := f.s.Ingest(bad)

	assert.Len(t, rep.Rejected, 1)
	assert.Same(t, before, f.s.View())
}

func TestIngest_CapacityEvicts(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Capacity = 10 })

	records := make([]telemetry.Record, 25)
	for i := range records {
		records[i] = fileRecord(fmt.Sprintf("r%d", i), "endpoint-1", "/tmp/x")
		records[i].Timestamp = now.Add(-time.Duration(i) * time.Second).Format(time.RFC3339)
	}
	rep := f.s.Ingest(records...)

	assert.Equal(t, 15, rep.Evicted)
	v := f.s.View()
	require.Len(t, v.Events, 10)
	assert.Equal(t, "r0", v.Events[0].ID)
	assert.Equal(t, "r9", v.Events[9].ID)
	assert.Equal(t, 15.0, testutil.ToFloat64(f.m.EventsEvicted))
}

func TestPerformAction_AuditorDenied(t *testing.T) {
	f := newFixture(t)
	f.s.Ingest(fileRecord("r1", "endpoint-3", "/etc/shadow"))
	before := f.s.View()

	_, err := f.s.PerformAction(access.Auditor, "Quarantine", "r1", "endpoint-3")
	require.ErrorIs(t, err, access.ErrPermissionDenied)

	after := f.s.View()
	assert.Same(t, before, after, "denied action must not publish")
	ep, _ := after.Endpoints.Get("endpoint-3")
	assert.Equal(t, endpoint.Online, ep.Status)
	assert.Zero(t, countBy(after.Events, isAdmin))
	assert.Zero(t, f.ledger.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Actions.WithLabelValues("Quarantine", metrics.OutcomeDenied)))
}

func TestPerformAction_AdminQuarantine(t *testing.T) {
	f := newFixture(t)
	f.s.Ingest(fileRecord("r1", "endpoint-3", "/etc/shadow"))

	res, err := f.s.PerformAction(access.Administrator, "Quarantine", "r1", "endpoint-3")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, endpoint.Quarantined, res.Endpoint.Status)
	require.NotNil(t, res.Event)
	assert.Equal(t, "r1", res.Event.ID)

	v := f.s.View()
	ep, _ := v.Endpoints.Get("endpoint-3")
	assert.Equal(t, endpoint.Quarantined, ep.Status)

	require.Equal(t, 1, countBy(v.Events, isAdmin))
	admin, ok := findEvent(v.Events, "op-1")
	require.True(t, ok)
	assert.Equal(t, event.Low, admin.RiskLevel)
	assert.Equal(t, "endpoint-3", admin.EndpointID)
	assert.Equal(t, "Admin action 'Quarantine' by Administrator on endpoint HR-PC-02", admin.Description())

	report, err := ledger.Verify(bytes.NewReader(f.ledger.Bytes()))
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Entries)
}

func TestPerformAction_RequarantineIsIdempotent(t *testing.T) {
	f := newFixture(t)
	_, err := f.s.PerformAction(access.SecurityAnalyst, "Isolate", "", "endpoint-1")
	require.NoError(t, err)
	first := f.s.View()
	epBefore, _ := first.Endpoints.Get("endpoint-1")

	res, err := f.s.PerformAction(access.Administrator, "Quarantine", "", "endpoint-1")
	require.NoError(t, err)
	assert.False(t, res.Changed)

	second := f.s.View()
	epAfter, _ := second.Endpoints.Get("endpoint-1")
	assert.Equal(t, epBefore, epAfter)
	assert.Equal(t, 2, countBy(second.Events, isAdmin))
	assert.Equal(t, len(first.Events)+1, len(second.Events))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Actions.WithLabelValues("Quarantine", metrics.OutcomeNoop)))
}

func TestPerformAction_DisableUsb(t *testing.T) {
	f := newFixture(t)

	_, err := f.s.PerformAction(access.SecurityAnalyst, "Disable USB", "", "endpoint-1")
	require.ErrorIs(t, err, access.ErrPermissionDenied)

	res, err := f.s.PerformAction(access.Administrator, "disable usb", "", "endpoint-1")
	require.NoError(t, err)
	assert.Equal(t, action.DisableUsb, res.Action)
	assert.False(t, res.Changed)
	assert.Equal(t, endpoint.Online, res.Endpoint.Status)
	require.NotNil(t, res.Recorded)
	assert.Equal(t, "Admin action 'Disable USB' by Administrator on endpoint CORP-LT-01", res.Recorded.Description())
}

func TestPerformAction_ViewDetailsIsReadOnly(t *testing.T) {
	f := newFixture(t)
	f.s.Ingest(fileRecord("r1", "endpoint-1", "/etc/shadow"))
	before := f.s.View()

	res, err := f.s.PerformAction(access.Auditor, "View Details", "r1", "endpoint-1")
	require.NoError(t, err)
	require.NotNil(t, res.Event)
	assert.Equal(t, "r1", res.Event.ID)
	assert.Equal(t, "CORP-LT-01", res.Endpoint.Hostname)
	assert.Nil(t, res.Recorded)
	assert.Same(t, before, f.s.View())

	_, err = f.s.PerformAction(access.Auditor, "View Details", "missing", "endpoint-1")
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestPerformAction_Errors(t *testing.T) {
	f := newFixture(t)
	before := f.s.View()

	_, err := f.s.PerformAction(access.Administrator, "Reboot", "", "endpoint-1")
	assert.ErrorIs(t, err, action.ErrUnknownAction)

	_, err = f.s.PerformAction(access.Administrator, "Quarantine", "", "endpoint-99")
	assert.ErrorIs(t, err, endpoint.ErrUnknownEndpoint)

	assert.Same(t, before, f.s.View())
}

func TestUpdateSetting(t *testing.T) {
	f := newFixture(t)

	_, err := f.s.UpdateSetting(access.SecurityAnalyst, "dataRetentionPeriod", "1y")
	require.ErrorIs(t, err, access.ErrPermissionDenied)

	_, err = f.s.UpdateSetting(access.Administrator, "dataRetentionPeriod", "2y")
	require.ErrorIs(t, err, config.ErrConfiguration)
	assert.Empty(t, f.s.View().Events)

	st, err := f.s.UpdateSetting(access.Administrator, "dataRetentionPeriod", "1y")
	require.NoError(t, err)
	assert.Equal(t, "1 Year", st.DataRetentionPeriod.Label())

	v := f.s.View()
	assert.Equal(t, st, v.Settings)
	require.Len(t, v.Events, 1)
	audit := v.Events[0]
	assert.Equal(t, event.Audit, audit.Category)
	assert.Equal(t, SettingsEndpointID, audit.EndpointID)
	assert.Equal(t, "Admin updated Data Retention Policy from '90 Days' to '1 Year'", audit.Description())
}

func TestReconnectTick_ReplaysBacklogAtomically(t *testing.T) {
	f := newFixture(t)

	var (
		stop       atomic.Bool
		violations atomic.Int64
		wg         sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for !stop.Load() {
			v := f.s.View()
			ep, _ := v.Endpoints.Get("endpoint-2")
			n := countBy(v.Events, func(e event.Event) bool { return e.EndpointID == "endpoint-2" })
			if (ep.QueuedEvents == 0) != (n == 12) || (ep.Status == endpoint.Online) != (n == 12) {
				violations.Add(1)
			}
		}
	}()

	rep, ok := f.s.ReconnectTick()
	stop.Store(true)
	wg.Wait()

	require.True(t, ok)
	assert.Equal(t, "endpoint-2", rep.EndpointID)
	assert.Equal(t, 12, rep.Replayed)
	assert.Zero(t, violations.Load())

	v := f.s.View()
	ep, _ := v.Endpoints.Get("endpoint-2")
	assert.Equal(t, endpoint.Online, ep.Status)
	assert.Zero(t, ep.QueuedEvents)
	assert.Equal(t, endpoint.ConnSecure, ep.Connection.Status)
	assert.Equal(t, 12, countBy(v.Events, func(e event.Event) bool { return e.EndpointID == "endpoint-2" }))
	for _, e := range v.Events {
		assert.False(t, e.Timestamp.After(now))
		assert.False(t, e.Timestamp.Before(now.Add(-10*time.Minute)))
	}

	_, ok = f.s.ReconnectTick()
	assert.False(t, ok, "no eligible endpoint left")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Reconnects))
}

func TestReconnectTick_ChanceGates(t *testing.T) {
	var asked float64
	f := newFixture(t, func(o *Options) {
		o.Chance = func(p float64) bool { asked = p; return false }
	})
	before := f.s.View()

	_, ok := f.s.ReconnectTick()
	assert.False(t, ok)
	assert.Equal(t, 0.25, asked)
	assert.Same(t, before, f.s.View())
}

func TestReconnectTick_SkipsQuarantined(t *testing.T) {
	f := newFixture(t)
	_, err := f.s.PerformAction(access.Administrator, "Quarantine", "", "endpoint-2")
	require.NoError(t, err)

	_, ok := f.s.ReconnectTick()
	assert.False(t, ok)
	ep, _ := f.s.View().Endpoints.Get("endpoint-2")
	assert.Equal(t, 12, ep.QueuedEvents)
}

func TestSetConnectivity(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.s.SetConnectivity("endpoint-1", false))
	ep, _ := f.s.View().Endpoints.Get("endpoint-1")
	assert.Equal(t, endpoint.Offline, ep.Status)
	assert.Equal(t, endpoint.ConnUnavailable, ep.Connection.Status)

	require.NoError(t, f.s.SetConnectivity("endpoint-1", true))
	ep, _ = f.s.View().Endpoints.Get("endpoint-1")
	assert.Equal(t, endpoint.Online, ep.Status)

	require.NoError(t, f.s.SetConnectivity("endpoint-2", true))
	assert.Len(t, f.s.View().Events, 12)

	assert.ErrorIs(t, f.s.SetConnectivity("endpoint-1", true), endpoint.ErrInvalidTransition)
	assert.ErrorIs(t, f.s.SetConnectivity("nope", false), endpoint.ErrUnknownEndpoint)
}

func TestQueryAndStats(t *testing.T) {
	f := newFixture(t)
	f.s.Ingest(
		fileRecord("r1", "endpoint-1", "/etc/shadow"),
		fileRecord("r2", "endpoint-3", "/tmp/x"),
	)
	_, err := f.s.PerformAction(access.Administrator, "Quarantine", "r2", "endpoint-3")
	require.NoError(t, err)

	filters := query.DefaultFilters()
	filters, err = filters.Toggle(query.DimStatus, "Online")
	require.NoError(t, err)
	got, err := f.s.Query(filters, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)

	got, err = f.s.Query(query.DefaultFilters(), "hr-pc")
	require.NoError(t, err)
	assert.Len(t, got, 2, "r2 and the Admin event both resolve to HR-PC-02")

	stats, err := f.s.Stats(query.DefaultFilters(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.MatchedEvents)
	assert.Equal(t, 1, stats.HighRisk)
	assert.Equal(t, 1, stats.EndpointsOnline)
	assert.Equal(t, 3, stats.EndpointsTotal)
	assert.Equal(t, 1, stats.Quarantined)
}

func TestSimulator_ManualTicks(t *testing.T) {
	f := newFixture(t)
	gen := telemetry.NewGenerator(42, nil, 0.2)
	sim := NewSimulator(f.s, gen, 0, 0)

	var ingested int
	sim.OnIngest = func(rep IngestReport) { ingested += len(rep.Accepted) }

	rep := sim.Populate(50, time.Hour)
	assert.Len(t, rep.Accepted, 50)
	assert.Empty(t, rep.Rejected)

	for i := 0; i < 5; i++ {
		_, ok := sim.FeedTick()
		require.True(t, ok)
	}
	assert.Equal(t, 55, ingested)

	rec, ok := sim.ReconnectTick()
	require.True(t, ok)
	assert.Equal(t, 12, rec.Replayed)
	assert.Len(t, f.s.View().Events, 67)
}

func findEvent(events []event.Event, id string) (event.Event, bool) {
	for _, e := range events {
		if e.ID == id {
			return e, true
		}
	}
	return event.Event{}, false
}
