package telemetry

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/classify"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
)

var now = time.Date(2025, 9, 19, 12, 0, 0, 0, time.UTC)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
		check   func(t *testing.T, e event.Event)
	}{
		{
			name: "file_event",
			raw:  `{"event_id":"e1","timestamp":"2025-09-19T12:00:00Z","endpoint_id":"endpoint-1","event_type":"File System","action":"Modified","details":{"path":"/etc/shadow","process_name":"vim","process_id":7}}`,
			check: func(t *testing.T, e event.Event) {
				assert.Equal(t, "e1", e.ID)
				assert.Equal(t, event.FileSystem, e.Category)
				assert.Equal(t, "/etc/shadow", e.Details.(event.FileDetails).Path)
			},
		},
		{
			name: "lenient_timestamp_and_generated_id",
			raw:  `{"timestamp":"2025-09-19 12:00:00","endpoint_id":"endpoint-1","event_type":"login attempt","action":"Failure","details":{"username":"root","source_ip":"10.0.0.9"}}`,
			check: func(t *testing.T, e event.Event) {
				assert.NotEmpty(t, e.ID)
				assert.True(t, e.Timestamp.Equal(now))
				assert.Equal(t, event.LoginAttempt, e.Category)
			},
		},
		{
			name: "carried_anomaly_score",
			raw:  `{"event_id":"e3","timestamp":"2025-09-19T12:00:00Z","endpoint_id":"endpoint-1","event_type":"Network","action":"Connection Attempt","anomaly_score":0.8,"details":{"destination_ip":"8.8.8.8","destination_port":53,"protocol":"UDP"}}`,
			check: func(t *testing.T, e event.Event) {
				require.NotNil(t, e.AnomalyScore)
				assert.Equal(t, 0.8, *e.AnomalyScore)
			},
		},
		{
			name: "audit_description",
			raw:  `{"event_id":"e4","timestamp":"2025-09-19T12:00:00Z","endpoint_id":"dashboard","event_type":"Audit","description":"retention changed"}`,
			check: func(t *testing.T, e event.Event) {
				assert.Equal(t, "retention changed", e.Description())
			},
		},
		{
			name:    "unknown_category",
			raw:     `{"timestamp":"2025-09-19T12:00:00Z","endpoint_id":"endpoint-1","event_type":"Printer","action":"Printed"}`,
			wantErr: event.ErrUnknownCategory,
		},
		{
			name:    "missing_details",
			raw:     `{"timestamp":"2025-09-19T12:00:00Z","endpoint_id":"endpoint-1","event_type":"USB","action":"Connected"}`,
			wantErr: event.ErrInvalidEvent,
		},
		{
			name:    "bad_timestamp",
			raw:     `{"timestamp":"yesterday-ish","endpoint_id":"endpoint-1","event_type":"USB","action":"Connected","details":{"device_name":"x","serial_number":"y"}}`,
			wantErr: event.ErrInvalidEvent,
		},
		{
			name:    "missing_endpoint",
			raw:     `{"timestamp":"2025-09-19T12:00:00Z","event_type":"USB","action":"Connected","details":{"device_name":"x","serial_number":"y"}}`,
			wantErr: event.ErrInvalidEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Record
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &r))
			e, err := Decode(r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, e)
		})
	}
}

func TestFromEventRoundTrip(t *testing.T) {
	e, err := event.NewUsb("u1", now, "endpoint-2", event.UsbConnected, event.UsbDetails{DeviceName: "SanDisk", SerialNumber: "SN-1"})
	require.NoError(t, err)

	r, err := FromEvent(e)
	require.NoError(t, err)
	back, err := Decode(r)
	require.NoError(t, err)
	assert.Equal(t, e, back)
}

func TestReadRecords(t *testing.T) {
	input := strings.Join([]string{
		`{"event_id":"a","timestamp":"2025-09-19T12:00:00Z","endpoint_id":"e","event_type":"Audit","description":"x"}`,
		``,
		`not json`,
		`{"event_id":"b","timestamp":"2025-09-19T12:00:00Z","endpoint_id":"e","event_type":"Audit","description":"y"}`,
	}, "\n")

	var got []RecordResult
	for r := range ReadRecords(context.Background(), strings.NewReader(input)) {
		got = append(got, r)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Record.EventID)
	assert.Error(t, got[1].Err)
	assert.Equal(t, 3, got[1].Line)
	assert.Equal(t, "b", got[2].Record.EventID)
}

func TestGenerator_Deterministic(t *testing.T) {
	a := NewGenerator(42, nil, 0.15)
	b := NewGenerator(42, nil, 0.15)

	epsA := a.Endpoints(5)
	epsB := b.Endpoints(5)
	assert.Equal(t, epsA, epsB)

	recA := a.Batch(epsA, 20, time.Hour, now)
	recB := b.Batch(epsB, 20, time.Hour, now)
	assert.Equal(t, recA, recB)
}

func TestGenerator_RecordsDecodeAndClassify(t *testing.T) {
	g := NewGenerator(7, nil, 0.5)
	eps := g.Endpoints(4)
	c := classify.New(nil, nil)

	for _, r := range g.Batch(eps, 300, 24*time.Hour, now) {
		e, err := Decode(r)
		require.NoError(t, err, "record %+v", r)
		assert.False(t, e.Timestamp.After(now))
		assert.False(t, e.Timestamp.Before(now.Add(-24*time.Hour)))

		got, err := c.Classify(e, nil)
		require.NoError(t, err)
		assert.True(t, got.RiskLevel.Valid())
	}
}

func TestGenerator_BurstAndLive(t *testing.T) {
	g := NewGenerator(3, nil, 0)

	burst := g.Burst("endpoint-9", 12, 5*time.Minute, now)
	require.Len(t, burst, 12)
	for _, r := range burst {
		assert.Equal(t, "endpoint-9", r.EndpointID)
		assert.Nil(t, r.AnomalyScore, "zero anomaly rate")
	}

	eps := []endpoint.Endpoint{
		{ID: "off", Status: endpoint.Offline},
		{ID: "on", Status: endpoint.Online},
	}
	for i := 0; i < 20; i++ {
		r, ok := g.Live(eps, now)
		require.True(t, ok)
		assert.Equal(t, "on", r.EndpointID)
	}

	r, ok := g.Live(eps[:1], now)
	require.True(t, ok)
	assert.Equal(t, "off", r.EndpointID)

	_, ok = g.Live(nil, now)
	assert.False(t, ok)
}

func TestGenerator_Chance(t *testing.T) {
	g := NewGenerator(1, nil, 0)
	assert.False(t, g.Chance(0))
	assert.True(t, g.Chance(1))
}
