package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/classify"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
)

const input = `{"event_id":"e1","timestamp":"2025-09-19T12:00:00Z","endpoint_id":"endpoint-1","event_type":"File System","action":"Modified","details":{"path":"/etc/shadow","process_name":"vim","process_id":7}}
not json
{"event_id":"e2","timestamp":"2025-09-19T12:01:00Z","endpoint_id":"endpoint-1","event_type":"Printer","action":"Printed"}
{"event_id":"e3","timestamp":"2025-09-19T12:02:00Z","endpoint_id":"endpoint-2","event_type":"Process","action":"Started","details":{"process_name":"mimikatz.exe","process_id":1337,"command_line":"mimikatz.exe"}}
{"event_id":"e4","timestamp":"2025-09-19T11:59:00Z","endpoint_id":"endpoint-1","event_type":"Network","action":"Connection Established","anomaly_score":0.95,"details":{"destination_ip":"8.8.8.8","destination_port":443,"protocol":"TCP"}}
`

func decodeEvents(t *testing.T, out *bytes.Buffer) []event.Event {
	t.Helper()
	var events []event.Event
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var e event.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		events = append(events, e)
	}
	return events
}

func registry(t *testing.T) endpoint.Set {
	t.Helper()
	set, err := endpoint.NewSet([]endpoint.Endpoint{{ID: "endpoint-1", Hostname: "CORP-LT-01"}})
	require.NoError(t, err)
	return set
}

func TestRunClassify_StreamsAndRejects(t *testing.T) {
	dir := t.TempDir()
	rejectPath := filepath.Join(dir, "rejects.ndjson")
	runLog := filepath.Join(dir, "run.log")

	var out bytes.Buffer
	summary, err := RunClassify(context.Background(), classify.New(nil, nil), strings.NewReader(input), &out, Options{
		Input:      "input.ndjson",
		RejectFile: rejectPath,
		RunLog:     runLog,
		Endpoints:  registry(t),
	})
	require.NoError(t, err)

	assert.Equal(t, 5, summary.RawCount)
	assert.Equal(t, 3, summary.ClassifiedCount)
	assert.Equal(t, 2, summary.RejectedCount)
	assert.Equal(t, map[string]int{"High": 1, "Critical": 2}, summary.ByRiskLevel)

	events := decodeEvents(t, &out)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"e1", "e3", "e4"}, []string{events[0].ID, events[1].ID, events[2].ID})
	assert.Equal(t, event.High, events[0].RiskLevel)
	assert.Equal(t, event.Critical, events[1].RiskLevel)
	assert.Equal(t, event.Critical, events[2].RiskLevel)
	assert.Equal(t, classify.ReasonCritical, events[2].RiskReason)

	data, err := os.ReadFile(rejectPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	var rej Reject
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rej))
	assert.Equal(t, 3, rej.Line)
	assert.Contains(t, rej.Error, "Printer")

	logData, err := os.ReadFile(runLog)
	require.NoError(t, err)
	var logged RunSummary
	require.NoError(t, json.Unmarshal(logData, &logged))
	assert.Equal(t, "input.ndjson", logged.Input)
	assert.Equal(t, 3, logged.ClassifiedCount)
}

func TestRunClassify_RetainWindow(t *testing.T) {
	var out bytes.Buffer
	summary, err := RunClassify(context.Background(), classify.New(nil, nil), strings.NewReader(input), &out, Options{Retain: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EvictedCount)

	events := decodeEvents(t, &out)
	require.Len(t, events, 2)
	assert.Equal(t, "e3", events[0].ID, "newest first")
	assert.Equal(t, "e1", events[1].ID)
}

func TestRunClassify_NoRejectFile(t *testing.T) {
	var out bytes.Buffer
	summary, err := RunClassify(context.Background(), classify.New(nil, nil), strings.NewReader("garbage\n"), &out, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RejectedCount)
	assert.Zero(t, out.Len())
}
