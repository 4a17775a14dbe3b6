package query

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
)

func TestCompute(t *testing.T) {
	events := sample(t)
	hot := 0.95
	mild := 0.7
	events[0].AnomalyScore = &hot
	events[2].AnomalyScore = &mild

	s := Compute(events, registry(t).List())
	assert.Equal(t, 5, s.MatchedEvents)
	assert.Equal(t, 3, s.HighRisk)
	assert.Equal(t, 1, s.Anomalies, "0.7 is not above the threshold")
	assert.Equal(t, 1, s.EndpointsOnline)
	assert.Equal(t, 2, s.EndpointsTotal)
	assert.Equal(t, 1, s.Quarantined)
	assert.Equal(t, map[string]int{"High": 3, "Low": 1, "Medium": 1}, s.ByRiskLevel)
	assert.Equal(t, map[string]int{"File System": 3, "Login Attempt": 2}, s.ByCategory)
	require.NotNil(t, s.FirstTimestamp)
	assert.True(t, s.FirstTimestamp.Equal(now.Add(-48*time.Hour)))
	assert.True(t, s.LastTimestamp.Equal(now.Add(-time.Minute)))
}

func TestPrintSummary(t *testing.T) {
	s := Compute(sample(t), registry(t).List())
	var buf bytes.Buffer
	s.PrintSummary(&buf)

	out := buf.String()
	assert.Contains(t, out, "Matched: 5")
	assert.Contains(t, out, "High-risk alerts: 3")
	assert.Contains(t, out, "Endpoints online: 1 / 2")
	assert.Contains(t, out, "    High: 3\n    Low: 1\n    Medium: 1\n")

	m := s.GetSummaryMap()
	assert.Equal(t, 5, m["matched_events"])
	assert.Contains(t, m, "time_range")
}

func TestRunQuery(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "events.ndjson")
	out := filepath.Join(dir, "out.ndjson")
	inv := filepath.Join(dir, "inventory.yaml")

	var lines []string
	for _, e := range sample(t) {
		data, err := json.Marshal(e)
		require.NoError(t, err)
		lines = append(lines, string(data))
	}
	lines = append(lines, `{"event_id":"bad","event_type":"Printer"}`, "")
	require.NoError(t, os.WriteFile(in, []byte(strings.Join(lines, "\n")), 0o644))
	require.NoError(t, os.WriteFile(inv, []byte(`
endpoints:
  - {id: A, hostname: CORP-LT-01, user: j.doe, ip: 192.168.1.100, status: Online}
  - {id: B, hostname: FIN-WS-05, user: a.smith, ip: 192.168.1.101, status: Quarantined}
`), 0o644))

	filters := DefaultFilters()
	filters.Statuses = NewSet(endpoint.Quarantined)

	var summary bytes.Buffer
	err := runQuery(Options{
		InputFiles:    []string{in},
		OutputFile:    out,
		InventoryFile: inv,
		Filters:       filters,
		Now:           now,
		Summary:       true,
	}, &summary)
	require.NoError(t, err)

	var got []string
	for result := range ReadEvents([]string{out}) {
		require.NoError(t, result.Err)
		got = append(got, result.Event.ID)
	}
	assert.Equal(t, []string{"2", "3"}, got)
	assert.Contains(t, summary.String(), "Errors: 1")
	assert.Contains(t, summary.String(), "Quarantined: 1")
}

func TestRunQuery_Limit(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "events.ndjson")
	out := filepath.Join(dir, "out.ndjson")

	var buf bytes.Buffer
	for _, e := range sample(t) {
		require.NoError(t, WriteEventNDJSON(&buf, e))
	}
	require.NoError(t, os.WriteFile(in, buf.Bytes(), 0o644))

	require.NoError(t, runQuery(Options{InputFiles: []string{in}, OutputFile: out, Limit: 2, Search: "explorer", Now: now}, &bytes.Buffer{}))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), `"event_type":"File System"`)
}
