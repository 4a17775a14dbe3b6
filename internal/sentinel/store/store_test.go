package store

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
)

var base = time.Date(2025, 9, 19, 12, 0, 0, 0, time.UTC)

func login(t *testing.T, id string, at time.Time) event.Event {
	t.Helper()
	e, err := event.NewLoginAttempt(id, at, "endpoint-1", event.LoginSuccess, event.LoginDetails{Username: "u", SourceIP: "10.0.0.1"})
	require.NoError(t, err)
	return e
}

func ids(events []event.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestMerge_SortsDescendingAndKeepsTieOrder(t *testing.T) {
	existing := []event.Event{
		login(t, "b", base.Add(2*time.Minute)),
		login(t, "a", base),
	}
	batch := []event.Event{
		login(t, "c", base.Add(time.Minute)),
		login(t, "d", base.Add(2*time.Minute)),
		login(t, "e", base.Add(2*time.Minute)),
	}

	merged, evicted := Merge(existing, batch, 10)
	assert.Empty(t, evicted)
	assert.Equal(t, []string{"b", "d", "e", "c", "a"}, ids(merged))
	assert.Equal(t, []string{"b", "a"}, ids(existing), "inputs are not modified")
}

func TestMerge_TruncatesOldest(t *testing.T) {
	existing := []event.Event{login(t, "new", base.Add(time.Hour)), login(t, "old", base)}
	merged, evicted := Merge(existing, []event.Event{login(t, "mid", base.Add(time.Minute))}, 2)
	assert.Equal(t, []string{"new", "mid"}, ids(merged))
	assert.Equal(t, []string{"old"}, ids(evicted))
}

func TestStore_CapacityInvariant(t *testing.T) {
	s := New(0)
	require.Equal(t, DefaultCapacity, s.Capacity())

	rng := rand.New(rand.NewSource(7))
	n := 0
	for round := 0; round < 40; round++ {
		batch := make([]event.Event, rng.Intn(60))
		for i := range batch {
			batch[i] = login(t, fmt.Sprintf("evt-%d", n), base.Add(time.Duration(rng.Intn(86400))*time.Second))
			n++
		}
		s.Insert(batch...)

		got := s.Events()
		assert.LessOrEqual(t, len(got), DefaultCapacity)
		for i := 1; i < len(got); i++ {
			assert.False(t, got[i].Timestamp.After(got[i-1].Timestamp), "round %d index %d out of order", round, i)
		}
	}
}

func TestStore_EmptyInsertIsNoop(t *testing.T) {
	s := New(3)
	assert.Nil(t, s.Insert())
	assert.Equal(t, 0, s.Len())
}

func TestStore_SnapshotIsStable(t *testing.T) {
	s := New(2)
	s.Insert(login(t, "a", base), login(t, "b", base.Add(time.Second)))
	snap := s.Events()

	evicted := s.Insert(login(t, "c", base.Add(time.Hour)))
	assert.Equal(t, []string{"a"}, ids(evicted))
	assert.Equal(t, []string{"b", "a"}, ids(snap), "earlier snapshot unchanged")
	assert.Equal(t, []string{"c", "b"}, ids(s.Events()))

	e, ok := s.Find("b")
	assert.True(t, ok)
	assert.Equal(t, "b", e.ID)
	_, ok = s.Find("a")
	assert.False(t, ok)
}

func TestStore_ConcurrentReadersSeeWholeBatches(t *testing.T) {
	s := New(1000)
	const batches, size = 50, 10

	all := make([][]event.Event, batches)
	for b := range all {
		all[b] = make([]event.Event, size)
		for i := range all[b] {
			all[b][i] = login(t, fmt.Sprintf("%d-%d", b, i), base.Add(time.Duration(b)*time.Minute))
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, batch := range all {
			s.Insert(batch...)
		}
	}()

	for r := 0; r < 200; r++ {
		assert.Zero(t, len(s.Events())%size, "reader observed a partial batch")
	}
	wg.Wait()
	assert.Equal(t, batches*size, s.Len())
}
