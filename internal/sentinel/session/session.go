package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/access"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/classify"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/ledger"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/logger"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/metrics"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/query"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/settings"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/sink"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/store"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/telemetry"
)

// ErrUnknownEvent is returned when an event id is not in the log.
var ErrUnknownEvent = errors.New("unknown event")

// BurstSource materialises the backlog an endpoint buffered while offline.
// *telemetry.Generator implements it.
type BurstSource interface {
	Burst(endpointID string, count int, window time.Duration, now time.Time) []telemetry.Record
}

// Options configures a Session. Zero values select defaults.
type Options struct {
	Capacity     int
	DedupeWindow int // recently seen event ids to suppress; 0 disables

	Classifier *classify.Classifier
	Gate       *access.Gate
	Endpoints  endpoint.Set
	Settings   settings.State

	Bursts          BurstSource
	BurstWindow     time.Duration
	ReconnectChance float64

	Now    func() time.Time
	Chance func(p float64) bool
	NewID  func() string

	Ledger  *ledger.Chain
	Sink    sink.Sink
	Metrics *metrics.Metrics
}

// View is a consistent snapshot of everything a reader can observe.
type View struct {
	Events    []event.Event
	Endpoints endpoint.Set
	Settings  settings.State
	Seq       uint64
}

// Session owns the event log, the endpoint registry and the settings of one operator
// console. All mutations go through a single writer; readers load the last published
// View without locking.
type Session struct {
	mu   sync.Mutex // serializes writers
	view atomic.Pointer[View]

	capacity   int
	dedupe     *lru.Cache[string, struct{}]
	classifier *classify.Classifier
	gate       *access.Gate

	bursts          BurstSource
	burstWindow     time.Duration
	reconnectChance float64

	now    func() time.Time
	chance func(p float64) bool
	newID  func() string

	ledger  *ledger.Chain
	sink    sink.Sink
	metrics *metrics.Metrics
}

// New builds a session from opts.
func New(opts Options) (*Session, error) {
	s := &Session{
		capacity:        opts.Capacity,
		classifier:      opts.Classifier,
		gate:            opts.Gate,
		bursts:          opts.Bursts,
		burstWindow:     opts.BurstWindow,
		reconnectChance: opts.ReconnectChance,
		now:             opts.Now,
		chance:          opts.Chance,
		newID:           opts.NewID,
		ledger:          opts.Ledger,
		sink:            opts.Sink,
		metrics:         opts.Metrics,
	}
	if s.capacity <= 0 {
		s.capacity = store.DefaultCapacity
	}
	if s.classifier == nil {
		s.classifier = classify.New(nil, nil)
	}
	if s.gate == nil {
		s.gate = access.MustDefaultGate()
	}
	if s.burstWindow <= 0 {
		s.burstWindow = 5 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.chance == nil {
		s.chance = func(p float64) bool { return rand.Float64() < p }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if opts.DedupeWindow > 0 {
		cache, err := lru.New[string, struct{}](opts.DedupeWindow)
		if err != nil {
			return nil, err
		}
		s.dedupe = cache
	}

	st := opts.Settings
	if st.DataRetentionPeriod == "" {
		st = settings.Default()
	}
	s.publish(&View{Endpoints: opts.Endpoints, Settings: st})
	return s, nil
}

// View returns the last published snapshot. Callers must not modify its slices.
func (s *Session) View() *View {
	return s.view.Load()
}

// Query runs the filter and search pipeline over the current snapshot.
func (s *Session) Query(f query.FilterState, term string) ([]event.Event, error) {
	v := s.View()
	return query.Query(v.Events, query.SetResolver(v.Endpoints), f, term, s.now())
}

// Stats computes the dashboard counters over the events matching f and term.
func (s *Session) Stats(f query.FilterState, term string) (*query.Stats, error) {
	v := s.View()
	matched, err := query.Query(v.Events, query.SetResolver(v.Endpoints), f, term, s.now())
	if err != nil {
		return nil, err
	}
	return query.Compute(matched, v.Endpoints.List()), nil
}

// Close releases the sink.
func (s *Session) Close() error {
	if s.sink == nil {
		return nil
	}
	return s.sink.Close()
}

// publish must be called with mu held (or before the session is shared).
func (s *Session) publish(v *View) {
	if prev := s.view.Load(); prev != nil {
		v.Seq = prev.Seq + 1
	}
	s.view.Store(v)
	s.metrics.Observe(len(v.Events), v.Endpoints)
}

// insert merges batch into the events of cur and returns the next view.
func (s *Session) insert(cur *View, batch []event.Event) *View {
	merged, evicted := store.Merge(cur.Events, batch, s.capacity)
	if len(evicted) > 0 {
		s.metrics.Evicted(len(evicted))
		logger.L().Debugw("events evicted", "count", len(evicted), "capacity", s.capacity)
	}
	next := *cur
	next.Events = merged
	return &next
}

// record forwards operator events to the ledger and the sink. Failures are logged;
// the state change they describe has already been published.
func (s *Session) record(e event.Event) {
	if s.ledger != nil {
		if idx, err := s.ledger.Append(e); err != nil {
			logger.L().Errorw("ledger append failed", "event_id", e.ID, "error", err)
		} else {
			logger.L().Debugw("event sealed", "event_id", e.ID, "index", idx)
		}
	}
	if s.sink != nil {
		if err := s.sink.Write(context.Background(), e); err != nil {
			logger.L().Errorw("sink write failed", "event_id", e.ID, "error", err)
		}
	}
}

// seen reports whether id was delivered recently and remembers it.
func (s *Session) seen(id string) bool {
	if s.dedupe == nil {
		return false
	}
	if s.dedupe.Contains(id) {
		return true
	}
	s.dedupe.Add(id, struct{}{})
	return false
}
