package session

import (
	"context"
	"time"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/logger"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/telemetry"
)

// Simulator drives a session from a synthetic telemetry source: a live feed of single
// events and periodic reconnection ticks. Each step can also be driven by hand.
type Simulator struct {
	session           *Session
	gen               *telemetry.Generator
	feedInterval      time.Duration
	reconnectInterval time.Duration

	OnIngest    func(IngestReport)
	OnReconnect func(ReconnectReport)
}

func NewSimulator(s *Session, gen *telemetry.Generator, feedInterval, reconnectInterval time.Duration) *Simulator {
	return &Simulator{
		session:           s,
		gen:               gen,
		feedInterval:      feedInterval,
		reconnectInterval: reconnectInterval,
	}
}

// Populate inserts n events spread over the registry as one batch, timestamped within
// window before now.
func (sim *Simulator) Populate(n int, window time.Duration) IngestReport {
	v := sim.session.View()
	records := sim.gen.Batch(v.Endpoints.List(), n, window, sim.session.now())
	rep := sim.session.Ingest(records...)
	sim.notifyIngest(rep)
	return rep
}

// FeedTick ingests one live event. ok is false when the registry is empty.
func (sim *Simulator) FeedTick() (rep IngestReport, ok bool) {
	v := sim.session.View()
	rec, ok := sim.gen.Live(v.Endpoints.List(), sim.session.now())
	if !ok {
		return IngestReport{}, false
	}
	rep = sim.session.Ingest(rec)
	sim.notifyIngest(rep)
	return rep, true
}

// ReconnectTick runs one reconnection step on the session.
func (sim *Simulator) ReconnectTick() (ReconnectReport, bool) {
	rep, ok := sim.session.ReconnectTick()
	if ok && sim.OnReconnect != nil {
		sim.OnReconnect(rep)
	}
	return rep, ok
}

// Run ticks the feed and reconnection until ctx is done. A non-positive interval
// disables that loop.
func (sim *Simulator) Run(ctx context.Context) error {
	feed := tickerC(sim.feedInterval)
	reconnect := tickerC(sim.reconnectInterval)
	defer feed.stop()
	defer reconnect.stop()

	logger.L().Infow("simulation started",
		"feed_interval", sim.feedInterval,
		"reconnect_interval", sim.reconnectInterval)
	for {
		select {
		case <-ctx.Done():
			logger.L().Infow("simulation stopped", "events", len(sim.session.View().Events))
			return nil
		case <-feed.c:
			sim.FeedTick()
		case <-reconnect.c:
			sim.ReconnectTick()
		}
	}
}

func (sim *Simulator) notifyIngest(rep IngestReport) {
	if sim.OnIngest != nil && (len(rep.Accepted) > 0 || len(rep.Rejected) > 0) {
		sim.OnIngest(rep)
	}
}

type ticker struct {
	t *time.Ticker
	c <-chan time.Time
}

// tickerC returns a ticker whose channel never fires when d is not positive.
func tickerC(d time.Duration) ticker {
	if d <= 0 {
		return ticker{}
	}
	t := time.NewTicker(d)
	return ticker{t: t, c: t.C}
}

func (t ticker) stop() {
	if t.t != nil {
		t.t.Stop()
	}
}
