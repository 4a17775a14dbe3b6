package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/access"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/classify"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/config"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/ledger"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/logger"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/metrics"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/query"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/session"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/settings"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/sink"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/telemetry"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the console session against a synthetic telemetry feed",
	Long: `Simulate starts a session with a synthetic endpoint registry (or --inventory),
populates the event log, applies any scripted operator actions and then runs the
live feed and reconnection ticks until --duration elapses or it is interrupted.

Actions are given as role:action:endpoint[:event], for example
  --action "Administrator:Quarantine:endpoint-2"
Settings changes are given as role:key=value, for example
  --set "Administrator:dataRetentionPeriod=1y"`,
	RunE: runSimulate,
}

var (
	simulateFlagDuration    time.Duration
	simulateFlagInventory   string
	simulateFlagSeed        int64
	simulateFlagMetricsAddr string
	simulateFlagActions     []string
	simulateFlagSettings    []string
	simulateFlagStream      bool
	simulateFlagOutput      string
)

func init() {
	simulateCmd.Flags().DurationVar(&simulateFlagDuration, "duration", 0, "stop after this long (0 = until interrupted)")
	simulateCmd.Flags().StringVar(&simulateFlagInventory, "inventory", "", "YAML endpoint inventory (overrides simulation.inventory_file)")
	simulateCmd.Flags().Int64Var(&simulateFlagSeed, "seed", 0, "random seed (0 = simulation.seed)")
	simulateCmd.Flags().StringVar(&simulateFlagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	simulateCmd.Flags().StringArrayVar(&simulateFlagActions, "action", nil, "operator action role:action:endpoint[:event] (repeatable)")
	simulateCmd.Flags().StringArrayVar(&simulateFlagSettings, "set", nil, "settings change role:key=value (repeatable)")
	simulateCmd.Flags().BoolVar(&simulateFlagStream, "stream", false, "print every ingested event as NDJSON on stdout")
	simulateCmd.Flags().StringVar(&simulateFlagOutput, "output", "", "write the final event log as NDJSON to this file")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	log := logger.L()

	policy, err := config.LoadPolicy(cfg.Policy.File)
	if err != nil {
		return err
	}
	st, err := settings.FromConfig(cfg.Settings)
	if err != nil {
		return err
	}
	gate, err := access.NewGate(access.DefaultPolicy(), nil)
	if err != nil {
		return err
	}

	seed := cfg.Simulation.Seed
	if simulateFlagSeed != 0 {
		seed = simulateFlagSeed
	}
	gen := telemetry.NewGenerator(seed, policy, cfg.Simulation.AnomalyRate)

	endpoints, err := simulationEndpoints(cfg, gen)
	if err != nil {
		return err
	}

	m := metrics.New()
	opts := session.Options{
		Capacity:        cfg.Store.Capacity,
		DedupeWindow:    cfg.Store.DedupeWindow,
		Classifier:      classify.New(policy, nil),
		Gate:            gate,
		Endpoints:       endpoints,
		Settings:        st,
		Bursts:          gen,
		BurstWindow:     cfg.Simulation.BurstWindow,
		ReconnectChance: cfg.Simulation.ReconnectChance,
		Chance:          gen.Chance,
		Metrics:         m,
	}

	if cfg.Ledger.Output != "" {
		state, err := ledger.LoadState(cfg.Ledger.StateFile)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(cfg.Ledger.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer f.Close()
		opts.Ledger = ledger.NewChain(f, state, cfg.Ledger.StateFile)
		log.Infow("ledger enabled", "output", cfg.Ledger.Output, "index", state.LastChainIndex)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if simulateFlagDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, simulateFlagDuration)
		defer cancel()
	}

	if cfg.Sink.Driver != "" {
		s, err := sink.Open(ctx, cfg.Sink)
		if err != nil {
			return err
		}
		opts.Sink = s
	}

	sess, err := session.New(opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	if simulateFlagMetricsAddr != "" {
		srv := &http.Server{Addr: simulateFlagMetricsAddr, Handler: promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("metrics server failed", "addr", simulateFlagMetricsAddr, "err", err.Error())
			}
		}()
		defer srv.Close()
		log.Infow("serving metrics", "addr", simulateFlagMetricsAddr)
	}

	sim := session.NewSimulator(sess, gen, cfg.Simulation.FeedInterval, cfg.Simulation.ReconnectInterval)
	if simulateFlagStream {
		sim.OnIngest = func(rep session.IngestReport) {
			for _, e := range rep.Accepted {
				_ = query.WriteEventNDJSON(os.Stdout, e)
			}
		}
	}
	sim.OnReconnect = func(rep session.ReconnectReport) {
		fmt.Fprintf(os.Stderr, "endpoint %s (%s) reconnected, %d queued events replayed\n",
			rep.Hostname, rep.EndpointID, rep.Replayed)
	}

	sim.Populate(cfg.Simulation.InitialEvents, 24*time.Hour)

	for _, spec := range simulateFlagSettings {
		if err := applySetting(sess, spec); err != nil {
			return err
		}
	}
	for _, spec := range simulateFlagActions {
		if err := applyAction(sess, spec); err != nil {
			return err
		}
	}

	if err := sim.Run(ctx); err != nil {
		return err
	}

	stats, err := sess.Stats(query.DefaultFilters(), "")
	if err != nil {
		return err
	}
	stats.PrintSummary(os.Stderr)

	if simulateFlagOutput != "" {
		return writeLog(simulateFlagOutput, sess.View())
	}
	return nil
}

func simulationEndpoints(cfg *config.Config, gen *telemetry.Generator) (endpoint.Set, error) {
	path := cfg.Simulation.InventoryFile
	if simulateFlagInventory != "" {
		path = simulateFlagInventory
	}
	if path != "" {
		return endpoint.LoadInventory(path)
	}
	return endpoint.NewSet(gen.Endpoints(cfg.Simulation.Endpoints))
}

// applyAction parses role:action:endpoint[:event] and dispatches it. Permission
// denials are reported and do not stop the run.
func applyAction(sess *session.Session, spec string) error {
	parts := strings.SplitN(spec, ":", 4)
	if len(parts) < 3 {
		return fmt.Errorf("invalid --action %q: want role:action:endpoint[:event]", spec)
	}
	role, err := access.ParseRole(parts[0])
	if err != nil {
		return err
	}
	eventID := ""
	if len(parts) == 4 {
		eventID = parts[3]
	}

	res, err := sess.PerformAction(role, parts[1], eventID, parts[2])
	switch {
	case errors.Is(err, access.ErrPermissionDenied):
		fmt.Fprintf(os.Stderr, "denied: %s cannot perform %s\n", role, parts[1])
		return nil
	case err != nil:
		return err
	}
	if res.Recorded != nil {
		fmt.Fprintf(os.Stderr, "%s\n", res.Recorded.Description())
	} else if res.Event != nil {
		_ = query.WriteEventNDJSON(os.Stdout, *res.Event)
	}
	return nil
}

// applySetting parses role:key=value and applies it.
func applySetting(sess *session.Session, spec string) error {
	roleName, kv, ok := strings.Cut(spec, ":")
	key, value, ok2 := strings.Cut(kv, "=")
	if !ok || !ok2 {
		return fmt.Errorf("invalid --set %q: want role:key=value", spec)
	}
	role, err := access.ParseRole(roleName)
	if err != nil {
		return err
	}
	if _, err := sess.UpdateSetting(role, key, value); err != nil {
		if errors.Is(err, access.ErrPermissionDenied) {
			fmt.Fprintf(os.Stderr, "denied: %s cannot change settings\n", role)
			return nil
		}
		return err
	}
	return nil
}

func writeLog(path string, v *session.View) error {
	out, err := createOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return writeEvents(out, v)
}

func writeEvents(w io.Writer, v *session.View) error {
	for _, e := range v.Events {
		if err := query.WriteEventNDJSON(w, e); err != nil {
			return err
		}
	}
	return nil
}
