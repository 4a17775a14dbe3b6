package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/classify"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/logger"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/query"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/store"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/telemetry"
)

type RunSummary struct {
	Timestamp       string         `json:"timestamp"`
	Input           string         `json:"input"`
	Output          string         `json:"output"`
	RejectFile      string         `json:"reject_file,omitempty"`
	RawCount        int            `json:"raw_count"`
	ClassifiedCount int            `json:"classified_count"`
	RejectedCount   int            `json:"rejected_count"`
	EvictedCount    int            `json:"evicted_count,omitempty"`
	ByRiskLevel     map[string]int `json:"by_risk_level"`
}

// Options controls a classify run. Input and Output are only recorded in the run log.
type Options struct {
	Input      string
	Output     string
	RejectFile string
	RunLog     string
	Endpoints  endpoint.Set
	// Retain > 0 keeps only the newest Retain events, written newest first at the end
	// of the run, instead of streaming every event in input order.
	Retain int
}

// Reject is one line of the reject file.
type Reject struct {
	Timestamp string `json:"timestamp"`
	Line      int    `json:"line"`
	Raw       string `json:"raw"`
	Error     string `json:"error"`
}

type rejectEncoder struct {
	enc *json.Encoder
	log *zap.SugaredLogger
}

func (r *rejectEncoder) encode(line int, raw string, cause error) error {
	r.log.Debugw("rejecting record", "line", line, "err", cause.Error())
	if r.enc == nil {
		return nil
	}
	rec := Reject{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Line:      line,
		Raw:       raw,
		Error:     cause.Error(),
	}
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode reject: %w", err)
	}
	return nil
}

func appendRunLog(path string, summary RunSummary) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(summary)
}

func openRejectFile(path string) (io.WriteCloser, error) {
	if path == "" {
		return nil, nil
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// classifyRecord decodes one raw record and classifies it against the registry.
func classifyRecord(c *classify.Classifier, endpoints endpoint.Set, rec telemetry.Record) (event.Event, error) {
	e, err := telemetry.Decode(rec)
	if err != nil {
		return event.Event{}, err
	}
	if ep, ok := endpoints.Get(e.EndpointID); ok {
		return c.Classify(e, &ep)
	}
	return c.Classify(e, nil)
}

// RunClassify reads raw telemetry NDJSON from in, classifies every record and writes
// the resulting events as NDJSON to out. Records that fail to decode or classify are
// written to the reject file and counted; they never stop the run.
func RunClassify(ctx context.Context, c *classify.Classifier, in io.Reader, out io.Writer, opts Options) (RunSummary, error) {
	log := logger.L()
	log.Infow("starting classify run",
		"input", opts.Input,
		"output", opts.Output,
		"reject_file", opts.RejectFile,
		"retain", opts.Retain)

	rejectFile, err := openRejectFile(opts.RejectFile)
	if err != nil {
		log.Errorw("failed to open reject file", "path", opts.RejectFile, "err", err.Error())
		return RunSummary{}, fmt.Errorf("open reject file: %w", err)
	}
	rej := &rejectEncoder{log: log}
	if rejectFile != nil {
		defer rejectFile.Close()
		rej.enc = json.NewEncoder(rejectFile)
	}

	var window *store.Store
	if opts.Retain > 0 {
		window = store.New(opts.Retain)
	}

	summary := RunSummary{
		Input:       opts.Input,
		Output:      opts.Output,
		RejectFile:  opts.RejectFile,
		ByRiskLevel: make(map[string]int),
	}
	start := time.Now()

	for res := range telemetry.ReadRecords(ctx, in) {
		summary.RawCount++
		if summary.RawCount%1000 == 0 {
			log.Infow("processing progress",
				"lines_processed", summary.RawCount,
				"classified_count", summary.ClassifiedCount,
				"rejected_count", summary.RejectedCount)
		}

		if res.Err != nil {
			summary.RejectedCount++
			if err := rej.encode(res.Line, res.Raw, res.Err); err != nil {
				return summary, err
			}
			continue
		}
		e, err := classifyRecord(c, opts.Endpoints, res.Record)
		if err != nil {
			summary.RejectedCount++
			if err := rej.encode(res.Line, res.Raw, err); err != nil {
				return summary, err
			}
			continue
		}

		summary.ClassifiedCount++
		summary.ByRiskLevel[e.RiskLevel.String()]++
		if window != nil {
			summary.EvictedCount += len(window.Insert(e))
			continue
		}
		if err := query.WriteEventNDJSON(out, e); err != nil {
			return summary, err
		}
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	if window != nil {
		for _, e := range window.Events() {
			if err := query.WriteEventNDJSON(out, e); err != nil {
				return summary, err
			}
		}
	}

	summary.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	if opts.RunLog != "" {
		if err := appendRunLog(opts.RunLog, summary); err != nil {
			log.Errorw("failed to write run log", "path", opts.RunLog, "err", err.Error())
		} else {
			log.Debugw("wrote run summary", "path", opts.RunLog)
		}
	}

	duration := time.Since(start)
	log.Infow("completed classify run",
		"duration", duration,
		"lines_processed", summary.RawCount,
		"classified_count", summary.ClassifiedCount,
		"rejected_count", summary.RejectedCount,
		"evicted_count", summary.EvictedCount)
	return summary, nil
}
