package query

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/endpoint"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/logger"
)

// RunQuery streams events from the input files through the filter chain and search,
// writing matches as NDJSON and an optional summary to stderr.
//
// Error handling:
// - Malformed events are counted but don't stop processing
// - I/O errors are returned as wrapped errors
func RunQuery(opts Options) error {
	return runQuery(opts, os.Stderr)
}

func runQuery(opts Options, summaryOut io.Writer) error {
	var endpoints endpoint.Set
	if opts.InventoryFile != "" {
		s, err := endpoint.LoadInventory(opts.InventoryFile)
		if err != nil {
			return fmt.Errorf("failed to load inventory: %w", err)
		}
		endpoints = s
	}
	resolve := SetResolver(endpoints)

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	filters := buildFilters(opts.Filters, resolve, now)
	if !opts.Since.IsZero() {
		filters = append([]EventFilter{FilterBySince(opts.Since)}, filters...)
	}

	output, err := openOutput(opts.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}
	if closer, ok := output.(io.Closer); ok && output != os.Stdout {
		defer closer.Close()
	}

	stats := NewStats()

	results := ReadEvents(opts.InputFiles)
	defer func() {
		// release the reader goroutine after an early stop
		go func() {
			for range results {
			}
		}()
	}()

	for result := range results {
		if result.Err != nil {
			logger.L().Warnw("skipping input line", "error", result.Err)
			stats.IncrementError()
			continue
		}

		stats.IncrementInput()

		if !matchAll(result.Event, filters) {
			continue
		}
		ok, err := MatchesSearch(result.Event, resolve, opts.Search)
		if err != nil {
			stats.IncrementError()
			continue
		}
		if !ok {
			continue
		}

		stats.IncrementMatched(result.Event)

		// summary-only mode writes no events unless an output file is named
		if !opts.Summary || opts.OutputFile != "" {
			if err := WriteEventNDJSON(output, result.Event); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}
		}

		if opts.Limit > 0 && stats.MatchedEvents >= opts.Limit {
			break
		}
	}

	stats.AddEndpoints(endpoints.List())

	if opts.Summary {
		stats.PrintSummary(summaryOut)
	}

	logger.L().Infow("query complete",
		"input", stats.InputEvents,
		"matched", stats.MatchedEvents,
		"errors", stats.ErrorEvents)
	return nil
}

// openOutput opens the output file or returns stdout.
// The returned writer should be closed by the caller if it's a file.
func openOutput(outputFile string) (io.Writer, error) {
	if outputFile == "" {
		return os.Stdout, nil
	}

	file, err := os.Create(outputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", outputFile, err)
	}

	return file, nil
}
