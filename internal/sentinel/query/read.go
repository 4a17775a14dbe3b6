package query

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
)

// ReadEvents reads classified NDJSON events from files or stdin and sends them on a channel.
//
// Behavior:
// - If no files specified, reads from stdin
// - If multiple files specified, processes them sequentially
// - Lines that are not valid events are sent as errors but don't stop processing
// - Empty lines are skipped
//
// The returned channel will be closed when all files are processed.
func ReadEvents(files []string) <-chan EventResult {
	ch := make(chan EventResult, 100)

	go func() {
		defer close(ch)

		if len(files) == 0 {
			readFromReader(os.Stdin, "stdin", ch)
			return
		}

		for _, file := range files {
			f, err := os.Open(file)
			if err != nil {
				ch <- EventResult{Err: fmt.Errorf("failed to open file %s: %w", file, err)}
				continue
			}

			readFromReader(f, file, ch)
			f.Close()
		}
	}()

	return ch
}

// readFromReader reads NDJSON lines from a reader and sends events on the channel.
// Each line is decoded through event.Event's UnmarshalJSON, so category, action and
// details are validated the same way ingestion validates them.
func readFromReader(r io.Reader, source string, ch chan<- EventResult) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var e event.Event
		if err := json.Unmarshal(line, &e); err != nil {
			ch <- EventResult{Err: fmt.Errorf("decode error in %s line %d: %w", source, lineNumber, err)}
			continue
		}

		ch <- EventResult{Event: e}
	}

	if err := scanner.Err(); err != nil {
		ch <- EventResult{Err: fmt.Errorf("scanner error in %s: %w", source, err)}
	}
}
