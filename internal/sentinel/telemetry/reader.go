package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// RecordResult is one line read from a telemetry stream.
type RecordResult struct {
	Line   int
	Raw    string
	Record Record
	Err    error
}

// ReadRecords streams NDJSON records from r until EOF or ctx is done. Lines that are not
// JSON objects are sent with Err set and do not stop the stream.
func ReadRecords(ctx context.Context, r io.Reader) <-chan RecordResult {
	ch := make(chan RecordResult, 100)

	go func() {
		defer close(ch)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			raw := scanner.Text()
			if raw == "" {
				continue
			}
			res := RecordResult{Line: line, Raw: raw}
			if err := json.Unmarshal([]byte(raw), &res.Record); err != nil {
				res.Err = fmt.Errorf("line %d: %w", line, err)
			}
			select {
			case ch <- res:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case ch <- RecordResult{Line: line, Err: fmt.Errorf("scanner error: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch
}
