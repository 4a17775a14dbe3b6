package query

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
)

// WriteEventNDJSON writes an event as a single NDJSON line.
func WriteEventNDJSON(w io.Writer, e event.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event to JSON: %w", err)
	}

	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}
