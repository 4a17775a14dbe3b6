package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// LoadState loads chain state from path. A missing file or empty path yields Genesis.
func LoadState(path string) (State, error) {
	if path == "" {
		return Genesis(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Genesis(), nil
		}
		return State{}, fmt.Errorf("open state: %w", err)
	}
	defer f.Close()

	var st State
	if err := json.NewDecoder(f).Decode(&st); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	if st.LastHeadHash == "" {
		st.LastHeadHash = zeroHash()
	}
	return st, nil
}

// SaveState writes state atomically using a temp file and rename. An empty path is a no-op.
func SaveState(path string, state State) error {
	if path == "" {
		return nil
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(state); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode state: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp state: %w", err)
	}
	return os.Rename(tmp, path)
}
