package ledger

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/logger"
)

// Chain appends events to a tamper-evident NDJSON ledger.
//
// Each entry is the event's NDJSON form plus hash_prev, hash and hash_chain_index,
// where hash = SHA256(hash_prev + "|" + canonical(event)). Modifying, dropping or
// reordering any past entry breaks every later link.
type Chain struct {
	mu        sync.Mutex
	w         io.Writer
	state     State
	statePath string
}

// NewChain continues the ledger described by state, writing entries to w. When
// statePath is set the state is saved after every append.
func NewChain(w io.Writer, state State, statePath string) *Chain {
	if state.LastHeadHash == "" {
		state.LastHeadHash = zeroHash()
	}
	return &Chain{w: w, state: state, statePath: statePath}
}

// State returns the current head and index.
func (c *Chain) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Append links e into the ledger and returns its chain index.
func (c *Chain) Append(e event.Event) (int, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("encode event: %w", err)
	}
	entry, err := decodeObject(raw)
	if err != nil {
		return 0, fmt.Errorf("decode event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := link(entry, c.state)
	if err != nil {
		return 0, err
	}
	out, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("encode entry: %w", err)
	}
	if _, err := c.w.Write(append(out, '\n')); err != nil {
		return 0, fmt.Errorf("write entry: %w", err)
	}
	c.state = next
	if err := SaveState(c.statePath, c.state); err != nil {
		return next.LastChainIndex, fmt.Errorf("save ledger state: %w", err)
	}

	logger.L().Debugw("ledger append",
		"event_id", e.ID,
		"index", next.LastChainIndex,
		"head", next.LastHeadHash)
	return next.LastChainIndex, nil
}

// link adds the chain fields to entry and returns the advanced state.
func link(entry map[string]any, st State) (State, error) {
	canon, err := Canonicalize(entry)
	if err != nil {
		return st, fmt.Errorf("canonicalize: %w", err)
	}
	head := hashLink(st.LastHeadHash, canon)
	index := st.LastChainIndex + 1

	entry[FieldHashPrev] = st.LastHeadHash
	entry[FieldHash] = head
	entry[FieldIndex] = index
	return State{LastChainIndex: index, LastHeadHash: head}, nil
}

func hashLink(prev, canon string) string {
	h := sha256.Sum256([]byte(prev + "|" + canon))
	return hex.EncodeToString(h[:])
}

// Seal reads NDJSON events, chains them after state and writes the entries.
func Seal(input io.Reader, output io.Writer, state State) (State, int, error) {
	log := logger.L()
	start := time.Now()
	if state.LastHeadHash == "" {
		state.LastHeadHash = zeroHash()
	}
	log.Debugw("ledger.seal: start", "start_index", state.LastChainIndex)

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	writer := bufio.NewWriter(output)
	defer writer.Flush()

	processed := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// only well-formed events enter the ledger
		var e event.Event
		if err := json.Unmarshal(line, &e); err != nil {
			return state, processed, fmt.Errorf("line %d: %w", processed+1, err)
		}
		raw, err := json.Marshal(e)
		if err != nil {
			return state, processed, fmt.Errorf("encode event: %w", err)
		}
		entry, err := decodeObject(raw)
		if err != nil {
			return state, processed, fmt.Errorf("decode event: %w", err)
		}
		next, err := link(entry, state)
		if err != nil {
			return state, processed, err
		}
		out, err := json.Marshal(entry)
		if err != nil {
			return state, processed, fmt.Errorf("encode entry: %w", err)
		}
		if _, err := writer.Write(append(out, '\n')); err != nil {
			return state, processed, fmt.Errorf("write entry: %w", err)
		}
		state = next
		processed++
	}
	if err := scanner.Err(); err != nil {
		return state, processed, fmt.Errorf("scan input: %w", err)
	}

	log.Infow("ledger.seal: done", "events", processed, "end_index", state.LastChainIndex, "duration", time.Since(start))
	return state, processed, nil
}

// Verify recomputes every link of a ledger that starts at genesis.
//
// An entry is tampered when its stored hash does not match the recomputed one, or when
// its back link is not the previous entry's hash. Tampering is reported, not returned
// as an error; errors are reserved for unreadable input.
func Verify(input io.Reader) (Report, error) {
	return VerifyFrom(input, Genesis())
}

// VerifyFrom verifies a ledger segment that continues from start.
func VerifyFrom(input io.Reader, start State) (Report, error) {
	log := logger.L()
	began := time.Now()

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	rep := Report{Head: start.LastHeadHash}
	if rep.Head == "" {
		rep.Head = zeroHash()
	}
	expectIndex := start.LastChainIndex + 1

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		entry, err := decodeObject(line)
		if err != nil {
			return rep, fmt.Errorf("decode entry %d: %w", rep.Entries+1, err)
		}

		prev, _ := entry[FieldHashPrev].(string)
		got, _ := entry[FieldHash].(string)
		idx := expectIndex
		if n, ok := entry[FieldIndex].(json.Number); ok {
			if v, err := strconv.Atoi(n.String()); err == nil {
				idx = v
			}
		}

		canon, err := Canonicalize(entry)
		if err != nil {
			return rep, fmt.Errorf("canonicalize: %w", err)
		}
		if prev != rep.Head || hashLink(prev, canon) != got || idx != expectIndex {
			rep.Tampered = append(rep.Tampered, expectIndex)
		}

		rep.Head = got
		rep.Entries++
		expectIndex++
	}
	if err := scanner.Err(); err != nil {
		return rep, fmt.Errorf("scan input: %w", err)
	}

	log.Infow("ledger.verify: done", "entries", rep.Entries, "tampered", len(rep.Tampered), "duration", time.Since(began))
	return rep, nil
}
