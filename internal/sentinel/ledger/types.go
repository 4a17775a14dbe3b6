package ledger

// Hash chain fields added to every ledger entry.
const (
	FieldHash     = "hash"
	FieldHashPrev = "hash_prev"
	FieldIndex    = "hash_chain_index"
)

// State stores the rolling head and index so a ledger can be continued across runs.
type State struct {
	LastChainIndex int    `json:"last_chain_index"`
	LastHeadHash   string `json:"last_head_hash"`
}

// Genesis returns the state of an empty ledger.
func Genesis() State {
	return State{LastHeadHash: zeroHash()}
}

// Report is the outcome of verifying a ledger.
//
// Fields:
//   - Entries: number of entries read
//   - Tampered: chain indices whose hash or back link does not verify
//   - Head: hash of the last entry
type Report struct {
	Entries  int    `json:"entries"`
	Tampered []int  `json:"tampered,omitempty"`
	Head     string `json:"head"`
}

// OK reports whether every entry verified.
func (r Report) OK() bool { return len(r.Tampered) == 0 }

// Summary is appended to the run log to record verify runs.
type Summary struct {
	Phase     string `json:"phase"`
	InputFile string `json:"input_file"`
	Entries   int    `json:"entries"`
	Tampered  []int  `json:"tampered,omitempty"`
	Status    string `json:"status"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// zeroHash is the back link of the first entry: 64 zeros, the width of a hex SHA-256.
func zeroHash() string {
	return "0000000000000000000000000000000000000000000000000000000000000000"
}
