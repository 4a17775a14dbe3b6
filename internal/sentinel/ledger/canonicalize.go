package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Canonicalize returns a deterministic JSON string for hashing.
// Rules:
// - Remove hash chain fields
// - Sort keys alphabetically (recursively)
// - Normalize RFC3339 timestamps to UTC, keeping sub-second precision
// - Compact output (no extra whitespace)
func Canonicalize(entry map[string]any) (string, error) {
	clean := make(map[string]any, len(entry))
	for k, v := range entry {
		switch k {
		case FieldHash, FieldHashPrev, FieldIndex:
			continue
		}
		clean[k] = normalize(v)
	}
	var buf bytes.Buffer
	if err := encodeSorted(&buf, clean); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// decodeObject decodes one JSON object keeping numbers as written.
func decodeObject(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("entry is not a JSON object")
	}
	return m, nil
}

// normalize returns a copy of v with timestamps rewritten.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = normalize(vv)
		}
		return m
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = normalize(t[i])
		}
		return arr
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UTC().Format(time.RFC3339Nano)
		}
		return t
	default:
		return t
	}
}

func encodeSorted(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeSorted(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeSorted(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}
