package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"strings"
	"time"

	"github.com/shanjing/adk-lab/core"
	"github.com/tidwall/gjson"
)

// DeltaSource tells where a record's delta was found.
type DeltaSource int

const (
	// SourceNone means the record carries no delta.
	SourceNone DeltaSource = iota
	// SourceDirect means the delta was attached to the record itself.
	SourceDirect
	// SourcePayload means the delta was nested under payload.state_delta.
	SourcePayload
	// SourceMalformed means a delta was present but was not a mapping, or
	// the record was not valid JSON. It contributes nothing.
	SourceMalformed
)

// String returns the source name.
func (s DeltaSource) String() string {
	switch s {
	case SourceNone:
		return "none"
	case SourceDirect:
		return "direct"
	case SourcePayload:
		return "payload"
	case SourceMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Record is one resolved entry of an event log. Delta is non-nil only for
// SourceDirect and SourcePayload.
type Record struct {
	ID        string
	Author    string
	Timestamp time.Time
	Delta     map[string]any
	Source    DeltaSource
}

// HasDelta reports whether the record contributes to the aggregated state.
func (r Record) HasDelta() bool {
	return (r.Source == SourceDirect || r.Source == SourcePayload) && len(r.Delta) > 0
}

// FromEvent resolves an in-process event. Event deltas are always direct.
func FromEvent(ev core.Event) Record {
	rec := Record{ID: ev.ID, Author: ev.Author, Timestamp: ev.Timestamp}
	if ev.HasStateDelta() {
		rec.Delta = maps.Clone(ev.Actions.StateDelta)
		rec.Source = SourceDirect
	}
	return rec
}

// FromEvents resolves events in order.
func FromEvents(evs []core.Event) []Record {
	records := make([]Record, 0, len(evs))
	for _, ev := range evs {
		records = append(records, FromEvent(ev))
	}
	return records
}

// Decode resolves one raw JSON record. The delta is looked up first as a
// top-level "state_delta", then as "payload.state_delta"; the first
// non-empty value wins. A winning value that is not an object marks the
// record malformed, as does input that is not valid JSON. When an object
// repeats a key, the last occurrence counts.
//
// Integer values decode as int64, or json.Number when they do not fit; other
// numbers decode as float64.
func Decode(raw []byte) Record {
	if !gjson.ValidBytes(raw) {
		return Record{Source: SourceMalformed}
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return Record{Source: SourceMalformed}
	}

	rec := Record{
		ID:     lastField(doc, "id").String(),
		Author: lastField(doc, "author").String(),
	}
	if ts := lastField(doc, "timestamp"); ts.Exists() {
		if t, err := time.Parse(time.RFC3339Nano, ts.String()); err == nil {
			rec.Timestamp = t
		}
	}

	candidates := []struct {
		res    gjson.Result
		source DeltaSource
	}{
		{lastField(doc, "state_delta"), SourceDirect},
		{lastField(lastField(doc, "payload"), "state_delta"), SourcePayload},
	}
	for _, c := range candidates {
		if !present(c.res) {
			continue
		}
		delta, ok := decodeObject(c.res)
		if !ok {
			rec.Source = SourceMalformed
			return rec
		}
		rec.Delta = delta
		rec.Source = c.source
		return rec
	}
	return rec
}

// lastField returns the last value stored under key in obj, or an empty
// result when obj is not an object or lacks key.
func lastField(obj gjson.Result, key string) gjson.Result {
	var found gjson.Result
	if !obj.IsObject() {
		return found
	}
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			found = v
		}
		return true
	})
	return found
}

// decodeObject decodes res as a JSON object without losing integer
// precision.
func decodeObject(res gjson.Result) (map[string]any, bool) {
	if !res.IsObject() {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(res.Raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	return normalizeNumbers(obj).(map[string]any), true
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	case json.Number:
		if !strings.ContainsAny(t.String(), ".eE") {
			if n, err := t.Int64(); err == nil {
				return n
			}
			return t
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t
	default:
		return v
	}
}

// present reports whether res holds a non-empty value: null, false, zero,
// "" and empty objects or arrays count as absent.
func present(res gjson.Result) bool {
	if !res.Exists() {
		return false
	}
	switch res.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return res.Num != 0
	case gjson.String:
		return res.Str != ""
	case gjson.JSON:
		if res.IsObject() {
			return len(res.Map()) > 0
		}
		return len(res.Array()) > 0
	}
	return true
}

// maxLineSize bounds a single JSONL record.
const maxLineSize = 8 << 20

// ReadJSONL decodes newline-delimited JSON records in order. Blank lines are
// skipped; undecodable lines become malformed records. Only read failures
// are returned as errors.
func ReadJSONL(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var records []Record
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		records = append(records, Decode(raw))
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("read event log line %d: %w", line+1, err)
	}
	return records, nil
}

// wireRecord is the JSONL shape written by WriteJSONL.
type wireRecord struct {
	ID         string         `json:"id,omitempty"`
	Author     string         `json:"author,omitempty"`
	Timestamp  *time.Time     `json:"timestamp,omitempty"`
	StateDelta map[string]any `json:"state_delta,omitempty"`
}

// WriteJSONL writes records as newline-delimited JSON with the delta
// attached directly. Records without a delta are written without one.
func WriteJSONL(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	for i, rec := range records {
		wr := wireRecord{ID: rec.ID, Author: rec.Author}
		if !rec.Timestamp.IsZero() {
			ts := rec.Timestamp.UTC()
			wr.Timestamp = &ts
		}
		if rec.HasDelta() {
			wr.StateDelta = rec.Delta
		}
		if err := enc.Encode(wr); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	return nil
}
