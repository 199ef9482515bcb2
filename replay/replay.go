package replay

import (
	"maps"
	"reflect"
	"sort"

	"github.com/shanjing/adk-lab/core"
)

// Stats summarises a reconstruction.
type Stats struct {
	Records   int // records processed
	Applied   int // records whose delta was applied
	Malformed int // records skipped as malformed
}

// Reconstruct folds the deltas of records, in order, into a new map. Each
// delta key overwrites the running value for that key; a nil value is stored
// rather than deleting the key. An empty log yields an empty, non-nil map.
func Reconstruct(records []Record) map[string]any {
	state, _ := ReconstructWithStats(records)
	return state
}

// ReconstructWithStats is Reconstruct plus counters for debug display.
func ReconstructWithStats(records []Record) (map[string]any, Stats) {
	state := map[string]any{}
	stats := Stats{Records: len(records)}
	for _, rec := range records {
		if rec.Source == SourceMalformed {
			stats.Malformed++
			continue
		}
		if !rec.HasDelta() {
			continue
		}
		maps.Copy(state, rec.Delta)
		stats.Applied++
	}
	return state, stats
}

// ReconstructEvents replays in-process events.
func ReconstructEvents(evs []core.Event) map[string]any {
	return Reconstruct(FromEvents(evs))
}

// Mismatch describes one key where live state and replayed state disagree.
// Missing on either side is reported through the In* flags.
type Mismatch struct {
	Key        string
	Live       any
	Replayed   any
	InLive     bool
	InReplayed bool
}

// Verify replays records and compares the result with live. It returns the
// disagreeing keys sorted by name; an empty result means the live state is
// consistent with the log.
func Verify(live map[string]any, records []Record) []Mismatch {
	replayed := Reconstruct(records)

	keys := make(map[string]struct{}, len(live)+len(replayed))
	for k := range live {
		keys[k] = struct{}{}
	}
	for k := range replayed {
		keys[k] = struct{}{}
	}

	var out []Mismatch
	for k := range keys {
		lv, inLive := live[k]
		rv, inReplayed := replayed[k]
		if inLive && inReplayed && reflect.DeepEqual(lv, rv) {
			continue
		}
		out = append(out, Mismatch{Key: k, Live: lv, Replayed: rv, InLive: inLive, InReplayed: inReplayed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
