package dataset

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"

	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/types"
)

// Merge appends incoming to existing, keeps the first record for every
// hashId, and orders the result newest first. Records without a timestamp
// follow the timestamped ones in arrival order.
func Merge(existing, incoming []types.BreachRecord) []types.BreachRecord {
	out := make([]types.BreachRecord, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, cap(out))

	for _, batch := range [][]types.BreachRecord{existing, incoming} {
		for _, r := range batch {
			if _, dup := seen[r.HashID]; dup {
				continue
			}
			seen[r.HashID] = struct{}{}
			out = append(out, r)
		}
	}

	slices.SortStableFunc(out, compareNewestFirst)
	return out
}

func compareNewestFirst(a, b types.BreachRecord) int {
	ta, okA := a.Time()
	tb, okB := b.Time()
	switch {
	case okA && okB:
		return tb.Compare(ta)
	case okA:
		return -1
	case okB:
		return 1
	default:
		return 0
	}
}

// Bound trims the tail of records until there are at most maxRecords and
// the encoded form fits in maxBytes. It returns the kept records, their
// encoding and the number evicted.
func Bound(records []types.BreachRecord, maxRecords int, maxBytes int64) ([]types.BreachRecord, []byte, int, error) {
	kept := records
	if maxRecords > 0 && len(kept) > maxRecords {
		kept = kept[:maxRecords]
	}

	for {
		data, err := Encode(kept)
		if err != nil {
			return nil, nil, 0, err
		}
		if maxBytes <= 0 || int64(len(data)) <= maxBytes {
			return kept, data, len(records) - len(kept), nil
		}
		if len(kept) == 0 {
			return nil, nil, 0, errors.Newf("dataset.max_bytes %d is too small for an empty dataset", maxBytes)
		}

		excess := int64(len(data)) - maxBytes
		drop := 0
		for drop < len(kept) && excess > 0 {
			drop++
			excess -= encodedSize(kept[len(kept)-drop])
		}
		kept = kept[:len(kept)-drop]
	}
}

// encodedSize under-estimates the indented size of r, so Bound may loop
// more than once but never drops more than needed in one step.
func encodedSize(r types.BreachRecord) int64 {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return 1
	}
	return int64(buf.Len())
}

// newest returns the most recent timestamp in records.
func newest(records []types.BreachRecord) (time.Time, bool) {
	var (
		best  time.Time
		found bool
	)
	for _, r := range records {
		if t, ok := r.Time(); ok && (!found || t.After(best)) {
			best, found = t, true
		}
	}
	return best, found
}
