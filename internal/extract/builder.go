package extract

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shanehull/leakwatch/internal/dedup"
	"github.com/shanehull/leakwatch/internal/types"
)

const (
	maxAuthorLen = 100
	maxSourceLen = 500
)

// Rejection explains why a candidate could not become a record.
type Rejection struct {
	Reason types.RejectReason
	Field  string
	Detail string
}

func (r *Rejection) Error() string {
	if r.Field == "" {
		return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
	}
	return fmt.Sprintf("%s: field %q: %s", r.Reason, r.Field, r.Detail)
}

func reject(reason types.RejectReason, field, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Field: field, Detail: fmt.Sprintf(format, args...)}
}

// Builder maps candidate fields onto a BreachRecord.
type Builder struct {
	channel string
	cleaner *Extractor
}

// NewBuilder returns a Builder for the named channel. cleaner, when set, is
// also applied to the content field.
func NewBuilder(channel string, cleaner *Extractor) *Builder {
	return &Builder{channel: channel, cleaner: cleaner}
}

var authorReplacer = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "")

// Build returns a *Rejection as error when the candidate cannot be mapped.
// messageId, timestamp and hashId are always derived here; values carried in
// the payload for them are ignored.
func (b *Builder) Build(c types.Candidate) (types.BreachRecord, error) {
	var (
		rec        types.BreachRecord
		haveType   bool
		rawContent string
	)

	for _, key := range slices.Sorted(maps.Keys(c.Fields)) {
		val := c.Fields[key]
		field := types.FoldKey(key)
		switch field {
		case "source":
			s, err := stringField(key, val)
			if err != nil {
				return rec, err
			}
			rec.Source = strings.TrimSpace(s)
		case "content":
			s, err := stringField(key, val)
			if err != nil {
				return rec, err
			}
			rawContent = s
		case "author":
			s, err := stringField(key, val)
			if err != nil {
				return rec, err
			}
			rec.Author = s
		case "detectiondate", "date":
			s, err := stringField(key, val)
			if err != nil {
				return rec, err
			}
			rec.DetectionDate = normalizeDate(s)
		case "type":
			s, err := stringField(key, val)
			if err != nil {
				return rec, err
			}
			rec.Type, _ = types.ParseBreachType(s)
			haveType = strings.TrimSpace(s) != ""
		case "severity":
			s, err := stringField(key, val)
			if err != nil {
				return rec, err
			}
			if sev, ok := types.ParseSeverity(s); ok {
				rec.Severity = sev
			}
		case "affectedcount":
			n, err := countField(key, val)
			if err != nil {
				return rec, err
			}
			rec.AffectedCount = n
		case "datatypes":
			dts, err := dataTypesField(key, val)
			if err != nil {
				return rec, err
			}
			rec.DataTypes = dts
		case "messageid", "timestamp", "hashid":
		default:
			return rec, reject(types.RejectUnknownField, key, "not a breach record field")
		}
	}

	if b.cleaner != nil {
		rawContent = b.cleaner.Clean(rawContent)
	}
	rec.Content = strings.TrimSpace(rawContent)
	if rec.Content == "" {
		return rec, reject(types.RejectMissingContent, "content", "content is missing or empty")
	}

	if rec.Source == "" {
		rec.Source = b.defaultSource(c.MessageID)
	}
	if utf8.RuneCountInString(rec.Source) > maxSourceLen {
		return rec, reject(types.RejectMalformed, "source", "longer than %d characters", maxSourceLen)
	}

	if !haveType {
		rec.Type = types.TypeDataLeak
	}

	if rec.Author == "" {
		rec.Author = c.Author
	}
	rec.Author = truncateRunes(strings.TrimSpace(authorReplacer.Replace(rec.Author)), maxAuthorLen)

	if c.MessageID > 0 {
		rec.MessageID = c.MessageID
	}
	if !c.Date.IsZero() {
		rec.Timestamp = c.Date.UTC().Format(time.RFC3339)
		if rec.DetectionDate == "" {
			rec.DetectionDate = c.Date.UTC().Format(types.DetectionDateLayout)
		}
	}

	rec.HashID = dedup.HashID(rec.Source, rec.Content)
	return rec, nil
}

func (b *Builder) defaultSource(messageID int64) string {
	if messageID <= 0 || b.channel == "" {
		return "unknown"
	}
	return fmt.Sprintf("https://t.me/%s/%d", b.channel, messageID)
}

func stringField(key string, val any) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		return "", reject(types.RejectMalformed, key, "expected a string, got %T", val)
	}
}

func countField(key string, val any) (*int64, error) {
	var n int64
	switch v := val.(type) {
	case nil:
		return nil, nil
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil || f != math.Trunc(f) {
				return nil, reject(types.RejectMalformed, key, "not an integer: %s", v)
			}
			if f >= math.MaxInt64 || f < math.MinInt64 {
				return nil, reject(types.RejectMalformed, key, "count out of range: %s", v)
			}
			i = int64(f)
		}
		n = i
	case float64:
		if v != math.Trunc(v) {
			return nil, reject(types.RejectMalformed, key, "not an integer: %v", v)
		}
		if v >= math.MaxInt64 || v < math.MinInt64 {
			return nil, reject(types.RejectMalformed, key, "count out of range: %v", v)
		}
		n = int64(v)
	case string:
		i, err := strconv.ParseInt(strings.NewReplacer(",", "", "_", "", " ", "").Replace(v), 10, 64)
		if err != nil {
			return nil, reject(types.RejectMalformed, key, "not an integer: %q", v)
		}
		n = i
	default:
		return nil, reject(types.RejectMalformed, key, "expected a number, got %T", val)
	}
	if n < 0 {
		return nil, reject(types.RejectMalformed, key, "negative count %d", n)
	}
	return &n, nil
}

// dataTypesField accepts a JSON array of labels or a comma separated string.
func dataTypesField(key string, val any) ([]types.DataType, error) {
	var labels []string
	switch v := val.(type) {
	case nil:
		return nil, nil
	case string:
		labels = strings.Split(v, ",")
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, reject(types.RejectMalformed, key, "expected string items, got %T", item)
			}
			labels = append(labels, s)
		}
	default:
		return nil, reject(types.RejectMalformed, key, "expected a list, got %T", val)
	}

	seen := make(map[types.DataType]bool, len(labels))
	var out []types.DataType
	for _, l := range labels {
		if strings.TrimSpace(l) == "" {
			continue
		}
		dt, _ := types.ParseDataType(l)
		if seen[dt] {
			continue
		}
		seen[dt] = true
		out = append(out, dt)
	}
	return out, nil
}

var dateLayouts = []string{
	types.DetectionDateLayout,
	"02 Jan 2006",
	"2 January 2006",
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
}

// normalizeDate rewrites recognised dates into the persisted layout.
// Unrecognised values are dropped so the message date can fill in.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(types.DetectionDateLayout)
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
