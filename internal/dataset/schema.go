package dataset

import (
	"encoding/json"
	"regexp"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/shanehull/leakwatch/internal/dedup"
	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/types"
)

const (
	maxSourceLen  = 500
	maxContentLen = 2000
	maxAuthorLen  = 100
)

var detectionDateRe = regexp.MustCompile(`^[1-9][0-9]? (Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec) [0-9]{4}$`)

func enumOf[T ~string](vals []T) []any {
	out := make([]any, 0, len(vals))
	for _, v := range vals {
		out = append(out, string(v))
	}
	return out
}

// RecordSchema is the JSON Schema of one persisted record.
func RecordSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"source":        {Type: "string", MinLength: jsonschema.Ptr(1), MaxLength: jsonschema.Ptr(maxSourceLen)},
			"content":       {Type: "string", MinLength: jsonschema.Ptr(1), MaxLength: jsonschema.Ptr(maxContentLen)},
			"author":        {Type: "string", MaxLength: jsonschema.Ptr(maxAuthorLen)},
			"detectionDate": {Type: "string", Pattern: detectionDateRe.String()},
			"type":          {Type: "string", Enum: enumOf(types.BreachTypes)},
			"messageId":     {Type: "integer", Minimum: jsonschema.Ptr(1.0)},
			"timestamp":     {Type: "string", MinLength: jsonschema.Ptr(1)},
			"hashId":        {Type: "string", Pattern: `^[0-9a-f]{16}$`},
			"severity":      {Type: "string", Enum: enumOf(types.Severities)},
			"affectedCount": {Type: "integer", Minimum: jsonschema.Ptr(0.0)},
			"dataTypes": {
				Type:        "array",
				Items:       &jsonschema.Schema{Type: "string", Enum: enumOf(types.DataTypes)},
				UniqueItems: true,
			},
		},
		Required:             []string{"source", "content", "type", "hashId"},
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

var resolvedSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	return RecordSchema().Resolve(nil)
})

// ValidateValue checks one decoded JSON value (as produced by json.Unmarshal
// into any) against the record schema and the rules JSON Schema cannot
// express. The returned record is only meaningful when err is nil.
func ValidateValue(v any) (types.BreachRecord, error) {
	rs, err := resolvedSchema()
	if err != nil {
		return types.BreachRecord{}, errors.Wrap(err, "resolve record schema")
	}
	if err := rs.Validate(v); err != nil {
		return types.BreachRecord{}, errors.Mark(errors.Wrap(err, "schema"), errors.ErrMalformed)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return types.BreachRecord{}, errors.Mark(errors.Wrap(err, "re-encode record"), errors.ErrMalformed)
	}
	var rec types.BreachRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return types.BreachRecord{}, errors.Mark(errors.Wrap(err, "decode record"), errors.ErrMalformed)
	}
	if err := checkSemantics(rec); err != nil {
		return types.BreachRecord{}, err
	}
	return rec, nil
}

// ValidateRecord checks a record built in memory the same way a loaded one
// is checked.
func ValidateRecord(rec types.BreachRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "encode record"), errors.ErrMalformed)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return errors.Mark(errors.Wrap(err, "decode record"), errors.ErrMalformed)
	}
	_, err = ValidateValue(v)
	return err
}

func checkSemantics(rec types.BreachRecord) error {
	if want := dedup.HashID(rec.Source, rec.Content); rec.HashID != want {
		return malformed("hashId %s does not match source and content (want %s)", rec.HashID, want)
	}
	if rec.Timestamp != "" {
		if _, err := time.Parse(time.RFC3339, rec.Timestamp); err != nil {
			return malformed("timestamp %q is not RFC 3339", rec.Timestamp)
		}
	}
	if rec.DetectionDate != "" {
		if _, err := time.Parse(types.DetectionDateLayout, rec.DetectionDate); err != nil {
			return malformed("detectionDate %q is not a date", rec.DetectionDate)
		}
	}
	return nil
}

func malformed(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), errors.ErrMalformed)
}
