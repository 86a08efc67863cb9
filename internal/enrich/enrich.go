/*
Package enrich fills the optional fields of a record from its content:
affected count, data types and severity. Source and content are never
modified, so the record's hashId stays valid.
*/
package enrich

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shanehull/leakwatch/internal/types"
)

var countRe = regexp.MustCompile(`(?i)(\d{1,3}(?:[,. ]\d{3})+|\d+(?:\.\d+)?)\s*([kmb]|thousand|million|billion)?\+?\s+(?:[a-z]+\s+)?(users|accounts|records|credentials|customers|emails|rows|entries|members|clients|patients|employees|people|profiles|lines|passwords)\b`)

var dataTypeKeywords = map[types.DataType][]string{
	types.DataEmails:       {"email", "e-mail", "mail address"},
	types.DataPasswords:    {"password", "credential", "hash", "login"},
	types.DataPersonalInfo: {"personal", "name", "address", "phone", "dob", "date of birth", "passport", "national id", "ssn", "social security", "identity"},
	types.DataFinancial:    {"credit card", "card number", "bank", "financial", "payment", "iban", "transaction", "cvv"},
}

// Record returns r with absent optional fields filled in.
func Record(r types.BreachRecord) types.BreachRecord {
	lower := strings.ToLower(r.Content)

	if r.AffectedCount == nil {
		if n, ok := AffectedCount(r.Content); ok {
			r.AffectedCount = &n
		}
	}

	if len(r.DataTypes) == 0 {
		r.DataTypes = detectDataTypes(lower)
	}

	if r.Severity == "" {
		r.Severity = severityFor(r)
	}
	return r
}

// AffectedCount returns the largest number in content that is followed by
// an entity word, e.g. "50,000 users", "1.2M records" or "50k emails".
func AffectedCount(content string) (int64, bool) {
	var (
		best  int64
		found bool
	)
	for _, m := range countRe.FindAllStringSubmatch(content, -1) {
		n, ok := parseCount(m[1], m[2])
		if !ok {
			continue
		}
		if !found || n > best {
			best = n
			found = true
		}
	}
	return best, found
}

func parseCount(num, suffix string) (int64, bool) {
	mult := 1.0
	switch strings.ToLower(suffix) {
	case "k", "thousand":
		mult = 1e3
	case "m", "million":
		mult = 1e6
	case "b", "billion":
		mult = 1e9
	}

	// "50,000" and "50.000" are grouped thousands; "1.2" is a decimal
	if groupedTail(num) {
		num = strings.NewReplacer(",", "", ".", "", " ", "").Replace(num)
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	v := f * mult
	if v < 0 || v > math.MaxInt64/2 {
		return 0, false
	}
	return int64(math.Round(v)), true
}

// groupedTail reports whether every separator is followed by three digits.
func groupedTail(num string) bool {
	parts := strings.FieldsFunc(num, func(r rune) bool { return r == '.' || r == ',' || r == ' ' })
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

func detectDataTypes(lower string) []types.DataType {
	var out []types.DataType
	for _, dt := range types.DataTypes {
		for _, kw := range dataTypeKeywords[dt] {
			if strings.Contains(lower, kw) {
				out = append(out, dt)
				break
			}
		}
	}
	return out
}

func severityFor(r types.BreachRecord) types.Severity {
	sev := types.SeverityLow
	if r.AffectedCount != nil {
		switch n := *r.AffectedCount; {
		case n >= 1_000_000:
			sev = types.SeverityCritical
		case n >= 100_000:
			sev = types.SeverityHigh
		case n >= 1_000:
			sev = types.SeverityMedium
		}
	}

	if r.HasDataType(types.DataPasswords) || r.HasDataType(types.DataFinancial) {
		if rank(sev) < rank(types.SeverityHigh) {
			sev = types.SeverityHigh
		}
	}
	return sev
}

func rank(s types.Severity) int {
	for i, v := range types.Severities {
		if v == s {
			return i
		}
	}
	return -1
}
