/*
Package classify decides whether a record reads like a real breach report
or like advertising.
*/
package classify

import (
	"strings"
	"unicode/utf8"

	"github.com/shanehull/leakwatch/internal/types"
)

type Config struct {
	BreachTerms      []string
	SpamTerms        []string
	MinBreachScore   int
	MaxSpamScore     int // negative disables the spam ceiling
	MinContentLength int
	MaxContentLength int
}

type Verdict struct {
	Accepted    bool
	BreachScore int
	SpamScore   int
	Reason      types.RejectReason // empty when accepted
	BreachTerms []string
	SpamTerms   []string
}

type Classifier struct {
	breach    []string
	spam      []string
	minBreach int
	maxSpam   int
	minLen    int
	maxLen    int
}

// New lower-cases and de-duplicates the term lists. A zero MaxContentLength
// means no upper bound.
func New(cfg Config) *Classifier {
	return &Classifier{
		breach:    normalizeTerms(cfg.BreachTerms),
		spam:      normalizeTerms(cfg.SpamTerms),
		minBreach: cfg.MinBreachScore,
		maxSpam:   cfg.MaxSpamScore,
		minLen:    cfg.MinContentLength,
		maxLen:    cfg.MaxContentLength,
	}
}

// Classify scores content by the number of distinct terms it contains.
// Length bounds are checked first, in runes.
func (c *Classifier) Classify(content string) Verdict {
	n := utf8.RuneCountInString(content)
	if n < c.minLen {
		return Verdict{Reason: types.RejectTooShort}
	}
	if c.maxLen > 0 && n > c.maxLen {
		return Verdict{Reason: types.RejectTooLong}
	}

	lower := strings.ToLower(content)
	v := Verdict{
		BreachTerms: findTerms(lower, c.breach),
		SpamTerms:   findTerms(lower, c.spam),
	}
	v.BreachScore = len(v.BreachTerms)
	v.SpamScore = len(v.SpamTerms)

	switch {
	case v.BreachScore < c.minBreach:
		v.Reason = types.RejectLowBreachScore
	case c.maxSpam >= 0 && v.SpamScore > c.maxSpam:
		v.Reason = types.RejectSpam
	default:
		v.Accepted = true
	}
	return v
}

func findTerms(lower string, terms []string) []string {
	var found []string
	for _, t := range terms {
		if strings.Contains(lower, t) {
			found = append(found, t)
		}
	}
	return found
}

func normalizeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
