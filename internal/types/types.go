package types

import (
	"strings"
	"time"
)

type BreachType string

const (
	TypeDataLeak         BreachType = "DataLeak"
	TypeSecurityBreach   BreachType = "SecurityBreach"
	TypePrivacyViolation BreachType = "PrivacyViolation"
	TypeRansomware       BreachType = "Ransomware"
	TypeMalware          BreachType = "Malware"
	TypePhishing         BreachType = "Phishing"
	TypeDDoS             BreachType = "DDoS"
	TypeOther            BreachType = "Other"
)

var BreachTypes = []BreachType{
	TypeDataLeak,
	TypeSecurityBreach,
	TypePrivacyViolation,
	TypeRansomware,
	TypeMalware,
	TypePhishing,
	TypeDDoS,
	TypeOther,
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

type DataType string

const (
	DataEmails       DataType = "emails"
	DataPasswords    DataType = "passwords"
	DataPersonalInfo DataType = "personalInfo"
	DataFinancial    DataType = "financial"
	DataOther        DataType = "other"
)

var DataTypes = []DataType{DataEmails, DataPasswords, DataPersonalInfo, DataFinancial, DataOther}

// DetectionDateLayout is the time layout of BreachRecord.DetectionDate,
// e.g. "7 Mar 2024".
const DetectionDateLayout = "2 Jan 2006"

// BreachRecord is one entry of the persisted dataset. Field names are the
// on-disk contract with the presentation layer.
type BreachRecord struct {
	Source        string     `json:"source"`
	Content       string     `json:"content"`
	Author        string     `json:"author,omitempty"`
	DetectionDate string     `json:"detectionDate,omitempty"`
	Type          BreachType `json:"type"`
	MessageID     int64      `json:"messageId,omitempty"`
	Timestamp     string     `json:"timestamp,omitempty"`
	HashID        string     `json:"hashId"`
	Severity      Severity   `json:"severity,omitempty"`
	AffectedCount *int64     `json:"affectedCount,omitempty"`
	DataTypes     []DataType `json:"dataTypes,omitempty"`
}

// Time returns the parsed timestamp, or false when the record has none.
func (r BreachRecord) Time() (time.Time, bool) {
	if r.Timestamp == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (r BreachRecord) HasDataType(dt DataType) bool {
	for _, d := range r.DataTypes {
		if d == dt {
			return true
		}
	}
	return false
}

// Message is one raw channel post.
type Message struct {
	ID     int64
	Text   string
	Author string
	Date   time.Time
}

// Candidate is a structurally decoded message body that has not been
// validated yet.
type Candidate struct {
	Fields    map[string]any
	MessageID int64
	Author    string
	Date      time.Time
}

// ParseBreachType maps a channel label such as "Data leak" or "security_breach"
// onto the enum. Unknown labels report false.
func ParseBreachType(label string) (BreachType, bool) {
	key := foldLabel(label)
	for _, t := range BreachTypes {
		if foldLabel(string(t)) == key {
			return t, true
		}
	}
	return TypeOther, false
}

func ParseSeverity(label string) (Severity, bool) {
	key := foldLabel(label)
	for _, s := range Severities {
		if string(s) == key {
			return s, true
		}
	}
	return Severity(strings.ToLower(strings.TrimSpace(label))), false
}

func ParseDataType(label string) (DataType, bool) {
	key := foldLabel(label)
	switch key {
	case "email", "mail", "emailaddresses":
		return DataEmails, true
	case "password", "passwordhashes", "hashes", "credentials":
		return DataPasswords, true
	case "personal", "pii", "personaldata":
		return DataPersonalInfo, true
	case "finance", "payment", "creditcards", "banking":
		return DataFinancial, true
	}
	for _, d := range DataTypes {
		if foldLabel(string(d)) == key {
			return d, true
		}
	}
	return DataOther, false
}

// foldLabel lower-cases and drops spaces, underscores and hyphens.
func foldLabel(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r == ' ' || r == '_' || r == '-' {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// FoldKey normalises a candidate field name the same way labels are folded.
func FoldKey(s string) string {
	return foldLabel(s)
}
