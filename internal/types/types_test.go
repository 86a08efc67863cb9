package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseBreachType(t *testing.T) {
	tests := []struct {
		label string
		want  BreachType
		ok    bool
	}{
		{"DataLeak", TypeDataLeak, true},
		{"Data leak", TypeDataLeak, true},
		{"security_breach", TypeSecurityBreach, true},
		{"ddos", TypeDDoS, true},
		{" Ransomware ", TypeRansomware, true},
		{"Cyberattack", TypeOther, false},
	}
	for _, tt := range tests {
		got, ok := ParseBreachType(tt.label)
		assert.Equal(t, tt.want, got, tt.label)
		assert.Equal(t, tt.ok, ok, tt.label)
	}
}

func TestParseSeverityAndDataType(t *testing.T) {
	s, ok := ParseSeverity("Critical")
	assert.True(t, ok)
	assert.Equal(t, SeverityCritical, s)

	_, ok = ParseSeverity("severe")
	assert.False(t, ok)

	d, ok := ParseDataType("Credentials")
	assert.True(t, ok)
	assert.Equal(t, DataPasswords, d)

	d, ok = ParseDataType("personal_info")
	assert.True(t, ok)
	assert.Equal(t, DataPersonalInfo, d)

	d, ok = ParseDataType("biometrics")
	assert.False(t, ok)
	assert.Equal(t, DataOther, d)
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("full")
	assert.True(t, ok)
	assert.Equal(t, ModeFullHistory, m)

	m, ok = ParseMode("incremental")
	assert.True(t, ok)
	assert.Equal(t, ModeIncremental, m)

	_, ok = ParseMode("weekly")
	assert.False(t, ok)
}

func TestRecordTime(t *testing.T) {
	r := BreachRecord{Timestamp: "2024-03-07T10:42:00Z"}
	ts, ok := r.Time()
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, time.March, 7, 10, 42, 0, 0, time.UTC), ts)

	_, ok = BreachRecord{}.Time()
	assert.False(t, ok)
	_, ok = BreachRecord{Timestamp: "yesterday"}.Time()
	assert.False(t, ok)
}

func TestRunSummaryBookkeeping(t *testing.T) {
	var s RunSummary
	s.Reject(RejectSpam)
	s.Reject(RejectSpam)
	s.Reject(RejectDuplicate)
	assert.Equal(t, 3, s.RejectedTotal())
	assert.Equal(t, 2, s.Rejected[RejectSpam])

	s.MarkPartial(PartialBatchFailed)
	s.MarkPartial(PartialBatchFailed)
	s.MarkPartial(PartialCancelled)
	assert.Equal(t, []PartialReason{PartialBatchFailed, PartialCancelled}, s.PartialReasons)
}
