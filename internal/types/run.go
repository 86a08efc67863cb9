package types

import "time"

type Mode string

const (
	ModeIncremental Mode = "incremental"
	ModeFullHistory Mode = "full-history"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeIncremental, ModeFullHistory:
		return Mode(s), true
	case "full", "fullhistory", "full_history":
		return ModeFullHistory, true
	}
	return "", false
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

type PartialReason string

const (
	PartialTimeBudget  PartialReason = "time_budget"
	PartialBatchFailed PartialReason = "batch_failed"
	PartialAuth        PartialReason = "auth"
	PartialCancelled   PartialReason = "cancelled"
)

type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureTransient FailureKind = "transient"
	FailureMalformed FailureKind = "malformed"
	FailureAuth      FailureKind = "auth"
	FailureCorrupt   FailureKind = "corrupt_dataset"
	FailureConfig    FailureKind = "config"
)

type RejectReason string

const (
	RejectNotCandidate   RejectReason = "not_candidate"
	RejectUnknownField   RejectReason = "unknown_field"
	RejectMalformed      RejectReason = "malformed"
	RejectMissingContent RejectReason = "missing_content"
	RejectTooShort       RejectReason = "too_short"
	RejectTooLong        RejectReason = "too_long"
	RejectLowBreachScore RejectReason = "low_breach_score"
	RejectSpam           RejectReason = "spam"
	RejectDuplicate      RejectReason = "duplicate"
	RejectSchema         RejectReason = "schema"
)

// RunSummary is reported for every run regardless of outcome.
type RunSummary struct {
	ID             string                 `json:"id"`
	Mode           Mode                   `json:"mode"`
	StartedAt      time.Time              `json:"startedAt"`
	FinishedAt     time.Time              `json:"finishedAt"`
	Outcome        Outcome                `json:"outcome"`
	PartialReasons []PartialReason        `json:"partialReasons,omitempty"`
	Failure        FailureKind            `json:"failure,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Scanned        int                    `json:"scanned"`
	Extracted      int                    `json:"extracted"`
	Accepted       int                    `json:"accepted"`
	Rejected       map[RejectReason]int   `json:"rejected"`
	BatchesFetched int                    `json:"batchesFetched"`
	BatchesFailed  int                    `json:"batchesFailed"`
	Written        int                    `json:"written"`
	Evicted        int                    `json:"evicted"`
	DroppedInvalid int                    `json:"droppedInvalid"`
	DatasetSize    int                    `json:"datasetSize"`
	BackupPath     string                 `json:"backupPath,omitempty"`
	Merged         bool                   `json:"merged"`
}

func (s *RunSummary) Reject(reason RejectReason) {
	if s.Rejected == nil {
		s.Rejected = make(map[RejectReason]int)
	}
	s.Rejected[reason]++
}

func (s *RunSummary) MarkPartial(reason PartialReason) {
	for _, r := range s.PartialReasons {
		if r == reason {
			return
		}
	}
	s.PartialReasons = append(s.PartialReasons, reason)
}

func (s RunSummary) RejectedTotal() int {
	n := 0
	for _, c := range s.Rejected {
		n += c
	}
	return n
}
