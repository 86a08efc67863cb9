// Package errors wraps github.com/cockroachdb/errors and defines the failure
// taxonomy of a run.
//
// Failures are tagged with Mark so errors.Is keeps working through any amount
// of wrapping:
//
//	err = errors.Mark(errors.Wrap(err, "fetch batch"), errors.ErrTransient)
//	if errors.Is(err, errors.ErrTransient) { ... }
//
// KindOf collapses an error into the coarse kind reported in run summaries.
package errors

import (
	crdb "github.com/cockroachdb/errors"

	"github.com/shanehull/leakwatch/internal/types"
)

var (
	New       = crdb.New
	Newf      = crdb.Newf
	Wrap      = crdb.Wrap
	Wrapf     = crdb.Wrapf
	WithStack = crdb.WithStack
	Mark      = crdb.Mark
)

var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	GetAllHints   = crdb.GetAllHints
	FlattenHints  = crdb.FlattenHints
	GetAllDetails = crdb.GetAllDetails
)

var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

var (
	// ErrTransient marks channel I/O failures worth retrying.
	ErrTransient = New("transient channel failure")

	// ErrMalformed marks input that cannot be decoded or validated.
	ErrMalformed = New("malformed input")

	// ErrAuth marks a rejected or unusable channel session. Never retried.
	ErrAuth = New("channel session rejected")

	// ErrCorruptDataset marks an on-disk dataset that fails schema validation.
	ErrCorruptDataset = New("corrupt dataset artifact")

	// ErrInvalidConfig marks configuration rejected at startup.
	ErrInvalidConfig = New("invalid configuration")

	// ErrFirstBatch is returned when the first batch of a run exhausts its retries.
	ErrFirstBatch = New("first batch failed")

	// ErrNoBatches is returned when a run ends without retrieving any batch.
	ErrNoBatches = New("no batches retrieved")
)

// Transient tags err as retriable channel I/O failure.
func Transient(err error, msg string) error {
	return Mark(Wrap(err, msg), ErrTransient)
}

// Auth tags err as a fatal session failure.
func Auth(err error, msg string) error {
	return Mark(Wrap(err, msg), ErrAuth)
}

// Corrupt tags err as a corrupt dataset and attaches the recovery hint.
func Corrupt(err error, path string) error {
	err = Mark(Wrapf(err, "dataset %s", path), ErrCorruptDataset)
	return WithHintf(err, "restore a known-good copy with `leakwatch restore <backup>`; see `leakwatch backups`")
}

// InvalidConfig builds a configuration error.
func InvalidConfig(format string, args ...any) error {
	return Mark(Newf(format, args...), ErrInvalidConfig)
}

// KindOf maps err onto the failure kinds reported in run summaries.
func KindOf(err error) types.FailureKind {
	switch {
	case err == nil:
		return types.FailureNone
	case Is(err, ErrAuth):
		return types.FailureAuth
	case Is(err, ErrCorruptDataset):
		return types.FailureCorrupt
	case Is(err, ErrInvalidConfig):
		return types.FailureConfig
	case Is(err, ErrMalformed):
		return types.FailureMalformed
	default:
		return types.FailureTransient
	}
}
