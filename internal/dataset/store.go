/*
Package dataset owns the persisted breach dataset: a single JSON array file
that is always schema-valid, bounded, and replaced atomically.
*/
package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/shanehull/leakwatch/internal/config"
	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/types"
)

const defaultLockTimeout = 30 * time.Second

type Options struct {
	Path        string
	MaxRecords  int
	MaxBytes    int64
	Backup      BackupOptions
	LockTimeout time.Duration
}

type BackupOptions struct {
	Enabled        bool
	Dir            string
	RetentionCount int           // 0 keeps every backup
	MaxAge         time.Duration // 0 disables age pruning
}

// CommitResult describes what a Commit did to the artifact.
type CommitResult struct {
	Written        int // new records present in the persisted dataset
	Evicted        int
	DroppedInvalid int
	Size           int
	BackupPath     string
	Unchanged      bool
}

type Store struct {
	opts Options
	log  *zap.SugaredLogger
	now  func() time.Time
}

func New(opts Options, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	if opts.Backup.Dir != "" && !filepath.IsAbs(opts.Backup.Dir) {
		opts.Backup.Dir = filepath.Join(filepath.Dir(opts.Path), opts.Backup.Dir)
	}
	return &Store{opts: opts, log: log, now: time.Now}
}

// FromConfig builds a Store from the dataset and backup sections. A relative
// backup dir is resolved against the artifact's directory.
func FromConfig(cfg *config.Config, log *zap.SugaredLogger) *Store {
	return New(Options{
		Path:       cfg.Dataset.Path,
		MaxRecords: cfg.Dataset.MaxRecords,
		MaxBytes:   cfg.Dataset.MaxBytes,
		Backup: BackupOptions{
			Enabled:        cfg.Backup.Enabled,
			Dir:            cfg.Backup.Dir,
			RetentionCount: cfg.Backup.RetentionCount,
			MaxAge:         cfg.Backup.RetentionMaxAge,
		},
	}, log)
}

func (s *Store) Path() string {
	return s.opts.Path
}

// Load returns the persisted records. An absent artifact is an empty
// dataset; anything that does not validate is ErrCorruptDataset and is never
// repaired here.
func (s *Store) Load() ([]types.BreachRecord, error) {
	data, err := os.ReadFile(s.opts.Path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Infow("Dataset not found, starting empty", "path", s.opts.Path)
			return []types.BreachRecord{}, nil
		}
		return nil, errors.Wrapf(err, "read dataset %s", s.opts.Path)
	}

	records, err := decodeDataset(data)
	if err != nil {
		return nil, errors.Corrupt(err, s.opts.Path)
	}
	return records, nil
}

func decodeDataset(data []byte) ([]types.BreachRecord, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, errors.Newf("top-level value is %T, want an array", raw)
	}

	records := make([]types.BreachRecord, 0, len(items))
	seen := make(map[string]int, len(items))
	for i, item := range items {
		rec, err := ValidateValue(item)
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", i)
		}
		if j, dup := seen[rec.HashID]; dup {
			return nil, errors.Newf("record %d duplicates hashId %s of record %d", i, rec.HashID, j)
		}
		seen[rec.HashID] = i
		records = append(records, rec)
	}
	return records, nil
}

// Commit merges incoming into the persisted dataset under the artifact lock
// and replaces the file atomically. On any error the previous artifact is
// left untouched.
func (s *Store) Commit(ctx context.Context, incoming []types.BreachRecord) (CommitResult, error) {
	var res CommitResult

	unlock, err := s.lock(ctx)
	if err != nil {
		return res, err
	}
	defer unlock()

	current, err := os.ReadFile(s.opts.Path)
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return res, errors.Wrapf(err, "read dataset %s", s.opts.Path)
	}

	var existing []types.BreachRecord
	if exists {
		existing, err = decodeDataset(current)
		if err != nil {
			return res, errors.Corrupt(err, s.opts.Path)
		}
	}

	merged := Merge(existing, incoming)

	valid, dropped := s.validateAll(merged)
	res.DroppedInvalid = dropped

	bounded, data, evicted, err := Bound(valid, s.opts.MaxRecords, s.opts.MaxBytes)
	if err != nil {
		return res, err
	}
	res.Evicted = evicted
	res.Size = len(bounded)
	res.Written = countNew(bounded, existing)

	if exists && bytes.Equal(current, data) {
		res.Unchanged = true
		s.log.Infow("Dataset unchanged, skipping write", "path", s.opts.Path, "records", res.Size)
		return res, nil
	}

	if exists && s.opts.Backup.Enabled {
		res.BackupPath, err = s.backup(current)
		if err != nil {
			return res, err
		}
	}

	if err := writeFileAtomic(s.opts.Path, data, 0o644); err != nil {
		return res, errors.Wrapf(err, "write dataset %s", s.opts.Path)
	}

	if s.opts.Backup.Enabled {
		if err := s.prune(); err != nil {
			s.log.Warnw("Backup pruning failed", "dir", s.opts.Backup.Dir, "error", err)
		}
	}

	s.log.Infow("Dataset written",
		"path", s.opts.Path,
		"records", res.Size,
		"written", res.Written,
		"evicted", res.Evicted,
		"dropped_invalid", res.DroppedInvalid,
		"bytes", len(data),
		"backup", res.BackupPath,
	)
	return res, nil
}

func (s *Store) validateAll(records []types.BreachRecord) ([]types.BreachRecord, int) {
	out := make([]types.BreachRecord, 0, len(records))
	dropped := 0
	for _, r := range records {
		if err := ValidateRecord(r); err != nil {
			dropped++
			s.log.Warnw("Dropping invalid record", "hash_id", r.HashID, "source", r.Source, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, dropped
}

func countNew(final, existing []types.BreachRecord) int {
	old := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		old[r.HashID] = struct{}{}
	}
	n := 0
	for _, r := range final {
		if _, ok := old[r.HashID]; !ok {
			n++
		}
	}
	return n
}

// Encode renders records the way they are persisted: a 2-space indented
// UTF-8 JSON array without HTML escaping.
func Encode(records []types.BreachRecord) ([]byte, error) {
	if records == nil {
		records = []types.BreachRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, errors.Wrap(err, "encode dataset")
	}
	return buf.Bytes(), nil
}
