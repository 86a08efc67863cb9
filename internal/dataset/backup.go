package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shanehull/leakwatch/internal/errors"
)

const backupTimeLayout = "20060102_150405"

// Backup is one copy of a previous artifact.
type Backup struct {
	Name  string
	Path  string
	Taken time.Time
	Size  int64
	seq   int
}

func (s *Store) stem() string {
	base := filepath.Base(s.opts.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (s *Store) backupPattern() *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(s.stem()) + `_backup_(\d{8}_\d{6})(?:_(\d+))?\.json$`)
}

// backup stores data as <dir>/<stem>_backup_<YYYYmmdd_HHMMSS>.json. A
// numeric suffix keeps two backups taken in the same second apart.
func (s *Store) backup(data []byte) (string, error) {
	dir := s.opts.Backup.Dir
	if dir == "" {
		dir = filepath.Dir(s.opts.Path)
	}

	ts := s.now().UTC().Format(backupTimeLayout)
	name := fmt.Sprintf("%s_backup_%s.json", s.stem(), ts)
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			break
		}
		name = fmt.Sprintf("%s_backup_%s_%d.json", s.stem(), ts, i)
	}

	path := filepath.Join(dir, name)
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "write backup %s", path)
	}
	s.log.Infow("Backup created", "path", path, "bytes", len(data))
	return path, nil
}

// Backups lists the backups of this artifact, newest first.
func (s *Store) Backups() ([]Backup, error) {
	dir := s.opts.Backup.Dir
	if dir == "" {
		dir = filepath.Dir(s.opts.Path)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read backup dir %s", dir)
	}

	re := s.backupPattern()
	var out []Backup
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		taken, err := time.ParseInLocation(backupTimeLayout, m[1], time.UTC)
		if err != nil {
			continue
		}
		seq := 0
		if m[2] != "" {
			seq, _ = strconv.Atoi(m[2])
		}
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		out = append(out, Backup{
			Name:  e.Name(),
			Path:  filepath.Join(dir, e.Name()),
			Taken: taken,
			Size:  size,
			seq:   seq,
		})
	}

	slices.SortFunc(out, func(a, b Backup) int {
		if c := b.Taken.Compare(a.Taken); c != 0 {
			return c
		}
		return b.seq - a.seq
	})
	return out, nil
}

// prune removes backups beyond the retention count or older than the
// retention age, oldest first.
func (s *Store) prune() error {
	backups, err := s.Backups()
	if err != nil {
		return err
	}

	now := s.now()
	keep := s.opts.Backup.RetentionCount
	maxAge := s.opts.Backup.MaxAge

	for i := len(backups) - 1; i >= 0; i-- {
		b := backups[i]
		overCount := keep > 0 && i >= keep
		tooOld := maxAge > 0 && now.Sub(b.Taken) > maxAge
		if !overCount && !tooOld {
			continue
		}
		if err := os.Remove(b.Path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove backup %s", b.Path)
		}
		s.log.Infow("Backup pruned", "path", b.Path, "taken", b.Taken)
	}
	return nil
}

// Restore validates the named backup and atomically makes it the artifact.
// The current artifact, if any, is backed up first. It returns the path of
// that backup.
func (s *Store) Restore(ctx context.Context, name string) (string, error) {
	if name != filepath.Base(name) || !s.backupPattern().MatchString(name) {
		return "", errors.Newf("%q is not a backup of %s", name, filepath.Base(s.opts.Path))
	}

	var src string
	backups, err := s.Backups()
	if err != nil {
		return "", err
	}
	for _, b := range backups {
		if b.Name == name {
			src = b.Path
			break
		}
	}
	if src == "" {
		return "", errors.Newf("backup %s not found", name)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return "", errors.Wrapf(err, "read backup %s", src)
	}
	records, err := decodeDataset(data)
	if err != nil {
		return "", errors.Corrupt(err, src)
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	var saved string
	current, err := os.ReadFile(s.opts.Path)
	switch {
	case err == nil:
		saved, err = s.backup(current)
		if err != nil {
			return "", err
		}
	case !os.IsNotExist(err):
		return "", errors.Wrapf(err, "read dataset %s", s.opts.Path)
	}

	if err := writeFileAtomic(s.opts.Path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "write dataset %s", s.opts.Path)
	}

	s.log.Infow("Dataset restored", "from", src, "records", len(records), "previous_saved_to", saved)
	return saved, nil
}
