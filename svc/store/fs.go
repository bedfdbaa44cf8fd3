// Package store keeps pastes as flat files named by slug in one directory.
//
// Writes go through a dot-prefixed temp file in the same directory and are
// published with a rename (overwrite) or a hard link (no overwrite), so a
// slug never names a partially written file.
package store

import (
	"context"
	"os"
	"path/filepath"
	"purrbin/pkg/domain"
	"purrbin/svc/util"
	"time"

	"github.com/pkg/errors"
)

const (
	tmpPattern = ".purrbin-*.tmp"
	pasteMode  = 0o644
)

var ErrExists = errors.New("slug already taken")

type FS struct {
	dir  string
	sync bool
}

func NewFS(dir string) (*FS, error) {
	if dir == "" {
		return nil, errors.New("storage directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(err, "resolve storage directory")
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrap(err, "stat storage directory")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("storage path %s is not a directory", abs)
	}
	return &FS{dir: abs, sync: true}, nil
}

// SetSync toggles fsync of each paste before it is published.
func (f *FS) SetSync(on bool) { f.sync = on }
func (f *FS) Dir() string     { return f.dir }

func (f *FS) Path(slug domain.Slug) (string, error) {
	if !util.ValidSlug(string(slug), 0) {
		return "", errors.Errorf("invalid slug %q", slug)
	}
	return filepath.Join(f.dir, string(slug)), nil
}

// Put stores data under slug. With overwrite an existing paste is replaced
// and replaced reports whether one was there; without it ErrExists is
// returned and the existing paste is left alone.
func (f *FS) Put(ctx context.Context, slug domain.Slug, data []byte, overwrite bool) (replaced bool, err error) {
	finalPath, err := f.Path(slug)
	if err != nil {
		return false, err
	}
	tmpPath, err := f.stage(ctx, data)
	if err != nil {
		return false, err
	}
	// after a rename the temp name is gone and the remove is a no-op; after
	// a link it drops the second name and leaves only the slug
	defer os.Remove(tmpPath)

	if overwrite {
		if _, err := os.Lstat(finalPath); err == nil {
			replaced = true
		}
		if err := os.Rename(tmpPath, finalPath); err != nil {
			return false, errors.Wrap(err, "publish paste")
		}
		return replaced, nil
	}
	if err := os.Link(tmpPath, finalPath); err != nil {
		if os.IsExist(err) {
			return false, ErrExists
		}
		return false, errors.Wrap(err, "publish paste")
	}
	return false, nil
}

// PutNew writes data once and links it under the first slug from next that
// is still free, trying at most attempts slugs. ErrExists means every slug
// drawn was taken.
func (f *FS) PutNew(ctx context.Context, data []byte, next func() domain.Slug, attempts int) (domain.Slug, error) {
	tmpPath, err := f.stage(ctx, data)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmpPath)

	for i := 0; i < attempts; i++ {
		slug := next()
		finalPath, err := f.Path(slug)
		if err != nil {
			return "", err
		}
		if err := os.Link(tmpPath, finalPath); err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", errors.Wrap(err, "publish paste")
		}
		return slug, nil
	}
	return "", ErrExists
}

// stage writes data to a fresh temp file in the storage directory and
// returns its path. The file is removed again if any step fails.
func (f *FS) stage(ctx context.Context, data []byte) (path string, err error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(err, "put cancelled")
	}
	tmp, err := os.CreateTemp(f.dir, tmpPattern)
	if err != nil {
		return "", errors.Wrap(err, "create temp paste")
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", errors.Wrap(err, "write temp paste")
	}
	if f.sync {
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return "", errors.Wrap(err, "sync temp paste")
		}
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "close temp paste")
	}
	if err := os.Chmod(tmpPath, pasteMode); err != nil {
		return "", errors.Wrap(err, "chmod temp paste")
	}
	return tmpPath, nil
}

func (f *FS) Get(ctx context.Context, slug domain.Slug) ([]byte, error) {
	p, err := f.Path(slug)
	if err != nil {
		return nil, domain.ErrPasteNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "get cancelled")
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrPasteNotFound
		}
		return nil, errors.Wrap(err, "read paste")
	}
	return data, nil
}

func (f *FS) Exists(slug domain.Slug) (bool, error) {
	p, err := f.Path(slug)
	if err != nil {
		return false, err
	}
	info, err := os.Lstat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "stat paste")
	}
	return info.Mode().IsRegular(), nil
}

// Probe checks that the directory still accepts new files.
func (f *FS) Probe() error {
	tmp, err := os.CreateTemp(f.dir, tmpPattern)
	if err != nil {
		return errors.Wrap(err, "storage directory not writable")
	}
	name := tmp.Name()
	tmp.Close()
	if err := os.Remove(name); err != nil {
		return errors.Wrap(err, "remove probe file")
	}
	return nil
}

// SweepTemp removes temp files older than age, left behind by a crash
// between create and publish.
func (f *FS) SweepTemp(age time.Duration) (int, error) {
	matches, err := filepath.Glob(filepath.Join(f.dir, tmpPattern))
	if err != nil {
		return 0, errors.Wrap(err, "glob temp files")
	}
	cutoff := time.Now().Add(-age)
	removed := 0
	for _, m := range matches {
		info, err := os.Lstat(m)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(m); err != nil {
			util.Warn().Err(err).Str("path", m).Msg("failed to remove stale temp file")
			continue
		}
		removed++
	}
	return removed, nil
}
