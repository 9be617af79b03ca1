package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	kwerrors "github.com/kwindex/kwindex/internal/errors"
)

// LocalAdapter implements Adapter over the local filesystem. Writes go to a
// temporary file in the same directory and are atomically renamed into
// place, so a cancelled or failed build never leaves a partial sidecar.
type LocalAdapter struct{}

// NewLocal creates a LocalAdapter.
func NewLocal() *LocalAdapter {
	return &LocalAdapter{}
}

func (l *LocalAdapter) Head(_ context.Context, path string) (ObjectInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ObjectInfo{}, kwerrors.MissingIndex(fmt.Sprintf("no such file: %s", path))
		}
		return ObjectInfo{}, kwerrors.IoError("stat failed", err, false)
	}
	return ObjectInfo{
		Size:         info.Size(),
		ETag:         "", // local filesystems have no etag
		LastModified: info.ModTime().Unix(),
	}, nil
}

func (l *LocalAdapter) Get(_ context.Context, path string, offset int64, length int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kwerrors.MissingIndex(fmt.Sprintf("no such file: %s", path))
		}
		return nil, kwerrors.IoError("open failed", err, true)
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, kwerrors.IoError("seek failed", err, true)
		}
	}

	if length < 0 {
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, kwerrors.IoError("read failed", err, true)
		}
		return data, nil
	}

	buf := make([]byte, length)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, kwerrors.IoError("read failed", err, true)
	}
	return buf[:n], nil
}

func (l *LocalAdapter) Put(_ context.Context, path string, r io.Reader) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return kwerrors.IoError("failed to create directory", err, false)
	}

	lock := flock.New(filepath.Join(dir, ".kwindex-write.lock"))
	if err := lock.Lock(); err != nil {
		return kwerrors.IoError("failed to acquire write lock", err, true)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, ".kwindex-tmp-*")
	if err != nil {
		return kwerrors.IoError("failed to create temp file", err, false)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return kwerrors.IoError("write failed", err, true)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return kwerrors.IoError("sync failed", err, true)
	}
	if err := tmp.Close(); err != nil {
		return kwerrors.IoError("close failed", err, true)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return kwerrors.IoError("atomic rename failed", err, false)
	}
	return nil
}

func (l *LocalAdapter) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, kwerrors.IoError("stat failed", err, false)
}
