// Package validate implements the Validator: it compares a persisted index
// header's source identity against the current data file and reports
// staleness.
package validate

import (
	"context"

	"github.com/kwindex/kwindex/internal/container"
	kwerrors "github.com/kwindex/kwindex/internal/errors"
	"github.com/kwindex/kwindex/internal/storage"
)

// Check validates header against the current identity of the data file at
// dataPath: etag is authoritative when present on both sides; size and
// mtime are the tiebreaker. Any mismatch yields StaleIndex.
func Check(ctx context.Context, adapter storage.Adapter, dataPath string, header *container.Header) error {
	info, err := adapter.Head(ctx, dataPath)
	if err != nil {
		return err
	}

	if header.Source.ETag != "" && info.ETag != "" {
		if header.Source.ETag != info.ETag {
			return kwerrors.StaleIndex("etag mismatch: index was built against a different object version")
		}
		return nil
	}

	if header.Source.Size != uint64(info.Size) {
		return kwerrors.StaleIndex("size mismatch: source file has changed since the index was built")
	}
	if header.Source.LastModified != uint64(info.LastModified) {
		return kwerrors.StaleIndex("last-modified mismatch: source file has changed since the index was built")
	}
	return nil
}
