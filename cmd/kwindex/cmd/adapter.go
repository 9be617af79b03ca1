package cmd

import (
	kwerrors "github.com/kwindex/kwindex/internal/errors"
	"github.com/kwindex/kwindex/internal/storage"
)

// resolveAdapter picks the Storage Adapter for path: HTTP(S) object stores
// get range-GET over the network, everything else is treated as a local
// filesystem path. Both are wrapped in retry logic for transient failures,
// using the retry policy from the effective config (user/project/env),
// falling back to the hardcoded default if no config resolves cleanly.
func resolveAdapter(path string) storage.Adapter {
	retry := kwerrors.DefaultRetryConfig()
	if cfg, err := loadEffectiveConfig(path); err == nil {
		retry = cfg.Retry.ToErrorsConfig()
	}
	if isHTTPURL(path) {
		return storage.NewRetrying(storage.NewHTTP(nil), retry)
	}
	return storage.NewRetrying(storage.NewLocal(), retry)
}

func isHTTPURL(path string) bool {
	return len(path) > 7 && (path[:7] == "http://" || (len(path) > 8 && path[:8] == "https://"))
}
