package cmd

import (
	"path/filepath"

	"github.com/kwindex/kwindex/internal/config"
)

// loadEffectiveConfig resolves build/search/retry defaults for the file at
// dataPath: hardcoded defaults, overlaid by the user config
// (~/.config/kwindex/config.yaml), a project .kwindex.yaml next to the
// file, and KWINDEX_* environment variables, in that order.
func loadEffectiveConfig(dataPath string) (*config.Config, error) {
	return config.Load(filepath.Dir(dataPath))
}
