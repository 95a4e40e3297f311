package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// projectConfig is an optional oyc.toml sitting at a project root, giving
// `oyc run`/`oyc build` defaults so invocations don't need to repeat flags.
type projectConfig struct {
	Run   runConfig   `toml:"run"`
	Build buildConfig `toml:"build"`
}

type runConfig struct {
	Main         string `toml:"main"`
	CacheRequire bool   `toml:"cache_require"`
	InstLimit    int64  `toml:"inst_limit"`
	MaxFrames    int    `toml:"max_frames"`
}

type buildConfig struct {
	Output string `toml:"output"`
}

// findProjectToml walks up from startDir looking for oyc.toml.
func findProjectToml(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("resolving start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "oyc.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadProjectConfig loads and decodes startDir's nearest oyc.toml, if any.
// A missing file is not an error: it returns (nil, nil).
func loadProjectConfig(startDir string) (*projectConfig, error) {
	path, ok, err := findProjectToml(startDir)
	if err != nil || !ok {
		return nil, err
	}
	var cfg projectConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}
