// Package engineconfig loads the engine's tunables (checkpoint retention
// depth, extent reserve capacity, manifest directory) from layered JSONC
// config files, the way the reference implementation's root config.go
// loads tk's config: defaults, overridden by a global user config, then a
// project config (the caller may adjust the returned Config afterwards),
// with github.com/tailscale/hujson
// standardizing comments/trailing-commas to strict JSON before
// encoding/json takes over.
package engineconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds the engine's tunable, restart-time settings.
type Config struct {
	// CheckpointCount is the number of most recent checkpoints the GC
	// coordinator retains (checkpoint_count in spec.md §4.4).
	CheckpointCount int `json:"checkpoint_count,omitempty"` //nolint:tagliatelle
	// ExtentReserveCapacity is the capacity of an [ExtentReserve]: the most
	// extents one reservation may hold. Each successful reservation refills
	// the reserve to this capacity, so it does not bound the total handed out.
	ExtentReserveCapacity int `json:"extent_reserve_capacity,omitempty"` //nolint:tagliatelle
	// ManifestDir is where internal/gcio persists the GC manifest.
	ManifestDir string `json:"manifest_dir,omitempty"` //nolint:tagliatelle
}

const ConfigFileName = ".memtx.json"

var (
	errConfigFileNotFound = errors.New("engineconfig: config file not found")
	errConfigFileRead     = errors.New("engineconfig: failed to read config file")
	errConfigInvalid      = errors.New("engineconfig: invalid config")
	errCheckpointCount    = errors.New("engineconfig: checkpoint_count must be >= 1")
	errExtentReserveCap   = errors.New("engineconfig: extent_reserve_capacity must be >= 1")
)

// DefaultConfig returns the configuration used when no config file is
// present and no override applies.
func DefaultConfig() Config {
	return Config{
		CheckpointCount:       2,
		ExtentReserveCapacity: 1 << 20,
		ManifestDir:           ".memtx",
	}
}

// Sources records which config files, if any, contributed to a loaded
// Config, for diagnostics.
type Sources struct {
	Global  string
	Project string
}

// Load resolves a Config with the following precedence (highest wins):
//  1. [DefaultConfig]
//  2. the global user config ($XDG_CONFIG_HOME/memtx/config.json, or
//     ~/.config/memtx/config.json)
//  3. the project config at workDir/.memtx.json, or an explicit path
//
// Load applies no command-line overrides itself; a caller that has any sets
// them on the returned Config.
func Load(workDir, explicitPath string) (Config, Sources, error) {
	cfg := DefaultConfig()

	var sources Sources

	globalCfg, globalPath, err := loadGlobalConfig()
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Global = globalPath
	cfg = mergeConfig(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(workDir, explicitPath)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)

	if err := validateConfig(cfg); err != nil {
		return Config{}, Sources{}, err
	}

	return cfg, sources, nil
}

func globalConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "memtx", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "memtx", "config.json")
}

func loadGlobalConfig() (Config, string, error) {
	path := globalConfigPath()
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadConfigFile(path, false)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, path, nil
}

func loadProjectConfig(workDir, explicitPath string) (Config, string, error) {
	path := filepath.Join(workDir, ConfigFileName)
	mustExist := false

	if explicitPath != "" {
		path = explicitPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		mustExist = true

		if _, err := os.Stat(path); err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", errConfigFileNotFound, explicitPath)
		}
	}

	cfg, loaded, err := loadConfigFile(path, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, path, nil
}

func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s", errConfigFileRead, path)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

// mergeConfig overlays override onto base, field by field, for every
// field override sets to a non-zero value.
func mergeConfig(base, override Config) Config {
	if override.CheckpointCount != 0 {
		base.CheckpointCount = override.CheckpointCount
	}

	if override.ExtentReserveCapacity != 0 {
		base.ExtentReserveCapacity = override.ExtentReserveCapacity
	}

	if override.ManifestDir != "" {
		base.ManifestDir = override.ManifestDir
	}

	return base
}

func validateConfig(cfg Config) error {
	if cfg.CheckpointCount < 1 {
		return fmt.Errorf("%w: got %d", errCheckpointCount, cfg.CheckpointCount)
	}

	if cfg.ExtentReserveCapacity < 1 {
		return fmt.Errorf("%w: got %d", errExtentReserveCap, cfg.ExtentReserveCapacity)
	}

	return nil
}
