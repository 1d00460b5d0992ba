package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	burnt "github.com/BurntSushi/toml"
	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/variantctl/internal/logging"
)

// DefaultFileName is looked up in the project dir when no --config is given.
const DefaultFileName = "variantctl.toml"

// Settings holds the optional overrides a project can pin in variantctl.toml.
// Empty strings mean "not set"; host facts fill them in later.
type Settings struct {
	ProjectDir  string
	PackagesDir string
	DryRun      bool
	MetricsFile string
	LogLevel    string
}

type fileConfig struct {
	ProjectDir  string `toml:"project_dir"`
	PackagesDir string `toml:"packages_dir"`
	DryRun      bool   `toml:"dry_run"`
	MetricsFile string `toml:"metrics_file"`
	LogLevel    string `toml:"log_level"`
}

func Default() Settings {
	return Settings{}
}

// Load overlays the keys defined in path on top of Default.
func Load(path string) (Settings, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := burnt.DecodeFile(path, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("load variantctl config: %w", err)
	}

	if meta.IsDefined("project_dir") {
		cfg.ProjectDir = resolveRelative(path, raw.ProjectDir)
	}
	if meta.IsDefined("packages_dir") {
		cfg.PackagesDir = resolveRelative(path, raw.PackagesDir)
	}
	if meta.IsDefined("dry_run") {
		cfg.DryRun = raw.DryRun
	}
	if meta.IsDefined("metrics_file") {
		cfg.MetricsFile = resolveRelative(path, raw.MetricsFile)
	}
	if meta.IsDefined("log_level") {
		level := strings.TrimSpace(raw.LogLevel)
		if _, ok := logging.ParseLevel(level); !ok {
			return Settings{}, fmt.Errorf("parse log_level: unknown level %q", raw.LogLevel)
		}
		cfg.LogLevel = level
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Settings{}, fmt.Errorf("load variantctl config: unknown key %q", undecoded[0].String())
	}

	return cfg, nil
}

// LoadOptional is Load, except a missing file yields Default.
func LoadOptional(path string) (Settings, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// Validate decodes path strictly: unknown keys and bad values are errors.
func Validate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}

	var raw fileConfig
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config invalid (%s): %s", path, strict.String())
		}
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}

	if raw.LogLevel != "" {
		if _, ok := logging.ParseLevel(raw.LogLevel); !ok {
			return fmt.Errorf("config invalid (%s): unknown log_level %q", path, raw.LogLevel)
		}
	}
	if raw.MetricsFile != "" && strings.HasSuffix(raw.MetricsFile, string(filepath.Separator)) {
		return fmt.Errorf("config invalid (%s): metrics_file must name a file", path)
	}
	return nil
}

// resolveRelative expands a leading ~ and anchors relative paths at the
// config file's directory.
func resolveRelative(configPath, value string) string {
	value = strings.TrimSpace(value)
	if value == "~" || strings.HasPrefix(value, "~/") {
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			value = filepath.Join(home, value[1:])
		}
	}
	if value == "" || filepath.IsAbs(value) || strings.HasPrefix(value, "~") {
		return value
	}
	return filepath.Join(filepath.Dir(configPath), value)
}
