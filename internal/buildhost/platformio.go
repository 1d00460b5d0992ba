package buildhost

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-ini/ini"
	"github.com/spf13/afero"
)

// ProjectConfigName is the PlatformIO project file at the project root.
const ProjectConfigName = "platformio.ini"

const coreDirPlaceholder = "${platformio.core_dir}"

// ProjectOptions are the [platformio] section options that move package storage.
// CoreDir is only what the ini sets; PackagesDir is fully expanded.
type ProjectOptions struct {
	CoreDir     string
	PackagesDir string
	DefaultEnvs []string
}

// ReadProjectOptions parses <projectDir>/platformio.ini. A missing file is
// not an error: PlatformIO itself falls back to its defaults.
func ReadProjectOptions(fsys afero.Fs, projectDir string) (ProjectOptions, error) {
	path := filepath.Join(projectDir, ProjectConfigName)
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ProjectOptions{}, nil
		}
		return ProjectOptions{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		SpaceBeforeInlineComment:   true,
	}, data)
	if err != nil {
		return ProjectOptions{}, fmt.Errorf("parse %s: %w", path, err)
	}

	sec, err := cfg.GetSection("platformio")
	if err != nil {
		return ProjectOptions{}, nil
	}

	opts := ProjectOptions{
		CoreDir:     strings.TrimSpace(sec.Key("core_dir").String()),
		PackagesDir: strings.TrimSpace(sec.Key("packages_dir").String()),
	}
	for _, env := range strings.FieldsFunc(sec.Key("default_envs").String(), splitEnvs) {
		opts.DefaultEnvs = append(opts.DefaultEnvs, strings.TrimSpace(env))
	}

	if opts.CoreDir != "" {
		opts.CoreDir = expandPath(opts.CoreDir, projectDir, "")
	}
	if opts.PackagesDir != "" {
		coreDir := opts.CoreDir
		if coreDir == "" && strings.Contains(opts.PackagesDir, coreDirPlaceholder) {
			coreDir, err = DefaultCoreDir()
			if err != nil {
				return ProjectOptions{}, fmt.Errorf("expand %s in %s: %w", coreDirPlaceholder, path, err)
			}
		}
		opts.PackagesDir = expandPath(opts.PackagesDir, projectDir, coreDir)
	}
	return opts, nil
}

// DefaultCoreDir is the core dir PlatformIO uses when the project does not
// set one: $PLATFORMIO_CORE_DIR, else ~/.platformio.
func DefaultCoreDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvPlatformIOCoreDir)); v != "" {
		return filepath.Clean(expandHome(v)), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%s not set and no home dir: %w", EnvPlatformIOCoreDir, err)
	}
	return filepath.Join(home, defaultCoreDirName), nil
}

func splitEnvs(r rune) bool {
	return r == ',' || r == '\n' || r == ' ' || r == '\t'
}

// expandPath handles ${platformio.core_dir}, a leading ~ and project-relative
// paths, the same forms PlatformIO accepts in platformio.ini.
func expandPath(value, projectDir, coreDir string) string {
	if coreDir != "" {
		value = strings.ReplaceAll(value, coreDirPlaceholder, coreDir)
	}
	value = expandHome(value)
	if !filepath.IsAbs(value) {
		value = filepath.Join(projectDir, value)
	}
	return filepath.Clean(value)
}

func expandHome(value string) string {
	if value != "~" && !strings.HasPrefix(value, "~/") && !strings.HasPrefix(value, `~\`) {
		return value
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return value
	}
	return filepath.Join(home, value[1:])
}
