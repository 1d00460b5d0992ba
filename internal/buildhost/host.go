package buildhost

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/danmuck/variantctl/internal/variant"
)

// Environment variables PlatformIO exports to build steps.
const (
	EnvProjectDir         = "PROJECT_DIR"
	EnvProjectPackagesDir = "PROJECT_PACKAGES_DIR"
	EnvPIOEnv             = "PIOENV"
	EnvPlatformIOProject  = "PLATFORMIO_PROJECT_DIR"
	EnvPlatformIOPackages = "PLATFORMIO_PACKAGES_DIR"
	EnvPlatformIOCoreDir  = "PLATFORMIO_CORE_DIR"
)

const (
	defaultCoreDirName   = ".platformio"
	packagesSubdirOfCore = "packages"
)

// integrationDumpTargets are the targets IDEs use to collect build metadata
// without compiling anything.
var integrationDumpTargets = map[string]struct{}{
	"idedata":   {},
	"_idedata":  {},
	"__idedata": {},
}

// Host is the build tool as seen by the hook step.
type Host interface {
	IsTargetBuild() bool
	ResolvePaths() (variant.Paths, error)
}

// Facts are the raw inputs a PlatformIO invocation provides.
type Facts struct {
	ProjectDir  string
	PackagesDir string
	PIOEnv      string
	Targets     []string
	// Force skips the integration-dump check.
	Force bool
}

// EnvFacts reads facts from the process environment.
func EnvFacts() Facts {
	return Facts{
		ProjectDir:  firstNonEmpty(os.Getenv(EnvProjectDir), os.Getenv(EnvPlatformIOProject)),
		PackagesDir: firstNonEmpty(os.Getenv(EnvProjectPackagesDir), os.Getenv(EnvPlatformIOPackages)),
		PIOEnv:      strings.TrimSpace(os.Getenv(EnvPIOEnv)),
	}
}

// Overlay returns f with every non-empty field of o taking precedence.
func (f Facts) Overlay(o Facts) Facts {
	out := f
	if v := strings.TrimSpace(o.ProjectDir); v != "" {
		out.ProjectDir = v
	}
	if v := strings.TrimSpace(o.PackagesDir); v != "" {
		out.PackagesDir = v
	}
	if v := strings.TrimSpace(o.PIOEnv); v != "" {
		out.PIOEnv = v
	}
	if len(o.Targets) > 0 {
		out.Targets = append([]string(nil), o.Targets...)
	}
	out.Force = f.Force || o.Force
	return out
}

// PlatformIO is the default Host: facts plus the project's platformio.ini.
type PlatformIO struct {
	facts  Facts
	layout variant.Layout
	fs     afero.Fs
	log    zerolog.Logger
}

func New(facts Facts, layout variant.Layout, fsys afero.Fs, logger *zerolog.Logger) *PlatformIO {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &PlatformIO{facts: facts, layout: layout, fs: fsys, log: l}
}

// IsTargetBuild reports a real build: a known project and no IDE
// integration dump target on the command line.
func (p *PlatformIO) IsTargetBuild() bool {
	if strings.TrimSpace(p.facts.ProjectDir) == "" {
		p.log.Debug().Msg("no project dir; not a platformio build")
		return false
	}
	if p.facts.Force {
		return true
	}
	for _, target := range p.facts.Targets {
		if _, ok := integrationDumpTargets[strings.TrimSpace(target)]; ok {
			p.log.Debug().Str("target", target).Msg("integration dump; skipping")
			return false
		}
	}
	return true
}

// ResolvePaths builds the variant source/destination pair.
func (p *PlatformIO) ResolvePaths() (variant.Paths, error) {
	projectDir := strings.TrimSpace(p.facts.ProjectDir)
	if projectDir == "" {
		return variant.Paths{}, fmt.Errorf("resolve paths: %s not set", EnvProjectDir)
	}
	projectDir = expandHome(projectDir)
	if abs, err := filepath.Abs(projectDir); err == nil {
		projectDir = abs
	}

	packagesDir, err := p.packagesDir(projectDir)
	if err != nil {
		return variant.Paths{}, err
	}

	paths, err := p.layout.Resolve(projectDir, packagesDir)
	if err != nil {
		return variant.Paths{}, fmt.Errorf("resolve paths: %w", err)
	}
	p.log.Debug().
		Str("env", p.facts.PIOEnv).
		Str("source", paths.Source).
		Str("destination", paths.Destination).
		Msg("resolved variant paths")
	return paths, nil
}

func (p *PlatformIO) packagesDir(projectDir string) (string, error) {
	if v := strings.TrimSpace(p.facts.PackagesDir); v != "" {
		return expandPath(v, projectDir, ""), nil
	}

	opts, err := ReadProjectOptions(p.fs, projectDir)
	if err != nil {
		return "", fmt.Errorf("resolve paths: %w", err)
	}
	if opts.PackagesDir != "" {
		return opts.PackagesDir, nil
	}

	coreDir := opts.CoreDir
	if coreDir == "" {
		coreDir, err = DefaultCoreDir()
		if err != nil {
			return "", fmt.Errorf("resolve paths: %s not set: %w", EnvProjectPackagesDir, err)
		}
	}
	return filepath.Join(coreDir, packagesSubdirOfCore), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
