package variant

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// MarlinF4x7Vx is the board variant mirrored into the STM32 framework.
	MarlinF4x7Vx = "MARLIN_F4x7Vx"

	// ArduinoSTM32Package is the PlatformIO package directory of the Arduino core for STM32.
	ArduinoSTM32Package = "framework-arduinoststm32"
)

// Paths is a resolved source/destination pair for one variant.
type Paths struct {
	Source      string
	Destination string
}

// Layout describes where a variant lives in the project and where the
// framework expects to find it. Paths are built from segments, never
// from interpolated strings.
type Layout struct {
	Name             string
	SourceSegments   []string
	FrameworkPackage string
}

// DefaultLayout returns the fixed MARLIN_F4x7Vx layout.
func DefaultLayout() Layout {
	return Layout{
		Name:             MarlinF4x7Vx,
		SourceSegments:   []string{"buildroot", "share", "PlatformIO", "variants"},
		FrameworkPackage: ArduinoSTM32Package,
	}
}

// Source returns <projectDir>/<SourceSegments...>/<Name>.
func (l Layout) Source(projectDir string) string {
	parts := make([]string, 0, len(l.SourceSegments)+2)
	parts = append(parts, projectDir)
	parts = append(parts, l.SourceSegments...)
	parts = append(parts, l.Name)
	return filepath.Join(parts...)
}

// Destination returns <packagesDir>/<FrameworkPackage>/variants/<Name>.
func (l Layout) Destination(packagesDir string) string {
	return filepath.Join(packagesDir, l.FrameworkPackage, "variants", l.Name)
}

// Resolve validates both roots and builds the path pair.
func (l Layout) Resolve(projectDir, packagesDir string) (Paths, error) {
	if err := l.Validate(); err != nil {
		return Paths{}, err
	}
	if strings.TrimSpace(projectDir) == "" {
		return Paths{}, fmt.Errorf("variant %s: missing project dir", l.Name)
	}
	if strings.TrimSpace(packagesDir) == "" {
		return Paths{}, fmt.Errorf("variant %s: missing packages dir", l.Name)
	}
	return Paths{
		Source:      l.Source(projectDir),
		Destination: l.Destination(packagesDir),
	}, nil
}

func (l Layout) Validate() error {
	if !isPlainSegment(l.Name) {
		return fmt.Errorf("variant name invalid: %q", l.Name)
	}
	if !isPlainSegment(l.FrameworkPackage) {
		return fmt.Errorf("variant %s: framework package invalid: %q", l.Name, l.FrameworkPackage)
	}
	for i, seg := range l.SourceSegments {
		if !isPlainSegment(seg) {
			return fmt.Errorf("variant %s: source segment[%d] invalid: %q", l.Name, i, seg)
		}
	}
	return nil
}

// isPlainSegment rejects empty, dot and separator-bearing segments.
func isPlainSegment(seg string) bool {
	seg = strings.TrimSpace(seg)
	if seg == "" || seg == "." || seg == ".." {
		return false
	}
	return !strings.ContainsAny(seg, `/\`)
}
