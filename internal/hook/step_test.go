package hook

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/variantctl/internal/buildhost"
	"github.com/danmuck/variantctl/internal/mirror"
	"github.com/danmuck/variantctl/internal/testutil/testlog"
	"github.com/danmuck/variantctl/internal/variant"
)

type stubHost struct {
	target   bool
	paths    variant.Paths
	err      error
	resolved int
}

func (h *stubHost) IsTargetBuild() bool { return h.target }

func (h *stubHost) ResolvePaths() (variant.Paths, error) {
	h.resolved++
	return h.paths, h.err
}

type recordingMirror struct {
	calls  int
	dryRun bool
}

func (m *recordingMirror) Run(source, destination string) (mirror.Report, error) {
	m.calls++
	return mirror.Report{DryRun: m.dryRun}, nil
}

func TestRunSkipsWhenNotTargetBuild(t *testing.T) {
	testlog.Start(t)
	host := &stubHost{target: false}
	m := &recordingMirror{}
	var out bytes.Buffer

	res, err := Step{Host: host, Mirror: m, Out: &out, Log: testlog.Logger()}.Run()
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, host.resolved)
	assert.Zero(t, m.calls)
	assert.Empty(t, out.String())
}

func TestRunGatedStepWritesNothing(t *testing.T) {
	testlog.Start(t)
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/proj/buildroot/share/PlatformIO/variants/MARLIN_F4x7Vx/variant.h", []byte("x"), 0o644))
	host := buildhost.New(buildhost.Facts{
		ProjectDir:  "/proj",
		PackagesDir: "/pkgs",
		Targets:     []string{"idedata"},
	}, variant.DefaultLayout(), fsys, testlog.Logger())

	res, err := Step{Host: host, Mirror: mirror.New(fsys, mirror.Options{})}.Run()
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	exists, err := afero.Exists(fsys, "/pkgs")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunMirrorsVariantAndPrintsBreadcrumb(t *testing.T) {
	testlog.Start(t)
	fsys := afero.NewMemMapFs()
	src := "/proj/buildroot/share/PlatformIO/variants/MARLIN_F4x7Vx"
	require.NoError(t, afero.WriteFile(fsys, filepath.Join(src, "variant.h"), []byte("#pragma once\n"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, filepath.Join(src, "ldscript.ld"), []byte("MEMORY {}\n"), 0o644))

	host := buildhost.New(buildhost.Facts{ProjectDir: "/proj", PackagesDir: "/pkgs"}, variant.DefaultLayout(), fsys, nil)
	var out bytes.Buffer
	res, err := Step{
		Host:   host,
		Mirror: mirror.New(fsys, mirror.Options{Logger: testlog.Logger()}),
		Out:    &out,
		Log:    testlog.Logger(),
	}.Run()
	require.NoError(t, err)

	dst := "/pkgs/framework-arduinoststm32/variants/MARLIN_F4x7Vx"
	assert.False(t, res.Skipped)
	assert.Equal(t, dst, res.Paths.Destination)
	assert.ElementsMatch(t, []string{"ldscript.ld", "variant.h"}, res.Report.Copied)

	data, err := afero.ReadFile(fsys, filepath.Join(dst, "variant.h"))
	require.NoError(t, err)
	assert.Equal(t, "#pragma once\n", string(data))

	line := out.String()
	assert.True(t, strings.HasPrefix(line, "variantctl: mirrored '"+src+"' to '"+dst+"'"), "breadcrumb: %q", line)
	assert.Contains(t, line, "copied=2 skipped=0")
}

func TestRunPropagatesMissingSource(t *testing.T) {
	testlog.Start(t)
	fsys := afero.NewMemMapFs()
	host := buildhost.New(buildhost.Facts{ProjectDir: "/proj", PackagesDir: "/pkgs"}, variant.DefaultLayout(), fsys, nil)
	var out bytes.Buffer

	_, err := Step{Host: host, Mirror: mirror.New(fsys, mirror.Options{}), Out: &out}.Run()
	require.Error(t, err)

	var fsErr *mirror.FileSystemError
	assert.True(t, errors.As(err, &fsErr))
	assert.True(t, errors.Is(err, mirror.ErrSourceMissing))
	assert.Empty(t, out.String())
}

func TestRunResolveError(t *testing.T) {
	testlog.Start(t)
	host := &stubHost{target: true, err: errors.New("no packages dir")}
	m := &recordingMirror{}

	_, err := Step{Host: host, Mirror: m}.Run()
	require.Error(t, err)
	assert.Zero(t, m.calls)
}

func TestRunDryRunBreadcrumb(t *testing.T) {
	testlog.Start(t)
	host := &stubHost{target: true, paths: variant.Paths{Source: "/s", Destination: "/d"}}
	var out bytes.Buffer

	res, err := Step{Host: host, Mirror: &recordingMirror{dryRun: true}, Out: &out}.Run()
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, "variantctl: would mirror '/s' to '/d' (copied=0 skipped=0)\n", out.String())
}

func TestRunBreadcrumbFollowsMirrorMode(t *testing.T) {
	testlog.Start(t)
	src := "/proj/buildroot/share/PlatformIO/variants/MARLIN_F4x7Vx"
	dst := "/pkgs/framework-arduinoststm32/variants/MARLIN_F4x7Vx"

	for _, dryRun := range []bool{true, false} {
		fsys := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fsys, filepath.Join(src, "variant.h"), []byte("x"), 0o644))
		host := buildhost.New(buildhost.Facts{ProjectDir: "/proj", PackagesDir: "/pkgs"}, variant.DefaultLayout(), fsys, nil)
		var out bytes.Buffer

		res, err := Step{Host: host, Mirror: mirror.New(fsys, mirror.Options{DryRun: dryRun}), Out: &out}.Run()
		require.NoError(t, err)
		assert.Equal(t, dryRun, res.DryRun)

		written, err := afero.Exists(fsys, filepath.Join(dst, "variant.h"))
		require.NoError(t, err)
		assert.Equal(t, !dryRun, written, "dry_run=%v", dryRun)
		if dryRun {
			assert.True(t, strings.HasPrefix(out.String(), "variantctl: would mirror "), "breadcrumb: %q", out.String())
		} else {
			assert.True(t, strings.HasPrefix(out.String(), "variantctl: mirrored "), "breadcrumb: %q", out.String())
		}
	}
}
