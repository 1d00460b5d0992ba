package mirror

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// MaxDepth bounds recursion below the source root.
const MaxDepth = 32

// Options tunes one mirror.
type Options struct {
	// DryRun reports the decisions without touching the destination.
	DryRun bool
	// Logger receives one debug event per file decision. Nil disables it.
	Logger *zerolog.Logger
}

// Report lists what a run did, as slash paths relative to the roots.
type Report struct {
	// DryRun is set when nothing was written.
	DryRun      bool
	Copied      []string
	Skipped     []string
	CreatedDirs []string
	BytesCopied int64
}

// Changed reports whether the run wrote (or in dry-run mode would write) anything.
func (r Report) Changed() bool {
	return len(r.Copied) > 0 || len(r.CreatedDirs) > 0
}

// Mirror copies a directory tree with an update-only policy: a destination
// file is written only when it is missing or strictly older than its source.
type Mirror struct {
	fs     afero.Fs
	dryRun bool
	log    zerolog.Logger
}

func New(fsys afero.Fs, opts Options) *Mirror {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Mirror{fs: fsys, dryRun: opts.DryRun, log: logger}
}

// Run mirrors source into destination. Source problems are detected before
// anything is written. A failure partway through leaves already copied files
// in place.
func (m *Mirror) Run(source, destination string) (Report, error) {
	report := Report{DryRun: m.dryRun}

	info, err := m.fs.Stat(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return report, fsError("stat", source, fmt.Errorf("%w: %w", ErrSourceMissing, err))
		}
		return report, fsError("stat", source, err)
	}
	if !info.IsDir() {
		return report, fsError("stat", source, ErrNotDirectory)
	}

	if err := m.walk(source, destination, ".", 0, &report); err != nil {
		return report, err
	}
	return report, nil
}

func (m *Mirror) walk(srcDir, dstDir, rel string, depth int, report *Report) error {
	if depth > MaxDepth {
		return fsError("walk", srcDir, ErrTooDeep)
	}

	entries, err := afero.ReadDir(m.fs, srcDir)
	if err != nil {
		return fsError("readdir", srcDir, err)
	}
	if err := m.ensureDir(dstDir, rel, report); err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(srcDir, entry.Name())
		dstPath := filepath.Join(dstDir, entry.Name())
		relPath := path.Join(rel, entry.Name())

		info := entry
		if entry.Mode()&os.ModeSymlink != 0 {
			info, err = m.fs.Stat(srcPath)
			if err != nil {
				return fsError("stat", srcPath, err)
			}
		}

		switch {
		case info.IsDir():
			if err := m.walk(srcPath, dstPath, relPath, depth+1, report); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if err := m.copyFile(srcPath, dstPath, relPath, info, report); err != nil {
				return err
			}
		default:
			return fsError("copy", srcPath, ErrNotRegularFile)
		}
	}
	return nil
}

func (m *Mirror) ensureDir(dir, rel string, report *Report) error {
	info, err := m.fs.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fsError("mkdir", dir, ErrNotDirectory)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fsError("stat", dir, err)
	}

	report.CreatedDirs = append(report.CreatedDirs, rel)
	m.log.Debug().Str("dir", rel).Bool("dry_run", m.dryRun).Msg("mirror mkdir")
	if m.dryRun {
		return nil
	}
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return fsError("mkdir", dir, err)
	}
	return nil
}

func (m *Mirror) copyFile(srcPath, dstPath, rel string, srcInfo os.FileInfo, report *Report) error {
	dstInfo, err := m.fs.Stat(dstPath)
	switch {
	case err == nil:
		if !dstInfo.Mode().IsRegular() {
			return fsError("copy", dstPath, ErrNotRegularFile)
		}
		if !srcInfo.ModTime().After(dstInfo.ModTime()) {
			report.Skipped = append(report.Skipped, rel)
			m.log.Debug().Str("file", rel).Msg("mirror skip (destination up to date)")
			return nil
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fsError("stat", dstPath, err)
	}

	m.log.Debug().Str("file", rel).Int64("bytes", srcInfo.Size()).Bool("dry_run", m.dryRun).Msg("mirror copy")
	if m.dryRun {
		report.Copied = append(report.Copied, rel)
		report.BytesCopied += srcInfo.Size()
		return nil
	}

	// Unlink first: an existing symlink must not be written through, and a
	// read-only destination must still be replaceable.
	if err := m.removeExisting(dstPath); err != nil {
		return err
	}
	n, err := m.writeFile(srcPath, dstPath, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}
	if err := m.fs.Chmod(dstPath, srcInfo.Mode().Perm()); err != nil {
		return fsError("chmod", dstPath, err)
	}
	// afero exposes no access time; both stamps take the source mtime.
	mtime := srcInfo.ModTime()
	if err := m.fs.Chtimes(dstPath, mtime, mtime); err != nil {
		return fsError("chtimes", dstPath, err)
	}

	report.Copied = append(report.Copied, rel)
	report.BytesCopied += n
	return nil
}

// removeExisting deletes whatever sits at path, including a dangling symlink.
func (m *Mirror) removeExisting(path string) error {
	var err error
	if lst, ok := m.fs.(afero.Lstater); ok {
		_, _, err = lst.LstatIfPossible(path)
	} else {
		_, err = m.fs.Stat(path)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fsError("stat", path, err)
	}
	if err := m.fs.Remove(path); err != nil {
		return fsError("remove", path, err)
	}
	return nil
}

func (m *Mirror) writeFile(srcPath, dstPath string, perm os.FileMode) (int64, error) {
	in, err := m.fs.Open(srcPath)
	if err != nil {
		return 0, fsError("open", srcPath, err)
	}
	defer in.Close()

	out, err := m.fs.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return 0, fsError("create", dstPath, err)
	}
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, fsError("write", dstPath, err)
	}
	if err := out.Close(); err != nil {
		return n, fsError("close", dstPath, err)
	}
	return n, nil
}
