package hook

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/variantctl/internal/buildhost"
	"github.com/danmuck/variantctl/internal/mirror"
	"github.com/danmuck/variantctl/internal/variant"
)

// Mirrorer copies one directory tree onto another.
type Mirrorer interface {
	Run(source, destination string) (mirror.Report, error)
}

// Result describes one step invocation. DryRun mirrors the Mirrorer's report.
type Result struct {
	Skipped  bool
	DryRun   bool
	Paths    variant.Paths
	Report   mirror.Report
	Duration time.Duration
}

// Step is the build hook: gate on the host, then mirror the variant.
type Step struct {
	Host   buildhost.Host
	Mirror Mirrorer
	// Out receives the completion breadcrumb.
	Out io.Writer
	Log *zerolog.Logger
	Now func() time.Time
}

// Run performs no filesystem action when the host is not running a target
// build. Mirror errors propagate unchanged so the host fails the step.
func (s Step) Run() (Result, error) {
	log := zerolog.Nop()
	if s.Log != nil {
		log = *s.Log
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}

	if !s.Host.IsTargetBuild() {
		log.Info().Msg("not a platformio build; variant sync skipped")
		return Result{Skipped: true}, nil
	}

	paths, err := s.Host.ResolvePaths()
	if err != nil {
		return Result{}, err
	}

	start := now()
	report, err := s.Mirror.Run(paths.Source, paths.Destination)
	res := Result{
		DryRun:   report.DryRun,
		Paths:    paths,
		Report:   report,
		Duration: now().Sub(start),
	}
	if err != nil {
		log.Error().Err(err).
			Str("source", paths.Source).
			Str("destination", paths.Destination).
			Int("copied", len(report.Copied)).
			Msg("variant sync failed")
		return res, fmt.Errorf("mirror variant: %w", err)
	}

	log.Info().
		Str("source", paths.Source).
		Str("destination", paths.Destination).
		Int("copied", len(report.Copied)).
		Int("skipped", len(report.Skipped)).
		Int64("bytes", report.BytesCopied).
		Dur("took", res.Duration).
		Msg("variant sync done")

	if s.Out != nil {
		verb := "mirrored"
		if report.DryRun {
			verb = "would mirror"
		}
		fmt.Fprintf(s.Out, "variantctl: %s '%s' to '%s' (copied=%d skipped=%d)\n",
			verb, paths.Source, paths.Destination, len(report.Copied), len(report.Skipped))
	}
	return res, nil
}
