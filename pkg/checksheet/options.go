// Package checksheet renders hierarchical checklist documents into xlsx
// workbooks and keeps user-entered values across re-renders.
package checksheet

import (
	"io"
	"log/slog"
	"runtime"

	"github.com/ukaji3/checksheet-go/pkg/checksheet/layout"
)

// Mode represents the regeneration mode.
type Mode string

const (
	// ModeIncremental regenerates only sheets whose content or images changed.
	ModeIncremental Mode = "incremental"
	// ModeFull regenerates every sheet.
	ModeFull Mode = "full"
)

// Options configures rendering behavior.
type Options struct {
	// Mode specifies the regeneration mode (incremental, full).
	Mode Mode
	// IndexSheet names the index sheet. Empty disables it.
	IndexSheet string
	// Filler replaces repeated ancestor labels. Empty leaves them blank.
	Filler string
	// ImageDir resolves relative image references.
	ImageDir string
	// ImageScale scales pictures placed on sheets.
	ImageScale float64
	// Concurrency bounds the parallel hash computation.
	Concurrency int
	// Prune specifies whether sheets of removed nodes are deleted.
	// If nil, defaults to true.
	Prune *bool
	// Formatter optionally rewrites labels and initial values.
	Formatter layout.Formatter
	// Logger receives progress messages. If nil, logging is discarded.
	Logger *slog.Logger
}

// DefaultOptions returns default render options.
func DefaultOptions() Options {
	return Options{
		Mode:        ModeIncremental,
		IndexSheet:  "Index",
		ImageScale:  1,
		Concurrency: runtime.NumCPU(),
	}
}

// ShouldPrune returns whether sheets of removed nodes are deleted.
func (o Options) ShouldPrune() bool {
	if o.Prune != nil {
		return *o.Prune
	}
	return true
}

// ShouldRegenerateAll returns whether unchanged sheets are rebuilt too.
func (o Options) ShouldRegenerateAll() bool {
	return o.Mode == ModeFull
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
