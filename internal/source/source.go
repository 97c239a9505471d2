// Package source supplies ordered frame sequences to the inspection
// pipeline. The pipeline depends only on the FrameSource contract, so
// synthetic and file-backed sources are interchangeable.
package source

import (
	"fmt"
	"strings"

	"github.com/banshee-data/catenary.report/internal/wire"
)

// FrameSource is an ordered, finite-or-unbounded sequence of frames.
// Next returns io.EOF once the sequence is exhausted. Implementations
// are not required to be safe for concurrent use; the pipeline drives
// a source from a single goroutine.
type FrameSource interface {
	Open() error
	Next() (*wire.RawFrame, error)
	Close() error
}

// New builds a source from a spec string: "synthetic" (optionally
// "synthetic:N" for N frames) or a directory of image files.
func New(spec string, fps float64, frameSkip int) (FrameSource, error) {
	switch {
	case spec == "":
		return nil, fmt.Errorf("empty frame source spec")
	case spec == "synthetic":
		return NewSynthetic(DefaultSyntheticConfig()), nil
	case strings.HasPrefix(spec, "synthetic:"):
		cfg := DefaultSyntheticConfig()
		if _, err := fmt.Sscanf(spec, "synthetic:%d", &cfg.Frames); err != nil {
			return nil, fmt.Errorf("bad synthetic spec %q: %w", spec, err)
		}
		return NewSynthetic(cfg), nil
	default:
		return NewImageDir(spec, fps, frameSkip)
	}
}
