package source

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/catenary.report/internal/monitoring"
	"github.com/banshee-data/catenary.report/internal/wire"
)

// ImageDirSource walks an ordered directory of still frames, the
// usual capture format for inspection runs. Timestamps are synthesised
// from the configured frame rate.
type ImageDirSource struct {
	dir       string
	fps       float64
	frameSkip int

	files   []string
	pos     int
	frameID int64
}

// NewImageDir builds a source over dir. fps defaults to 25 when zero
// or negative; frameSkip of N keeps every Nth file (minimum 1).
func NewImageDir(dir string, fps float64, frameSkip int) (*ImageDirSource, error) {
	if fps <= 0 {
		fps = 25
	}
	if frameSkip < 1 {
		frameSkip = 1
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("frame directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("frame source %q is not a directory", dir)
	}
	return &ImageDirSource{dir: dir, fps: fps, frameSkip: frameSkip}, nil
}

// Open scans the directory for image files in lexical order.
func (s *ImageDirSource) Open() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read frame directory: %w", err)
	}
	s.files = s.files[:0]
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			s.files = append(s.files, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(s.files)
	if len(s.files) == 0 {
		return fmt.Errorf("no image files in %s", s.dir)
	}
	monitoring.Logf("source: %d frame files in %s", len(s.files), s.dir)
	s.pos = 0
	s.frameID = 0
	return nil
}

// Next decodes and returns the next frame, or io.EOF at the end of the
// sequence. A file that fails to decode is skipped with a log line;
// one corrupt frame must not end the session.
func (s *ImageDirSource) Next() (*wire.RawFrame, error) {
	for s.pos < len(s.files) {
		path := s.files[s.pos]
		s.pos += s.frameSkip

		f, err := os.Open(path)
		if err != nil {
			monitoring.Logf("source: skipping %s: %v", path, err)
			continue
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			monitoring.Logf("source: skipping undecodable %s: %v", path, err)
			continue
		}

		frame := &wire.RawFrame{
			FrameID:     s.frameID,
			TimestampMs: float64(s.frameID) * 1000 / s.fps * float64(s.frameSkip),
			Image:       img,
			Source:      path,
		}
		s.frameID++
		return frame, nil
	}
	return nil, io.EOF
}

// Close releases nothing for a directory source but completes the
// contract.
func (s *ImageDirSource) Close() error { return nil }
