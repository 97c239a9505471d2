package calib

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/catenary.report/internal/monitoring"
)

// Descriptor is the on-disk calibration file. Pointer fields distinguish
// "absent" from zero so partial descriptors fall back cleanly.
type Descriptor struct {
	PxPerMm        *float64        `json:"px_per_mm,omitempty"`
	TrackCentreXPx *float64        `json:"track_centre_x_px,omitempty"`
	ImageWidthPx   *int            `json:"image_width_px,omitempty"`
	ImageHeightPx  *int            `json:"image_height_px,omitempty"`
	Distortion     *DistortionSpec `json:"distortion,omitempty"`
}

// DistortionSpec declares lens correction. When UseUndistort is true
// every coefficient must be present; a partially specified block is a
// fatal configuration error, not a fallback.
type DistortionSpec struct {
	UseUndistort bool     `json:"use_undistort"`
	Fx           *float64 `json:"fx,omitempty"`
	Fy           *float64 `json:"fy,omitempty"`
	Cx           *float64 `json:"cx,omitempty"`
	Cy           *float64 `json:"cy,omitempty"`
	K1           *float64 `json:"k1,omitempty"`
	K2           *float64 `json:"k2,omitempty"`
	P1           *float64 `json:"p1,omitempty"`
	P2           *float64 `json:"p2,omitempty"`
	K3           *float64 `json:"k3,omitempty"`
}

// Fallback supplies defaults used when the descriptor file is missing
// or leaves scale/geometry fields unset. The track centre defaults to
// the frame centre.
type Fallback struct {
	PxPerMm       float64
	ImageWidthPx  int
	ImageHeightPx int
}

// LoadFile reads a calibration descriptor and builds a Model.
//
// A missing file is a recoverable default, not an error: the fallback
// scale is used with a frame-centre track centre. A descriptor that
// declares distortion enabled but omits coefficients fails.
func LoadFile(path string, fb Fallback) (*Model, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		monitoring.Logf("calib: descriptor %s not found, using fallback %.2f px/mm", path, fb.PxPerMm)
		return New(fb.PxPerMm, float64(fb.ImageWidthPx)/2, fb.ImageWidthPx, fb.ImageHeightPx, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("read calibration descriptor: %w", err)
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidCalibration, path, err)
	}
	return d.Build(fb)
}

// Build constructs a Model from the descriptor, applying fallback
// defaults for any absent scale/geometry fields.
func (d *Descriptor) Build(fb Fallback) (*Model, error) {
	pxPerMm := fb.PxPerMm
	if d.PxPerMm != nil {
		pxPerMm = *d.PxPerMm
	}
	width := fb.ImageWidthPx
	if d.ImageWidthPx != nil {
		width = *d.ImageWidthPx
	}
	height := fb.ImageHeightPx
	if d.ImageHeightPx != nil {
		height = *d.ImageHeightPx
	}
	centre := float64(width) / 2
	if d.TrackCentreXPx != nil {
		centre = *d.TrackCentreXPx
	}

	var intr *Intrinsics
	if d.Distortion != nil && d.Distortion.UseUndistort {
		var err error
		intr, err = d.Distortion.intrinsics()
		if err != nil {
			return nil, err
		}
	}
	m, err := New(pxPerMm, centre, width, height, intr)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("calib: loaded %.2f px/mm, centre_x=%.1f, undistort=%v", pxPerMm, centre, m.Undistorts())
	return m, nil
}

func (s *DistortionSpec) intrinsics() (*Intrinsics, error) {
	fields := map[string]*float64{
		"fx": s.Fx, "fy": s.Fy, "cx": s.Cx, "cy": s.Cy,
		"k1": s.K1, "k2": s.K2, "p1": s.P1, "p2": s.P2, "k3": s.K3,
	}
	for name, v := range fields {
		if v == nil {
			return nil, fmt.Errorf("%w: distortion enabled but %q missing", ErrInvalidCalibration, name)
		}
	}
	return &Intrinsics{
		Fx: *s.Fx, Fy: *s.Fy, Cx: *s.Cx, Cy: *s.Cy,
		K1: *s.K1, K2: *s.K2, P1: *s.P1, P2: *s.P2, K3: *s.K3,
	}, nil
}

// SaveFile writes the model's descriptor back to disk. Distortion
// coefficients are not round-tripped; only the enabled flag survives.
func (m *Model) SaveFile(path string) error {
	d := Descriptor{
		PxPerMm:        &m.PxPerMm,
		TrackCentreXPx: &m.TrackCentreXPx,
		ImageWidthPx:   &m.ImageWidthPx,
		ImageHeightPx:  &m.ImageHeightPx,
	}
	if m.Undistorts() {
		d.Distortion = &DistortionSpec{UseUndistort: true}
	}
	data, err := json.MarshalIndent(&d, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write calibration descriptor: %w", err)
	}
	return nil
}
