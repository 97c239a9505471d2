package calib

import (
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultModel(t *testing.T) *Model {
	t.Helper()
	m, err := New(10.0, 400, 800, 200, nil)
	require.NoError(t, err)
	return m
}

func TestNewRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name           string
		pxPerMm        float64
		width, height  int
	}{
		{"zero scale", 0, 800, 200},
		{"negative scale", -3, 800, 200},
		{"zero width", 10, 0, 200},
		{"negative height", 10, 800, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.pxPerMm, 400, tc.width, tc.height, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCalibration)
		})
	}
}

func TestPxMmRoundTrip(t *testing.T) {
	m := defaultModel(t)

	for _, px := range []float64{0, 1, 37.5, 800, -12} {
		assert.InDelta(t, px, m.MmToPx(m.PxToMm(px)), 1e-9)
	}
	assert.InDelta(t, 5.0, m.PxToMm(50), 1e-9)
	assert.InDelta(t, 50.0, m.MmToPx(5), 1e-9)
}

func TestStaggerSignConvention(t *testing.T) {
	m, err := New(10.0, 500, 1000, 200, nil)
	require.NoError(t, err)

	// Right of centre is positive, left is negative.
	assert.InDelta(t, 10.0, m.StaggerFromCentrePx(600), 1e-9)
	assert.InDelta(t, -10.0, m.StaggerFromCentrePx(400), 1e-9)
	assert.InDelta(t, 0.0, m.StaggerFromCentrePx(500), 1e-9)
}

func TestLoadFileMissingUsesFallback(t *testing.T) {
	m, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"), Fallback{
		PxPerMm:       10.0,
		ImageWidthPx:  800,
		ImageHeightPx: 200,
	})
	require.NoError(t, err)

	assert.InDelta(t, 10.0, m.PxPerMm, 1e-9)
	assert.InDelta(t, 400.0, m.TrackCentreXPx, 1e-9)
	assert.False(t, m.Undistorts())
}

func TestLoadFileReadsDescriptor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"px_per_mm": 8.5,
		"track_centre_x_px": 512,
		"image_width_px": 1024,
		"image_height_px": 768
	}`), 0o644))

	m, err := LoadFile(path, Fallback{PxPerMm: 10, ImageWidthPx: 800, ImageHeightPx: 200})
	require.NoError(t, err)

	assert.InDelta(t, 8.5, m.PxPerMm, 1e-9)
	assert.InDelta(t, 512.0, m.TrackCentreXPx, 1e-9)
	assert.Equal(t, 1024, m.ImageWidthPx)
}

func TestLoadFileMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadFile(path, Fallback{PxPerMm: 10, ImageWidthPx: 800, ImageHeightPx: 200})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCalibration)
}

func TestIncompleteDistortionIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"px_per_mm": 10,
		"image_width_px": 800,
		"image_height_px": 200,
		"distortion": {"use_undistort": true, "fx": 900.0, "fy": 900.0}
	}`), 0o644))

	_, err := LoadFile(path, Fallback{PxPerMm: 10, ImageWidthPx: 800, ImageHeightPx: 200})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCalibration)
}

func TestDisabledDistortionIgnoresCoefficients(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"px_per_mm": 10,
		"image_width_px": 800,
		"image_height_px": 200,
		"distortion": {"use_undistort": false}
	}`), 0o644))

	m, err := LoadFile(path, Fallback{PxPerMm: 10, ImageWidthPx: 800, ImageHeightPx: 200})
	require.NoError(t, err)
	assert.False(t, m.Undistorts())
}

func TestSaveFileRoundTrip(t *testing.T) {
	src, err := New(12.5, 640, 1280, 720, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "calibration.json")
	require.NoError(t, src.SaveFile(path))

	m, err := LoadFile(path, Fallback{PxPerMm: 1, ImageWidthPx: 1, ImageHeightPx: 1})
	require.NoError(t, err)
	assert.InDelta(t, 12.5, m.PxPerMm, 1e-9)
	assert.InDelta(t, 640.0, m.TrackCentreXPx, 1e-9)
	assert.Equal(t, 1280, m.ImageWidthPx)
	assert.Equal(t, 720, m.ImageHeightPx)

	// The on-disk descriptor carries exactly the model fields.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Descriptor
	require.NoError(t, json.Unmarshal(data, &got))

	pxPerMm, centre := 12.5, 640.0
	w, h := 1280, 720
	want := Descriptor{
		PxPerMm:        &pxPerMm,
		TrackCentreXPx: &centre,
		ImageWidthPx:   &w,
		ImageHeightPx:  &h,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestUndistortIdentityMapping(t *testing.T) {
	// Zero distortion coefficients give an identity remap, so pixel
	// values must survive unchanged away from the border.
	m, err := New(10.0, 100, 200, 100, &Intrinsics{
		Fx: 200, Fy: 200, Cx: 100, Cy: 50,
	})
	require.NoError(t, err)
	require.True(t, m.Undistorts())

	img := image.NewGray(image.Rect(0, 0, 200, 100))
	for y := 40; y < 60; y++ {
		for x := 0; x < 200; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	out := m.Undistort(img)
	require.Equal(t, img.Bounds(), out.Bounds())
	assert.Equal(t, uint8(255), out.GrayAt(100, 50).Y)
	assert.Equal(t, uint8(0), out.GrayAt(100, 10).Y)
}
