package wire

import (
	"image"
	"sync"

	"github.com/banshee-data/catenary.report/internal/calib"
)

// PreProcessorConfig contains the frame normalisation parameters.
type PreProcessorConfig struct {
	// ROI restricts analysis to a sub-window of the frame. Nil means
	// the full frame. Out-of-range values are clamped, never rejected.
	ROI *image.Rectangle

	// Local contrast enhancement parameters.
	CLAHEClipLimit float64
	CLAHETilesX    int
	CLAHETilesY    int

	// Noise-reduction blur kernel size. Must be odd; oddness is
	// validated by the configuration layer before it reaches here.
	BlurKernelSize int
}

// PreProcessor turns a RawFrame into an analysis-ready ProcessedFrame:
// ROI crop, grayscale, optional lens correction, CLAHE, blur. The
// transform is deterministic and leaves the input untouched. The ROI
// may be swapped at runtime without rebuilding the component.
type PreProcessor struct {
	cfg PreProcessorConfig
	cal *calib.Model

	mu  sync.Mutex
	roi *image.Rectangle
}

// NewPreProcessor builds a PreProcessor. cal may be nil, in which case
// no lens correction is applied.
func NewPreProcessor(cfg PreProcessorConfig, cal *calib.Model) *PreProcessor {
	return &PreProcessor{cfg: cfg, cal: cal, roi: cfg.ROI}
}

// SetROI replaces the region of interest. Passing nil restores
// full-frame analysis.
func (p *PreProcessor) SetROI(roi *image.Rectangle) {
	p.mu.Lock()
	p.roi = roi
	p.mu.Unlock()
}

// Run applies the full normalisation chain to raw.
func (p *PreProcessor) Run(raw *RawFrame) *ProcessedFrame {
	p.mu.Lock()
	roi := p.roi
	p.mu.Unlock()

	bounds := raw.Image.Bounds()
	crop := bounds
	offX, offY := 0, 0
	if roi != nil {
		r := roi.Add(bounds.Min).Intersect(bounds)
		if !r.Empty() {
			crop = r
			offX = r.Min.X - bounds.Min.X
			offY = r.Min.Y - bounds.Min.Y
		}
	}

	gray := grayCrop(raw.Image, crop)
	if p.cal != nil && p.cal.Undistorts() {
		gray = p.cal.Undistort(gray)
	}
	enhanced := CLAHE(gray, p.cfg.CLAHEClipLimit, p.cfg.CLAHETilesX, p.cfg.CLAHETilesY)
	blurred := GaussianBlur(enhanced, p.cfg.BlurKernelSize, 0)

	return &ProcessedFrame{
		Raw:        raw,
		ROIImage:   blurred,
		ROIOffsetX: offX,
		ROIOffsetY: offY,
	}
}

// grayCrop converts the crop window of img to a zero-origin gray image.
func grayCrop(img image.Image, crop image.Rectangle) *image.Gray {
	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if s, ok := img.(subImager); ok && crop != img.Bounds() {
		return ToGray(s.SubImage(crop))
	}
	if crop == img.Bounds() {
		return ToGray(img)
	}
	// Fallback for images without SubImage support.
	out := image.NewGray(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	for y := 0; y < crop.Dy(); y++ {
		for x := 0; x < crop.Dx(); x++ {
			c := img.At(crop.Min.X+x, crop.Min.Y+y)
			r, g, b, _ := c.RGBA()
			out.Pix[y*out.Stride+x] = uint8((299*(r>>8) + 587*(g>>8) + 114*(b>>8) + 500) / 1000)
		}
	}
	return out
}
