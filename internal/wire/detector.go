package wire

import (
	"image"
	"math"

	"github.com/banshee-data/catenary.report/internal/monitoring"
)

// Detection constants. The contact wire is physically near-horizontal,
// so segments outside the angular tolerance are discarded outright.
const (
	// wireAngleToleranceDeg bounds acceptable segment angles around
	// horizontal, after normalisation into [0°,90°].
	wireAngleToleranceDeg = 30.0

	// clusterMidpointTolPx merges segments whose vertical midpoints
	// sit within this distance of a cluster representative.
	clusterMidpointTolPx = 8.0

	// profileHalfWidth is the half-height of the vertical intensity
	// slice used for the sub-pixel diameter fit.
	profileHalfWidth = 20

	// minProfileContrast is the peak-to-baseline floor below which
	// the profile is considered too flat to fit.
	minProfileContrast = 10.0

	// defaultWireDiameterPx is the last-resort diameter when both the
	// Gaussian fit and the edge-span fallback fail.
	defaultWireDiameterPx = 4.0

	// minBBoxPadPx is the minimum vertical padding around the elected
	// segment when building the candidate bounding box.
	minBBoxPadPx = 4
)

// DetectorConfig holds the edge- and line-extraction parameters.
type DetectorConfig struct {
	CannyLow  float64
	CannyHigh float64
	Hough     HoughParams
}

// Detector finds the contact wire in a processed frame. It is
// state-free per call and safe for concurrent use.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector builds a Detector with the given configuration.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg}
}

// segmentCluster groups near-horizontal segments sharing a vertical
// band. The representative is the longest member.
type segmentCluster struct {
	rep     Segment
	members []Segment
}

// Detect locates the contact wire in pf. A frame with no detectable
// wire yields a zero-confidence candidate, never an error.
func (d *Detector) Detect(pf *ProcessedFrame) WireCandidate {
	cand, _ := d.detect(pf, nil)
	return cand
}

func (d *Detector) detect(pf *ProcessedFrame, dbg *DebugOverlay) (WireCandidate, *image.Gray) {
	img := pf.ROIImage
	empty := WireCandidate{FrameID: pf.Raw.FrameID, TimestampMs: pf.Raw.TimestampMs}

	edges := Canny(img, d.cfg.CannyLow, d.cfg.CannyHigh)
	if dbg != nil {
		dbg.SetEdges(edges)
	}

	segments := HoughLinesP(edges, d.cfg.Hough)
	if len(segments) == 0 {
		monitoring.Logf("detect: frame %d: no line segments", pf.Raw.FrameID)
		return empty, edges
	}

	horizontal := filterHorizontal(segments)
	if dbg != nil {
		dbg.SetSegments(horizontal)
	}
	if len(horizontal) == 0 {
		monitoring.Logf("detect: frame %d: no near-horizontal segments", pf.Raw.FrameID)
		return empty, edges
	}

	clusters := clusterByMidY(horizontal)
	elected := electLowest(clusters)
	if dbg != nil {
		dbg.SetElected(elected)
	}

	return d.buildCandidate(pf, elected, edges), edges
}

// filterHorizontal keeps segments within the angular tolerance of
// horizontal.
func filterHorizontal(segments []Segment) []Segment {
	out := segments[:0:0]
	for _, s := range segments {
		if s.AngleDeg() <= wireAngleToleranceDeg {
			out = append(out, s)
		}
	}
	return out
}

// clusterByMidY sorts segments by vertical midpoint and greedily merges
// each into the first cluster whose representative midpoint lies within
// the fixed tolerance.
func clusterByMidY(segments []Segment) []segmentCluster {
	sorted := append([]Segment(nil), segments...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].MidY() < sorted[j-1].MidY(); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var clusters []segmentCluster
	for _, s := range sorted {
		placed := false
		for i := range clusters {
			if math.Abs(s.MidY()-clusters[i].rep.MidY()) <= clusterMidpointTolPx {
				clusters[i].members = append(clusters[i].members, s)
				if s.Length() > clusters[i].rep.Length() {
					clusters[i].rep = s
				}
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, segmentCluster{rep: s, members: []Segment{s}})
		}
	}
	return clusters
}

// electLowest picks the cluster representative with the greatest
// vertical midpoint: the wire nearest the current-collector side of
// the ROI, not the longest segment.
func electLowest(clusters []segmentCluster) Segment {
	best := clusters[0].rep
	for _, c := range clusters[1:] {
		if c.rep.MidY() > best.MidY() {
			best = c.rep
		}
	}
	return best
}

func (d *Detector) buildCandidate(pf *ProcessedFrame, seg Segment, edges *image.Gray) WireCandidate {
	img := pf.ROIImage
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	cx := seg.MidX()
	cy := seg.MidY()
	diameter := estimateDiameter(img, edges, int(math.Round(cx)), int(math.Round(cy)))

	pad := int(diameter / 2)
	if pad < minBBoxPadPx {
		pad = minBBoxPadPx
	}
	x0 := clampInt(minInt(seg.X1, seg.X2)-pad, 0, w-1)
	y0 := clampInt(int(cy)-pad, 0, h-1)
	x1 := clampInt(maxInt(seg.X1, seg.X2)+pad, 0, w)
	y1 := clampInt(int(cy)+pad, 0, h)

	confidence := seg.Length() / float64(w)
	if confidence > 1 {
		confidence = 1
	}

	return WireCandidate{
		FrameID:     pf.Raw.FrameID,
		TimestampMs: pf.Raw.TimestampMs,
		BBox:        image.Rect(x0, y0, x1, y1),
		CentreX:     cx,
		CentreY:     cy,
		DiameterPx:  diameter,
		Confidence:  confidence,
	}
}

// estimateDiameter measures the wire thickness at (cx, cy) in pixels.
// Primary path: least-squares Gaussian fit over the vertical intensity
// profile, diameter = FWHM. Fallback: contiguous edge-pixel span in a
// narrow column. Last resort: fixed default width. The result is
// clamped to [1, 2*profileHalfWidth].
func estimateDiameter(img, edges *image.Gray, cx, cy int) float64 {
	h := img.Bounds().Dy()
	w := img.Bounds().Dx()
	if cx < 0 || cx >= w {
		return defaultWireDiameterPx
	}
	y0 := clampInt(cy-profileHalfWidth, 0, h-1)
	y1 := clampInt(cy+profileHalfWidth, 0, h-1)

	n := y1 - y0 + 1
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = float64(y0 + i)
		ys[i] = float64(img.Pix[(y0+i)*img.Stride+cx])
	}

	if d, ok := fitProfile(xs, ys, float64(cy)); ok {
		return clampF(d, 1, 2*profileHalfWidth)
	}
	if d, ok := edgeSpan(edges, cx, y0, y1); ok {
		return clampF(d, 1, 2*profileHalfWidth)
	}
	return defaultWireDiameterPx
}

// fitProfile fits a Gaussian to the intensity slice and returns its
// FWHM. The wire reads darker than the background, so the expected
// amplitude is negative; either sign is accepted as long as the
// contrast clears the floor.
func fitProfile(xs, ys []float64, centre float64) (float64, bool) {
	base := (ys[0] + ys[len(ys)-1]) / 2
	extremum := ys[0]
	extremumX := xs[0]
	for i := range ys {
		if math.Abs(ys[i]-base) > math.Abs(extremum-base) {
			extremum = ys[i]
			extremumX = xs[i]
		}
	}
	if math.Abs(extremum-base) < minProfileContrast {
		return 0, false
	}

	init := Gaussian1D{
		Amp:   extremum - base,
		Mean:  extremumX,
		Sigma: 2,
		Base:  base,
	}
	fit, ok := FitGaussian1D(xs, ys, init)
	if !ok {
		return 0, false
	}
	// A fit that wandered far from the wire centre is meaningless.
	if math.Abs(fit.Mean-centre) > profileHalfWidth {
		return 0, false
	}
	return fit.FWHM(), true
}

// edgeSpan returns the row span covered by edge pixels in the three
// columns around cx, between rows y0 and y1.
func edgeSpan(edges *image.Gray, cx, y0, y1 int) (float64, bool) {
	w := edges.Bounds().Dx()
	first, last := -1, -1
	for y := y0; y <= y1; y++ {
		hit := false
		for x := cx - 1; x <= cx+1; x++ {
			if x < 0 || x >= w {
				continue
			}
			if edges.Pix[y*edges.Stride+x] != 0 {
				hit = true
				break
			}
		}
		if hit {
			if first < 0 {
				first = y
			}
			last = y
		}
	}
	if first < 0 || last <= first {
		return 0, false
	}
	return float64(last - first + 1), true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
