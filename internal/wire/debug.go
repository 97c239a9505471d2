package wire

import (
	"image"
	"image/color"
)

// DebugOverlay collects intermediate detection stages and renders them
// as an annotated RGBA image. It observes only; producing an overlay
// never changes the returned candidate.
type DebugOverlay struct {
	edges    *image.Gray
	segments []Segment
	elected  *Segment
}

func (d *DebugOverlay) SetEdges(e *image.Gray)     { d.edges = e }
func (d *DebugOverlay) SetSegments(segs []Segment) { d.segments = segs }
func (d *DebugOverlay) SetElected(s Segment)       { d.elected = &s }

// DetectDebug runs detection and additionally returns an annotated
// visualisation: edge pixels in grey, surviving segments in yellow, the
// elected wire in green with its bounding box in red.
func (d *Detector) DetectDebug(pf *ProcessedFrame) (WireCandidate, *image.RGBA) {
	var dbg DebugOverlay
	cand, _ := d.detect(pf, &dbg)
	return cand, dbg.Render(pf.ROIImage, cand)
}

// Render draws the collected stages over the analysis image.
func (d *DebugOverlay) Render(base *image.Gray, cand WireCandidate) *image.RGBA {
	b := base.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := base.Pix[y*base.Stride+x]
			i := y*out.Stride + x*4
			out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = v, v, v, 255
		}
	}

	if d.edges != nil {
		grey := color.RGBA{R: 128, G: 128, B: 160, A: 255}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if d.edges.Pix[y*d.edges.Stride+x] != 0 {
					out.SetRGBA(x, y, grey)
				}
			}
		}
	}

	yellow := color.RGBA{R: 255, G: 220, B: 0, A: 255}
	for _, s := range d.segments {
		drawLine(out, s, yellow)
	}

	if d.elected != nil {
		drawLine(out, *d.elected, color.RGBA{G: 255, A: 255})
		drawRect(out, cand.BBox, color.RGBA{R: 255, A: 255})
	}
	return out
}

// drawLine rasterises a segment with integer Bresenham stepping.
func drawLine(img *image.RGBA, s Segment, c color.RGBA) {
	x0, y0, x1, y1 := s.X1, s.Y1, s.X2, s.Y2
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		if image.Pt(x0, y0).In(img.Bounds()) {
			img.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	drawLine(img, Segment{r.Min.X, r.Min.Y, r.Max.X - 1, r.Min.Y}, c)
	drawLine(img, Segment{r.Min.X, r.Max.Y - 1, r.Max.X - 1, r.Max.Y - 1}, c)
	drawLine(img, Segment{r.Min.X, r.Min.Y, r.Min.X, r.Max.Y - 1}, c)
	drawLine(img, Segment{r.Max.X - 1, r.Min.Y, r.Max.X - 1, r.Max.Y - 1}, c)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
