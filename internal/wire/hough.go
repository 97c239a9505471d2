package wire

import (
	"image"
	"math"
	"math/rand"
)

// Segment is a line segment in ROI-local pixel coordinates.
type Segment struct {
	X1, Y1, X2, Y2 int
}

// Length returns the Euclidean length in pixels.
func (s Segment) Length() float64 {
	return math.Hypot(float64(s.X2-s.X1), float64(s.Y2-s.Y1))
}

// AngleDeg returns the segment angle normalised into [0°,90°], where 0
// is horizontal.
func (s Segment) AngleDeg() float64 {
	a := math.Abs(math.Atan2(float64(s.Y2-s.Y1), float64(s.X2-s.X1)) * 180 / math.Pi)
	if a > 90 {
		a = 180 - a
	}
	return a
}

// MidX and MidY return the segment midpoint.
func (s Segment) MidX() float64 { return float64(s.X1+s.X2) / 2 }
func (s Segment) MidY() float64 { return float64(s.Y1+s.Y2) / 2 }

// HoughParams parameterises the probabilistic line-segment transform.
type HoughParams struct {
	RhoRes        float64 // distance resolution in pixels
	ThetaResDeg   float64 // angular resolution in degrees
	Threshold     int     // accumulator vote threshold
	MinLineLength int     // shortest segment to emit, pixels
	MaxLineGap    int     // largest run of missing pixels to bridge
}

// HoughLinesP extracts line segments from a binary edge map using the
// progressive probabilistic Hough transform. Point processing order is
// randomised from a fixed seed so results are reproducible for a given
// edge map.
func HoughLinesP(edges *image.Gray, p HoughParams) []Segment {
	b := edges.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	if p.RhoRes <= 0 {
		p.RhoRes = 1
	}
	if p.ThetaResDeg <= 0 {
		p.ThetaResDeg = 1
	}
	if p.Threshold < 1 {
		p.Threshold = 1
	}

	numAngle := int(math.Round(180 / p.ThetaResDeg))
	numRho := int(math.Round(float64(w+h)*2/p.RhoRes)) + 1
	rhoOffset := (numRho - 1) / 2

	sinTab := make([]float64, numAngle)
	cosTab := make([]float64, numAngle)
	for n := 0; n < numAngle; n++ {
		theta := float64(n) * p.ThetaResDeg * math.Pi / 180
		sinTab[n] = math.Sin(theta) / p.RhoRes
		cosTab[n] = math.Cos(theta) / p.RhoRes
	}

	mask := make([]bool, w*h)
	points := make([]int, 0, 256)
	for y := 0; y < h; y++ {
		row := edges.Pix[y*edges.Stride:]
		for x := 0; x < w; x++ {
			if row[x] != 0 {
				mask[y*w+x] = true
				points = append(points, y*w+x)
			}
		}
	}
	if len(points) == 0 {
		return nil
	}

	accum := make([]int, numAngle*numRho)
	rng := rand.New(rand.NewSource(0x9e3779b9))
	var segments []Segment

	for count := len(points); count > 0; count-- {
		// Pick a random remaining point; skip ones consumed by an
		// earlier segment walk.
		idx := rng.Intn(count)
		pt := points[idx]
		points[idx] = points[count-1]
		points = points[:count-1]
		if !mask[pt] {
			continue
		}
		px, py := pt%w, pt/w

		// Vote and track the best angle bin for this point.
		bestN, bestVotes := 0, 0
		for n := 0; n < numAngle; n++ {
			rho := int(math.Round(float64(px)*cosTab[n]+float64(py)*sinTab[n])) + rhoOffset
			accum[n*numRho+rho]++
			if v := accum[n*numRho+rho]; v > bestVotes {
				bestVotes, bestN = v, n
			}
		}
		if bestVotes < p.Threshold {
			continue
		}

		// Walk both directions along the elected line, bridging gaps
		// up to MaxLineGap.
		dirX, dirY := -sinTab[bestN]*p.RhoRes, cosTab[bestN]*p.RhoRes
		ends := [2][2]int{}
		for k := 0; k < 2; k++ {
			sx, sy := dirX, dirY
			if k == 1 {
				sx, sy = -sx, -sy
			}
			x, y := float64(px), float64(py)
			ends[k] = [2]int{px, py}
			gap := 0
			for {
				x += sx
				y += sy
				xi, yi := int(math.Round(x)), int(math.Round(y))
				if xi < 0 || yi < 0 || xi >= w || yi >= h {
					break
				}
				if mask[yi*w+xi] {
					gap = 0
					ends[k] = [2]int{xi, yi}
				} else {
					gap++
					if gap > p.MaxLineGap {
						break
					}
				}
			}
		}

		seg := Segment{X1: ends[1][0], Y1: ends[1][1], X2: ends[0][0], Y2: ends[0][1]}
		good := seg.Length() >= float64(p.MinLineLength)

		// Consume the walked pixels so they cannot seed another
		// segment, removing their accumulator votes.
		for k := 0; k < 2; k++ {
			sx, sy := dirX, dirY
			if k == 1 {
				sx, sy = -sx, -sy
			}
			x, y := float64(px), float64(py)
			for {
				xi, yi := int(math.Round(x)), int(math.Round(y))
				if mask[yi*w+xi] {
					if good {
						for n := 0; n < numAngle; n++ {
							rho := int(math.Round(float64(xi)*cosTab[n]+float64(yi)*sinTab[n])) + rhoOffset
							if accum[n*numRho+rho] > 0 {
								accum[n*numRho+rho]--
							}
						}
					}
					mask[yi*w+xi] = false
				}
				if xi == ends[k][0] && yi == ends[k][1] {
					break
				}
				x += sx
				y += sy
			}
		}

		if good {
			segments = append(segments, seg)
		}
	}
	return segments
}
