package wire

import (
	"image"
	"math"
)

// Canny runs two-threshold edge detection over a grayscale image and
// returns a binary edge map (0 or 255). lowThresh/highThresh act on the
// Sobel gradient magnitude; weak edges survive only when connected to a
// strong edge (hysteresis).
func Canny(img *image.Gray, lowThresh, highThresh float64) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w < 3 || h < 3 {
		return out
	}
	if lowThresh > highThresh {
		lowThresh, highThresh = highThresh, lowThresh
	}

	// Sobel gradients.
	gx := make([]float64, w*h)
	gy := make([]float64, w*h)
	mag := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			p := func(dx, dy int) float64 {
				return float64(img.Pix[(y+dy)*img.Stride+(x+dx)])
			}
			sx := -p(-1, -1) - 2*p(-1, 0) - p(-1, 1) + p(1, -1) + 2*p(1, 0) + p(1, 1)
			sy := -p(-1, -1) - 2*p(0, -1) - p(1, -1) + p(-1, 1) + 2*p(0, 1) + p(1, 1)
			i := y*w + x
			gx[i], gy[i] = sx, sy
			mag[i] = math.Hypot(sx, sy)
		}
	}

	// Non-maximum suppression along the quantised gradient direction.
	const (
		weak   = 1
		strong = 2
	)
	state := make([]uint8, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m < lowThresh {
				continue
			}
			var m1, m2 float64
			angle := math.Atan2(gy[i], gx[i]) * 180 / math.Pi
			if angle < 0 {
				angle += 180
			}
			switch {
			case angle < 22.5 || angle >= 157.5: // horizontal gradient
				m1, m2 = mag[i-1], mag[i+1]
			case angle < 67.5: // diagonal /
				m1, m2 = mag[i-w-1], mag[i+w+1]
			case angle < 112.5: // vertical gradient
				m1, m2 = mag[i-w], mag[i+w]
			default: // diagonal \
				m1, m2 = mag[i-w+1], mag[i+w-1]
			}
			if m < m1 || m < m2 {
				continue
			}
			if m >= highThresh {
				state[i] = strong
			} else {
				state[i] = weak
			}
		}
	}

	// Hysteresis: flood from strong edges into connected weak edges.
	stack := make([]int, 0, w)
	for i := range state {
		if state[i] == strong {
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		out.Pix[y*out.Stride+x] = 255
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				if state[ni] == weak {
					state[ni] = strong
					stack = append(stack, ni)
				}
			}
		}
	}
	return out
}
