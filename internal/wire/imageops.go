package wire

import (
	"image"
	"image/color"
	"math"
)

// ToGray converts any image to 8-bit single channel using the standard
// luma weights. *image.Gray inputs are returned as-is.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			src := rgba.Pix[y*rgba.Stride:]
			dst := out.Pix[y*out.Stride:]
			for x := 0; x < b.Dx(); x++ {
				r := uint32(src[x*4])
				g := uint32(src[x*4+1])
				bl := uint32(src[x*4+2])
				dst[x] = uint8((299*r + 587*g + 114*bl + 500) / 1000)
			}
		}
		return out
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.SetGray(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray))
		}
	}
	return out
}

// CLAHE applies contrast-limited adaptive histogram equalisation.
// clipLimit is the relative clip factor (2.0 is a typical default);
// tilesX/tilesY define the tile grid. Tile lookup tables are blended
// bilinearly so tile borders stay seam-free.
func CLAHE(img *image.Gray, clipLimit float64, tilesX, tilesY int) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}
	if tilesX < 1 {
		tilesX = 1
	}
	if tilesY < 1 {
		tilesY = 1
	}
	if tilesX > w {
		tilesX = w
	}
	if tilesY > h {
		tilesY = h
	}

	tileW := (w + tilesX - 1) / tilesX
	tileH := (h + tilesY - 1) / tilesY

	// Per-tile equalisation LUTs.
	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)

			var hist [256]int
			for y := y0; y < y1; y++ {
				row := img.Pix[y*img.Stride:]
				for x := x0; x < x1; x++ {
					hist[row[x]]++
				}
			}
			n := (x1 - x0) * (y1 - y0)
			luts[ty*tilesX+tx] = clippedEqualiseLUT(hist, n, clipLimit)
		}
	}

	// Bilinear blend between the four surrounding tile LUTs.
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(math.Floor(fy))
		wy := fy - float64(ty0)
		ty1 := ty0 + 1
		ty0 = clampInt(ty0, 0, tilesY-1)
		ty1 = clampInt(ty1, 0, tilesY-1)

		srow := img.Pix[y*img.Stride:]
		drow := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(math.Floor(fx))
			wx := fx - float64(tx0)
			tx1 := tx0 + 1
			tx0 = clampInt(tx0, 0, tilesX-1)
			tx1 = clampInt(tx1, 0, tilesX-1)

			v := srow[x]
			p00 := float64(luts[ty0*tilesX+tx0][v])
			p10 := float64(luts[ty0*tilesX+tx1][v])
			p01 := float64(luts[ty1*tilesX+tx0][v])
			p11 := float64(luts[ty1*tilesX+tx1][v])
			top := p00 + (p10-p00)*wx
			bot := p01 + (p11-p01)*wx
			drow[x] = uint8(top + (bot-top)*wy + 0.5)
		}
	}
	return out
}

// clippedEqualiseLUT clips the histogram at clipLimit times the uniform
// bin height, redistributes the excess evenly, and returns the CDF as a
// lookup table.
func clippedEqualiseLUT(hist [256]int, n int, clipLimit float64) [256]uint8 {
	var lut [256]uint8
	if n == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}
	clip := int(clipLimit * float64(n) / 256)
	if clip < 1 {
		clip = 1
	}
	excess := 0
	for i := range hist {
		if hist[i] > clip {
			excess += hist[i] - clip
			hist[i] = clip
		}
	}
	share := excess / 256
	rem := excess % 256
	for i := range hist {
		hist[i] += share
		if i < rem {
			hist[i]++
		}
	}
	cum := 0
	scale := 255.0 / float64(n)
	for i := range hist {
		cum += hist[i]
		lut[i] = uint8(math.Round(float64(cum) * scale))
	}
	return lut
}

// GaussianBlur applies a separable Gaussian filter. ksize must be odd;
// sigma is derived from the kernel size when zero, matching the usual
// convention for smoothing kernels.
func GaussianBlur(img *image.Gray, ksize int, sigma float64) *image.Gray {
	if ksize <= 1 {
		return img
	}
	if sigma <= 0 {
		sigma = 0.3*(float64(ksize-1)*0.5-1) + 0.8
	}
	kernel := gaussianKernel(ksize, sigma)
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	r := ksize / 2

	// Horizontal pass.
	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			var sum float64
			for k := -r; k <= r; k++ {
				xi := clampInt(x+k, 0, w-1)
				sum += float64(row[xi]) * kernel[k+r]
			}
			tmp[y*w+x] = sum
		}
	}
	// Vertical pass.
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		drow := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			var sum float64
			for k := -r; k <= r; k++ {
				yi := clampInt(y+k, 0, h-1)
				sum += tmp[yi*w+x] * kernel[k+r]
			}
			drow[x] = uint8(sum + 0.5)
		}
	}
	return out
}

func gaussianKernel(ksize int, sigma float64) []float64 {
	r := ksize / 2
	k := make([]float64, ksize)
	var sum float64
	for i := -r; i <= r; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+r] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
