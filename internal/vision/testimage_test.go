package vision

import (
	"image"
	"math"
)

// stripes draws alternating bands of lo and hi, period pixels apart,
// running vertically when vertical is true.
func stripes(w, h, period int, lo, hi uint8, vertical bool) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			k := y
			if vertical {
				k = x
			}
			v := lo
			if (k/(period/2))%2 == 1 {
				v = hi
			}
			g.Pix[y*g.Stride+x] = v
		}
	}
	return g
}

func distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
