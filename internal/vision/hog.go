package vision

import (
	"fmt"
	"image"
	"math"
)

// HOG describes a Histogram of Oriented Gradients geometry. The window must
// equal the size of the image passed to Compute.
type HOG struct {
	WinWidth    int
	WinHeight   int
	BlockSize   int
	BlockStride int
	CellSize    int
	Bins        int
}

// DefaultHOG is the 128x128 geometry used for face crops.
func DefaultHOG() HOG {
	return HOG{WinWidth: 128, WinHeight: 128, BlockSize: 16, BlockStride: 8, CellSize: 8, Bins: 9}
}

func (h HOG) Validate() error {
	if h.CellSize <= 0 || h.BlockStride <= 0 || h.Bins <= 0 {
		return fmt.Errorf("hog: cell size, block stride and bins must be positive")
	}
	if h.BlockSize%h.CellSize != 0 || h.BlockStride%h.CellSize != 0 {
		return fmt.Errorf("hog: block size %d and stride %d must be multiples of cell size %d",
			h.BlockSize, h.BlockStride, h.CellSize)
	}
	if h.WinWidth < h.BlockSize || h.WinHeight < h.BlockSize ||
		(h.WinWidth-h.BlockSize)%h.BlockStride != 0 || (h.WinHeight-h.BlockSize)%h.BlockStride != 0 {
		return fmt.Errorf("hog: window %dx%d does not tile with block %d / stride %d",
			h.WinWidth, h.WinHeight, h.BlockSize, h.BlockStride)
	}
	return nil
}

func (h HOG) blocks() (int, int) {
	return (h.WinWidth-h.BlockSize)/h.BlockStride + 1, (h.WinHeight-h.BlockSize)/h.BlockStride + 1
}

// Len is the descriptor length.
func (h HOG) Len() int {
	bx, by := h.blocks()
	c := h.BlockSize / h.CellSize
	return bx * by * c * c * h.Bins
}

// Compute returns the HOG descriptor of g. Gradients use centred [-1,0,1]
// differences with replicated borders; votes are split linearly between the
// two nearest unsigned orientation bins; blocks are L2-Hys normalised.
func (h HOG) Compute(g *image.Gray) ([]float32, error) {
	b := g.Bounds()
	if b.Dx() != h.WinWidth || b.Dy() != h.WinHeight {
		return nil, fmt.Errorf("hog: image %dx%d does not match window %dx%d",
			b.Dx(), b.Dy(), h.WinWidth, h.WinHeight)
	}

	w, ht := h.WinWidth, h.WinHeight
	cellsX, cellsY := w/h.CellSize, ht/h.CellSize
	hist := make([]float64, cellsX*cellsY*h.Bins)

	px := func(x, y int) float64 {
		if x < 0 {
			x = 0
		} else if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		} else if y >= ht {
			y = ht - 1
		}
		return float64(g.Pix[g.PixOffset(b.Min.X+x, b.Min.Y+y)])
	}

	binWidth := math.Pi / float64(h.Bins)
	for y := 0; y < cellsY*h.CellSize; y++ {
		cy := y / h.CellSize
		for x := 0; x < cellsX*h.CellSize; x++ {
			dx := px(x+1, y) - px(x-1, y)
			dy := px(x, y+1) - px(x, y-1)
			mag := math.Hypot(dx, dy)
			if mag == 0 {
				continue
			}

			angle := math.Atan2(dy, dx)
			if angle < 0 {
				angle += math.Pi
			}
			if angle >= math.Pi {
				angle -= math.Pi
			}

			pos := angle/binWidth - 0.5
			lo := int(math.Floor(pos))
			frac := pos - float64(lo)
			hi := lo + 1
			if lo < 0 {
				lo += h.Bins
			}
			if hi >= h.Bins {
				hi -= h.Bins
			}

			base := (cy*cellsX + x/h.CellSize) * h.Bins
			hist[base+lo] += mag * (1 - frac)
			hist[base+hi] += mag * frac
		}
	}

	blocksX, blocksY := h.blocks()
	cellsPerBlock := h.BlockSize / h.CellSize
	strideCells := h.BlockStride / h.CellSize
	blockLen := cellsPerBlock * cellsPerBlock * h.Bins

	out := make([]float32, 0, h.Len())
	block := make([]float64, blockLen)
	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			k := 0
			for cy := 0; cy < cellsPerBlock; cy++ {
				for cx := 0; cx < cellsPerBlock; cx++ {
					base := ((by*strideCells+cy)*cellsX + bx*strideCells + cx) * h.Bins
					k += copy(block[k:], hist[base:base+h.Bins])
				}
			}
			l2Hys(block)
			for _, v := range block {
				out = append(out, float32(v))
			}
		}
	}
	return out, nil
}

// l2Hys normalises v in place: L2 normalise, clip at 0.2, renormalise.
func l2Hys(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	scale := 1 / (math.Sqrt(sum) + 0.1*float64(len(v)))

	sum = 0
	for i, x := range v {
		x = math.Min(x*scale, 0.2)
		v[i] = x
		sum += x * x
	}
	scale = 1 / (math.Sqrt(sum) + 1e-3)
	for i := range v {
		v[i] *= scale
	}
}
