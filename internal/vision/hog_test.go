package vision

import (
	"image"
	"reflect"
	"testing"
)

func TestHOGLen(t *testing.T) {
	if got := DefaultHOG().Len(); got != 8100 {
		t.Errorf("128x128 descriptor length = %d, want 8100", got)
	}
	pedestrian := HOG{WinWidth: 64, WinHeight: 128, BlockSize: 16, BlockStride: 8, CellSize: 8, Bins: 9}
	if got := pedestrian.Len(); got != 3780 {
		t.Errorf("64x128 descriptor length = %d, want 3780", got)
	}
}

func TestHOGValidate(t *testing.T) {
	bad := []HOG{
		{WinWidth: 128, WinHeight: 128, BlockSize: 16, BlockStride: 8, CellSize: 0, Bins: 9},
		{WinWidth: 128, WinHeight: 128, BlockSize: 12, BlockStride: 8, CellSize: 8, Bins: 9},
		{WinWidth: 100, WinHeight: 128, BlockSize: 16, BlockStride: 8, CellSize: 8, Bins: 9},
		{WinWidth: 8, WinHeight: 8, BlockSize: 16, BlockStride: 8, CellSize: 8, Bins: 9},
		{WinWidth: 128, WinHeight: 128, BlockSize: 16, BlockStride: 8, CellSize: 8, Bins: 0},
	}
	for i, h := range bad {
		if err := h.Validate(); err == nil {
			t.Errorf("case %d: %+v accepted", i, h)
		}
	}
	if err := DefaultHOG().Validate(); err != nil {
		t.Errorf("default geometry rejected: %v", err)
	}
}

func TestHOGCompute_WrongSize(t *testing.T) {
	if _, err := DefaultHOG().Compute(image.NewGray(image.Rect(0, 0, 64, 64))); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestHOGCompute_FlatImage(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 128, 128))
	for i := range g.Pix {
		g.Pix[i] = 90
	}
	desc, err := DefaultHOG().Compute(g)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range desc {
		if v != 0 {
			t.Fatalf("desc[%d] = %v, want 0 for a flat image", i, v)
		}
	}
}

func TestHOGCompute_Orientation(t *testing.T) {
	h := DefaultHOG()

	vertical, err := h.Compute(stripes(128, 128, 16, 40, 200, true))
	if err != nil {
		t.Fatal(err)
	}
	horizontal, err := h.Compute(stripes(128, 128, 16, 40, 200, false))
	if err != nil {
		t.Fatal(err)
	}

	// Vertical edges have horizontal gradients, which straddle bins 8 and 0.
	for i, v := range vertical {
		if b := i % h.Bins; b != 0 && b != h.Bins-1 && v != 0 {
			t.Fatalf("vertical stripes: bin %d has %v", b, v)
		}
	}
	// Horizontal edges vote for the 90 degree bin.
	for i, v := range horizontal {
		if b := i % h.Bins; b != 4 && v > 1e-6 {
			t.Fatalf("horizontal stripes: bin %d has %v", b, v)
		}
	}

	for _, desc := range [][]float32{vertical, horizontal} {
		if len(desc) != h.Len() {
			t.Fatalf("len = %d, want %d", len(desc), h.Len())
		}
		for i, v := range desc {
			if v < 0 || v > 1 {
				t.Fatalf("desc[%d] = %v outside [0,1]", i, v)
			}
		}
	}

	if d := distance(vertical, horizontal); d < 3 {
		t.Errorf("orthogonal textures too close: %v", d)
	}
}

func TestHOGCompute_Deterministic(t *testing.T) {
	img := stripes(128, 128, 12, 10, 250, true)
	a, _ := DefaultHOG().Compute(img)
	b, _ := DefaultHOG().Compute(img)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("descriptor differs between runs")
	}
}

func TestL2Hys(t *testing.T) {
	v := []float64{3, 4}
	l2Hys(v)
	// both components clip to 0.2 and renormalise to about 1/sqrt(2)
	for _, x := range v {
		if x < 0.70 || x > 0.71 {
			t.Errorf("component %v, want ~0.707", x)
		}
	}

	zero := make([]float64, 36)
	l2Hys(zero)
	for _, x := range zero {
		if x != 0 {
			t.Fatal("zero block changed")
		}
	}
}
