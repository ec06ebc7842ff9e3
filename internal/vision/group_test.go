package vision

import "testing"

func repeat(b BoundingBox, n int) []BoundingBox {
	out := make([]BoundingBox, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestGroupRectangles(t *testing.T) {
	face := BoundingBox{X: 10, Y: 10, Width: 100, Height: 100}

	t.Run("enough neighbours", func(t *testing.T) {
		got := groupRectangles(repeat(face, 6), 5, 0.2)
		if len(got) != 1 || got[0] != face {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("too few neighbours", func(t *testing.T) {
		if got := groupRectangles(repeat(face, 5), 5, 0.2); len(got) != 0 {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("averages a cluster", func(t *testing.T) {
		in := []BoundingBox{
			{X: 10, Y: 10, Width: 100, Height: 100},
			{X: 12, Y: 14, Width: 104, Height: 100},
		}
		got := groupRectangles(in, 1, 0.2)
		want := BoundingBox{X: 11, Y: 12, Width: 102, Height: 100}
		if len(got) != 1 || got[0] != want {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("nested cluster suppressed", func(t *testing.T) {
		in := append(repeat(BoundingBox{X: 0, Y: 0, Width: 100, Height: 100}, 10),
			repeat(BoundingBox{X: 30, Y: 30, Width: 40, Height: 40}, 6)...)
		got := groupRectangles(in, 5, 0.2)
		if len(got) != 1 || got[0].Width != 100 {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("separate clusters", func(t *testing.T) {
		in := append(repeat(BoundingBox{X: 0, Y: 0, Width: 50, Height: 50}, 3),
			repeat(BoundingBox{X: 200, Y: 0, Width: 50, Height: 50}, 3)...)
		if got := groupRectangles(in, 2, 0.2); len(got) != 2 {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("zero threshold passes through", func(t *testing.T) {
		in := []BoundingBox{face, {X: 300, Y: 300, Width: 10, Height: 10}}
		if got := groupRectangles(in, 0, 0.2); len(got) != 2 {
			t.Fatalf("got %v", got)
		}
	})
}

func TestSimilarRects(t *testing.T) {
	a := BoundingBox{X: 0, Y: 0, Width: 100, Height: 100}
	if !similarRects(a, BoundingBox{X: 20, Y: 20, Width: 100, Height: 100}, 0.2) {
		t.Error("offset of exactly delta should be similar")
	}
	if similarRects(a, BoundingBox{X: 21, Y: 0, Width: 100, Height: 100}, 0.2) {
		t.Error("offset beyond delta should not be similar")
	}
}
