package vision

import "math"

// groupRectangles clusters raw detections the way OpenCV's groupRectangles
// does: similar boxes are partitioned into classes, each class is averaged,
// classes with groupThreshold or fewer members are dropped, and a class that
// sits inside a better supported class is suppressed.
func groupRectangles(rects []BoundingBox, groupThreshold int, eps float64) []BoundingBox {
	if groupThreshold <= 0 || len(rects) == 0 {
		return append([]BoundingBox(nil), rects...)
	}

	labels, nclasses := partition(rects, eps)

	type acc struct {
		x, y, w, h float64
		n          int
	}
	sums := make([]acc, nclasses)
	for i, r := range rects {
		a := &sums[labels[i]]
		a.x += float64(r.X)
		a.y += float64(r.Y)
		a.w += float64(r.Width)
		a.h += float64(r.Height)
		a.n++
	}

	avg := make([]BoundingBox, nclasses)
	for i, a := range sums {
		s := 1 / float64(a.n)
		avg[i] = BoundingBox{
			X:      int(math.Round(a.x * s)),
			Y:      int(math.Round(a.y * s)),
			Width:  int(math.Round(a.w * s)),
			Height: int(math.Round(a.h * s)),
		}
	}

	var out []BoundingBox
	for i, r1 := range avg {
		n1 := sums[i].n
		if n1 <= groupThreshold {
			continue
		}
		nested := false
		for j, r2 := range avg {
			n2 := sums[j].n
			if j == i || n2 <= groupThreshold {
				continue
			}
			dx := int(math.Round(float64(r2.Width) * eps))
			dy := int(math.Round(float64(r2.Height) * eps))
			if r1.X >= r2.X-dx && r1.Y >= r2.Y-dy &&
				r1.X+r1.Width <= r2.X+r2.Width+dx &&
				r1.Y+r1.Height <= r2.Y+r2.Height+dy &&
				(n2 > max(3, n1) || n1 < 3) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, r1)
		}
	}
	return out
}

// partition assigns equivalence-class labels, numbered in order of first
// appearance, to the transitive closure of similarRects.
func partition(rects []BoundingBox, eps float64) ([]int, int) {
	parent := make([]int, len(rects))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			if similarRects(rects[i], rects[j], eps) {
				ri, rj := find(i), find(j)
				if ri != rj {
					parent[rj] = ri
				}
			}
		}
	}

	labels := make([]int, len(rects))
	ids := make(map[int]int)
	for i := range rects {
		root := find(i)
		id, ok := ids[root]
		if !ok {
			id = len(ids)
			ids[root] = id
		}
		labels[i] = id
	}
	return labels, len(ids)
}

func similarRects(a, b BoundingBox, eps float64) bool {
	delta := eps * float64(min(a.Width, b.Width)+min(a.Height, b.Height)) * 0.5
	return math.Abs(float64(a.X-b.X)) <= delta &&
		math.Abs(float64(a.Y-b.Y)) <= delta &&
		math.Abs(float64(a.X+a.Width-b.X-b.Width)) <= delta &&
		math.Abs(float64(a.Y+a.Height-b.Y-b.Height)) <= delta
}
