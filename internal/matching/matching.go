// Package matching finds the enrolled descriptor nearest to a query.
package matching

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrDimensionMismatch means query and gallery descriptors were produced
	// with different geometries. It is a configuration error, not a miss.
	ErrDimensionMismatch = errors.New("descriptor dimension mismatch")
	ErrEmptyGallery      = errors.New("gallery is empty")
)

// Candidate is one enrolled descriptor.
type Candidate struct {
	EmployeeID uuid.UUID
	Name       string
	Descriptor []float32
}

// Result describes the nearest candidate. Distance is always the best
// distance seen; the identity fields are set only when Matched.
type Result struct {
	Matched    bool
	EmployeeID uuid.UUID
	Name       string
	Distance   float64
	Confidence float64
	// Ambiguous is set when several candidates share the minimum distance;
	// the lowest employee ID wins.
	Ambiguous bool
}

type Engine struct {
	threshold   float64
	parallelMin int
}

// NewEngine returns an engine accepting distances <= threshold. Galleries of
// at least parallelMin candidates are scanned concurrently; parallelMin <= 0
// keeps every scan sequential.
func NewEngine(threshold float64, parallelMin int) *Engine {
	return &Engine{threshold: threshold, parallelMin: parallelMin}
}

func (e *Engine) Threshold() float64 { return e.threshold }

type best struct {
	idx  int
	dist float64
	ties int
}

func (b best) better(o best, gallery []Candidate) best {
	switch {
	case o.idx < 0:
		return b
	case b.idx < 0 || o.dist < b.dist:
		return o
	case o.dist > b.dist:
		return b
	}
	merged := b
	merged.ties += o.ties
	if bytes.Compare(gallery[o.idx].EmployeeID[:], gallery[b.idx].EmployeeID[:]) < 0 {
		merged.idx = o.idx
	}
	return merged
}

// Match compares query against every candidate.
func (e *Engine) Match(ctx context.Context, query []float32, gallery []Candidate) (Result, error) {
	if len(gallery) == 0 {
		return Result{}, ErrEmptyGallery
	}
	for _, c := range gallery {
		if len(c.Descriptor) != len(query) {
			return Result{}, fmt.Errorf("%w: query has %d values, employee %s has %d",
				ErrDimensionMismatch, len(query), c.EmployeeID, len(c.Descriptor))
		}
	}

	var b best
	var err error
	if e.parallelMin > 0 && len(gallery) >= e.parallelMin {
		b, err = scanParallel(ctx, query, gallery)
	} else {
		b, err = scan(ctx, query, gallery, 0, len(gallery))
	}
	if err != nil {
		return Result{}, err
	}

	res := Result{Distance: b.dist, Ambiguous: b.ties > 1}
	if b.dist <= e.threshold {
		res.Matched = true
		res.EmployeeID = gallery[b.idx].EmployeeID
		res.Name = gallery[b.idx].Name
		res.Confidence = Confidence(b.dist, e.threshold)
	}
	return res, nil
}

func scan(ctx context.Context, query []float32, gallery []Candidate, lo, hi int) (best, error) {
	b := best{idx: -1}
	for i := lo; i < hi; i++ {
		if (i-lo)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return best{}, err
			}
		}
		b = b.better(best{idx: i, dist: Distance(query, gallery[i].Descriptor), ties: 1}, gallery)
	}
	return b, nil
}

func scanParallel(ctx context.Context, query []float32, gallery []Candidate) (best, error) {
	workers := runtime.GOMAXPROCS(0)
	chunk := (len(gallery) + workers - 1) / workers

	n := (len(gallery) + chunk - 1) / chunk
	partial := make([]best, n)

	g, gctx := errgroup.WithContext(ctx)
	for w := range n {
		lo := w * chunk
		hi := min(lo+chunk, len(gallery))
		g.Go(func() error {
			b, err := scan(gctx, query, gallery, lo, hi)
			partial[w] = b
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return best{}, err
	}

	b := best{idx: -1}
	for _, p := range partial {
		b = b.better(p, gallery)
	}
	return b, nil
}

// Distance is the Euclidean distance between two equal-length descriptors.
func Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Confidence maps a distance onto [0,1], 1 being an exact match.
func Confidence(distance, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	return math.Max(0, 1-distance/threshold)
}
