package vision

import (
	"encoding/xml"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/nfnt/resize"
)

// Cascade is a boosted Haar cascade in the layout OpenCV's traincascade writes.
type Cascade struct {
	Width    int
	Height   int
	Stages   []Stage
	Features []HaarFeature
}

type Stage struct {
	Threshold   float64
	Classifiers []WeakClassifier
}

// WeakClassifier is a decision tree over Haar features. Non-positive child
// indices address Leaves by their negation.
type WeakClassifier struct {
	Nodes  []Node
	Leaves []float64
}

type Node struct {
	Left      int
	Right     int
	Feature   int
	Threshold float64
}

type HaarFeature struct {
	Rects []WeightedRect
}

type WeightedRect struct {
	X, Y, W, H int
	Weight     float64
}

type xmlStorage struct {
	Cascade xmlCascade `xml:"cascade"`
}

type xmlCascade struct {
	StageType   string       `xml:"stageType"`
	FeatureType string       `xml:"featureType"`
	Height      int          `xml:"height"`
	Width       int          `xml:"width"`
	Stages      []xmlStage   `xml:"stages>_"`
	Features    []xmlFeature `xml:"features>_"`
}

type xmlStage struct {
	Threshold float64   `xml:"stageThreshold"`
	Weak      []xmlWeak `xml:"weakClassifiers>_"`
}

type xmlWeak struct {
	InternalNodes string `xml:"internalNodes"`
	LeafValues    string `xml:"leafValues"`
}

type xmlFeature struct {
	Rects  []string `xml:"rects>_"`
	Tilted int      `xml:"tilted"`
}

// LoadCascadeFile reads an OpenCV Haar cascade XML file such as
// haarcascade_frontalface_default.xml.
func LoadCascadeFile(path string) (*Cascade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cascade: %w", err)
	}
	defer f.Close()
	return ParseCascade(f)
}

func ParseCascade(r io.Reader) (*Cascade, error) {
	var doc xmlStorage
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse cascade: %w", err)
	}
	xc := doc.Cascade
	if xc.StageType != "" && xc.StageType != "BOOST" {
		return nil, fmt.Errorf("parse cascade: unsupported stage type %q", xc.StageType)
	}
	if xc.FeatureType != "" && xc.FeatureType != "HAAR" {
		return nil, fmt.Errorf("parse cascade: unsupported feature type %q", xc.FeatureType)
	}
	if xc.Width <= 2 || xc.Height <= 2 {
		return nil, fmt.Errorf("parse cascade: invalid window %dx%d", xc.Width, xc.Height)
	}

	c := &Cascade{Width: xc.Width, Height: xc.Height}

	for fi, xf := range xc.Features {
		if xf.Tilted != 0 {
			return nil, fmt.Errorf("parse cascade: feature %d is tilted, not supported", fi)
		}
		var f HaarFeature
		for _, s := range xf.Rects {
			v, err := parseFloats(s)
			if err != nil || len(v) != 5 {
				return nil, fmt.Errorf("parse cascade: feature %d rect %q", fi, strings.TrimSpace(s))
			}
			wr := WeightedRect{X: int(v[0]), Y: int(v[1]), W: int(v[2]), H: int(v[3]), Weight: v[4]}
			if wr.X < 0 || wr.Y < 0 || wr.X+wr.W > c.Width || wr.Y+wr.H > c.Height {
				return nil, fmt.Errorf("parse cascade: feature %d rect outside window", fi)
			}
			f.Rects = append(f.Rects, wr)
		}
		c.Features = append(c.Features, f)
	}

	for si, xs := range xc.Stages {
		st := Stage{Threshold: xs.Threshold}
		for wi, xw := range xs.Weak {
			nodes, err := parseFloats(xw.InternalNodes)
			if err != nil || len(nodes) == 0 || len(nodes)%4 != 0 {
				return nil, fmt.Errorf("parse cascade: stage %d classifier %d: bad internal nodes", si, wi)
			}
			leaves, err := parseFloats(xw.LeafValues)
			if err != nil || len(leaves) != len(nodes)/4+1 {
				return nil, fmt.Errorf("parse cascade: stage %d classifier %d: bad leaf values", si, wi)
			}
			var wc WeakClassifier
			for i := 0; i < len(nodes); i += 4 {
				n := Node{Left: int(nodes[i]), Right: int(nodes[i+1]), Feature: int(nodes[i+2]), Threshold: nodes[i+3]}
				if n.Feature < 0 || n.Feature >= len(c.Features) {
					return nil, fmt.Errorf("parse cascade: stage %d classifier %d: feature %d out of range", si, wi, n.Feature)
				}
				wc.Nodes = append(wc.Nodes, n)
			}
			wc.Leaves = leaves
			st.Classifiers = append(st.Classifiers, wc)
		}
		c.Stages = append(c.Stages, st)
	}
	if len(c.Stages) == 0 {
		return nil, fmt.Errorf("parse cascade: no stages")
	}
	return c, nil
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// integral holds summed-area tables of pixel values and their squares.
type integral struct {
	w, h  int // of the source image
	sum   []int64
	sqsum []int64
}

func newIntegral(g *image.Gray) *integral {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	stride := w + 1
	ii := &integral{w: w, h: h, sum: make([]int64, stride*(h+1)), sqsum: make([]int64, stride*(h+1))}
	for y := 0; y < h; y++ {
		row := g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):]
		var rs, rsq int64
		for x := 0; x < w; x++ {
			v := int64(row[x])
			rs += v
			rsq += v * v
			ii.sum[(y+1)*stride+x+1] = ii.sum[y*stride+x+1] + rs
			ii.sqsum[(y+1)*stride+x+1] = ii.sqsum[y*stride+x+1] + rsq
		}
	}
	return ii
}

func (ii *integral) rect(t []int64, x, y, w, h int) int64 {
	s := ii.w + 1
	return t[(y+h)*s+x+w] - t[y*s+x+w] - t[(y+h)*s+x] + t[y*s+x]
}

// evaluate runs the cascade on the window whose top-left corner is (x, y).
func (c *Cascade) evaluate(ii *integral, x, y int) bool {
	nw, nh := c.Width-2, c.Height-2
	area := float64(nw * nh)
	s := float64(ii.rect(ii.sum, x+1, y+1, nw, nh))
	sq := float64(ii.rect(ii.sqsum, x+1, y+1, nw, nh))
	norm := area*sq - s*s
	if norm > 0 {
		norm = math.Sqrt(norm)
	} else {
		norm = 1
	}

	for _, st := range c.Stages {
		var sum float64
		for _, wc := range st.Classifiers {
			idx := 0
			for {
				n := wc.Nodes[idx]
				if c.feature(ii, n.Feature, x, y)/norm < n.Threshold {
					idx = n.Left
				} else {
					idx = n.Right
				}
				if idx <= 0 {
					break
				}
			}
			sum += wc.Leaves[-idx]
		}
		if sum < st.Threshold {
			return false
		}
	}
	return true
}

func (c *Cascade) feature(ii *integral, fi, x, y int) float64 {
	var v float64
	for _, r := range c.Features[fi].Rects {
		v += r.Weight * float64(ii.rect(ii.sum, x+r.X, y+r.Y, r.W, r.H))
	}
	return v
}

// CascadeOptions mirror OpenCV's detectMultiScale parameters.
type CascadeOptions struct {
	// ScaleFactor is the growth ratio of the search window between passes.
	ScaleFactor float64
	// MinNeighbors is how many overlapping raw hits a cluster needs beyond
	// the first to be reported.
	MinNeighbors int
	// MinSize is the smallest face side, in pixels, that will be reported.
	MinSize int
	// GroupEps is the relative tolerance used to cluster raw hits. Zero means 0.2.
	GroupEps float64
}

// CascadeDetector scans an image pyramid with a Haar cascade.
type CascadeDetector struct {
	cascade *Cascade
	opts    CascadeOptions
}

func NewCascadeDetector(c *Cascade, opts CascadeOptions) *CascadeDetector {
	if opts.ScaleFactor <= 1 {
		opts.ScaleFactor = 1.1
	}
	if opts.GroupEps == 0 {
		opts.GroupEps = 0.2
	}
	return &CascadeDetector{cascade: c, opts: opts}
}

func (d *CascadeDetector) Detect(img image.Image) ([]BoundingBox, error) {
	return d.DetectGray(ToGray(img)), nil
}

// DetectGray returns every face the cascade confirms, after clustering.
func (d *CascadeDetector) DetectGray(g *image.Gray) []BoundingBox {
	imgW, imgH := g.Bounds().Dx(), g.Bounds().Dy()
	cw, ch := d.cascade.Width, d.cascade.Height

	var hits []BoundingBox
	for factor := 1.0; ; factor *= d.opts.ScaleFactor {
		winW := int(math.Round(float64(cw) * factor))
		winH := int(math.Round(float64(ch) * factor))
		sw := int(math.Round(float64(imgW) / factor))
		sh := int(math.Round(float64(imgH) / factor))
		if sw < cw || sh < ch || winW > imgW || winH > imgH {
			break
		}
		if winW < d.opts.MinSize || winH < d.opts.MinSize {
			continue
		}

		scaled := g
		if sw != imgW || sh != imgH {
			scaled = ToGray(resize.Resize(uint(sw), uint(sh), g, resize.Bilinear))
		}
		ii := newIntegral(scaled)

		step := 2
		if factor > 2 {
			step = 1
		}
		for y := 0; y <= sh-ch; y += step {
			for x := 0; x <= sw-cw; x += step {
				if d.cascade.evaluate(ii, x, y) {
					hits = append(hits, BoundingBox{
						X:      int(math.Round(float64(x) * factor)),
						Y:      int(math.Round(float64(y) * factor)),
						Width:  winW,
						Height: winH,
					})
				}
			}
		}
	}

	return filterMinSize(groupRectangles(hits, d.opts.MinNeighbors, d.opts.GroupEps), d.opts.MinSize)
}
