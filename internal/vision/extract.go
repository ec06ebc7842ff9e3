package vision

import (
	"errors"
	"fmt"
	"image"

	"github.com/nfnt/resize"

	"github.com/your-org/faceattend/internal/config"
)

// ErrExtraction is returned when a face region cannot be turned into a descriptor.
var ErrExtraction = errors.New("descriptor extraction failed")

// Extractor turns a detected face into a fixed-length HOG descriptor:
// pad the box, crop, resize to the HOG window, equalize, compute HOG.
type Extractor struct {
	padding float64
	hog     HOG
}

func NewExtractor(padding float64, hog HOG) (*Extractor, error) {
	if padding < 0 {
		return nil, fmt.Errorf("%w: negative padding %v", ErrExtraction, padding)
	}
	if err := hog.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return &Extractor{padding: padding, hog: hog}, nil
}

// NewExtractorFromConfig builds the extractor described by the vision config.
func NewExtractorFromConfig(cfg config.VisionConfig) (*Extractor, error) {
	return NewExtractor(cfg.PaddingRatio, HOG{
		WinWidth:    cfg.CropWidth,
		WinHeight:   cfg.CropHeight,
		BlockSize:   cfg.BlockSize,
		BlockStride: cfg.BlockStride,
		CellSize:    cfg.CellSize,
		Bins:        cfg.Bins,
	})
}

// Len is the length of every descriptor this extractor produces.
func (e *Extractor) Len() int {
	return e.hog.Len()
}

func (e *Extractor) Extract(img image.Image, box BoundingBox) ([]float32, error) {
	return e.ExtractGray(ToGray(img), box)
}

// ExtractGray is Extract for an image already converted with ToGray.
func (e *Extractor) ExtractGray(g *image.Gray, box BoundingBox) ([]float32, error) {
	region, err := e.Region(g.Bounds(), box)
	if err != nil {
		return nil, err
	}

	face := crop(g, region)
	if face.Bounds().Dx() != e.hog.WinWidth || face.Bounds().Dy() != e.hog.WinHeight {
		face = ToGray(resize.Resize(uint(e.hog.WinWidth), uint(e.hog.WinHeight), face, resize.Bilinear))
	}

	desc, err := e.hog.Compute(EqualizeHist(face))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return desc, nil
}

// Region expands box by the padding ratio on each side and clamps it to bounds.
func (e *Extractor) Region(bounds image.Rectangle, box BoundingBox) (image.Rectangle, error) {
	if box.Width <= 0 || box.Height <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: degenerate box %dx%d", ErrExtraction, box.Width, box.Height)
	}

	padW := int(float64(box.Width) * e.padding)
	padH := int(float64(box.Height) * e.padding)
	r := image.Rect(box.X-padW, box.Y-padH, box.X+box.Width+padW, box.Y+box.Height+padH)
	r = r.Intersect(bounds)
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: box %v lies outside image %v", ErrExtraction, box.Rect(), bounds)
	}
	return r, nil
}
