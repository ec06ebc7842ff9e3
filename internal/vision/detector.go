package vision

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/your-org/faceattend/internal/config"
)

var (
	// ErrNoFace means the detector found nothing in the image.
	ErrNoFace = errors.New("no face detected")
	// ErrMultipleFaces means more than one face was found where exactly one is required.
	ErrMultipleFaces = errors.New("multiple faces detected")
)

// BoundingBox is a face region in pixel coordinates relative to the image origin.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

func (b BoundingBox) Area() int {
	return b.Width * b.Height
}

// Detector locates faces. Implementations return every candidate they find;
// the caller decides how many faces are acceptable.
type Detector interface {
	Detect(img image.Image) ([]BoundingBox, error)
}

// NewDetector builds the backend selected by cfg.Detector.
func NewDetector(cfg config.VisionConfig) (Detector, error) {
	switch cfg.Detector {
	case "haar", "":
		cascade, err := LoadCascadeFile(cfg.CascadePath)
		if err != nil {
			return nil, fmt.Errorf("load haar cascade: %w", err)
		}
		return NewCascadeDetector(cascade, CascadeOptions{
			ScaleFactor:  cfg.ScaleFactor,
			MinNeighbors: cfg.MinNeighbors,
			MinSize:      cfg.MinFaceSize,
		}), nil
	case "retinaface":
		det, err := NewRetinaFaceDetector(
			filepath.Join(cfg.ModelsDir, "det_10g.onnx"),
			float32(cfg.DetectionThreshold),
			cfg.MinFaceSize,
		)
		if err != nil {
			return nil, fmt.Errorf("load retinaface: %w", err)
		}
		return det, nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Detector)
	}
}

// SingleFace enforces the exactly-one-face policy used by both the
// registration and the recognition flows.
func SingleFace(boxes []BoundingBox) (BoundingBox, error) {
	switch len(boxes) {
	case 0:
		return BoundingBox{}, ErrNoFace
	case 1:
		return boxes[0], nil
	default:
		return BoundingBox{}, fmt.Errorf("%w: found %d", ErrMultipleFaces, len(boxes))
	}
}

// filterMinSize drops boxes smaller than min on either side.
func filterMinSize(boxes []BoundingBox, min int) []BoundingBox {
	out := boxes[:0]
	for _, b := range boxes {
		if b.Width >= min && b.Height >= min {
			out = append(out, b)
		}
	}
	return out
}
