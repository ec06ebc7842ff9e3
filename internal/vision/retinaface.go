package vision

import (
	"fmt"
	"image"
	"math"
	"sort"
	"sync"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
)

// candidate is one raw RetinaFace hit before suppression.
type candidate struct {
	BBox       [4]float32 // x1, y1, x2, y2 in source pixels
	Confidence float32
}

// RetinaFaceDetector runs the det_10g RetinaFace model through ONNX Runtime.
// The ONNX environment must be initialised by the caller.
type RetinaFaceDetector struct {
	mu            sync.Mutex // session tensors are shared between runs
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	threshold     float32
	minSize       int
	inputW        int
	inputH        int
}

var retinaStrides = []int{8, 16, 32}

const anchorsPerStride = 2

func NewRetinaFaceDetector(modelPath string, threshold float32, minSize int) (*RetinaFaceDetector, error) {
	inputW, inputH := 640, 640

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// scores, then boxes, per stride; (640/s)^2 * 2 anchors rows each.
	outputs := []struct {
		name  string
		shape ort.Shape
	}{
		{"448", ort.NewShape(12800, 1)},
		{"471", ort.NewShape(3200, 1)},
		{"494", ort.NewShape(800, 1)},
		{"451", ort.NewShape(12800, 4)},
		{"474", ort.NewShape(3200, 4)},
		{"497", ort.NewShape(800, 4)},
	}

	names := make([]string, len(outputs))
	tensors := make([]*ort.Tensor[float32], len(outputs))
	values := make([]ort.Value, len(outputs))
	destroy := func() {
		inputTensor.Destroy()
		for _, t := range tensors {
			if t != nil {
				t.Destroy()
			}
		}
	}

	for i, o := range outputs {
		t, err := ort.NewEmptyTensor[float32](o.shape)
		if err != nil {
			destroy()
			return nil, fmt.Errorf("create output tensor %s: %w", o.name, err)
		}
		names[i] = o.name
		tensors[i] = t
		values[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath, []string{"input.1"}, names,
		[]ort.Value{inputTensor}, values, nil)
	if err != nil {
		destroy()
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &RetinaFaceDetector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: tensors,
		threshold:     threshold,
		minSize:       minSize,
		inputW:        inputW,
		inputH:        inputH,
	}, nil
}

func (d *RetinaFaceDetector) Detect(img image.Image) ([]BoundingBox, error) {
	b := img.Bounds()
	input := imageToCHW(img, d.inputW, d.inputH)

	d.mu.Lock()
	copy(d.inputTensor.GetData(), input)
	if err := d.session.Run(); err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("run detection: %w", err)
	}
	cands := d.decode(b.Dx(), b.Dy())
	d.mu.Unlock()

	cands = nms(cands, 0.4)
	boxes := make([]BoundingBox, 0, len(cands))
	for _, c := range cands {
		boxes = append(boxes, c.box())
	}
	return filterMinSize(boxes, d.minSize), nil
}

// decode turns anchor-relative distances at strides 8, 16, 32 into boxes
// scaled back to the source image.
func (d *RetinaFaceDetector) decode(origW, origH int) []candidate {
	var out []candidate
	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	for si, stride := range retinaStrides {
		scores := d.outputTensors[si].GetData()
		bboxes := d.outputTensors[si+len(retinaStrides)].GetData()
		st := float32(stride)

		idx := 0
		for cy := 0; cy < d.inputH/stride; cy++ {
			for cx := 0; cx < d.inputW/stride; cx++ {
				for a := 0; a < anchorsPerStride; a++ {
					if scores[idx] >= d.threshold {
						ax, ay := float32(cx)*st, float32(cy)*st
						out = append(out, candidate{
							BBox: [4]float32{
								clampF((ax-bboxes[idx*4+0]*st)*scaleW, 0, float32(origW)),
								clampF((ay-bboxes[idx*4+1]*st)*scaleH, 0, float32(origH)),
								clampF((ax+bboxes[idx*4+2]*st)*scaleW, 0, float32(origW)),
								clampF((ay+bboxes[idx*4+3]*st)*scaleH, 0, float32(origH)),
							},
							Confidence: scores[idx],
						})
					}
					idx++
				}
			}
		}
	}
	return out
}

func (d *RetinaFaceDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
		d.inputTensor = nil
	}
	for i, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
			d.outputTensors[i] = nil
		}
	}
}

func (c candidate) box() BoundingBox {
	x1 := int(math.Round(float64(c.BBox[0])))
	y1 := int(math.Round(float64(c.BBox[1])))
	x2 := int(math.Round(float64(c.BBox[2])))
	y2 := int(math.Round(float64(c.BBox[3])))
	return BoundingBox{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// imageToCHW resizes img and lays it out as normalised [3][h][w] RGB floats.
func imageToCHW(img image.Image, w, h int) []float32 {
	resized := resize.Resize(uint(w), uint(h), img, resize.Bilinear)
	b := resized.Bounds()
	data := make([]float32, 3*w*h)
	plane := w * h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*w + x
			data[i] = (float32(r>>8) - 127.5) / 128
			data[plane+i] = (float32(g>>8) - 127.5) / 128
			data[2*plane+i] = (float32(bl>>8) - 127.5) / 128
		}
	}
	return data
}

// nms keeps the most confident candidates, discarding any that overlap a
// kept one by more than iouThreshold.
func nms(cands []candidate, iouThreshold float32) []candidate {
	if len(cands) == 0 {
		return cands
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Confidence > cands[j].Confidence
	})

	keep := make([]bool, len(cands))
	for i := range keep {
		keep[i] = true
	}
	for i := range cands {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(cands); j++ {
			if keep[j] && iou(cands[i].BBox, cands[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var out []candidate
	for i, c := range cands {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}

func iou(a, b [4]float32) float32 {
	x1 := max(a[0], b[0])
	y1 := max(a[1], b[1])
	x2 := min(a[2], b[2])
	y2 := min(a[3], b[3])

	inter := max(0, x2-x1) * max(0, y2-y1)
	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
