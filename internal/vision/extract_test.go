package vision

import (
	"errors"
	"image"
	"reflect"
	"testing"

	"github.com/your-org/faceattend/internal/config"
)

var fullFrame = BoundingBox{X: 6, Y: 6, Width: 116, Height: 116}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractorFromConfig(config.Default().Vision)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestExtractor_DistinguishesFaces(t *testing.T) {
	e := newTestExtractor(t)
	alice, err := e.Extract(stripes(128, 128, 16, 40, 200, true), fullFrame)
	if err != nil {
		t.Fatal(err)
	}
	bob, err := e.Extract(stripes(128, 128, 16, 40, 200, false), fullFrame)
	if err != nil {
		t.Fatal(err)
	}
	if len(alice) != 8100 || len(bob) != 8100 {
		t.Fatalf("lengths %d, %d", len(alice), len(bob))
	}
	if d := distance(alice, bob); d <= 1.5 {
		t.Errorf("alice/bob distance %v within match threshold", d)
	}
}

func TestExtractor_LightingInvariant(t *testing.T) {
	e := newTestExtractor(t)
	dim, _ := e.Extract(stripes(128, 128, 16, 40, 200, true), fullFrame)
	bright, _ := e.Extract(stripes(128, 128, 16, 90, 230, true), fullFrame)
	if !reflect.DeepEqual(dim, bright) {
		t.Errorf("relit image produced a different descriptor (distance %v)", distance(dim, bright))
	}
}

func TestExtractor_ResizesLargeFaces(t *testing.T) {
	e := newTestExtractor(t)
	desc, err := e.Extract(stripes(400, 300, 20, 0, 255, true), BoundingBox{X: 100, Y: 50, Width: 180, Height: 200})
	if err != nil {
		t.Fatal(err)
	}
	if len(desc) != e.Len() {
		t.Errorf("len = %d, want %d", len(desc), e.Len())
	}
}

func TestExtractor_Region(t *testing.T) {
	e := newTestExtractor(t)
	bounds := image.Rect(0, 0, 300, 300)

	r, err := e.Region(bounds, BoundingBox{X: 50, Y: 50, Width: 100, Height: 100})
	if err != nil {
		t.Fatal(err)
	}
	if want := image.Rect(40, 40, 160, 160); r != want {
		t.Errorf("region = %v, want %v", r, want)
	}

	r, _ = e.Region(bounds, BoundingBox{X: 0, Y: 250, Width: 100, Height: 100})
	if want := image.Rect(0, 240, 110, 300); r != want {
		t.Errorf("clamped region = %v, want %v", r, want)
	}

	for _, box := range []BoundingBox{
		{X: 10, Y: 10, Width: 0, Height: 10},
		{X: 1000, Y: 1000, Width: 50, Height: 50},
	} {
		if _, err := e.Region(bounds, box); !errors.Is(err, ErrExtraction) {
			t.Errorf("box %+v: err = %v, want ErrExtraction", box, err)
		}
	}
}

func TestNewExtractor_Invalid(t *testing.T) {
	if _, err := NewExtractor(-0.1, DefaultHOG()); err == nil {
		t.Error("negative padding accepted")
	}
	h := DefaultHOG()
	h.WinWidth = 100
	if _, err := NewExtractor(0.1, h); !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
}
