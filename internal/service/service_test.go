package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/faceattend/internal/attendance"
	"github.com/your-org/faceattend/internal/config"
	"github.com/your-org/faceattend/internal/matching"
	"github.com/your-org/faceattend/internal/models"
	"github.com/your-org/faceattend/internal/storage"
	"github.com/your-org/faceattend/internal/vision"
)

// stripeDetector reports one face covering a 128x128 image, none for a
// flat image and two for anything wider than tall.
type stripeDetector struct{}

func (stripeDetector) Detect(img image.Image) ([]vision.BoundingBox, error) {
	b := img.Bounds()
	face := vision.BoundingBox{X: 6, Y: 6, Width: 116, Height: 116}
	switch {
	case b.Dx() > b.Dy():
		return []vision.BoundingBox{face, {X: 140, Y: 6, Width: 116, Height: 116}}, nil
	case flat(img):
		return nil, nil
	default:
		return []vision.BoundingBox{face}, nil
	}
}

func flat(img image.Image) bool {
	b := img.Bounds()
	first := img.At(b.Min.X, b.Min.Y)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.At(x, y) != first {
				return false
			}
		}
	}
	return true
}

func stripes(w, h int, lo, hi uint8, vertical bool) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			k := y
			if vertical {
				k = x
			}
			v := lo
			if (k/8)%2 == 1 {
				v = hi
			}
			g.Pix[y*g.Stride+x] = v
		}
	}
	return g
}

func encode(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

var (
	alicePhoto      = stripes(128, 128, 40, 200, true)
	aliceRelitPhoto = stripes(128, 128, 90, 230, true)
	bobPhoto        = stripes(128, 128, 40, 200, false)
	crowdPhoto      = stripes(300, 128, 40, 200, true)
	emptyPhoto      = image.NewGray(image.Rect(0, 0, 128, 128))
)

type recorder struct {
	mu     sync.Mutex
	events []*models.AttendanceEvent
}

func (r *recorder) PublishAttendance(_ context.Context, ev *models.AttendanceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type fixture struct {
	svc    *Service
	store  *storage.MemoryStore
	photos *storage.MemoryPhotos
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	ext, err := vision.NewExtractorFromConfig(cfg.Vision)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{store: storage.NewMemoryStore(), photos: storage.NewMemoryPhotos(), events: &recorder{}}
	f.svc = New(Deps{
		Store:            f.store,
		Detector:         stripeDetector{},
		Extractor:        ext,
		Engine:           matching.NewEngine(cfg.Matching.Threshold, cfg.Matching.ParallelMin),
		Resolver:         attendance.NewResolver(f.store, cfg.Attendance),
		Photos:           f.photos,
		Events:           f.events,
		MaxImageBytes:    cfg.Vision.MaxImageBytes,
		StorePunchPhotos: true,
	})
	return f
}

func (f *fixture) register(t *testing.T, name string, img image.Image) *models.Employee {
	t.Helper()
	e, err := f.svc.Register(context.Background(), Registration{
		Name: name, Email: strings.ToLower(name) + "@example.com", Phone: "555", Department: "Ops", Photo: encode(t, img),
	})
	if err != nil {
		t.Fatalf("Register %s: %v", name, err)
	}
	return e
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	e := f.register(t, "Alice", alicePhoto)

	if len(e.Descriptor) != 8100 {
		t.Errorf("descriptor len = %d", len(e.Descriptor))
	}
	if !strings.HasPrefix(e.PhotoKey, "employees/"+e.ID.String()+"/") || !strings.HasSuffix(e.PhotoKey, ".png") {
		t.Errorf("photo key = %q", e.PhotoKey)
	}
	data, ct, err := f.svc.EmployeePhoto(context.Background(), e.ID)
	if err != nil || ct != "image/png" || len(data) == 0 {
		t.Errorf("EmployeePhoto = %d bytes, %q, %v", len(data), ct, err)
	}
}

func TestRegister_Rejections(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Alice", alicePhoto)

	tests := []struct {
		name  string
		reg   Registration
		check error
	}{
		{"bad base64", Registration{Name: "X", Email: "x@example.com", Photo: "@@@"}, vision.ErrDecode},
		{"no face", Registration{Name: "X", Email: "x@example.com", Photo: encode(t, emptyPhoto)}, vision.ErrNoFace},
		{"two faces", Registration{Name: "X", Email: "x@example.com", Photo: encode(t, crowdPhoto)}, vision.ErrMultipleFaces},
		{"duplicate email", Registration{Name: "A2", Email: "alice@example.com", Photo: encode(t, bobPhoto)}, storage.ErrDuplicateEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Register(context.Background(), tt.reg); !errors.Is(err, tt.check) {
				t.Fatalf("err = %v, want %v", err, tt.check)
			}
		})
	}

	list, _ := f.svc.Employees(context.Background())
	if len(list) != 1 {
		t.Errorf("rejected registrations were stored: %d employees", len(list))
	}
}

func TestRecognize_AliceAndBob(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", alicePhoto)
	bob := f.register(t, "Bob", bobPhoto)
	ctx := context.Background()

	out, err := f.svc.Recognize(ctx, encode(t, aliceRelitPhoto))
	if err != nil {
		t.Fatal(err)
	}
	if !out.Recognized() || out.EmployeeID != alice.ID {
		t.Fatalf("relit alice: %+v", out)
	}
	if out.Distance >= 1.5 || out.Confidence <= 0 {
		t.Errorf("distance %v confidence %v", out.Distance, out.Confidence)
	}
	if out.Event.Direction != models.DirectionIn || out.Message() != "Welcome Alice! Punched IN successfully." {
		t.Errorf("event %+v message %q", out.Event, out.Message())
	}

	out, err = f.svc.Recognize(ctx, encode(t, bobPhoto))
	if err != nil {
		t.Fatal(err)
	}
	if !out.Recognized() || out.EmployeeID != bob.ID || out.Distance > 1e-6 {
		t.Fatalf("bob: %+v", out)
	}

	out, _ = f.svc.Recognize(ctx, encode(t, alicePhoto))
	if out.Event.Direction != models.DirectionOut || out.Message() != "Welcome Alice! Punched OUT successfully." {
		t.Errorf("second alice punch: %+v", out.Event)
	}

	if n := len(f.events.events); n != 3 {
		t.Errorf("published %d events, want 3", n)
	}
	history, _ := f.svc.History(ctx, alice.ID, 0)
	if len(history) != 2 || history[0].PhotoKey == "" || history[0].Distance == nil {
		t.Errorf("history = %+v", history)
	}
}

func TestRecognize_Outcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Recognize(ctx, encode(t, alicePhoto))
	if err != nil || out.Kind != OutcomeNoGallery || out.Message() != "No registered employees found" {
		t.Fatalf("empty gallery: %+v, %v", out, err)
	}

	f.register(t, "Alice", alicePhoto)

	out, err = f.svc.Recognize(ctx, encode(t, emptyPhoto))
	if err != nil || out.Kind != OutcomeNoFace || out.Recognized() {
		t.Fatalf("no face: %+v, %v", out, err)
	}
	out, err = f.svc.Recognize(ctx, encode(t, crowdPhoto))
	if err != nil || out.Kind != OutcomeMultipleFaces {
		t.Fatalf("crowd: %+v, %v", out, err)
	}
	out, err = f.svc.Recognize(ctx, encode(t, bobPhoto))
	if err != nil || out.Kind != OutcomeNoMatch || out.Distance <= 1.5 {
		t.Fatalf("stranger: %+v, %v", out, err)
	}
	if out.Message() != "Face not recognized. Please contact admin for registration." {
		t.Errorf("message = %q", out.Message())
	}

	if _, err := f.svc.Recognize(ctx, "not an image"); !errors.Is(err, vision.ErrDecode) {
		t.Errorf("garbage: err = %v", err)
	}
	if len(f.events.events) != 0 {
		t.Errorf("unrecognized probes published %d events", len(f.events.events))
	}
}

func TestRecognize_ConcurrentSameEmployee(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "Alice", alicePhoto)
	photo := encode(t, alicePhoto)

	var wg sync.WaitGroup
	outs := make([]*Outcome, 2)
	for i := range outs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.svc.Recognize(context.Background(), photo)
			if err != nil {
				t.Errorf("Recognize: %v", err)
				return
			}
			outs[i] = out
		}()
	}
	wg.Wait()

	dirs := map[models.Direction]int{}
	for _, o := range outs {
		if o == nil || o.EmployeeID != alice.ID {
			t.Fatalf("outcome %+v", o)
		}
		dirs[o.Event.Direction]++
	}
	if dirs[models.DirectionIn] != 1 || dirs[models.DirectionOut] != 1 {
		t.Fatalf("directions %v", dirs)
	}
}

func TestReplaceFace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "Alice", alicePhoto)
	oldKey := alice.PhotoKey

	updated, err := f.svc.ReplaceFace(ctx, alice.ID, encode(t, bobPhoto))
	if err != nil {
		t.Fatal(err)
	}
	if updated.PhotoKey == oldKey || updated.PhotoKey == "" {
		t.Errorf("photo key not replaced: %q", updated.PhotoKey)
	}
	if _, _, err := f.photos.GetPhoto(ctx, oldKey); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("old photo still archived: %v", err)
	}

	out, _ := f.svc.Recognize(ctx, encode(t, bobPhoto))
	if !out.Recognized() || out.EmployeeID != alice.ID {
		t.Fatalf("new face not matched: %+v", out)
	}

	if _, err := f.svc.ReplaceFace(ctx, uuid.New(), encode(t, bobPhoto)); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown employee: err = %v", err)
	}
	if _, err := f.svc.ReplaceFace(ctx, alice.ID, encode(t, emptyPhoto)); !errors.Is(err, vision.ErrNoFace) {
		t.Errorf("no face: err = %v", err)
	}
}

func TestPunchAndLast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "Alice", alicePhoto)

	last, next, err := f.svc.LastAttendance(ctx, alice.ID)
	if err != nil || last != nil || next != models.DirectionIn {
		t.Fatalf("fresh: %v %s %v", last, next, err)
	}

	ev, err := f.svc.Punch(ctx, alice.ID, models.DirectionIn)
	if err != nil || ev.Source != models.SourceManual || ev.EmployeeName != "Alice" {
		t.Fatalf("punch in: %+v, %v", ev, err)
	}
	if _, err := f.svc.Punch(ctx, alice.ID, models.DirectionIn); !errors.Is(err, attendance.ErrInvalidTransition) {
		t.Fatalf("double in: err = %v", err)
	}

	last, next, _ = f.svc.LastAttendance(ctx, alice.ID)
	if last == nil || last.ID != ev.ID || next != models.DirectionOut {
		t.Fatalf("after in: %+v %s", last, next)
	}

	if _, err := f.svc.Punch(ctx, uuid.New(), models.DirectionIn); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown employee: err = %v", err)
	}
}
