// Package service runs the registration and recognition flows on top of
// the vision, matching, storage and attendance packages.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/faceattend/internal/attendance"
	"github.com/your-org/faceattend/internal/matching"
	"github.com/your-org/faceattend/internal/models"
	"github.com/your-org/faceattend/internal/observability"
	"github.com/your-org/faceattend/internal/storage"
	"github.com/your-org/faceattend/internal/vision"
)

// DefaultHistoryLimit caps attendance history responses.
const DefaultHistoryLimit = 100

// PhotoArchive stores the photos behind registrations and punches.
type PhotoArchive interface {
	PutPhoto(ctx context.Context, key string, data []byte, contentType string) error
	GetPhoto(ctx context.Context, key string) ([]byte, string, error)
	DeletePhoto(ctx context.Context, key string) error
}

// EventPublisher fans recorded attendance out to live consumers.
type EventPublisher interface {
	PublishAttendance(ctx context.Context, ev *models.AttendanceEvent) error
}

type Deps struct {
	Store     storage.Store
	Detector  vision.Detector
	Extractor *vision.Extractor
	Engine    *matching.Engine
	Resolver  *attendance.Resolver
	// Photos and Events are optional.
	Photos PhotoArchive
	Events EventPublisher

	MaxImageBytes    int
	MaxImagePixels   int
	StorePunchPhotos bool
}

type Service struct {
	Deps
}

func New(d Deps) *Service {
	return &Service{Deps: d}
}

// Registration is an enrollment request with a base64 photo.
type Registration struct {
	Name       string
	Email      string
	Phone      string
	Department string
	Photo      string
}

func observe(stage string, start time.Time) {
	observability.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// describe runs decode, detect, the one-face policy and extraction.
func (s *Service) describe(photo string) (*vision.Decoded, []float32, error) {
	start := time.Now()
	img, err := vision.DecodeBase64(photo, vision.Limits{
		MaxBytes:  s.MaxImageBytes,
		MaxPixels: s.MaxImagePixels,
	})
	observe("decode", start)
	if err != nil {
		return nil, nil, err
	}

	start = time.Now()
	boxes, err := s.Detector.Detect(img.Image)
	observe("detect", start)
	if err != nil {
		return nil, nil, fmt.Errorf("detect: %w", err)
	}
	observability.FacesDetected.Observe(float64(len(boxes)))
	box, err := vision.SingleFace(boxes)
	if err != nil {
		return nil, nil, err
	}

	start = time.Now()
	desc, err := s.Extractor.Extract(img.Image, box)
	observe("extract", start)
	if err != nil {
		return nil, nil, err
	}
	return img, desc, nil
}

func photoKey(prefix string, id uuid.UUID, img *vision.Decoded) string {
	ext := img.Format
	if ext == "jpeg" {
		ext = "jpg"
	}
	return fmt.Sprintf("%s/%s/%s_%s.%s", prefix, id, time.Now().UTC().Format("20060102_150405"),
		uuid.NewString()[:8], ext)
}

// archive stores the photo and returns its key, or "" when archiving is
// disabled or failed. Photos are never required for attendance to work.
func (s *Service) archive(ctx context.Context, prefix string, id uuid.UUID, img *vision.Decoded) string {
	if s.Photos == nil {
		return ""
	}
	key := photoKey(prefix, id, img)
	if err := s.Photos.PutPhoto(ctx, key, img.Data, img.ContentType()); err != nil {
		slog.Warn("archive photo", "key", key, "error", err)
		return ""
	}
	return key
}

func (s *Service) discard(ctx context.Context, key string) {
	if key == "" || s.Photos == nil {
		return
	}
	if err := s.Photos.DeletePhoto(ctx, key); err != nil {
		slog.Warn("delete photo", "key", key, "error", err)
	}
}

// Register enrolls a new employee from a photo containing exactly one face.
func (s *Service) Register(ctx context.Context, r Registration) (*models.Employee, error) {
	img, desc, err := s.describe(r.Photo)
	if err != nil {
		return nil, err
	}

	e := &models.Employee{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(r.Name),
		Email:      strings.TrimSpace(r.Email),
		Phone:      strings.TrimSpace(r.Phone),
		Department: strings.TrimSpace(r.Department),
		Descriptor: desc,
	}
	e.PhotoKey = s.archive(ctx, "employees", e.ID, img)

	start := time.Now()
	err = s.Store.Enroll(ctx, e)
	observe("store", start)
	if err != nil {
		s.discard(ctx, e.PhotoKey)
		return nil, err
	}

	slog.Info("employee registered", "employee_id", e.ID, "name", e.Name, "descriptor_len", len(desc))
	return e, nil
}

// ReplaceFace re-enrolls an existing employee with a new photo.
func (s *Service) ReplaceFace(ctx context.Context, id uuid.UUID, photo string) (*models.Employee, error) {
	prev, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	img, desc, err := s.describe(photo)
	if err != nil {
		return nil, err
	}

	key := s.archive(ctx, "employees", id, img)
	if err := s.Store.ReplaceDescriptor(ctx, id, desc, key); err != nil {
		s.discard(ctx, key)
		return nil, err
	}
	s.discard(ctx, prev.PhotoKey)

	slog.Info("employee face replaced", "employee_id", id)
	return s.Store.Get(ctx, id)
}

// Recognize identifies the single face in photo and records attendance
// for the matched employee. Non-matches are outcomes, not errors.
func (s *Service) Recognize(ctx context.Context, photo string) (*Outcome, error) {
	img, desc, err := s.describe(photo)
	switch {
	case errors.Is(err, vision.ErrNoFace):
		return s.outcome(&Outcome{Kind: OutcomeNoFace}), nil
	case errors.Is(err, vision.ErrMultipleFaces):
		return s.outcome(&Outcome{Kind: OutcomeMultipleFaces}), nil
	case err != nil:
		return nil, err
	}
	out := &Outcome{Faces: 1}

	start := time.Now()
	gallery, err := s.Store.Gallery(ctx)
	observe("gallery", start)
	if err != nil {
		return nil, err
	}
	observability.GallerySize.Set(float64(len(gallery)))
	if len(gallery) == 0 {
		out.Kind = OutcomeNoGallery
		return s.outcome(out), nil
	}

	start = time.Now()
	res, err := s.Engine.Match(ctx, desc, gallery)
	observe("match", start)
	if err != nil {
		return nil, err
	}
	observability.MatchDistance.Observe(res.Distance)
	slog.Debug("best candidate", "distance", res.Distance, "matched", res.Matched, "ambiguous", res.Ambiguous)

	out.Distance = res.Distance
	if !res.Matched {
		out.Kind = OutcomeNoMatch
		return s.outcome(out), nil
	}
	if res.Ambiguous {
		slog.Warn("ambiguous match resolved by lowest id", "employee_id", res.EmployeeID, "distance", res.Distance)
	}

	var key string
	if s.StorePunchPhotos {
		key = s.archive(ctx, "punches", res.EmployeeID, img)
	}
	dist := res.Distance
	start = time.Now()
	ev, err := s.Resolver.Record(ctx, attendance.Punch{
		EmployeeID:   res.EmployeeID,
		EmployeeName: res.Name,
		Source:       models.SourceRecognition,
		Distance:     &dist,
		PhotoKey:     key,
	})
	observe("store", start)
	if err != nil {
		s.discard(ctx, key)
		return nil, err
	}
	s.publish(ctx, ev)

	out.Kind = OutcomeRecognized
	out.EmployeeID = res.EmployeeID
	out.EmployeeName = res.Name
	out.Event = ev
	out.Confidence = res.Confidence
	out.Ambiguous = res.Ambiguous
	return s.outcome(out), nil
}

func (s *Service) outcome(o *Outcome) *Outcome {
	observability.RecognitionOutcomes.WithLabelValues(string(o.Kind)).Inc()
	if o.Kind == OutcomeRecognized {
		slog.Info("face recognized", "employee_id", o.EmployeeID, "name", o.EmployeeName,
			"direction", o.Event.Direction, "distance", o.Distance)
	} else {
		slog.Info("face not recognized", "outcome", o.Kind, "distance", o.Distance)
	}
	return o
}

func (s *Service) publish(ctx context.Context, ev *models.AttendanceEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishAttendance(ctx, ev); err != nil {
		slog.Error("publish attendance", "event_id", ev.ID, "error", err)
	}
}

// Punch records a manual attendance event. want must follow the history.
func (s *Service) Punch(ctx context.Context, employeeID uuid.UUID, want models.Direction) (*models.AttendanceEvent, error) {
	e, err := s.Store.Get(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	ev, err := s.Resolver.Record(ctx, attendance.Punch{
		EmployeeID:   e.ID,
		EmployeeName: e.Name,
		Source:       models.SourceManual,
		Want:         want,
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, ev)
	slog.Info("manual punch", "employee_id", e.ID, "direction", ev.Direction)
	return ev, nil
}

func (s *Service) Employees(ctx context.Context) ([]models.Employee, error) {
	return s.Store.List(ctx)
}

func (s *Service) Employee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	return s.Store.Get(ctx, id)
}

// EmployeePhoto returns the archived registration photo.
func (s *Service) EmployeePhoto(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	e, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if s.Photos == nil || e.PhotoKey == "" {
		return nil, "", storage.ErrObjectNotFound
	}
	return s.Photos.GetPhoto(ctx, e.PhotoKey)
}

// LastAttendance returns the latest event (nil when none) and the
// direction the next punch will take.
func (s *Service) LastAttendance(ctx context.Context, employeeID uuid.UUID) (*models.AttendanceEvent, models.Direction, error) {
	last, err := s.Store.LastAttendance(ctx, employeeID)
	if err != nil {
		return nil, "", err
	}
	return last, attendance.Next(last), nil
}

func (s *Service) History(ctx context.Context, employeeID uuid.UUID, limit int) ([]models.AttendanceEvent, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	return s.Store.ListAttendance(ctx, employeeID, limit)
}

// Ready reports whether the backing store answers.
func (s *Service) Ready(ctx context.Context) error {
	return s.Store.Ping(ctx)
}
