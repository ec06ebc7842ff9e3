package storage

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/your-org/faceattend/internal/matching"
	"github.com/your-org/faceattend/internal/models"
)

// MemoryStore keeps everything in sharded concurrent maps. It is the
// default backend for single-node deployments and for tests.
type MemoryStore struct {
	employees  cmap.ConcurrentMap[string, *models.Employee]
	emails     cmap.ConcurrentMap[string, string]
	attendance cmap.ConcurrentMap[string, []models.AttendanceEvent]
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		employees:  cmap.New[*models.Employee](),
		emails:     cmap.New[string](),
		attendance: cmap.New[[]models.AttendanceEvent](),
		now:        time.Now,
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *MemoryStore) Enroll(_ context.Context, e *models.Employee) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	e.UpdatedAt = e.CreatedAt

	if key := emailKey(e.Email); key != "" {
		if !s.emails.SetIfAbsent(key, e.ID.String()) {
			return ErrDuplicateEmail
		}
	}
	s.employees.Set(e.ID.String(), e.Clone())
	return nil
}

func (s *MemoryStore) ReplaceDescriptor(_ context.Context, id uuid.UUID, descriptor []float32, photoKey string) error {
	cur, ok := s.employees.Get(id.String())
	if !ok {
		return ErrNotFound
	}
	next := cur.Clone()
	next.Descriptor = append([]float32(nil), descriptor...)
	next.PhotoKey = photoKey
	next.UpdatedAt = s.now().UTC()
	s.employees.Set(id.String(), next)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Employee, error) {
	e, ok := s.employees.Get(id.String())
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.Employee, error) {
	out := make([]models.Employee, 0, s.employees.Count())
	for item := range s.employees.IterBuffered() {
		e := *item.Val
		e.Descriptor = nil
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *MemoryStore) Gallery(_ context.Context) ([]matching.Candidate, error) {
	out := make([]matching.Candidate, 0, s.employees.Count())
	for item := range s.employees.IterBuffered() {
		e := item.Val
		if len(e.Descriptor) == 0 {
			continue
		}
		out = append(out, matching.Candidate{EmployeeID: e.ID, Name: e.Name, Descriptor: e.Descriptor})
	}
	return out, nil
}

func (s *MemoryStore) LastAttendance(_ context.Context, employeeID uuid.UUID) (*models.AttendanceEvent, error) {
	events, ok := s.attendance.Get(employeeID.String())
	if !ok || len(events) == 0 {
		return nil, nil
	}
	last := events[len(events)-1]
	return &last, nil
}

func (s *MemoryStore) AppendAttendance(_ context.Context, ev *models.AttendanceEvent, expectedPrev *uuid.UUID) error {
	if !s.employees.Has(ev.EmployeeID.String()) {
		return ErrNotFound
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now().UTC()
	}

	conflict := false
	s.attendance.Upsert(ev.EmployeeID.String(), nil,
		func(exist bool, cur, _ []models.AttendanceEvent) []models.AttendanceEvent {
			var last *uuid.UUID
			if exist && len(cur) > 0 {
				last = &cur[len(cur)-1].ID
			}
			if !sameID(last, expectedPrev) {
				conflict = true
				return cur
			}
			next := make([]models.AttendanceEvent, len(cur), len(cur)+1)
			copy(next, cur)
			return append(next, *ev)
		})
	if conflict {
		return ErrConflict
	}
	return nil
}

func (s *MemoryStore) ListAttendance(_ context.Context, employeeID uuid.UUID, limit int) ([]models.AttendanceEvent, error) {
	events, _ := s.attendance.Get(employeeID.String())
	n := len(events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.AttendanceEvent, 0, n)
	for i := len(events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, events[i])
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}
