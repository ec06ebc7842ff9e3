package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/your-org/faceattend/internal/matching"
	"github.com/your-org/faceattend/internal/models"
)

var (
	// ErrStoreUnavailable wraps every infrastructure failure of a backend.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotFound         = errors.New("not found")
	// ErrConflict means the expected predecessor of an attendance event was
	// no longer the latest event when the append was attempted.
	ErrConflict       = errors.New("attendance conflict")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Store persists enrolled employees and their attendance history.
type Store interface {
	// Enroll inserts e. ID and timestamps are assigned when unset.
	Enroll(ctx context.Context, e *models.Employee) error
	// ReplaceDescriptor swaps descriptor and photo key in one write.
	ReplaceDescriptor(ctx context.Context, id uuid.UUID, descriptor []float32, photoKey string) error
	Get(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	// List returns employees without their descriptors, newest first.
	List(ctx context.Context) ([]models.Employee, error)
	// Gallery returns every enrolled descriptor for matching.
	Gallery(ctx context.Context) ([]matching.Candidate, error)

	// LastAttendance returns the latest event, or nil when there is none.
	LastAttendance(ctx context.Context, employeeID uuid.UUID) (*models.AttendanceEvent, error)
	// AppendAttendance stores ev only if the employee's latest event still has
	// ID expectedPrev (nil meaning no events yet); otherwise ErrConflict.
	AppendAttendance(ctx context.Context, ev *models.AttendanceEvent, expectedPrev *uuid.UUID) error
	// ListAttendance returns up to limit events, newest first. limit <= 0 means all.
	ListAttendance(ctx context.Context, employeeID uuid.UUID, limit int) ([]models.AttendanceEvent, error)

	Ping(ctx context.Context) error
	Close()
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
