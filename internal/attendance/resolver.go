// Package attendance decides whether a punch is a check-in or a check-out
// and records it without losing concurrent punches.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/your-org/faceattend/internal/config"
	"github.com/your-org/faceattend/internal/models"
	"github.com/your-org/faceattend/internal/observability"
	"github.com/your-org/faceattend/internal/storage"
)

// ErrInvalidTransition is returned when a manual punch asks for the same
// direction as the previous event.
var ErrInvalidTransition = errors.New("invalid attendance transition")

// Store is the part of storage.Store the resolver needs.
type Store interface {
	LastAttendance(ctx context.Context, employeeID uuid.UUID) (*models.AttendanceEvent, error)
	AppendAttendance(ctx context.Context, ev *models.AttendanceEvent, expectedPrev *uuid.UUID) error
}

// Next returns the direction that follows last. No history means "in".
func Next(last *models.AttendanceEvent) models.Direction {
	if last != nil && last.Direction == models.DirectionIn {
		return models.DirectionOut
	}
	return models.DirectionIn
}

// Punch is a request to record attendance for one employee.
type Punch struct {
	EmployeeID   uuid.UUID
	EmployeeName string
	Source       models.Source
	Distance     *float64
	PhotoKey     string
	// Want, when set, must equal the direction the history dictates.
	Want models.Direction
}

type Resolver struct {
	store      Store
	maxRetries uint64
	backoff    time.Duration
	now        func() time.Time
}

func NewResolver(store Store, cfg config.AttendanceConfig) *Resolver {
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	return &Resolver{store: store, maxRetries: cfg.MaxRetries, backoff: backoff, now: time.Now}
}

// Record reads the latest event, derives the next direction and appends the
// new event conditionally on that latest event still being current. A lost
// race is retried with a fresh read.
func (r *Resolver) Record(ctx context.Context, p Punch) (*models.AttendanceEvent, error) {
	b := retry.WithJitterPercent(25, retry.WithMaxRetries(r.maxRetries, retry.NewConstant(r.backoff)))

	var recorded *models.AttendanceEvent
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		last, err := r.store.LastAttendance(ctx, p.EmployeeID)
		if err != nil {
			return err
		}
		dir := Next(last)
		if p.Want != "" && p.Want != dir {
			return fmt.Errorf("%w: cannot punch %s, next must be %s", ErrInvalidTransition, p.Want, dir)
		}

		ev := &models.AttendanceEvent{
			ID:           uuid.New(),
			EmployeeID:   p.EmployeeID,
			EmployeeName: p.EmployeeName,
			Direction:    dir,
			Timestamp:    r.now().UTC(),
			Distance:     p.Distance,
			PhotoKey:     p.PhotoKey,
			Source:       p.Source,
		}
		var prev *uuid.UUID
		if last != nil {
			prev = &last.ID
		}

		err = r.store.AppendAttendance(ctx, ev, prev)
		if errors.Is(err, storage.ErrConflict) {
			observability.AttendanceConflicts.Inc()
			slog.Debug("attendance conflict, retrying", "employee_id", p.EmployeeID)
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		recorded = ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.AttendanceEvents.WithLabelValues(string(recorded.Direction), string(recorded.Source)).Inc()
	return recorded, nil
}
