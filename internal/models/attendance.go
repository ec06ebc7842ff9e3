package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// ParseDirection accepts "in" or "out" in any case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case DirectionIn, DirectionOut:
		return d, nil
	default:
		return "", fmt.Errorf("invalid attendance type %q", s)
	}
}

// Opposite is the direction that must follow d.
func (d Direction) Opposite() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}

type Source string

const (
	SourceRecognition Source = "recognition"
	SourceManual      Source = "manual"
)

// AttendanceEvent is one punch. Events for an employee are append-only and
// alternate in/out starting with in.
type AttendanceEvent struct {
	ID           uuid.UUID `json:"id" db:"id"`
	EmployeeID   uuid.UUID `json:"employee_id" db:"employee_id"`
	EmployeeName string    `json:"employee_name" db:"employee_name"`
	Direction    Direction `json:"direction" db:"direction"`
	Timestamp    time.Time `json:"timestamp" db:"ts"`
	Distance     *float64  `json:"distance,omitempty" db:"distance"`
	PhotoKey     string    `json:"photo_key,omitempty" db:"photo_key"`
	Source       Source    `json:"source" db:"source"`
}
