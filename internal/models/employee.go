package models

import (
	"time"

	"github.com/google/uuid"
)

// Employee is an enrolled identity with exactly one face descriptor.
type Employee struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email" db:"email"`
	Phone      string    `json:"phone" db:"phone"`
	Department string    `json:"department" db:"department"`
	Descriptor []float32 `json:"-" db:"descriptor"`
	PhotoKey   string    `json:"photo_key,omitempty" db:"photo_key"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy, descriptor included.
func (e *Employee) Clone() *Employee {
	c := *e
	if e.Descriptor != nil {
		c.Descriptor = append([]float32(nil), e.Descriptor...)
	}
	return &c
}
