package dto

import (
	"time"

	"github.com/your-org/faceattend/internal/models"
)

const timeLayout = "2006-01-02T15:04:05Z"

func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// FromEmployee converts e. photoURL is used only when a photo is archived.
func FromEmployee(e *models.Employee, photoURL string) EmployeeResponse {
	r := EmployeeResponse{
		ID:         e.ID,
		Name:       e.Name,
		Email:      e.Email,
		Phone:      e.Phone,
		Department: e.Department,
		CreatedAt:  FormatTime(e.CreatedAt),
		UpdatedAt:  FormatTime(e.UpdatedAt),
	}
	if e.PhotoKey != "" {
		r.PhotoURL = photoURL
	}
	return r
}

func FromAttendance(ev *models.AttendanceEvent) AttendanceResponse {
	return AttendanceResponse{
		ID:           ev.ID,
		EmployeeID:   ev.EmployeeID,
		EmployeeName: ev.EmployeeName,
		Type:         string(ev.Direction),
		Timestamp:    FormatTime(ev.Timestamp),
		Source:       string(ev.Source),
		Distance:     ev.Distance,
	}
}
