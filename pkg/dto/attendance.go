package dto

import "github.com/google/uuid"

type RecognizeRequest struct {
	FacePhoto string `json:"facePhoto" binding:"required"`
}

// RecognizeResponse is returned with 200 whether or not a face matched.
type RecognizeResponse struct {
	Recognized     bool       `json:"recognized"`
	EmployeeID     *uuid.UUID `json:"employeeId,omitempty"`
	EmployeeName   string     `json:"employeeName,omitempty"`
	AttendanceType string     `json:"attendanceType,omitempty"`
	Timestamp      string     `json:"timestamp,omitempty"`
	Distance       *float64   `json:"distance,omitempty"`
	Confidence     *float64   `json:"confidence,omitempty"`
	// Reason is set when Recognized is false: no_face, multiple_faces,
	// no_match or no_gallery.
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

type PunchRequest struct {
	EmployeeID uuid.UUID `json:"employeeId" binding:"required"`
	// Type is optional; when given it must be the direction history allows.
	Type string `json:"type"`
}

type AttendanceResponse struct {
	ID           uuid.UUID `json:"id"`
	EmployeeID   uuid.UUID `json:"employeeId"`
	EmployeeName string    `json:"employeeName"`
	Type         string    `json:"type"`
	Timestamp    string    `json:"timestamp"`
	Source       string    `json:"source"`
	Distance     *float64  `json:"distance,omitempty"`
}

// LastAttendanceResponse has a nil Type when the employee never punched.
type LastAttendanceResponse struct {
	Type       *string `json:"type"`
	Timestamp  string  `json:"timestamp,omitempty"`
	NextAction string  `json:"nextAction"`
	Message    string  `json:"message,omitempty"`
}
