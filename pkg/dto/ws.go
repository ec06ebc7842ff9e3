package dto

// WSEvent is a WebSocket message for real-time attendance delivery.
type WSEvent struct {
	Type string             `json:"type"` // attendance_recorded
	Data AttendanceResponse `json:"data"`
}
