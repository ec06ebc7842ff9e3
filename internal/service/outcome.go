package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/your-org/faceattend/internal/models"
)

type OutcomeKind string

const (
	OutcomeRecognized    OutcomeKind = "recognized"
	OutcomeNoFace        OutcomeKind = "no_face"
	OutcomeMultipleFaces OutcomeKind = "multiple_faces"
	OutcomeNoMatch       OutcomeKind = "no_match"
	OutcomeNoGallery     OutcomeKind = "no_gallery"
)

// Outcome is the result of a recognition attempt that reached a verdict.
// Failures that prevent a verdict are returned as errors instead.
type Outcome struct {
	Kind OutcomeKind

	// Set when Kind is OutcomeRecognized.
	EmployeeID   uuid.UUID
	EmployeeName string
	Event        *models.AttendanceEvent
	Confidence   float64
	Ambiguous    bool

	// Distance is the best candidate distance for recognized and no_match.
	Distance float64
	// Faces is the detector's face count.
	Faces int
}

func (o *Outcome) Recognized() bool {
	return o.Kind == OutcomeRecognized
}

// Message is the text shown on the kiosk.
func (o *Outcome) Message() string {
	switch o.Kind {
	case OutcomeRecognized:
		return fmt.Sprintf("Welcome %s! Punched %s successfully.",
			o.EmployeeName, strings.ToUpper(string(o.Event.Direction)))
	case OutcomeNoFace:
		return "No face detected. Please position your face in the frame."
	case OutcomeMultipleFaces:
		return "Multiple faces detected. Please make sure only one person is in the frame."
	case OutcomeNoGallery:
		return "No registered employees found"
	default:
		return "Face not recognized. Please contact admin for registration."
	}
}
