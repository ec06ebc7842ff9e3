package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/faceattend/internal/models"
	"github.com/your-org/faceattend/internal/service"
	"github.com/your-org/faceattend/internal/vision"
	"github.com/your-org/faceattend/pkg/dto"
)

type AttendanceHandler struct {
	svc *service.Service
}

func NewAttendanceHandler(svc *service.Service) *AttendanceHandler {
	return &AttendanceHandler{svc: svc}
}

// Recognize identifies the face in a kiosk photo and punches the match.
// Every verdict, including "no face", is a 200.
func (h *AttendanceHandler) Recognize(c *gin.Context) {
	var req dto.RecognizeRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.svc.Recognize(c.Request.Context(), req.FacePhoto)
	if err != nil {
		if errors.Is(err, vision.ErrExtraction) {
			respondStatus(c, http.StatusInternalServerError, err)
			return
		}
		respondError(c, err)
		return
	}

	resp := dto.RecognizeResponse{
		Recognized: out.Recognized(),
		Message:    out.Message(),
	}
	if out.Recognized() {
		id, dist, conf := out.EmployeeID, out.Distance, out.Confidence
		resp.EmployeeID = &id
		resp.EmployeeName = out.EmployeeName
		resp.AttendanceType = string(out.Event.Direction)
		resp.Timestamp = dto.FormatTime(out.Event.Timestamp)
		resp.Distance = &dist
		resp.Confidence = &conf
	} else {
		resp.Reason = string(out.Kind)
		if out.Kind == service.OutcomeNoMatch {
			dist := out.Distance
			resp.Distance = &dist
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Punch records a manual event. An explicit type must follow the history.
func (h *AttendanceHandler) Punch(c *gin.Context) {
	var req dto.PunchRequest
	if !bindJSON(c, &req) {
		return
	}

	var want models.Direction
	if req.Type != "" {
		d, err := models.ParseDirection(req.Type)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		want = d
	}

	ev, err := h.svc.Punch(c.Request.Context(), req.EmployeeID, want)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromAttendance(ev))
}

func (h *AttendanceHandler) Last(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	last, next, err := h.svc.LastAttendance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.LastAttendanceResponse{NextAction: string(next)}
	if last == nil {
		resp.Message = "No previous attendance found"
	} else {
		typ := string(last.Direction)
		resp.Type = &typ
		resp.Timestamp = dto.FormatTime(last.Timestamp)
	}
	c.JSON(http.StatusOK, resp)
}

// History lists an employee's events, newest first. ?limit= caps the list
// at most at service.DefaultHistoryLimit.
func (h *AttendanceHandler) History(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	limit := service.DefaultHistoryLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	events, err := h.svc.History(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.AttendanceResponse, 0, len(events))
	for i := range events {
		resp = append(resp, dto.FromAttendance(&events[i]))
	}
	c.JSON(http.StatusOK, resp)
}
