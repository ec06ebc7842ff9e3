package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/faceattend/internal/models"
	"github.com/your-org/faceattend/internal/service"
	"github.com/your-org/faceattend/pkg/dto"
)

type EmployeeHandler struct {
	svc *service.Service
}

func NewEmployeeHandler(svc *service.Service) *EmployeeHandler {
	return &EmployeeHandler{svc: svc}
}

func employeeResponse(e *models.Employee) dto.EmployeeResponse {
	return dto.FromEmployee(e, fmt.Sprintf("/api/employees/%s/photo", e.ID))
}

// Register enrolls an employee from a base64 face photo.
func (h *EmployeeHandler) Register(c *gin.Context) {
	var req dto.RegisterEmployeeRequest
	if !bindJSON(c, &req) {
		return
	}

	e, err := h.svc.Register(c.Request.Context(), service.Registration{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Department: req.Department,
		Photo:      req.FacePhoto,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, employeeResponse(e))
}

func (h *EmployeeHandler) List(c *gin.Context) {
	employees, err := h.svc.Employees(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.EmployeeResponse, 0, len(employees))
	for i := range employees {
		resp = append(resp, employeeResponse(&employees[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *EmployeeHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	e, err := h.svc.Employee(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employeeResponse(e))
}

// ReplaceFace re-enrolls an employee with a new photo.
func (h *EmployeeHandler) ReplaceFace(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req dto.ReplaceFaceRequest
	if !bindJSON(c, &req) {
		return
	}

	e, err := h.svc.ReplaceFace(c.Request.Context(), id, req.FacePhoto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employeeResponse(e))
}

// Photo streams the archived registration photo.
func (h *EmployeeHandler) Photo(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	data, contentType, err := h.svc.EmployeePhoto(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}
