package dto

import "github.com/google/uuid"

type RegisterEmployeeRequest struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
	FacePhoto  string `json:"facePhoto" binding:"required"`
}

type ReplaceFaceRequest struct {
	FacePhoto string `json:"facePhoto" binding:"required"`
}

type EmployeeResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Department string    `json:"department"`
	// PhotoURL is empty when no registration photo was archived.
	PhotoURL  string `json:"photoUrl,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}
