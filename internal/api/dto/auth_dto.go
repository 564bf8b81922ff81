package dto

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// RegisterRequest payload.
type RegisterRequest struct {
	FirstName  string      `json:"first_name"`
	LastName   string      `json:"last_name"`
	Email      string      `json:"email"`
	Password   string      `json:"password"`
	Role       domain.Role `json:"role,omitempty"`
	Department string      `json:"department,omitempty"`
	Phone      string      `json:"phone,omitempty"`
	JobTitle   string      `json:"job_title,omitempty"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries token issuance results.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          string      `json:"id"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
	Department  string      `json:"department,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	JobTitle    string      `json:"job_title,omitempty"`
	IsActive    bool        `json:"is_active"`
	Expertise   []string    `json:"expertise,omitempty"`
	MaxWorkload int         `json:"max_workload,omitempty"`
	LastLogin   *time.Time  `json:"last_login,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdateProfileRequest payload; nil fields are left unchanged.
type UpdateProfileRequest struct {
	FirstName  *string  `json:"first_name"`
	LastName   *string  `json:"last_name"`
	Department *string  `json:"department"`
	Phone      *string  `json:"phone"`
	JobTitle   *string  `json:"job_title"`
	Expertise  []string `json:"expertise"`
}

// RejectRegistrationRequest payload.
type RejectRegistrationRequest struct {
	Reason string `json:"reason"`
}

// RegistrationRequestResponse is the admin view of a pending signup.
type RegistrationRequestResponse struct {
	ID              string                    `json:"id"`
	FirstName       string                    `json:"first_name"`
	LastName        string                    `json:"last_name"`
	Email           string                    `json:"email"`
	Role            domain.Role               `json:"role"`
	Department      string                    `json:"department,omitempty"`
	Status          domain.RegistrationStatus `json:"status"`
	RequestedAt     time.Time                 `json:"requested_at"`
	ProcessedAt     *time.Time                `json:"processed_at,omitempty"`
	ProcessedBy     *string                   `json:"processed_by,omitempty"`
	RejectionReason string                    `json:"rejection_reason,omitempty"`
}
