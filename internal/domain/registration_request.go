package domain

import "time"

// RegistrationStatus enumerates approval states for IT-role signups.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

// RegistrationRequest stages an IT-role signup until an admin or team
// lead approves it. Reporters self-register and never appear here.
type RegistrationRequest struct {
	ID              string
	FirstName       string
	LastName        string
	Email           string
	PasswordHash    string
	Role            Role
	Department      string
	Status          RegistrationStatus
	RequestedAt     time.Time
	ProcessedAt     *time.Time
	ProcessedBy     *string
	RejectionReason string
}
