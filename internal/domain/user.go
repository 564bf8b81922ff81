package domain

import "time"

// Role enumerates user roles. Reporters file incidents; the other three
// roles are IT staff and eligible for assignment.
type Role string

const (
	RoleReporter  Role = "reporter"
	RoleITSupport Role = "it-support"
	RoleTeamLead  Role = "team-lead"
	RoleAdmin     Role = "admin"
)

// IsValid checks the role against the closed enum.
func (r Role) IsValid() bool {
	switch r {
	case RoleReporter, RoleITSupport, RoleTeamLead, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAssignable reports whether users with this role may be assigned
// incidents.
func (r Role) IsAssignable() bool {
	switch r {
	case RoleITSupport, RoleTeamLead, RoleAdmin:
		return true
	default:
		return false
	}
}

// DefaultMaxWorkload is the advisory cap on concurrently assigned
// incidents when a user has none configured.
const DefaultMaxWorkload = 10

// User is the actor entity for reporters and IT staff alike.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         Role
	Department   string
	Phone        string
	JobTitle     string
	IsActive     bool
	LastLogin    *time.Time
	Expertise    []string
	MaxWorkload  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins first and last name for display and snapshots.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// EffectiveMaxWorkload returns the configured cap or the default.
func (u *User) EffectiveMaxWorkload() int {
	if u.MaxWorkload > 0 {
		return u.MaxWorkload
	}
	return DefaultMaxWorkload
}
