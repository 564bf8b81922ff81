package service

import (
	"context"
	"sort"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// AssignmentService reports team capacity so dispatchers can pick an
// assignee. Workload limits are advisory: an overloaded member is
// flagged, never blocked.
type AssignmentService struct {
	incidents repository.IncidentRepository
	users     repository.UserRepository
}

// NewAssignmentService constructs the service.
func NewAssignmentService(incidents repository.IncidentRepository, users repository.UserRepository) *AssignmentService {
	return &AssignmentService{incidents: incidents, users: users}
}

// TeamMember is a candidate assignee with their current open load.
// Workload counts incidents in assigned or in-progress status.
type TeamMember struct {
	UserID          string      `json:"user_id"`
	Name            string      `json:"name"`
	Email           string      `json:"email"`
	Role            domain.Role `json:"role"`
	Expertise       []string    `json:"expertise,omitempty"`
	CurrentWorkload int         `json:"current_workload"`
	MaxWorkload     int         `json:"max_workload"`
	AtCapacity      bool        `json:"at_capacity"`
}

// TeamMembers lists active users eligible for assignment ordered by
// spare capacity, least loaded first.
func (s *AssignmentService) TeamMembers(ctx context.Context) ([]TeamMember, error) {
	active := true
	users, err := s.users.List(ctx, repository.UserFilter{
		Roles:  []domain.Role{domain.RoleITSupport, domain.RoleTeamLead, domain.RoleAdmin},
		Active: &active,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	members := make([]TeamMember, 0, len(users))
	for i := range users {
		user := &users[i]
		workload, err := s.incidents.CountOpenByAssignee(ctx, user.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		max := user.EffectiveMaxWorkload()
		members = append(members, TeamMember{
			UserID:          user.ID,
			Name:            user.FullName(),
			Email:           user.Email,
			Role:            user.Role,
			Expertise:       user.Expertise,
			CurrentWorkload: workload,
			MaxWorkload:     max,
			AtCapacity:      workload >= max,
		})
	}

	sort.SliceStable(members, func(i, j int) bool {
		left := members[i].MaxWorkload - members[i].CurrentWorkload
		right := members[j].MaxWorkload - members[j].CurrentWorkload
		if left != right {
			return left > right
		}
		return members[i].Name < members[j].Name
	})
	return members, nil
}

// Suggest picks the least-loaded eligible member. When everyone is at
// capacity the least overloaded member is still returned; the caller
// decides whether to honor the suggestion.
func (s *AssignmentService) Suggest(ctx context.Context) (*TeamMember, error) {
	members, err := s.TeamMembers(ctx)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, apperrors.NewNotFound("assignable team member", nil)
	}
	return &members[0], nil
}

// Workload returns per-assignee open counts split by severity, for the
// dashboard workload panel.
func (s *AssignmentService) Workload(ctx context.Context, limit int) ([]repository.WorkloadRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.incidents.WorkloadByAssignee(ctx, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rows, nil
}
