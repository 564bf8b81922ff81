package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// AuthService coordinates registration, approval and login flows.
// Reporters self-register and are active immediately; IT-role signups
// are staged as registration requests until an admin or team lead
// approves them.
type AuthService struct {
	users         repository.UserRepository
	registrations repository.RegistrationRequestRepository
	tokenMgr      *auth.TokenManager
	bcryptCost    int
	now           Clock
}

// AuthDependencies encapsulates repo requirements for the auth service.
type AuthDependencies struct {
	UserRepo         repository.UserRepository
	RegistrationRepo repository.RegistrationRequestRepository
	Clock            Clock
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:         deps.UserRepo,
		registrations: deps.RegistrationRepo,
		tokenMgr:      auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost:    cfg.Auth.BcryptCost,
		now:           now,
	}
}

// RegisterInput describes a signup payload.
type RegisterInput struct {
	FirstName  string
	LastName   string
	Email      string
	Password   string
	Role       domain.Role
	Department string
	Phone      string
	JobTitle   string
}

// RegisterResult reports what registration produced: an active account
// with a token, or a pending approval request.
type RegisterResult struct {
	User      *domain.User
	Request   *domain.RegistrationRequest
	Token     string
	ExpiresAt time.Time
}

// Register creates a reporter account or stages an IT-role request.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return nil, apperrors.NewValidationError("first and last name required", nil)
	}
	role := input.Role
	if role == "" {
		role = domain.RoleReporter
	}
	if !role.IsValid() {
		return nil, apperrors.NewValidationError("unrecognized role", map[string]any{"role": role})
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if role != domain.RoleReporter {
		if existing, err := s.registrations.GetByEmail(ctx, email); err == nil && existing.Status == domain.RegistrationPending {
			return nil, apperrors.NewConflict("registration already pending", nil)
		} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		request := &domain.RegistrationRequest{
			FirstName:    strings.TrimSpace(input.FirstName),
			LastName:     strings.TrimSpace(input.LastName),
			Email:        email,
			PasswordHash: hash,
			Role:         role,
			Department:   input.Department,
			Status:       domain.RegistrationPending,
			RequestedAt:  s.now(),
		}
		if err := s.registrations.Create(ctx, request); err != nil {
			return nil, apperrors.MapError(err)
		}
		return &RegisterResult{Request: request}, nil
	}

	user := &domain.User{
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleReporter,
		Department:   input.Department,
		Phone:        input.Phone,
		JobTitle:     input.JobTitle,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}

	token, expiresAt, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &RegisterResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Login authenticates a user and issues a role-bearing token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if !user.IsActive {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("account deactivated")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	loggedIn := s.now()
	if err := s.users.RecordLogin(ctx, user.ID, loggedIn); err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	user.LastLogin = &loggedIn

	token, expiresAt, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	return user, token, expiresAt, nil
}

// ListRegistrations returns signup requests, optionally by status.
func (s *AuthService) ListRegistrations(ctx context.Context, status *domain.RegistrationStatus, limit, offset int) ([]domain.RegistrationRequest, error) {
	if status != nil {
		switch *status {
		case domain.RegistrationPending, domain.RegistrationApproved, domain.RegistrationRejected:
		default:
			return nil, apperrors.NewValidationError("unrecognized registration status", map[string]any{"status": *status})
		}
	}
	requests, err := s.registrations.List(ctx, status, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return requests, nil
}

// ApproveRegistration promotes a pending request into an active user.
func (s *AuthService) ApproveRegistration(ctx context.Context, approver *domain.User, requestID string) (*domain.User, error) {
	request, err := s.getPendingRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		FirstName:    request.FirstName,
		LastName:     request.LastName,
		Email:        request.Email,
		PasswordHash: request.PasswordHash,
		Role:         request.Role,
		Department:   request.Department,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}

	now := s.now()
	request.Status = domain.RegistrationApproved
	request.ProcessedAt = &now
	request.ProcessedBy = &approver.ID
	if err := s.registrations.Update(ctx, request); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// RejectRegistration declines a pending request with a reason.
func (s *AuthService) RejectRegistration(ctx context.Context, approver *domain.User, requestID, reason string) (*domain.RegistrationRequest, error) {
	request, err := s.getPendingRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	request.Status = domain.RegistrationRejected
	request.ProcessedAt = &now
	request.ProcessedBy = &approver.ID
	request.RejectionReason = reason
	if err := s.registrations.Update(ctx, request); err != nil {
		return nil, apperrors.MapError(err)
	}
	return request, nil
}

// ChangePassword verifies the current password before updating.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return apperrors.NewValidationError("new password required", nil)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.MapError(err)
	}
	user.PasswordHash = hash
	return apperrors.MapError(s.users.Update(ctx, user))
}

// UpdateProfileInput holds the self-service editable fields.
type UpdateProfileInput struct {
	FirstName  *string
	LastName   *string
	Department *string
	Phone      *string
	JobTitle   *string
	Expertise  []string
}

// UpdateProfile applies self-service profile edits.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	if input.FirstName != nil && strings.TrimSpace(*input.FirstName) != "" {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil && strings.TrimSpace(*input.LastName) != "" {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.Department != nil {
		user.Department = *input.Department
	}
	if input.Phone != nil {
		user.Phone = *input.Phone
	}
	if input.JobTitle != nil {
		user.JobTitle = *input.JobTitle
	}
	if input.Expertise != nil {
		user.Expertise = input.Expertise
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// SetActive toggles an account. Deactivation takes effect on the next
// request since the middleware loads the user each time.
func (s *AuthService) SetActive(ctx context.Context, userID string, active bool) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	user.IsActive = active
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ListUsers returns accounts for the admin user directory.
func (s *AuthService) ListUsers(ctx context.Context, roles []domain.Role, active *bool, limit, offset int) ([]domain.User, error) {
	for _, role := range roles {
		if !role.IsValid() {
			return nil, apperrors.NewValidationError("unrecognized role", map[string]any{"role": role})
		}
	}
	users, err := s.users.List(ctx, repository.UserFilter{
		Roles:  roles,
		Active: active,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// GetUser loads a single account.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) getPendingRequest(ctx context.Context, requestID string) (*domain.RegistrationRequest, error) {
	request, err := s.registrations.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("registration request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}
	if request.Status != domain.RegistrationPending {
		return nil, apperrors.NewConflict("registration already processed", map[string]any{"status": request.Status})
	}
	return request, nil
}
