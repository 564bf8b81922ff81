package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/service"
)

type fakeRegistrationRepo struct {
	mu       sync.Mutex
	requests map[string]*domain.RegistrationRequest
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{requests: make(map[string]*domain.RegistrationRequest)}
}

func (r *fakeRegistrationRepo) Create(_ context.Context, request *domain.RegistrationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	request.ID = fmt.Sprintf("req-%04d", len(r.requests)+1)
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now()
	}
	r.requests[request.ID] = request
	return nil
}

func (r *fakeRegistrationRepo) GetByID(_ context.Context, id string) (*domain.RegistrationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	dup := *request
	return &dup, nil
}

func (r *fakeRegistrationRepo) GetByEmail(_ context.Context, email string) (*domain.RegistrationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, request := range r.requests {
		if request.Email == email {
			dup := *request
			return &dup, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeRegistrationRepo) List(_ context.Context, status *domain.RegistrationStatus, _, _ int) ([]domain.RegistrationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RegistrationRequest
	for _, request := range r.requests {
		if status != nil && request.Status != *status {
			continue
		}
		out = append(out, *request)
	}
	return out, nil
}

func (r *fakeRegistrationRepo) Update(_ context.Context, request *domain.RegistrationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[request.ID]; !ok {
		return pgx.ErrNoRows
	}
	dup := *request
	r.requests[request.ID] = &dup
	return nil
}

func authConfig() config.Config {
	var cfg config.Config
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.AccessTokenTTLMinutes = 60
	cfg.Auth.BcryptCost = 4 // minimum cost keeps the tests fast
	return cfg
}

type authEnv struct {
	svc           *service.AuthService
	users         *fakeUserRepo
	registrations *fakeRegistrationRepo
	now           time.Time
}

func newAuthEnv() *authEnv {
	env := &authEnv{
		users:         newFakeUserRepo(),
		registrations: newFakeRegistrationRepo(),
		now:           time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	env.svc = service.NewAuthService(authConfig(), service.AuthDependencies{
		UserRepo:         env.users,
		RegistrationRepo: env.registrations,
		Clock:            func() time.Time { return env.now },
	})
	return env
}

func reporterSignup() service.RegisterInput {
	return service.RegisterInput{
		FirstName: "Rita",
		LastName:  "Reporter",
		Email:     "Rita@Example.com",
		Password:  "hunter2hunter2",
	}
}

func TestRegisterReporterIsImmediatelyActive(t *testing.T) {
	env := newAuthEnv()

	result, err := env.svc.Register(context.Background(), reporterSignup())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.User == nil || result.Request != nil {
		t.Fatalf("reporter signup produced %+v", result)
	}
	if !result.User.IsActive || result.User.Role != domain.RoleReporter {
		t.Errorf("user = %+v", result.User)
	}
	if result.User.Email != "rita@example.com" {
		t.Errorf("email not lowercased: %q", result.User.Email)
	}
	if result.Token == "" {
		t.Error("no token issued")
	}
	if result.User.PasswordHash == "hunter2hunter2" {
		t.Error("password stored in clear")
	}
}

func TestRegisterITRoleStagesRequest(t *testing.T) {
	env := newAuthEnv()
	input := reporterSignup()
	input.Role = domain.RoleITSupport

	result, err := env.svc.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.Request == nil || result.User != nil || result.Token != "" {
		t.Fatalf("staff signup produced %+v", result)
	}
	if result.Request.Status != domain.RegistrationPending {
		t.Errorf("request status = %s", result.Request.Status)
	}

	// second signup for the same email while pending
	_, err = env.svc.Register(context.Background(), input)
	assertErrorCode(t, err, "CONFLICT")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newAuthEnv()
	if _, err := env.svc.Register(context.Background(), reporterSignup()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := env.svc.Register(context.Background(), reporterSignup())
	assertErrorCode(t, err, "CONFLICT")
}

func TestLoginRoundTrip(t *testing.T) {
	env := newAuthEnv()
	result, err := env.svc.Register(context.Background(), reporterSignup())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	user, token, expiresAt, err := env.svc.Login(context.Background(), "rita@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != result.User.ID || token == "" || expiresAt.IsZero() {
		t.Errorf("login result = %s/%q/%v", user.ID, token, expiresAt)
	}
	if user.LastLogin == nil || !user.LastLogin.Equal(env.now) {
		t.Errorf("last login = %v, want %v", user.LastLogin, env.now)
	}

	claims, err := env.svc.TokenManager().ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != domain.RoleReporter {
		t.Errorf("claims = %+v", claims)
	}
}

func TestLoginRejections(t *testing.T) {
	env := newAuthEnv()
	if _, err := env.svc.Register(context.Background(), reporterSignup()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, _, _, err := env.svc.Login(context.Background(), "rita@example.com", "wrong")
	assertErrorCode(t, err, "UNAUTHORIZED")

	_, _, _, err = env.svc.Login(context.Background(), "nobody@example.com", "hunter2hunter2")
	assertErrorCode(t, err, "UNAUTHORIZED")
}

func TestLoginDeactivatedAccount(t *testing.T) {
	env := newAuthEnv()
	result, err := env.svc.Register(context.Background(), reporterSignup())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := env.svc.SetActive(context.Background(), result.User.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	_, _, _, err = env.svc.Login(context.Background(), "rita@example.com", "hunter2hunter2")
	assertErrorCode(t, err, "UNAUTHORIZED")
}

func TestApproveRegistrationCreatesActiveUser(t *testing.T) {
	env := newAuthEnv()
	input := reporterSignup()
	input.Role = domain.RoleITSupport
	result, err := env.svc.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	approver := &domain.User{ID: "adm-1", Role: domain.RoleAdmin}

	user, err := env.svc.ApproveRegistration(context.Background(), approver, result.Request.ID)
	if err != nil {
		t.Fatalf("ApproveRegistration: %v", err)
	}
	if !user.IsActive || user.Role != domain.RoleITSupport || user.Email != "rita@example.com" {
		t.Errorf("approved user = %+v", user)
	}

	stored, err := env.registrations.GetByID(context.Background(), result.Request.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != domain.RegistrationApproved || stored.ProcessedBy == nil || *stored.ProcessedBy != approver.ID {
		t.Errorf("processed request = %+v", stored)
	}

	// approved accounts can log in with the password from signup
	if _, _, _, err := env.svc.Login(context.Background(), "rita@example.com", "hunter2hunter2"); err != nil {
		t.Errorf("login after approval: %v", err)
	}

	// a processed request cannot be approved twice
	_, err = env.svc.ApproveRegistration(context.Background(), approver, result.Request.ID)
	assertErrorCode(t, err, "CONFLICT")
}

func TestRejectRegistration(t *testing.T) {
	env := newAuthEnv()
	input := reporterSignup()
	input.Role = domain.RoleTeamLead
	result, err := env.svc.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	approver := &domain.User{ID: "adm-1", Role: domain.RoleAdmin}

	request, err := env.svc.RejectRegistration(context.Background(), approver, result.Request.ID, "unknown department")
	if err != nil {
		t.Fatalf("RejectRegistration: %v", err)
	}
	if request.Status != domain.RegistrationRejected || request.RejectionReason != "unknown department" {
		t.Errorf("rejected request = %+v", request)
	}

	// rejection creates no account
	_, _, _, err = env.svc.Login(context.Background(), "rita@example.com", "hunter2hunter2")
	assertErrorCode(t, err, "UNAUTHORIZED")
}

func TestChangePassword(t *testing.T) {
	env := newAuthEnv()
	result, err := env.svc.Register(context.Background(), reporterSignup())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	err = env.svc.ChangePassword(context.Background(), result.User.ID, "wrong", "newpassword1")
	assertErrorCode(t, err, "UNAUTHORIZED")

	if err := env.svc.ChangePassword(context.Background(), result.User.ID, "hunter2hunter2", "newpassword1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, _, _, err := env.svc.Login(context.Background(), "rita@example.com", "newpassword1"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
	_, _, _, err = env.svc.Login(context.Background(), "rita@example.com", "hunter2hunter2")
	assertErrorCode(t, err, "UNAUTHORIZED")
}

func TestUpdateProfile(t *testing.T) {
	env := newAuthEnv()
	result, err := env.svc.Register(context.Background(), reporterSignup())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	dept := "Facilities"
	phone := "555-0100"
	user, err := env.svc.UpdateProfile(context.Background(), result.User.ID, service.UpdateProfileInput{
		Department: &dept,
		Phone:      &phone,
		Expertise:  []string{"printers"},
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if user.Department != "Facilities" || user.Phone != "555-0100" {
		t.Errorf("profile = %+v", user)
	}
	if len(user.Expertise) != 1 || user.Expertise[0] != "printers" {
		t.Errorf("expertise = %v", user.Expertise)
	}
	if user.FirstName != "Rita" {
		t.Errorf("untouched field changed: %q", user.FirstName)
	}
}

func TestListRegistrationsValidatesStatus(t *testing.T) {
	env := newAuthEnv()
	bogus := domain.RegistrationStatus("archived")
	_, err := env.svc.ListRegistrations(context.Background(), &bogus, 20, 0)
	assertErrorCode(t, err, "VALIDATION_FAILED")
}
