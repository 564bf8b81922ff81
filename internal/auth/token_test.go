package auth_test

import (
	"testing"

	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	manager := auth.NewTokenManager("test-secret", 60)

	token, expiresAt, err := manager.GenerateToken("u-1", domain.RoleTeamLead)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if token == "" || expiresAt.IsZero() {
		t.Fatal("empty token or expiry")
	}

	claims, err := manager.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != "u-1" || claims.Role != domain.RoleTeamLead {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issued, _, err := auth.NewTokenManager("secret-a", 60).GenerateToken("u-1", domain.RoleReporter)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := auth.NewTokenManager("secret-b", 60).ParseToken(issued); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	manager := auth.NewTokenManager("test-secret", 60)
	if _, err := manager.ParseToken("not.a.token"); err == nil {
		t.Fatal("garbage token accepted")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := auth.HashPassword("hunter2hunter2", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2hunter2" {
		t.Fatal("password not hashed")
	}
	if err := auth.ComparePassword(hash, "hunter2hunter2"); err != nil {
		t.Errorf("ComparePassword: %v", err)
	}
	if err := auth.ComparePassword(hash, "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestPasswordHashingZeroCostFallsBack(t *testing.T) {
	hash, err := auth.HashPassword("hunter2hunter2", 0)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := auth.ComparePassword(hash, "hunter2hunter2"); err != nil {
		t.Errorf("ComparePassword: %v", err)
	}
}
