package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/service"
)

func seedOpenIncidents(repo *fakeIncidentRepo, assigneeID string, count int) {
	for i := 0; i < count; i++ {
		incident := &domain.Incident{
			Title:    "load",
			Severity: domain.SeverityMedium,
			Status:   domain.StatusAssigned,
			Assignee: &domain.AssigneeRef{UserID: assigneeID, AssignedAt: time.Now()},
			Reporter: domain.ReporterRef{UserID: "rep-1"},
		}
		_ = repo.Create(context.Background(), incident)
	}
}

func TestTeamMembersOrderedBySpareCapacity(t *testing.T) {
	incidents := newFakeIncidentRepo()
	users := newFakeUserRepo(
		&domain.User{ID: "sup-1", FirstName: "Sam", LastName: "Support",
			Role: domain.RoleITSupport, IsActive: true, MaxWorkload: 5},
		&domain.User{ID: "sup-2", FirstName: "Max", LastName: "Loaded",
			Role: domain.RoleITSupport, IsActive: true, MaxWorkload: 3},
		&domain.User{ID: "lead-1", FirstName: "Lena", LastName: "Lead",
			Role: domain.RoleTeamLead, IsActive: true, MaxWorkload: 5},
		&domain.User{ID: "rep-1", FirstName: "Rita", LastName: "Reporter",
			Role: domain.RoleReporter, IsActive: true},
		&domain.User{ID: "gone-1", FirstName: "Gus", LastName: "Gone",
			Role: domain.RoleITSupport, IsActive: false},
	)
	seedOpenIncidents(incidents, "sup-1", 1)  // spare 4
	seedOpenIncidents(incidents, "sup-2", 3)  // spare 0, at capacity
	seedOpenIncidents(incidents, "lead-1", 2) // spare 3

	svc := service.NewAssignmentService(incidents, users)
	members, err := svc.TeamMembers(context.Background())
	if err != nil {
		t.Fatalf("TeamMembers: %v", err)
	}

	if len(members) != 3 {
		t.Fatalf("members = %d, want 3 (reporters and inactive users excluded)", len(members))
	}
	gotOrder := []string{members[0].UserID, members[1].UserID, members[2].UserID}
	wantOrder := []string{"sup-1", "lead-1", "sup-2"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("order = %v, want %v", gotOrder, wantOrder)
		}
	}

	if members[0].AtCapacity {
		t.Error("sup-1 flagged at capacity with spare room")
	}
	last := members[2]
	if !last.AtCapacity || last.CurrentWorkload != 3 || last.MaxWorkload != 3 {
		t.Errorf("sup-2 capacity = %+v", last)
	}
}

func TestTeamMembersDefaultWorkloadCap(t *testing.T) {
	incidents := newFakeIncidentRepo()
	users := newFakeUserRepo(
		&domain.User{ID: "sup-1", FirstName: "Sam", LastName: "Support",
			Role: domain.RoleITSupport, IsActive: true},
	)
	svc := service.NewAssignmentService(incidents, users)

	members, err := svc.TeamMembers(context.Background())
	if err != nil {
		t.Fatalf("TeamMembers: %v", err)
	}
	if members[0].MaxWorkload != domain.DefaultMaxWorkload {
		t.Errorf("max workload = %d, want %d", members[0].MaxWorkload, domain.DefaultMaxWorkload)
	}
}

func TestSuggestPicksLeastLoaded(t *testing.T) {
	incidents := newFakeIncidentRepo()
	users := newFakeUserRepo(
		&domain.User{ID: "sup-1", FirstName: "Sam", LastName: "Support",
			Role: domain.RoleITSupport, IsActive: true, MaxWorkload: 5},
		&domain.User{ID: "sup-2", FirstName: "Tess", LastName: "Busy",
			Role: domain.RoleITSupport, IsActive: true, MaxWorkload: 5},
	)
	seedOpenIncidents(incidents, "sup-2", 4)

	svc := service.NewAssignmentService(incidents, users)
	suggestion, err := svc.Suggest(context.Background())
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if suggestion.UserID != "sup-1" {
		t.Errorf("suggested = %s, want sup-1", suggestion.UserID)
	}
}

func TestSuggestNoEligibleMembers(t *testing.T) {
	incidents := newFakeIncidentRepo()
	users := newFakeUserRepo(
		&domain.User{ID: "rep-1", FirstName: "Rita", LastName: "Reporter",
			Role: domain.RoleReporter, IsActive: true},
	)
	svc := service.NewAssignmentService(incidents, users)

	_, err := svc.Suggest(context.Background())
	assertErrorCode(t, err, "NOT_FOUND")
}
