package domain_test

import (
	"testing"

	"github.com/spec-kit/incident-service/internal/domain"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct {
		from, to domain.Status
	}{
		{domain.StatusNew, domain.StatusAssigned},
		{domain.StatusNew, domain.StatusInProgress},
		{domain.StatusNew, domain.StatusResolved},
		{domain.StatusAssigned, domain.StatusInProgress},
		{domain.StatusAssigned, domain.StatusPending},
		{domain.StatusInProgress, domain.StatusPending},
		{domain.StatusInProgress, domain.StatusResolved},
		{domain.StatusPending, domain.StatusInProgress},
		{domain.StatusPending, domain.StatusResolved},
		{domain.StatusResolved, domain.StatusClosed},
		{domain.StatusResolved, domain.StatusReopened},
		{domain.StatusClosed, domain.StatusReopened},
		{domain.StatusReopened, domain.StatusAssigned},
		{domain.StatusReopened, domain.StatusInProgress},
	}
	for _, tt := range allowed {
		if !domain.CanTransition(tt.from, tt.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tt.from, tt.to)
		}
	}

	denied := []struct {
		from, to domain.Status
	}{
		{domain.StatusNew, domain.StatusClosed},
		{domain.StatusNew, domain.StatusReopened},
		{domain.StatusAssigned, domain.StatusNew},
		{domain.StatusInProgress, domain.StatusClosed},
		{domain.StatusResolved, domain.StatusInProgress},
		{domain.StatusClosed, domain.StatusAssigned},
		{domain.StatusClosed, domain.StatusClosed},
		{domain.StatusResolved, domain.StatusResolved},
	}
	for _, tt := range denied {
		if domain.CanTransition(tt.from, tt.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tt.from, tt.to)
		}
	}
}
