package domain_test

import (
	"testing"

	"github.com/spec-kit/incident-service/internal/domain"
)

func TestComputePriority(t *testing.T) {
	tests := []struct {
		severity domain.Severity
		impact   domain.Impact
		want     domain.Priority
	}{
		{domain.SeverityLow, domain.ImpactLow, domain.PriorityLow},
		{domain.SeverityLow, domain.ImpactMedium, domain.PriorityMedium},
		{domain.SeverityMedium, domain.ImpactLow, domain.PriorityMedium},
		{domain.SeverityMedium, domain.ImpactMedium, domain.PriorityMedium},
		{domain.SeverityMedium, domain.ImpactHigh, domain.PriorityHigh},
		{domain.SeverityHigh, domain.ImpactMedium, domain.PriorityHigh},
		{domain.SeverityHigh, domain.ImpactHigh, domain.PriorityHigh},
		{domain.SeverityHigh, domain.ImpactCritical, domain.PriorityCritical},
		{domain.SeverityCritical, domain.ImpactHigh, domain.PriorityCritical},
		{domain.SeverityCritical, domain.ImpactCritical, domain.PriorityCritical},
		{domain.SeverityCritical, domain.ImpactLow, domain.PriorityHigh},
		{domain.SeverityLow, domain.ImpactCritical, domain.PriorityHigh},
	}
	for _, tt := range tests {
		got := domain.ComputePriority(tt.severity, tt.impact)
		if got != tt.want {
			t.Errorf("ComputePriority(%s, %s) = %s, want %s", tt.severity, tt.impact, got, tt.want)
		}
	}
}

func TestComputePriorityUnknownInputs(t *testing.T) {
	// unknown values carry zero weight, so the floor priority applies
	if got := domain.ComputePriority("bogus", "bogus"); got != domain.PriorityLow {
		t.Errorf("ComputePriority(bogus, bogus) = %s, want %s", got, domain.PriorityLow)
	}
}
