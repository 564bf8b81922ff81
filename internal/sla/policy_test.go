package sla_test

import (
	"testing"
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/sla"
)

var baseTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func TestTargetsFor(t *testing.T) {
	policy := sla.DefaultPolicy()
	tests := []struct {
		severity          domain.Severity
		wantResolution    time.Duration
		wantFirstResponse time.Duration
	}{
		{domain.SeverityCritical, time.Hour, 15 * time.Minute},
		{domain.SeverityHigh, 4 * time.Hour, 30 * time.Minute},
		{domain.SeverityMedium, 24 * time.Hour, 2 * time.Hour},
		{domain.SeverityLow, 72 * time.Hour, 8 * time.Hour},
	}
	for _, tt := range tests {
		info, err := policy.TargetsFor(tt.severity, baseTime)
		if err != nil {
			t.Fatalf("TargetsFor(%s): %v", tt.severity, err)
		}
		if want := baseTime.Add(tt.wantResolution); !info.Target.Equal(want) {
			t.Errorf("TargetsFor(%s).Target = %v, want %v", tt.severity, info.Target, want)
		}
		if want := baseTime.Add(tt.wantFirstResponse); !info.FirstResponseTarget.Equal(want) {
			t.Errorf("TargetsFor(%s).FirstResponseTarget = %v, want %v", tt.severity, info.FirstResponseTarget, want)
		}
		if info.IsBreached {
			t.Errorf("TargetsFor(%s) starts breached", tt.severity)
		}
	}
}

func TestTargetsForUnknownSeverityFailsClosed(t *testing.T) {
	policy := sla.DefaultPolicy()
	if _, err := policy.TargetsFor("catastrophic", baseTime); err == nil {
		t.Fatal("expected error for unknown severity")
	}
}

func TestEvaluateUnresolved(t *testing.T) {
	policy := sla.DefaultPolicy()
	incident := &domain.Incident{
		Severity: domain.SeverityHigh,
		Status:   domain.StatusInProgress,
		SLA:      domain.SLAInfo{Target: baseTime.Add(4 * time.Hour)},
	}

	tests := []struct {
		name string
		now  time.Time
		want sla.State
	}{
		{"well before target", baseTime.Add(time.Hour), sla.StateOnTrack},
		{"just outside window", baseTime.Add(4*time.Hour - 31*time.Minute), sla.StateOnTrack},
		{"inside at-risk window", baseTime.Add(4*time.Hour - 10*time.Minute), sla.StateAtRisk},
		{"at-risk needs positive remaining", baseTime.Add(4 * time.Hour), sla.StateOnTrack},
		{"past target", baseTime.Add(4*time.Hour + time.Second), sla.StateBreached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Evaluate(incident, tt.now); got != tt.want {
				t.Errorf("Evaluate at %v = %s, want %s", tt.now, got, tt.want)
			}
		})
	}
}

func TestEvaluateResolved(t *testing.T) {
	policy := sla.DefaultPolicy()
	target := baseTime.Add(time.Hour)

	within := &domain.Incident{
		Status:     domain.StatusResolved,
		SLA:        domain.SLAInfo{Target: target},
		Resolution: &domain.Resolution{ResolvedAt: target.Add(-5 * time.Minute)},
	}
	// judged by resolution time even when evaluated long after the target
	if got := policy.Evaluate(within, baseTime.Add(48*time.Hour)); got != sla.StateOnTrack {
		t.Errorf("resolved within target = %s, want %s", got, sla.StateOnTrack)
	}

	late := &domain.Incident{
		Status:     domain.StatusResolved,
		SLA:        domain.SLAInfo{Target: target},
		Resolution: &domain.Resolution{ResolvedAt: target.Add(5 * time.Minute)},
	}
	if got := policy.Evaluate(late, baseTime.Add(48*time.Hour)); got != sla.StateBreached {
		t.Errorf("resolved past target = %s, want %s", got, sla.StateBreached)
	}
}

func TestEvaluateNoTarget(t *testing.T) {
	policy := sla.DefaultPolicy()
	incident := &domain.Incident{Status: domain.StatusNew}
	if got := policy.Evaluate(incident, baseTime); got != sla.StateOnTrack {
		t.Errorf("Evaluate without target = %s, want %s", got, sla.StateOnTrack)
	}
}

func TestTimeRemaining(t *testing.T) {
	incident := &domain.Incident{SLA: domain.SLAInfo{Target: baseTime.Add(time.Hour)}}
	if got := sla.TimeRemaining(incident, baseTime); got != time.Hour {
		t.Errorf("TimeRemaining = %v, want %v", got, time.Hour)
	}
	if got := sla.TimeRemaining(incident, baseTime.Add(2*time.Hour)); got != -time.Hour {
		t.Errorf("TimeRemaining past target = %v, want %v", got, -time.Hour)
	}
}
