// Package sla computes incident deadlines from severity and evaluates
// breach state lazily at read time. Callers always pass the reference
// time explicitly; nothing in here reads the wall clock.
package sla

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// State is the read-time SLA condition of an incident. It is derived,
// never persisted as a status.
type State string

const (
	StateOnTrack  State = "on_track"
	StateAtRisk   State = "at_risk"
	StateBreached State = "breached"
)

// Policy maps severity to resolution and first-response deadlines.
type Policy struct {
	ResolutionTargets    map[domain.Severity]time.Duration
	FirstResponseTargets map[domain.Severity]time.Duration
	// AtRiskWindow is how close to the target an unresolved incident may
	// get before it is flagged at risk.
	AtRiskWindow time.Duration
}

// DefaultPolicy returns the stock targets: resolution within
// critical 1h / high 4h / medium 24h / low 72h, first response within
// critical 15m / high 30m / medium 2h / low 8h, at-risk window 30m.
func DefaultPolicy() Policy {
	return Policy{
		ResolutionTargets: map[domain.Severity]time.Duration{
			domain.SeverityCritical: 1 * time.Hour,
			domain.SeverityHigh:     4 * time.Hour,
			domain.SeverityMedium:   24 * time.Hour,
			domain.SeverityLow:      72 * time.Hour,
		},
		FirstResponseTargets: map[domain.Severity]time.Duration{
			domain.SeverityCritical: 15 * time.Minute,
			domain.SeverityHigh:     30 * time.Minute,
			domain.SeverityMedium:   2 * time.Hour,
			domain.SeverityLow:      8 * time.Hour,
		},
		AtRiskWindow: 30 * time.Minute,
	}
}

// TargetsFor computes the SLA block for a fresh incident. Unknown
// severities fail closed: creation must be rejected rather than
// defaulting to some deadline.
func (p Policy) TargetsFor(severity domain.Severity, createdAt time.Time) (domain.SLAInfo, error) {
	resolution, ok := p.ResolutionTargets[severity]
	if !ok {
		return domain.SLAInfo{}, apperrors.NewValidationError(
			"no SLA target for severity", map[string]any{"severity": severity})
	}
	firstResponse, ok := p.FirstResponseTargets[severity]
	if !ok {
		firstResponse = resolution
	}
	return domain.SLAInfo{
		Target:              createdAt.Add(resolution),
		FirstResponseTarget: createdAt.Add(firstResponse),
	}, nil
}

// Evaluate returns the SLA state of an incident at the given time.
// Resolved incidents are judged by their resolution timestamp against
// the target; unresolved ones by now against the target.
func (p Policy) Evaluate(incident *domain.Incident, now time.Time) State {
	target := incident.SLA.Target
	if target.IsZero() {
		return StateOnTrack
	}
	if incident.IsResolved() {
		if incident.Resolution.ResolvedAt.After(target) {
			return StateBreached
		}
		return StateOnTrack
	}
	if now.After(target) {
		return StateBreached
	}
	if remaining := target.Sub(now); remaining > 0 && remaining <= p.AtRiskWindow {
		return StateAtRisk
	}
	return StateOnTrack
}

// TimeRemaining reports how long until the target, negative when past it.
func TimeRemaining(incident *domain.Incident, now time.Time) time.Duration {
	return incident.SLA.Target.Sub(now)
}
