package domain

var severityWeight = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

var impactWeight = map[Impact]int{
	ImpactLow:      1,
	ImpactMedium:   2,
	ImpactHigh:     3,
	ImpactCritical: 4,
}

// ComputePriority derives the incident priority from severity and impact.
// Both inputs are weighted 1..4 and summed: >=7 critical, >=5 high,
// >=3 medium, else low. Pure function; inputs are validated upstream.
func ComputePriority(severity Severity, impact Impact) Priority {
	total := severityWeight[severity] + impactWeight[impact]
	switch {
	case total >= 7:
		return PriorityCritical
	case total >= 5:
		return PriorityHigh
	case total >= 3:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
