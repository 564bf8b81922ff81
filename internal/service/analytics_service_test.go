package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/service"
	"github.com/spec-kit/incident-service/internal/sla"
)

// analyticsRepo serves canned projection rows on top of the in-memory
// incident store.
type analyticsRepo struct {
	*fakeIncidentRepo
	rows   []repository.AnalyticsRow
	active []domain.Incident
}

func (r *analyticsRepo) ListAnalyticsRows(context.Context, time.Time) ([]repository.AnalyticsRow, error) {
	return r.rows, nil
}

func (r *analyticsRepo) ListActiveWithTarget(context.Context) ([]domain.Incident, error) {
	return r.active, nil
}

func newAnalyticsService(repo *analyticsRepo, users *fakeUserRepo, now time.Time) *service.AnalyticsService {
	return service.NewAnalyticsService(service.AnalyticsDependencies{
		IncidentRepo: repo,
		UserRepo:     users,
		Policy:       sla.DefaultPolicy(),
		Clock:        func() time.Time { return now },
	})
}

func timePtr(t time.Time) *time.Time { return &t }

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestParseWindow(t *testing.T) {
	tests := []struct {
		window  string
		want    time.Duration
		wantErr bool
	}{
		{"", 30 * 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"90d", 90 * 24 * time.Hour, false},
		{"1y", 365 * 24 * time.Hour, false},
		{"14d", 0, true},
		{"month", 0, true},
	}
	for _, tt := range tests {
		got, err := service.ParseWindow(tt.window)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseWindow(%q): expected error", tt.window)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseWindow(%q): %v", tt.window, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseWindow(%q) = %v, want %v", tt.window, got, tt.want)
		}
	}
}

func TestDashboardEmpty(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newAnalyticsService(&analyticsRepo{fakeIncidentRepo: newFakeIncidentRepo()}, newFakeUserRepo(), now)

	stats, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if diff := cmp.Diff(&service.DashboardStats{}, stats); diff != "" {
		t.Errorf("empty dashboard mismatch (-want +got):\n%s", diff)
	}
}

func TestDashboardCounts(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	repo := &analyticsRepo{
		fakeIncidentRepo: newFakeIncidentRepo(),
		rows: []repository.AnalyticsRow{
			// open critical, created 2 days ago
			{Severity: domain.SeverityCritical, Status: domain.StatusInProgress, CreatedAt: now.Add(-2 * day)},
			// open low, created 10 days ago (previous week)
			{Severity: domain.SeverityLow, Status: domain.StatusNew, CreatedAt: now.Add(-10 * day)},
			// resolved this week after 4h
			{Severity: domain.SeverityHigh, Status: domain.StatusResolved,
				CreatedAt: now.Add(-3 * day), ResolvedAt: timePtr(now.Add(-3*day + 4*time.Hour))},
			// resolved previous week after 8h
			{Severity: domain.SeverityMedium, Status: domain.StatusClosed,
				CreatedAt: now.Add(-12 * day), ResolvedAt: timePtr(now.Add(-12*day + 8*time.Hour))},
		},
		active: []domain.Incident{
			{Status: domain.StatusInProgress, SLA: domain.SLAInfo{Target: now.Add(-time.Hour)}},
			{Status: domain.StatusAssigned, SLA: domain.SLAInfo{Target: now.Add(10 * time.Minute)}},
			{Status: domain.StatusNew, SLA: domain.SLAInfo{Target: now.Add(48 * time.Hour)}},
		},
	}
	svc := newAnalyticsService(repo, newFakeUserRepo(), now)

	stats, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	want := &service.DashboardStats{
		TotalIncidents:     4,
		OpenIncidents:      2,
		ResolvedIncidents:  2,
		CriticalOpen:       1,
		AtRisk:             1,
		Breached:           1,
		AvgResolutionHours: 6,
		CreatedThisWeek:    2,
		CreatedTrendPct:    0, // 2 this week vs 2 last week
		ResolvedThisWeek:   1,
		ResolvedTrendPct:   0, // 1 vs 1
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("dashboard mismatch (-want +got):\n%s", diff)
	}
}

func TestChartsGroupByAxis(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &analyticsRepo{
		fakeIncidentRepo: newFakeIncidentRepo(),
		rows: []repository.AnalyticsRow{
			{Severity: domain.SeverityHigh, Category: "network", Status: domain.StatusNew,
				CreatedAt: now.Add(-26 * time.Hour)},
			{Severity: domain.SeverityHigh, Category: "network", Status: domain.StatusResolved,
				CreatedAt: now.Add(-26 * time.Hour), ResolvedAt: timePtr(now.Add(-2 * time.Hour))},
			{Severity: domain.SeverityLow, Category: "hardware", Status: domain.StatusNew,
				CreatedAt: now.Add(-2 * time.Hour)},
		},
	}
	svc := newAnalyticsService(repo, newFakeUserRepo(), now)

	data, err := svc.Charts(context.Background(), "7d")
	if err != nil {
		t.Fatalf("Charts: %v", err)
	}

	wantSeverity := []service.ChartPoint{{Label: "high", Count: 2}, {Label: "low", Count: 1}}
	if diff := cmp.Diff(wantSeverity, data.BySeverity); diff != "" {
		t.Errorf("by severity (-want +got):\n%s", diff)
	}
	wantCategory := []service.ChartPoint{{Label: "hardware", Count: 1}, {Label: "network", Count: 2}}
	if diff := cmp.Diff(wantCategory, data.ByCategory); diff != "" {
		t.Errorf("by category (-want +got):\n%s", diff)
	}
	wantCreated := []service.ChartPoint{{Label: "2024-03-09", Count: 2}, {Label: "2024-03-10", Count: 1}}
	if diff := cmp.Diff(wantCreated, data.CreatedPerDay); diff != "" {
		t.Errorf("created per day (-want +got):\n%s", diff)
	}
	wantResolved := []service.ChartPoint{{Label: "2024-03-10", Count: 1}}
	if diff := cmp.Diff(wantResolved, data.ResolvedPerDay); diff != "" {
		t.Errorf("resolved per day (-want +got):\n%s", diff)
	}
}

func TestPerformanceReport(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	created := now.Add(-48 * time.Hour)
	repo := &analyticsRepo{
		fakeIncidentRepo: newFakeIncidentRepo(),
		rows: []repository.AnalyticsRow{
			// resolved in 2h, acked after 10m, clean first contact, rating 5
			{Severity: domain.SeverityCritical, Status: domain.StatusResolved, CreatedAt: created,
				AcknowledgedAt: timePtr(created.Add(10 * time.Minute)),
				ResolvedAt: timePtr(created.Add(2 * time.Hour)), SatisfactionRating: intPtr(5)},
			// resolved in 6h, acked after 30m, reopened once, rating 3
			{Severity: domain.SeverityHigh, Status: domain.StatusResolved, CreatedAt: created,
				AcknowledgedAt: timePtr(created.Add(30 * time.Minute)),
				ResolvedAt: timePtr(created.Add(6 * time.Hour)), ReopenCount: 1, SatisfactionRating: intPtr(3)},
			// still open, acked after 20m; counts toward MTTA only
			{Severity: domain.SeverityHigh, Status: domain.StatusInProgress, CreatedAt: created,
				AcknowledgedAt: timePtr(created.Add(20 * time.Minute))},
		},
	}
	svc := newAnalyticsService(repo, newFakeUserRepo(), now)

	report, err := svc.Performance(context.Background(), "7d")
	if err != nil {
		t.Fatalf("Performance: %v", err)
	}

	if report.Window != "7d" || report.ResolvedCount != 2 {
		t.Errorf("window/resolved = %s/%d", report.Window, report.ResolvedCount)
	}
	if report.MTTRHours != 4 {
		t.Errorf("MTTR = %v, want 4", report.MTTRHours)
	}
	if report.MTTRHoursBySeverity[domain.SeverityCritical] != 2 ||
		report.MTTRHoursBySeverity[domain.SeverityHigh] != 6 {
		t.Errorf("MTTR by severity = %v", report.MTTRHoursBySeverity)
	}
	if report.MTTAMinutes != 20 {
		t.Errorf("MTTA = %v, want 20", report.MTTAMinutes)
	}
	if report.FirstContactRate != 50 {
		t.Errorf("first-contact rate = %v, want 50", report.FirstContactRate)
	}
	if report.AvgSatisfaction != 4 {
		t.Errorf("satisfaction = %v, want 4", report.AvgSatisfaction)
	}
}

func TestResolutionRate(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &analyticsRepo{
		fakeIncidentRepo: newFakeIncidentRepo(),
		rows: []repository.AnalyticsRow{
			{Severity: domain.SeverityHigh, Category: "network", Status: domain.StatusResolved,
				CreatedAt: now.Add(-time.Hour), ResolvedAt: timePtr(now)},
			{Severity: domain.SeverityHigh, Category: "network", Status: domain.StatusNew,
				CreatedAt: now.Add(-time.Hour)},
			{Severity: domain.SeverityLow, Category: "hardware", Status: domain.StatusInProgress,
				CreatedAt: now.Add(-time.Hour)},
		},
	}
	svc := newAnalyticsService(repo, newFakeUserRepo(), now)

	report, err := svc.ResolutionRate(context.Background(), "")
	if err != nil {
		t.Fatalf("ResolutionRate: %v", err)
	}
	if report.Total != 3 || report.Resolved != 1 {
		t.Errorf("counts = %d/%d", report.Resolved, report.Total)
	}
	if report.Rate != 33.33 {
		t.Errorf("rate = %v, want 33.33", report.Rate)
	}
	if report.Window != "30d" {
		t.Errorf("window label = %q, want 30d", report.Window)
	}
	if report.BySeverity[domain.SeverityHigh] != 50 || report.BySeverity[domain.SeverityLow] != 0 {
		t.Errorf("by severity = %v", report.BySeverity)
	}
	if report.ByCategory["network"] != 50 || report.ByCategory["hardware"] != 0 {
		t.Errorf("by category = %v", report.ByCategory)
	}
}

func TestSLACompliance(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	target := func(created time.Time, d time.Duration) *time.Time { return timePtr(created.Add(d)) }

	c1 := now.Add(-2 * day)  // bucket 0: met
	c2 := now.Add(-3 * day)  // bucket 0: missed
	c3 := now.Add(-10 * day) // bucket 1: met
	c4 := now.Add(-29 * day) // trailing partial week of the window: met
	repo := &analyticsRepo{
		fakeIncidentRepo: newFakeIncidentRepo(),
		rows: []repository.AnalyticsRow{
			{Severity: domain.SeverityHigh, CreatedAt: c1,
				ResolvedAt: timePtr(c1.Add(2 * time.Hour)), SLATarget: target(c1, 4*time.Hour)},
			{Severity: domain.SeverityHigh, CreatedAt: c2,
				ResolvedAt: timePtr(c2.Add(6 * time.Hour)), SLATarget: target(c2, 4*time.Hour)},
			{Severity: domain.SeverityLow, CreatedAt: c3,
				ResolvedAt: timePtr(c3.Add(24 * time.Hour)), SLATarget: target(c3, 72*time.Hour)},
			{Severity: domain.SeverityLow, CreatedAt: c4,
				ResolvedAt: timePtr(c4.Add(2 * time.Hour)), SLATarget: target(c4, 72*time.Hour)},
			// unresolved rows are excluded from compliance
			{Severity: domain.SeverityLow, CreatedAt: c1, SLATarget: target(c1, 72*time.Hour)},
		},
	}
	svc := newAnalyticsService(repo, newFakeUserRepo(), now)

	report, err := svc.SLACompliance(context.Background(), "30d")
	if err != nil {
		t.Fatalf("SLACompliance: %v", err)
	}

	if report.Overall != 75 {
		t.Errorf("overall = %v, want 75", report.Overall)
	}
	if report.BySeverity[domain.SeverityHigh] != 50 || report.BySeverity[domain.SeverityLow] != 100 {
		t.Errorf("by severity = %v", report.BySeverity)
	}

	// 30 days round up to five weekly buckets so the partial week counts
	if len(report.WeeklyTrend) != 5 {
		t.Fatalf("trend buckets = %d, want 5", len(report.WeeklyTrend))
	}
	// oldest first: the current week lands in the final slot
	latest := report.WeeklyTrend[len(report.WeeklyTrend)-1]
	if latest.Total != 2 || latest.Met != 1 || latest.Rate != 50 {
		t.Errorf("latest week = %+v", latest)
	}
	previous := report.WeeklyTrend[len(report.WeeklyTrend)-2]
	if previous.Total != 1 || previous.Met != 1 || previous.Rate != 100 {
		t.Errorf("previous week = %+v", previous)
	}
	oldest := report.WeeklyTrend[0]
	if oldest.Total != 1 || oldest.Met != 1 || oldest.Rate != 100 {
		t.Errorf("oldest week = %+v", oldest)
	}
}

func TestSLAAttentionOrdering(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &analyticsRepo{
		fakeIncidentRepo: newFakeIncidentRepo(),
		active: []domain.Incident{
			{IncidentID: "INC-000001", Status: domain.StatusInProgress,
				SLA: domain.SLAInfo{Target: now.Add(20 * time.Minute)}}, // at risk
			{IncidentID: "INC-000002", Status: domain.StatusAssigned,
				SLA: domain.SLAInfo{Target: now.Add(-2 * time.Hour)}}, // breached
			{IncidentID: "INC-000003", Status: domain.StatusNew,
				SLA: domain.SLAInfo{Target: now.Add(40 * time.Hour)}}, // on track, excluded
		},
	}
	svc := newAnalyticsService(repo, newFakeUserRepo(), now)

	items, err := svc.SLAAttention(context.Background())
	if err != nil {
		t.Fatalf("SLAAttention: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Incident.IncidentID != "INC-000002" || items[0].State != sla.StateBreached {
		t.Errorf("most urgent = %s/%s", items[0].Incident.IncidentID, items[0].State)
	}
	if items[0].MinutesRemaining != -120 {
		t.Errorf("breached remaining = %v, want -120", items[0].MinutesRemaining)
	}
	if items[1].Incident.IncidentID != "INC-000001" || items[1].State != sla.StateAtRisk {
		t.Errorf("second = %s/%s", items[1].Incident.IncidentID, items[1].State)
	}
}

func TestSLASettings(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newAnalyticsService(&analyticsRepo{fakeIncidentRepo: newFakeIncidentRepo()}, newFakeUserRepo(), now)

	settings := svc.SLASettings()
	want := &service.SLASettings{
		Targets: []service.SLATargetSetting{
			{Severity: domain.SeverityCritical, ResolutionMinutes: 60, FirstResponseMinutes: 15},
			{Severity: domain.SeverityHigh, ResolutionMinutes: 240, FirstResponseMinutes: 30},
			{Severity: domain.SeverityMedium, ResolutionMinutes: 1440, FirstResponseMinutes: 120},
			{Severity: domain.SeverityLow, ResolutionMinutes: 4320, FirstResponseMinutes: 480},
		},
		AtRiskWindowMinutes: 30,
	}
	if diff := cmp.Diff(want, settings); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestTeamPerformance(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	created := now.Add(-24 * time.Hour)
	users := newFakeUserRepo(
		&domain.User{ID: "sup-1", FirstName: "Sam", LastName: "Support", Role: domain.RoleITSupport, IsActive: true},
		&domain.User{ID: "lead-1", FirstName: "Lena", LastName: "Lead", Role: domain.RoleTeamLead, IsActive: true},
	)
	repo := &analyticsRepo{
		fakeIncidentRepo: newFakeIncidentRepo(),
		rows: []repository.AnalyticsRow{
			{CreatedAt: created, ResolvedAt: timePtr(created.Add(2 * time.Hour)),
				ResolvedBy: strPtr("sup-1"), SatisfactionRating: intPtr(4), TimeSpentHours: floatPtr(1)},
			{CreatedAt: created, ResolvedAt: timePtr(created.Add(4 * time.Hour)),
				ResolvedBy: strPtr("sup-1")},
			{CreatedAt: created, ResolvedAt: timePtr(created.Add(8 * time.Hour)),
				ResolvedBy: strPtr("lead-1"), SatisfactionRating: intPtr(5)},
			{CreatedAt: created, Status: domain.StatusNew}, // unresolved, ignored
		},
	}
	svc := newAnalyticsService(repo, users, now)

	result, err := svc.TeamPerformance(context.Background(), "7d")
	if err != nil {
		t.Fatalf("TeamPerformance: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("resolvers = %d, want 2", len(result))
	}
	if result[0].UserID != "sup-1" || result[0].ResolvedCount != 2 {
		t.Errorf("top resolver = %+v", result[0])
	}
	if result[0].Name != "Sam Support" || result[0].MTTRHours != 3 || result[0].AvgSatisfaction != 4 {
		t.Errorf("top resolver detail = %+v", result[0])
	}
	if result[1].UserID != "lead-1" || result[1].MTTRHours != 8 || result[1].AvgSatisfaction != 5 {
		t.Errorf("second resolver = %+v", result[1])
	}
}
