package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/sla"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// AnalyticsService derives reporting metrics from incident history.
// Results are cached in Redis for a short TTL since every dashboard
// refresh hits the same aggregates.
type AnalyticsService struct {
	incidents repository.IncidentRepository
	users     repository.UserRepository
	policy    sla.Policy
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    *zap.Logger
	now       Clock
}

// AnalyticsDependencies bundles collaborators for the analytics service.
type AnalyticsDependencies struct {
	IncidentRepo repository.IncidentRepository
	UserRepo     repository.UserRepository
	Policy       sla.Policy
	Cache        *redis.Client
	CacheTTL     time.Duration
	Logger       *zap.Logger
	Clock        Clock
}

// NewAnalyticsService constructs the service. Cache is optional; with a
// nil client every call recomputes.
func NewAnalyticsService(deps AnalyticsDependencies) *AnalyticsService {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	policy := deps.Policy
	if policy.ResolutionTargets == nil {
		policy = sla.DefaultPolicy()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AnalyticsService{
		incidents: deps.IncidentRepo,
		users:     deps.UserRepo,
		policy:    policy,
		cache:     deps.Cache,
		cacheTTL:  ttl,
		logger:    logger,
		now:       now,
	}
}

// ParseWindow converts a reporting window label into a duration.
// Supported values: 7d, 30d, 90d, 1y. Empty defaults to 30d.
func ParseWindow(window string) (time.Duration, error) {
	switch window {
	case "", "30d":
		return 30 * 24 * time.Hour, nil
	case "7d":
		return 7 * 24 * time.Hour, nil
	case "90d":
		return 90 * 24 * time.Hour, nil
	case "1y":
		return 365 * 24 * time.Hour, nil
	default:
		return 0, apperrors.NewValidationError("unrecognized window", map[string]any{"window": window})
	}
}

// DashboardStats is the landing-page summary. Trend percentages compare
// the last seven days against the seven days before that.
type DashboardStats struct {
	TotalIncidents     int     `json:"total_incidents"`
	OpenIncidents      int     `json:"open_incidents"`
	ResolvedIncidents  int     `json:"resolved_incidents"`
	CriticalOpen       int     `json:"critical_open"`
	AtRisk             int     `json:"at_risk"`
	Breached           int     `json:"breached"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
	CreatedThisWeek    int     `json:"created_this_week"`
	CreatedTrendPct    float64 `json:"created_trend_pct"`
	ResolvedThisWeek   int     `json:"resolved_this_week"`
	ResolvedTrendPct   float64 `json:"resolved_trend_pct"`
}

// ChartPoint is a labeled count for chart rendering.
type ChartPoint struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// ChartData groups incident counts along the dashboard chart axes.
type ChartData struct {
	ByStatus       []ChartPoint `json:"by_status"`
	BySeverity     []ChartPoint `json:"by_severity"`
	ByCategory     []ChartPoint `json:"by_category"`
	CreatedPerDay  []ChartPoint `json:"created_per_day"`
	ResolvedPerDay []ChartPoint `json:"resolved_per_day"`
}

// PerformanceReport carries responsiveness metrics. MTTR is mean time
// to resolution in hours, MTTA mean time to acknowledgement in minutes.
type PerformanceReport struct {
	Window              string                      `json:"window"`
	ResolvedCount       int                         `json:"resolved_count"`
	MTTRHours           float64                     `json:"mttr_hours"`
	MTTRHoursBySeverity map[domain.Severity]float64 `json:"mttr_hours_by_severity"`
	MTTAMinutes         float64                     `json:"mtta_minutes"`
	FirstContactRate    float64                     `json:"first_contact_resolution_rate"`
	AvgSatisfaction     float64                     `json:"avg_satisfaction"`
}

// ResolutionRateReport is resolved-over-created for a window, overall
// and per grouping key.
type ResolutionRateReport struct {
	Window     string                      `json:"window"`
	Total      int                         `json:"total"`
	Resolved   int                         `json:"resolved"`
	Rate       float64                     `json:"rate"`
	BySeverity map[domain.Severity]float64 `json:"by_severity"`
	ByCategory map[string]float64          `json:"by_category"`
}

// WeeklyCompliance is one SLA-compliance trend bucket.
type WeeklyCompliance struct {
	WeekStart time.Time `json:"week_start"`
	Total     int       `json:"total"`
	Met       int       `json:"met"`
	Rate      float64   `json:"rate"`
}

// SLAComplianceReport measures resolutions against their SLA targets.
type SLAComplianceReport struct {
	Window      string                      `json:"window"`
	Overall     float64                     `json:"overall"`
	BySeverity  map[domain.Severity]float64 `json:"by_severity"`
	WeeklyTrend []WeeklyCompliance          `json:"weekly_trend"`
}

// SLAAttentionItem is an active incident near or past its deadline.
type SLAAttentionItem struct {
	Incident         domain.Incident `json:"incident"`
	State            sla.State       `json:"state"`
	MinutesRemaining float64         `json:"minutes_remaining"`
}

// TeamMemberPerformance summarizes one resolver's output.
type TeamMemberPerformance struct {
	UserID          string  `json:"user_id"`
	Name            string  `json:"name"`
	ResolvedCount   int     `json:"resolved_count"`
	MTTRHours       float64 `json:"mttr_hours"`
	AvgSatisfaction float64 `json:"avg_satisfaction"`
}

// SLATargetSetting is one severity's deadlines in minutes.
type SLATargetSetting struct {
	Severity             domain.Severity `json:"severity"`
	ResolutionMinutes    int             `json:"resolution_minutes"`
	FirstResponseMinutes int             `json:"first_response_minutes"`
}

// SLASettings is the active SLA policy, most severe first.
type SLASettings struct {
	Targets             []SLATargetSetting `json:"targets"`
	AtRiskWindowMinutes int                `json:"at_risk_window_minutes"`
}

// SLASettings reports the policy in effect. Read-only: targets are
// stamped onto incidents at creation, so a policy change only affects
// incidents created after it.
func (s *AnalyticsService) SLASettings() *SLASettings {
	order := []domain.Severity{
		domain.SeverityCritical,
		domain.SeverityHigh,
		domain.SeverityMedium,
		domain.SeverityLow,
	}
	settings := &SLASettings{
		AtRiskWindowMinutes: int(s.policy.AtRiskWindow.Minutes()),
	}
	for _, severity := range order {
		resolution, ok := s.policy.ResolutionTargets[severity]
		if !ok {
			continue
		}
		firstResponse, ok := s.policy.FirstResponseTargets[severity]
		if !ok {
			firstResponse = resolution
		}
		settings.Targets = append(settings.Targets, SLATargetSetting{
			Severity:             severity,
			ResolutionMinutes:    int(resolution.Minutes()),
			FirstResponseMinutes: int(firstResponse.Minutes()),
		})
	}
	return settings
}

// Dashboard computes the summary stats.
func (s *AnalyticsService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	if s.fromCache(ctx, "analytics:dashboard", &stats) {
		return &stats, nil
	}

	rows, err := s.incidents.ListAnalyticsRows(ctx, time.Time{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := s.now()
	weekAgo := now.Add(-7 * 24 * time.Hour)
	twoWeeksAgo := now.Add(-14 * 24 * time.Hour)

	var createdLastWeek, resolvedLastWeek int
	var resolutionHoursSum float64
	var resolutionCount int
	for _, row := range rows {
		stats.TotalIncidents++
		if isOpenStatus(row.Status) {
			stats.OpenIncidents++
			if row.Severity == domain.SeverityCritical {
				stats.CriticalOpen++
			}
		}
		if row.ResolvedAt != nil {
			stats.ResolvedIncidents++
			resolutionHoursSum += row.ResolvedAt.Sub(row.CreatedAt).Hours()
			resolutionCount++
			if row.ResolvedAt.After(weekAgo) {
				stats.ResolvedThisWeek++
			} else if row.ResolvedAt.After(twoWeeksAgo) {
				resolvedLastWeek++
			}
		}
		if row.CreatedAt.After(weekAgo) {
			stats.CreatedThisWeek++
		} else if row.CreatedAt.After(twoWeeksAgo) {
			createdLastWeek++
		}
	}
	if resolutionCount > 0 {
		stats.AvgResolutionHours = roundTo(resolutionHoursSum/float64(resolutionCount), 2)
	}
	stats.CreatedTrendPct = percentChange(stats.CreatedThisWeek, createdLastWeek)
	stats.ResolvedTrendPct = percentChange(stats.ResolvedThisWeek, resolvedLastWeek)

	active, err := s.incidents.ListActiveWithTarget(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i := range active {
		switch s.policy.Evaluate(&active[i], now) {
		case sla.StateAtRisk:
			stats.AtRisk++
		case sla.StateBreached:
			stats.Breached++
		}
	}

	s.storeCache(ctx, "analytics:dashboard", &stats)
	return &stats, nil
}

// Charts aggregates incident counts for dashboard charts over a window.
func (s *AnalyticsService) Charts(ctx context.Context, window string) (*ChartData, error) {
	span, err := ParseWindow(window)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("analytics:charts:%s", window)

	var data ChartData
	if s.fromCache(ctx, key, &data) {
		return &data, nil
	}

	now := s.now()
	rows, err := s.incidents.ListAnalyticsRows(ctx, now.Add(-span))
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	byStatus := map[string]int{}
	bySeverity := map[string]int{}
	byCategory := map[string]int{}
	createdByDay := map[string]int{}
	resolvedByDay := map[string]int{}
	for _, row := range rows {
		byStatus[string(row.Status)]++
		bySeverity[string(row.Severity)]++
		byCategory[row.Category]++
		createdByDay[row.CreatedAt.Format("2006-01-02")]++
		if row.ResolvedAt != nil {
			resolvedByDay[row.ResolvedAt.Format("2006-01-02")]++
		}
	}
	data.ByStatus = toChartPoints(byStatus)
	data.BySeverity = toChartPoints(bySeverity)
	data.ByCategory = toChartPoints(byCategory)
	data.CreatedPerDay = toChartPoints(createdByDay)
	data.ResolvedPerDay = toChartPoints(resolvedByDay)

	s.storeCache(ctx, key, &data)
	return &data, nil
}

// Performance computes MTTR, MTTA, first-contact resolution rate and
// satisfaction over a window. Empty windows report zeros.
func (s *AnalyticsService) Performance(ctx context.Context, window string) (*PerformanceReport, error) {
	span, err := ParseWindow(window)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("analytics:performance:%s", window)

	var report PerformanceReport
	if s.fromCache(ctx, key, &report) {
		return &report, nil
	}

	rows, err := s.incidents.ListAnalyticsRows(ctx, s.now().Add(-span))
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	report = PerformanceReport{
		Window:              windowLabel(window),
		MTTRHoursBySeverity: map[domain.Severity]float64{},
	}
	var mttrSum float64
	mttrBySev := map[domain.Severity]float64{}
	countBySev := map[domain.Severity]int{}
	var mttaSum float64
	var mttaCount, firstContact int
	var satisfactionSum float64
	var satisfactionCount int

	for _, row := range rows {
		if row.AcknowledgedAt != nil {
			mttaSum += row.AcknowledgedAt.Sub(row.CreatedAt).Minutes()
			mttaCount++
		}
		if row.ResolvedAt == nil {
			continue
		}
		report.ResolvedCount++
		hours := row.ResolvedAt.Sub(row.CreatedAt).Hours()
		mttrSum += hours
		mttrBySev[row.Severity] += hours
		countBySev[row.Severity]++
		if row.ReopenCount == 0 {
			firstContact++
		}
		if row.SatisfactionRating != nil {
			satisfactionSum += float64(*row.SatisfactionRating)
			satisfactionCount++
		}
	}

	if report.ResolvedCount > 0 {
		report.MTTRHours = roundTo(mttrSum/float64(report.ResolvedCount), 2)
		report.FirstContactRate = roundTo(float64(firstContact)/float64(report.ResolvedCount)*100, 2)
	}
	for severity, sum := range mttrBySev {
		report.MTTRHoursBySeverity[severity] = roundTo(sum/float64(countBySev[severity]), 2)
	}
	if mttaCount > 0 {
		report.MTTAMinutes = roundTo(mttaSum/float64(mttaCount), 2)
	}
	if satisfactionCount > 0 {
		report.AvgSatisfaction = roundTo(satisfactionSum/float64(satisfactionCount), 2)
	}

	s.storeCache(ctx, key, &report)
	return &report, nil
}

// ResolutionRate reports resolved-over-created for a window.
func (s *AnalyticsService) ResolutionRate(ctx context.Context, window string) (*ResolutionRateReport, error) {
	span, err := ParseWindow(window)
	if err != nil {
		return nil, err
	}
	rows, err := s.incidents.ListAnalyticsRows(ctx, s.now().Add(-span))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	report := &ResolutionRateReport{
		Window:     windowLabel(window),
		Total:      len(rows),
		BySeverity: map[domain.Severity]float64{},
		ByCategory: map[string]float64{},
	}
	totalBySev := map[domain.Severity]int{}
	resolvedBySev := map[domain.Severity]int{}
	totalByCat := map[string]int{}
	resolvedByCat := map[string]int{}
	for _, row := range rows {
		totalBySev[row.Severity]++
		totalByCat[row.Category]++
		if row.ResolvedAt != nil {
			report.Resolved++
			resolvedBySev[row.Severity]++
			resolvedByCat[row.Category]++
		}
	}
	if report.Total > 0 {
		report.Rate = roundTo(float64(report.Resolved)/float64(report.Total)*100, 2)
	}
	for severity, count := range totalBySev {
		report.BySeverity[severity] = roundTo(float64(resolvedBySev[severity])/float64(count)*100, 2)
	}
	for category, count := range totalByCat {
		report.ByCategory[category] = roundTo(float64(resolvedByCat[category])/float64(count)*100, 2)
	}
	return report, nil
}

// SLACompliance measures how many resolutions met their target, overall,
// per severity, and as a weekly trend across the window.
func (s *AnalyticsService) SLACompliance(ctx context.Context, window string) (*SLAComplianceReport, error) {
	span, err := ParseWindow(window)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("analytics:sla:%s", window)

	var report SLAComplianceReport
	if s.fromCache(ctx, key, &report) {
		return &report, nil
	}

	now := s.now()
	rows, err := s.incidents.ListAnalyticsRows(ctx, now.Add(-span))
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	report = SLAComplianceReport{
		Window:     windowLabel(window),
		BySeverity: map[domain.Severity]float64{},
	}

	var total, met int
	totalBySev := map[domain.Severity]int{}
	metBySev := map[domain.Severity]int{}
	const week = 7 * 24 * time.Hour
	// round up so a trailing partial week still lands in a bucket
	weeks := int((span + week - 1) / week)
	if weeks < 1 {
		weeks = 1
	}
	totalByWeek := make([]int, weeks)
	metByWeek := make([]int, weeks)

	for _, row := range rows {
		if row.ResolvedAt == nil || row.SLATarget == nil {
			continue
		}
		withinTarget := !row.ResolvedAt.After(*row.SLATarget)
		total++
		totalBySev[row.Severity]++
		if withinTarget {
			met++
			metBySev[row.Severity]++
		}
		bucket := int(now.Sub(*row.ResolvedAt) / week)
		if bucket >= 0 && bucket < weeks {
			totalByWeek[bucket]++
			if withinTarget {
				metByWeek[bucket]++
			}
		}
	}

	if total > 0 {
		report.Overall = roundTo(float64(met)/float64(total)*100, 2)
	}
	for severity, count := range totalBySev {
		report.BySeverity[severity] = roundTo(float64(metBySev[severity])/float64(count)*100, 2)
	}
	// oldest bucket first so the trend reads left to right
	for bucket := weeks - 1; bucket >= 0; bucket-- {
		entry := WeeklyCompliance{
			WeekStart: now.Add(-time.Duration(bucket+1) * week),
			Total:     totalByWeek[bucket],
			Met:       metByWeek[bucket],
		}
		if entry.Total > 0 {
			entry.Rate = roundTo(float64(entry.Met)/float64(entry.Total)*100, 2)
		}
		report.WeeklyTrend = append(report.WeeklyTrend, entry)
	}

	s.storeCache(ctx, key, &report)
	return &report, nil
}

// SLAAttention lists active incidents at risk or in breach, most urgent
// first. Never cached: the whole point is freshness.
func (s *AnalyticsService) SLAAttention(ctx context.Context) ([]SLAAttentionItem, error) {
	active, err := s.incidents.ListActiveWithTarget(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	now := s.now()
	items := make([]SLAAttentionItem, 0)
	for i := range active {
		state := s.policy.Evaluate(&active[i], now)
		if state == sla.StateOnTrack {
			continue
		}
		items = append(items, SLAAttentionItem{
			Incident:         active[i],
			State:            state,
			MinutesRemaining: roundTo(sla.TimeRemaining(&active[i], now).Minutes(), 1),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].MinutesRemaining < items[j].MinutesRemaining
	})
	return items, nil
}

// TeamPerformance summarizes resolver output over a window.
func (s *AnalyticsService) TeamPerformance(ctx context.Context, window string) ([]TeamMemberPerformance, error) {
	span, err := ParseWindow(window)
	if err != nil {
		return nil, err
	}
	rows, err := s.incidents.ListAnalyticsRows(ctx, s.now().Add(-span))
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	type resolverAgg struct {
		count             int
		hoursSum          float64
		satisfactionSum   float64
		satisfactionCount int
	}
	byResolver := map[string]*resolverAgg{}
	for _, row := range rows {
		if row.ResolvedAt == nil || row.ResolvedBy == nil || *row.ResolvedBy == "" {
			continue
		}
		agg := byResolver[*row.ResolvedBy]
		if agg == nil {
			agg = &resolverAgg{}
			byResolver[*row.ResolvedBy] = agg
		}
		agg.count++
		agg.hoursSum += row.ResolvedAt.Sub(row.CreatedAt).Hours()
		if row.SatisfactionRating != nil {
			agg.satisfactionSum += float64(*row.SatisfactionRating)
			agg.satisfactionCount++
		}
	}

	ids := make([]string, 0, len(byResolver))
	for id := range byResolver {
		ids = append(ids, id)
	}
	names := map[string]string{}
	if len(ids) > 0 {
		users, err := s.users.ListByIDs(ctx, ids)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		for i := range users {
			names[users[i].ID] = users[i].FullName()
		}
	}

	result := make([]TeamMemberPerformance, 0, len(byResolver))
	for id, agg := range byResolver {
		entry := TeamMemberPerformance{
			UserID:        id,
			Name:          names[id],
			ResolvedCount: agg.count,
			MTTRHours:     roundTo(agg.hoursSum/float64(agg.count), 2),
		}
		if agg.satisfactionCount > 0 {
			entry.AvgSatisfaction = roundTo(agg.satisfactionSum/float64(agg.satisfactionCount), 2)
		}
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ResolvedCount != result[j].ResolvedCount {
			return result[i].ResolvedCount > result[j].ResolvedCount
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *AnalyticsService) fromCache(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Debug("analytics cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Debug("analytics cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *AnalyticsService) storeCache(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Debug("analytics cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func isOpenStatus(status domain.Status) bool {
	switch status {
	case domain.StatusResolved, domain.StatusClosed:
		return false
	default:
		return true
	}
}

func toChartPoints(counts map[string]int) []ChartPoint {
	points := make([]ChartPoint, 0, len(counts))
	for label, count := range counts {
		points = append(points, ChartPoint{Label: label, Count: count})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Label < points[j].Label })
	return points
}

func percentChange(current, previous int) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return roundTo(float64(current-previous)/float64(previous)*100, 2)
}

func windowLabel(window string) string {
	if window == "" {
		return "30d"
	}
	return window
}

func roundTo(value float64, places int) float64 {
	factor := 1.0
	for i := 0; i < places; i++ {
		factor *= 10
	}
	return math.Round(value*factor) / factor
}
