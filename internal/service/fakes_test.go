package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/repository"
)

// fakeIncidentRepo is an in-memory IncidentRepository with the same
// compare-and-swap behavior on revision as the Postgres one.
type fakeIncidentRepo struct {
	mu             sync.Mutex
	seq            int
	incidents      map[string]*domain.Incident
	failNextUpdate error
}

func newFakeIncidentRepo() *fakeIncidentRepo {
	return &fakeIncidentRepo{incidents: make(map[string]*domain.Incident)}
}

func copyIncident(src *domain.Incident) *domain.Incident {
	dup := *src
	return &dup
}

func (r *fakeIncidentRepo) Create(_ context.Context, incident *domain.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	incident.ID = fmt.Sprintf("id-%04d", r.seq)
	incident.IncidentID = fmt.Sprintf("INC-%06d", r.seq)
	incident.Revision = 1
	incident.CreatedAt = time.Now()
	incident.UpdatedAt = incident.CreatedAt
	r.incidents[incident.ID] = copyIncident(incident)
	return nil
}

func (r *fakeIncidentRepo) Update(_ context.Context, incident *domain.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNextUpdate != nil {
		err := r.failNextUpdate
		r.failNextUpdate = nil
		return err
	}
	stored, ok := r.incidents[incident.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Revision != incident.Revision {
		return repository.ErrRevisionConflict
	}
	incident.Revision++
	incident.UpdatedAt = time.Now()
	r.incidents[incident.ID] = copyIncident(incident)
	return nil
}

func (r *fakeIncidentRepo) GetByRef(_ context.Context, ref string) (*domain.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if incident, ok := r.incidents[ref]; ok {
		return copyIncident(incident), nil
	}
	for _, incident := range r.incidents {
		if incident.IncidentID == ref {
			return copyIncident(incident), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeIncidentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.incidents[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.incidents, id)
	return nil
}

func (r *fakeIncidentRepo) List(_ context.Context, filter repository.IncidentFilter) ([]domain.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Incident
	for _, incident := range r.incidents {
		if filter.ReporterID != nil && incident.Reporter.UserID != *filter.ReporterID {
			continue
		}
		out = append(out, *copyIncident(incident))
	}
	return out, nil
}

func (r *fakeIncidentRepo) Count(ctx context.Context, filter repository.IncidentFilter) (int, error) {
	items, err := r.List(ctx, filter)
	return len(items), err
}

func (r *fakeIncidentRepo) TouchView(_ context.Context, id string, viewedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	incident, ok := r.incidents[id]
	if !ok {
		return pgx.ErrNoRows
	}
	incident.Metrics.ViewCount++
	incident.Metrics.LastViewedAt = &viewedAt
	return nil
}

func (r *fakeIncidentRepo) MarkBreached(_ context.Context, id string, breachedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	incident, ok := r.incidents[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if incident.SLA.IsBreached {
		return false, nil
	}
	incident.SLA.IsBreached = true
	incident.SLA.BreachedAt = &breachedAt
	return true, nil
}

func (r *fakeIncidentRepo) ListActiveWithTarget(_ context.Context) ([]domain.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Incident
	for _, incident := range r.incidents {
		switch incident.Status {
		case domain.StatusResolved, domain.StatusClosed:
			continue
		}
		if incident.SLA.Target.IsZero() {
			continue
		}
		out = append(out, *copyIncident(incident))
	}
	return out, nil
}

func (r *fakeIncidentRepo) ListAnalyticsRows(context.Context, time.Time) ([]repository.AnalyticsRow, error) {
	return nil, nil
}

func (r *fakeIncidentRepo) CountOpenByAssignee(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, incident := range r.incidents {
		if incident.Assignee == nil || incident.Assignee.UserID != userID {
			continue
		}
		if incident.Status == domain.StatusAssigned || incident.Status == domain.StatusInProgress {
			count++
		}
	}
	return count, nil
}

func (r *fakeIncidentRepo) WorkloadByAssignee(context.Context, int) ([]repository.WorkloadRow, error) {
	return nil, nil
}

func (r *fakeIncidentRepo) stored(id string) *domain.Incident {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyIncident(r.incidents[id])
}

type fakeWorkLogRepo struct {
	mu      sync.Mutex
	entries []domain.WorkLogEntry
}

func (r *fakeWorkLogRepo) Append(_ context.Context, entry *domain.WorkLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = fmt.Sprintf("wl-%04d", len(r.entries)+1)
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeWorkLogRepo) ListByIncident(_ context.Context, incidentID string) ([]domain.WorkLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WorkLogEntry
	for _, entry := range r.entries {
		if entry.IncidentID == incidentID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *fakeWorkLogRepo) forIncident(incidentID string) []domain.WorkLogEntry {
	out, _ := r.ListByIncident(context.Background(), incidentID)
	return out
}

type fakeCommentRepo struct {
	mu       sync.Mutex
	comments []domain.Comment
}

func (r *fakeCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment.ID = fmt.Sprintf("c-%04d", len(r.comments)+1)
	comment.CreatedAt = time.Now()
	r.comments = append(r.comments, *comment)
	return nil
}

func (r *fakeCommentRepo) ListByIncident(_ context.Context, incidentID string) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Comment
	for _, comment := range r.comments {
		if comment.IncidentID == incidentID {
			out = append(out, comment)
		}
	}
	return out, nil
}

type fakeAttachmentRepo struct {
	mu          sync.Mutex
	attachments []domain.Attachment
}

func (r *fakeAttachmentRepo) Create(_ context.Context, attachment *domain.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	attachment.ID = fmt.Sprintf("a-%04d", len(r.attachments)+1)
	attachment.UploadedAt = time.Now()
	r.attachments = append(r.attachments, *attachment)
	return nil
}

func (r *fakeAttachmentRepo) ListByIncident(_ context.Context, incidentID string) ([]domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Attachment
	for _, attachment := range r.attachments {
		if attachment.IncidentID == incidentID && attachment.CommentID == nil {
			out = append(out, attachment)
		}
	}
	return out, nil
}

func (r *fakeAttachmentRepo) ListByComment(_ context.Context, commentID string) ([]domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Attachment
	for _, attachment := range r.attachments {
		if attachment.CommentID != nil && *attachment.CommentID == commentID {
			out = append(out, attachment)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = fmt.Sprintf("u-%04d", len(r.users)+1)
	user.CreatedAt = time.Now()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	dup := *user
	return &dup, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			dup := *user
			return &dup, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, user := range r.users {
		if filter.Active != nil && user.IsActive != *filter.Active {
			continue
		}
		if len(filter.Roles) > 0 {
			match := false
			for _, role := range filter.Roles {
				if user.Role == role {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *user)
	}
	return out, nil
}

func (r *fakeUserRepo) ListByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) RecordLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.LastLogin = &at
	return nil
}

// recordingDispatcher captures published events for assertions.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, event := range d.events {
		out = append(out, event.Type)
	}
	return out
}
