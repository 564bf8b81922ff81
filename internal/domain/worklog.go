package domain

import "time"

// WorkLogEntry is an immutable audit-trail entry on an incident. Entries
// are append-only and never edited or deleted. TimeSpent is in minutes.
type WorkLogEntry struct {
	ID                string
	IncidentID        string
	Action            string
	Description       string
	UserID            string
	TimeSpentMinutes  int
	IsSystemGenerated bool
	CreatedAt         time.Time
}

// Comment is a discussion entry on an incident. Internal comments are
// visible to IT staff only.
type Comment struct {
	ID          string
	IncidentID  string
	Text        string
	AuthorID    string
	AuthorName  string
	IsInternal  bool
	Attachments []Attachment
	CreatedAt   time.Time
}

// Attachment stores file metadata against an incident or a comment. The
// bytes themselves live with the blob collaborator; StorageKey is the
// reference it returned.
type Attachment struct {
	ID           string
	IncidentID   string
	CommentID    *string
	StorageKey   string
	Filename     string
	OriginalName string
	MimeType     string
	SizeBytes    int64
	UploadedBy   string
	UploadedAt   time.Time
}
