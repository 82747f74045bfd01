package store

import "time"

type User struct {
	ID          string
	DisplayName string
	Email       string
	CreatedAt   time.Time
}

// Article statuses. A scheduled article carries a non-nil ScheduledAt in the
// future as of scheduling time; the publication worker flips it to published
// once that time elapses.
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusPublished = "published"
)

type Article struct {
	ID          string
	OwnerID     string
	Title       string
	Content     string
	Excerpt     string
	CoverImage  string
	Status      string
	ScheduledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Tags        []string
}

// ArticleVersion is an immutable snapshot taken on every explicit save.
// VersionNumber values per article are contiguous starting at 1.
type ArticleVersion struct {
	ID            int64
	ArticleID     string
	Content       string
	ModifiedBy    string
	VersionNumber int
	CreatedAt     time.Time
}

// Share link permission levels.
const (
	PermissionEdit = "edit"
	PermissionView = "view"
)

// ShareLink is a capability: whoever holds the token may read (view) or
// mutate (edit) the article until expiry. ExpiresAt nil means never expires.
type ShareLink struct {
	Token      string
	ArticleID  string
	CreatedBy  string
	Permission string
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the link is no longer valid: a link is live only
// while its expiry lies strictly in the future.
func (l ShareLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

type ChatMessage struct {
	ID         int64
	ArticleID  string
	SenderID   string
	SenderName string
	Body       string
	CreatedAt  time.Time
}
