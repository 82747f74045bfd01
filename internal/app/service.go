package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"inkwell/api/internal/archive"
	"inkwell/api/internal/auth"
	"inkwell/api/internal/config"
	"inkwell/api/internal/email"
	"inkwell/api/internal/export"
	"inkwell/api/internal/media"
	"inkwell/api/internal/search"
	"inkwell/api/internal/session"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

// ArticleInput carries the writable article fields accepted on create and
// update. ScheduledAt is RFC3339; it is required when Status is "scheduled"
// and ignored otherwise.
type ArticleInput struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Excerpt     string   `json:"excerpt"`
	CoverImage  string   `json:"coverImage"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
	ScheduledAt string   `json:"scheduledPublishAt"`
}

type ShareLinkInput struct {
	Permission  string `json:"permission"`
	ExpiresDays *int   `json:"expiresDays"`
}

// ShareLinkResult is returned on link creation. URL embeds the token as a
// query parameter so the frontend can hand it out verbatim.
type ShareLinkResult struct {
	Token      string     `json:"token"`
	URL        string     `json:"url"`
	Permission string     `json:"permission"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

// SharedArticle is the public payload returned when a share token resolves.
type SharedArticle struct {
	ArticleID  string     `json:"articleId"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Excerpt    string     `json:"excerpt"`
	OwnerID    string     `json:"ownerId"`
	Tags       []string   `json:"tags"`
	Permission string     `json:"permission"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

type SharedUpdateInput struct {
	Token     string   `json:"token"`
	ArticleID string   `json:"articleId"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
}

const defaultShareTTLDays = 7

type dataStore interface {
	EnsureUserByName(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	InsertArticle(context.Context, store.Article) error
	GetArticle(context.Context, string) (store.Article, error)
	ListArticlesByOwner(context.Context, string) ([]store.Article, error)
	UpdateArticle(context.Context, store.Article) error
	SetCoverImage(context.Context, string, string) error
	PublishDue(context.Context, time.Time) ([]string, error)
	AppendVersion(context.Context, string, string, string) (int, error)
	ListVersions(context.Context, string) ([]store.ArticleVersion, error)
	GetVersion(context.Context, string, int) (store.ArticleVersion, error)
	InsertShareLink(context.Context, store.ShareLink) error
	GetShareLink(context.Context, string) (store.ShareLink, error)
	InsertChatMessage(context.Context, string, string, string) (store.ChatMessage, error)
	ListChatMessages(context.Context, string) ([]store.ChatMessage, error)
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
}

type versionArchive interface {
	MirrorVersion(articleID string, version int, content, author string) (archive.CommitInfo, error)
	History(articleID string, limit int) ([]archive.CommitInfo, error)
}

type mediaStore interface {
	PutCover(ctx context.Context, articleID string, r io.Reader, size int64, contentType string) (string, error)
	CoverURL(ctx context.Context, objectKey string) (string, error)
}

type mailer interface {
	SendArticlePublished(toEmail, toName, title, articleURL string) error
}

type exporter interface {
	Export(ctx context.Context, req export.Request) (export.Result, error)
}

// Deps bundles the optional collaborators. Any of them may be nil; the
// corresponding feature degrades to a no-op (search, archive, mail) or a
// 503 (media, export).
type Deps struct {
	Archive *archive.Service
	Search  *search.Service
	Media   *media.Store
	Mail    *email.Service
	Export  *export.Service
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	archive  versionArchive
	search   *search.Service
	media    mediaStore
	mail     mailer
	export   exporter
}

func New(cfg config.Config, dataStore *store.PostgresStore, deps Deps) *Service {
	s := &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: dataStore,
		search:   deps.Search,
	}
	if deps.Archive != nil {
		s.archive = deps.Archive
	}
	if deps.Media != nil {
		s.media = deps.Media
	}
	if deps.Mail != nil {
		s.mail = deps.Mail
	}
	if deps.Export != nil {
		s.export = deps.Export
	}
	return s
}

// NewWithSessionStore is New with refresh sessions kept in Redis instead of
// Postgres.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, deps Deps) *Service {
	s := New(cfg, dataStore, deps)
	s.sessions = sessions
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// --- sessions ---

func (s *Service) Login(ctx context.Context, name string) (Session, error) {
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "Writer"
	}

	user, err := s.store.EnsureUserByName(ctx, userName)
	if err != nil {
		return Session{}, err
	}

	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The Redis backend stores only the user id; hydrate the display name.
	if user.DisplayName == "" {
		if full, err := s.store.GetUserByID(ctx, user.ID); err == nil {
			user = full
		}
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// --- article state machine ---

func (s *Service) CreateArticle(ctx context.Context, actor Session, input ArticleInput) (store.Article, error) {
	if err := validateArticleFields(input.Title, input.Content); err != nil {
		return store.Article{}, err
	}

	status, scheduledAt, err := normalizeSchedule(input.Status, input.ScheduledAt, time.Now())
	if err != nil {
		return store.Article{}, err
	}

	item := store.Article{
		ID:          util.NewID("art"),
		OwnerID:     actor.UserID,
		Title:       strings.TrimSpace(input.Title),
		Content:     input.Content,
		Excerpt:     strings.TrimSpace(input.Excerpt),
		CoverImage:  input.CoverImage,
		Status:      status,
		ScheduledAt: scheduledAt,
		Tags:        normalizeTags(input.Tags),
	}

	if err := s.store.InsertArticle(ctx, item); err != nil {
		return store.Article{}, err
	}

	version, err := s.store.AppendVersion(ctx, item.ID, item.Content, actor.UserID)
	if err != nil {
		return store.Article{}, err
	}

	s.mirrorVersion(item.ID, version, item.Content, actor.UserName)
	s.indexArticle(item)

	return s.store.GetArticle(ctx, item.ID)
}

func (s *Service) UpdateArticle(ctx context.Context, actor Session, articleID string, input ArticleInput) (store.Article, error) {
	item, err := s.store.GetArticle(ctx, articleID)
	if err != nil {
		return store.Article{}, err
	}
	if item.OwnerID != actor.UserID {
		return store.Article{}, domainError(http.StatusForbidden, "FORBIDDEN", "Only the owner can edit this article", nil)
	}

	if err := validateArticleFields(input.Title, input.Content); err != nil {
		return store.Article{}, err
	}

	statusInput := input.Status
	if statusInput == "" {
		statusInput = item.Status
	}
	var status string
	var scheduledAt *time.Time
	if statusInput == store.StatusScheduled && input.ScheduledAt == "" &&
		item.Status == store.StatusScheduled && item.ScheduledAt != nil {
		// Keeping an existing schedule is not a re-schedule. The time may
		// already be due and waiting on the publish worker, so it is not
		// checked against now again.
		status = store.StatusScheduled
		scheduledAt = item.ScheduledAt
	} else {
		status, scheduledAt, err = normalizeSchedule(statusInput, input.ScheduledAt, time.Now())
		if err != nil {
			return store.Article{}, err
		}
	}

	item.Title = strings.TrimSpace(input.Title)
	item.Content = input.Content
	item.Excerpt = strings.TrimSpace(input.Excerpt)
	if input.CoverImage != "" {
		item.CoverImage = input.CoverImage
	}
	item.Status = status
	item.ScheduledAt = scheduledAt
	if input.Tags != nil {
		item.Tags = normalizeTags(input.Tags)
	}

	if err := s.store.UpdateArticle(ctx, item); err != nil {
		return store.Article{}, err
	}

	version, err := s.store.AppendVersion(ctx, item.ID, item.Content, actor.UserID)
	if err != nil {
		return store.Article{}, err
	}

	s.mirrorVersion(item.ID, version, item.Content, actor.UserName)
	s.indexArticle(item)

	return s.store.GetArticle(ctx, item.ID)
}

func (s *Service) GetArticle(ctx context.Context, actor Session, articleID string) (store.Article, error) {
	item, err := s.store.GetArticle(ctx, articleID)
	if err != nil {
		return store.Article{}, err
	}
	if item.OwnerID != actor.UserID && item.Status != store.StatusPublished {
		return store.Article{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return item, nil
}

func (s *Service) ListArticles(ctx context.Context, actor Session) ([]store.Article, error) {
	return s.store.ListArticlesByOwner(ctx, actor.UserID)
}

// PublishDue flips every scheduled article whose time has elapsed to
// published and returns the ids transitioned by this call. Reindexing and
// owner notification are best-effort.
func (s *Service) PublishDue(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := s.store.PublishDue(ctx, now)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		item, err := s.store.GetArticle(ctx, id)
		if err != nil {
			log.Printf("scheduler: load published article %s: %v", id, err)
			continue
		}
		s.indexArticle(item)
		s.notifyPublished(ctx, item)
	}

	return ids, nil
}

func (s *Service) notifyPublished(ctx context.Context, item store.Article) {
	if s.mail == nil {
		return
	}
	owner, err := s.store.GetUserByID(ctx, item.OwnerID)
	if err != nil {
		log.Printf("scheduler: lookup owner for %s: %v", item.ID, err)
		return
	}
	if owner.Email == "" {
		return
	}
	articleURL := strings.TrimRight(s.cfg.ShareBaseURL, "/") + "/articles/" + item.ID
	if err := s.mail.SendArticlePublished(owner.Email, owner.DisplayName, item.Title, articleURL); err != nil {
		log.Printf("scheduler: publish notification for %s: %v", item.ID, err)
	}
}

// --- version log ---

func (s *Service) ListVersions(ctx context.Context, actor Session, articleID string) ([]store.ArticleVersion, error) {
	if err := s.requireOwner(ctx, actor, articleID); err != nil {
		return nil, err
	}
	return s.store.ListVersions(ctx, articleID)
}

func (s *Service) GetVersion(ctx context.Context, actor Session, articleID string, number int) (store.ArticleVersion, error) {
	if err := s.requireOwner(ctx, actor, articleID); err != nil {
		return store.ArticleVersion{}, err
	}
	return s.store.GetVersion(ctx, articleID, number)
}

func (s *Service) ArticleHistory(ctx context.Context, actor Session, articleID string, limit int) ([]archive.CommitInfo, error) {
	if err := s.requireOwner(ctx, actor, articleID); err != nil {
		return nil, err
	}
	if s.archive == nil {
		return []archive.CommitInfo{}, nil
	}
	return s.archive.History(articleID, limit)
}

func (s *Service) requireOwner(ctx context.Context, actor Session, articleID string) error {
	item, err := s.store.GetArticle(ctx, articleID)
	if err != nil {
		return err
	}
	if item.OwnerID != actor.UserID {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return nil
}

// --- capability tokens (share links) ---

func (s *Service) CreateShareLink(ctx context.Context, actor Session, articleID string, input ShareLinkInput) (ShareLinkResult, error) {
	item, err := s.store.GetArticle(ctx, articleID)
	if err != nil {
		return ShareLinkResult{}, err
	}
	if item.OwnerID != actor.UserID {
		return ShareLinkResult{}, domainError(http.StatusForbidden, "FORBIDDEN", "Only the owner can share this article", nil)
	}

	permission := input.Permission
	if permission == "" {
		permission = store.PermissionEdit
	}
	if permission != store.PermissionEdit && permission != store.PermissionView {
		return ShareLinkResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "permission must be 'edit' or 'view'", nil)
	}

	days := defaultShareTTLDays
	if input.ExpiresDays != nil {
		days = *input.ExpiresDays
	}
	if days < 0 {
		return ShareLinkResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "expiresDays must be zero or positive", nil)
	}

	var expiresAt *time.Time
	if days > 0 {
		t := time.Now().UTC().Truncate(time.Second).AddDate(0, 0, days)
		expiresAt = &t
	}

	link := store.ShareLink{
		Token:      util.NewID("shr"),
		ArticleID:  articleID,
		CreatedBy:  actor.UserID,
		Permission: permission,
		ExpiresAt:  expiresAt,
	}
	if err := s.store.InsertShareLink(ctx, link); err != nil {
		return ShareLinkResult{}, err
	}

	return ShareLinkResult{
		Token:      link.Token,
		URL:        s.shareURL(link),
		Permission: permission,
		ExpiresAt:  expiresAt,
	}, nil
}

func (s *Service) shareURL(link store.ShareLink) string {
	base := strings.TrimRight(s.cfg.ShareBaseURL, "/")
	mode := "view"
	if link.Permission == store.PermissionEdit {
		mode = "edit"
	}
	return fmt.Sprintf("%s/shared/%s/%s?token=%s", base, mode, link.ArticleID, link.Token)
}

// ResolveShareLink validates a token and returns the article it grants
// access to. Tokens are reusable: resolution never consumes them.
func (s *Service) ResolveShareLink(ctx context.Context, token string) (SharedArticle, error) {
	link, err := s.resolveLink(ctx, token)
	if err != nil {
		return SharedArticle{}, err
	}

	item, err := s.store.GetArticle(ctx, link.ArticleID)
	if err != nil {
		return SharedArticle{}, err
	}

	return SharedArticle{
		ArticleID:  item.ID,
		Title:      item.Title,
		Content:    item.Content,
		Excerpt:    item.Excerpt,
		OwnerID:    item.OwnerID,
		Tags:       item.Tags,
		Permission: link.Permission,
		ExpiresAt:  link.ExpiresAt,
	}, nil
}

func (s *Service) resolveLink(ctx context.Context, token string) (store.ShareLink, error) {
	link, err := s.store.GetShareLink(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ShareLink{}, domainError(http.StatusNotFound, "NOT_FOUND", "Share link not found", nil)
		}
		return store.ShareLink{}, err
	}
	if link.Expired(time.Now()) {
		return store.ShareLink{}, domainError(http.StatusNotFound, "EXPIRED", "Share link expired", nil)
	}
	return link, nil
}

// UpdateViaShareLink applies an edit carried by a share token. The recorded
// author is the link creator, not the anonymous editor: share links are
// capabilities acting on the owner's behalf.
func (s *Service) UpdateViaShareLink(ctx context.Context, input SharedUpdateInput) (store.Article, error) {
	link, err := s.resolveLink(ctx, input.Token)
	if err != nil {
		return store.Article{}, err
	}
	if link.Permission != store.PermissionEdit {
		return store.Article{}, domainError(http.StatusForbidden, "FORBIDDEN", "This link does not allow editing", nil)
	}
	if input.ArticleID != "" && input.ArticleID != link.ArticleID {
		return store.Article{}, domainError(http.StatusForbidden, "FORBIDDEN", "Link does not match article", nil)
	}

	if err := validateArticleFields(input.Title, input.Content); err != nil {
		return store.Article{}, err
	}

	item, err := s.store.GetArticle(ctx, link.ArticleID)
	if err != nil {
		return store.Article{}, err
	}

	item.Title = strings.TrimSpace(input.Title)
	item.Content = input.Content
	if input.Tags != nil {
		item.Tags = normalizeTags(input.Tags)
	}

	if err := s.store.UpdateArticle(ctx, item); err != nil {
		return store.Article{}, err
	}

	version, err := s.store.AppendVersion(ctx, item.ID, item.Content, link.CreatedBy)
	if err != nil {
		return store.Article{}, err
	}

	author := link.CreatedBy
	if owner, err := s.store.GetUserByID(ctx, link.CreatedBy); err == nil {
		author = owner.DisplayName
	}
	s.mirrorVersion(item.ID, version, item.Content, author)
	s.indexArticle(item)

	return s.store.GetArticle(ctx, item.ID)
}

// --- chat ---

func (s *Service) SendChatMessage(ctx context.Context, articleID, senderID, body string) (store.ChatMessage, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return store.ChatMessage{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "message body is required", nil)
	}

	msg, err := s.store.InsertChatMessage(ctx, articleID, senderID, trimmed)
	if err != nil {
		return store.ChatMessage{}, err
	}

	if s.search != nil {
		s.search.IndexMessage(search.MessageRecord{
			ID:        fmt.Sprintf("msg_%d", msg.ID),
			Body:      msg.Body,
			Sender:    msg.SenderName,
			ArticleID: msg.ArticleID,
		})
	}

	return msg, nil
}

func (s *Service) ChatHistory(ctx context.Context, articleID string) ([]store.ChatMessage, error) {
	if _, err := s.store.GetArticle(ctx, articleID); err != nil {
		return nil, err
	}
	return s.store.ListChatMessages(ctx, articleID)
}

// --- cover images ---

func (s *Service) UploadCover(ctx context.Context, actor Session, articleID string, r io.Reader, size int64, contentType string) (string, error) {
	if err := s.requireOwner(ctx, actor, articleID); err != nil {
		return "", err
	}
	if s.media == nil {
		return "", domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Media storage not configured", nil)
	}

	objectKey, err := s.media.PutCover(ctx, articleID, r, size, contentType)
	if err != nil {
		return "", err
	}
	if err := s.store.SetCoverImage(ctx, articleID, objectKey); err != nil {
		return "", err
	}
	return objectKey, nil
}

// CoverURL resolves an object key to a presigned URL. Best-effort: returns
// the key unchanged when media storage is absent.
func (s *Service) CoverURL(ctx context.Context, objectKey string) string {
	if s.media == nil || objectKey == "" {
		return objectKey
	}
	url, err := s.media.CoverURL(ctx, objectKey)
	if err != nil {
		log.Printf("media: presign %s: %v", objectKey, err)
		return objectKey
	}
	return url
}

// --- export ---

func (s *Service) ExportArticle(ctx context.Context, actor Session, articleID string, format export.Format) (export.Result, error) {
	item, err := s.GetArticle(ctx, actor, articleID)
	if err != nil {
		return export.Result{}, err
	}
	if s.export == nil {
		return export.Result{}, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export service not configured", nil)
	}

	owner, err := s.store.GetUserByID(ctx, item.OwnerID)
	if err != nil {
		return export.Result{}, err
	}

	return s.export.Export(ctx, export.Request{
		Article:    item,
		AuthorName: owner.DisplayName,
		Format:     format,
	})
}

// --- search ---

func (s *Service) Search(ctx context.Context, q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}, nil
	}
	return s.search.Search(q)
}

// --- side effects ---

func (s *Service) mirrorVersion(articleID string, version int, content, author string) {
	if s.archive == nil {
		return
	}
	if _, err := s.archive.MirrorVersion(articleID, version, content, author); err != nil {
		log.Printf("archive: mirror %s v%d: %v", articleID, version, err)
	}
}

func (s *Service) indexArticle(item store.Article) {
	if s.search == nil {
		return
	}
	s.search.IndexArticle(search.ArticleRecord{
		ID:      item.ID,
		Title:   item.Title,
		Excerpt: item.Excerpt,
		Content: item.Content,
		OwnerID: item.OwnerID,
		Status:  item.Status,
		Tags:    item.Tags,
	})
}

// --- validation helpers ---

func validateArticleFields(title, content string) error {
	details := map[string]string{}
	if strings.TrimSpace(title) == "" {
		details["title"] = "required"
	}
	if strings.TrimSpace(content) == "" {
		details["content"] = "required"
	}
	if len(details) > 0 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title and content are required", details)
	}
	return nil
}

func normalizeSchedule(status, scheduledAt string, now time.Time) (string, *time.Time, error) {
	if status == "" {
		status = store.StatusDraft
	}
	switch status {
	case store.StatusDraft, store.StatusPublished:
		return status, nil, nil
	case store.StatusScheduled:
	default:
		return "", nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be draft, scheduled or published", nil)
	}

	if strings.TrimSpace(scheduledAt) == "" {
		return "", nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "scheduledPublishAt is required for scheduled articles", nil)
	}
	parsed, err := time.Parse(time.RFC3339, scheduledAt)
	if err != nil {
		return "", nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "scheduledPublishAt must be RFC3339", nil)
	}
	normalized := parsed.UTC().Truncate(time.Second)
	if !normalized.After(now) {
		return "", nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "scheduledPublishAt must be in the future", nil)
	}
	return store.StatusScheduled, &normalized, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		trimmed := strings.ToLower(strings.TrimSpace(tag))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
