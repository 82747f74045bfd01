package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"inkwell/api/internal/config"
	"inkwell/api/internal/store"
)

type fakeStore struct {
	ensureUserByNameFn     func(context.Context, string) (store.User, error)
	getUserByIDFn          func(context.Context, string) (store.User, error)
	insertArticleFn        func(context.Context, store.Article) error
	getArticleFn           func(context.Context, string) (store.Article, error)
	listArticlesByOwnerFn  func(context.Context, string) ([]store.Article, error)
	updateArticleFn        func(context.Context, store.Article) error
	setCoverImageFn        func(context.Context, string, string) error
	publishDueFn           func(context.Context, time.Time) ([]string, error)
	appendVersionFn        func(context.Context, string, string, string) (int, error)
	listVersionsFn         func(context.Context, string) ([]store.ArticleVersion, error)
	getVersionFn           func(context.Context, string, int) (store.ArticleVersion, error)
	insertShareLinkFn      func(context.Context, store.ShareLink) error
	getShareLinkFn         func(context.Context, string) (store.ShareLink, error)
	insertChatMessageFn    func(context.Context, string, string, string) (store.ChatMessage, error)
	listChatMessagesFn     func(context.Context, string) ([]store.ChatMessage, error)
	saveRefreshSessionFn   func(context.Context, string, string, time.Time) error
	lookupRefreshSessionFn func(context.Context, string) (store.User, error)
	revokeRefreshSessionFn func(context.Context, string) error
}

func (f *fakeStore) EnsureUserByName(ctx context.Context, name string) (store.User, error) {
	if f.ensureUserByNameFn != nil {
		return f.ensureUserByNameFn(ctx, name)
	}
	return store.User{ID: "usr_1", DisplayName: name}, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, id)
	}
	return store.User{ID: id, DisplayName: "Avery"}, nil
}

func (f *fakeStore) InsertArticle(ctx context.Context, item store.Article) error {
	if f.insertArticleFn != nil {
		return f.insertArticleFn(ctx, item)
	}
	return nil
}

func (f *fakeStore) GetArticle(ctx context.Context, id string) (store.Article, error) {
	if f.getArticleFn != nil {
		return f.getArticleFn(ctx, id)
	}
	return store.Article{}, sql.ErrNoRows
}

func (f *fakeStore) ListArticlesByOwner(ctx context.Context, ownerID string) ([]store.Article, error) {
	if f.listArticlesByOwnerFn != nil {
		return f.listArticlesByOwnerFn(ctx, ownerID)
	}
	return nil, nil
}

func (f *fakeStore) UpdateArticle(ctx context.Context, item store.Article) error {
	if f.updateArticleFn != nil {
		return f.updateArticleFn(ctx, item)
	}
	return nil
}

func (f *fakeStore) SetCoverImage(ctx context.Context, articleID, key string) error {
	if f.setCoverImageFn != nil {
		return f.setCoverImageFn(ctx, articleID, key)
	}
	return nil
}

func (f *fakeStore) PublishDue(ctx context.Context, now time.Time) ([]string, error) {
	if f.publishDueFn != nil {
		return f.publishDueFn(ctx, now)
	}
	return nil, nil
}

func (f *fakeStore) AppendVersion(ctx context.Context, articleID, content, modifiedBy string) (int, error) {
	if f.appendVersionFn != nil {
		return f.appendVersionFn(ctx, articleID, content, modifiedBy)
	}
	return 1, nil
}

func (f *fakeStore) ListVersions(ctx context.Context, articleID string) ([]store.ArticleVersion, error) {
	if f.listVersionsFn != nil {
		return f.listVersionsFn(ctx, articleID)
	}
	return nil, nil
}

func (f *fakeStore) GetVersion(ctx context.Context, articleID string, number int) (store.ArticleVersion, error) {
	if f.getVersionFn != nil {
		return f.getVersionFn(ctx, articleID, number)
	}
	return store.ArticleVersion{}, sql.ErrNoRows
}

func (f *fakeStore) InsertShareLink(ctx context.Context, link store.ShareLink) error {
	if f.insertShareLinkFn != nil {
		return f.insertShareLinkFn(ctx, link)
	}
	return nil
}

func (f *fakeStore) GetShareLink(ctx context.Context, token string) (store.ShareLink, error) {
	if f.getShareLinkFn != nil {
		return f.getShareLinkFn(ctx, token)
	}
	return store.ShareLink{}, sql.ErrNoRows
}

func (f *fakeStore) InsertChatMessage(ctx context.Context, articleID, senderID, body string) (store.ChatMessage, error) {
	if f.insertChatMessageFn != nil {
		return f.insertChatMessageFn(ctx, articleID, senderID, body)
	}
	return store.ChatMessage{ID: 1, ArticleID: articleID, SenderID: senderID, Body: body, CreatedAt: time.Now()}, nil
}

func (f *fakeStore) ListChatMessages(ctx context.Context, articleID string) ([]store.ChatMessage, error) {
	if f.listChatMessagesFn != nil {
		return f.listChatMessagesFn(ctx, articleID)
	}
	return nil, nil
}

func (f *fakeStore) SaveRefreshSession(ctx context.Context, hash, userID string, expiresAt time.Time) error {
	if f.saveRefreshSessionFn != nil {
		return f.saveRefreshSessionFn(ctx, hash, userID, expiresAt)
	}
	return nil
}

func (f *fakeStore) LookupRefreshSession(ctx context.Context, hash string) (store.User, error) {
	if f.lookupRefreshSessionFn != nil {
		return f.lookupRefreshSessionFn(ctx, hash)
	}
	return store.User{}, fmt.Errorf("token not found or expired")
}

func (f *fakeStore) RevokeRefreshSession(ctx context.Context, hash string) error {
	if f.revokeRefreshSessionFn != nil {
		return f.revokeRefreshSessionFn(ctx, hash)
	}
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func newTestService(fs *fakeStore) *Service {
	return &Service{
		cfg: config.Config{
			JWTSecret:    "test-secret",
			AccessTTL:    15 * time.Minute,
			RefreshTTL:   24 * time.Hour,
			ShareBaseURL: "http://localhost:5173",
		},
		store:    fs,
		sessions: fs,
	}
}

func ownerSession() Session {
	return Session{UserID: "usr_owner", UserName: "Avery"}
}

func TestCreateArticleStartsAtVersionOne(t *testing.T) {
	var inserted store.Article
	var versionArticle, versionAuthor string
	fs := &fakeStore{
		insertArticleFn: func(_ context.Context, item store.Article) error {
			inserted = item
			return nil
		},
		appendVersionFn: func(_ context.Context, articleID, content, modifiedBy string) (int, error) {
			versionArticle = articleID
			versionAuthor = modifiedBy
			return 1, nil
		},
		getArticleFn: func(_ context.Context, id string) (store.Article, error) {
			return store.Article{ID: id, OwnerID: "usr_owner", Title: "First", Content: "Hello", Status: store.StatusDraft}, nil
		},
	}
	svc := newTestService(fs)

	item, err := svc.CreateArticle(context.Background(), ownerSession(), ArticleInput{Title: "First", Content: "Hello"})
	if err != nil {
		t.Fatalf("CreateArticle() error = %v", err)
	}
	if item.Status != store.StatusDraft {
		t.Fatalf("expected draft status, got %s", item.Status)
	}
	if inserted.OwnerID != "usr_owner" {
		t.Fatalf("expected owner usr_owner, got %s", inserted.OwnerID)
	}
	if versionArticle != inserted.ID {
		t.Fatalf("version recorded for %s, article is %s", versionArticle, inserted.ID)
	}
	if versionAuthor != "usr_owner" {
		t.Fatalf("expected first version attributed to owner, got %s", versionAuthor)
	}
}

func TestCreateArticleValidatesTitleAndContent(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.CreateArticle(context.Background(), ownerSession(), ArticleInput{Title: "  ", Content: ""})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "VALIDATION_ERROR" || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected error: %+v", domainErr)
	}
}

func TestCreateArticleRejectsPastScheduleTime(t *testing.T) {
	svc := newTestService(&fakeStore{})

	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	_, err := svc.CreateArticle(context.Background(), ownerSession(), ArticleInput{
		Title:       "Soon",
		Content:     "Body",
		Status:      store.StatusScheduled,
		ScheduledAt: past,
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestCreateArticleNormalizesScheduleToUTCSeconds(t *testing.T) {
	var inserted store.Article
	fs := &fakeStore{
		insertArticleFn: func(_ context.Context, item store.Article) error {
			inserted = item
			return nil
		},
		getArticleFn: func(_ context.Context, id string) (store.Article, error) {
			return store.Article{ID: id, OwnerID: "usr_owner"}, nil
		},
	}
	svc := newTestService(fs)

	future := time.Now().Add(48 * time.Hour).In(time.FixedZone("CEST", 2*3600)).Format(time.RFC3339)
	if _, err := svc.CreateArticle(context.Background(), ownerSession(), ArticleInput{
		Title:       "Soon",
		Content:     "Body",
		Status:      store.StatusScheduled,
		ScheduledAt: future,
	}); err != nil {
		t.Fatalf("CreateArticle() error = %v", err)
	}
	if inserted.ScheduledAt == nil {
		t.Fatal("expected scheduled time to be stored")
	}
	if loc := inserted.ScheduledAt.Location(); loc != time.UTC {
		t.Fatalf("expected UTC schedule time, got %v", loc)
	}
	if inserted.ScheduledAt.Nanosecond() != 0 {
		t.Fatal("expected second precision schedule time")
	}
}

func TestUpdateArticleForbiddenForNonOwner(t *testing.T) {
	fs := &fakeStore{
		getArticleFn: func(_ context.Context, id string) (store.Article, error) {
			return store.Article{ID: id, OwnerID: "usr_other", Title: "Theirs", Content: "Body"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateArticle(context.Background(), ownerSession(), "art_1", ArticleInput{Title: "Mine", Content: "Now"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestUpdateArticleAppendsVersionAsActor(t *testing.T) {
	var versionAuthor string
	versions := 1
	fs := &fakeStore{
		getArticleFn: func(_ context.Context, id string) (store.Article, error) {
			return store.Article{ID: id, OwnerID: "usr_owner", Title: "First", Content: "Hello", Status: store.StatusDraft}, nil
		},
		appendVersionFn: func(_ context.Context, _, _, modifiedBy string) (int, error) {
			versions++
			versionAuthor = modifiedBy
			return versions, nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.UpdateArticle(context.Background(), ownerSession(), "art_1", ArticleInput{Title: "First", Content: "Hello again"}); err != nil {
		t.Fatalf("UpdateArticle() error = %v", err)
	}
	if versions != 2 {
		t.Fatalf("expected version 2 after update, got %d", versions)
	}
	if versionAuthor != "usr_owner" {
		t.Fatalf("expected version attributed to actor, got %s", versionAuthor)
	}
}

func TestCreateShareLinkDefaultsToEditAndSevenDays(t *testing.T) {
	var saved store.ShareLink
	fs := &fakeStore{
		getArticleFn: func(_ context.Context, id string) (store.Article, error) {
			return store.Article{ID: id, OwnerID: "usr_owner"}, nil
		},
		insertShareLinkFn: func(_ context.Context, link store.ShareLink) error {
			saved = link
			return nil
		},
	}
	svc := newTestService(fs)

	result, err := svc.CreateShareLink(context.Background(), ownerSession(), "art_1", ShareLinkInput{})
	if err != nil {
		t.Fatalf("CreateShareLink() error = %v", err)
	}
	if saved.Permission != store.PermissionEdit {
		t.Fatalf("expected edit permission, got %s", saved.Permission)
	}
	if saved.ExpiresAt == nil {
		t.Fatal("expected default expiry")
	}
	want := time.Now().AddDate(0, 0, 7)
	if diff := saved.ExpiresAt.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("expected expiry about 7 days out, got %v", saved.ExpiresAt)
	}
	if !strings.Contains(result.URL, "/shared/edit/art_1?token="+saved.Token) {
		t.Fatalf("unexpected share url %s", result.URL)
	}
}

func TestCreateShareLinkViewURLDiffers(t *testing.T) {
	fs := &fakeStore{
		getArticleFn: func(_ context.Context, id string) (store.Article, error) {
			return store.Article{ID: id, OwnerID: "usr_owner"}, nil
		},
	}
	svc := newTestService(fs)

	result, err := svc.CreateShareLink(context.Background(), ownerSession(), "art_1", ShareLinkInput{Permission: store.PermissionView})
	if err != nil {
		t.Fatalf("CreateShareLink() error = %v", err)
	}
	if !strings.Contains(result.URL, "/shared/view/art_1?token=") {
		t.Fatalf("expected view path in url, got %s", result.URL)
	}
}

func TestCreateShareLinkForbiddenForNonOwner(t *testing.T) {
	fs := &fakeStore{
		getArticleFn: func(_ context.Context, id string) (store.Article, error) {
			return store.Article{ID: id, OwnerID: "usr_other"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateShareLink(context.Background(), ownerSession(), "art_1", ShareLinkInput{})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestResolveShareLinkUnknownTokenNotFound(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.ResolveShareLink(context.Background(), "shr_missing")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestResolveShareLinkExpired(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	fs := &fakeStore{
		getShareLinkFn: func(_ context.Context, token string) (store.ShareLink, error) {
			return store.ShareLink{Token: token, ArticleID: "art_1", CreatedBy: "usr_owner", Permission: store.PermissionEdit, ExpiresAt: &expired}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.ResolveShareLink(context.Background(), "shr_old")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "EXPIRED" || domainErr.Status != http.StatusNotFound {
		t.Fatalf("unexpected error: %+v", domainErr)
	}
}

func TestResolveShareLinkIsReusable(t *testing.T) {
	calls := 0
	fs := &fakeStore{
		getShareLinkFn: func(_ context.Context, token string) (store.ShareLink, error) {
			calls++
			return store.ShareLink{Token: token, ArticleID: "art_1", CreatedBy: "usr_owner", Permission: store.PermissionView}, nil
		},
		getArticleFn: func(_ context.Context, id string) (store.Article, error) {
			return store.Article{ID: id, OwnerID: "usr_owner", Title: "Shared", Content: "Body"}, nil
		},
	}
	svc := newTestService(fs)

	for i := 0; i < 3; i++ {
		shared, err := svc.ResolveShareLink(context.Background(), "shr_1")
		if err != nil {
			t.Fatalf("resolve %d error = %v", i+1, err)
		}
		if shared.ArticleID != "art_1" || shared.Permission != store.PermissionView {
			t.Fatalf("unexpected payload: %+v", shared)
		}
	}
	if calls != 3 {
		t.Fatalf("expected 3 lookups, got %d", calls)
	}
}

func TestUpdateViaShareLinkRejectsViewPermission(t *testing.T) {
	fs := &fakeStore{
		getShareLinkFn: func(_ context.Context, token string) (store.ShareLink, error) {
			return store.ShareLink{Token: token, ArticleID: "art_1", CreatedBy: "usr_owner", Permission: store.PermissionView}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateViaShareLink(context.Background(), SharedUpdateInput{
		Token: "shr_view", ArticleID: "art_1", Title: "Changed", Content: "Changed",
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN for view token, got %v", err)
	}
}

func TestUpdateViaShareLinkRejectsMismatchedArticle(t *testing.T) {
	fs := &fakeStore{
		getShareLinkFn: func(_ context.Context, token string) (store.ShareLink, error) {
			return store.ShareLink{Token: token, ArticleID: "art_1", CreatedBy: "usr_owner", Permission: store.PermissionEdit}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateViaShareLink(context.Background(), SharedUpdateInput{
		Token: "shr_1", ArticleID: "art_2", Title: "Changed", Content: "Changed",
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN for mismatched article, got %v", err)
	}
}

func TestUpdateViaShareLinkAttributesLinkCreator(t *testing.T) {
	var versionAuthor string
	fs := &fakeStore{
		getShareLinkFn: func(_ context.Context, token string) (store.ShareLink, error) {
			return store.ShareLink{Token: token, ArticleID: "art_1", CreatedBy: "usr_owner", Permission: store.PermissionEdit}, nil
		},
		getArticleFn: func(_ context.Context, id string) (store.Article, error) {
			return store.Article{ID: id, OwnerID: "usr_owner", Title: "Shared", Content: "Body"}, nil
		},
		appendVersionFn: func(_ context.Context, _, _, modifiedBy string) (int, error) {
			versionAuthor = modifiedBy
			return 3, nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.UpdateViaShareLink(context.Background(), SharedUpdateInput{
		Token: "shr_1", ArticleID: "art_1", Title: "Shared", Content: "Edited anonymously",
	}); err != nil {
		t.Fatalf("UpdateViaShareLink() error = %v", err)
	}
	if versionAuthor != "usr_owner" {
		t.Fatalf("expected version attributed to link creator, got %s", versionAuthor)
	}
}

func TestPublishDueReturnsTransitionedIDs(t *testing.T) {
	now := time.Now()
	sweeps := 0
	fs := &fakeStore{
		publishDueFn: func(_ context.Context, _ time.Time) ([]string, error) {
			sweeps++
			if sweeps == 1 {
				return []string{"art_1", "art_2"}, nil
			}
			return nil, nil
		},
		getArticleFn: func(_ context.Context, id string) (store.Article, error) {
			return store.Article{ID: id, OwnerID: "usr_owner", Status: store.StatusPublished}, nil
		},
	}
	svc := newTestService(fs)

	first, err := svc.PublishDue(context.Background(), now)
	if err != nil {
		t.Fatalf("PublishDue() error = %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 published ids, got %v", first)
	}

	second, err := svc.PublishDue(context.Background(), now)
	if err != nil {
		t.Fatalf("second PublishDue() error = %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("expected second sweep to publish nothing, got %v", second)
	}
}

func TestSendChatMessageRejectsBlankBody(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.SendChatMessage(context.Background(), "art_1", "usr_1", "   ")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	var revoked string
	fs := &fakeStore{
		lookupRefreshSessionFn: func(_ context.Context, hash string) (store.User, error) {
			return store.User{ID: "usr_1", DisplayName: "Avery"}, nil
		},
		revokeRefreshSessionFn: func(_ context.Context, hash string) error {
			revoked = hash
			return nil
		},
	}
	svc := newTestService(fs)

	session, err := svc.Refresh(context.Background(), "rft_old")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if revoked == "" {
		t.Fatal("expected old refresh token revoked")
	}
	if session.RefreshToken == "" || session.RefreshToken == "rft_old" {
		t.Fatalf("expected a new refresh token, got %q", session.RefreshToken)
	}
	if session.Token == "" {
		t.Fatal("expected a new access token")
	}
}
