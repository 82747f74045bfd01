package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inkwell/api/internal/store"
)

func newTestServer(t *testing.T, ms *memStore) *httptest.Server {
	t.Helper()
	svc := newFlowService(ms)
	srv := httptest.NewServer(NewHTTPServer(svc, "*", nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func loginAs(t *testing.T, srv *httptest.Server, name string) (string, string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"name": name})
	resp, err := http.Post(srv.URL+"/api/session/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var payload struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return payload.Token, payload.UserID
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, newMemStore())

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
}

func TestArticlesRequireAuthentication(t *testing.T) {
	srv := newTestServer(t, newMemStore())

	resp, err := http.Get(srv.URL + "/api/articles")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestCreateAndFetchArticleOverHTTP(t *testing.T) {
	srv := newTestServer(t, newMemStore())
	token, userID := loginAs(t, srv, "Avery")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/articles", token, map[string]any{
		"title":   "Hello",
		"content": "World",
		"tags":    []string{"Go", "go", " testing "},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created struct {
		ID      string   `json:"id"`
		OwnerID string   `json:"ownerId"`
		Status  string   `json:"status"`
		Tags    []string `json:"tags"`
	}
	decodeInto(t, resp, &created)
	if created.OwnerID != userID {
		t.Fatalf("ownerId = %s, want %s", created.OwnerID, userID)
	}
	if created.Status != store.StatusDraft {
		t.Fatalf("status = %s, want draft", created.Status)
	}
	if len(created.Tags) != 2 {
		t.Fatalf("expected deduplicated lowercase tags, got %v", created.Tags)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/articles/"+created.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/articles/"+created.ID+"/versions", token, nil)
	var versions struct {
		Versions []struct {
			VersionNumber int `json:"versionNumber"`
		} `json:"versions"`
	}
	decodeInto(t, resp, &versions)
	if len(versions.Versions) != 1 || versions.Versions[0].VersionNumber != 1 {
		t.Fatalf("expected a single v1 after create, got %+v", versions.Versions)
	}
}

func TestDraftHiddenFromOtherUsers(t *testing.T) {
	srv := newTestServer(t, newMemStore())
	ownerToken, _ := loginAs(t, srv, "Avery")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/articles", ownerToken, map[string]any{
		"title": "Secret", "content": "Draft body",
	})
	var created struct {
		ID string `json:"id"`
	}
	decodeInto(t, resp, &created)

	otherToken, _ := loginAs(t, srv, "Blake")
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/articles/"+created.ID, otherToken, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for non-owner draft access", resp.StatusCode)
	}
}

func TestShareResolveAndEditFlow(t *testing.T) {
	ms := newMemStore()
	srv := newTestServer(t, ms)
	token, _ := loginAs(t, srv, "Avery")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/articles", token, map[string]any{
		"title": "Shared piece", "content": "Original",
	})
	var created struct {
		ID string `json:"id"`
	}
	decodeInto(t, resp, &created)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/articles/"+created.ID+"/share-links", token, map[string]any{})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("share-link status = %d", resp.StatusCode)
	}
	var link struct {
		Token string `json:"token"`
		URL   string `json:"url"`
	}
	decodeInto(t, resp, &link)

	// Resolution needs no session.
	resp, err := http.Get(srv.URL + "/api/shared/resolve?token=" + link.Token)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status = %d", resp.StatusCode)
	}
	var shared SharedArticle
	decodeInto(t, resp, &shared)
	if shared.ArticleID != created.ID || shared.Permission != store.PermissionEdit {
		t.Fatalf("unexpected resolution payload: %+v", shared)
	}

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/shared/edit", "", SharedUpdateInput{
		Token:     link.Token,
		ArticleID: created.ID,
		Title:     "Shared piece",
		Content:   "Edited via link",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("shared edit status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/articles/"+created.ID+"/versions", token, nil)
	var versions struct {
		Versions []struct {
			VersionNumber int    `json:"versionNumber"`
			Content       string `json:"content"`
		} `json:"versions"`
	}
	decodeInto(t, resp, &versions)
	if len(versions.Versions) != 2 {
		t.Fatalf("expected v2 after share edit, got %d versions", len(versions.Versions))
	}
	if versions.Versions[1].Content != "Edited via link" {
		t.Fatalf("unexpected v2 content %q", versions.Versions[1].Content)
	}
}

func TestExpiredShareLinkResolvesToExpired(t *testing.T) {
	ms := newMemStore()
	srv := newTestServer(t, ms)

	expired := time.Now().Add(-time.Hour)
	owner, _ := ms.EnsureUserByName(context.Background(), "Avery")
	_ = ms.InsertArticle(context.Background(), store.Article{ID: "art_1", OwnerID: owner.ID, Title: "Old", Content: "Body"})
	_ = ms.InsertShareLink(context.Background(), store.ShareLink{
		Token: "shr_old", ArticleID: "art_1", CreatedBy: owner.ID,
		Permission: store.PermissionEdit, ExpiresAt: &expired,
	})

	resp, err := http.Get(srv.URL + "/api/shared/resolve?token=shr_old")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var payload struct {
		Code string `json:"code"`
	}
	decodeInto(t, resp, &payload)
	if payload.Code != "EXPIRED" {
		t.Fatalf("code = %s, want EXPIRED", payload.Code)
	}
}

func TestChatHistoryOverHTTP(t *testing.T) {
	ms := newMemStore()
	srv := newTestServer(t, ms)
	token, _ := loginAs(t, srv, "Avery")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/articles", token, map[string]any{
		"title": "Talky", "content": "Body",
	})
	var created struct {
		ID string `json:"id"`
	}
	decodeInto(t, resp, &created)

	for i := 1; i <= 3; i++ {
		resp = doJSON(t, http.MethodPost, srv.URL+"/api/articles/"+created.ID+"/chat", token, map[string]string{
			"message": fmt.Sprintf("message %d", i),
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("chat post %d status = %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/articles/"+created.ID+"/chat", token, nil)
	var history struct {
		Messages []struct {
			SenderName string `json:"senderName"`
			Message    string `json:"message"`
		} `json:"messages"`
	}
	decodeInto(t, resp, &history)
	if len(history.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history.Messages))
	}
	if history.Messages[0].Message != "message 1" || history.Messages[0].SenderName != "Avery" {
		t.Fatalf("unexpected first message: %+v", history.Messages[0])
	}
}
