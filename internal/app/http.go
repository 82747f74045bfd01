package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inkwell/api/internal/auth"
	"inkwell/api/internal/export"
	"inkwell/api/internal/search"
	"inkwell/api/internal/store"
)

const maxCoverUploadBytes = 10 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	ws         http.Handler
}

// NewHTTPServer wires the service behind the JSON API. ws handles the
// /ws collaboration endpoint and may be nil when the relay is disabled.
func NewHTTPServer(service *Service, corsOrigin string, ws http.Handler) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, ws: ws}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", s.corsOrigin)
		header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		header.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.URL.Path == "/ws" && s.ws != nil {
		s.ws.ServeHTTP(w, r)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{"status": "error", "error": err.Error()}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "userName": session.UserName, "userId": session.UserID})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/login" {
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Login(r.Context(), body.Name)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "LOGIN_FAILED", "Login failed", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":        session.Token,
			"refreshToken": session.RefreshToken,
			"userName":     session.UserName,
			"userId":       session.UserID,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":        session.Token,
			"refreshToken": session.RefreshToken,
			"userName":     session.UserName,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Share-token routes need no session: the token is the capability.
	if r.Method == http.MethodGet && r.URL.Path == "/api/shared/resolve" {
		token := strings.TrimSpace(r.URL.Query().Get("token"))
		if token == "" {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Share link not found", nil)
			return
		}
		shared, err := s.service.ResolveShareLink(r.Context(), token)
		if err != nil {
			errStatus, errCode, errMessage, errDetails := mapError(err)
			writeError(w, errStatus, errCode, errMessage, errDetails)
			return
		}
		writeJSON(w, http.StatusOK, shared)
		return
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/shared/edit" {
		var body SharedUpdateInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		item, err := s.service.UpdateViaShareLink(r.Context(), body)
		if err != nil {
			errStatus, errCode, errMessage, errDetails := mapError(err)
			writeError(w, errStatus, errCode, errMessage, errDetails)
			return
		}
		writeJSON(w, http.StatusOK, s.articlePayload(r.Context(), item))
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	switch parts[1] {
	case "articles":
		s.routeArticles(w, r, session, parts[2:])
	case "search":
		s.handleSearch(w, r, session)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeArticles(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		items, err := s.service.ListArticles(r.Context(), session)
		if err != nil {
			errStatus, errCode, errMessage, errDetails := mapError(err)
			writeError(w, errStatus, errCode, errMessage, errDetails)
			return
		}
		payloads := make([]map[string]any, 0, len(items))
		for _, item := range items {
			payloads = append(payloads, s.articlePayload(r.Context(), item))
		}
		writeJSON(w, http.StatusOK, map[string]any{"articles": payloads})

	case len(rest) == 0 && r.Method == http.MethodPost:
		var body ArticleInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		item, err := s.service.CreateArticle(r.Context(), session, body)
		if err != nil {
			errStatus, errCode, errMessage, errDetails := mapError(err)
			writeError(w, errStatus, errCode, errMessage, errDetails)
			return
		}
		writeJSON(w, http.StatusCreated, s.articlePayload(r.Context(), item))

	case len(rest) == 1 && r.Method == http.MethodGet:
		item, err := s.service.GetArticle(r.Context(), session, rest[0])
		if err != nil {
			errStatus, errCode, errMessage, errDetails := mapError(err)
			writeError(w, errStatus, errCode, errMessage, errDetails)
			return
		}
		writeJSON(w, http.StatusOK, s.articlePayload(r.Context(), item))

	case len(rest) == 1 && r.Method == http.MethodPut:
		var body ArticleInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		item, err := s.service.UpdateArticle(r.Context(), session, rest[0], body)
		if err != nil {
			errStatus, errCode, errMessage, errDetails := mapError(err)
			writeError(w, errStatus, errCode, errMessage, errDetails)
			return
		}
		writeJSON(w, http.StatusOK, s.articlePayload(r.Context(), item))

	case len(rest) == 2 && rest[1] == "versions" && r.Method == http.MethodGet:
		versions, err := s.service.ListVersions(r.Context(), session, rest[0])
		if err != nil {
			errStatus, errCode, errMessage, errDetails := mapError(err)
			writeError(w, errStatus, errCode, errMessage, errDetails)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"versions": versionPayloads(versions)})

	case len(rest) == 3 && rest[1] == "versions" && r.Method == http.MethodGet:
		number, err := strconv.Atoi(rest[2])
		if err != nil || number < 1 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "version number must be a positive integer", nil)
			return
		}
		version, err := s.service.GetVersion(r.Context(), session, rest[0], number)
		if err != nil {
			errStatus, errCode, errMessage, errDetails := mapError(err)
			writeError(w, errStatus, errCode, errMessage, errDetails)
			return
		}
		writeJSON(w, http.StatusOK, versionPayload(version))

	case len(rest) == 2 && rest[1] == "history" && r.Method == http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		commits, err := s.service.ArticleHistory(r.Context(), session, rest[0], limit)
		if err != nil {
			errStatus, errCode, errMessage, errDetails := mapError(err)
			writeError(w, errStatus, errCode, errMessage, errDetails)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"commits": commits})

	case len(rest) == 2 && rest[1] == "share-links" && r.Method == http.MethodPost:
		var body ShareLinkInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		link, err := s.service.CreateShareLink(r.Context(), session, rest[0], body)
		if err != nil {
			errStatus, errCode, errMessage, errDetails := mapError(err)
			writeError(w, errStatus, errCode, errMessage, errDetails)
			return
		}
		writeJSON(w, http.StatusCreated, link)

	case len(rest) == 2 && rest[1] == "chat" && r.Method == http.MethodGet:
		messages, err := s.service.ChatHistory(r.Context(), rest[0])
		if err != nil {
			errStatus, errCode, errMessage, errDetails := mapError(err)
			writeError(w, errStatus, errCode, errMessage, errDetails)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": messagePayloads(messages)})

	case len(rest) == 2 && rest[1] == "chat" && r.Method == http.MethodPost:
		var body struct {
			Message string `json:"message"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		msg, err := s.service.SendChatMessage(r.Context(), rest[0], session.UserID, body.Message)
		if err != nil {
			errStatus, errCode, errMessage, errDetails := mapError(err)
			writeError(w, errStatus, errCode, errMessage, errDetails)
			return
		}
		writeJSON(w, http.StatusCreated, messagePayload(msg))

	case len(rest) == 2 && rest[1] == "cover" && r.Method == http.MethodPost:
		s.handleCoverUpload(w, r, session, rest[0])

	case len(rest) == 2 && rest[1] == "export" && r.Method == http.MethodPost:
		s.handleExport(w, r, session, rest[0])

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleCoverUpload(w http.ResponseWriter, r *http.Request, session Session, articleID string) {
	if err := r.ParseMultipartForm(maxCoverUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected multipart upload", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "missing 'file' field", nil)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectKey, err := s.service.UploadCover(r.Context(), session, articleID, file, header.Size, contentType)
	if err != nil {
		errStatus, errCode, errMessage, errDetails := mapError(err)
		writeError(w, errStatus, errCode, errMessage, errDetails)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"coverImage":    objectKey,
		"coverImageUrl": s.service.CoverURL(r.Context(), objectKey),
	})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, session Session, articleID string) {
	var body struct {
		Format string `json:"format"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	format := export.Format(body.Format)
	if format != export.FormatPDF && format != export.FormatDOCX {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be 'pdf' or 'docx'", nil)
		return
	}

	result, err := s.service.ExportArticle(r.Context(), session, articleID, format)
	if err != nil {
		errStatus, errCode, errMessage, errDetails := mapError(err)
		writeError(w, errStatus, errCode, errMessage, errDetails)
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	text := strings.TrimSpace(r.URL.Query().Get("q"))
	if text == "" {
		writeJSON(w, http.StatusOK, search.Response{Results: []search.Result{}})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	resp, err := s.service.Search(r.Context(), search.Query{
		Text:        text,
		FilterType:  search.ResultType(r.URL.Query().Get("type")),
		FilterOwner: session.UserID,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		errStatus, errCode, errMessage, errDetails := mapError(err)
		writeError(w, errStatus, errCode, errMessage, errDetails)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) articlePayload(ctx context.Context, item store.Article) map[string]any {
	payload := map[string]any{
		"id":         item.ID,
		"ownerId":    item.OwnerID,
		"title":      item.Title,
		"content":    item.Content,
		"excerpt":    item.Excerpt,
		"status":     item.Status,
		"tags":       item.Tags,
		"createdAt":  item.CreatedAt,
		"updatedAt":  item.UpdatedAt,
		"coverImage": item.CoverImage,
	}
	if item.CoverImage != "" {
		payload["coverImageUrl"] = s.service.CoverURL(ctx, item.CoverImage)
	}
	if item.ScheduledAt != nil {
		payload["scheduledPublishAt"] = item.ScheduledAt
	}
	return payload
}

func versionPayload(v store.ArticleVersion) map[string]any {
	return map[string]any{
		"versionNumber": v.VersionNumber,
		"articleId":     v.ArticleID,
		"content":       v.Content,
		"modifiedBy":    v.ModifiedBy,
		"createdAt":     v.CreatedAt,
	}
}

func versionPayloads(versions []store.ArticleVersion) []map[string]any {
	out := make([]map[string]any, 0, len(versions))
	for _, v := range versions {
		out = append(out, versionPayload(v))
	}
	return out
}

func messagePayload(m store.ChatMessage) map[string]any {
	return map[string]any{
		"id":         m.ID,
		"articleId":  m.ArticleID,
		"senderId":   m.SenderID,
		"senderName": m.SenderName,
		"message":    m.Body,
		"createdAt":  m.CreatedAt,
	}
}

func messagePayloads(messages []store.ChatMessage) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, messagePayload(m))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
