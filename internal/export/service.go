// Package export renders articles to downloadable PDF and DOCX files.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"inkwell/api/internal/store"
)

// Format is the export output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request describes one export.
type Request struct {
	Article    store.Article
	AuthorName string
	Format     Format
}

// Result is the rendered file.
type Result struct {
	Data        []byte
	FileName    string
	ContentType string
}

// ErrPDFDependencyMissing indicates the headless Chrome runtime is absent.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")

type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Export(ctx context.Context, req Request) (Result, error) {
	html, err := renderArticleHTML(req.Article, req.AuthorName)
	if err != nil {
		return Result{}, fmt.Errorf("render article: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(ctx, html, req.Article.Title)
	case FormatDOCX:
		return exportDOCX(req.Article, req.AuthorName)
	default:
		return Result{}, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

type templateData struct {
	Title       string
	Excerpt     string
	Author      string
	Status      string
	Tags        string
	UpdatedAt   string
	ContentHTML template.HTML
}

var articleTemplate = template.Must(template.New("article").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 720px; margin: 2rem auto; color: #1a1a1a; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .excerpt { font-style: italic; color: #444; }
    p { margin: 0.8rem 0; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  {{if .Excerpt}}<p class="excerpt">{{.Excerpt}}</p>{{end}}
  <div class="meta">{{.Author}} | {{.Status}} | {{.UpdatedAt}}{{if .Tags}} | {{.Tags}}{{end}}</div>
  <div>{{.ContentHTML}}</div>
</body>
</html>`))

func renderArticleHTML(item store.Article, author string) (string, error) {
	data := templateData{
		Title:       item.Title,
		Excerpt:     item.Excerpt,
		Author:      author,
		Status:      item.Status,
		Tags:        strings.Join(item.Tags, ", "),
		UpdatedAt:   item.UpdatedAt.Format("Jan 2, 2006"),
		ContentHTML: contentToHTML(item.Content),
	}

	var buf bytes.Buffer
	if err := articleTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// contentToHTML turns plain article text into escaped paragraph markup.
// Blank lines separate paragraphs; single newlines become line breaks.
func contentToHTML(content string) template.HTML {
	var b strings.Builder
	for _, para := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n") {
		trimmed := strings.TrimSpace(para)
		if trimmed == "" {
			continue
		}
		b.WriteString("<p>")
		lines := strings.Split(trimmed, "\n")
		for i, line := range lines {
			if i > 0 {
				b.WriteString("<br>")
			}
			b.WriteString(template.HTMLEscapeString(line))
		}
		b.WriteString("</p>\n")
	}
	return template.HTML(b.String())
}

// sanitizeFilename creates a safe filename from a title.
func sanitizeFilename(title string) string {
	result := ""
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		}
	}
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "article"
	}
	return result
}
