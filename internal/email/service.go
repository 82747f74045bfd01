// Package email sends notification mail via SMTP.
package email

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"
)

// Config holds SMTP configuration.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if SMTP settings are present.
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email.
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// PublishedData feeds the publication notification template.
type PublishedData struct {
	UserName   string
	Title      string
	ArticleURL string
}

var publishedTemplate = template.Must(template.New("published").Parse(
	`Hi {{.UserName}},

Your scheduled article "{{.Title}}" is now live:

{{.ArticleURL}}

— Inkwell
`))

// SendArticlePublished notifies an author that their scheduled article went
// live.
func (s *Service) SendArticlePublished(toEmail, toName, title, articleURL string) error {
	if toEmail == "" {
		return fmt.Errorf("recipient has no email address")
	}

	var body bytes.Buffer
	if err := publishedTemplate.Execute(&body, PublishedData{
		UserName:   toName,
		Title:      title,
		ArticleURL: articleURL,
	}); err != nil {
		return fmt.Errorf("render notification: %w", err)
	}

	subject := fmt.Sprintf("Your article %q has been published", title)
	return s.SendEmail([]string{toEmail}, subject, body.String())
}
