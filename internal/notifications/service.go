package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/brandlens/brandlens/internal/config"
)

// Service delivers digests and alerts via the configured channels.
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements Sender
var _ Sender = (*Service)(nil)

// WebhookMessage is the card payload posted to the configured webhook.
type WebhookMessage struct {
	Type     string           `json:"@type"`
	Context  string           `json:"@context"`
	Title    string           `json:"title"`
	Text     string           `json:"text"`
	Sections []WebhookSection `json:"sections,omitempty"`
}

type WebhookSection struct {
	ActivityTitle string        `json:"activityTitle,omitempty"`
	ActivityText  string        `json:"activityText,omitempty"`
	Facts         []WebhookFact `json:"facts,omitempty"`
	Markdown      bool          `json:"markdown,omitempty"`
}

type WebhookFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendDigest sends a digest via every configured channel and reports the
// combined failures, if any.
func (s *Service) SendDigest(digest *Digest) error {
	var errors []string

	if s.config.WebhookURL != "" {
		if err := s.postWebhook(s.buildDigestMessage(digest)); err != nil {
			logrus.Errorf("Failed to send webhook digest: %v", err)
			errors = append(errors, fmt.Sprintf("webhook: %v", err))
		} else {
			logrus.Info("Successfully sent digest to webhook")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendDigestEmail(digest); err != nil {
			logrus.Errorf("Failed to send email digest: %v", err)
			errors = append(errors, fmt.Sprintf("email: %v", err))
		} else {
			logrus.Info("Successfully sent digest via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}
	return nil
}

// SendAlert sends a single-brand alert to the webhook channel. Alerts skip
// email: they are time-sensitive and the webhook is the immediate channel.
func (s *Service) SendAlert(alert *Alert) error {
	if s.config.WebhookURL == "" {
		logrus.Infof("No webhook configured, dropping alert %s for %s", alert.ID, alert.BrandName)
		return nil
	}

	message := &WebhookMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   alert.Title,
		Text:    alert.Body,
		Sections: []WebhookSection{{
			Facts: []WebhookFact{
				{Name: "Brand", Value: alert.BrandName},
				{Name: "Alert ID", Value: alert.ID},
				{Name: "Raised", Value: alert.CreatedAt.Format("2006-01-02 15:04:05 UTC")},
			},
			Markdown: true,
		}},
	}
	return s.postWebhook(message)
}

func (s *Service) postWebhook(message *WebhookMessage) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.WebhookURL)

	if err != nil {
		return fmt.Errorf("failed to post webhook message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildDigestMessage(digest *Digest) *WebhookMessage {
	message := &WebhookMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Brand Mentions Digest - %s", titleCase(digest.Period)),
		Text:    fmt.Sprintf("Found %d mentions across %d brands", digest.TotalMentions(), len(digest.Brands)),
	}

	for _, b := range digest.Brands {
		facts := []WebhookFact{
			{Name: "Total Mentions", Value: fmt.Sprintf("%d", b.Summary.Total)},
		}
		for sentiment, count := range b.Summary.Sentiment {
			facts = append(facts, WebhookFact{
				Name:  fmt.Sprintf("%s Mentions", titleCase(sentiment)),
				Value: fmt.Sprintf("%d", count),
			})
		}

		var topKeywords []string
		for _, k := range b.TopKeywords {
			topKeywords = append(topKeywords, fmt.Sprintf("**%s** (%d)", k.Keyword, k.Count))
		}

		message.Sections = append(message.Sections, WebhookSection{
			ActivityTitle: b.BrandName,
			ActivityText:  strings.Join(topKeywords, ", "),
			Facts:         facts,
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) sendDigestEmail(digest *Digest) error {
	subject := fmt.Sprintf("Brand Mentions Digest - %s (%d mentions)",
		titleCase(digest.Period), digest.TotalMentions())

	htmlBody, err := s.buildEmailHTML(digest)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	textBody := s.buildEmailText(digest)

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func (s *Service) buildEmailHTML(digest *Digest) (string, error) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Brand Mentions Digest</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #1a73e8; color: white; padding: 20px; border-radius: 5px; }
        .brand { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .brand-name { font-weight: bold; font-size: 1.1em; margin-bottom: 8px; }
        .counts { color: #444; margin: 5px 0; }
        .keywords { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Brand Mentions Digest</h1>
        <p>{{.Period | title}} digest generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    {{range .Brands}}
    <div class="brand">
        <div class="brand-name">{{.BrandName}}</div>
        <div class="counts"><strong>Total Mentions:</strong> {{.Summary.Total}}</div>
        {{range $sentiment, $count := .Summary.Sentiment}}
        <div class="counts"><strong>{{$sentiment | title}}:</strong> {{$count}}</div>
        {{end}}
        {{if .TopKeywords}}
        <div class="keywords">
            Top keywords:
            {{range $i, $k := .TopKeywords}}{{if $i}}, {{end}}{{$k.Keyword}} ({{$k.Count}}){{end}}
        </div>
        {{end}}
    </div>
    {{end}}

    <hr>
    <p><small>This digest was generated automatically.</small></p>
</body>
</html>
`

	t := template.New("digest").Funcs(template.FuncMap{
		"title": titleCase,
	})

	t, err := t.Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, digest); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *Service) buildEmailText(digest *Digest) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Brand Mentions Digest - %s\n", titleCase(digest.Period)))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", digest.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	for _, b := range digest.Brands {
		text.WriteString(fmt.Sprintf("%s\n", b.BrandName))
		text.WriteString(strings.Repeat("=", len(b.BrandName)) + "\n")
		text.WriteString(fmt.Sprintf("Total Mentions: %d\n", b.Summary.Total))
		for sentiment, count := range b.Summary.Sentiment {
			text.WriteString(fmt.Sprintf("%s Mentions: %d\n", titleCase(sentiment), count))
		}
		if len(b.TopKeywords) > 0 {
			text.WriteString("Top keywords:")
			for i, k := range b.TopKeywords {
				if i > 0 {
					text.WriteString(",")
				}
				text.WriteString(fmt.Sprintf(" %s (%d)", k.Keyword, k.Count))
			}
			text.WriteString("\n")
		}
		text.WriteString("\n")
	}

	text.WriteString("---\nThis digest was generated automatically.\n")

	return text.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
