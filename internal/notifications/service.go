package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/brandguard/brandguard-bot/internal/config"
	"github.com/brandguard/brandguard-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
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

// SendDigest sends an alert digest via configured notification channels
func (s *Service) SendDigest(digest *models.Digest) error {
	var errs []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(digest); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errs = append(errs, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent digest to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(digest); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errs = append(errs, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent digest via email")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(digest *models.Digest) error {
	message := s.buildTeamsMessage(digest)

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsMessage(digest *models.Digest) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("BrandGuard Digest - %s", digest.BrandID),
		Text:    fmt.Sprintf("%d reputation alerts in the last %s", digest.TotalAlerts, digest.Period),
	}

	facts := []TeamsFact{
		{Name: "Total Alerts", Value: fmt.Sprintf("%d", digest.TotalAlerts)},
		{Name: "Generated", Value: digest.GeneratedAt.Format("2006-01-02 15:04:05 UTC")},
	}
	for _, severity := range []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow} {
		if count := digest.SeverityBreakdown[string(severity)]; count > 0 {
			facts = append(facts, TeamsFact{
				Name:  fmt.Sprintf("%s Alerts", strings.Title(string(severity))),
				Value: fmt.Sprintf("%d", count),
			})
		}
	}
	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	if len(digest.Alerts) > 0 {
		// Worst first, capped at five.
		alerts := make([]models.Alert, len(digest.Alerts))
		copy(alerts, digest.Alerts)
		models.SortAlerts(alerts)

		limit := 5
		if len(alerts) < limit {
			limit = len(alerts)
		}

		var topAlerts []string
		for i := 0; i < limit; i++ {
			alert := alerts[i]
			topAlerts = append(topAlerts, fmt.Sprintf("**[%s] %s** - %s (accuracy %.0f)",
				strings.ToUpper(string(alert.Severity)), alert.Claim, alert.Platform, alert.AccuracyScore))
		}

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Worst Alerts",
			ActivityText:  strings.Join(topAlerts, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) sendEmail(digest *models.Digest) error {
	subject := fmt.Sprintf("BrandGuard Digest - %s (%d alerts)", digest.BrandID, digest.TotalAlerts)

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

func (s *Service) buildEmailHTML(digest *models.Digest) (string, error) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>BrandGuard Digest</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #1f2937; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .alert { border-left: 4px solid #6b7280; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .alert-claim { font-weight: bold; margin-bottom: 5px; }
        .alert-meta { color: #666; font-size: 0.9em; }
        .critical { border-left-color: #dc2626; }
        .high { border-left-color: #ea580c; }
        .medium { border-left-color: #ca8a04; }
        .low { border-left-color: #16a34a; }
    </style>
</head>
<body>
    <div class="header">
        <h1>BrandGuard Digest</h1>
        <p>Brand {{.BrandID}} | generated {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Total Alerts:</strong> {{.TotalAlerts}}</p>
        {{range $severity, $count := .SeverityBreakdown}}
            <p><strong>{{$severity | title}} Alerts:</strong> {{$count}}</p>
        {{end}}
    </div>

    {{if .Alerts}}
    <h2>Alerts</h2>
    {{range $index, $alert := .Alerts}}
        {{if lt $index 10}}
        <div class="alert {{$alert.Severity}}">
            <div class="alert-claim">{{$alert.Claim | truncate 200}}</div>
            <div class="alert-meta">
                {{$alert.Platform}} | accuracy {{printf "%.0f" $alert.AccuracyScore}} | detected {{$alert.DetectedAt.Format "Jan 2, 2006"}}
            </div>
            {{if $alert.SuggestedCorrection}}
            <p>Suggested correction: {{$alert.SuggestedCorrection | truncate 200}}</p>
            {{end}}
        </div>
        {{end}}
    {{end}}
    {{end}}

    <hr>
    <p><small>This digest was generated automatically by the BrandGuard bot.</small></p>
</body>
</html>
`

	t := template.New("email").Funcs(template.FuncMap{
		"title": strings.Title,
		"truncate": func(length int, s string) string {
			if len(s) <= length {
				return s
			}
			return s[:length] + "..."
		},
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

func (s *Service) buildEmailText(digest *models.Digest) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("BrandGuard Digest - %s\n", digest.BrandID))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", digest.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Total Alerts: %d\n", digest.TotalAlerts))

	for severity, count := range digest.SeverityBreakdown {
		text.WriteString(fmt.Sprintf("%s Alerts: %d\n", strings.Title(severity), count))
	}

	if len(digest.Alerts) > 0 {
		text.WriteString("\nALERTS\n")
		text.WriteString("======\n")

		limit := 10
		if len(digest.Alerts) < limit {
			limit = len(digest.Alerts)
		}

		for i := 0; i < limit; i++ {
			alert := digest.Alerts[i]
			text.WriteString(fmt.Sprintf("\n%d. [%s] %s\n", i+1, strings.ToUpper(string(alert.Severity)), alert.Claim))
			text.WriteString(fmt.Sprintf("   Platform: %s | Accuracy: %.0f | Detected: %s\n",
				alert.Platform, alert.AccuracyScore, alert.DetectedAt.Format("Jan 2, 2006")))
			if alert.SourceURL != "" {
				text.WriteString(fmt.Sprintf("   Source: %s\n", alert.SourceURL))
			}
		}
	}

	text.WriteString("\n---\nThis digest was generated automatically by the BrandGuard bot.\n")

	return text.String()
}

// SendAlert sends an immediate notification for a single urgent alert
func (s *Service) SendAlert(alert *models.Alert) error {
	if s.config.TeamsWebhookURL == "" {
		logrus.Infof("No Teams webhook configured; urgent alert %s not sent", alert.ID)
		return nil
	}

	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Urgent %s alert on %s", alert.Severity, alert.Platform),
		Text:    alert.Claim,
		Sections: []TeamsSection{{
			Facts: []TeamsFact{
				{Name: "Accuracy", Value: fmt.Sprintf("%.0f", alert.AccuracyScore)},
				{Name: "Detected", Value: alert.DetectedAt.Format("2006-01-02 15:04 UTC")},
				{Name: "Source", Value: alert.SourceURL},
			},
			Markdown: true,
		}},
	}

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)
	if err != nil {
		return fmt.Errorf("failed to send urgent alert: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d", resp.StatusCode())
	}
	return nil
}
