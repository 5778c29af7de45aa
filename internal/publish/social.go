package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"autogov/internal/cabinet"
	"autogov/internal/logging"
)

// Announcer posts a short notice for each published analysis to the
// social webhook. With no webhook configured it is a no-op; the engine
// never depends on the announcement succeeding.
type Announcer struct {
	url    string
	client *http.Client
}

// NewAnnouncer returns an Announcer posting to url. An empty url
// disables it.
func NewAnnouncer(url string) *Announcer {
	return &Announcer{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// NewAnnouncerFromEnv reads SOCIAL_WEBHOOK_URL.
func NewAnnouncerFromEnv() *Announcer {
	return NewAnnouncer(os.Getenv("SOCIAL_WEBHOOK_URL"))
}

// Enabled reports whether a webhook is configured.
func (a *Announcer) Enabled() bool { return a.url != "" }

// Announce posts the publication notice for res. The returned error is
// for logging only.
func (a *Announcer) Announce(ctx context.Context, res *cabinet.SessionResult) error {
	if !a.Enabled() {
		return nil
	}
	payload := map[string]interface{}{
		"type":          "analysis_published",
		"id":            res.Decision.ID,
		"title":         res.Decision.Title,
		"date":          res.Decision.Date,
		"category":      string(res.Decision.Category),
		"average_score": AverageScore(res.Assessments),
	}
	if res.Decision.TitleEN != "" {
		payload["title_en"] = res.Decision.TitleEN
	}
	if res.Parliament != nil {
		payload["verdict"] = string(res.Parliament.OverallVerdict)
	}
	if res.Critic != nil && res.Critic.Headline != "" {
		payload["headline"] = res.Critic.Headline
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	logging.PublishDebug("announced %s", res.Decision.ID)
	return nil
}
