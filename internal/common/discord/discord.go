package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	colorSuccess = 0x2ECC71
	colorPartial = 0xFFA500
	colorFailed  = 0xFF0000
)

type WebhookMessage struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

type Embed struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Color       int       `json:"color"`
	Timestamp   time.Time `json:"timestamp"`
	Fields      []Field   `json:"fields,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// RunSummary is what gets reported when an analysis run ends.
type RunSummary struct {
	Job      string
	Kind     string
	RunID    string
	Records  int
	Failures int
	Elapsed  time.Duration
	Err      error
}

// Client posts to a Discord webhook. An empty webhook URL disables it.
type Client struct {
	webhookURL string
	httpClient *http.Client
}

func NewClient(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Enabled reports whether a webhook is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.webhookURL != ""
}

func (c *Client) SendMessage(ctx context.Context, msg WebhookMessage) error {
	if !c.Enabled() {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook request failed with status: %d", resp.StatusCode)
	}

	return nil
}

// SendRunSummary posts one embed describing a finished run.
func (c *Client) SendRunSummary(ctx context.Context, s RunSummary) error {
	title, color := "Analysis finished", colorSuccess
	switch {
	case s.Err != nil:
		title, color = "Analysis failed", colorFailed
	case s.Failures > 0:
		title, color = "Analysis finished with failures", colorPartial
	}

	embed := Embed{
		Title:       fmt.Sprintf("%s: %s", title, s.Job),
		Description: fmt.Sprintf("%s run %s", s.Kind, s.RunID),
		Color:       color,
		Timestamp:   time.Now().UTC(),
		Fields: []Field{
			{Name: "Records", Value: strconv.Itoa(s.Records), Inline: true},
			{Name: "Failures", Value: strconv.Itoa(s.Failures), Inline: true},
			{Name: "Elapsed", Value: s.Elapsed.Round(time.Second).String(), Inline: true},
		},
	}
	if s.Err != nil {
		embed.Fields = append(embed.Fields, Field{Name: "Error", Value: s.Err.Error()})
	}

	return c.SendMessage(ctx, WebhookMessage{Embeds: []Embed{embed}})
}
