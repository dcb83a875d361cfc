package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSendRunSummary(t *testing.T) {
	var got WebhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected application/json, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.SendRunSummary(context.Background(), RunSummary{
		Job:      "morning peak",
		Kind:     "odmatrix",
		RunID:    "abc",
		Records:  42,
		Failures: 3,
		Elapsed:  90 * time.Second,
	})
	if err != nil {
		t.Fatalf("SendRunSummary failed: %v", err)
	}

	if len(got.Embeds) != 1 {
		t.Fatalf("Expected 1 embed, got %d", len(got.Embeds))
	}
	embed := got.Embeds[0]
	if embed.Color != colorPartial {
		t.Errorf("Expected partial color, got %x", embed.Color)
	}
	if embed.Title != "Analysis finished with failures: morning peak" {
		t.Errorf("Unexpected title %q", embed.Title)
	}
	if len(embed.Fields) != 3 || embed.Fields[0].Value != "42" || embed.Fields[2].Value != "1m30s" {
		t.Errorf("Unexpected fields %+v", embed.Fields)
	}
}

func TestSendRunSummaryFailedRun(t *testing.T) {
	var got WebhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).SendRunSummary(context.Background(), RunSummary{Job: "j", Err: errors.New("boom")})
	if err != nil {
		t.Fatalf("SendRunSummary failed: %v", err)
	}
	embed := got.Embeds[0]
	if embed.Color != colorFailed {
		t.Errorf("Expected failed color, got %x", embed.Color)
	}
	if last := embed.Fields[len(embed.Fields)-1]; last.Name != "Error" || last.Value != "boom" {
		t.Errorf("Expected error field, got %+v", last)
	}
}

func TestSendMessageStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).SendMessage(context.Background(), WebhookMessage{Content: "hi"}); err == nil {
		t.Error("Expected error for 429 response")
	}
}

func TestDisabledClient(t *testing.T) {
	c := NewClient("")
	if c.Enabled() {
		t.Error("Expected client without webhook to be disabled")
	}
	if err := c.SendMessage(context.Background(), WebhookMessage{Content: "hi"}); err != nil {
		t.Errorf("Expected nil error from disabled client, got %v", err)
	}
}
