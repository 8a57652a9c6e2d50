package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookClientSendAlert(t *testing.T) {
	var received Alert
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL)
	alert := Alert{
		Kind:        AlertLowFeed,
		CompanyID:   1,
		CycleID:     7,
		CycleNumber: 3,
		Message:     "feed stock low: 2 bags remaining",
	}
	if err := client.SendAlert(context.Background(), alert); err != nil {
		t.Fatalf("SendAlert: %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", contentType)
	}
	if received.Kind != AlertLowFeed || received.CycleNumber != 3 {
		t.Errorf("received %+v, want kind %q cycle number 3", received, AlertLowFeed)
	}
	if received.Message != alert.Message {
		t.Errorf("Message = %q, want %q", received.Message, alert.Message)
	}
	if received.SentAt.IsZero() {
		t.Error("expected SentAt to be filled in before posting")
	}
}

func TestWebhookClientSendAlertErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL)
	err := client.SendAlert(context.Background(), Alert{Kind: AlertMissingEntry, SentAt: time.Now()})
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
