package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/BTreeMap/HabitPipe/internal/twiliowhatsapp"
)

func TestTwilioServiceCanonicalizesRecipients(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"whatsapp:+15550102030", "15550102030", false},
		{"+1 (555) 010-2030", "15550102030", false},
		{"15550102030", "15550102030", false},
		{"", "", true},
		{"abc", "", true},
		{"123", "", true},
	}
	for _, tc := range tests {
		got, err := svc.ValidateAndCanonicalizeRecipient(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateAndCanonicalizeRecipient(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ValidateAndCanonicalizeRecipient(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTwilioServiceSendMessage(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)

	if err := svc.SendMessage(context.Background(), "whatsapp:+15550102030", "hi"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].To != "15550102030" {
		t.Errorf("unexpected sent messages: %+v", mock.SentMessages)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.To != "15550102030" {
			t.Errorf("unexpected receipt recipient %q", receipt.To)
		}
	default:
		t.Error("expected a sent receipt")
	}
}

func TestTwilioServiceRejectsSendAfterStop(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "15550102030", "hi"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
	// Stop is idempotent.
	if err := svc.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}

func TestTwilioWebhookHandler(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+15550102030")
	form.Set("Body", "/myhabits")
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	select {
	case msg := <-svc.Messages():
		if msg.From != "whatsapp:+15550102030" || msg.Body != "/myhabits" {
			t.Errorf("unexpected message %+v", msg)
		}
		if msg.Chat != msg.From {
			t.Errorf("expected chat to mirror sender, got %q", msg.Chat)
		}
	default:
		t.Error("expected an inbound message")
	}
}

func TestTwilioWebhookHandlerRejectsMissingFields(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+15550102030")
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
