package messaging

import (
	"context"
	"testing"

	"github.com/BTreeMap/HabitPipe/internal/models"
	"github.com/BTreeMap/HabitPipe/internal/whatsapp"
)

func TestWhatsAppServiceSendMessage(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)

	if err := svc.SendMessage(context.Background(), "+1 (555) 010-2030", "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].To != "15550102030" {
		t.Errorf("unexpected sent messages: %+v", mock.SentMessages)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.Status != models.MessageStatusSent || receipt.To != "15550102030" {
			t.Errorf("unexpected receipt %+v", receipt)
		}
	default:
		t.Error("expected a sent receipt")
	}
}

func TestWhatsAppServiceRejectsInvalidRecipient(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())

	if err := svc.SendMessage(context.Background(), "", "hello"); err == nil {
		t.Error("expected an error for an empty recipient")
	}
	if err := svc.SendMessage(context.Background(), "abc", "hello"); err == nil {
		t.Error("expected an error for a digit-free recipient")
	}
}

func TestWhatsAppServiceStartWithMock(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())

	// A mock sender has no event source; Start must still succeed.
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
