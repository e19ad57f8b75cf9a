package messaging

import (
	"context"
	"log/slog"
	"sync"
)

// MessageHandler turns one inbound text message into a reply.
type MessageHandler interface {
	HandleMessage(ctx context.Context, userID, text string) string
}

// Dispatcher pumps inbound messages from a transport into a MessageHandler
// and delivers the replies. Receipt events are drained to the log.
type Dispatcher struct {
	service Service
	handler MessageHandler
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher over the given transport and handler.
func NewDispatcher(service Service, handler MessageHandler) *Dispatcher {
	return &Dispatcher{service: service, handler: handler}
}

// Start begins the transport and the pump goroutines. It returns immediately;
// processing continues until the context is cancelled and the transport's
// channels close.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.service.Start(ctx); err != nil {
		return err
	}

	d.wg.Add(2)
	go d.pumpMessages(ctx)
	go d.drainReceipts()

	slog.Info("Dispatcher started")
	return nil
}

// Stop stops the transport and waits for the pump goroutines to drain.
func (d *Dispatcher) Stop() error {
	err := d.service.Stop()
	d.wg.Wait()
	slog.Info("Dispatcher stopped")
	return err
}

// pumpMessages routes each inbound message through the handler and sends the
// reply back to the originating chat.
func (d *Dispatcher) pumpMessages(ctx context.Context) {
	defer d.wg.Done()

	for msg := range d.service.Messages() {
		from, err := d.service.ValidateAndCanonicalizeRecipient(msg.From)
		if err != nil {
			slog.Warn("Dispatcher dropping message with invalid sender", "error", err, "from", msg.From)
			continue
		}

		slog.Debug("Dispatcher handling message", "from", from, "body_length", len(msg.Body))
		reply := d.handler.HandleMessage(ctx, from, msg.Body)
		if reply == "" {
			continue
		}

		chat := msg.Chat
		if chat == "" {
			chat = msg.From
		}
		if err := d.service.SendMessage(ctx, chat, reply); err != nil {
			slog.Error("Dispatcher failed to send reply", "error", err, "to", chat)
		}
	}
	slog.Debug("Dispatcher message pump finished")
}

// drainReceipts logs delivery status events so the channel never backs up.
func (d *Dispatcher) drainReceipts() {
	defer d.wg.Done()

	for receipt := range d.service.Receipts() {
		slog.Debug("Dispatcher receipt", "to", receipt.To, "status", receipt.Status, "time", receipt.Time)
	}
	slog.Debug("Dispatcher receipt drain finished")
}
