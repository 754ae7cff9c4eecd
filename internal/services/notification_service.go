package services

import (
	"context"
	"fmt"
	"strings"

	"quote_manager/internal/models"
)

// Notifier tells a customer that a quote was sent to them.
type Notifier interface {
	QuoteSent(ctx context.Context, quote models.Quote, customer models.Customer) error
}

type MessageSender interface {
	SendTextMessage(ctx context.Context, phone, message string) error
}

type whatsappNotifier struct {
	client MessageSender
}

// NewWhatsAppNotifier accepts a *whatsapp.Client.
func NewWhatsAppNotifier(client MessageSender) Notifier {
	return &whatsappNotifier{client: client}
}

func (n *whatsappNotifier) QuoteSent(ctx context.Context, quote models.Quote, customer models.Customer) error {
	if strings.TrimSpace(customer.Phone) == "" {
		return nil
	}
	return n.client.SendTextMessage(ctx, customer.Phone, QuoteSentMessage(quote, customer))
}

// QuoteSentMessage renders the text delivered when a quote is sent.
func QuoteSentMessage(quote models.Quote, customer models.Customer) string {
	var b strings.Builder
	name := strings.TrimSpace(customer.Name)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hello %s,\n\n", name)
	fmt.Fprintf(&b, "Your quote #%d is ready.\n\n", quote.SequentialID)
	fmt.Fprintf(&b, "Labor: %s\n", quote.SubtotalTasks)
	fmt.Fprintf(&b, "Materials: %s\n", quote.SubtotalMaterials)
	if !quote.ComplexityCharge.IsZero() {
		fmt.Fprintf(&b, "Complexity charge: %s\n", quote.ComplexityCharge)
	}
	if !quote.MarkupCharge.IsZero() {
		fmt.Fprintf(&b, "Markup: %s\n", quote.MarkupCharge)
	}
	fmt.Fprintf(&b, "Total: %s", quote.GrandTotal)
	return b.String()
}
