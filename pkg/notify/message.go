package notify

import (
	"fmt"
	"strings"

	"github.com/example/shopfront/pkg/models"
)

const (
	KindOrderConfirmation = "order_confirmation"
	KindShipment          = "shipment"
)

// Message is a plain-text email addressed to one customer.
type Message struct {
	Kind    string
	To      string
	Subject string
	Body    string
	OrderID uint
}

func OrderConfirmation(to, username string, order *models.Order) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", username)
	fmt.Fprintf(&b, "Thank you for your order #%d.\n\n", order.ID)
	fmt.Fprintf(&b, "Total: %s\n", order.TotalAmount.StringFixed(2))
	fmt.Fprintf(&b, "Shipping address: %s\n", order.Address)
	fmt.Fprintf(&b, "Phone: %s\n", order.Phone)
	b.WriteString("\nWe will let you know when it ships.\n")

	return Message{
		Kind:    KindOrderConfirmation,
		To:      to,
		Subject: fmt.Sprintf("Order #%d confirmed", order.ID),
		Body:    b.String(),
		OrderID: order.ID,
	}
}

func ShipmentNotice(to, username string, order *models.Order) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", username)
	fmt.Fprintf(&b, "Your order #%d has shipped to:\n%s\n", order.ID, order.Address)

	return Message{
		Kind:    KindShipment,
		To:      to,
		Subject: fmt.Sprintf("Order #%d shipped", order.ID),
		Body:    b.String(),
		OrderID: order.ID,
	}
}
