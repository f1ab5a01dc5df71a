package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storefrontapp/storefront/internal/email"
	"github.com/storefrontapp/storefront/internal/models"
)

// OrderNotifier tells customers about payment and fulfilment changes.
type OrderNotifier interface {
	PaymentConfirmed(ctx context.Context, order *models.Order) error
	StatusChanged(ctx context.Context, order *models.Order, entry models.StatusEntry) error
}

type EmailNotifier struct {
	provider  email.Provider
	renderer  *email.Renderer
	storeName string
}

func NewEmailNotifier(provider email.Provider, storeName string) (*EmailNotifier, error) {
	renderer, err := email.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create email renderer: %w", err)
	}
	return &EmailNotifier{provider: provider, renderer: renderer, storeName: storeName}, nil
}

func (n *EmailNotifier) PaymentConfirmed(ctx context.Context, order *models.Order) error {
	return n.send(ctx, email.KindPaymentConfirmed, order, "")
}

func (n *EmailNotifier) StatusChanged(ctx context.Context, order *models.Order, entry models.StatusEntry) error {
	var kind email.Kind
	switch entry.Status {
	case models.StatusShipped:
		kind = email.KindShipped
	case models.StatusDelivered:
		kind = email.KindDelivered
	case models.StatusCancelled:
		kind = email.KindCancelled
	default:
		return nil
	}
	info := n.orderInfo(order, entry.Note)
	info.EventDate = entry.Timestamp.Format("January 2, 2006")
	return n.deliver(ctx, kind, info)
}

func (n *EmailNotifier) send(ctx context.Context, kind email.Kind, order *models.Order, note string) error {
	return n.deliver(ctx, kind, n.orderInfo(order, note))
}

func (n *EmailNotifier) deliver(ctx context.Context, kind email.Kind, info *email.OrderInfo) error {
	if n == nil || n.provider == nil {
		return nil
	}
	if strings.TrimSpace(info.CustomerEmail) == "" {
		return nil
	}
	msg, err := n.renderer.Render(kind, info)
	if err != nil {
		return fmt.Errorf("failed to render %s email: %w", kind, err)
	}
	return n.provider.SendEmail(ctx, msg)
}

// orderInfo builds the template payload for an order.
func (n *EmailNotifier) orderInfo(order *models.Order, note string) *email.OrderInfo {
	info := &email.OrderInfo{
		StoreName:       n.storeName,
		OrderNumber:     order.OrderNumber,
		CustomerName:    order.Customer.Name,
		CustomerEmail:   order.Customer.Email,
		OrderDate:       order.CreatedAt.Format("January 2, 2006"),
		PaymentMethod:   string(order.PaymentMethod),
		ShippingAddress: formatAddress(order.ShippingAddress),
		Subtotal:        formatMoney(order.ItemsPrice),
		Shipping:        formatMoney(order.ShippingPrice),
		Tax:             formatMoney(order.TaxPrice),
		Total:           formatMoney(order.TotalPrice),
		Note:            note,
	}
	if info.CustomerName == "" {
		info.CustomerName = order.ShippingAddress.FullName
	}
	if order.PaymentResult != nil {
		info.ReceiptNumber = order.PaymentResult.ReceiptNumber
		if info.CustomerEmail == "" {
			info.CustomerEmail = order.PaymentResult.EmailAddress
		}
	}
	for _, item := range order.Items {
		info.Items = append(info.Items, email.OrderItem{
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  formatMoney(item.Price),
			TotalPrice: formatMoney(item.LineTotal()),
		})
	}
	return info
}

func formatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

func formatAddress(address models.ShippingAddress) string {
	lines := []string{strings.TrimSpace(address.FullName), strings.TrimSpace(address.AddressLine1)}
	if line2 := strings.TrimSpace(address.AddressLine2); line2 != "" {
		lines = append(lines, line2)
	}
	cityStatePostal := strings.TrimSpace(strings.TrimSpace(address.City) + ", " + strings.TrimSpace(address.State) + " " + strings.TrimSpace(address.PostalCode))
	cityStatePostal = strings.Trim(cityStatePostal, ", ")
	if cityStatePostal != "" {
		lines = append(lines, cityStatePostal)
	}
	if country := strings.TrimSpace(address.Country); country != "" {
		lines = append(lines, country)
	}

	nonEmpty := lines[:0]
	for _, line := range lines {
		if line != "" {
			nonEmpty = append(nonEmpty, line)
		}
	}
	return strings.Join(nonEmpty, "\n")
}

type noopNotifier struct{}

func (noopNotifier) PaymentConfirmed(context.Context, *models.Order) error { return nil }

func (noopNotifier) StatusChanged(context.Context, *models.Order, models.StatusEntry) error {
	return nil
}

func (s *OrderService) notifyPaymentConfirmed(ctx context.Context, order *models.Order) {
	if err := s.notifier.PaymentConfirmed(ctx, order); err != nil {
		s.loggerFromContext(ctx).Warn("failed to send payment confirmation", "order_id", order.ID, "error", err)
	}
}

func (s *OrderService) notifyStatusChanged(ctx context.Context, order *models.Order, entry models.StatusEntry) {
	if err := s.notifier.StatusChanged(ctx, order, entry); err != nil {
		s.loggerFromContext(ctx).Warn("failed to send status email", "order_id", order.ID, "status", entry.Status, "error", err)
	}
}
