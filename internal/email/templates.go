package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"
)

// OrderInfo is the data available to order notification templates.
type OrderInfo struct {
	StoreName       string
	OrderNumber     string
	ReceiptNumber   string
	CustomerName    string
	CustomerEmail   string
	OrderDate       string
	EventDate       string
	PaymentMethod   string
	ShippingAddress string
	Items           []OrderItem
	Subtotal        string
	Shipping        string
	Tax             string
	Total           string
	Note            string
}

type OrderItem struct {
	Name       string
	Quantity   int
	UnitPrice  string
	TotalPrice string
}

type Kind string

const (
	KindPaymentConfirmed Kind = "payment_confirmed"
	KindShipped          Kind = "order_shipped"
	KindDelivered        Kind = "order_delivered"
	KindCancelled        Kind = "order_cancelled"
)

type emailTemplate struct {
	Subject string
	HTML    string
	Text    string
}

var emailTemplates = map[Kind]emailTemplate{
	KindPaymentConfirmed: {
		Subject: "Payment received - {{.OrderNumber}} - {{.StoreName}}",
		HTML:    paymentConfirmedHTML,
		Text:    paymentConfirmedText,
	},
	KindShipped: {
		Subject: "Your order has shipped - {{.OrderNumber}}",
		HTML:    statusHTML,
		Text:    shippedText,
	},
	KindDelivered: {
		Subject: "Your order has been delivered - {{.OrderNumber}}",
		HTML:    statusHTML,
		Text:    deliveredText,
	},
	KindCancelled: {
		Subject: "Your order was cancelled - {{.OrderNumber}}",
		HTML:    statusHTML,
		Text:    cancelledText,
	},
}

type Renderer struct {
	subjects *template.Template
	text     *template.Template
	html     *htmltemplate.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		subjects: template.New("subjects"),
		text:     template.New("text"),
		html:     htmltemplate.New("html"),
	}

	for kind, t := range emailTemplates {
		if _, err := r.subjects.New(string(kind)).Parse(t.Subject); err != nil {
			return nil, fmt.Errorf("failed to parse subject template %s: %w", kind, err)
		}
		if _, err := r.text.New(string(kind)).Parse(t.Text); err != nil {
			return nil, fmt.Errorf("failed to parse text template %s: %w", kind, err)
		}
		if _, err := r.html.New(string(kind)).Parse(t.HTML); err != nil {
			return nil, fmt.Errorf("failed to parse HTML template %s: %w", kind, err)
		}
	}

	return r, nil
}

func (r *Renderer) Render(kind Kind, data *OrderInfo) (*Email, error) {
	if data == nil {
		return nil, fmt.Errorf("order info is required")
	}
	if _, ok := emailTemplates[kind]; !ok {
		return nil, fmt.Errorf("unknown email template %q", kind)
	}

	var subject, text, html bytes.Buffer
	if err := r.subjects.ExecuteTemplate(&subject, string(kind), data); err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}
	if err := r.text.ExecuteTemplate(&text, string(kind), data); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}
	if err := r.html.ExecuteTemplate(&html, string(kind), data); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}

	return &Email{
		To:      data.CustomerEmail,
		Subject: subject.String(),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

const paymentConfirmedText = `Hi {{.CustomerName}},

We received your payment for order {{.OrderNumber}}.
{{if .ReceiptNumber}}Receipt: {{.ReceiptNumber}}
{{end}}Payment method: {{.PaymentMethod}}
Order date: {{.OrderDate}}

Items:
{{range .Items}}- {{.Name}} x{{.Quantity}} - {{.TotalPrice}}
{{end}}
Subtotal: {{.Subtotal}}
Shipping: {{.Shipping}}
Tax: {{.Tax}}
Total: {{.Total}}

Shipping to:
{{.ShippingAddress}}

We'll email you again when your order ships.

{{.StoreName}}
`

const paymentConfirmedHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Payment received</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #2563eb; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
    .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; }
    .items { width: 100%; border-collapse: collapse; margin: 15px 0; }
    .items th { text-align: left; padding: 8px; background: #f3f4f6; }
    .items td { padding: 8px; border-bottom: 1px solid #e5e7eb; }
    .total { text-align: right; font-weight: bold; }
  </style>
</head>
<body>
  <div class="header">
    <h1>Payment received</h1>
    <p>Thank you, {{.CustomerName}}</p>
  </div>
  <div class="content">
    <p><strong>Order:</strong> {{.OrderNumber}}<br>
    {{if .ReceiptNumber}}<strong>Receipt:</strong> {{.ReceiptNumber}}<br>{{end}}
    <strong>Payment method:</strong> {{.PaymentMethod}}</p>
    <table class="items">
      <thead><tr><th>Item</th><th>Qty</th><th>Price</th></tr></thead>
      <tbody>
        {{range .Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.TotalPrice}}</td></tr>
        {{end}}
      </tbody>
    </table>
    <div class="total">
      <p>Subtotal: {{.Subtotal}}<br>Shipping: {{.Shipping}}<br>Tax: {{.Tax}}<br>Total: {{.Total}}</p>
    </div>
    <h3>Shipping to</h3>
    <p>{{.ShippingAddress}}</p>
  </div>
</body>
</html>
`

const shippedText = `Hi {{.CustomerName}},

Order {{.OrderNumber}} shipped on {{.EventDate}}.
{{if .Note}}
{{.Note}}
{{end}}
Shipping to:
{{.ShippingAddress}}

{{.StoreName}}
`

const deliveredText = `Hi {{.CustomerName}},

Order {{.OrderNumber}} was delivered on {{.EventDate}}.
{{if .Note}}
{{.Note}}
{{end}}
We hope you enjoy your purchase.

{{.StoreName}}
`

const cancelledText = `Hi {{.CustomerName}},

Order {{.OrderNumber}} was cancelled on {{.EventDate}}.
{{if .Note}}
Reason: {{.Note}}
{{end}}
If you already paid, a refund will be issued to your original payment method.

{{.StoreName}}
`

const statusHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Order {{.OrderNumber}}</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; border-radius: 8px; }
  </style>
</head>
<body>
  <div class="content">
    <p>Hi {{.CustomerName}},</p>
    <p>There is an update on order <strong>{{.OrderNumber}}</strong> ({{.EventDate}}).</p>
    {{if .Note}}<p>{{.Note}}</p>{{end}}
    <p>{{.ShippingAddress}}</p>
    <p>{{.StoreName}}</p>
  </div>
</body>
</html>
`
