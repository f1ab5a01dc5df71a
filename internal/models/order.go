package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "CashOnDelivery"
	PaymentPayPal         PaymentMethod = "PayPal"
	PaymentStripe         PaymentMethod = "Stripe"
	PaymentRazorPay       PaymentMethod = "RazorPay"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCashOnDelivery, PaymentPayPal, PaymentStripe, PaymentRazorPay:
		return true
	default:
		return false
	}
}

// Online reports whether the method settles through a remote gateway.
func (m PaymentMethod) Online() bool {
	return m.Valid() && m != PaymentCashOnDelivery
}

type Order struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	UserID          string          `json:"user"`
	Customer        Customer        `json:"customer"`
	Items           []OrderItem     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	PaymentResult   *PaymentResult  `json:"paymentResult,omitempty"`
	ItemsPrice      decimal.Decimal `json:"itemsPrice"`
	TaxPrice        decimal.Decimal `json:"taxPrice"`
	ShippingPrice   decimal.Decimal `json:"shippingPrice"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt"`
	IsDelivered     bool            `json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt"`
	Status          OrderStatus     `json:"status"`
	StatusHistory   []StatusEntry   `json:"statusHistory"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Customer is the requester's contact snapshot taken when the order is placed.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type OrderItem struct {
	ProductID    string          `json:"product"`
	Name         string          `json:"name"`
	Quantity     int             `json:"qty"`
	Price        decimal.Decimal `json:"price"`
	Image        string          `json:"image,omitempty"`
	StockApplied bool            `json:"stockApplied"`
}

// LineTotal is price × quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type ShippingAddress struct {
	FullName     string `json:"fullName"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
}

type PaymentResult struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	GatewayOrderID string          `json:"gatewayOrderId"`
	Signature      string          `json:"signature,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	ReceiptNumber  string          `json:"receiptNumber,omitempty"`
	EmailAddress   string          `json:"emailAddress,omitempty"`
	UpdateTime     time.Time       `json:"updateTime"`
}

type StatusEntry struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note,omitempty"`
	ChangedBy string      `json:"changedBy,omitempty"`
}

// PendingStockItems returns the indexes of items whose stock has not been applied yet.
func (o *Order) PendingStockItems() []int {
	if o == nil {
		return nil
	}
	var pending []int
	for i, item := range o.Items {
		if !item.StockApplied {
			pending = append(pending, i)
		}
	}
	return pending
}

func (o *Order) OwnedBy(userID string) bool {
	return o != nil && userID != "" && o.UserID == userID
}
