package mongostore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/storefrontapp/storefront/internal/models"
)

type orderDocument struct {
	ID              string                `bson:"_id"`
	OrderNumber     string                `bson:"orderNumber"`
	UserID          string                `bson:"userId"`
	Customer        customerDocument      `bson:"customer"`
	Items           []itemDocument        `bson:"items"`
	ShippingAddress addressDocument       `bson:"shippingAddress"`
	PaymentMethod   string                `bson:"paymentMethod"`
	PaymentResult   *paymentDocument      `bson:"paymentResult,omitempty"`
	ItemsPrice      primitive.Decimal128  `bson:"itemsPrice"`
	TaxPrice        primitive.Decimal128  `bson:"taxPrice"`
	ShippingPrice   primitive.Decimal128  `bson:"shippingPrice"`
	TotalPrice      primitive.Decimal128  `bson:"totalPrice"`
	IsPaid          bool                  `bson:"isPaid"`
	PaidAt          *time.Time            `bson:"paidAt"`
	IsDelivered     bool                  `bson:"isDelivered"`
	DeliveredAt     *time.Time            `bson:"deliveredAt"`
	Status          string                `bson:"status"`
	StatusHistory   []statusEntryDocument `bson:"statusHistory"`
	CreatedAt       time.Time             `bson:"createdAt"`
	UpdatedAt       time.Time             `bson:"updatedAt"`
}

type customerDocument struct {
	Name  string `bson:"name"`
	Email string `bson:"email"`
	Phone string `bson:"phone,omitempty"`
}

type itemDocument struct {
	ProductID    string               `bson:"product"`
	Name         string               `bson:"name"`
	Quantity     int                  `bson:"qty"`
	Price        primitive.Decimal128 `bson:"price"`
	Image        string               `bson:"image,omitempty"`
	StockApplied bool                 `bson:"stockApplied"`
}

type addressDocument struct {
	FullName     string `bson:"fullName"`
	AddressLine1 string `bson:"addressLine1"`
	AddressLine2 string `bson:"addressLine2,omitempty"`
	City         string `bson:"city"`
	State        string `bson:"state,omitempty"`
	PostalCode   string `bson:"postalCode"`
	Country      string `bson:"country"`
	Phone        string `bson:"phone,omitempty"`
}

type paymentDocument struct {
	ID             string               `bson:"id"`
	Status         string               `bson:"status"`
	GatewayOrderID string               `bson:"gatewayOrderId"`
	Signature      string               `bson:"signature,omitempty"`
	Amount         primitive.Decimal128 `bson:"amount"`
	Currency       string               `bson:"currency"`
	ReceiptNumber  string               `bson:"receiptNumber,omitempty"`
	EmailAddress   string               `bson:"emailAddress,omitempty"`
	UpdateTime     time.Time            `bson:"updateTime"`
}

type statusEntryDocument struct {
	Status    string    `bson:"status"`
	Timestamp time.Time `bson:"timestamp"`
	Note      string    `bson:"note,omitempty"`
	ChangedBy string    `bson:"changedBy,omitempty"`
}

type productDocument struct {
	ID           string               `bson:"_id"`
	Name         string               `bson:"name"`
	Price        primitive.Decimal128 `bson:"price"`
	Image        string               `bson:"image,omitempty"`
	CountInStock int                  `bson:"countInStock"`
	CreatedAt    time.Time            `bson:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	value, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("amount %s cannot be stored: %w", d, err)
	}
	return value, nil
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(d.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid stored amount %q: %w", d.String(), err)
	}
	return value, nil
}

func newOrderDocument(order *models.Order) (*orderDocument, error) {
	doc := &orderDocument{
		ID:              order.ID.String(),
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Customer:        customerDocument(order.Customer),
		Items:           make([]itemDocument, 0, len(order.Items)),
		ShippingAddress: addressDocument(order.ShippingAddress),
		PaymentMethod:   string(order.PaymentMethod),
		IsPaid:          order.IsPaid,
		PaidAt:          order.PaidAt,
		IsDelivered:     order.IsDelivered,
		DeliveredAt:     order.DeliveredAt,
		Status:          string(order.Status),
		StatusHistory:   make([]statusEntryDocument, 0, len(order.StatusHistory)),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}

	var err error
	for _, pair := range []struct {
		dst *primitive.Decimal128
		src decimal.Decimal
	}{
		{&doc.ItemsPrice, order.ItemsPrice},
		{&doc.TaxPrice, order.TaxPrice},
		{&doc.ShippingPrice, order.ShippingPrice},
		{&doc.TotalPrice, order.TotalPrice},
	} {
		if *pair.dst, err = toDecimal128(pair.src); err != nil {
			return nil, err
		}
	}

	for _, item := range order.Items {
		price, err := toDecimal128(item.Price)
		if err != nil {
			return nil, err
		}
		doc.Items = append(doc.Items, itemDocument{
			ProductID:    item.ProductID,
			Name:         item.Name,
			Quantity:     item.Quantity,
			Price:        price,
			Image:        item.Image,
			StockApplied: item.StockApplied,
		})
	}

	if order.PaymentResult != nil {
		if doc.PaymentResult, err = newPaymentDocument(*order.PaymentResult); err != nil {
			return nil, err
		}
	}

	for _, entry := range order.StatusHistory {
		doc.StatusHistory = append(doc.StatusHistory, newStatusEntryDocument(entry))
	}
	return doc, nil
}

func newPaymentDocument(result models.PaymentResult) (*paymentDocument, error) {
	amount, err := toDecimal128(result.Amount)
	if err != nil {
		return nil, err
	}
	return &paymentDocument{
		ID:             result.ID,
		Status:         result.Status,
		GatewayOrderID: result.GatewayOrderID,
		Signature:      result.Signature,
		Amount:         amount,
		Currency:       result.Currency,
		ReceiptNumber:  result.ReceiptNumber,
		EmailAddress:   result.EmailAddress,
		UpdateTime:     result.UpdateTime,
	}, nil
}

func newStatusEntryDocument(entry models.StatusEntry) statusEntryDocument {
	return statusEntryDocument{
		Status:    string(entry.Status),
		Timestamp: entry.Timestamp,
		Note:      entry.Note,
		ChangedBy: entry.ChangedBy,
	}
}

func (d *orderDocument) model() (*models.Order, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid stored order id %q: %w", d.ID, err)
	}

	order := &models.Order{
		ID:              id,
		OrderNumber:     d.OrderNumber,
		UserID:          d.UserID,
		Customer:        models.Customer(d.Customer),
		Items:           make([]models.OrderItem, 0, len(d.Items)),
		ShippingAddress: models.ShippingAddress(d.ShippingAddress),
		PaymentMethod:   models.PaymentMethod(d.PaymentMethod),
		IsPaid:          d.IsPaid,
		PaidAt:          utcPtr(d.PaidAt),
		IsDelivered:     d.IsDelivered,
		DeliveredAt:     utcPtr(d.DeliveredAt),
		Status:          models.OrderStatus(d.Status),
		StatusHistory:   make([]models.StatusEntry, 0, len(d.StatusHistory)),
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}

	for _, pair := range []struct {
		dst *decimal.Decimal
		src primitive.Decimal128
	}{
		{&order.ItemsPrice, d.ItemsPrice},
		{&order.TaxPrice, d.TaxPrice},
		{&order.ShippingPrice, d.ShippingPrice},
		{&order.TotalPrice, d.TotalPrice},
	} {
		if *pair.dst, err = fromDecimal128(pair.src); err != nil {
			return nil, err
		}
	}

	for _, item := range d.Items {
		price, err := fromDecimal128(item.Price)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID:    item.ProductID,
			Name:         item.Name,
			Quantity:     item.Quantity,
			Price:        price,
			Image:        item.Image,
			StockApplied: item.StockApplied,
		})
	}

	if p := d.PaymentResult; p != nil {
		amount, err := fromDecimal128(p.Amount)
		if err != nil {
			return nil, err
		}
		order.PaymentResult = &models.PaymentResult{
			ID:             p.ID,
			Status:         p.Status,
			GatewayOrderID: p.GatewayOrderID,
			Signature:      p.Signature,
			Amount:         amount,
			Currency:       p.Currency,
			ReceiptNumber:  p.ReceiptNumber,
			EmailAddress:   p.EmailAddress,
			UpdateTime:     p.UpdateTime.UTC(),
		}
	}

	for _, entry := range d.StatusHistory {
		order.StatusHistory = append(order.StatusHistory, models.StatusEntry{
			Status:    models.OrderStatus(entry.Status),
			Timestamp: entry.Timestamp.UTC(),
			Note:      entry.Note,
			ChangedBy: entry.ChangedBy,
		})
	}
	return order, nil
}

func newProductDocument(product *models.Product) (*productDocument, error) {
	price, err := toDecimal128(product.Price)
	if err != nil {
		return nil, err
	}
	return &productDocument{
		ID:           product.ID,
		Name:         product.Name,
		Price:        price,
		Image:        product.Image,
		CountInStock: product.CountInStock,
		CreatedAt:    product.CreatedAt,
		UpdatedAt:    product.UpdatedAt,
	}, nil
}

func (d *productDocument) model() (*models.Product, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return nil, err
	}
	return &models.Product{
		ID:           d.ID,
		Name:         d.Name,
		Price:        price,
		Image:        d.Image,
		CountInStock: d.CountInStock,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
