package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storefrontapp/storefront/internal/models"
)

// OrderInput is the client payload for placing an order.
type OrderInput struct {
	Items           []ItemInput             `json:"orderItems"`
	ShippingAddress *models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   models.PaymentMethod    `json:"paymentMethod"`
	ItemsPrice      decimal.Decimal         `json:"itemsPrice"`
	TaxPrice        decimal.Decimal         `json:"taxPrice"`
	ShippingPrice   decimal.Decimal         `json:"shippingPrice"`
	TotalPrice      decimal.Decimal         `json:"totalPrice"`
}

type ItemInput struct {
	Product  ProductRef      `json:"product"`
	Name     string          `json:"name"`
	Quantity int             `json:"qty"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
}

// ProductRef accepts either a plain product id or an embedded product
// object carrying "_id" or "id".
type ProductRef string

func (r *ProductRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}

	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = ProductRef(strings.TrimSpace(id))
		return nil
	}

	var embedded struct {
		MongoID json.RawMessage `json:"_id"`
		ID      json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &embedded); err != nil {
		return fmt.Errorf("product must be an id or an object with an id: %w", err)
	}
	for _, raw := range []json.RawMessage{embedded.MongoID, embedded.ID} {
		if len(raw) == 0 {
			continue
		}
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return fmt.Errorf("product id must be a string: %w", err)
		}
		if id = strings.TrimSpace(id); id != "" {
			*r = ProductRef(id)
			return nil
		}
	}
	*r = ""
	return nil
}

// PaymentInput is the proof returned by the gateway checkout widget.
type PaymentInput struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	PaymentID      string `json:"paymentId"`
	Signature      string `json:"signature"`
}

func (p PaymentInput) complete() bool {
	return strings.TrimSpace(p.GatewayOrderID) != "" &&
		strings.TrimSpace(p.PaymentID) != "" &&
		strings.TrimSpace(p.Signature) != ""
}

type PaidOrderInput struct {
	OrderData   *OrderInput   `json:"orderData"`
	PaymentData *PaymentInput `json:"paymentData"`
}

// StatusInput changes an order's status and, for admins, its paid/delivered flags.
type StatusInput struct {
	Status      models.OrderStatus `json:"status"`
	Note        string             `json:"note"`
	IsPaid      *bool              `json:"isPaid"`
	IsDelivered *bool              `json:"isDelivered"`
}

func (in StatusInput) hasFlags() bool {
	return in.IsPaid != nil || in.IsDelivered != nil
}

type ProductInput struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Image        string          `json:"image"`
	CountInStock int             `json:"countInStock"`
}

type ListInput struct {
	Status models.OrderStatus
	Page   int
	Limit  int
}
