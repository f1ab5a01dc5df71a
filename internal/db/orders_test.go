package db

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefrontapp/storefront/internal/models"
)

func TestOrderRecordRoundTrip(t *testing.T) {
	t.Parallel()

	placed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	order := &models.Order{
		Customer: models.Customer{Name: "Asha", Email: "asha@example.com"},
		Items: []models.OrderItem{
			{ProductID: "p1", Name: "Mug", Quantity: 2, Price: decimal.RequireFromString("100.00"), StockApplied: true},
		},
		ShippingAddress: models.ShippingAddress{FullName: "Asha", AddressLine1: "1 Main St", City: "Pune", PostalCode: "411001", Country: "IN"},
		StatusHistory: []models.StatusEntry{
			{Status: models.StatusPending, Timestamp: placed, Note: "Order placed"},
		},
	}

	rec, err := newOrderRecord(order)
	if err != nil {
		t.Fatalf("newOrderRecord: %v", err)
	}
	if rec.paymentResult != nil {
		t.Fatalf("expected no payment result column, got %s", rec.paymentResult)
	}

	var decoded models.Order
	if err := rec.decodeInto(&decoded); err != nil {
		t.Fatalf("decodeInto: %v", err)
	}
	if len(decoded.Items) != 1 || !decoded.Items[0].StockApplied || !decoded.Items[0].Price.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected items: %+v", decoded.Items)
	}
	if decoded.ShippingAddress.City != "Pune" || decoded.Customer.Email != "asha@example.com" {
		t.Fatalf("unexpected decoded order: %+v", decoded)
	}
	if decoded.PaymentResult != nil {
		t.Fatal("expected nil payment result")
	}
	if len(decoded.StatusHistory) != 1 || !decoded.StatusHistory[0].Timestamp.Equal(placed) {
		t.Fatalf("unexpected history: %+v", decoded.StatusHistory)
	}
}

func TestNewOrderRecordUsesEmptyArrays(t *testing.T) {
	t.Parallel()

	rec, err := newOrderRecord(&models.Order{})
	if err != nil {
		t.Fatalf("newOrderRecord: %v", err)
	}
	if string(rec.items) != "[]" || string(rec.statusHistory) != "[]" {
		t.Fatalf("expected empty JSON arrays, got items=%s history=%s", rec.items, rec.statusHistory)
	}
}

func TestTimestamptzConversion(t *testing.T) {
	t.Parallel()

	if ts := toTimestamptz(nil); ts.Valid {
		t.Fatal("nil time should be NULL")
	}
	if fromTimestamptz(toTimestamptz(nil)) != nil {
		t.Fatal("NULL should decode to nil")
	}

	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.FixedZone("IST", 19800))
	got := fromTimestamptz(toTimestamptz(&at))
	if got == nil || !got.Equal(at) || got.Location() != time.UTC {
		t.Fatalf("unexpected round trip: %v", got)
	}
}
