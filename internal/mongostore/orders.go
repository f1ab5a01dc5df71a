package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/store"
)

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}

	doc, err := newOrderDocument(order)
	if err != nil {
		return err
	}
	if _, err := s.orders.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) && order.PaymentResult != nil {
			return store.ErrDuplicatePayment
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var doc orderDocument
	err := s.orders.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return doc.model()
}

func (s *Store) ListOrders(ctx context.Context, params store.ListOrdersParams) ([]*models.Order, error) {
	params = params.Normalize()

	filter := bson.M{}
	if params.UserID != "" {
		filter["userId"] = params.UserID
	}
	if params.Status != "" {
		filter["status"] = string(params.Status)
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(params.Offset)).
		SetLimit(int64(params.Limit))

	cursor, err := s.orders.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]*models.Order, 0, params.Limit)
	for cursor.Next(ctx) {
		var doc orderDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		order, err := doc.model()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *Store) MarkPaid(ctx context.Context, id uuid.UUID, payment models.PaymentResult, paidAt time.Time) (*models.Order, error) {
	paymentDoc, err := newPaymentDocument(payment)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": id.String(), "isPaid": false}
	update := bson.M{"$set": bson.M{
		"isPaid":        true,
		"paidAt":        paidAt,
		"paymentResult": paymentDoc,
		"updatedAt":     paidAt,
	}}

	order, err := s.findOneAndUpdate(ctx, filter, update)
	if mongo.IsDuplicateKeyError(err) {
		return nil, store.ErrDuplicatePayment
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := s.GetOrder(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrAlreadyPaid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}
	return order, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, update store.StatusUpdate) (*models.Order, error) {
	filter, change := statusUpdateDocuments(id, update)

	order, err := s.findOneAndUpdate(ctx, filter, change)
	if errors.Is(err, mongo.ErrNoDocuments) {
		current, getErr := s.GetOrder(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == update.From {
			return nil, fmt.Errorf("%w: order flags changed", store.ErrInvalidStatusTransition)
		}
		return nil, fmt.Errorf("%w: expected %s, found %s", store.ErrInvalidStatusTransition, update.From, current.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	return order, nil
}

// statusUpdateDocuments sets only the flags named in update.Flags and
// filters on the value the caller read for each of them.
func statusUpdateDocuments(id uuid.UUID, update store.StatusUpdate) (bson.M, bson.M) {
	filter := bson.M{"_id": id.String(), "status": string(update.From)}
	set := bson.M{
		"status":    string(update.To),
		"updatedAt": update.At,
	}

	flag := func(field, atField string, change *store.FlagChange) {
		if change == nil {
			return
		}
		filter[field] = change.From
		set[field] = change.To
		set[atField] = utcPtr(change.At)
	}
	if update.Flags != nil {
		flag("isPaid", "paidAt", update.Flags.Paid)
		flag("isDelivered", "deliveredAt", update.Flags.Delivered)
	}

	change := bson.M{"$set": set}
	if update.Entry != nil {
		change["$push"] = bson.M{"statusHistory": newStatusEntryDocument(*update.Entry)}
	}
	return filter, change
}

func (s *Store) ClaimItemStock(ctx context.Context, orderID uuid.UUID, index int) error {
	if index < 0 {
		return fmt.Errorf("order item index %d out of range", index)
	}

	path := "items." + strconv.Itoa(index)
	filter := bson.M{
		"_id":                  orderID.String(),
		path:                   bson.M{"$exists": true},
		path + ".stockApplied": bson.M{"$ne": true},
	}
	result, err := s.orders.UpdateOne(ctx, filter, bson.M{"$set": bson.M{path + ".stockApplied": true}})
	if err != nil {
		return fmt.Errorf("failed to claim item stock: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if index >= len(order.Items) {
		return fmt.Errorf("order item index %d out of range", index)
	}
	return store.ErrStockAlreadyApplied
}

func (s *Store) ReleaseItemStock(ctx context.Context, orderID uuid.UUID, index int) error {
	if index < 0 {
		return fmt.Errorf("order item index %d out of range", index)
	}

	path := "items." + strconv.Itoa(index)
	filter := bson.M{"_id": orderID.String(), path: bson.M{"$exists": true}}
	result, err := s.orders.UpdateOne(ctx, filter, bson.M{"$set": bson.M{path + ".stockApplied": false}})
	if err != nil {
		return fmt.Errorf("failed to release item stock: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := s.GetOrder(ctx, orderID); err != nil {
			return err
		}
		return fmt.Errorf("order item index %d out of range", index)
	}
	return nil
}

func (s *Store) findOneAndUpdate(ctx context.Context, filter, update any) (*models.Order, error) {
	var doc orderDocument
	err := s.orders.FindOneAndUpdate(
		ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return doc.model()
}
