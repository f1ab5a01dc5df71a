package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/storefrontapp/storefront/internal/models"
	"github.com/storefrontapp/storefront/internal/store"
)

func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if product == nil {
		return fmt.Errorf("product is required")
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt

	doc, err := newProductDocument(product)
	if err != nil {
		return err
	}
	if _, err := s.products.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var doc productDocument
	if err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return doc.model()
}

// DecrementStock uses an update pipeline so the clamp happens server-side in
// a single document write.
func (s *Store) DecrementStock(ctx context.Context, productID string, qty int) (models.StockAdjustment, error) {
	if qty < 0 {
		qty = 0
	}

	var before productDocument
	err := s.products.FindOneAndUpdate(ctx,
		bson.M{"_id": productID},
		clampedDecrementPipeline(qty, time.Now().UTC()),
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.StockAdjustment{}, store.ErrNotFound
		}
		return models.StockAdjustment{}, fmt.Errorf("failed to decrement stock: %w", err)
	}

	remaining, applied := models.ClampedDecrement(before.CountInStock, qty)
	return models.StockAdjustment{
		ProductID: productID,
		Requested: qty,
		Applied:   applied,
		Remaining: remaining,
	}, nil
}

func clampedDecrementPipeline(qty int, at time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "countInStock", Value: bson.D{{Key: "$max", Value: bson.A{
				0,
				bson.D{{Key: "$subtract", Value: bson.A{"$countInStock", qty}}},
			}}}},
			{Key: "updatedAt", Value: at},
		}}},
	}
}
