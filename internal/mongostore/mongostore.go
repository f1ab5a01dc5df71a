// Package mongostore implements the order and product stores on MongoDB.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	ordersCollection   = "orders"
	productsCollection = "products"
)

// Store implements store.Store on top of two collections.
type Store struct {
	client   *mongo.Client
	orders   *mongo.Collection
	products *mongo.Collection
}

// Connect dials uri, verifies the primary is reachable and returns a store
// bound to database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	return &Store{
		client:   client,
		orders:   db.Collection(ordersCollection),
		products: db.Collection(productsCollection),
	}, nil
}

const paymentIDIndex = "paymentResult_id_unique"

// EnsureIndexes creates the listing indexes used by order queries and the
// unique payment id index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "orderNumber", Value: 1}}},
		{
			Keys: bson.D{{Key: "paymentResult.id", Value: 1}},
			Options: options.Index().
				SetName(paymentIDIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"paymentResult.id": bson.M{"$gt": ""}}),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
