package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/enotrack/enotrack/internal/score"
	"github.com/enotrack/enotrack/internal/types"
)

const (
	productsCollection = "products"
	historyCollection  = "price_history"
)

// MongoStore is the persistence collaborator: it upserts products by code,
// appends price observations, and serves history reads for scoring and
// the API.
type MongoStore struct {
	client   *mongo.Client
	products *mongo.Collection
	history  *mongo.Collection
	logger   *slog.Logger
}

// NewMongoStore connects to MongoDB and prepares the collections and
// indexes.
func NewMongoStore(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		products: db.Collection(productsCollection),
		history:  db.Collection(historyCollection),
		logger:   logger.With("component", "mongo_store"),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create products index: %w", err)
	}
	_, err = s.history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "code", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create history index: %w", err)
	}
	return nil
}

// Ingest upserts each item's product document and appends exactly one
// price observation per item, whether or not the price changed. Idempotent
// per identifier on the product side.
func (s *MongoStore) Ingest(ctx context.Context, items []types.RawItem, category string) error {
	for _, item := range items {
		set := bson.M{
			"name":            item.Name,
			"link":            item.Link,
			"category":        category,
			"last_checked_at": item.ObservedAt,
		}
		if item.ImageURL != "" {
			set["image_url"] = item.ImageURL
		}
		if item.CurrentPrice != nil {
			set["current_price"] = *item.CurrentPrice
		}

		_, err := s.products.UpdateOne(ctx,
			bson.M{"code": item.Identifier},
			bson.M{
				"$set":         set,
				"$setOnInsert": bson.M{"code": item.Identifier, "first_seen_at": item.ObservedAt},
			},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return &types.StorageError{Op: "upsert product", Err: err}
		}

		obs := PriceObservation{
			Code:             item.Identifier,
			OrdinaryPrice:    item.OrdinaryPrice,
			ComparativePrice: item.ComparativePrice,
			Tags:             item.Tags,
			Timestamp:        item.ObservedAt,
		}
		if item.CurrentPrice != nil {
			obs.Price = *item.CurrentPrice
		}
		if _, err := s.history.InsertOne(ctx, obs); err != nil {
			return &types.StorageError{Op: "append observation", Err: err}
		}
	}

	s.logger.Debug("batch ingested", "category", category, "items", len(items))
	return nil
}

// Products returns all products.
func (s *MongoStore) Products(ctx context.Context) ([]Product, error) {
	cur, err := s.products.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, &types.StorageError{Op: "list products", Err: err}
	}
	var out []Product
	if err := cur.All(ctx, &out); err != nil {
		return nil, &types.StorageError{Op: "decode products", Err: err}
	}
	return out, nil
}

// Product returns one product by code, or nil when absent.
func (s *MongoStore) Product(ctx context.Context, code string) (*Product, error) {
	var p Product
	err := s.products.FindOne(ctx, bson.M{"code": code}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, &types.StorageError{Op: "get product", Err: err}
	}
	return &p, nil
}

// History returns a product's full observation rows in timestamp order.
func (s *MongoStore) History(ctx context.Context, code string) ([]PriceObservation, error) {
	cur, err := s.history.Find(ctx, bson.M{"code": code},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, &types.StorageError{Op: "list history", Err: err}
	}
	var out []PriceObservation
	if err := cur.All(ctx, &out); err != nil {
		return nil, &types.StorageError{Op: "decode history", Err: err}
	}
	return out, nil
}

// FetchHistory returns a product's (timestamp, price) series for scoring.
func (s *MongoStore) FetchHistory(ctx context.Context, code string) ([]score.Observation, error) {
	rows, err := s.History(ctx, code)
	if err != nil {
		return nil, err
	}
	out := make([]score.Observation, len(rows))
	for i, r := range rows {
		out[i] = score.Observation{Timestamp: r.Timestamp, Price: r.Price}
	}
	return out, nil
}

// ScoringCandidates lists every product with a current price for the
// score recomputer.
func (s *MongoStore) ScoringCandidates(ctx context.Context) ([]score.Candidate, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]score.Candidate, 0, len(products))
	for _, p := range products {
		c := score.Candidate{Code: p.Code, Score: p.ConvenienceScore}
		if p.CurrentPrice != nil {
			c.CurrentPrice = *p.CurrentPrice
		}
		out = append(out, c)
	}
	return out, nil
}

// SaveScore writes a product's convenience score back.
func (s *MongoStore) SaveScore(ctx context.Context, code string, value float64) error {
	_, err := s.products.UpdateOne(ctx,
		bson.M{"code": code},
		bson.M{"$set": bson.M{"convenience_score": value}},
	)
	if err != nil {
		return &types.StorageError{Op: "save score", Err: err}
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	disconnectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Disconnect(disconnectCtx)
}
