package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mercata-core-vendor-layer/internal/domain"
	"mercata-core-vendor-layer/internal/infrastructure/repository/entity"
	"mercata-core-vendor-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoKVStore implements KVStore using MongoDB
type MongoKVStore struct {
	collection *mongo.Collection
}

// NewMongoKVStore creates a new MongoDB key/value store
func NewMongoKVStore(db *mongo.Database) ports.KVStore {
	return &MongoKVStore{collection: db.Collection("kv")}
}

// Get returns the stored value for key, or (nil, nil) when absent
func (r *MongoKVStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var doc entity.MongoKVDoc
	err := r.collection.FindOne(ctx, bson.M{"key": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return json.RawMessage(doc.Value), nil
}

// Upsert saves or replaces the value for key
func (r *MongoKVStore) Upsert(ctx context.Context, key string, value json.RawMessage) error {
	opts := options.Update().SetUpsert(true)
	update := bson.M{"$set": bson.M{
		"key":       key,
		"value":     []byte(value),
		"updatedAt": time.Now(),
	}}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"key": key}, update, opts); err != nil {
		return fmt.Errorf("failed to upsert key %s: %w", key, err)
	}
	return nil
}

// MongoOrderStore implements OrderStore using MongoDB
type MongoOrderStore struct {
	collection *mongo.Collection
}

// NewMongoOrderStore creates a new MongoDB order mirror store
func NewMongoOrderStore(db *mongo.Database) ports.OrderStore {
	return &MongoOrderStore{collection: db.Collection("orders")}
}

// UpsertOrder saves or overwrites a mirrored order keyed by (shopId, externalId)
func (r *MongoOrderStore) UpsertOrder(ctx context.Context, rec domain.OrderRecord) error {
	doc := entity.MongoOrderDocFromDomain(rec)
	doc.MirroredAt = time.Now()

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"shopId": rec.ShopID, "externalId": rec.ExternalID}
	update := bson.M{"$set": doc}

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert order %s/%s: %w", rec.ShopID, rec.ExternalID, err)
	}
	return nil
}

// CountByStatus counts mirrored orders bucketed by status; shopID "" covers
// all shops
func (r *MongoOrderStore) CountByStatus(ctx context.Context, shopID string) (map[string]int64, error) {
	match := bson.M{}
	if shopID != "" {
		match["shopId"] = shopID
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int64)
	for cursor.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode count row: %w", err)
		}
		counts[row.Status] = row.Count
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return counts, nil
}

// MongoShopAuthStore implements ShopAuthStore using MongoDB
type MongoShopAuthStore struct {
	collection *mongo.Collection
}

// NewMongoShopAuthStore creates a new MongoDB shop auth store
func NewMongoShopAuthStore(db *mongo.Database) ports.ShopAuthStore {
	return &MongoShopAuthStore{collection: db.Collection("shop_auth")}
}

// GetShopAuth retrieves a shop's auth material, refresh token still sealed
func (r *MongoShopAuthStore) GetShopAuth(ctx context.Context, shopID string) (*domain.ShopAuth, error) {
	var doc entity.MongoShopAuthDoc
	err := r.collection.FindOne(ctx, bson.M{"shopId": shopID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shop auth: %w", err)
	}
	return doc.ToDomain(), nil
}

// RotateRefreshToken replaces the sealed refresh token for a shop
func (r *MongoShopAuthStore) RotateRefreshToken(ctx context.Context, shopID string, sealedToken string) error {
	update := bson.M{"$set": bson.M{
		"sealedRefreshToken": sealedToken,
		"updatedAt":          time.Now(),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"shopId": shopID}, update)
	if err != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("shop auth not found: %s", shopID)
	}
	return nil
}

// ListShopIDs returns the IDs of all shops with stored auth
func (r *MongoShopAuthStore) ListShopIDs(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "shopId", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}
