package entity

import (
	"encoding/json"
	"time"

	"mercata-core-vendor-layer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoKVDoc represents one generic key/value entry in MongoDB
type MongoKVDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Key       string             `bson:"key"`
	Value     []byte             `bson:"value"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

// MongoOrderDoc represents one mirrored order in MongoDB, keyed by
// (shopId, externalId)
type MongoOrderDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	ShopID     string             `bson:"shopId"`
	ExternalID string             `bson:"externalId"`
	Status     string             `bson:"status"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
	Raw        []byte             `bson:"raw,omitempty"`
	MirroredAt time.Time          `bson:"mirroredAt"`
}

// MongoOrderDocFromDomain converts a domain order record to a MongoDB document
func MongoOrderDocFromDomain(rec domain.OrderRecord) *MongoOrderDoc {
	return &MongoOrderDoc{
		ShopID:     rec.ShopID,
		ExternalID: rec.ExternalID,
		Status:     rec.Status,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
		Raw:        rec.Raw,
	}
}

// ToDomain converts the MongoDB document to a domain order record
func (d *MongoOrderDoc) ToDomain() domain.OrderRecord {
	return domain.OrderRecord{
		ShopID:     d.ShopID,
		ExternalID: d.ExternalID,
		Status:     d.Status,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		Raw:        json.RawMessage(d.Raw),
	}
}

// MongoShopAuthDoc represents one shop's vendor auth material in MongoDB.
// The refresh token is stored sealed.
type MongoShopAuthDoc struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	ShopID             string             `bson:"shopId"`
	Platform           string             `bson:"platform"`
	ClientID           string             `bson:"clientId"`
	SealedRefreshToken string             `bson:"sealedRefreshToken"`
	APIBase            string             `bson:"apiBase"`
	TokenURL           string             `bson:"tokenUrl"`
	CreatedAt          time.Time          `bson:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity. The refresh
// token stays sealed; the credential resolver opens it.
func (d *MongoShopAuthDoc) ToDomain() *domain.ShopAuth {
	return &domain.ShopAuth{
		ShopID:       d.ShopID,
		Platform:     d.Platform,
		ClientID:     d.ClientID,
		RefreshToken: d.SealedRefreshToken,
		APIBase:      d.APIBase,
		TokenURL:     d.TokenURL,
		Source:       domain.AuthSourceShop,
		UpdatedAt:    d.UpdatedAt,
	}
}
