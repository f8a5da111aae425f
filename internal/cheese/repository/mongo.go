package repository

import (
	"context"
	"errors"
	"time"

	"github.com/everycheese/everycheese/internal/cheese"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements Repository on a MongoDB collection. Slugs carry a
// unique index so concurrent creates with the same slug fail with ErrSlugTaken.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(ctx context.Context, col *mongo.Collection) (*MongoRepo, error) {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return &MongoRepo{col: col}, nil
}

func (m *MongoRepo) Create(ctx context.Context, c *cheese.Cheese) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	res, err := m.col.InsertOne(ctx, c)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSlugTaken
		}
		return err
	}
	if id, ok := res.InsertedID.(interface{ Hex() string }); ok {
		c.ID = id.Hex()
	}
	return nil
}

func (m *MongoRepo) GetBySlug(ctx context.Context, slug string) (*cheese.Cheese, error) {
	var c cheese.Cheese
	if err := m.col.FindOne(ctx, bson.M{"slug": slug}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (m *MongoRepo) List(ctx context.Context) ([]*cheese.Cheese, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "slug", Value: 1}})
	cur, err := m.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*cheese.Cheese{}
	for cur.Next(ctx) {
		var c cheese.Cheese
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

func (m *MongoRepo) Update(ctx context.Context, c *cheese.Cheese) error {
	c.UpdatedAt = time.Now().UTC()
	set := bson.M{
		"name":            c.Name,
		"description":     c.Description,
		"firmness":        c.Firmness,
		"countryOfOrigin": c.CountryOfOrigin,
		"photoKey":        c.PhotoKey,
		"updatedAt":       c.UpdatedAt,
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"slug": c.Slug}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
