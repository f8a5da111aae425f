package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps one document per session keyed by token. A TTL index on
// expiresAt lets the server reap stale documents; Get also filters on it
// because the reaper only runs once a minute.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(ctx context.Context, col *mongo.Collection) (*MongoStore, error) {
	ttl := mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("sessions_expiry"),
	}
	if _, err := col.Indexes().CreateOne(ctx, ttl); err != nil {
		return nil, fmt.Errorf("create session expiry index: %w", err)
	}
	return &MongoStore{col: col}, nil
}

func (m *MongoStore) Put(ctx context.Context, s *Session) error {
	if s.Expired(time.Now()) {
		return ErrExpired
	}
	_, err := m.col.ReplaceOne(ctx, bson.M{"_id": s.Token}, s, options.Replace().SetUpsert(true))
	return err
}

func (m *MongoStore) Get(ctx context.Context, token string) (*Session, error) {
	filter := bson.M{"_id": token, "expiresAt": bson.M{"$gt": time.Now().UTC()}}
	var s Session
	err := m.col.FindOne(ctx, filter).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MongoStore) Delete(ctx context.Context, token string) error {
	_, err := m.col.DeleteOne(ctx, bson.M{"_id": token})
	return err
}
