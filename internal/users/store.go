package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/everycheese/everycheese/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists users keyed by their OIDC subject. Find returns (nil, nil)
// for unknown subjects.
type Store interface {
	Save(ctx context.Context, u *models.User) (*models.User, error)
	Find(ctx context.Context, sub string) (*models.User, error)
}

// MongoStore keeps one document per subject.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(ctx context.Context, col *mongo.Collection) (*MongoStore, error) {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "sub", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_sub"),
	}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("create users index: %w", err)
	}
	return &MongoStore{col: col}, nil
}

// Save refreshes the profile fields of u, creating the user on first sign-in.
func (m *MongoStore) Save(ctx context.Context, u *models.User) (*models.User, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"username":  u.Username,
			"email":     u.Email,
			"name":      u.Name,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID().Hex(), "createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var saved models.User
	if err := m.col.FindOneAndUpdate(ctx, bson.M{"sub": u.Sub}, update, opts).Decode(&saved); err != nil {
		return nil, fmt.Errorf("save user %s: %w", u.Sub, err)
	}
	return &saved, nil
}

func (m *MongoStore) Find(ctx context.Context, sub string) (*models.User, error) {
	var u models.User
	err := m.col.FindOne(ctx, bson.M{"sub": sub}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// MemoryStore keeps users in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	seq   int
	bySub map[string]models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bySub: map[string]models.User{}}
}

func (m *MemoryStore) Save(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	saved, ok := m.bySub[u.Sub]
	if !ok {
		m.seq++
		saved = models.User{ID: fmt.Sprintf("user_%d", m.seq), Sub: u.Sub, CreatedAt: now}
	}
	saved.Username, saved.Email, saved.Name = u.Username, u.Email, u.Name
	saved.UpdatedAt = now
	m.bySub[u.Sub] = saved
	return &saved, nil
}

func (m *MemoryStore) Find(_ context.Context, sub string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.bySub[sub]
	if !ok {
		return nil, nil
	}
	return &u, nil
}
