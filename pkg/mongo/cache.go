package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/sessionstate/pkg/cache"
)

type entry struct {
	ID        string     `bson:"_id"`
	Value     []byte     `bson:"value"`
	SlidingMS int64      `bson:"sliding_ms"`
	ExpiresAt *time.Time `bson:"expires_at"`
}

// renewExpiry is an update pipeline moving expires_at one sliding window
// past the server clock.
var renewExpiry = mongo.Pipeline{
	{{Key: "$set", Value: bson.D{{Key: "expires_at", Value: bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$gt", Value: bson.A{"$sliding_ms", 0}}},
		bson.D{{Key: "$add", Value: bson.A{"$$NOW", "$sliding_ms"}}},
		nil,
	}}}}}}},
}

// Cache stores session blobs in a collection, one document per session.
// A TTL index on expires_at lets the server purge expired documents; reads
// also filter them out since the TTL monitor runs only periodically.
type Cache struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewCache creates a Cache on coll.
func NewCache(coll *mongo.Collection) *Cache {
	return &Cache{coll: coll, now: time.Now}
}

func (c *Cache) live(key string) bson.D {
	return bson.D{
		{Key: "_id", Value: key},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "expires_at", Value: nil}},
			bson.D{{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: c.now()}}}},
		}},
	}
}

// Get returns the blob under key and renews its sliding window.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, cache.ErrEmptyKey
	}

	var e entry
	err := c.coll.FindOneAndUpdate(ctx, c.live(key), renewExpiry).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if e.Value == nil {
		e.Value = []byte{}
	}
	return e.Value, nil
}

// Set upserts value under key.
func (c *Cache) Set(ctx context.Context, key string, value []byte, opts cache.EntryOptions) error {
	if key == "" {
		return cache.ErrEmptyKey
	}

	e := entry{ID: key, Value: value}
	if e.Value == nil {
		e.Value = []byte{}
	}
	if opts.SlidingExpiration > 0 {
		e.SlidingMS = max(opts.SlidingExpiration.Milliseconds(), 1)
		expires := c.now().Add(opts.SlidingExpiration)
		e.ExpiresAt = &expires
	}

	_, err := c.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: key}}, e, options.Replace().SetUpsert(true))
	return err
}

// Refresh renews the sliding window of key.
func (c *Cache) Refresh(ctx context.Context, key string) error {
	if key == "" {
		return cache.ErrEmptyKey
	}
	_, err := c.coll.UpdateOne(ctx, c.live(key), renewExpiry)
	return err
}

// Remove deletes key.
func (c *Cache) Remove(ctx context.Context, key string) error {
	if key == "" {
		return cache.ErrEmptyKey
	}
	_, err := c.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}})
	return err
}

// Connect pings the server and creates the TTL index.
func (c *Cache) Connect(ctx context.Context) error {
	if err := c.Ping(ctx); err != nil {
		return errors.Join(ErrFailedToConnectToMongo, err)
	}
	return c.EnsureIndexes(ctx)
}

// EnsureIndexes creates the TTL index on expires_at.
func (c *Cache) EnsureIndexes(ctx context.Context) error {
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_at_ttl"),
	})
	if err != nil {
		return errors.Join(ErrIndexCreation, err)
	}
	return nil
}

// Ping implements cache.Pinger.
func (c *Cache) Ping(ctx context.Context) error {
	return Healthcheck(c.coll.Database().Client())(ctx)
}
