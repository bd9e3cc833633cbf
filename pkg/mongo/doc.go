// Package mongo connects to MongoDB with retries and provides Cache, a
// session blob store with sliding expiration.
//
// Each session is one document holding the blob, its sliding window in
// milliseconds and the current expiry. Reads renew the expiry with an update
// pipeline evaluated against the server clock. A TTL index on expires_at,
// created by Connect, removes expired documents in the background.
//
// # Usage
//
//	client, err := mongo.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Disconnect(ctx)
//
//	c := mongo.NewCache(client.Database(cfg.Database).Collection(cfg.Collection))
//	if err := c.Connect(ctx); err != nil {
//		return err
//	}
package mongo
