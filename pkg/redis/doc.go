// Package redis connects to Redis with retries and provides Cache, a
// session blob store with sliding expiration.
//
// Each entry is a hash holding the blob and its sliding window. Reads and
// refreshes run as Lua scripts that renew the key TTL from the stored
// window, so expiration slides atomically with access.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	c := redis.NewCache(client, redis.WithKeyPrefix(cfg.KeyPrefix))
//	mgr := session.New(session.WithCookieManager(cookies), session.WithCache(c))
//
// Healthcheck returns a probe suitable for readiness endpoints.
package redis
