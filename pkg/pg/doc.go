// Package pg connects to PostgreSQL through pgx/v5 and provides Cache, a
// session blob store backed by the session_cache table.
//
// Migrate applies the embedded goose migrations that create the table. Each
// row keeps the blob, its sliding window and the current expiry; reads
// renew the expiry in the same statement. Expired rows are skipped by reads
// and deleted by DeleteExpired, which RunSweeper calls periodically.
//
// # Usage
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//
//	c := pg.NewCache(pool, pg.WithLogger(log))
//	go c.RunSweeper(ctx, cfg.SweepInterval)
package pg
