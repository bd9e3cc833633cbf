// Package session keeps per-client key-value state in a distributed cache
// between HTTP requests.
//
// A client is identified by an opaque identifier carried in a protected
// cookie. Each request gets its own Session bound to that identifier. The
// session fetches its record from the cache on first access, tracks writes,
// and stores the record back when the request completes. Every commit
// renews the sliding expiration of the stored record.
//
// # Architecture
//
//	┌────────┐  cookie   ┌────────────┐  Create  ┌──────────────────┐
//	│ Client │ ────────► │  Manager   │ ───────► │ DistributedStore │
//	└────────┘           └────────────┘          └──────────────────┘
//	                           │                          │ Get / Set
//	                           ▼                          ▼
//	                     ┌────────────┐           ┌──────────────┐
//	                     │  Session   │ ◄───────► │ cache.Cache  │
//	                     └────────────┘  record   └──────────────┘
//
// The record is stored in a compact binary format: a revision byte, a
// 3-byte entry count, then length-prefixed keys and values. Records written
// in an unknown revision are discarded and replaced on the next commit.
//
// # Cookie establishment
//
// A request without a valid cookie gets a fresh identifier, but the cookie
// is only issued if the session is written to before the response starts.
// Writing after that point fails with ErrNotEstablishable, because the
// client would never learn the identifier.
//
// Manager.Abandon ends a session: the stored record is removed right away,
// a pending cookie is withdrawn and an existing one is expired.
//
// # Usage
//
//	cookies, _ := cookie.New([]string{os.Getenv("COOKIE_SECRET")})
//	mgr := session.New(
//		session.WithCookieManager(cookies),
//		session.WithCache(redis.NewCache(client)),
//	)
//
//	mux.Handle("/", mgr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//		sess := session.MustFromContext(r.Context())
//		n, _ := sess.GetInt32(r.Context(), "visits")
//		_ = sess.SetInt32(r.Context(), "visits", n+1)
//		fmt.Fprintf(w, "visits: %d", n+1)
//	})))
//
// # Error handling
//
// Set, Load and Commit return errors. Keys, TryGet, Remove and Clear are
// best effort: a failed load is logged and the session reports itself
// empty, retrying the load on the next access. Commit failures in the
// middleware are logged since the response has already been sent.
package session
