package storage

import "time"

// Options configures a MongoStore.
//
//	store := storage.NewMongoStore(client, "game", pageCache, &storage.Options{
//	    CacheTTL: time.Minute,
//	})
type Options struct {
	// CacheTTL is the lifetime of a cached collection listing.
	// A value of 0 uses the cache default.
	CacheTTL time.Duration

	// OperationTimeout bounds each driver call.
	// A value of 0 means no timeout (bounded by the context).
	OperationTimeout time.Duration
}

// DefaultOptions returns the default store options.
func DefaultOptions() *Options {
	return &Options{
		CacheTTL:         5 * time.Minute,
		OperationTimeout: 30 * time.Second,
	}
}
