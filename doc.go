// Package tiercache is a multi-tier caching engine for Go services. A
// Manager fronts a hierarchy of storage tiers (in-process memory, a
// quota-limited session store, Redis, an embedded bbolt store) and decides
// per entry which tiers hold it, when it expires, when it is evicted and
// how it is encoded at rest.
//
// Reads probe tiers fastest to slowest and promote hits into the faster
// tiers. Writes fan out to the tiers selected by a deterministic storage
// strategy driven by payload size, priority, category and persistence.
// Payloads can be transparently compressed (s2) and encrypted (AES-GCM);
// compression always runs before encryption. Durable tiers sit behind
// circuit breakers so an unreachable backend degrades the cache instead of
// stalling it.
//
// A minimal setup:
//
//	m, err := tiercache.New(tiercache.DefaultConfig(),
//		tiercache.WithRedis("localhost:6379", "", 0),
//		tiercache.WithBolt("/var/lib/app/cache.db"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer m.Close()
//
//	_ = m.Set(ctx, "user:42", payload, &tiercache.SetOptions{Category: tiercache.CategoryUser})
//	val, err := m.Get(ctx, "user:42", nil)
package tiercache
