// Package redislist provides a Redis list mailbox store for xagent.
//
// Store name: "redis"
//
// Each mailbox is one Redis list under "<prefix>:<identity>"; Push is RPUSH,
// Pop is LPOP and Len is LLEN, so per-mailbox FIFO order and atomicity come
// from Redis itself. Messages are encoded with the bus codec (json by default).
//
// The key prefix is private to the process (it carries hostname and pid by
// default) and is cleared when the store opens and when it closes: the store
// is a storage strategy for one process's bus, not a cross-process broker.
//
// Minimal config keys:
// - addr: "host:port" (default "127.0.0.1:6379")
// - prefix: key namespace (default "xagent:<hostname>:<pid>")
// - capacity: per-mailbox bound, 0 = unbounded (default 0)
//
// Example builder usage:
//
//	bus, _ := xagent.NewBusBuilder().
//	    WithStore(redislist.StoreName, map[string]any{
//	        "addr":     "localhost:6379",
//	        "prefix":   "mission-42",
//	        "capacity": 1024,
//	    }).
//	    Build()
package redislist
