// Package store holds the remote record store adapters and client profile
// sources. Stores are pure I/O: they move opaque JSON payloads and never
// interpret them. Shape guarantees come from the migrate package.
//
// Every adapter reports an absent record as sentinel.ErrNotFound and a
// payload it refuses as sentinel.ErrRejected; any other error is an
// infrastructure failure the gateway may retry.
package store
