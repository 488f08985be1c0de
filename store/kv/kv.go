// Package kv defines an interface for a key-value store.
package kv

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by buckets that report missing keys.
var ErrKeyNotFound = errors.New("key not found")

// Bucket defines basic CRUD operations for key-value pairs in a single "namespace."
type Bucket interface {
	Get(ctx context.Context, k string) (v []byte, err error)
	Set(ctx context.Context, k string, v []byte) error
	Has(ctx context.Context, k string) (found bool, err error)
	Delete(ctx context.Context, k string) error
}

// TraversingBucket allows us to get a list of the keys in the bucket as well.
type TraversingBucket interface {
	Bucket
	// Keys returns the unordered keys in the bucket
	Keys(cancel <-chan struct{}) <-chan string
}

// AllKeys drains b.Keys into a slice.
func AllKeys(b TraversingBucket) []string {
	var keys []string
	for k := range b.Keys(nil) {
		keys = append(keys, k)
	}
	return keys
}
