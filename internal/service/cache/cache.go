package cache

import "time"

// BytesCache memoizes serialized payloads with a TTL. Prefilter results and
// rendered pivot responses ride through it; a miss is never an error.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
