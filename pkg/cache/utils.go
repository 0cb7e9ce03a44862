package cache

import "fmt"

// GenerateKey joins a prefix and id into a cache key.
func GenerateKey(prefix, id string) string {
	return prefix + ":" + id
}

// GenerateKeyWithParams appends each param to the prefix, so callers can key
// on symbol, timeframe and window without hand-rolled format strings.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	key := prefix
	for _, param := range params {
		key = fmt.Sprintf("%s:%v", key, param)
	}
	return key
}

// BuildPattern turns a key prefix into a match-all pattern.
func BuildPattern(prefix string) string {
	return prefix + "*"
}
