package ratelimiter

import (
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// GetterSetter stores bucket state. Values are int64 so Unix millisecond
// timestamps fit on every platform.
type GetterSetter interface {
	Get(key string) (int64, error)
	Set(key string, value int64) error
	SetWithExpiration(key string, value int64, expiration time.Duration) error
	Delete(key string) error
	Close() error
}
