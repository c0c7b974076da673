// Package kvstore provides the bounded key-value backends behind the local
// storage adapter.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDriver indicates an unsupported backend name.
var ErrUnknownDriver = errors.New("kvstore: unknown driver")

// Store is a string key-value store that can report its footprint.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Size returns the bytes held by every key and value.
	Size(ctx context.Context) (int64, error)
}

// Driver names a Store backend.
type Driver string

const (
	DriverSQLite Driver = "sqlite"
	DriverRedis  Driver = "redis"
	DriverMemory Driver = "memory"
)

// ParseDriver validates a configured backend name.
func ParseDriver(raw string) (Driver, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(raw))) {
	case DriverSQLite:
		return DriverSQLite, nil
	case DriverRedis:
		return DriverRedis, nil
	case DriverMemory:
		return DriverMemory, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, raw)
	}
}

func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}
