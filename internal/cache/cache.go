package cache

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound      = errors.New("cache entry not found")
	ErrAlreadyExists = errors.New("cache entry already exists")
)

type PutCondition int

const (
	PutUnconditional PutCondition = iota
	PutIfNoneMatch
)

type PutOptions struct {
	Condition PutCondition
}

func Unconditional() PutOptions { return PutOptions{Condition: PutUnconditional} }

// IfNoneMatch only writes when the key does not exist yet.
func IfNoneMatch() PutOptions { return PutOptions{Condition: PutIfNoneMatch} }

// Cache is a durable key-value slot. Values are opaque strings.
type Cache interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key, value string, opts PutOptions) error
}

// ListCache can enumerate and remove keys. List returns keys with prefix trimmed.
type ListCache interface {
	Cache
	List(ctx context.Context, prefix string, token string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// ReadString is a convenience for small values.
func ReadString(ctx context.Context, c Cache, key string) (string, error) {
	rc, err := c.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
