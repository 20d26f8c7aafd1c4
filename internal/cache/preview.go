// Package cache implements a generic preview cache on top of Redis:
// values are gob-encoded, gzip-compressed and stored under a namespaced
// key with an optional TTL.
package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/gob"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	keyNamespace = "bot:template:preview"

	// DefaultTTL bounds entries that did not ask for anything else.
	DefaultTTL = 8 * time.Hour

	// KeepForever disables expiration for an entry.
	KeepForever = time.Duration(-1)
)

// store is the slice of the Redis API the cache needs; *redis.Client
// satisfies it.
type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

type Preview struct {
	client store
}

func NewPreview(client store) *Preview {
	return &Preview{client: client}
}

// Set serializes and compresses value and writes it under the namespaced
// key. A KeepForever ttl leaves the key unbounded.
func (p *Preview) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	blob, err := encode(value)
	if err != nil {
		return err
	}
	ck := cacheKey(key)
	if err := p.client.Set(ctx, ck, blob, 0).Err(); err != nil {
		return errors.WithMessage(err, "cant store preview")
	}
	if ttl != KeepForever {
		if err := p.client.Expire(ctx, ck, ttl).Err(); err != nil {
			return errors.WithMessage(err, "cant expire preview")
		}
	}
	return nil
}

// Get reads the namespaced key into out. A missing key yields
// (false, nil); corrupt data is a propagated decode error.
func (p *Preview) Get(ctx context.Context, key string, out any) (bool, error) {
	blob, err := p.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, errors.WithMessage(err, "cant read preview")
	}
	if err := decode(blob, out); err != nil {
		return false, err
	}
	return true, nil
}

func cacheKey(key string) string {
	return keyNamespace + ":" + key
}

func encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(zw).Encode(value); err != nil {
		return nil, errors.WithMessage(err, "cant encode value")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.WithMessage(err, "cant compress value")
	}
	return buf.Bytes(), nil
}

func decode(blob []byte, out any) error {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return errors.WithMessage(err, "cant decompress value")
	}
	defer zr.Close()
	if err := gob.NewDecoder(zr).Decode(out); err != nil {
		return errors.WithMessage(err, "cant decode value")
	}
	return nil
}
