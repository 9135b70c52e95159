package kvstore

import (
	"context"
	"time"

	"github.com/AzielCF/az-sheetboard/infrastructure/valkey"
)

// ValkeyStore implements Store on a shared Valkey instance. The client owns
// the wire commands; this adapter only applies the per-entry size ceiling
// and the key namespace.
type ValkeyStore struct {
	client   *valkey.Client
	prefix   string
	maxValue int
}

// NewValkeyStore creates a ValkeyStore. The client should be created via
// valkey.NewClient and passed here.
func NewValkeyStore(client *valkey.Client, maxValue int) *ValkeyStore {
	if maxValue <= 0 {
		maxValue = DefaultMaxValueSize
	}
	return &ValkeyStore{
		client:   client,
		prefix:   client.Key("kv") + ":",
		maxValue: maxValue,
	}
}

func (s *ValkeyStore) fullKey(key string) string {
	return s.prefix + key
}

func (s *ValkeyStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.client.GetString(ctx, s.fullKey(key))
}

func (s *ValkeyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if len(value) > s.maxValue {
		return ErrValueTooLarge
	}
	return s.client.SetString(ctx, s.fullKey(key), value, ttl)
}

func (s *ValkeyStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.fullKey(key))
}

func (s *ValkeyStore) MaxValueSize() int {
	return s.maxValue
}

func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
