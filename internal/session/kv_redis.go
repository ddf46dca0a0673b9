// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/basms/sessiond/internal/platform/constants"
)

// RedisKeyValue is a Redis-backed [KeyValue] implementation.
//
// The production credential backend: session material survives gateway
// restarts and can be shared by replicas behind one load balancer.
//
// # Key Taxonomy
//
// All keys live under [constants.RedisPrefixCredentials] so a FLUSH of the
// session namespace never touches unrelated application data. Scope isolation
// on top of that is the caller's prefix (e.g. "eContractAccessToken").
type RedisKeyValue struct {
	client *redis.Client
}

// NewRedisKeyValue wraps an existing Redis client as a credential store backend.
func NewRedisKeyValue(client *redis.Client) *RedisKeyValue {
	return &RedisKeyValue{client: client}
}

// namespaced builds the full Redis key.
func (kv *RedisKeyValue) namespaced(key string) string {
	return constants.RedisPrefixCredentials + key
}

/*
Get returns the value stored under key.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - string: Stored value ("" when not found)
  - bool: Whether the key exists
  - error: Connectivity failures
*/
func (kv *RedisKeyValue) Get(context context.Context, key string) (string, bool, error) {
	value, err := kv.client.Get(context, kv.namespaced(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("rediskv_get_failed: %w", err)
	}

	return value, true, nil
}

/*
Set stores value under key without expiry.

Description: Token lifetimes are enforced by the session layer's expiry
timestamps, not by Redis TTLs; a TTL eviction here would look identical to a
logout and mask real lifecycle bugs.

Parameters:
  - context: context.Context
  - key: string
  - value: string

Returns:
  - error: Connectivity failures
*/
func (kv *RedisKeyValue) Set(context context.Context, key string, value string) error {
	if err := kv.client.Set(context, kv.namespaced(key), value, 0).Err(); err != nil {
		return fmt.Errorf("rediskv_set_failed: %w", err)
	}
	return nil
}

/*
Delete removes the given keys. Missing keys are ignored.

Parameters:
  - context: context.Context
  - keys: ...string

Returns:
  - error: Connectivity failures
*/
func (kv *RedisKeyValue) Delete(context context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = kv.namespaced(key)
	}

	if err := kv.client.Del(context, namespaced...).Err(); err != nil {
		return fmt.Errorf("rediskv_delete_failed: %w", err)
	}
	return nil
}
