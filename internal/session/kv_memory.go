// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package session

import (
	"context"
	"sync"
)

// MemoryKeyValue is an in-memory [KeyValue] implementation.
//
// # Usage
//
// It backs two things: unit tests, and the transient store holding the
// redirectAfterLogin path (which must NOT survive a gateway restart).
type MemoryKeyValue struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKeyValue creates an empty in-memory store.
func NewMemoryKeyValue() *MemoryKeyValue {
	return &MemoryKeyValue{values: make(map[string]string)}
}

// Get returns the value stored under key.
func (kv *MemoryKeyValue) Get(_ context.Context, key string) (string, bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	value, ok := kv.values[key]
	return value, ok, nil
}

// Set stores value under key.
func (kv *MemoryKeyValue) Set(_ context.Context, key string, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	kv.values[key] = value
	return nil
}

// Delete removes the given keys. Missing keys are ignored.
func (kv *MemoryKeyValue) Delete(_ context.Context, keys ...string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	for _, key := range keys {
		delete(kv.values, key)
	}
	return nil
}

// Len reports the number of stored keys. Test helper.
func (kv *MemoryKeyValue) Len() int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	return len(kv.values)
}
