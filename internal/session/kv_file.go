// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// FileKeyValue is a file-backed [KeyValue] implementation.
//
// It mirrors the durability semantics of browser local storage: a small,
// synchronous key-value map that survives restarts. The whole map is
// serialized as JSON, sealed with ChaCha20-Poly1305 (key derived from the
// configured session secret), and written atomically via rename.
//
// # Concurrency
//
// A single mutex serializes all operations. The gateway's session layer is a
// low-frequency writer (login, renewal, logout), so contention is irrelevant.
type FileKeyValue struct {
	mu   sync.Mutex
	path string
	aead [32]byte // ChaCha20-Poly1305 key derived from the session secret.
}

// NewFileKeyValue creates a file-backed store at path, sealed with a key
// derived from secret.
func NewFileKeyValue(path string, secret string) (*FileKeyValue, error) {
	if secret == "" {
		return nil, fmt.Errorf("filekv: session secret must not be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("filekv: failed to create directory: %w", err)
	}

	return &FileKeyValue{
		path: path,
		aead: sha256.Sum256([]byte(secret)),
	}, nil
}

// Get returns the value stored under key.
func (kv *FileKeyValue) Get(_ context.Context, key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	values, err := kv.read()
	if err != nil {
		return "", false, err
	}

	value, ok := values[key]
	return value, ok, nil
}

// Set stores value under key and flushes the whole map to disk.
func (kv *FileKeyValue) Set(_ context.Context, key string, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	values, err := kv.read()
	if err != nil {
		return err
	}

	values[key] = value
	return kv.write(values)
}

// Delete removes the given keys. Missing keys are ignored.
func (kv *FileKeyValue) Delete(_ context.Context, keys ...string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	values, err := kv.read()
	if err != nil {
		return err
	}

	changed := false
	for _, key := range keys {
		if _, ok := values[key]; ok {
			delete(values, key)
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return kv.write(values)
}

// # Sealed File I/O

// read loads and unseals the stored map. A missing file is an empty map.
func (kv *FileKeyValue) read() (map[string]string, error) {
	sealed, err := os.ReadFile(kv.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("filekv_read_failed: %w", err)
	}

	aead, err := chacha20poly1305.New(kv.aead[:])
	if err != nil {
		return nil, fmt.Errorf("filekv_cipher_init_failed: %w", err)
	}

	// Layout: nonce || ciphertext. A truncated or tampered file fails to open.
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("filekv_read_failed: sealed file too short")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("filekv_unseal_failed: %w", err)
	}

	values := map[string]string{}
	if err := json.Unmarshal(plaintext, &values); err != nil {
		return nil, fmt.Errorf("filekv_decode_failed: %w", err)
	}

	return values, nil
}

// write seals and atomically replaces the stored map.
func (kv *FileKeyValue) write(values map[string]string) error {
	plaintext, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("filekv_encode_failed: %w", err)
	}

	aead, err := chacha20poly1305.New(kv.aead[:])
	if err != nil {
		return fmt.Errorf("filekv_cipher_init_failed: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("filekv_nonce_failed: %w", err)
	}

	sealed := append(nonce, aead.Seal(nil, nonce, plaintext, nil)...)

	// Atomic replace: write a sibling temp file, then rename over the target.
	tempPath := kv.path + ".tmp"
	if err := os.WriteFile(tempPath, sealed, 0o600); err != nil {
		return fmt.Errorf("filekv_write_failed: %w", err)
	}
	if err := os.Rename(tempPath, kv.path); err != nil {
		return fmt.Errorf("filekv_rename_failed: %w", err)
	}

	return nil
}
