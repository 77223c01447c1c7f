// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// SEALED STORE
// =============================================================================

const (
	sealNonceSize = 12
	sealKeySize   = 32
	sealSaltSize  = 32

	// sealSaltKey holds the base64 salt next to the sealed values.
	sealSaltKey = "seal_salt"

	sealPrefix = "sealed:v1:"
)

// sealIterations is the PBKDF2 work factor. Tests lower it.
var sealIterations = 600000

// ErrNoPassphrase is returned when sealing is requested without a passphrase.
var ErrNoPassphrase = errors.New("token encryption enabled but WATTCHAT_PASSPHRASE is not set")

// ErrBadPassphrase is returned when a sealed value fails authentication.
var ErrBadPassphrase = errors.New("sealed value could not be decrypted (wrong passphrase?)")

// Sealed wraps a Storage and encrypts the values of selected keys with
// AES-256-GCM. The key is derived from a passphrase with PBKDF2-SHA256.
type Sealed struct {
	inner Storage
	aead  cipher.AEAD
	keys  map[string]bool
}

// NewSealed derives the sealing key, creating and storing a salt on first use.
func NewSealed(ctx context.Context, inner Storage, passphrase string, keys ...string) (*Sealed, error) {
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}

	salt, err := loadOrCreateSalt(ctx, inner)
	if err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(passphrase), salt, sealIterations, sealKeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return &Sealed{inner: inner, aead: aead, keys: set}, nil
}

func loadOrCreateSalt(ctx context.Context, inner Storage) ([]byte, error) {
	encoded, err := inner.Get(ctx, sealSaltKey)
	if err == nil {
		salt, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(salt) != sealSaltSize {
			return nil, fmt.Errorf("stored salt is corrupt")
		}
		return salt, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	salt := make([]byte, sealSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if err := inner.Set(ctx, sealSaltKey, base64.StdEncoding.EncodeToString(salt)); err != nil {
		return nil, err
	}
	return salt, nil
}

// Get implements Storage.
func (s *Sealed) Get(ctx context.Context, key string) (string, error) {
	v, err := s.inner.Get(ctx, key)
	if err != nil || !s.keys[key] {
		return v, err
	}
	return s.open(v)
}

// Set implements Storage.
func (s *Sealed) Set(ctx context.Context, key, value string) error {
	if !s.keys[key] {
		return s.inner.Set(ctx, key, value)
	}
	sealed, err := s.seal(value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealed)
}

// Remove implements Storage.
func (s *Sealed) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

// Close implements Storage.
func (s *Sealed) Close() error {
	return s.inner.Close()
}

// Inner returns the wrapped store.
func (s *Sealed) Inner() Storage {
	return s.inner
}

func (s *Sealed) seal(plaintext string) (string, error) {
	nonce := make([]byte, sealNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	ct := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealPrefix + base64.StdEncoding.EncodeToString(ct), nil
}

func (s *Sealed) open(value string) (string, error) {
	// Values written before sealing was enabled are returned as-is.
	if !strings.HasPrefix(value, sealPrefix) {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealPrefix))
	if err != nil || len(raw) < sealNonceSize {
		return "", ErrBadPassphrase
	}
	pt, err := s.aead.Open(nil, raw[:sealNonceSize], raw[sealNonceSize:], nil)
	if err != nil {
		return "", ErrBadPassphrase
	}
	return string(pt), nil
}
