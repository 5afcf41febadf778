// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/jeranaias/sidechat/internal/util"
)

const (
	// sealedPrefix marks a value encrypted by Sealed.
	sealedPrefix = "ENC:"

	masterKeySize = 32
	nonceSize     = 24
)

var (
	// ErrDecryptFailed means a sealed value could not be opened with the
	// master key, usually because the key file was replaced.
	ErrDecryptFailed = errors.New("failed to decrypt credential")

	// ErrInvalidMasterKey means the master key file has the wrong size.
	ErrInvalidMasterKey = errors.New("invalid master key")
)

// Sealed encrypts values before handing them to the wrapped Store.
// Values stored without sealing are returned as-is, so an existing
// plaintext credential keeps working until it is next set.
// SECURITY: The master key lives in its own 0600 file, created on first Set.
type Sealed struct {
	inner   Store
	keyPath string

	mu  sync.Mutex
	key *[masterKeySize]byte
}

// NewSealed wraps inner with encryption keyed by the file at keyPath.
func NewSealed(inner Store, keyPath string) *Sealed {
	return &Sealed{inner: inner, keyPath: keyPath}
}

// Get implements Store.
func (s *Sealed) Get(ctx context.Context) (string, bool, error) {
	value, ok, err := s.inner.Get(ctx)
	if err != nil || !ok {
		return value, ok, err
	}

	encoded, sealed := strings.CutPrefix(value, sealedPrefix)
	if !sealed {
		return value, true, nil
	}

	key, err := s.masterKey(false)
	if err != nil {
		return "", false, err
	}
	plain, err := open(key, encoded)
	if err != nil {
		return "", false, err
	}
	return plain, true, nil
}

// Set implements Store.
func (s *Sealed) Set(ctx context.Context, value string) error {
	key, err := s.masterKey(true)
	if err != nil {
		return err
	}
	sealed, err := seal(key, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, sealed)
}

// Delete implements Store. The master key is kept for later values.
func (s *Sealed) Delete(ctx context.Context) error {
	return s.inner.Delete(ctx)
}

// Close closes the wrapped store.
func (s *Sealed) Close() error {
	return Close(s.inner)
}

// masterKey loads the key file, creating it when create is set.
func (s *Sealed) masterKey(create bool) (*[masterKeySize]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		return s.key, nil
	}

	data, err := os.ReadFile(s.keyPath)
	switch {
	case err == nil:
		if len(data) != masterKeySize {
			return nil, fmt.Errorf("%w: %s has %d bytes", ErrInvalidMasterKey, s.keyPath, len(data))
		}
	case errors.Is(err, os.ErrNotExist) && create:
		data = make([]byte, masterKeySize)
		if _, err := io.ReadFull(rand.Reader, data); err != nil {
			return nil, fmt.Errorf("failed to generate master key: %w", err)
		}
		if err := util.WriteFileAtomic(s.keyPath, data, 0600, 0700); err != nil {
			return nil, fmt.Errorf("failed to write master key: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: master key %s is missing", ErrDecryptFailed, s.keyPath)
	default:
		return nil, fmt.Errorf("failed to read master key: %w", err)
	}

	var key [masterKeySize]byte
	copy(key[:], data)
	s.key = &key
	return s.key, nil
}

func seal(key *[masterKeySize]byte, plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, key)
	return sealedPrefix + base64.StdEncoding.EncodeToString(box), nil
}

func open(key *[masterKeySize]byte, encoded string) (string, error) {
	box, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return "", ErrDecryptFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, key)
	if !ok {
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}
