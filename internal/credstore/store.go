// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultName is the credential name used when none is configured.
const DefaultName = "deepseekApiKey"

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// ErrUnknownBackend is returned by Open for an unrecognised backend name.
var ErrUnknownBackend = errors.New("unknown credential backend")

// Store holds one named credential.
type Store interface {
	// Get returns the stored credential. ok is false when none is stored.
	Get(ctx context.Context) (value string, ok bool, err error)
	// Set stores value, replacing any previous one.
	Set(ctx context.Context, value string) error
	// Delete removes the credential. Deleting a missing credential is not an error.
	Delete(ctx context.Context) error
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	Path    string // database or file path; "~" is expanded
	Name    string // credential name; DefaultName when empty
	Seal    bool   // encrypt values at rest
	KeyPath string // master key for sealing; next to Path when empty
}

// Open returns the Store described by opts. The caller closes it with
// Close when the backend holds resources.
func Open(opts Options) (Store, error) {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	path, err := ExpandHome(opts.Path)
	if err != nil {
		return nil, err
	}

	var store Store
	switch strings.ToLower(opts.Backend) {
	case "", BackendSQLite:
		if path == "" {
			path = filepath.Join(DefaultDir(), "credentials.db")
		}
		store, err = OpenSQLite(path, opts.Name)
	case BackendFile:
		if path == "" {
			path = filepath.Join(DefaultDir(), "credentials.json")
		}
		store = NewFileStore(path, opts.Name)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	if !opts.Seal {
		return store, nil
	}
	keyPath, err := ExpandHome(opts.KeyPath)
	if err != nil {
		return nil, err
	}
	if keyPath == "" {
		keyPath = filepath.Join(filepath.Dir(path), "master.key")
	}
	return NewSealed(store, keyPath), nil
}

// Close releases the backend behind s, if it holds any resources.
func Close(s Store) error {
	if c, ok := s.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// DefaultDir returns ~/.sidechat, or ./.sidechat when home is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".sidechat")
	}
	return filepath.Join(home, ".sidechat")
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
