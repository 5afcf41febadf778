// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jeranaias/sidechat/internal/util"
)

// FileStore keeps credentials in a JSON object keyed by name. Other names
// in the same file are preserved.
// SECURITY: The file is written with 0600 permissions inside a 0700 directory.
type FileStore struct {
	mu   sync.Mutex
	path string
	name string
}

// NewFileStore returns a FileStore for the credential name in path.
func NewFileStore(path, name string) *FileStore {
	return &FileStore{path: path, name: name}
}

// Get implements Store.
func (f *FileStore) Get(ctx context.Context) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return "", false, err
	}
	value, ok := entries[f.name]
	return value, ok, nil
}

// Set implements Store.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func (f *FileStore) Set(ctx context.Context, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	entries[f.name] = value
	return f.save(entries)
}

// Delete implements Store.
func (f *FileStore) Delete(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := entries[f.name]; !ok {
		return nil
	}
	delete(entries, f.name)
	if len(entries) == 0 {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete credential file: %w", err)
		}
		return nil
	}
	return f.save(entries)
}

func (f *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	entries := map[string]string{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse credential file %s: %w", f.path, err)
	}
	return entries, nil
}

func (f *FileStore) save(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := util.WriteFileAtomic(f.path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}
