// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// exerciseStore runs the common Store contract against s.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx)
	require.NoError(t, err)
	require.False(t, ok, "a new store must be empty")

	require.NoError(t, s.Set(ctx, "sk-first"))
	require.NoError(t, s.Set(ctx, "sk-second"))

	value, ok, err := s.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sk-second", value)

	require.NoError(t, s.Delete(ctx))
	require.NoError(t, s.Delete(ctx), "deleting twice is fine")

	_, ok, err = s.Get(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

// =============================================================================
// BACKEND TESTS
// =============================================================================

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", "credentials.json")
	exerciseStore(t, NewFileStore(path, DefaultName))
}

func TestFileStore_KeepsOtherNames(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.json")

	a := NewFileStore(path, "a")
	b := NewFileStore(path, "b")
	require.NoError(t, a.Set(ctx, "one"))
	require.NoError(t, b.Set(ctx, "two"))
	require.NoError(t, a.Delete(ctx))

	value, ok, err := b.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "two", value)
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0600))

	_, _, err := NewFileStore(path, DefaultName).Get(context.Background())
	require.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "credentials.db"), DefaultName)
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestSQLiteStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.db")

	store, err := OpenSQLite(path, DefaultName)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "sk-kept"))
	require.NoError(t, store.Close())

	store, err = OpenSQLite(path, DefaultName)
	require.NoError(t, err)
	defer store.Close()

	value, ok, err := store.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sk-kept", value)
}

// =============================================================================
// SEALING TESTS
// =============================================================================

func TestSealed(t *testing.T) {
	dir := t.TempDir()
	exerciseStore(t, NewSealed(NewMemoryStore(), filepath.Join(dir, "master.key")))
}

func TestSealed_EncryptsAtRest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	inner := NewMemoryStore()
	sealed := NewSealed(inner, filepath.Join(dir, "master.key"))

	require.NoError(t, sealed.Set(ctx, "sk-secret-value"))

	raw, ok, err := inner.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(raw, sealedPrefix))
	require.NotContains(t, raw, "sk-secret-value")

	// A fresh wrapper reads the key back from disk.
	value, ok, err := NewSealed(inner, filepath.Join(dir, "master.key")).Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sk-secret-value", value)
}

func TestSealed_WrongKey(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, NewSealed(inner, filepath.Join(t.TempDir(), "a.key")).Set(ctx, "sk-x"))

	other := NewSealed(inner, filepath.Join(t.TempDir(), "b.key"))
	_, _, err := other.Get(ctx)
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestSealed_PlaintextPassthrough(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, inner.Set(ctx, "sk-legacy"))

	value, ok, err := NewSealed(inner, filepath.Join(t.TempDir(), "master.key")).Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sk-legacy", value)
}

// =============================================================================
// FACTORY TESTS
// =============================================================================

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(Options{Backend: BackendFile, Path: filepath.Join(dir, "c.json"), Seal: true})
	require.NoError(t, err)
	require.IsType(t, &Sealed{}, store)
	exerciseStore(t, store)
	require.FileExists(t, filepath.Join(dir, "master.key"))

	store, err = Open(Options{Backend: "SQLite", Path: filepath.Join(dir, "c.db")})
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, Close(store))

	store, err = Open(Options{Backend: BackendMemory})
	require.NoError(t, err)
	require.NoError(t, Close(store))

	_, err = Open(Options{Backend: "keychain"})
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~/.sidechat/x.db")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".sidechat", "x.db"), got)

	got, err = ExpandHome("/abs/path")
	require.NoError(t, err)
	require.Equal(t, "/abs/path", got)
}
