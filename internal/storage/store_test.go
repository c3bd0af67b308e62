// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package storage_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/folio/internal/storage"
)

func newStore(t *testing.T) (*storage.FileStore, string) {
	t.Helper()

	root := t.TempDir()
	store, err := storage.NewFileStore(root, "/uploads/")
	require.NoError(t, err)
	return store, root
}

/*
TestFileStore_WriteOpen verifies a write is visible to the next read.
*/
func TestFileStore_WriteOpen(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	ref, err := store.Write(ctx, "book.epub", []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/book.epub", ref)

	_, err = store.Write(ctx, "book.epub", []byte("second"))
	require.NoError(t, err)

	object, err := store.Open(ctx, ref)
	require.NoError(t, err)
	defer object.Reader.Close()

	body, err := io.ReadAll(object.Reader)
	require.NoError(t, err)
	assert.Equal(t, "second", string(body))
	assert.Equal(t, int64(6), object.Size)
	assert.Contains(t, object.ContentType, "text/plain")
}

/*
TestFileStore_StageDiscard ensures a discarded stage leaves nothing behind.
*/
func TestFileStore_StageDiscard(t *testing.T) {
	store, root := newStore(t)
	ctx := context.Background()

	_, err := store.Write(ctx, "keep.epub", []byte("old"))
	require.NoError(t, err)

	pending, err := store.Stage(ctx, "keep.epub", []byte("new"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/keep.epub", pending.Ref())

	require.NoError(t, pending.Discard())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep.epub", entries[0].Name())

	content, err := os.ReadFile(filepath.Join(root, "keep.epub"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(content))
}

/*
TestFileStore_StageCommit publishes staged bytes only on commit.
*/
func TestFileStore_StageCommit(t *testing.T) {
	store, root := newStore(t)
	ctx := context.Background()

	pending, err := store.Stage(ctx, "fresh.epub", []byte("data"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "fresh.epub"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, pending.Commit())
	require.NoError(t, pending.Discard())

	content, err := os.ReadFile(filepath.Join(root, "fresh.epub"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(content))
}

/*
TestFileStore_Refs rejects keys and refs that escape the root.
*/
func TestFileStore_Refs(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		ref  string
	}{
		{"foreign_prefix", "/static/book.epub"},
		{"traversal", "/uploads/../secret"},
		{"nested", "/uploads/a/b.epub"},
		{"hidden", "/uploads/.env"},
		{"empty_key", "/uploads/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Open(ctx, tt.ref)
			assert.ErrorIs(t, err, storage.ErrInvalidRef)

			err = store.Delete(ctx, tt.ref)
			assert.ErrorIs(t, err, storage.ErrInvalidRef)
		})
	}

	_, err := store.Stage(ctx, "../escape", []byte("x"))
	assert.ErrorIs(t, err, storage.ErrInvalidRef)
}

/*
TestFileStore_Delete is idempotent and makes Open report ErrNotExist.
*/
func TestFileStore_Delete(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	ref, err := store.Write(ctx, "gone.epub", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, ref))
	require.NoError(t, store.Delete(ctx, ref))

	_, err = store.Open(ctx, ref)
	assert.ErrorIs(t, err, storage.ErrNotExist)
}

/*
TestFileStore_Ping reports a writable root.
*/
func TestFileStore_Ping(t *testing.T) {
	store, root := newStore(t)

	require.NoError(t, store.Ping(context.Background()))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

/*
TestHandler_Serve streams committed artifacts and 404s the rest.
*/
func TestHandler_Serve(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.Write(context.Background(), "note.txt", []byte("hello"))
	require.NoError(t, err)

	for _, key := range []string{"0190a2c4.epub", "0190a2c4_watermark.epub", "upload.EPUB"} {
		_, err := store.Write(context.Background(), key, []byte("PK"))
		require.NoError(t, err)
	}

	server := httptest.NewServer(http.StripPrefix("/uploads", storage.NewHandler(store).Routes()))
	defer server.Close()

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"existing", "/uploads/note.txt", http.StatusOK},
		{"missing", "/uploads/none.txt", http.StatusNotFound},
		{"hidden", "/uploads/.secret", http.StatusNotFound},
		{"plain archive", "/uploads/0190a2c4.epub", http.StatusNotFound},
		{"watermarked archive", "/uploads/0190a2c4_watermark.epub", http.StatusNotFound},
		{"archive suffix case", "/uploads/upload.EPUB", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response, err := http.Get(server.URL + tt.path)
			require.NoError(t, err)
			defer response.Body.Close()

			assert.Equal(t, tt.status, response.StatusCode)
			if tt.status == http.StatusOK {
				body, err := io.ReadAll(response.Body)
				require.NoError(t, err)
				assert.Equal(t, "hello", string(body))
			}
		})
	}
}
