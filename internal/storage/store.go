// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package storage persists generated archives and uploaded book assets on the
local filesystem.

Every artifact lives directly under the store root and is addressed two ways:

  - key: the file name inside the root (e.g. "{bookId}.epub")
  - ref: the public reference saved on the book record (e.g. "/uploads/{bookId}.epub")

Writes are two-phase. [FileStore.Stage] writes the bytes to a hidden temp file
next to the target; [Pending.Commit] renames it into place, which replaces
the previous artifact atomically. A reader therefore sees either the old or
the new archive, never a partial one.
*/
package storage

import (
	stdctx "context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrNotExist is returned by Open when the referenced artifact is missing.
	ErrNotExist = errors.New("storage: artifact does not exist")

	// ErrInvalidRef is returned for references outside the store or for
	// keys that are not a plain file name.
	ErrInvalidRef = errors.New("storage: invalid artifact reference")
)

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// Object is an opened artifact. The caller must close Reader.
type Object struct {
	Reader      io.ReadSeekCloser
	Size        int64
	ModTime     time.Time
	ContentType string
}

// Pending is a staged write that has not been published yet.
type Pending interface {
	// Ref is the reference the artifact will have once committed.
	Ref() string

	// Commit publishes the staged bytes, replacing any previous artifact.
	Commit() error

	// Discard removes the staged bytes. It is a no-op after Commit.
	Discard() error
}

// FileStore is a [Pending]-capable artifact store rooted at one directory.
type FileStore struct {
	root         string
	publicPrefix string
}

/*
NewFileStore prepares root and returns a store publishing refs under publicPrefix.

Parameters:
  - root: string (created if missing)
  - publicPrefix: string (e.g. "/uploads")

Returns:
  - *FileStore: The ready store
  - error: When the root cannot be created
*/
func NewFileStore(root, publicPrefix string) (*FileStore, error) {
	absolute, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root %q: %w", root, err)
	}

	if err := os.MkdirAll(absolute, dirPerm); err != nil {
		return nil, fmt.Errorf("storage: create root %q: %w", absolute, err)
	}

	prefix := "/" + strings.Trim(publicPrefix, "/")
	return &FileStore{root: absolute, publicPrefix: prefix}, nil
}

// Root returns the absolute directory artifacts are written to.
func (store *FileStore) Root() string {
	return store.root
}

// PublicPrefix returns the URL path prefix of every ref.
func (store *FileStore) PublicPrefix() string {
	return store.publicPrefix
}

// Ref returns the public reference of key.
func (store *FileStore) Ref(key string) string {
	return path.Join(store.publicPrefix, key)
}

// Key resolves a public reference back to a key inside the root.
func (store *FileStore) Key(ref string) (string, error) {
	key, found := strings.CutPrefix(ref, store.publicPrefix+"/")
	if !found {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	if err := checkKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// checkKey accepts plain file names only.
func checkKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.HasPrefix(key, ".") ||
		strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: key %q", ErrInvalidRef, key)
	}
	return nil
}

// # Writes

/*
Stage writes data to a temp file beside the target of key.

Returns:
  - Pending: Commit to publish, Discard to roll back
  - error: On I/O failure; nothing is left behind
*/
func (store *FileStore) Stage(context stdctx.Context, key string, data []byte) (Pending, error) {
	if err := context.Err(); err != nil {
		return nil, err
	}
	if err := checkKey(key); err != nil {
		return nil, err
	}

	temp, err := os.CreateTemp(store.root, "."+key+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("storage: create temp for %s: %w", key, err)
	}

	fail := func(step string, cause error) (Pending, error) {
		_ = temp.Close()
		_ = os.Remove(temp.Name())
		return nil, fmt.Errorf("storage: %s %s: %w", step, key, cause)
	}

	if _, err := temp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := temp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := temp.Chmod(filePerm); err != nil {
		return fail("chmod", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(temp.Name())
		return nil, fmt.Errorf("storage: close %s: %w", key, err)
	}

	return &stagedFile{
		temp:  temp.Name(),
		final: filepath.Join(store.root, key),
		ref:   store.Ref(key),
	}, nil
}

// Write stages and commits data under key, returning its ref.
func (store *FileStore) Write(context stdctx.Context, key string, data []byte) (string, error) {
	pending, err := store.Stage(context, key, data)
	if err != nil {
		return "", err
	}

	if err := pending.Commit(); err != nil {
		_ = pending.Discard()
		return "", err
	}

	return pending.Ref(), nil
}

type stagedFile struct {
	temp      string
	final     string
	ref       string
	committed bool
}

func (staged *stagedFile) Ref() string {
	return staged.ref
}

func (staged *stagedFile) Commit() error {
	if staged.committed {
		return nil
	}
	if err := os.Rename(staged.temp, staged.final); err != nil {
		return fmt.Errorf("storage: publish %s: %w", filepath.Base(staged.final), err)
	}
	staged.committed = true
	return nil
}

func (staged *stagedFile) Discard() error {
	if staged.committed {
		return nil
	}
	if err := os.Remove(staged.temp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: discard %s: %w", filepath.Base(staged.final), err)
	}
	return nil
}

// # Reads

/*
Open returns a seekable stream of the artifact behind ref.

Returns:
  - *Object: Reader plus size, modification time and sniffed content type
  - error: ErrNotExist when the file is missing, ErrInvalidRef for foreign refs
*/
func (store *FileStore) Open(context stdctx.Context, ref string) (*Object, error) {
	if err := context.Err(); err != nil {
		return nil, err
	}

	key, err := store.Key(ref)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(store.root, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, key)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", key, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("storage: stat %s: %w", key, err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotExist, key)
	}

	detected, err := mimetype.DetectReader(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("storage: sniff %s: %w", key, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("storage: rewind %s: %w", key, err)
	}

	return &Object{
		Reader:      file,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		ContentType: detected.String(),
	}, nil
}

// Delete removes the artifact behind ref. A missing artifact is not an error.
func (store *FileStore) Delete(context stdctx.Context, ref string) error {
	if err := context.Err(); err != nil {
		return err
	}

	key, err := store.Key(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(store.root, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Ping reports whether the root is writable.
func (store *FileStore) Ping(context stdctx.Context) error {
	if err := context.Err(); err != nil {
		return err
	}

	probe, err := os.CreateTemp(store.root, ".ping-*")
	if err != nil {
		return fmt.Errorf("storage: root not writable: %w", err)
	}
	_ = probe.Close()
	return os.Remove(probe.Name())
}
