// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package book_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/folio/internal/core/book"
	"github.com/taibuivan/folio/internal/ebook"
	"github.com/taibuivan/folio/internal/platform/apperr"
	"github.com/taibuivan/folio/internal/platform/constants"
	"github.com/taibuivan/folio/internal/platform/lock"
	"github.com/taibuivan/folio/internal/platform/sec"
	"github.com/taibuivan/folio/internal/storage"
)

// # Fixtures

var (
	owner  = &sec.AuthClaims{UserID: "owner-1", Role: string(sec.RoleAuthor)}
	reader = &sec.AuthClaims{UserID: "reader-1", Role: string(sec.RoleReader)}
	admin  = &sec.AuthClaims{UserID: "admin-1", Role: string(sec.RoleAdmin)}

	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	mp3Bytes = []byte("ID3\x03\x00\x00\x00\x00\x00\x00audio")
	mp4Bytes = []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2")
)

// memoryRepository is an in-memory [book.Repository].
type memoryRepository struct {
	mu    sync.Mutex
	books map[string]book.Book
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{books: map[string]book.Book{}}
}

func (repository *memoryRepository) Create(_ context.Context, entity *book.Book) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	entity.Version = 1
	entity.CreatedAt = time.Now()
	entity.UpdatedAt = entity.CreatedAt
	repository.books[entity.ID] = *entity
	return nil
}

func (repository *memoryRepository) FindByID(_ context.Context, id string) (*book.Book, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	stored, ok := repository.books[id]
	if !ok {
		return nil, apperr.NotFound("Book")
	}
	return &stored, nil
}

func (repository *memoryRepository) List(_ context.Context, filter book.Filter, limit, offset int) ([]*book.Book, int, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	matched := []*book.Book{}
	for _, stored := range repository.books {
		if filter.OwnerID != "" && stored.OwnerID != filter.OwnerID {
			continue
		}
		if filter.PublicOnly && stored.IsPrivate {
			continue
		}
		entity := stored
		matched = append(matched, &entity)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	if offset >= total {
		return []*book.Book{}, total, nil
	}
	end := min(offset+limit, total)
	return matched[offset:end], total, nil
}

func (repository *memoryRepository) Update(_ context.Context, entity *book.Book, expectedVersion int) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	stored, ok := repository.books[entity.ID]
	if !ok {
		return apperr.NotFound("Book")
	}
	if stored.Version != expectedVersion {
		return apperr.Conflict("Book was modified by another request; reload and retry")
	}

	entity.Version = expectedVersion + 1
	entity.UpdatedAt = time.Now()
	repository.books[entity.ID] = *entity
	return nil
}

func (repository *memoryRepository) SetGenerationStatus(_ context.Context, id string, status book.GenerationStatus) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	stored, ok := repository.books[id]
	if !ok {
		return apperr.NotFound("Book")
	}
	stored.GenerationStatus = status
	repository.books[id] = stored
	return nil
}

func (repository *memoryRepository) Delete(_ context.Context, id string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	if _, ok := repository.books[id]; !ok {
		return apperr.NotFound("Book")
	}
	delete(repository.books, id)
	return nil
}

func (repository *memoryRepository) count() int {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	return len(repository.books)
}

// faultyStore fails staging or publishing of keys with a given suffix.
type faultyStore struct {
	*storage.FileStore
	failStage  string
	failCommit string
}

func (store *faultyStore) Stage(ctx context.Context, key string, data []byte) (storage.Pending, error) {
	if store.failStage != "" && strings.HasSuffix(key, store.failStage) {
		return nil, errors.New("no space left on device")
	}

	pending, err := store.FileStore.Stage(ctx, key, data)
	if err != nil {
		return nil, err
	}
	if store.failCommit != "" && strings.HasSuffix(key, store.failCommit) {
		return &unpublishable{Pending: pending}, nil
	}
	return pending, nil
}

type unpublishable struct {
	storage.Pending
}

func (pending *unpublishable) Commit() error {
	return errors.New("rename failed")
}

// failingGenerator reports a build failure for every source.
type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, ebook.Source) (*ebook.Bundle, error) {
	return nil, fmt.Errorf("%w: OEBPS/chapter1.xhtml: unexpected EOF", ebook.ErrBuild)
}

type fixture struct {
	service    *book.Service
	repository *memoryRepository
	store      *faultyStore
	root       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

func newFixtureWith(t *testing.T, generator book.Generator) *fixture {
	t.Helper()

	root := t.TempDir()
	fileStore, err := storage.NewFileStore(root, "/uploads")
	require.NoError(t, err)

	if generator == nil {
		generator = ebook.NewGenerator(ebook.NewSanitizer(nil), ebook.DefaultLanguage, ebook.Watermark{Image: pngBytes})
	}

	repository := newMemoryRepository()
	store := &faultyStore{FileStore: fileStore}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := book.NewService(repository, generator, store, lock.NewKeyedMutex(), logger, book.Options{MaxPages: 50, LockWait: time.Second})
	return &fixture{service: service, repository: repository, store: store, root: root}
}

// files lists the names in the store root, temp files included.
func (fixture *fixture) files(t *testing.T) []string {
	t.Helper()

	entries, err := os.ReadDir(fixture.root)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func (fixture *fixture) exists(ref string) bool {
	_, err := os.Stat(filepath.Join(fixture.root, strings.TrimPrefix(ref, "/uploads/")))
	return err == nil
}

func (fixture *fixture) readEntry(t *testing.T, ref, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(fixture.root, strings.TrimPrefix(ref, "/uploads/")))
	require.NoError(t, err)

	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	for _, file := range archive.File {
		if file.Name == name {
			handle, err := file.Open()
			require.NoError(t, err)
			defer handle.Close()

			body, err := io.ReadAll(handle)
			require.NoError(t, err)
			return string(body)
		}
	}

	t.Fatalf("entry %s not found in %s", name, ref)
	return ""
}

func createRequest() *book.CreateBookRequest {
	return &book.CreateBookRequest{
		Title:  "Demo",
		Author: "Ann",
		Pages: []book.Page{
			{Name: "Intro", Content: "<p>Hello</p>"},
		},
		AudioItems: []book.MediaItem{{Title: "Theme"}},
		CoverImage: book.NewUpload("cover.png", pngBytes),
		AudioFiles: []*book.Upload{book.NewUpload("theme.mp3", mp3Bytes)},
	}
}

// # Create

/*
TestService_CreateBook verifies a created book references two published archives.
*/
func TestService_CreateBook(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	created, err := fixture.service.CreateBook(ctx, owner, createRequest())
	require.NoError(t, err)

	assert.Equal(t, owner.UserID, created.OwnerID)
	assert.Equal(t, book.TypeCreated, created.BookType)
	assert.Equal(t, book.GenerationReady, created.GenerationStatus)
	assert.Equal(t, 1, created.Version)

	require.NotNil(t, created.EbookFile)
	require.NotNil(t, created.WatermarkFile)
	assert.Equal(t, "/uploads/"+created.ID+".epub", *created.EbookFile)
	assert.Equal(t, "/uploads/"+created.ID+"_watermark.epub", *created.WatermarkFile)
	assert.True(t, fixture.exists(*created.EbookFile))
	assert.True(t, fixture.exists(*created.WatermarkFile))

	require.NotNil(t, created.CoverImage)
	assert.True(t, strings.HasSuffix(*created.CoverImage, ".png"))
	assert.True(t, fixture.exists(*created.CoverImage))

	require.Len(t, created.AudioItems, 1)
	assert.True(t, strings.HasSuffix(created.AudioItems[0].FileURL, ".mp3"))
	assert.True(t, fixture.exists(created.AudioItems[0].FileURL))

	chapter := fixture.readEntry(t, *created.EbookFile, "OEBPS/chapter0.xhtml")
	assert.Contains(t, chapter, "<p>Hello</p>")
	assert.NotContains(t, chapter, "watermark")

	marked := fixture.readEntry(t, *created.WatermarkFile, "OEBPS/chapter0.xhtml")
	assert.Contains(t, marked, `<div class="watermark"></div>`)

	// Only published files remain; nothing staged is left behind
	assert.Len(t, fixture.files(t), 4)
}

/*
TestService_CreateBook_Validation covers rejected requests that must write nothing.
*/
func TestService_CreateBook_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(request *book.CreateBookRequest)
	}{
		{"Missing title", func(request *book.CreateBookRequest) { request.Title = "  " }},
		{"Too many pages", func(request *book.CreateBookRequest) { request.Pages = make([]book.Page, 51) }},
		{"Cover not an image", func(request *book.CreateBookRequest) {
			request.CoverImage = book.NewUpload("cover.png", []byte("plain text"))
		}},
		{"Missing audio file", func(request *book.CreateBookRequest) { request.AudioFiles = nil }},
		{"Video file sent as audio", func(request *book.CreateBookRequest) {
			request.AudioFiles = []*book.Upload{book.NewUpload("clip.mp4", mp4Bytes)}
		}},
		{"Preset file url", func(request *book.CreateBookRequest) {
			request.AudioItems = []book.MediaItem{{Title: "Theme", FileURL: "/uploads/other.mp3"}}
			request.AudioFiles = nil
		}},
		{"Bad youtube link", func(request *book.CreateBookRequest) {
			request.YoutubeItems = []book.YoutubeItem{{Title: "Clip", Link: "javascript:alert(1)"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := newFixture(t)
			request := createRequest()
			tt.mutate(request)

			_, err := fixture.service.CreateBook(context.Background(), owner, request)
			require.Error(t, err)
			assert.True(t, apperr.HasCode(err, apperr.CodeValidation), "got %v", err)
			assert.Zero(t, fixture.repository.count())
			assert.Empty(t, fixture.files(t))
		})
	}
}

/*
TestService_CreateBook_GenerationFailed verifies a build failure leaves no trace.
*/
func TestService_CreateBook_GenerationFailed(t *testing.T) {
	fixture := newFixtureWith(t, failingGenerator{})

	_, err := fixture.service.CreateBook(context.Background(), owner, createRequest())
	require.Error(t, err)

	assert.True(t, apperr.HasCode(err, apperr.CodeGenerationFailed))
	assert.ErrorIs(t, err, ebook.ErrBuild)
	assert.Zero(t, fixture.repository.count())
	assert.Empty(t, fixture.files(t))
}

/*
TestService_CreateBook_StorageFailures verifies partial writes are rolled back.
*/
func TestService_CreateBook_StorageFailures(t *testing.T) {
	tests := []struct {
		name       string
		failStage  string
		failCommit string
	}{
		{"Stage watermark", "_watermark.epub", ""},
		{"Stage cover", ".png", ""},
		{"Publish watermark", "", "_watermark.epub"},
		{"Publish audio", "", ".mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := newFixture(t)
			fixture.store.failStage = tt.failStage
			fixture.store.failCommit = tt.failCommit

			_, err := fixture.service.CreateBook(context.Background(), owner, createRequest())
			require.Error(t, err)

			assert.True(t, apperr.HasCode(err, apperr.CodeStorage))
			assert.Zero(t, fixture.repository.count())
			assert.Empty(t, fixture.files(t))
		})
	}
}

// # Update

/*
TestService_UpdateBook verifies regeneration and cleanup of the replaced cover.
*/
func TestService_UpdateBook(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	created, err := fixture.service.CreateBook(ctx, owner, createRequest())
	require.NoError(t, err)
	oldCover := *created.CoverImage

	title := "Renamed"
	pages := []book.Page{{Name: "One", Content: "<p>First</p>"}, {Name: "Two", Content: "<p>Second</p>"}}
	version := created.Version

	updated, err := fixture.service.UpdateBook(ctx, owner, created.ID, &book.UpdateBookRequest{
		Title:      &title,
		Pages:      &pages,
		Version:    &version,
		CoverImage: book.NewUpload("new.png", pngBytes),
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "Ann", updated.Author)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, *created.EbookFile, *updated.EbookFile)
	assert.NotEqual(t, oldCover, *updated.CoverImage)

	assert.False(t, fixture.exists(oldCover))
	assert.True(t, fixture.exists(*updated.CoverImage))
	assert.True(t, fixture.exists(created.AudioItems[0].FileURL))

	opf := fixture.readEntry(t, *updated.EbookFile, "OEBPS/content.opf")
	assert.Contains(t, opf, "<dc:title>Renamed</dc:title>")
	assert.Contains(t, fixture.readEntry(t, *updated.WatermarkFile, "OEBPS/chapter1.xhtml"), "<p>Second</p>")
}

/*
TestService_UpdateBook_Media verifies kept, added and dropped media files.
*/
func TestService_UpdateBook_Media(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	request := createRequest()
	request.AudioItems = []book.MediaItem{{Title: "A"}, {Title: "B"}}
	request.AudioFiles = []*book.Upload{book.NewUpload("a.mp3", mp3Bytes), book.NewUpload("b.mp3", mp3Bytes)}

	created, err := fixture.service.CreateBook(ctx, owner, request)
	require.NoError(t, err)
	kept, dropped := created.AudioItems[0].FileURL, created.AudioItems[1].FileURL

	t.Run("Foreign reference", func(t *testing.T) {
		items := []book.MediaItem{{Title: "A", FileURL: "/uploads/someone-else.mp3"}}

		_, err := fixture.service.UpdateBook(ctx, owner, created.ID, &book.UpdateBookRequest{AudioItems: &items})
		require.Error(t, err)
		assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
		assert.True(t, fixture.exists(dropped))
	})

	t.Run("Keep one, add one", func(t *testing.T) {
		items := []book.MediaItem{{Title: "A", FileURL: kept}, {Title: "C"}}

		updated, err := fixture.service.UpdateBook(ctx, owner, created.ID, &book.UpdateBookRequest{
			AudioItems: &items,
			AudioFiles: []*book.Upload{book.NewUpload("c.mp3", mp3Bytes)},
		})
		require.NoError(t, err)

		require.Len(t, updated.AudioItems, 2)
		assert.Equal(t, kept, updated.AudioItems[0].FileURL)
		assert.NotEmpty(t, updated.AudioItems[1].FileURL)
		assert.NotEqual(t, dropped, updated.AudioItems[1].FileURL)

		assert.True(t, fixture.exists(kept))
		assert.True(t, fixture.exists(updated.AudioItems[1].FileURL))
		assert.False(t, fixture.exists(dropped))
	})
}

/*
TestService_UpdateBook_Conflicts covers stale versions and concurrent writers.
*/
func TestService_UpdateBook_Conflicts(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	created, err := fixture.service.CreateBook(ctx, owner, createRequest())
	require.NoError(t, err)

	t.Run("Stale version", func(t *testing.T) {
		stale := created.Version + 5
		_, err := fixture.service.UpdateBook(ctx, owner, created.ID, &book.UpdateBookRequest{Version: &stale})
		assert.True(t, apperr.HasCode(err, apperr.CodeConflict))
	})

	t.Run("Concurrent writers", func(t *testing.T) {
		const writers = 5
		version := created.Version

		var (
			waitGroup sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			conflicts int
		)

		for index := 0; index < writers; index++ {
			waitGroup.Add(1)
			go func(index int) {
				defer waitGroup.Done()

				title := fmt.Sprintf("Writer %d", index)
				_, err := fixture.service.UpdateBook(ctx, owner, created.ID, &book.UpdateBookRequest{Title: &title, Version: &version})

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case apperr.HasCode(err, apperr.CodeConflict):
					conflicts++
				}
			}(index)
		}
		waitGroup.Wait()

		assert.Equal(t, 1, succeeded)
		assert.Equal(t, writers-1, conflicts)

		stored, err := fixture.repository.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Version+1, stored.Version)
	})
}

/*
TestService_UpdateBook_PublishFailure verifies the record is flagged when
archives could not be replaced after the record was written.
*/
func TestService_UpdateBook_PublishFailure(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	created, err := fixture.service.CreateBook(ctx, owner, createRequest())
	require.NoError(t, err)

	fixture.store.failCommit = "_watermark.epub"
	title := "Renamed"

	_, err = fixture.service.UpdateBook(ctx, owner, created.ID, &book.UpdateBookRequest{Title: &title})
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeStorage))

	stored, err := fixture.repository.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, book.GenerationFailed, stored.GenerationStatus)

	for _, name := range fixture.files(t) {
		assert.False(t, strings.HasSuffix(name, ".tmp"), "staged file left behind: %s", name)
	}
}

/*
TestService_UpdateBook_ConversionPublishFailure verifies a failed conversion
of an uploaded book leaves the record on its original archive.
*/
func TestService_UpdateBook_ConversionPublishFailure(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	archive, err := ebook.NewBuilder(ebook.Options{}).Build(ebook.Manuscript{ID: "external", Title: "External", Author: "Someone"})
	require.NoError(t, err)

	uploaded, err := fixture.service.UploadBook(ctx, owner, &book.UploadBookRequest{
		Title:    "External",
		Author:   "Someone",
		BookFile: book.NewUpload("external.epub", archive),
	})
	require.NoError(t, err)
	original := *uploaded.EbookFile

	fixture.store.failCommit = "_watermark.epub"
	pages := []book.Page{{Name: "New", Content: "<p>Rewritten</p>"}}

	_, err = fixture.service.UpdateBook(ctx, owner, uploaded.ID, &book.UpdateBookRequest{
		Pages:      &pages,
		CoverImage: book.NewUpload("cover.png", pngBytes),
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeStorage))

	stored, err := fixture.repository.FindByID(ctx, uploaded.ID)
	require.NoError(t, err)
	assert.Equal(t, book.TypeUploaded, stored.BookType)
	assert.Equal(t, book.GenerationFailed, stored.GenerationStatus)
	require.NotNil(t, stored.EbookFile)
	assert.Equal(t, original, *stored.EbookFile)
	assert.Nil(t, stored.WatermarkFile)
	assert.Nil(t, stored.CoverImage)

	assert.True(t, fixture.exists(original))
	assert.ElementsMatch(t, []string{strings.TrimPrefix(original, "/uploads/")}, fixture.files(t))

	_, object, err := fixture.service.OpenEbook(ctx, owner, uploaded.ID)
	require.NoError(t, err)
	assert.NoError(t, object.Reader.Close())
}

/*
TestService_UpdateBook_GenerationFailed verifies the stored book is untouched.
*/
func TestService_UpdateBook_GenerationFailed(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	created, err := fixture.service.CreateBook(ctx, owner, createRequest())
	require.NoError(t, err)
	before := fixture.files(t)

	broken := book.NewService(fixture.repository, failingGenerator{}, fixture.store, lock.NewKeyedMutex(),
		slog.New(slog.NewTextHandler(io.Discard, nil)), book.Options{MaxPages: 50})

	title := "Renamed"
	_, err = broken.UpdateBook(ctx, owner, created.ID, &book.UpdateBookRequest{
		Title:      &title,
		CoverImage: book.NewUpload("new.png", pngBytes),
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeGenerationFailed))

	stored, err := fixture.repository.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Demo", stored.Title)
	assert.Equal(t, created.Version, stored.Version)
	assert.ElementsMatch(t, before, fixture.files(t))
}

/*
TestNewService_DefaultMaxPages verifies an unset page limit falls back to the default.
*/
func TestNewService_DefaultMaxPages(t *testing.T) {
	fixture := newFixture(t)
	generator := ebook.NewGenerator(ebook.NewSanitizer(nil), ebook.DefaultLanguage, ebook.Watermark{Image: pngBytes})

	service := book.NewService(fixture.repository, generator, fixture.store, lock.NewKeyedMutex(),
		slog.New(slog.NewTextHandler(io.Discard, nil)), book.Options{})

	created, err := service.CreateBook(context.Background(), owner, createRequest())
	require.NoError(t, err)
	assert.Equal(t, book.GenerationReady, created.GenerationStatus)

	pages := make([]book.Page, constants.DefaultBookMaxPages+1)
	for index := range pages {
		pages[index] = book.Page{Name: "P", Content: "<p>x</p>"}
	}
	_, err = service.UpdateBook(context.Background(), owner, created.ID, &book.UpdateBookRequest{Pages: &pages})
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}

// # Upload

/*
TestService_UploadBook verifies uploads skip generation until pages arrive.
*/
func TestService_UploadBook(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	archive, err := ebook.NewBuilder(ebook.Options{}).Build(ebook.Manuscript{ID: "external", Title: "External", Author: "Someone"})
	require.NoError(t, err)

	uploaded, err := fixture.service.UploadBook(ctx, owner, &book.UploadBookRequest{
		Title:    "External",
		Author:   "Someone",
		BookFile: book.NewUpload("external.epub", archive),
	})
	require.NoError(t, err)

	assert.Equal(t, book.TypeUploaded, uploaded.BookType)
	assert.Equal(t, book.GenerationNone, uploaded.GenerationStatus)
	assert.Nil(t, uploaded.WatermarkFile)
	require.NotNil(t, uploaded.EbookFile)
	assert.True(t, strings.HasSuffix(*uploaded.EbookFile, ".epub"))
	original := *uploaded.EbookFile

	t.Run("Metadata only", func(t *testing.T) {
		title := "Retitled"
		updated, err := fixture.service.UpdateBook(ctx, owner, uploaded.ID, &book.UpdateBookRequest{Title: &title})
		require.NoError(t, err)

		assert.Equal(t, book.TypeUploaded, updated.BookType)
		assert.Equal(t, original, *updated.EbookFile)
		assert.Nil(t, updated.WatermarkFile)

		_, _, err = fixture.service.OpenWatermarked(ctx, owner, uploaded.ID)
		assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
	})

	t.Run("Pages convert to created", func(t *testing.T) {
		pages := []book.Page{{Name: "New", Content: "<p>Rewritten</p>"}}
		updated, err := fixture.service.UpdateBook(ctx, owner, uploaded.ID, &book.UpdateBookRequest{Pages: &pages})
		require.NoError(t, err)

		assert.Equal(t, book.TypeCreated, updated.BookType)
		assert.Equal(t, book.GenerationReady, updated.GenerationStatus)
		assert.Equal(t, "/uploads/"+uploaded.ID+".epub", *updated.EbookFile)
		require.NotNil(t, updated.WatermarkFile)
		assert.False(t, fixture.exists(original))
	})

	t.Run("Rejects non-EPUB", func(t *testing.T) {
		_, err := fixture.service.UploadBook(ctx, owner, &book.UploadBookRequest{
			Title:    "Fake",
			Author:   "Someone",
			BookFile: book.NewUpload("fake.epub", []byte("not a zip")),
		})
		assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
	})
}

// # Access

/*
TestService_Visibility verifies private books are hidden and mutations are owner-only.
*/
func TestService_Visibility(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	request := createRequest()
	request.IsPrivate = true
	created, err := fixture.service.CreateBook(ctx, owner, request)
	require.NoError(t, err)

	t.Run("Private reads", func(t *testing.T) {
		tests := []struct {
			name    string
			actor   *sec.AuthClaims
			visible bool
		}{
			{"Owner", owner, true},
			{"Admin", admin, true},
			{"Other user", reader, false},
			{"Anonymous", nil, false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := fixture.service.GetBook(ctx, tt.actor, created.ID)
				if tt.visible {
					assert.NoError(t, err)
				} else {
					assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
				}

				_, object, err := fixture.service.OpenEbook(ctx, tt.actor, created.ID)
				if tt.visible {
					require.NoError(t, err)
					object.Reader.Close()
				} else {
					assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
				}
			})
		}
	})

	t.Run("Toggle", func(t *testing.T) {
		_, err := fixture.service.ToggleVisibility(ctx, reader, created.ID)
		assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

		toggled, err := fixture.service.ToggleVisibility(ctx, owner, created.ID)
		require.NoError(t, err)
		assert.False(t, toggled.IsPrivate)

		_, err = fixture.service.GetBook(ctx, nil, created.ID)
		assert.NoError(t, err)
	})

	t.Run("Public but not owned", func(t *testing.T) {
		title := "Hijacked"
		_, err := fixture.service.UpdateBook(ctx, reader, created.ID, &book.UpdateBookRequest{Title: &title})
		assert.True(t, apperr.HasCode(err, apperr.CodeForbidden))

		err = fixture.service.DeleteBook(ctx, reader, created.ID)
		assert.True(t, apperr.HasCode(err, apperr.CodeForbidden))
	})

	t.Run("Admin may update", func(t *testing.T) {
		title := "Moderated"
		updated, err := fixture.service.UpdateBook(ctx, admin, created.ID, &book.UpdateBookRequest{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, owner.UserID, updated.OwnerID)
	})
}

// # Content & Delete

/*
TestService_OpenEbook_Missing verifies a dangling reference reads as NotFound.
*/
func TestService_OpenEbook_Missing(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	created, err := fixture.service.CreateBook(ctx, owner, createRequest())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(fixture.root, created.ID+".epub")))

	_, _, err = fixture.service.OpenEbook(ctx, owner, created.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

/*
TestService_DeleteBook verifies the record and every artifact are removed.
*/
func TestService_DeleteBook(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	request := createRequest()
	request.VideoItems = []book.MediaItem{{Title: "Clip"}}
	request.VideoFiles = []*book.Upload{book.NewUpload("clip.mp4", mp4Bytes)}

	created, err := fixture.service.CreateBook(ctx, owner, request)
	require.NoError(t, err)
	assert.Len(t, fixture.files(t), 5)

	require.NoError(t, fixture.service.DeleteBook(ctx, owner, created.ID))

	assert.Zero(t, fixture.repository.count())
	assert.Empty(t, fixture.files(t))

	err = fixture.service.DeleteBook(ctx, owner, created.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

/*
TestService_ListBooks verifies filters reach the repository.
*/
func TestService_ListBooks(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	public := createRequest()
	_, err := fixture.service.CreateBook(ctx, owner, public)
	require.NoError(t, err)

	hidden := createRequest()
	hidden.IsPrivate = true
	_, err = fixture.service.CreateBook(ctx, owner, hidden)
	require.NoError(t, err)

	books, total, err := fixture.service.ListBooks(ctx, book.Filter{PublicOnly: true}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, books, 1)

	_, total, err = fixture.service.ListBooks(ctx, book.Filter{OwnerID: owner.UserID}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
