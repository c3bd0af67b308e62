// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package book

import (
	stdctx "context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/folio/internal/ebook"
	"github.com/taibuivan/folio/internal/platform/apperr"
	"github.com/taibuivan/folio/internal/platform/constants"
	"github.com/taibuivan/folio/internal/platform/lock"
	"github.com/taibuivan/folio/internal/platform/sec"
	"github.com/taibuivan/folio/internal/platform/validate"
	"github.com/taibuivan/folio/internal/storage"
	"github.com/taibuivan/folio/pkg/uuid"
)

// # Service Layer

// Options bounds the work a single request may ask for.
type Options struct {
	// MaxPages caps the page count validated before generation.
	MaxPages int

	// LockWait is how long a mutation waits for the per-book lock.
	LockWait time.Duration
}

// Service orchestrates book records, ebook generation and artifact storage.
type Service struct {
	repository Repository
	generator  Generator
	store      ArtifactStore
	locker     lock.Locker
	logger     *slog.Logger
	options    Options
	clock      func() time.Time
}

// NewService constructs a new book [Service].
func NewService(repository Repository, generator Generator, store ArtifactStore, locker lock.Locker, logger *slog.Logger, options Options) *Service {
	if options.LockWait <= 0 {
		options.LockWait = 30 * time.Second
	}
	if options.MaxPages <= 0 {
		options.MaxPages = constants.DefaultBookMaxPages
	}

	return &Service{
		repository: repository,
		generator:  generator,
		store:      store,
		locker:     locker,
		logger:     logger,
		options:    options,
		clock:      time.Now,
	}
}

// # Access Rules

// canManage reports whether actor may mutate book.
func canManage(actor *sec.AuthClaims, book *Book) bool {
	return actor != nil && (actor.IsAdmin() || actor.UserID == book.OwnerID)
}

// canView reports whether actor may see book. Private books are hidden
// from everyone but their owner and admins.
func canView(actor *sec.AuthClaims, book *Book) bool {
	return !book.IsPrivate || canManage(actor, book)
}

// findManaged loads a book the actor is allowed to mutate.
func (service *Service) findManaged(context stdctx.Context, actor *sec.AuthClaims, id string) (*Book, error) {
	if !uuid.Valid(id) {
		return nil, apperr.NotFound(resourceBook)
	}

	book, err := service.repository.FindByID(context, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, book) {
		return nil, apperr.NotFound(resourceBook)
	}
	if !canManage(actor, book) {
		return nil, apperr.Forbidden("Only the owner or an admin can modify this book")
	}
	return book, nil
}

// # Queries

/*
GetBook retrieves a book visible to actor.

Parameters:
  - context: context.Context
  - actor: *sec.AuthClaims (nil for anonymous callers)
  - id: string

Returns:
  - *Book: Hydrated entity
  - error: NotFound if missing or hidden
*/
func (service *Service) GetBook(context stdctx.Context, actor *sec.AuthClaims, id string) (*Book, error) {
	if !uuid.Valid(id) {
		return nil, apperr.NotFound(resourceBook)
	}

	book, err := service.repository.FindByID(context, id)
	if err != nil {
		return nil, err
	}

	if !canView(actor, book) {
		return nil, apperr.NotFound(resourceBook)
	}

	return book, nil
}

/*
ListBooks retrieves a page of books matching filter.

Returns:
  - []*Book: Books, newest first
  - int: Total matching count
  - error: Retrieval errors
*/
func (service *Service) ListBooks(context stdctx.Context, filter Filter, limit, offset int) ([]*Book, int, error) {
	return service.repository.List(context, filter, limit, offset)
}

/*
OpenEbook opens the plain archive of a book visible to actor.

Description: A recorded reference whose file is gone is an inconsistency
between the record and the store; it is logged and reported as NotFound.

Returns:
  - *Book: The book (for download naming)
  - *storage.Object: Seekable archive stream; the caller closes it
  - error: NotFound, or STORAGE_ERROR on read failures
*/
func (service *Service) OpenEbook(context stdctx.Context, actor *sec.AuthClaims, id string) (*Book, *storage.Object, error) {
	return service.openArchive(context, actor, id, "Ebook", func(book *Book) *string { return book.EbookFile })
}

// OpenWatermarked is [Service.OpenEbook] for the watermarked archive.
// Uploaded books have none.
func (service *Service) OpenWatermarked(context stdctx.Context, actor *sec.AuthClaims, id string) (*Book, *storage.Object, error) {
	return service.openArchive(context, actor, id, "Watermarked ebook", func(book *Book) *string { return book.WatermarkFile })
}

func (service *Service) openArchive(context stdctx.Context, actor *sec.AuthClaims, id, resource string, pick func(*Book) *string) (*Book, *storage.Object, error) {
	book, err := service.GetBook(context, actor, id)
	if err != nil {
		return nil, nil, err
	}

	ref := pick(book)
	if ref == nil || *ref == "" {
		return nil, nil, apperr.NotFound(resource)
	}

	object, err := service.store.Open(context, *ref)
	if errors.Is(err, storage.ErrNotExist) {
		service.logger.Error("artifact_missing",
			slog.String("book_id", book.ID),
			slog.String("ref", *ref),
		)
		return nil, nil, apperr.NotFound(resource)
	}
	if err != nil {
		return nil, nil, apperr.Storage(err)
	}

	return book, object, nil
}

// # Create & Upload

/*
CreateBook validates, generates and persists a new book.

Description: Both archives are built in memory first. Nothing is written
when generation fails. Uploaded assets are published before the record is
inserted and archives after it; any later failure removes what was written.

Parameters:
  - context: context.Context
  - actor: *sec.AuthClaims (the owner)
  - request: *CreateBookRequest

Returns:
  - *Book: The persisted book with both archive references
  - error: VALIDATION_ERROR, GENERATION_FAILED or STORAGE_ERROR
*/
func (service *Service) CreateBook(context stdctx.Context, actor *sec.AuthClaims, request *CreateBookRequest) (*Book, error) {
	if actor == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	if err := request.Validate(service.options.MaxPages); err != nil {
		return nil, err
	}

	book := &Book{
		ID:               uuid.New(),
		OwnerID:          actor.UserID,
		Title:            strings.TrimSpace(request.Title),
		Author:           strings.TrimSpace(request.Author),
		Pages:            nonNil(request.Pages),
		AudioItems:       nonNil(request.AudioItems),
		VideoItems:       nonNil(request.VideoItems),
		YoutubeItems:     nonNil(request.YoutubeItems),
		BookType:         TypeCreated,
		IsPrivate:        request.IsPrivate,
		GenerationStatus: GenerationReady,
	}

	// Step 1: Build both archives in memory
	bundle, err := service.generate(context, book)
	if err != nil {
		return nil, err
	}

	// Step 2: Stage every artifact
	assets := newStaging(service.store)
	archives := newStaging(service.store)

	if err := service.stageAssets(context, assets, book, request.CoverImage, request.AudioFiles, request.VideoFiles); err != nil {
		service.discard(assets, archives)
		return nil, apperr.Storage(err)
	}
	if err := service.stageArchives(context, archives, book, bundle); err != nil {
		service.discard(assets, archives)
		return nil, apperr.Storage(err)
	}

	// Step 3: Publish assets, insert the record, publish archives
	publishedAssets, err := service.publishAssets(context, assets, archives)
	if err != nil {
		return nil, err
	}

	if err := service.repository.Create(context, book); err != nil {
		service.discard(archives)
		service.deleteRefs(context, book.ID, publishedAssets)
		return nil, err
	}

	if publishedArchives, err := archives.commit(); err != nil {
		service.logger.Error("artifact_publish_failed",
			slog.String("book_id", book.ID),
			slog.Any("error", err),
		)
		service.discard(archives)

		if deleteErr := service.repository.Delete(context, book.ID); deleteErr != nil {
			service.logger.Error("book_rollback_failed", slog.String("book_id", book.ID), slog.Any("error", deleteErr))
		}
		service.deleteRefs(context, book.ID, append(publishedAssets, publishedArchives...))
		return nil, apperr.Storage(err)
	}

	service.logger.Info("book_created",
		slog.String("book_id", book.ID),
		slog.String("owner_id", book.OwnerID),
		slog.Int("pages", len(book.Pages)),
	)

	return book, nil
}

/*
UploadBook stores a ready-made EPUB. Generation is skipped.

Returns:
  - *Book: The persisted book of type uploaded
  - error: VALIDATION_ERROR or STORAGE_ERROR
*/
func (service *Service) UploadBook(context stdctx.Context, actor *sec.AuthClaims, request *UploadBookRequest) (*Book, error) {
	if actor == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	if err := request.Validate(); err != nil {
		return nil, err
	}

	book := &Book{
		ID:               uuid.New(),
		OwnerID:          actor.UserID,
		Title:            strings.TrimSpace(request.Title),
		Author:           strings.TrimSpace(request.Author),
		Pages:            []Page{},
		AudioItems:       []MediaItem{},
		VideoItems:       []MediaItem{},
		YoutubeItems:     []YoutubeItem{},
		BookType:         TypeUploaded,
		IsPrivate:        request.IsPrivate,
		GenerationStatus: GenerationNone,
	}

	assets := newStaging(service.store)

	ebookRef, err := assets.add(context, assetKey(request.BookFile), request.BookFile.Data)
	if err != nil {
		service.discard(assets)
		return nil, apperr.Storage(err)
	}
	book.EbookFile = &ebookRef

	if err := service.stageAssets(context, assets, book, request.CoverImage, nil, nil); err != nil {
		service.discard(assets)
		return nil, apperr.Storage(err)
	}

	published, err := service.publishAssets(context, assets)
	if err != nil {
		return nil, err
	}

	if err := service.repository.Create(context, book); err != nil {
		service.deleteRefs(context, book.ID, published)
		return nil, err
	}

	service.logger.Info("book_uploaded",
		slog.String("book_id", book.ID),
		slog.String("owner_id", book.OwnerID),
	)

	return book, nil
}

// # Update

/*
UpdateBook replaces the supplied fields and regenerates both archives.

Description: Runs under the per-book lock and a versioned write. Created
books, and uploaded books receiving pages, are fully regenerated. Replaced
covers, dropped media and a superseded uploaded archive are deleted only
after everything else succeeded.

Parameters:
  - context: context.Context
  - actor: *sec.AuthClaims
  - id: string
  - request: *UpdateBookRequest

Returns:
  - *Book: The updated book
  - error: VALIDATION_ERROR, CONFLICT, GENERATION_FAILED or STORAGE_ERROR
*/
func (service *Service) UpdateBook(context stdctx.Context, actor *sec.AuthClaims, id string, request *UpdateBookRequest) (*Book, error) {
	if actor == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	if err := request.Validate(service.options.MaxPages); err != nil {
		return nil, err
	}

	release, err := service.acquire(context, id)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := service.findManaged(context, actor, id)
	if err != nil {
		return nil, err
	}

	if request.Version != nil && *request.Version != current.Version {
		return nil, apperr.Conflict("Book was modified by another request; reload and retry")
	}

	if err := checkRetainedMedia(current, request); err != nil {
		return nil, err
	}

	next := *current
	var obsolete []string

	if request.Title != nil {
		next.Title = strings.TrimSpace(*request.Title)
	}
	if request.Author != nil {
		next.Author = strings.TrimSpace(*request.Author)
	}
	if request.YoutubeItems != nil {
		next.YoutubeItems = nonNil(*request.YoutubeItems)
	}
	if request.Pages != nil {
		next.Pages = nonNil(*request.Pages)

		if current.BookType == TypeUploaded {
			next.BookType = TypeCreated
			if current.EbookFile != nil {
				obsolete = append(obsolete, *current.EbookFile)
			}
		}
	}

	regenerate := next.BookType == TypeCreated

	// Step 1: Build both archives in memory
	var bundle *ebook.Bundle
	if regenerate {
		if bundle, err = service.generate(context, &next); err != nil {
			return nil, err
		}
	}

	// Step 2: Stage every artifact
	assets := newStaging(service.store)
	archives := newStaging(service.store)

	if request.AudioItems != nil {
		next.AudioItems = nonNil(*request.AudioItems)
	}
	if request.VideoItems != nil {
		next.VideoItems = nonNil(*request.VideoItems)
	}

	if err := service.stageAssets(context, assets, &next, request.CoverImage, request.AudioFiles, request.VideoFiles); err != nil {
		service.discard(assets, archives)
		return nil, apperr.Storage(err)
	}

	if request.CoverImage != nil && current.CoverImage != nil {
		obsolete = append(obsolete, *current.CoverImage)
	}
	obsolete = append(obsolete, removedRefs(current.AudioItems, next.AudioItems)...)
	obsolete = append(obsolete, removedRefs(current.VideoItems, next.VideoItems)...)

	if regenerate {
		if err := service.stageArchives(context, archives, &next, bundle); err != nil {
			service.discard(assets, archives)
			return nil, apperr.Storage(err)
		}
		next.GenerationStatus = GenerationReady
	}

	// Step 3: Publish assets, write the record, publish archives
	publishedAssets, err := service.publishAssets(context, assets, archives)
	if err != nil {
		return nil, err
	}

	if err := service.repository.Update(context, &next, current.Version); err != nil {
		service.discard(archives)
		service.deleteRefs(context, id, publishedAssets)
		return nil, err
	}

	if publishedArchives, err := archives.commit(); err != nil {
		service.logger.Error("artifact_publish_failed",
			slog.String("book_id", id),
			slog.Any("error", err),
		)
		service.discard(archives)

		// A converted upload still has its original archive on disk: point the
		// record back at it and drop everything this update published.
		if current.BookType == TypeUploaded && next.BookType == TypeCreated {
			restored := *current
			restored.GenerationStatus = GenerationFailed
			restoreErr := service.repository.Update(context, &restored, next.Version)
			if restoreErr == nil {
				service.deleteRefs(context, id, append(publishedAssets, publishedArchives...))
				return nil, apperr.Storage(err)
			}
			service.logger.Error("book_rollback_failed", slog.String("book_id", id), slog.Any("error", restoreErr))
		}

		if statusErr := service.repository.SetGenerationStatus(context, id, GenerationFailed); statusErr != nil {
			service.logger.Error("generation_status_update_failed", slog.String("book_id", id), slog.Any("error", statusErr))
		}
		return nil, apperr.Storage(err)
	}

	// Step 4: Remove what the new record no longer references
	service.deleteRefs(context, id, obsolete)

	service.logger.Info("book_updated",
		slog.String("book_id", id),
		slog.Int("version", next.Version),
		slog.Bool("regenerated", regenerate),
	)

	return &next, nil
}

/*
ToggleVisibility flips a book between private and public.

Returns:
  - *Book: The updated book
  - error: NotFound, Forbidden or Conflict
*/
func (service *Service) ToggleVisibility(context stdctx.Context, actor *sec.AuthClaims, id string) (*Book, error) {
	if actor == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	release, err := service.acquire(context, id)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := service.findManaged(context, actor, id)
	if err != nil {
		return nil, err
	}

	next := *current
	next.IsPrivate = !current.IsPrivate

	if err := service.repository.Update(context, &next, current.Version); err != nil {
		return nil, err
	}

	service.logger.Info("book_visibility_changed",
		slog.String("book_id", id),
		slog.Bool("is_private", next.IsPrivate),
	)

	return &next, nil
}

// # Delete

/*
DeleteBook removes the record and then every artifact it references.

Description: The record goes first so a reader never follows a reference
to a file that is being removed.

Returns:
  - error: NotFound or Forbidden
*/
func (service *Service) DeleteBook(context stdctx.Context, actor *sec.AuthClaims, id string) error {
	if actor == nil {
		return apperr.Unauthorized("Authentication required")
	}

	release, err := service.acquire(context, id)
	if err != nil {
		return err
	}
	defer release()

	current, err := service.findManaged(context, actor, id)
	if err != nil {
		return err
	}

	if err := service.repository.Delete(context, id); err != nil {
		return err
	}

	service.deleteRefs(context, id, current.artifactRefs())

	service.logger.Info("book_deleted",
		slog.String("book_id", id),
		slog.String("actor_id", actor.UserID),
	)

	return nil
}

// # Internals

// acquire takes the per-book lock, waiting at most LockWait.
func (service *Service) acquire(context stdctx.Context, id string) (func(), error) {
	waitContext, cancel := stdctx.WithTimeout(context, service.options.LockWait)
	defer cancel()

	release, err := service.locker.Acquire(waitContext, id)
	if err != nil {
		if context.Err() != nil {
			return nil, context.Err()
		}
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperr.Conflict("Book is being modified by another request; retry shortly")
		}
		return nil, apperr.Internal(err)
	}

	service.logger.Debug("lock_acquired", slog.String("book_id", id))
	return release, nil
}

// generate builds both archives for book. Build errors become GENERATION_FAILED.
func (service *Service) generate(context stdctx.Context, book *Book) (*ebook.Bundle, error) {
	pages := make([]ebook.Page, len(book.Pages))
	for index, page := range book.Pages {
		pages[index] = ebook.Page{Name: page.Name, Content: page.Content}
	}

	started := service.clock()
	bundle, err := service.generator.Generate(context, ebook.Source{
		ID:       book.ID,
		Title:    book.Title,
		Author:   book.Author,
		Modified: started.UTC().Truncate(time.Second),
		Pages:    pages,
	})
	if err != nil {
		if errors.Is(err, ebook.ErrBuild) {
			service.logger.Warn("ebook_generation_failed",
				slog.String("book_id", book.ID),
				slog.Any("error", err),
			)
			return nil, apperr.GenerationFailed(err)
		}
		return nil, err
	}

	service.logger.Info("ebook_generated",
		slog.String("book_id", book.ID),
		slog.Int("plain_bytes", len(bundle.Plain)),
		slog.Int("watermarked_bytes", len(bundle.Watermarked)),
		slog.Duration("elapsed", time.Since(started)),
	)

	return bundle, nil
}

func ebookKey(id string) string {
	return id + constants.EbookSuffix
}

func watermarkKey(id string) string {
	return id + constants.WatermarkSuffix
}

// assetKey names an uploaded file by a fresh id, never by its client name.
func assetKey(upload *Upload) string {
	return uuid.New() + upload.Extension()
}

// stageArchives stages both variants and points book at them.
func (service *Service) stageArchives(context stdctx.Context, batch *staging, book *Book, bundle *ebook.Bundle) error {
	plainRef, err := batch.add(context, ebookKey(book.ID), bundle.Plain)
	if err != nil {
		return err
	}

	watermarkRef, err := batch.add(context, watermarkKey(book.ID), bundle.Watermarked)
	if err != nil {
		return err
	}

	book.EbookFile = &plainRef
	book.WatermarkFile = &watermarkRef
	return nil
}

// stageAssets stages the cover and media uploads and points book at them.
func (service *Service) stageAssets(context stdctx.Context, batch *staging, book *Book, cover *Upload, audioFiles, videoFiles []*Upload) error {
	if cover != nil {
		ref, err := batch.add(context, assetKey(cover), cover.Data)
		if err != nil {
			return err
		}
		book.CoverImage = &ref
	}

	var err error
	if book.AudioItems, err = attachMedia(context, batch, book.AudioItems, audioFiles); err != nil {
		return err
	}
	if book.VideoItems, err = attachMedia(context, batch, book.VideoItems, videoFiles); err != nil {
		return err
	}
	return nil
}

// attachMedia pairs files, in order, with the items whose file_url is empty.
func attachMedia(context stdctx.Context, batch *staging, items []MediaItem, files []*Upload) ([]MediaItem, error) {
	if len(files) == 0 {
		return items, nil
	}

	attached := make([]MediaItem, len(items))
	next := 0

	for index, item := range items {
		attached[index] = item
		if item.FileURL != "" || next >= len(files) {
			continue
		}

		ref, err := batch.add(context, assetKey(files[next]), files[next].Data)
		if err != nil {
			return nil, err
		}
		attached[index].FileURL = ref
		next++
	}

	return attached, nil
}

// publishAssets commits fresh-key assets. On failure every staged file of
// the given batches is discarded and published assets are deleted.
func (service *Service) publishAssets(context stdctx.Context, assets *staging, others ...*staging) ([]string, error) {
	published, err := assets.commit()
	if err == nil {
		return published, nil
	}

	service.logger.Error("artifact_publish_failed", slog.Any("error", err))
	service.discard(append([]*staging{assets}, others...)...)
	service.deleteRefs(context, "", published)
	return nil, apperr.Storage(err)
}

func (service *Service) discard(batches ...*staging) {
	for _, batch := range batches {
		if err := batch.discard(); err != nil {
			service.logger.Warn("artifact_discard_failed", slog.Any("error", err))
		}
	}
}

// deleteRefs removes artifacts best-effort; failures leave orphans, not
// dangling references, so they are only logged.
func (service *Service) deleteRefs(context stdctx.Context, id string, refs []string) {
	for _, ref := range refs {
		if err := service.store.Delete(stdctx.WithoutCancel(context), ref); err != nil {
			service.logger.Warn("artifact_delete_failed",
				slog.String("book_id", id),
				slog.String("ref", ref),
				slog.Any("error", err),
			)
		}
	}
}

// checkRetainedMedia rejects items that claim a file the book does not own.
func checkRetainedMedia(current *Book, request *UpdateBookRequest) error {
	check := func(field string, owned []MediaItem, requested *[]MediaItem) error {
		if requested == nil {
			return nil
		}

		refs := make(map[string]bool, len(owned))
		for _, ref := range mediaRefs(owned) {
			refs[ref] = true
		}

		for index, item := range *requested {
			if item.FileURL != "" && !refs[item.FileURL] {
				return validate.FieldError(itemField(field, index, "file_url"), "Must reference one of this book's existing files")
			}
		}
		return nil
	}

	if err := check(FieldAudioItems, current.AudioItems, request.AudioItems); err != nil {
		return err
	}
	return check(FieldVideoItems, current.VideoItems, request.VideoItems)
}

// removedRefs returns the refs of before that after no longer references.
func removedRefs(before, after []MediaItem) []string {
	kept := make(map[string]bool, len(after))
	for _, ref := range mediaRefs(after) {
		kept[ref] = true
	}

	var removed []string
	for _, ref := range mediaRefs(before) {
		if !kept[ref] {
			removed = append(removed, ref)
		}
	}
	return removed
}
