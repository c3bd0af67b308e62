// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package book

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/folio/internal/platform/apperr"
	"github.com/taibuivan/folio/internal/platform/database/schema"
	"github.com/taibuivan/folio/internal/platform/dberr"
)

const resourceBook = "Book"

// PostgresRepository implements [Repository] using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs a PostgreSQL backed book store.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// # JSONB Columns

// documents holds the encoded JSONB columns of a book.
type documents struct {
	pages, audio, video, youtube []byte
}

func encodeDocuments(book *Book) (*documents, error) {
	var err error
	encoded := &documents{}

	if encoded.pages, err = json.Marshal(nonNil(book.Pages)); err != nil {
		return nil, err
	}
	if encoded.audio, err = json.Marshal(nonNil(book.AudioItems)); err != nil {
		return nil, err
	}
	if encoded.video, err = json.Marshal(nonNil(book.VideoItems)); err != nil {
		return nil, err
	}
	if encoded.youtube, err = json.Marshal(nonNil(book.YoutubeItems)); err != nil {
		return nil, err
	}
	return encoded, nil
}

func (encoded *documents) decode(book *Book) error {
	if err := json.Unmarshal(encoded.pages, &book.Pages); err != nil {
		return err
	}
	if err := json.Unmarshal(encoded.audio, &book.AudioItems); err != nil {
		return err
	}
	if err := json.Unmarshal(encoded.video, &book.VideoItems); err != nil {
		return err
	}
	return json.Unmarshal(encoded.youtube, &book.YoutubeItems)
}

// nonNil keeps empty lists as [] rather than null in JSONB.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// # Book Retrieval

var selectColumns = strings.Join(schema.CoreBook.Columns(), ", ")

func scanBook(row pgx.Row) (*Book, error) {
	book := &Book{}
	encoded := &documents{}

	err := row.Scan(
		&book.ID, &book.OwnerID, &book.Title, &book.Author, &book.CoverImage,
		&encoded.pages, &encoded.audio, &encoded.video, &encoded.youtube,
		&book.EbookFile, &book.WatermarkFile, &book.BookType, &book.IsPrivate,
		&book.GenerationStatus, &book.Version, &book.CreatedAt, &book.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := encoded.decode(book); err != nil {
		return nil, fmt.Errorf("decode book documents: %w", err)
	}
	return book, nil
}

/*
FindByID retrieves a single book record by its primary key.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *Book: Hydrated entity
  - error: NotFound or database failures
*/
func (repository *PostgresRepository) FindByID(context context.Context, id string) (*Book, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, selectColumns, schema.CoreBook.Table, schema.CoreBook.ID)

	book, err := scanBook(repository.pool.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, resourceBook, "find book")
	}
	return book, nil
}

/*
List returns a filtered and paginated list of books.

Description: Uses COUNT(*) OVER() for total metadata in the same round trip.

Parameters:
  - context: context.Context
  - filter: Filter
  - limit: int
  - offset: int

Returns:
  - []*Book: Slice of matching books
  - int: Total record count
  - error: Database retrieval failures
*/
func (repository *PostgresRepository) List(context context.Context, filter Filter, limit, offset int) ([]*Book, int, error) {
	table := schema.CoreBook

	var queryBuilder strings.Builder
	queryBuilder.WriteString(fmt.Sprintf(`SELECT %s, COUNT(*) OVER() AS total FROM %s WHERE TRUE`, selectColumns, table.Table))

	args := []any{}
	argID := 1

	if filter.OwnerID != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND %s = $%d", table.OwnerID, argID))
		args = append(args, filter.OwnerID)
		argID++
	}

	if filter.PublicOnly {
		queryBuilder.WriteString(fmt.Sprintf(" AND %s = FALSE", table.IsPrivate))
	}

	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY %s DESC, %s DESC LIMIT $%d OFFSET $%d", table.CreatedAt, table.ID, argID, argID+1))
	args = append(args, limit, offset)

	rows, err := repository.pool.Query(context, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, resourceBook, "list books")
	}
	defer rows.Close()

	books := []*Book{}
	total := 0

	for rows.Next() {
		book := &Book{}
		encoded := &documents{}

		err := rows.Scan(
			&book.ID, &book.OwnerID, &book.Title, &book.Author, &book.CoverImage,
			&encoded.pages, &encoded.audio, &encoded.video, &encoded.youtube,
			&book.EbookFile, &book.WatermarkFile, &book.BookType, &book.IsPrivate,
			&book.GenerationStatus, &book.Version, &book.CreatedAt, &book.UpdatedAt,
			&total,
		)
		if err != nil {
			return nil, 0, dberr.Wrap(err, resourceBook, "scan book")
		}
		if err := encoded.decode(book); err != nil {
			return nil, 0, dberr.Wrap(err, resourceBook, "decode book documents")
		}
		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, resourceBook, "iterate books")
	}

	return books, total, nil
}

// # Book Mutation

/*
Create inserts a new book record.

Parameters:
  - context: context.Context
  - book: *Book

Returns:
  - error: Persistence failures
*/
func (repository *PostgresRepository) Create(context context.Context, book *Book) error {
	encoded, err := encodeDocuments(book)
	if err != nil {
		return apperr.Internal(fmt.Errorf("postgres: failed to encode book: %w", err))
	}

	table := schema.CoreBook
	query := fmt.Sprintf(`
		INSERT INTO %s (
			%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING %s, %s, %s`,
		table.Table,
		table.ID, table.OwnerID, table.Title, table.Author, table.CoverImage,
		table.Pages, table.AudioItems, table.VideoItems, table.YoutubeItems,
		table.EbookFile, table.WatermarkFile, table.BookType, table.IsPrivate, table.GenerationStatus,
		table.Version, table.CreatedAt, table.UpdatedAt,
	)

	err = repository.pool.QueryRow(context, query,
		book.ID, book.OwnerID, book.Title, book.Author, book.CoverImage,
		encoded.pages, encoded.audio, encoded.video, encoded.youtube,
		book.EbookFile, book.WatermarkFile, book.BookType, book.IsPrivate, book.GenerationStatus,
	).Scan(&book.Version, &book.CreatedAt, &book.UpdatedAt)

	return dberr.Wrap(err, resourceBook, "create book")
}

/*
Update overwrites a book guarded by its version.

Description: The WHERE clause carries the expected version. When no row
matches, a follow-up existence check distinguishes a stale version
(Conflict) from a deleted book (NotFound).

Parameters:
  - context: context.Context
  - book: *Book (Version and UpdatedAt refreshed on success)
  - expectedVersion: int

Returns:
  - error: Conflict, NotFound or persistence failures
*/
func (repository *PostgresRepository) Update(context context.Context, book *Book, expectedVersion int) error {
	encoded, err := encodeDocuments(book)
	if err != nil {
		return apperr.Internal(fmt.Errorf("postgres: failed to encode book: %w", err))
	}

	table := schema.CoreBook
	query := fmt.Sprintf(`
		UPDATE %s SET
			%s = $3, %s = $4, %s = $5, %s = $6, %s = $7, %s = $8, %s = $9,
			%s = $10, %s = $11, %s = $12, %s = $13, %s = $14,
			%s = %s + 1, %s = NOW()
		WHERE %s = $1 AND %s = $2
		RETURNING %s, %s`,
		table.Table,
		table.Title, table.Author, table.CoverImage, table.Pages, table.AudioItems, table.VideoItems, table.YoutubeItems,
		table.EbookFile, table.WatermarkFile, table.BookType, table.IsPrivate, table.GenerationStatus,
		table.Version, table.Version, table.UpdatedAt,
		table.ID, table.Version,
		table.Version, table.UpdatedAt,
	)

	err = repository.pool.QueryRow(context, query,
		book.ID, expectedVersion,
		book.Title, book.Author, book.CoverImage, encoded.pages, encoded.audio, encoded.video, encoded.youtube,
		book.EbookFile, book.WatermarkFile, book.BookType, book.IsPrivate, book.GenerationStatus,
	).Scan(&book.Version, &book.UpdatedAt)

	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return dberr.Wrap(err, resourceBook, "update book")
	}

	// No row matched: either the version moved on or the book is gone
	if _, findErr := repository.FindByID(context, book.ID); findErr != nil {
		return findErr
	}
	return apperr.Conflict("Book was modified by another request; reload and retry")
}

/*
SetGenerationStatus updates only the generation status.

Parameters:
  - context: context.Context
  - id: string
  - status: GenerationStatus

Returns:
  - error: NotFound or persistence failures
*/
func (repository *PostgresRepository) SetGenerationStatus(context context.Context, id string, status GenerationStatus) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = NOW() WHERE %s = $1`,
		schema.CoreBook.Table, schema.CoreBook.GenerationStatus, schema.CoreBook.UpdatedAt, schema.CoreBook.ID)

	tag, err := repository.pool.Exec(context, query, id, status)
	if err != nil {
		return dberr.Wrap(err, resourceBook, "set generation status")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(resourceBook)
	}
	return nil
}

/*
Delete removes a book record.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - error: NotFound or persistence failures
*/
func (repository *PostgresRepository) Delete(context context.Context, id string) error {

	// Establish Transactional Boundary
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return dberr.Wrap(err, resourceBook, "begin delete book transaction")
	}
	defer transaction.Rollback(context)

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, schema.CoreBook.Table, schema.CoreBook.ID)

	tag, err := transaction.Exec(context, query, id)
	if err != nil {
		return dberr.Wrap(err, resourceBook, "delete book")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(resourceBook)
	}

	// Persist Atomic Changeset
	if err := transaction.Commit(context); err != nil {
		return dberr.Wrap(err, resourceBook, "commit delete book")
	}
	return nil
}
