// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package book

import "context"

// # Book Data Access

// Repository defines the data access contract for book records.
type Repository interface {

	/*
		Create persists a new book.

		Parameters:
		  - context: context.Context
		  - book: *Book (ID assigned by the caller; timestamps and version filled in)

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, book *Book) error

	/*
		FindByID retrieves a book by its UUID.

		Returns:
		  - *Book: Hydrated entity
		  - error: NotFound if missing
	*/
	FindByID(context context.Context, id string) (*Book, error)

	/*
		List returns a filtered page of books, newest first, and the total count.

		Parameters:
		  - context: context.Context
		  - filter: Filter
		  - limit, offset: int

		Returns:
		  - []*Book: Matching books
		  - int: Total matching count
		  - error: Retrieval failures
	*/
	List(context context.Context, filter Filter, limit, offset int) ([]*Book, int, error)

	/*
		Update overwrites every mutable field when the stored version equals
		expectedVersion, then increments the version.

		Returns:
		  - error: Conflict on version mismatch, NotFound if missing
	*/
	Update(context context.Context, book *Book, expectedVersion int) error

	/*
		SetGenerationStatus records the generation outcome without touching the version.

		Returns:
		  - error: NotFound if missing
	*/
	SetGenerationStatus(context context.Context, id string, status GenerationStatus) error

	/*
		Delete hard-deletes a book record.

		Returns:
		  - error: NotFound if missing
	*/
	Delete(context context.Context, id string) error
}
