// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package book

import (
	"context"
	"errors"

	"github.com/taibuivan/folio/internal/ebook"
	"github.com/taibuivan/folio/internal/storage"
)

// # Collaborators

// Generator builds both archive variants of a book in memory.
type Generator interface {
	Generate(context context.Context, source ebook.Source) (*ebook.Bundle, error)
}

// ArtifactStore persists archives and uploaded assets.
type ArtifactStore interface {
	Stage(context context.Context, key string, data []byte) (storage.Pending, error)
	Open(context context.Context, ref string) (*storage.Object, error)
	Delete(context context.Context, ref string) error
}

// # Two-phase artifact writes

// staging collects staged artifacts of one operation so they can be
// published or rolled back together.
type staging struct {
	store   ArtifactStore
	pending []storage.Pending
}

func newStaging(store ArtifactStore) *staging {
	return &staging{store: store}
}

// add stages data under key and returns its future ref.
func (batch *staging) add(context context.Context, key string, data []byte) (string, error) {
	pending, err := batch.store.Stage(context, key, data)
	if err != nil {
		return "", err
	}
	batch.pending = append(batch.pending, pending)
	return pending.Ref(), nil
}

// commit publishes every staged artifact in order. It stops at the first
// failure and returns the refs that were already published.
func (batch *staging) commit() ([]string, error) {
	published := make([]string, 0, len(batch.pending))
	for _, pending := range batch.pending {
		if err := pending.Commit(); err != nil {
			return published, err
		}
		published = append(published, pending.Ref())
	}
	return published, nil
}

// discard removes whatever was not published. Commit leaves nothing to discard.
func (batch *staging) discard() error {
	var errs []error
	for _, pending := range batch.pending {
		errs = append(errs, pending.Discard())
	}
	return errors.Join(errs...)
}
