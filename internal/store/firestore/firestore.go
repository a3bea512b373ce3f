// Package firestore implements the document store on Cloud Firestore,
// the hosted backend the production deployment runs against.
package firestore

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/crtiers/crtiers/internal/store"
)

// Store adapts a firestore.Client to the store.Store interface.
type Store struct {
	client *firestore.Client
}

// New connects to Firestore. When FIRESTORE_EMULATOR_HOST is set the
// client talks to the emulator without credentials.
func New(ctx context.Context, projectID string) (*Store, error) {
	var client *firestore.Client
	var err error

	if os.Getenv("FIRESTORE_EMULATOR_HOST") != "" {
		client, err = firestore.NewClient(ctx, projectID, option.WithoutAuthentication())
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Get fetches one document by id.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Doc, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return store.Doc{}, store.ErrDocNotFound
		}
		return store.Doc{}, fmt.Errorf("getting document: %w", err)
	}
	return store.Doc{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

// List returns every document in the collection.
func (s *Store) List(ctx context.Context, collection string) ([]store.Doc, error) {
	snaps, err := s.client.Collection(collection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return toDocs(snaps), nil
}

// Query returns documents matching all conditions.
func (s *Store) Query(ctx context.Context, collection string, conds ...store.Cond) ([]store.Doc, error) {
	q := s.client.Collection(collection).Query
	for _, cond := range conds {
		q = q.Where(cond.Field, string(cond.Op), cond.Value)
	}
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	return toDocs(snaps), nil
}

// Count returns the number of documents matching all conditions.
func (s *Store) Count(ctx context.Context, collection string, conds ...store.Cond) (int64, error) {
	docs, err := s.Query(ctx, collection, conds...)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// OrderByLimit returns up to n documents ordered by field.
func (s *Store) OrderByLimit(ctx context.Context, collection, field string, descending bool, n int) ([]store.Doc, error) {
	direction := firestore.Asc
	if descending {
		direction = firestore.Desc
	}
	snaps, err := s.client.Collection(collection).OrderBy(field, direction).Limit(n).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("ordered query: %w", err)
	}
	return toDocs(snaps), nil
}

// Add inserts a document and returns its store-assigned id.
func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("adding document: %w", err)
	}
	return ref.ID, nil
}

// UpdateFields applies a path-scoped partial update. Dot-separated keys
// address nested map fields without overwriting siblings.
func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, toUpdates(fields))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return store.ErrDocNotFound
		}
		return fmt.Errorf("updating document: %w", err)
	}
	return nil
}

// UpdateFieldsIf applies the update transactionally, only while the
// document's versionField still holds the expected value.
func (s *Store) UpdateFieldsIf(ctx context.Context, collection, id string, fields map[string]any, versionField string, expected int64) error {
	ref := s.client.Collection(collection).Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return store.ErrDocNotFound
			}
			return err
		}
		current, err := snap.DataAt(versionField)
		if err != nil {
			return store.ErrPreconditionFailed
		}
		if store.AsInt64(current) != expected {
			return store.ErrPreconditionFailed
		}
		return tx.Update(ref, toUpdates(fields))
	})
	if err == store.ErrDocNotFound || err == store.ErrPreconditionFailed {
		return err
	}
	if err != nil {
		return fmt.Errorf("conditional update: %w", err)
	}
	return nil
}

// Delete removes a document; Firestore deletes are idempotent.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

func toUpdates(fields map[string]any) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	return updates
}

func toDocs(snaps []*firestore.DocumentSnapshot) []store.Doc {
	docs := make([]store.Doc, len(snaps))
	for i, snap := range snaps {
		docs[i] = store.Doc{ID: snap.Ref.ID, Data: snap.Data()}
	}
	return docs
}
