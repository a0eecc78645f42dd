// Viewguard - Learning Engagement Tracking and Progress Core
// Copyright 2026 Viewguard contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/viewguard/viewguard

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/viewguard/viewguard/internal/models"
)

const progressKeyPrefix = "progress:"

// documentFields are the keys the progress document owns. Anything else
// found in a stored value is foreign state and survives saves verbatim.
var documentFields = map[string]struct{}{
	"userId":     {},
	"courseId":   {},
	"courseName": {},
	"units":      {},
	"updatedAt":  {},
}

// BadgerStore implements ProgressStore on BadgerDB for durable storage
// across restarts.
type BadgerStore struct {
	db      *badger.DB
	ownsDB  bool
	nowFunc func() time.Time
}

// OpenBadger opens (or creates) a BadgerDB at path and returns a store
// that owns the database handle.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &BadgerStore{db: db, ownsDB: true, nowFunc: time.Now}, nil
}

// NewBadgerStore wraps an existing BadgerDB handle. The caller retains
// ownership of the handle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, nowFunc: time.Now}
}

// Load retrieves the document for (userID, courseID).
func (s *BadgerStore) Load(ctx context.Context, userID, courseID string) (*models.ProgressDocument, error) {
	key := []byte(progressKeyPrefix + models.DocumentKey(userID, courseID))

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get progress: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return decodeDocument(raw)
}

// Save upserts the document, merging over any foreign fields already
// present in the stored value.
func (s *BadgerStore) Save(ctx context.Context, doc *models.ProgressDocument) error {
	if doc.UserID == "" || doc.CourseID == "" {
		return errors.New("store: document missing identity")
	}
	doc.UpdatedAt = s.nowFunc()

	key := []byte(progressKeyPrefix + models.DocumentKey(doc.UserID, doc.CourseID))

	return s.db.Update(func(txn *badger.Txn) error {
		merged := map[string]any{}

		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// First save for this identity.
		case err != nil:
			return fmt.Errorf("get existing progress: %w", err)
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &merged)
			}); err != nil {
				return fmt.Errorf("unmarshal existing progress: %w", err)
			}
		}

		// Foreign fields carried on the document from Load. Disk state
		// wins for keys written out-of-band since that load.
		for k, v := range doc.Extra {
			if _, exists := merged[k]; !exists {
				merged[k] = v
			}
		}

		own, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal progress: %w", err)
		}
		var ownMap map[string]any
		if err := json.Unmarshal(own, &ownMap); err != nil {
			return fmt.Errorf("remarshal progress: %w", err)
		}
		for k, v := range ownMap {
			merged[k] = v
		}

		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("marshal merged progress: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set progress: %w", err)
		}
		return nil
	})
}

// Close closes the underlying database when this store owns it.
func (s *BadgerStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// decodeDocument splits a stored value into the typed document plus its
// foreign fields.
func decodeDocument(raw []byte) (*models.ProgressDocument, error) {
	var doc models.ProgressDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}

	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("unmarshal progress fields: %w", err)
	}
	for k := range all {
		if _, owned := documentFields[k]; owned {
			delete(all, k)
		}
	}
	if len(all) > 0 {
		doc.Extra = all
	}
	return &doc, nil
}
