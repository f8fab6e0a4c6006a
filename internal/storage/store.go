// Package storage implements the document store on top of MongoDB.
package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"docadmin/internal/model"
)

// DocumentStore is the read/write surface the editor uses.
type DocumentStore interface {
	// Find returns every document of a collection. An absent collection yields an empty list.
	Find(ctx context.Context, collection string) ([]model.Document, error)

	// Refresh is Find without the listing cache. The fresh listing replaces the cached one.
	Refresh(ctx context.Context, collection string) ([]model.Document, error)

	// FindOne returns the document with the given identifier or ErrNotFound.
	FindOne(ctx context.Context, collection string, id interface{}) (model.Document, error)

	// FindByField returns the documents whose field equals value.
	FindByField(ctx context.Context, collection, field string, value interface{}) ([]model.Document, error)

	// Update applies a partial update and reports whether a field was modified.
	Update(ctx context.Context, collection string, id interface{}, update model.PartialUpdate) (bool, error)

	// Insert stores a new document and returns its identifier.
	Insert(ctx context.Context, collection string, doc model.Document) (interface{}, error)

	// Delete removes a document and reports whether it existed.
	Delete(ctx context.Context, collection string, id interface{}) (bool, error)

	// ListCollections returns the collection names of the database.
	ListCollections(ctx context.Context) ([]string, error)

	// Close releases the store resources.
	Close() error
}

// Page is the cached listing of one collection.
// Documents are kept as raw BSON so every read decodes a fresh copy.
type Page struct {
	Collection string     `bson:"collection"`
	Docs       []bson.Raw `bson:"docs"`
}

// Documents decodes the page.
func (p *Page) Documents() ([]model.Document, error) {
	docs := make([]model.Document, 0, len(p.Docs))
	for i, raw := range p.Docs {
		doc, err := decodeRaw(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode document %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func decodeRaw(raw bson.Raw) (model.Document, error) {
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return model.Document{}, err
	}
	return model.DocumentFromBSON(d)
}
