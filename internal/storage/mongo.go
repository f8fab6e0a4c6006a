package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"docadmin/internal/core"
	"docadmin/internal/model"
	"docadmin/internal/storage/cache"
)

// MongoStore implements DocumentStore against one MongoDB database.
// Collection listings are served from the cache when one is configured.
type MongoStore struct {
	db      *mongo.Database
	cache   cache.Cache[*Page]
	options *Options

	closeMu sync.RWMutex
	closed  bool
}

// NewMongoStore creates a store for database. pageCache may be nil.
func NewMongoStore(client *mongo.Client, database string, pageCache cache.Cache[*Page], options *Options) *MongoStore {
	if options == nil {
		options = DefaultOptions()
	}
	return &MongoStore{
		db:      client.Database(database),
		cache:   pageCache,
		options: options,
	}
}

// Find returns every document of the collection in natural order.
func (s *MongoStore) Find(ctx context.Context, collection string) ([]model.Document, error) {
	if s.isClosed() {
		return nil, storeErr("find", collection, ErrClosed)
	}

	if page, ok := s.cachedPage(ctx, collection); ok {
		docs, err := page.Documents()
		if err == nil {
			return docs, nil
		}
		core.Warn("Discarding undecodable cached page",
			zap.String("collection", collection), zap.Error(err))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, storeErr("find", collection, err)
	}

	var raws []bson.Raw
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, storeErr("find", collection, err)
	}

	page := &Page{Collection: collection, Docs: raws}
	docs, err := page.Documents()
	if err != nil {
		return nil, storeErr("find", collection, err)
	}

	s.storePage(ctx, page)
	core.Debug("Loaded collection",
		zap.String("collection", collection), zap.Int("count", len(docs)))

	return docs, nil
}

// Refresh drops the cached listing of the collection and reads it from the server.
func (s *MongoStore) Refresh(ctx context.Context, collection string) ([]model.Document, error) {
	if s.isClosed() {
		return nil, storeErr("refresh", collection, ErrClosed)
	}
	s.invalidate(ctx, collection)
	return s.Find(ctx, collection)
}

// FindOne returns the document with the given identifier. It always reads from the server.
func (s *MongoStore) FindOne(ctx context.Context, collection string, id interface{}) (model.Document, error) {
	if s.isClosed() {
		return model.Document{}, storeErr("find one", collection, ErrClosed)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var raw bson.Raw
	err := s.db.Collection(collection).FindOne(ctx, bson.D{{Key: model.IDField, Value: id}}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Document{}, storeErr("find one", collection, ErrNotFound)
		}
		return model.Document{}, storeErr("find one", collection, err)
	}

	doc, err := decodeRaw(raw)
	if err != nil {
		return model.Document{}, storeErr("find one", collection, err)
	}
	return doc, nil
}

// FindByField returns the documents whose field equals value.
func (s *MongoStore) FindByField(ctx context.Context, collection, field string, value interface{}) ([]model.Document, error) {
	if s.isClosed() {
		return nil, storeErr("find by field", collection, ErrClosed)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.db.Collection(collection).Find(ctx, bson.D{{Key: field, Value: value}})
	if err != nil {
		return nil, storeErr("find by field", collection, err)
	}

	var raws []bson.Raw
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, storeErr("find by field", collection, err)
	}

	docs, err := (&Page{Collection: collection, Docs: raws}).Documents()
	if err != nil {
		return nil, storeErr("find by field", collection, err)
	}
	return docs, nil
}

// Update applies $set and $unset for the partial update.
// It returns true iff MongoDB reports a modified field.
func (s *MongoStore) Update(ctx context.Context, collection string, id interface{}, update model.PartialUpdate) (bool, error) {
	if s.isClosed() {
		return false, storeErr("update", collection, ErrClosed)
	}

	patch, err := NewBsonPatch(update)
	if err != nil {
		return false, storeErr("update", collection, err)
	}
	if patch.IsEmpty() {
		return false, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.db.Collection(collection).UpdateOne(ctx, bson.D{{Key: model.IDField, Value: id}}, patch)
	if err != nil {
		return false, storeErr("update", collection, err)
	}
	s.invalidate(ctx, collection)

	if result.MatchedCount == 0 {
		return false, storeErr("update", collection, ErrNotFound)
	}

	core.Info("Updated document",
		zap.String("collection", collection),
		zap.Any("id", id),
		zap.Strings("set", update.Keys()),
		zap.Strings("unset", update.Unset),
		zap.Int64("modified", result.ModifiedCount))

	return result.ModifiedCount > 0, nil
}

// Insert stores doc. A nil identifier lets the server generate one.
func (s *MongoStore) Insert(ctx context.Context, collection string, doc model.Document) (interface{}, error) {
	if s.isClosed() {
		return nil, storeErr("insert", collection, ErrClosed)
	}

	raw := doc.ToBSON()
	if doc.ID == nil {
		raw = raw[1:]
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.db.Collection(collection).InsertOne(ctx, raw)
	if err != nil {
		return nil, storeErr("insert", collection, err)
	}
	s.invalidate(ctx, collection)

	core.Info("Inserted document",
		zap.String("collection", collection), zap.Any("id", result.InsertedID))

	return result.InsertedID, nil
}

// Delete removes the document with the given identifier.
func (s *MongoStore) Delete(ctx context.Context, collection string, id interface{}) (bool, error) {
	if s.isClosed() {
		return false, storeErr("delete", collection, ErrClosed)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.db.Collection(collection).DeleteOne(ctx, bson.D{{Key: model.IDField, Value: id}})
	if err != nil {
		return false, storeErr("delete", collection, err)
	}
	s.invalidate(ctx, collection)

	core.Info("Deleted document",
		zap.String("collection", collection),
		zap.Any("id", id),
		zap.Int64("deleted", result.DeletedCount))

	return result.DeletedCount > 0, nil
}

// ListCollections returns the sorted collection names.
func (s *MongoStore) ListCollections(ctx context.Context) ([]string, error) {
	if s.isClosed() {
		return nil, storeErr("list collections", "", ErrClosed)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, storeErr("list collections", "", err)
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the cache. The driver client is owned by the caller.
func (s *MongoStore) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

func (s *MongoStore) isClosed() bool {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	return s.closed
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.options.OperationTimeout > 0 {
		return context.WithTimeout(ctx, s.options.OperationTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *MongoStore) cachedPage(ctx context.Context, collection string) (*Page, bool) {
	if s.cache == nil {
		return nil, false
	}

	page, err := s.cache.Get(ctx, collection)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			core.Warn("Failed to read collection from cache",
				zap.String("collection", collection), zap.Error(err))
		}
		return nil, false
	}
	if page == nil {
		return nil, false
	}
	return page, true
}

func (s *MongoStore) storePage(ctx context.Context, page *Page) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, page.Collection, page, s.options.CacheTTL); err != nil {
		core.Warn("Failed to cache collection",
			zap.String("collection", page.Collection), zap.Error(err))
	}
}

func (s *MongoStore) invalidate(ctx context.Context, collection string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, collection); err != nil {
		core.Warn("Failed to invalidate cached collection",
			zap.String("collection", collection), zap.Error(err))
	}
}
