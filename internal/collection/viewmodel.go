// Package collection tracks the active collection and its loaded documents.
package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"docadmin/internal/core"
	"docadmin/internal/identity"
	"docadmin/internal/model"
)

var (
	// ErrLoadInProgress is returned when a load starts while another is running
	ErrLoadInProgress = errors.New("a collection load is already in progress")

	// ErrNoCollection is returned when no collection name is given or active
	ErrNoCollection = errors.New("no collection selected")

	// ErrNoDocument is returned by Lookup when no loaded document matches
	ErrNoDocument = errors.New("no loaded document matches the identifier")

	// ErrAmbiguousID is returned by Lookup when several loaded documents match
	ErrAmbiguousID = errors.New("identifier matches more than one document")
)

// Finder loads every document of a collection.
type Finder interface {
	Find(ctx context.Context, collection string) ([]model.Document, error)
}

// Refresher is a Finder that can skip any listing cache.
// Reload uses Refresh when the finder provides it.
type Refresher interface {
	Finder
	Refresh(ctx context.Context, collection string) ([]model.Document, error)
}

// State is a point-in-time view of the model.
type State struct {
	ActiveCollection string
	Documents        []model.Document
	Loading          bool
	StatusMessage    string
}

// ViewModel holds the documents of the active collection.
// Only one load runs at a time.
type ViewModel struct {
	finder Finder

	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
}

// NewViewModel creates an empty view model.
func NewViewModel(finder Finder) *ViewModel {
	return &ViewModel{
		finder:    finder,
		listeners: make(map[int]func(State)),
	}
}

// SwitchCollection makes name active, drops the loaded documents and loads the new collection.
func (vm *ViewModel) SwitchCollection(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNoCollection
	}

	vm.mu.Lock()
	if vm.state.Loading {
		vm.mu.Unlock()
		return ErrLoadInProgress
	}
	vm.state.ActiveCollection = name
	vm.state.Documents = nil
	vm.beginLoad()
	vm.mu.Unlock()

	vm.notify()
	return vm.load(ctx, name, false)
}

// Reload re-fetches the active collection from the store.
func (vm *ViewModel) Reload(ctx context.Context) error {
	vm.mu.Lock()
	name := vm.state.ActiveCollection
	if name == "" {
		vm.mu.Unlock()
		return ErrNoCollection
	}
	if vm.state.Loading {
		vm.mu.Unlock()
		return ErrLoadInProgress
	}
	vm.beginLoad()
	vm.mu.Unlock()

	vm.notify()
	return vm.load(ctx, name, true)
}

// Snapshot returns a copy of the current state.
func (vm *ViewModel) Snapshot() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.snapshot()
}

// Subscribe registers fn to run after every state change and returns a function that removes it.
// fn runs on the goroutine that changed the state.
func (vm *ViewModel) Subscribe(fn func(State)) func() {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	id := vm.nextID
	vm.nextID++
	vm.listeners[id] = fn

	return func() {
		vm.mu.Lock()
		defer vm.mu.Unlock()
		delete(vm.listeners, id)
	}
}

// Lookup finds a loaded document by any representation of its identifier.
// A document whose raw identifier equals id wins over normalized matches.
// ErrAmbiguousID is returned when the choice is still not unique.
func (vm *ViewModel) Lookup(id interface{}) (model.Document, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	var exact, loose []model.Document
	for _, doc := range vm.state.Documents {
		if !identity.Matches(id, doc.ID) {
			continue
		}
		if sameRawID(id, doc.ID) {
			exact = append(exact, doc)
		} else {
			loose = append(loose, doc)
		}
	}

	candidates := exact
	if len(candidates) == 0 {
		candidates = loose
	}
	switch len(candidates) {
	case 0:
		return model.Document{}, ErrNoDocument
	case 1:
		return candidates[0].Clone(), nil
	default:
		return model.Document{}, fmt.Errorf("%w: %d documents", ErrAmbiguousID, len(candidates))
	}
}

// sameRawID compares identifiers of comparable scalar types without normalizing them.
func sameRawID(a, b interface{}) bool {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case primitive.ObjectID:
		y, ok := b.(primitive.ObjectID)
		return ok && x == y
	case int32:
		y, ok := b.(int32)
		return ok && x == y
	case int64:
		y, ok := b.(int64)
		return ok && x == y
	}
	return false
}

func (vm *ViewModel) beginLoad() {
	vm.state.Loading = true
	vm.state.StatusMessage = fmt.Sprintf("Loading %s...", vm.state.ActiveCollection)
}

func (vm *ViewModel) load(ctx context.Context, name string, fresh bool) error {
	var (
		docs []model.Document
		err  error
	)
	if refresher, ok := vm.finder.(Refresher); ok && fresh {
		docs, err = refresher.Refresh(ctx, name)
	} else {
		docs, err = vm.finder.Find(ctx, name)
	}

	vm.mu.Lock()
	vm.state.Loading = false
	if err != nil {
		vm.state.StatusMessage = fmt.Sprintf("Failed to load %s: %v", name, err)
	} else {
		vm.state.Documents = docs
		vm.state.StatusMessage = fmt.Sprintf("Loaded %d documents from %s", len(docs), name)
	}
	vm.mu.Unlock()

	vm.notify()

	if err != nil {
		core.Error("Failed to load collection", zap.String("collection", name), zap.Error(err))
		return err
	}
	core.Debug("Loaded collection into view", zap.String("collection", name), zap.Int("count", len(docs)))
	return nil
}

func (vm *ViewModel) snapshot() State {
	out := vm.state
	if vm.state.Documents != nil {
		out.Documents = make([]model.Document, len(vm.state.Documents))
		for i, doc := range vm.state.Documents {
			out.Documents[i] = doc.Clone()
		}
	}
	return out
}

func (vm *ViewModel) notify() {
	vm.mu.Lock()
	state := vm.snapshot()
	listeners := make([]func(State), 0, len(vm.listeners))
	for _, fn := range vm.listeners {
		listeners = append(listeners, fn)
	}
	vm.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}
