package editor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"docadmin/internal/clipboard"
	"docadmin/internal/core"
	"docadmin/internal/identity"
	"docadmin/internal/model"
	"docadmin/internal/storage"
)

var (
	// ErrSaveInProgress is returned while a save is waiting on the store
	ErrSaveInProgress = errors.New("a save is already in progress")

	// ErrImportInProgress is returned while an import is waiting on the clipboard
	ErrImportInProgress = errors.New("an import is already in progress")

	// ErrSessionClosed is returned for any operation on a saved or discarded session
	ErrSessionClosed = errors.New("edit session is closed")

	// ErrNoClipboard is returned by clipboard operations when the session has none
	ErrNoClipboard = errors.New("no clipboard configured")
)

// State is the lifecycle state of a session.
type State int

const (
	StateEditing State = iota
	StateSaving
	StateImporting
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateSaving:
		return "saving"
	case StateImporting:
		return "importing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Updater writes partial updates. storage.DocumentStore satisfies it.
type Updater interface {
	Update(ctx context.Context, collection string, id interface{}, update model.PartialUpdate) (bool, error)
}

// SaveResult describes a finished save.
type SaveResult struct {
	// Update is what was sent to the store; empty for a no-op close
	Update model.PartialUpdate
	// Modified is the store's report of whether a field changed
	Modified bool
	// MergePatch is the change as an RFC 7396 merge patch
	MergePatch []byte
}

// Session is one edit of one document. It owns the document snapshot and its
// edit buffer until it is saved or discarded.
//
// Methods are safe for concurrent use, but the lock is never held while the
// store or clipboard is called. Store and clipboard failures leave the
// session unchanged.
type Session struct {
	id         uuid.UUID
	collection string
	updater    Updater
	clip       clipboard.Clipboard

	mu      sync.Mutex
	state   State
	doc     model.Document
	buffer  *EditBuffer
	removed []string
}

// NewSession opens doc for editing. clip may be nil.
func NewSession(collection string, doc model.Document, updater Updater, clip clipboard.Clipboard) *Session {
	s := &Session{
		id:         uuid.New(),
		collection: collection,
		updater:    updater,
		clip:       clip,
		state:      StateEditing,
		doc:        doc.Clone(),
	}
	s.buffer = NewBuffer(s.doc)

	core.Debug("Opened edit session", s.logFields()...)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id.String()
}

// Collection returns the collection of the open document.
func (s *Session) Collection() string {
	return s.collection
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Document returns a copy of the document snapshot.
func (s *Session) Document() model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Buffer returns a copy of the edit buffer.
func (s *Session) Buffer() *EditBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.Clone()
}

// Removed returns the fields removed since the session was opened.
func (s *Session) Removed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.removed...)
}

// SetField replaces the text of a field.
func (s *Session) SetField(key, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEditing(); err != nil {
		return err
	}
	return s.buffer.Set(key, text)
}

// RemoveField drops a field from the document. The next save unsets it in the store.
func (s *Session) RemoveField(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEditing(); err != nil {
		return err
	}
	if key == model.IDField {
		return model.ErrImmutableID
	}
	if !s.buffer.remove(key) {
		return ErrUnknownField
	}
	s.doc.Remove(key)
	s.removed = append(s.removed, key)
	return nil
}

// Pending returns the update a save would send without sending it.
// Decode failures are returned as ValidationErrors.
func (s *Session) Pending() (model.PartialUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return model.PartialUpdate{}, ErrSessionClosed
	}
	return s.pending()
}

func (s *Session) pending() (model.PartialUpdate, error) {
	update, errs := Diff(s.buffer, s.doc)
	if len(errs) > 0 {
		return model.PartialUpdate{}, errs
	}
	update.Unset = append([]string(nil), s.removed...)
	return update, nil
}

// Save writes the changed fields and closes the session.
//
// Invalid fields return ValidationErrors and keep the session open. An empty
// update closes the session without a write. A store failure returns a
// *storage.StoreError and keeps the session open with its edits intact.
func (s *Session) Save(ctx context.Context) (*SaveResult, error) {
	s.mu.Lock()
	if err := s.checkEditing(); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	update, err := s.pending()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	if update.IsEmpty() {
		s.state = StateClosed
		s.mu.Unlock()
		core.Debug("Closed edit session without changes", s.logFields()...)
		return &SaveResult{}, nil
	}

	patch, err := MergePatch(s.doc, update)
	if err != nil {
		core.Warn("Failed to render merge patch", append(s.logFields(), zap.Error(err))...)
	}

	s.state = StateSaving
	id := s.doc.ID
	s.mu.Unlock()

	modified, err := s.updater.Update(ctx, s.collection, id, update)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateEditing
		core.Error("Failed to save document", append(s.logFields(), zap.Error(err))...)

		var storeErr *storage.StoreError
		if errors.As(err, &storeErr) {
			return nil, err
		}
		return nil, &storage.StoreError{Op: "update", Collection: s.collection, Err: err}
	}

	update.Apply(&s.doc)
	s.buffer = NewBuffer(s.doc)
	s.removed = nil
	s.state = StateClosed

	core.Info("Saved document", append(s.logFields(),
		zap.Strings("set", update.Keys()),
		zap.Strings("unset", update.Unset),
		zap.Bool("modified", modified),
		zap.ByteString("patch", patch))...)

	return &SaveResult{Update: update, Modified: modified, MergePatch: patch}, nil
}

// Export renders the current edits as importable text.
func (s *Session) Export() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return "", ErrSessionClosed
	}
	return FormatSnapshot(ExportSnapshot(s.doc, s.buffer))
}

// ExportToClipboard writes Export to the clipboard.
func (s *Session) ExportToClipboard(ctx context.Context) error {
	if s.clip == nil {
		return ErrNoClipboard
	}

	text, err := s.Export()
	if err != nil {
		return err
	}

	if err := s.clip.Write(ctx, text); err != nil {
		return errors.Wrap(err, "failed to export to clipboard")
	}
	return nil
}

// Import merges imported text into the buffer. A rejected import returns an
// *ImportError and leaves the buffer untouched.
func (s *Session) Import(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEditing(); err != nil {
		return err
	}
	return s.importLocked(text)
}

// ImportFromClipboard imports the clipboard text.
func (s *Session) ImportFromClipboard(ctx context.Context) error {
	if s.clip == nil {
		return ErrNoClipboard
	}

	s.mu.Lock()
	if err := s.checkEditing(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = StateImporting
	s.mu.Unlock()

	text, err := s.clip.Read(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateEditing

	if err != nil {
		return errors.Wrap(err, "failed to import from clipboard")
	}
	return s.importLocked(text)
}

func (s *Session) importLocked(text string) error {
	staged := s.buffer.Clone()
	if err := ImportSnapshot(text, s.doc, staged); err != nil {
		core.Warn("Rejected import", append(s.logFields(), zap.Error(err))...)
		return err
	}
	s.buffer = staged
	return nil
}

// Discard closes the session without saving.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateSaving:
		return ErrSaveInProgress
	case StateImporting:
		return ErrImportInProgress
	}
	s.state = StateClosed
	return nil
}

func (s *Session) checkEditing() error {
	switch s.state {
	case StateEditing:
		return nil
	case StateSaving:
		return ErrSaveInProgress
	case StateImporting:
		return ErrImportInProgress
	default:
		return ErrSessionClosed
	}
}

func (s *Session) logFields() []zap.Field {
	return []zap.Field{
		zap.String("session", s.id.String()),
		zap.String("collection", s.collection),
		zap.String("id", identity.Normalize(s.doc.ID)),
	}
}
