package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docadmin/internal/clipboard"
	"docadmin/internal/model"
	"docadmin/internal/storage"
)

type mockUpdater struct {
	mock.Mock
}

func (m *mockUpdater) Update(ctx context.Context, collection string, id interface{}, update model.PartialUpdate) (bool, error) {
	args := m.Called(ctx, collection, id, update)
	return args.Bool(0), args.Error(1)
}

type mockClipboard struct {
	mock.Mock
}

func (m *mockClipboard) Read(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockClipboard) Write(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

func setsOnly(keys ...string) interface{} {
	return mock.MatchedBy(func(u model.PartialUpdate) bool {
		return assert.ObjectsAreEqual(keys, u.Keys()) && len(u.Unset) == 0
	})
}

func TestSession_Save(t *testing.T) {
	updater := new(mockUpdater)
	session := NewSession("players", playerDoc(t), updater, nil)
	assert.NotEmpty(t, session.ID())
	assert.Equal(t, StateEditing, session.State())

	require.NoError(t, session.SetField("level", "7"))

	updater.On("Update", mock.Anything, "players", playerID(t), setsOnly("level")).Return(true, nil).Once()

	result, err := session.Save(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Modified)
	assert.Equal(t, []string{"level"}, result.Update.Keys())
	assert.JSONEq(t, `{"level": 7}`, string(result.MergePatch))
	assert.Equal(t, StateClosed, session.State())

	level, _ := session.Document().Get("level")
	assert.Equal(t, int64(7), level.Number.Int, "Snapshot reflects the saved value")

	updater.AssertExpectations(t)
}

func TestSession_SaveWithoutChangesIsNoOp(t *testing.T) {
	updater := new(mockUpdater)
	session := NewSession("players", playerDoc(t), updater, nil)

	result, err := session.Save(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Update.IsEmpty())
	assert.Equal(t, StateClosed, session.State())

	updater.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSession_ValidationBlocksSave(t *testing.T) {
	updater := new(mockUpdater)
	session := NewSession("players", playerDoc(t), updater, nil)
	require.NoError(t, session.SetField("level", "abc"))
	require.NoError(t, session.SetField("inventory", "{broken"))

	_, err := session.Save(context.Background())
	require.Error(t, err)

	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, []string{"level", "inventory"}, errs.Fields())
	assert.Equal(t, StateEditing, session.State(), "Session stays open for corrections")

	updater.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, session.SetField("level", "8"))
	require.NoError(t, session.SetField("inventory", `{"sword": 3}`))
	updater.On("Update", mock.Anything, "players", playerID(t), setsOnly("level", "inventory")).Return(true, nil).Once()

	_, err = session.Save(context.Background())
	require.NoError(t, err)
	updater.AssertExpectations(t)
}

func TestSession_StoreFailureLeavesSessionUnchanged(t *testing.T) {
	updater := new(mockUpdater)
	session := NewSession("players", playerDoc(t), updater, nil)
	require.NoError(t, session.SetField("nickname", "Bob"))
	require.NoError(t, session.RemoveField("inventory"))

	docBefore := session.Document()
	bufferBefore := session.Buffer()

	cause := errors.New("connection reset")
	updater.On("Update", mock.Anything, "players", playerID(t), mock.Anything).Return(false, cause).Once()

	_, err := session.Save(context.Background())
	require.Error(t, err)

	var storeErr *storage.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "players", storeErr.Collection)
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, StateEditing, session.State())
	assert.Equal(t, docBefore, session.Document())
	assert.Equal(t, bufferBefore, session.Buffer())
	assert.Equal(t, []string{"inventory"}, session.Removed())

	updater.On("Update", mock.Anything, "players", playerID(t), mock.Anything).Return(true, nil).Once()
	result, err := session.Save(context.Background())
	require.NoError(t, err, "Retry after a store failure should succeed")
	assert.Equal(t, []string{"nickname"}, result.Update.Keys())
	assert.Equal(t, []string{"inventory"}, result.Update.Unset)
}

func TestSession_StoreErrorPassesThrough(t *testing.T) {
	updater := new(mockUpdater)
	session := NewSession("players", playerDoc(t), updater, nil)
	require.NoError(t, session.SetField("level", "9"))

	original := &storage.StoreError{Op: "update", Collection: "players", Err: storage.ErrNotFound}
	updater.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, original)

	_, err := session.Save(context.Background())
	assert.Same(t, original, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSession_RemoveFieldIsUnset(t *testing.T) {
	updater := new(mockUpdater)
	session := NewSession("players", playerDoc(t), updater, nil)

	require.NoError(t, session.RemoveField("nickname"))
	assert.ErrorIs(t, session.RemoveField("nickname"), ErrUnknownField)
	assert.ErrorIs(t, session.RemoveField(model.IDField), model.ErrImmutableID)
	assert.ErrorIs(t, session.SetField("nickname", "Bob"), ErrUnknownField, "Removed field is no longer editable")
	assert.Equal(t, []string{"level", "inventory"}, session.Buffer().Keys())

	pending, err := session.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending.Set)
	assert.Equal(t, []string{"nickname"}, pending.Unset)

	updater.On("Update", mock.Anything, "players", playerID(t), mock.MatchedBy(func(u model.PartialUpdate) bool {
		return len(u.Set) == 0 && assert.ObjectsAreEqual([]string{"nickname"}, u.Unset)
	})).Return(true, nil).Once()

	result, err := session.Save(context.Background())
	require.NoError(t, err, "A removal alone still issues a write")
	assert.JSONEq(t, `{"nickname": null}`, string(result.MergePatch))
	_, ok := session.Document().Get("nickname")
	assert.False(t, ok)

	updater.AssertExpectations(t)
}

func TestSession_IdentifierIsImmutable(t *testing.T) {
	session := NewSession("players", playerDoc(t), new(mockUpdater), nil)
	assert.ErrorIs(t, session.SetField(model.IDField, "x"), model.ErrImmutableID)
}

func TestSession_SaveInProgress(t *testing.T) {
	updater := new(mockUpdater)
	session := NewSession("players", playerDoc(t), updater, nil)
	require.NoError(t, session.SetField("level", "7"))

	started := make(chan struct{})
	release := make(chan struct{})
	updater.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
		}).
		Return(true, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := session.Save(context.Background())
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("Save did not reach the store")
	}

	assert.Equal(t, StateSaving, session.State())
	_, err := session.Save(context.Background())
	assert.ErrorIs(t, err, ErrSaveInProgress)
	assert.ErrorIs(t, session.SetField("level", "8"), ErrSaveInProgress)
	assert.ErrorIs(t, session.Import(`{"_id": "507f1f77bcf86cd799439011"}`), ErrSaveInProgress)
	assert.ErrorIs(t, session.Discard(), ErrSaveInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, session.State())
	updater.AssertNumberOfCalls(t, "Update", 1)
}

func TestSession_ClosedRejectsOperations(t *testing.T) {
	session := NewSession("players", playerDoc(t), new(mockUpdater), clipboard.NewMemory(""))
	require.NoError(t, session.Discard())
	require.NoError(t, session.Discard(), "Discard is idempotent")

	assert.ErrorIs(t, session.SetField("level", "1"), ErrSessionClosed)
	assert.ErrorIs(t, session.RemoveField("level"), ErrSessionClosed)
	assert.ErrorIs(t, session.Import("{}"), ErrSessionClosed)
	_, err := session.Save(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = session.Export()
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = session.Pending()
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, session.ImportFromClipboard(context.Background()), ErrSessionClosed)
}

func TestSession_ClipboardRoundTrip(t *testing.T) {
	clip := clipboard.NewMemory("")
	ctx := context.Background()

	source := NewSession("players", playerDoc(t), new(mockUpdater), clip)
	require.NoError(t, source.SetField("level", "12"))
	require.NoError(t, source.ExportToClipboard(ctx))

	text, err := clip.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, text, `"_id": "507f1f77bcf86cd799439011"`)
	assert.Contains(t, text, `"level": 12`)

	target := NewSession("players", playerDoc(t), new(mockUpdater), clip)
	require.NoError(t, target.ImportFromClipboard(ctx))
	assert.Equal(t, StateEditing, target.State())

	pending, err := target.Pending()
	require.NoError(t, err)
	assert.Equal(t, []string{"level"}, pending.Keys())
}

func TestSession_ImportRejectedKeepsEdits(t *testing.T) {
	session := NewSession("players", playerDoc(t), new(mockUpdater), nil)
	require.NoError(t, session.SetField("nickname", "Bob"))
	before := session.Buffer()

	err := session.Import(`{"_id": "000000000000000000000000", "nickname": "Eve"}`)
	assert.ErrorIs(t, err, ErrIdentityMismatch)
	assert.Equal(t, before, session.Buffer())
	assert.Equal(t, StateEditing, session.State())

	err = session.Import(`{"_id": ObjectId("507f1f77bcf86cd799439011"), "nickname": "Eve"}`)
	require.NoError(t, err)
	nickname, _ := session.Buffer().Get("nickname")
	assert.Equal(t, "Eve", nickname)
}

func TestSession_ClipboardFailure(t *testing.T) {
	clip := new(mockClipboard)
	session := NewSession("players", playerDoc(t), new(mockUpdater), clip)
	before := session.Buffer()

	cause := errors.New("xclip not found")
	clip.On("Read", mock.Anything).Return("", cause).Once()
	clip.On("Write", mock.Anything, mock.Anything).Return(cause).Once()

	err := session.ImportFromClipboard(context.Background())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StateEditing, session.State())
	assert.Equal(t, before, session.Buffer())

	err = session.ExportToClipboard(context.Background())
	assert.ErrorIs(t, err, cause)

	clip.AssertExpectations(t)
}

func TestSession_NoClipboard(t *testing.T) {
	session := NewSession("players", playerDoc(t), new(mockUpdater), nil)
	assert.ErrorIs(t, session.ExportToClipboard(context.Background()), ErrNoClipboard)
	assert.ErrorIs(t, session.ImportFromClipboard(context.Background()), ErrNoClipboard)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "editing", StateEditing.String())
	assert.Equal(t, "saving", StateSaving.String())
	assert.Equal(t, "importing", StateImporting.String())
	assert.Equal(t, "closed", StateClosed.String())
}
