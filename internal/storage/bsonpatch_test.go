package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"docadmin/internal/model"
)

func TestNewBsonPatch(t *testing.T) {
	update := model.PartialUpdate{
		Set: []model.Field{
			{Key: "level", Value: model.IntWidth(7, model.Int32)},
			{Key: "inventory", Value: model.Structured(bson.D{{Key: "sword", Value: int32(2)}})},
		},
		Unset: []string{"nickname"},
	}

	patch, err := NewBsonPatch(update)
	require.NoError(t, err)
	assert.False(t, patch.IsEmpty())

	expected := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "level", Value: int32(7)},
			{Key: "inventory", Value: bson.D{{Key: "sword", Value: int32(2)}}},
		}},
		{Key: "$unset", Value: bson.D{{Key: "nickname", Value: ""}}},
	}
	assert.Equal(t, expected, patch.Document())

	data, err := bson.Marshal(patch)
	require.NoError(t, err, "Patch should marshal as an update document")

	var decoded bson.D
	require.NoError(t, bson.Unmarshal(data, &decoded))
	assert.Equal(t, "$set", decoded[0].Key)
	assert.Equal(t, "$unset", decoded[1].Key)
}

func TestNewBsonPatch_OmitsEmptyOperators(t *testing.T) {
	patch, err := NewBsonPatch(model.PartialUpdate{Unset: []string{"old"}})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$unset", Value: bson.D{{Key: "old", Value: ""}}}}, patch.Document())

	empty, err := NewBsonPatch(model.PartialUpdate{})
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	assert.Empty(t, empty.Document())
}

func TestNewBsonPatch_RejectsID(t *testing.T) {
	_, err := NewBsonPatch(model.PartialUpdate{Set: []model.Field{{Key: model.IDField, Value: model.Text("x")}}})
	assert.ErrorIs(t, err, ErrIDInUpdate)

	_, err = NewBsonPatch(model.PartialUpdate{Unset: []string{model.IDField}})
	assert.ErrorIs(t, err, ErrIDInUpdate)
}

func TestStoreError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("save: %w", storeErr("update", "players", cause))

	var storeError *StoreError
	require.True(t, errors.As(err, &storeError))
	assert.Equal(t, "update", storeError.Op)
	assert.Equal(t, "players", storeError.Collection)
	assert.ErrorIs(t, err, cause, "Cause should be reachable through the store error")
	assert.Equal(t, "store update players: connection refused", storeError.Error())

	assert.Equal(t, "store list collections: store is closed", storeErr("list collections", "", ErrClosed).Error())
}
