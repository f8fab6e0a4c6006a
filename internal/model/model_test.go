package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFromBSONClassifiesKinds(t *testing.T) {
	oid := primitive.NewObjectID()
	now := primitive.NewDateTimeFromTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	tests := []struct {
		name  string
		input interface{}
		kind  Kind
	}{
		{"nil", nil, KindNull},
		{"bson null", primitive.Null{}, KindNull},
		{"int32", int32(5), KindNumber},
		{"int64", int64(5), KindNumber},
		{"double", 1.5, KindNumber},
		{"string", "Ann", KindText},
		{"document", bson.D{{Key: "sword", Value: int32(1)}}, KindStructured},
		{"map", bson.M{"b": 1, "a": 2}, KindStructured},
		{"array", bson.A{"a", "b"}, KindStructured},
		{"bool", true, KindExtended},
		{"object id", oid, KindExtended},
		{"date", now, KindExtended},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, FromBSON(tt.input).Kind)
		})
	}
}

func TestNumberWidthSurvivesToBSON(t *testing.T) {
	assert.Equal(t, int32(7), FromBSON(int32(7)).ToBSON())
	assert.Equal(t, int64(7), FromBSON(int64(7)).ToBSON())
	assert.Equal(t, 7.0, FromBSON(7.0).ToBSON())
	assert.Equal(t, Int32, Int(12).Number.Width)
	assert.Equal(t, Int64, Int(1<<40).Number.Width)
}

func TestStructuredMapsAreSorted(t *testing.T) {
	v := Structured(bson.M{"shield": 1, "axe": 2, "sword": 3})

	doc, ok := v.Tree.(bson.D)
	require.True(t, ok)
	assert.Equal(t, []string{"axe", "shield", "sword"}, []string{doc[0].Key, doc[1].Key, doc[2].Key})
	assert.True(t, v.IsObject())
	assert.False(t, v.IsArray())
}

func TestValueEqualIgnoresIntegerWidthInsideTrees(t *testing.T) {
	a := Structured(bson.D{{Key: "sword", Value: int32(1)}})
	b := Structured(bson.D{{Key: "sword", Value: int64(1)}})
	c := Structured(bson.D{{Key: "sword", Value: int32(2)}})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, Int(1).Equal(Float(1)))
	assert.True(t, Null().Equal(Null()))
	assert.False(t, Text("1").Equal(Int(1)))
}

func TestRelaxedRoundTrip(t *testing.T) {
	tree := bson.D{
		{Key: "name", Value: "Ann"},
		{Key: "tags", Value: bson.A{"a", int32(2), 2.5}},
		{Key: "nested", Value: bson.D{{Key: "ok", Value: true}}},
	}

	data, err := MarshalRelaxed(tree)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Ann","tags":["a",2,2.5],"nested":{"ok":true}}`, string(data))

	back, err := UnmarshalRelaxed(data)
	require.NoError(t, err)
	assert.True(t, Structured(tree).Equal(Structured(back)))

	_, err = UnmarshalRelaxed([]byte(`{"broken"`))
	assert.Error(t, err)
}

func TestUnmarshalRelaxedRejectsTrailingText(t *testing.T) {
	for _, text := range []string{`{"a": 1}} junk`, `{"a": 1} {"b": 2}`, `[1]] [2]`, `1 2`, `true}`} {
		_, err := UnmarshalRelaxed([]byte(text))
		assert.Error(t, err, text)
	}

	v, err := UnmarshalRelaxed([]byte(" {\"a\": {\"$numberLong\": \"5\"}}\n"))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "a", Value: int64(5)}}, v)
}

func TestCloneDoesNotShareTrees(t *testing.T) {
	inventory := bson.D{{Key: "sword", Value: int32(1)}}
	doc := NewDocument(primitive.NewObjectID(), Field{Key: "inventory", Value: Structured(inventory)})

	clone := doc.Clone()
	clonedTree := clone.Fields[0].Value.Tree.(bson.D)
	clonedTree[0].Value = int32(99)

	original, _ := doc.Get("inventory")
	assert.Equal(t, int32(1), original.Tree.(bson.D)[0].Value)
}

func TestDocumentFromBSON(t *testing.T) {
	oid := primitive.NewObjectID()
	doc, err := DocumentFromBSON(bson.D{
		{Key: "level", Value: int32(5)},
		{Key: IDField, Value: oid},
		{Key: "nickname", Value: "Ann"},
	})
	require.NoError(t, err)

	assert.Equal(t, oid, doc.ID)
	assert.Equal(t, []string{"level", "nickname"}, doc.Keys())

	back := doc.ToBSON()
	assert.Equal(t, IDField, back[0].Key)
	assert.Equal(t, int32(5), back[1].Value)

	_, err = DocumentFromBSON(bson.D{{Key: "level", Value: 1}})
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestDocumentSetRemove(t *testing.T) {
	doc := NewDocument("abc",
		Field{Key: IDField, Value: Text("ignored")},
		Field{Key: "a", Value: Int(1)},
		Field{Key: "b", Value: Int(2)},
	)
	assert.Equal(t, 2, doc.Len())

	doc.Set("a", Int(10))
	v, ok := doc.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(10), v.Number.Int)

	assert.True(t, doc.Remove("a"))
	assert.False(t, doc.Remove("a"))
	assert.Equal(t, []string{"b"}, doc.Keys())
}

func TestPartialUpdateApply(t *testing.T) {
	doc := NewDocument("x", Field{Key: "level", Value: Int(5)}, Field{Key: "old", Value: Text("gone")})
	update := PartialUpdate{
		Set:   []Field{{Key: "level", Value: Int(7)}},
		Unset: []string{"old"},
	}

	assert.False(t, update.IsEmpty())
	assert.Equal(t, 2, update.Len())
	assert.Equal(t, []string{"level"}, update.Keys())

	update.Apply(&doc)
	level, _ := doc.Get("level")
	assert.Equal(t, int64(7), level.Number.Int)
	_, ok := doc.Get("old")
	assert.False(t, ok)

	assert.True(t, PartialUpdate{}.IsEmpty())
}
