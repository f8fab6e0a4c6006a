package codec

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"docadmin/internal/model"
)

func sampleValues() map[string]model.Value {
	oid, _ := primitive.ObjectIDFromHex("507f1f77bcf86cd799439011")
	return map[string]model.Value{
		"null":          model.Null(),
		"int32":         model.IntWidth(5, model.Int32),
		"int64":         model.IntWidth(1<<40, model.Int64),
		"negative":      model.Int(-12),
		"double":        model.Float(2.5),
		"integral":      model.Float(5),
		"tiny":          model.Float(1e-9),
		"huge":          model.Float(3e25),
		"text":          model.Text("Ann"),
		"empty text":    model.Text(""),
		"unicode":       model.Text("héllo wörld"),
		"object":        model.Structured(bson.D{{Key: "sword", Value: int32(1)}, {Key: "bow", Value: "long"}}),
		"array":         model.Structured(bson.A{int32(1), "two", bson.D{{Key: "three", Value: 3.5}}}),
		"empty object":  model.Structured(bson.D{}),
		"bool":          model.Extended(true),
		"object id":     model.Extended(oid),
		"date":          model.Extended(primitive.NewDateTimeFromTime(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))),
		"decimal":       model.Extended(mustDecimal("12.50")),
		"nested arrays": model.Structured(bson.A{bson.A{}, bson.A{bson.D{}}}),
	}
}

func mustDecimal(s string) primitive.Decimal128 {
	d, err := primitive.ParseDecimal128(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRoundTrip(t *testing.T) {
	for name, v := range sampleValues() {
		t.Run(name, func(t *testing.T) {
			text := Encode(v)
			back, verr := Decode("field", text, v)
			require.Nil(t, verr, "decode failed for %q", text)
			assert.True(t, v.Equal(back), "round trip changed %s: %q", name, text)
		})
	}
}

func TestEncodeForms(t *testing.T) {
	assert.Equal(t, "", Encode(model.Null()))
	assert.Equal(t, "5", Encode(model.Int(5)))
	assert.Equal(t, "2.5", Encode(model.Float(2.5)))
	assert.Equal(t, "5", Encode(model.Float(5)))
	assert.Equal(t, "1e-09", Encode(model.Float(1e-9)))
	assert.Equal(t, "Ann", Encode(model.Text("Ann")))
	assert.Equal(t, "true", Encode(model.Extended(true)))

	inventory := model.Structured(bson.D{{Key: "sword", Value: int32(1)}, {Key: "shield", Value: int32(2)}})
	assert.Equal(t, "{\n  \"sword\": 1,\n  \"shield\": 2\n}", Encode(inventory))

	list := model.Structured(bson.A{"a", int32(1)})
	assert.Equal(t, "[\n  \"a\",\n  1\n]", Encode(list))
}

func TestDecodeNumber(t *testing.T) {
	original := model.IntWidth(5, model.Int32)

	v, verr := Decode("level", " 7 ", original)
	require.Nil(t, verr)
	assert.Equal(t, model.KindNumber, v.Kind)
	assert.Equal(t, int64(7), v.Number.Int)
	assert.Equal(t, model.Int32, v.Number.Width)

	v, verr = Decode("level", "3000000000", original)
	require.Nil(t, verr)
	assert.Equal(t, model.Int64, v.Number.Width)

	v, verr = Decode("level", "7.5", original)
	require.Nil(t, verr)
	assert.True(t, v.Number.IsFloat())
	assert.Equal(t, 7.5, v.Number.Float)

	v, verr = Decode("ratio", "3", model.Float(0.5))
	require.Nil(t, verr)
	assert.True(t, v.Number.IsFloat())
	assert.Equal(t, 3.0, v.Number.Float)

	for _, bad := range []string{"abc", "", "  ", "7a", "1,5"} {
		_, verr = Decode("level", bad, original)
		require.NotNil(t, verr, "expected %q to fail", bad)
		assert.Equal(t, "level", verr.Field)
		assert.Equal(t, ReasonExpectedNumber, verr.Reason)
	}
}

func TestDecodeStructured(t *testing.T) {
	original := model.Structured(bson.D{{Key: "sword", Value: int32(1)}})

	v, verr := Decode("inventory", `{"sword": 2, "shield": 1}`, original)
	require.Nil(t, verr)
	expected := model.Structured(bson.D{{Key: "sword", Value: int32(2)}, {Key: "shield", Value: int32(1)}})
	assert.True(t, expected.Equal(v))

	v, verr = Decode("inventory", `[1, 2]`, original)
	require.Nil(t, verr)
	assert.True(t, v.IsArray())

	for _, bad := range []string{`{"sword": }`, ``, `42`, `"text"`, `{"$oid": "507f1f77bcf86cd799439011"}`,
		`{"sword": 2}} junk`, `[1, 2]] [3]`, `{"sword": 2} {"shield": 1}`} {
		_, verr = Decode("inventory", bad, original)
		require.NotNil(t, verr, "expected %q to fail", bad)
		assert.Equal(t, ReasonMalformedStructured, verr.Reason)
		assert.Contains(t, verr.Error(), "inventory")
	}
}

func TestDecodeExtended(t *testing.T) {
	v, verr := Decode("active", "false", model.Extended(true))
	require.Nil(t, verr)
	assert.Equal(t, false, v.Tree)

	_, verr = Decode("active", "maybe", model.Extended(true))
	require.NotNil(t, verr)
	assert.Equal(t, ReasonMalformedExtended, verr.Reason)

	_, verr = Decode("active", "{}", model.Extended(true))
	require.NotNil(t, verr)

	_, verr = Decode("active", "true} false", model.Extended(true))
	require.NotNil(t, verr)
	assert.Equal(t, ReasonMalformedExtended, verr.Reason)
}

func TestDecodeTextAndNull(t *testing.T) {
	v, verr := Decode("nickname", "  Bob  ", model.Text("Ann"))
	require.Nil(t, verr)
	assert.Equal(t, model.Text("Bob"), v)

	v, verr = Decode("nickname", "12", model.Text("Ann"))
	require.Nil(t, verr)
	assert.Equal(t, model.KindText, v.Kind)

	v, verr = Decode("note", "   ", model.Null())
	require.Nil(t, verr)
	assert.Equal(t, model.KindNull, v.Kind)

	v, verr = Decode("note", "hello", model.Null())
	require.Nil(t, verr)
	assert.Equal(t, model.Text("hello"), v)
}

func TestDecodeOrText(t *testing.T) {
	v := DecodeOrText("level", "abc", model.Int(5))
	assert.Equal(t, model.Text("abc"), v)

	v = DecodeOrText("level", "9", model.Int(5))
	assert.Equal(t, int64(9), v.Number.Int)
}

func TestFormatNumberSpecials(t *testing.T) {
	assert.Equal(t, "NaN", Encode(model.Float(math.NaN())))
	v, verr := Decode("x", "NaN", model.Float(1))
	require.Nil(t, verr)
	assert.True(t, math.IsNaN(v.Number.Float))
}
