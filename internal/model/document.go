package model

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// IDField is the key the store uses for the document identifier.
const IDField = "_id"

var (
	// ErrMissingID is returned when a stored document has no identifier
	ErrMissingID = errors.New("document has no _id field")

	// ErrImmutableID is returned when a caller tries to edit or remove the identifier
	ErrImmutableID = errors.New("the _id field cannot be changed")
)

// Field is one named value of a document.
type Field struct {
	Key   string
	Value Value
}

// Document is a stored record: an identifier plus ordered, uniquely named fields.
// Fields never contains IDField.
type Document struct {
	// ID is the raw identifier exactly as the store returned it
	ID     interface{}
	Fields []Field
}

// NewDocument builds a document from an identifier and fields.
// Later duplicates of a key replace earlier ones.
func NewDocument(id interface{}, fields ...Field) Document {
	doc := Document{ID: id}
	for _, f := range fields {
		if f.Key == IDField {
			continue
		}
		doc.Set(f.Key, f.Value)
	}
	return doc
}

// DocumentFromBSON converts a decoded store document.
func DocumentFromBSON(d bson.D) (Document, error) {
	doc := Document{Fields: make([]Field, 0, len(d))}
	hasID := false
	for _, e := range d {
		if e.Key == IDField {
			doc.ID = e.Value
			hasID = true
			continue
		}
		doc.Set(e.Key, FromBSON(e.Value))
	}
	if !hasID {
		return Document{}, ErrMissingID
	}
	return doc, nil
}

// ToBSON converts the document to the driver form with _id first.
func (d Document) ToBSON() bson.D {
	out := make(bson.D, 0, len(d.Fields)+1)
	out = append(out, bson.E{Key: IDField, Value: d.ID})
	for _, f := range d.Fields {
		out = append(out, bson.E{Key: f.Key, Value: f.Value.ToBSON()})
	}
	return out
}

// Len returns the number of fields, not counting the identifier.
func (d Document) Len() int {
	return len(d.Fields)
}

// Keys returns the field names in document order.
func (d Document) Keys() []string {
	keys := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Get returns the value stored under key.
func (d Document) Get(key string) (Value, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Set replaces the value of key or appends a new field.
func (d *Document) Set(key string, v Value) {
	for i := range d.Fields {
		if d.Fields[i].Key == key {
			d.Fields[i].Value = v
			return
		}
	}
	d.Fields = append(d.Fields, Field{Key: key, Value: v})
}

// Remove drops key and reports whether it was present.
func (d *Document) Remove(key string) bool {
	for i := range d.Fields {
		if d.Fields[i].Key == key {
			d.Fields = append(d.Fields[:i], d.Fields[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy that shares no mutable state with d.
func (d Document) Clone() Document {
	out := Document{ID: d.ID, Fields: make([]Field, len(d.Fields))}
	for i, f := range d.Fields {
		out.Fields[i] = Field{Key: f.Key, Value: f.Value.Clone()}
	}
	return out
}

// String renders the document for logs.
func (d Document) String() string {
	data, err := bson.MarshalExtJSON(d.ToBSON(), false, false)
	if err != nil {
		return fmt.Sprintf("Document{%v, %d fields}", d.ID, len(d.Fields))
	}
	return string(data)
}
