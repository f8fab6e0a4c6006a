package storage

import (
	"go.mongodb.org/mongo-driver/bson"

	"docadmin/internal/model"
)

// BsonPatch is a MongoDB update document built from a partial update.
// It implements bson.Marshaler so it can be passed to UpdateOne directly.
type BsonPatch struct {
	// Set contains fields for the $set operator, in edit order
	Set bson.D `json:"set,omitempty"`
	// Unset contains fields for the $unset operator
	Unset bson.D `json:"unset,omitempty"`
}

// NewBsonPatch converts a partial update into update operators.
func NewBsonPatch(update model.PartialUpdate) (*BsonPatch, error) {
	patch := &BsonPatch{}

	for _, f := range update.Set {
		if f.Key == model.IDField {
			return nil, ErrIDInUpdate
		}
		patch.Set = append(patch.Set, bson.E{Key: f.Key, Value: f.Value.ToBSON()})
	}

	for _, key := range update.Unset {
		if key == model.IDField {
			return nil, ErrIDInUpdate
		}
		patch.Unset = append(patch.Unset, bson.E{Key: key, Value: ""})
	}

	return patch, nil
}

// MarshalBSON implements the bson.Marshaler interface.
func (p *BsonPatch) MarshalBSON() ([]byte, error) {
	return bson.Marshal(p.Document())
}

// Document returns the update in driver form.
func (p *BsonPatch) Document() bson.D {
	update := bson.D{}

	if len(p.Set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: p.Set})
	}

	if len(p.Unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: p.Unset})
	}

	return update
}

// IsEmpty returns true if the patch has no operations
func (p *BsonPatch) IsEmpty() bool {
	return len(p.Set) == 0 && len(p.Unset) == 0
}
