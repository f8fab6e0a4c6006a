package editor

import (
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"

	"docadmin/internal/codec"
	"docadmin/internal/model"
)

// ValidationErrors lists every field whose edited text could not be decoded, in buffer order.
type ValidationErrors []*codec.ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, verr := range e {
		parts[i] = verr.Error()
	}
	if len(e) == 1 {
		return "invalid field " + parts[0]
	}
	return fmt.Sprintf("%d invalid fields: %s", len(e), strings.Join(parts, "; "))
}

// Fields returns the names of the offending fields.
func (e ValidationErrors) Fields() []string {
	fields := make([]string, len(e))
	for i, verr := range e {
		fields[i] = verr.Field
	}
	return fields
}

// Diff compares every buffered text with the encoding of the original value
// and decodes the fields that changed.
//
// Decode failures do not stop the scan; all of them are returned. The update
// must not be written unless the error list is empty. Diff panics if the
// buffer tracks a field the original does not have.
func Diff(buffer *EditBuffer, original model.Document) (model.PartialUpdate, ValidationErrors) {
	var update model.PartialUpdate
	var errs ValidationErrors

	for _, key := range buffer.keys {
		orig, ok := original.Get(key)
		if !ok {
			panic(fmt.Sprintf("editor: buffer field %q is missing from the document", key))
		}

		text := buffer.text[key]
		if text == codec.Encode(orig) {
			continue
		}

		v, verr := codec.Decode(key, text, orig)
		if verr != nil {
			errs = append(errs, verr)
			continue
		}
		update.Set = append(update.Set, model.Field{Key: key, Value: v})
	}

	return update, errs
}

// MergePatch renders the effect of update on original as an RFC 7396 merge patch.
func MergePatch(original model.Document, update model.PartialUpdate) ([]byte, error) {
	before, err := model.MarshalRelaxed(original.ToBSON())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal original document: %w", err)
	}

	modified := original.Clone()
	update.Apply(&modified)
	after, err := model.MarshalRelaxed(modified.ToBSON())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal modified document: %w", err)
	}

	patch, err := jsonpatch.CreateMergePatch(before, after)
	if err != nil {
		return nil, fmt.Errorf("failed to create merge patch: %w", err)
	}
	return patch, nil
}
