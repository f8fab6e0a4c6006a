// Package editor implements edit sessions over a single document: the text
// buffer, change detection, import/export reconciliation and saving.
package editor

import (
	"errors"

	"docadmin/internal/codec"
	"docadmin/internal/model"
)

// ErrUnknownField is returned when a field is not tracked by the buffer
var ErrUnknownField = errors.New("field is not tracked by the edit buffer")

// EditBuffer holds the display text of every editable field of one document.
// The identifier is never tracked. Field order follows the document.
type EditBuffer struct {
	keys []string
	text map[string]string
}

// NewBuffer seeds a buffer with the encoded value of every field of doc.
func NewBuffer(doc model.Document) *EditBuffer {
	b := &EditBuffer{
		keys: make([]string, 0, doc.Len()),
		text: make(map[string]string, doc.Len()),
	}
	for _, f := range doc.Fields {
		b.keys = append(b.keys, f.Key)
		b.text[f.Key] = codec.Encode(f.Value)
	}
	return b
}

// Get returns the current text of key.
func (b *EditBuffer) Get(key string) (string, bool) {
	text, ok := b.text[key]
	return text, ok
}

// Set replaces the text of a tracked field.
func (b *EditBuffer) Set(key, text string) error {
	if key == model.IDField {
		return model.ErrImmutableID
	}
	if _, ok := b.text[key]; !ok {
		return ErrUnknownField
	}
	b.text[key] = text
	return nil
}

// Has reports whether key is tracked.
func (b *EditBuffer) Has(key string) bool {
	_, ok := b.text[key]
	return ok
}

// Keys returns the tracked fields in order.
func (b *EditBuffer) Keys() []string {
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

// Len returns the number of tracked fields.
func (b *EditBuffer) Len() int {
	return len(b.keys)
}

// Clone returns an independent copy.
func (b *EditBuffer) Clone() *EditBuffer {
	out := &EditBuffer{
		keys: b.Keys(),
		text: make(map[string]string, len(b.text)),
	}
	for k, v := range b.text {
		out.text[k] = v
	}
	return out
}

func (b *EditBuffer) remove(key string) bool {
	if _, ok := b.text[key]; !ok {
		return false
	}
	delete(b.text, key)
	for i, k := range b.keys {
		if k == key {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			break
		}
	}
	return true
}
