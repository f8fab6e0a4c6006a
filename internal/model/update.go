package model

// PartialUpdate is the minimal change set for one save.
// Set holds new values in buffer order; Unset holds fields removed during the session.
// It never contains IDField.
type PartialUpdate struct {
	Set   []Field
	Unset []string
}

// IsEmpty reports whether the update would change nothing.
func (u PartialUpdate) IsEmpty() bool {
	return len(u.Set) == 0 && len(u.Unset) == 0
}

// Len returns the number of fields touched by the update.
func (u PartialUpdate) Len() int {
	return len(u.Set) + len(u.Unset)
}

// Lookup returns the new value of key if the update sets it.
func (u PartialUpdate) Lookup(key string) (Value, bool) {
	for _, f := range u.Set {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Keys returns the names of the fields the update sets.
func (u PartialUpdate) Keys() []string {
	keys := make([]string, len(u.Set))
	for i, f := range u.Set {
		keys[i] = f.Key
	}
	return keys
}

// Apply writes the update into doc.
func (u PartialUpdate) Apply(doc *Document) {
	for _, f := range u.Set {
		doc.Set(f.Key, f.Value)
	}
	for _, key := range u.Unset {
		doc.Remove(key)
	}
}
