package editor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"docadmin/internal/codec"
	"docadmin/internal/identity"
	"docadmin/internal/model"
)

var (
	// ErrMalformedInput matches import errors caused by unparsable text
	ErrMalformedInput = errors.New("malformed import input")

	// ErrIdentityMismatch matches import errors caused by a foreign identifier
	ErrIdentityMismatch = errors.New("imported identifier does not match the open document")
)

// ImportErrorKind classifies a failed import.
type ImportErrorKind int

const (
	MalformedInput ImportErrorKind = iota
	IdentityMismatch
)

// String returns the kind name
func (k ImportErrorKind) String() string {
	switch k {
	case MalformedInput:
		return "MalformedInput"
	case IdentityMismatch:
		return "IdentityMismatch"
	default:
		return fmt.Sprintf("ImportErrorKind(%d)", int(k))
	}
}

// ImportError is returned when an imported document is rejected.
// The edit buffer is never modified when an ImportError is returned.
type ImportError struct {
	Kind       ImportErrorKind
	ImportedID string
	CurrentID  string
	Err        error
}

// Error implements the error interface
func (e *ImportError) Error() string {
	if e.Kind == IdentityMismatch {
		return fmt.Sprintf("%v: imported %q, open %q", ErrIdentityMismatch, e.ImportedID, e.CurrentID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", ErrMalformedInput, e.Err)
	}
	return ErrMalformedInput.Error()
}

// Is matches the kind sentinels
func (e *ImportError) Is(target error) bool {
	switch target {
	case ErrMalformedInput:
		return e.Kind == MalformedInput
	case ErrIdentityMismatch:
		return e.Kind == IdentityMismatch
	}
	return false
}

// Unwrap returns the parse error, if any
func (e *ImportError) Unwrap() error {
	return e.Err
}

// Shell literals accepted in imported text and their Extended JSON replacements.
// Patterns are anchored; rewriteShellLiterals tries them outside string values only.
var shellLiterals = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`^ObjectI[dD]\(\s*["']([0-9a-fA-F]{24})["']\s*\)`), `{"$$oid":"$1"}`},
	{regexp.MustCompile(`^ISODate\(\s*["']([^"'\\]*)["']\s*\)`), `{"$$date":"$1"}`},
	{regexp.MustCompile(`^NumberLong\(\s*["']?(-?\d+)["']?\s*\)`), `{"$$numberLong":"$1"}`},
	{regexp.MustCompile(`^NumberInt\(\s*["']?(-?\d+)["']?\s*\)`), `{"$$numberInt":"$1"}`},
	{regexp.MustCompile(`^NumberDecimal\(\s*["']([^"'\\]*)["']\s*\)`), `{"$$numberDecimal":"$1"}`},
}

func rewriteShellLiterals(text string) string {
	var out strings.Builder
	out.Grow(len(text))

	for i := 0; i < len(text); {
		c := text[i]
		if c == '"' {
			end := stringEnd(text, i)
			out.WriteString(text[i:end])
			i = end
			continue
		}
		if i == 0 || !isWordByte(text[i-1]) {
			if n, replacement, ok := matchShellLiteral(text[i:]); ok {
				out.WriteString(replacement)
				i += n
				continue
			}
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}

func matchShellLiteral(rest string) (int, string, bool) {
	for _, lit := range shellLiterals {
		loc := lit.pattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			continue
		}
		return loc[1], string(lit.pattern.ExpandString(nil, lit.replacement, rest, loc)), true
	}
	return 0, "", false
}

// stringEnd returns the index just past the JSON string starting at text[start].
func stringEnd(text string, start int) int {
	for j := start + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case '"':
			return j + 1
		}
	}
	return len(text)
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// ParseSnapshot parses exported or hand-written document text.
// Relaxed and canonical Extended JSON are accepted, as are the common shell
// constructors such as ObjectId("...") and ISODate("...").
func ParseSnapshot(text string) (bson.D, error) {
	parsed, err := model.UnmarshalRelaxed([]byte(rewriteShellLiterals(text)))
	if err != nil {
		return nil, err
	}
	doc, ok := parsed.(bson.D)
	if !ok {
		return nil, fmt.Errorf("expected a document, got %T", parsed)
	}
	return doc, nil
}

// ExportSnapshot builds the exportable form of the open document: the
// canonical identifier plus every tracked field decoded from the buffer.
// Fields that fail to decode are exported as their raw text.
func ExportSnapshot(doc model.Document, buffer *EditBuffer) model.Document {
	var id interface{} = identity.Normalize(doc.ID)
	if id == "" {
		id = doc.ID
	}

	snapshot := model.Document{ID: id, Fields: make([]model.Field, 0, buffer.Len())}
	for _, key := range buffer.keys {
		text := buffer.text[key]
		orig, ok := doc.Get(key)
		if !ok {
			snapshot.Fields = append(snapshot.Fields, model.Field{Key: key, Value: model.Text(text)})
			continue
		}
		snapshot.Fields = append(snapshot.Fields, model.Field{Key: key, Value: codec.DecodeOrText(key, text, orig)})
	}
	return snapshot
}

// FormatSnapshot renders a snapshot as indented relaxed Extended JSON with _id first.
func FormatSnapshot(snapshot model.Document) (string, error) {
	return codec.Pretty(snapshot.ToBSON())
}

// ImportSnapshot merges imported text into buffer after verifying that it
// describes the open document. Only fields the buffer already tracks are
// taken; others are ignored.
func ImportSnapshot(text string, doc model.Document, buffer *EditBuffer) error {
	parsed, err := ParseSnapshot(text)
	if err != nil {
		return &ImportError{Kind: MalformedInput, Err: err}
	}

	idKey, importedID := importedIdentifier(parsed)
	if !identity.Matches(importedID, doc.ID) {
		return &ImportError{
			Kind:       IdentityMismatch,
			ImportedID: identity.Normalize(importedID),
			CurrentID:  identity.Normalize(doc.ID),
		}
	}

	for _, e := range parsed {
		if e.Key == idKey || e.Key == model.IDField || !buffer.Has(e.Key) {
			continue
		}
		buffer.text[e.Key] = codec.Encode(model.FromBSON(e.Value))
	}
	return nil
}

// importedIdentifier returns the key and value of the identifier: _id, else id.
func importedIdentifier(d bson.D) (string, interface{}) {
	for _, key := range []string{model.IDField, "id"} {
		for _, e := range d {
			if e.Key == key {
				return key, e.Value
			}
		}
	}
	return "", nil
}
