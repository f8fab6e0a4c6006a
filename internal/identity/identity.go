// Package identity reduces the many ways a document identifier can be written
// to one comparable token.
//
// Identifiers reach the editor as driver object ids, as wrapper documents such
// as {"$oid": "..."}, and as hex strings decorated with shell syntax such as
// ObjectId("...") or surrounding quotes. Normalize strips that decoration and
// Matches compares the results. Strings that do not wrap a hex literal are
// compared as written.
package identity

import (
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"docadmin/internal/model"
)

// wrapperKeys are the keys a wrapper document may carry its identifier under, in priority order.
var wrapperKeys = []string{"$oid", "_id", "id"}

// maxUnwrap bounds how many layers of decoration are peeled from a string.
const maxUnwrap = 8

// Normalize returns the canonical token for a raw identifier.
// An empty token means the identifier could not be read.
func Normalize(raw interface{}) string {
	return normalize(raw, 0)
}

// Matches reports whether two raw identifiers name the same document.
// Identifiers that normalize to an empty token match nothing.
func Matches(a, b interface{}) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}

func normalize(raw interface{}, depth int) string {
	if depth > maxUnwrap {
		return ""
	}

	switch v := raw.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return v.Hex()
	case *primitive.ObjectID:
		if v == nil {
			return ""
		}
		return v.Hex()
	case string:
		return normalizeString(v, depth)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bson.D:
		for _, key := range wrapperKeys {
			for _, e := range v {
				if e.Key == key {
					return normalize(e.Value, depth+1)
				}
			}
		}
		return ""
	case bson.M:
		return normalizeMap(v, depth)
	case map[string]interface{}:
		return normalizeMap(v, depth)
	case fmt.Stringer:
		return normalizeString(v.String(), depth)
	default:
		return ""
	}
}

func normalizeMap(m map[string]interface{}, depth int) string {
	for _, key := range wrapperKeys {
		if inner, ok := m[key]; ok {
			return normalize(inner, depth+1)
		}
	}
	return ""
}

// normalizeString strips shell decoration around an object id hex literal.
// Any other string is its own token, apart from surrounding whitespace.
func normalizeString(s string, depth int) string {
	s = strings.TrimSpace(s)

	// Wrapper document written as JSON text
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		inner, err := model.UnmarshalRelaxed([]byte(s))
		if err != nil {
			return ""
		}
		return normalize(inner, depth+1)
	}

	if hex, ok := peelHex(s); ok {
		return hex
	}
	return s
}

// peelHex removes quotes and constructor calls layer by layer and reports
// whether a 24 digit hex literal is left. Decoration around nothing yields
// an empty token.
func peelHex(s string) (string, bool) {
	for i := 0; i < maxUnwrap; i++ {
		if s == "" || isObjectIDHex(s) {
			return s, true
		}
		next := unquote(s)
		if inner, ok := unwrapCall(next); ok {
			next = inner
		}
		next = strings.TrimSpace(next)
		if next == s {
			return "", false
		}
		s = next
	}
	return "", false
}

func isObjectIDHex(s string) bool {
	if len(s) != 24 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// unquote strips one pair of matching quotes, unescaping JSON-style strings.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first != last {
		return s
	}
	switch first {
	case '"':
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
		return s[1 : len(s)-1]
	case '\'', '`':
		return s[1 : len(s)-1]
	}
	return s
}

// unwrapCall strips a constructor call such as ObjectId("...") and returns its argument.
func unwrapCall(s string) (string, bool) {
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return "", false
	}
	name := s[:open]
	for i, r := range name {
		isLetter := r == '_' || r == '.' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isLetter && !(isDigit && i > 0) {
			return "", false
		}
	}
	return s[open+1 : len(s)-1], true
}
