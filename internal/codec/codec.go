// Package codec turns field values into editable text and edited text back
// into typed values.
//
// The original value of a field decides how its edited text is read back:
// numbers must stay numeric, structured and extended values are re-parsed as
// relaxed Extended JSON, and everything else is taken as text.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"docadmin/internal/model"
)

// Validation failure reasons.
const (
	ReasonMalformedStructured = "malformed structured value"
	ReasonMalformedExtended   = "malformed extended value"
	ReasonExpectedNumber      = "expected numeric value"
)

// Indent is the indentation used for structured values.
const Indent = "  "

// ValidationError reports a field whose edited text cannot be stored.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap returns the underlying parse error
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Encode renders a value as display text.
func Encode(v model.Value) string {
	switch v.Kind {
	case model.KindNull:
		return ""
	case model.KindNumber:
		return formatNumber(v.Number)
	case model.KindText:
		return v.Text
	case model.KindStructured, model.KindExtended:
		text, err := pretty(v.Tree)
		if err != nil {
			// Only unmarshalable driver types end up here
			return fmt.Sprint(v.Tree)
		}
		return text
	default:
		panic(fmt.Sprintf("codec: unhandled value kind %s", v.Kind))
	}
}

// Decode reads edited text back into a value of the same shape as original.
func Decode(field, text string, original model.Value) (model.Value, *ValidationError) {
	switch original.Kind {
	case model.KindStructured:
		tree, err := model.UnmarshalRelaxed([]byte(text))
		if err != nil {
			return model.Value{}, &ValidationError{Field: field, Reason: ReasonMalformedStructured, Err: err}
		}
		v := model.FromBSON(tree)
		if v.Kind != model.KindStructured {
			return model.Value{}, &ValidationError{Field: field, Reason: ReasonMalformedStructured,
				Err: fmt.Errorf("expected an object or array, got %s", v.Kind)}
		}
		return v, nil

	case model.KindExtended:
		raw, err := model.UnmarshalRelaxed([]byte(text))
		if err != nil {
			return model.Value{}, &ValidationError{Field: field, Reason: ReasonMalformedExtended, Err: err}
		}
		v := model.FromBSON(raw)
		if v.Kind != model.KindExtended {
			return model.Value{}, &ValidationError{Field: field, Reason: ReasonMalformedExtended,
				Err: fmt.Errorf("expected an extended scalar, got %s", v.Kind)}
		}
		return v, nil

	case model.KindNumber:
		n, err := parseNumber(strings.TrimSpace(text), original.Number)
		if err != nil {
			return model.Value{}, &ValidationError{Field: field, Reason: ReasonExpectedNumber, Err: err}
		}
		return model.Value{Kind: model.KindNumber, Number: n}, nil

	case model.KindNull:
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return model.Null(), nil
		}
		return model.Text(trimmed), nil

	case model.KindText:
		return model.Text(strings.TrimSpace(text)), nil

	default:
		panic(fmt.Sprintf("codec: unhandled value kind %s", original.Kind))
	}
}

// DecodeOrText decodes text and falls back to a text value when decoding fails.
func DecodeOrText(field, text string, original model.Value) model.Value {
	v, verr := Decode(field, text, original)
	if verr != nil {
		return model.Text(text)
	}
	return v
}

// Pretty renders any BSON value as indented relaxed Extended JSON.
func Pretty(v interface{}) (string, error) {
	return pretty(v)
}

func pretty(v interface{}) (string, error) {
	compact, err := model.MarshalRelaxed(v)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", Indent); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatNumber(n model.Number) string {
	if !n.IsFloat() {
		return strconv.FormatInt(n.Int, 10)
	}
	abs := math.Abs(n.Float)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		return strconv.FormatFloat(n.Float, 'g', -1, 64)
	}
	return strconv.FormatFloat(n.Float, 'f', -1, 64)
}

func parseNumber(s string, original model.Number) (model.Number, error) {
	if s == "" {
		return model.Number{}, fmt.Errorf("empty number")
	}

	if original.IsFloat() {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Number{}, err
		}
		return model.Number{Width: model.Double, Float: f}, nil
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		width := original.Width
		if width == model.Int32 && (i < math.MinInt32 || i > math.MaxInt32) {
			width = model.Int64
		}
		return model.Number{Width: width, Int: i}, nil
	}

	// A fractional value typed into an integer field becomes a double
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return model.Number{}, err
	}
	return model.Number{Width: model.Double, Float: f}, nil
}
