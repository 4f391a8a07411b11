// SPDX-License-Identifier: MPL-2.0

package script

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/expand"
)

const (
	// KindFunction is a callable shell function.
	KindFunction Kind = iota + 1
	// KindText is a scalar string.
	KindText
	// KindNumber is a scalar that parses as a number.
	KindNumber
	// KindStructured is an indexed or associative array.
	KindStructured
)

type (
	// Kind tags the variant held by a Value.
	Kind int

	// Value is the value of one binding.
	Value struct {
		kind   Kind
		text   string
		number float64
		list   []string
		fields map[string]string
	}

	// Binding is a named value.
	Binding struct {
		Name  string
		Value Value
	}
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindStructured:
		return "structured"
	default:
		return "unknown"
	}
}

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number returns a numeric value.
func Number(f float64) Value {
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'g', -1, 64), number: f}
}

// List returns a structured value holding an indexed array.
func List(items ...string) Value {
	return Value{kind: KindStructured, list: slices.Clone(items)}
}

// Map returns a structured value holding an associative array.
func Map(fields map[string]string) Value {
	return Value{kind: KindStructured, fields: maps.Clone(fields)}
}

// Function returns a function value with the given shell body. A body not
// already enclosed in braces or parentheses is wrapped in a brace group.
func Function(body string) Value {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "{") && !strings.HasPrefix(body, "(") {
		body = "{\n" + body + "\n}"
	}
	return Value{kind: KindFunction, text: body}
}

// Kind reports the variant.
func (v Value) Kind() Kind { return v.kind }

// Number returns the numeric value and whether v is a number.
func (v Value) Number() (float64, bool) { return v.number, v.kind == KindNumber }

// List returns the items of an indexed array.
func (v Value) List() []string { return slices.Clone(v.list) }

// Fields returns the entries of an associative array.
func (v Value) Fields() map[string]string { return maps.Clone(v.fields) }

// String renders the value: scalars as their text, functions as their body,
// arrays in shell array syntax.
func (v Value) String() string {
	if v.kind != KindStructured {
		return v.text
	}
	var sb strings.Builder
	sb.WriteByte('(')
	if v.fields != nil {
		for i, k := range slices.Sorted(maps.Keys(v.fields)) {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString("[" + quote(k) + "]=" + quote(v.fields[k]))
		}
	} else {
		for i, item := range v.list {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(quote(item))
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// fromVariable converts an interpreter variable to a Value.
func fromVariable(vr expand.Variable) Value {
	switch vr.Kind {
	case expand.Indexed:
		return List(vr.List...)
	case expand.Associative:
		return Map(vr.Map)
	default:
		s := vr.String()
		if f, ok := parseNumber(s); ok {
			return Value{kind: KindNumber, text: s, number: f}
		}
		return Text(s)
	}
}

// parseNumber accepts decimal literals only, so words like "inf" or "nan"
// stay text.
func parseNumber(s string) (float64, bool) {
	if s == "" || strings.Trim(s, "0123456789+-.eE") != "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}
