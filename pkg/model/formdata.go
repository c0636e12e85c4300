package model

import (
	"fmt"
	"strings"
)

// FormData maps field names to their current value. Values are either string
// or bool; anything else is normalised through Normalize before it is stored.
type FormData map[string]any

// Normalize coerces an arbitrary decoded value into the string|bool domain.
// Nil becomes the empty string.
func Normalize(value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a shallow copy; values are immutable scalars so the copy is
// independent of the receiver.
func (d FormData) Clone() FormData {
	out := make(FormData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Set stores a normalised value.
func (d FormData) Set(name string, value any) {
	d[name] = Normalize(value)
}

// Has reports whether name holds a value.
func (d FormData) Has(name string) bool {
	_, ok := d[name]
	return ok
}

// String returns the value coerced to a string: bools become "true" or
// "false", absent keys become "".
func (d FormData) String(name string) string {
	return Stringify(d[name])
}

// Stringify coerces a stored value to its string form.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}

// IsBlank reports whether a stored value counts as "no answer": absent, the
// empty (or whitespace-only) string, or false.
func IsBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case bool:
		return !v
	default:
		return strings.TrimSpace(fmt.Sprint(v)) == ""
	}
}

// Empty reports whether every value in d is blank.
func (d FormData) Empty() bool {
	for _, v := range d {
		if !IsBlank(v) {
			return false
		}
	}
	return true
}
