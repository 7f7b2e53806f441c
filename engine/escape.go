package engine

import (
	"reflect"
	"strings"
)

// htmlEscaper escapes string values before they reach a template.
var htmlEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`<`, "&lt;",
	`>`, "&gt;",
	`"`, "&#34;",
	`'`, "&#39;",
)

// escapeBindings replaces every string in b with its escaped form. Nested
// maps and slices are copied, never modified in place.
func escapeBindings(b map[string]any) {
	for k, v := range b {
		b[k] = escapeValue(v)
	}
}

// escapeValue escapes strings, and strings inside maps with string keys and
// slices. Structs and pointers are returned unchanged.
func escapeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return htmlEscaper.Replace(x)
	case []byte:
		return v
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = escapeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = escapeValue(e)
		}
		return out
	case []string:
		out := make([]string, len(x))
		for i, e := range x {
			out[i] = htmlEscaper.Replace(e)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(x))
		for k, e := range x {
			out[k] = htmlEscaper.Replace(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return htmlEscaper.Replace(rv.String())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = escapeValue(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = escapeValue(rv.Index(i).Interface())
		}
		return out
	}
	return v
}
