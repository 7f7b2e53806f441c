// Package structs converts view bindings into Liquid render data.
package structs

import (
	"fmt"
	"reflect"
	"strings"
)

// Map converts a struct, or a pointer to one, into render data. Fields are
// keyed by their json tag name, or by field name when untagged. Fields tagged
// "-" and unexported fields are skipped; embedded structs are flattened.
func Map(in any) (map[string]any, error) {
	v := reflect.ValueOf(in)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("structs: cannot map %T", in)
	}

	out := make(map[string]any, v.NumField())
	collect(v, out)
	return out, nil
}

func collect(v reflect.Value, out map[string]any) {
	typ := v.Type()
	promoted := make(map[string]any)
	for i := 0; i < v.NumField(); i++ {
		fi := typ.Field(i)

		name, skip := fieldName(fi)
		if skip {
			continue
		}

		if fi.Anonymous && name == "" {
			fv := v.Field(i)
			if fv.Kind() == reflect.Pointer {
				if fv.IsNil() {
					continue
				}
				fv = fv.Elem()
			}
			if fv.Kind() == reflect.Struct {
				collect(fv, promoted)
				continue
			}
		}
		if !fi.IsExported() {
			continue
		}
		if name == "" {
			name = fi.Name
		}
		out[name] = v.Field(i).Interface()
	}

	// outer fields shadow promoted ones
	for k, val := range promoted {
		if _, ok := out[k]; !ok {
			out[k] = val
		}
	}
}

func fieldName(fi reflect.StructField) (name string, skip bool) {
	tag, ok := fi.Tag.Lookup("json")
	if !ok {
		return "", false
	}
	name = strings.Split(tag, ",")[0]
	return name, name == "-"
}
