package marshal

import (
	"reflect"
	"strings"
	"unicode"
)

// findGoField matches by: 1) wit:"name" tag, 2) case-insensitive, 3) kebab or snake to camel.
func findGoField(goType reflect.Type, witName string) (reflect.StructField, bool) {
	for i := 0; i < goType.NumField(); i++ {
		field := goType.Field(i)
		if !field.IsExported() {
			continue
		}

		if tag := field.Tag.Get("wit"); tag != "" {
			if tag == "-" {
				continue
			}
			if tag == witName {
				return field, true
			}
		}

		if strings.EqualFold(field.Name, witName) {
			return field, true
		}

		if snake := toSnakeCase(field.Name); snake == witName || strings.ReplaceAll(snake, "_", "-") == witName {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

// recordField returns the value for a record field from a struct or a map.
func recordField(v reflect.Value, name string) (reflect.Value, bool) {
	switch v.Kind() {
	case reflect.Struct:
		sf, ok := findGoField(v.Type(), name)
		if !ok {
			return reflect.Value{}, false
		}
		return v.FieldByIndex(sf.Index), true
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		if fv := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key())); fv.IsValid() {
			return fv, true
		}
		iter := v.MapRange()
		for iter.Next() {
			if strings.EqualFold(iter.Key().String(), name) {
				return iter.Value(), true
			}
		}
	}
	return reflect.Value{}, false
}

// toSnakeCase converts PascalCase to snake_case.
// Handles acronyms: HTTPStatus -> http_status
func toSnakeCase(s string) string {
	runes := []rune(s)
	var result strings.Builder

	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prevLower := unicode.IsLower(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					result.WriteByte('_')
				}
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
