package util

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// ValidationError describes one argument that does not match a schema.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CreateSchema derives a JSON object schema from a struct's exported fields.
// Field names follow json tags; a "description" tag is copied; fields are
// required unless tagged omitempty or declared as pointers.
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	properties := make(map[string]any)
	required := make([]string, 0)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		name := field.Name
		if tagName, _, _ := strings.Cut(jsonTag, ","); tagName != "" {
			name = tagName
		}

		fieldSchema := map[string]any{"type": jsonType(field.Type)}
		if description := field.Tag.Get("description"); description != "" {
			fieldSchema["description"] = description
		}
		properties[name] = fieldSchema

		if !hasOmitEmpty(jsonTag) && field.Type.Kind() != reflect.Ptr {
			required = append(required, name)
		}
	}

	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// RequiredFields returns the schema's "required" list whether it was built
// in Go ([]string) or decoded from JSON ([]any).
func RequiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ValidateParameters checks required fields, property types and string
// enums. Unknown fields are allowed.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	for _, field := range RequiredFields(schema) {
		if _, ok := params[field]; !ok {
			return &ValidationError{Field: field, Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for field, value := range params {
		prop, ok := properties[field].(map[string]any)
		if !ok {
			continue
		}
		expected, _ := prop["type"].(string)
		if !isValidType(value, expected) {
			return &ValidationError{
				Field:   field,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expected, value),
			}
		}
		if enum := enumValues(prop["enum"]); len(enum) > 0 {
			if s, ok := value.(string); ok && !slices.Contains(enum, s) {
				return &ValidationError{
					Field:   field,
					Value:   value,
					Message: fmt.Sprintf("must be one of %s", strings.Join(enum, ", ")),
				}
			}
		}
	}
	return nil
}

func enumValues(v any) []string {
	switch e := v.(type) {
	case []string:
		return e
	case []any:
		out := make([]string, 0, len(e))
		for _, x := range e {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "string"
	}
}

func hasOmitEmpty(tag string) bool {
	_, opts, _ := strings.Cut(tag, ",")
	for _, opt := range strings.Split(opts, ",") {
		if strings.TrimSpace(opt) == "omitempty" {
			return true
		}
	}
	return false
}

func isValidType(value any, expected string) bool {
	if value == nil {
		return true
	}
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
