package services

import (
	"encoding/json"
	"math"
	"strings"

	"gorm.io/datatypes"

	"alfredoptarigan/job-orchestrator/internal/apperr"
)

// extractJSON strips markdown fences and slices out the outermost object.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// fields is a decoded completion output. Accessors report schema violations
// as SchemaError naming the stage and the field.
type fields struct {
	stage  string
	values map[string]interface{}
}

func parseFields(stage, output string) (*fields, error) {
	var values map[string]interface{}
	if err := json.Unmarshal([]byte(extractJSON(output)), &values); err != nil {
		return nil, apperr.Schemaf("%s output is not a JSON object: %v", stage, err)
	}
	if values == nil {
		return nil, apperr.Schemaf("%s output is not a JSON object", stage)
	}
	return &fields{stage: stage, values: values}, nil
}

func (f *fields) requireString(key string) (string, error) {
	s, ok := f.values[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", apperr.Schemaf("%s: %s must be a non-empty string", f.stage, key)
	}
	return strings.TrimSpace(s), nil
}

func (f *fields) optional(key string) string {
	s, _ := f.values[key].(string)
	return strings.TrimSpace(s)
}

func (f *fields) requireArray(key string) ([]interface{}, error) {
	arr, ok := f.values[key].([]interface{})
	if !ok {
		return nil, apperr.Schemaf("%s: %s must be an array", f.stage, key)
	}
	return arr, nil
}

func (f *fields) requireNonEmptyArray(key string) ([]interface{}, error) {
	arr, err := f.requireArray(key)
	if err != nil {
		return nil, err
	}
	if len(arr) == 0 {
		return nil, apperr.Schemaf("%s: %s must not be empty", f.stage, key)
	}
	return arr, nil
}

// requireNumber accepts JSON numbers and numeric strings.
func (f *fields) requireNumber(key string) (float64, error) {
	switch v := f.values[key].(type) {
	case float64:
		return v, nil
	case string:
		var n float64
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &n); err == nil {
			return n, nil
		}
	}
	return 0, apperr.Schemaf("%s: %s must be a number", f.stage, key)
}

func (f *fields) intOr(key string, fallback int) int {
	n, err := f.requireNumber(key)
	if err != nil {
		return fallback
	}
	return int(math.Round(n))
}

// flag is false for anything but a JSON true or the string "true".
func (f *fields) flag(key string) bool {
	switch v := f.values[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	}
	return false
}

// requirePresent accepts any non-empty string, array or object.
func (f *fields) requirePresent(key string) (interface{}, error) {
	v, ok := f.values[key]
	if ok {
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				return t, nil
			}
		case []interface{}:
			if len(t) > 0 {
				return t, nil
			}
		case map[string]interface{}:
			if len(t) > 0 {
				return t, nil
			}
		}
	}
	return nil, apperr.Schemaf("%s: %s must not be empty", f.stage, key)
}

// raw re-encodes a field for a JSON column. Absent fields stay NULL.
func (f *fields) raw(key string) datatypes.JSON {
	v, ok := f.values[key]
	if !ok || v == nil {
		return nil
	}
	return toJSON(v)
}

func jsonArray(values []interface{}) datatypes.JSON {
	if values == nil {
		values = []interface{}{}
	}
	return toJSON(values)
}

func stringsOf(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, s)
			}
		default:
			if data, err := json.Marshal(t); err == nil {
				out = append(out, string(data))
			}
		}
	}
	return out
}
