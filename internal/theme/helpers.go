package theme

import "strings"

// joinIDs/asStringSlice serialize list-valued columns as opaque
// comma-joined strings at the vectorstore boundary, per spec.md §6.
func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}

func asStringSlice(v any) []string {
	s := asString(v)
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return ""
}

func asBytes(v any) []byte {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		return b
	}
	return nil
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int:
		return b != 0
	case int64:
		return b != 0
	}
	return false
}
