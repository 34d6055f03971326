package webhook

import "encoding/json"

// decodeObject accepts an object or a JSON string encoding one.
func decodeObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(t), &obj); err != nil || obj == nil {
			return nil, false
		}
		return obj, true
	default:
		return nil, false
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
