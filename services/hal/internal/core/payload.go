package core

import (
	"encoding/json"

	"flowcode-go/errcode"
)

// As[T] converts a control or params payload to T. It accepts T, *T, nil
// (the zero T) and JSON-shaped input: []byte, string, json.RawMessage, or
// map[string]any as produced by JSON/YAML decoders.
func As[T any](v any) (T, errcode.Code) {
	var zero T
	switch t := v.(type) {
	case nil:
		return zero, ""
	case T:
		return t, ""
	case *T:
		if t == nil {
			return zero, ""
		}
		return *t, ""
	case map[string]any, []byte, string, json.RawMessage:
		var out T
		if err := decodeJSON(t, &out); err != nil {
			return zero, errcode.InvalidPayload
		}
		return out, ""
	default:
		return zero, errcode.InvalidPayload
	}
}

func decodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case json.RawMessage:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
