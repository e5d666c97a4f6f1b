package binding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// HeaderMap flattens a marshaled header object into string values for native
// transport headers. Strings are kept as is; other values keep their JSON text.
func HeaderMap(h Marshaler) (map[string]string, error) {
	data, err := h.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal headers: %w", err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("headers must marshal to a JSON object: %w", err)
	}

	out := make(map[string]string, len(obj))
	for k, raw := range obj {
		if bytes.Equal(raw, []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(raw)
	}
	return out, nil
}

// HeaderJSON rebuilds a JSON object from native headers for the generated
// header unmarshal function. Values that are JSON numbers, booleans, objects
// or arrays are embedded as such; everything else becomes a JSON string.
func HeaderJSON(headers map[string]string) []byte {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		name, _ := json.Marshal(k)
		b.Write(name)
		b.WriteByte(':')
		v := headers[k]
		if isJSONLiteral(v) {
			b.WriteString(v)
			continue
		}
		quoted, _ := json.Marshal(v)
		b.Write(quoted)
	}
	b.WriteByte('}')
	return b.Bytes()
}

func isJSONLiteral(v string) bool {
	if v == "" || v == "null" {
		return false
	}
	switch v[0] {
	case '{', '[', '-', 't', 'f', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
	default:
		return false
	}
	var x any
	if err := json.Unmarshal([]byte(v), &x); err != nil {
		return false
	}
	_, isString := x.(string)
	return !isString
}
