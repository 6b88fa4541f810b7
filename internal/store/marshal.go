package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/instrumentd/internal/ir"
)

// marshalObject converts a flat object to canonical JSON TEXT for storage.
func marshalObject(obj map[string]any) (string, error) {
	if obj == nil {
		obj = map[string]any{}
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal object: %w", err)
	}
	return string(data), nil
}

// unmarshalObject parses JSON TEXT written by marshalObject. Numbers come
// back as int64, so a read record hashes to the id it was stored under.
func unmarshalObject(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	for k, v := range obj {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("unmarshal object: field %q: %w", k, err)
		}
		obj[k] = i
	}
	return obj, nil
}
