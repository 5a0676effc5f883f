package jsondoc

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Document is a schema-less JSON object persisted in a TEXT column.
type Document map[string]interface{}

func (d Document) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	jsonBytes, err := json.Marshal(map[string]interface{}(d))
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (d *Document) Scan(v interface{}) error {
	if v == nil {
		*d = Document{}
		return nil
	}
	jsonBytes, err := scanBytes(v)
	if err != nil {
		return err
	}
	if len(jsonBytes) == 0 {
		*d = Document{}
		return nil
	}
	m := map[string]interface{}{}
	if err := json.Unmarshal(jsonBytes, &m); err != nil {
		return err
	}
	*d = m
	return nil
}

// Get reads a value by gjson path, e.g. "entity.id" or "documents.#.id".
func (d Document) Get(path string) gjson.Result {
	if d == nil {
		return gjson.Result{}
	}
	jsonBytes, err := json.Marshal(map[string]interface{}(d))
	if err != nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(jsonBytes, path)
}

// Object returns the nested object under key, or nil when absent or not an object.
func (d Document) Object(key string) Document {
	if d == nil {
		return nil
	}
	if m, ok := d[key].(map[string]interface{}); ok {
		return m
	}
	if m, ok := d[key].(Document); ok {
		return m
	}
	return nil
}

func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return deepCopy(map[string]interface{}(d)).(map[string]interface{})
}

// Raw is an opaque JSON value of any shape.
type Raw []byte

func (r Raw) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *Raw) UnmarshalJSON(data []byte) error {
	if r == nil {
		return fmt.Errorf("jsondoc.Raw: UnmarshalJSON on nil pointer")
	}
	*r = append((*r)[0:0], data...)
	return nil
}

func (r Raw) Value() (driver.Value, error) {
	if len(r) == 0 || string(r) == "null" {
		return nil, nil
	}
	if !json.Valid(r) {
		return nil, fmt.Errorf("invalid json: %s", string(r))
	}
	return string(r), nil
}

func (r *Raw) Scan(v interface{}) error {
	if v == nil {
		*r = nil
		return nil
	}
	jsonBytes, err := scanBytes(v)
	if err != nil {
		return err
	}
	*r = append((*r)[0:0], jsonBytes...)
	return nil
}

func scanBytes(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return []byte(t), nil
	case []byte:
		return t, nil
	default:
		return nil, fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
	}
}

func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = deepCopy(val)
		}
		return m
	case Document:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = deepCopy(val)
		}
		return m
	case []interface{}:
		a := make([]interface{}, len(t))
		for i, val := range t {
			a[i] = deepCopy(val)
		}
		return a
	default:
		return v
	}
}
