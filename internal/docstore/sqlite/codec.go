package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"sitepay/internal/docstore"
)

// wireValue keeps a field's type through the JSON column. Exactly one of the
// pointers is set, or Null is true.
type wireValue struct {
	S    *string    `json:"s,omitempty"`
	N    *float64   `json:"n,omitempty"`
	B    *bool      `json:"b,omitempty"`
	T    *time.Time `json:"t,omitempty"`
	Null bool       `json:"null,omitempty"`
}

func encodeFields(f docstore.Fields) ([]byte, error) {
	wire := make(map[string]wireValue, len(f))
	for k, v := range f {
		w, err := toWire(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		wire[k] = w
	}
	return json.Marshal(wire)
}

func decodeFields(data []byte) (docstore.Fields, error) {
	var wire map[string]wireValue
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	out := make(docstore.Fields, len(wire))
	for k, w := range wire {
		out[k] = fromWire(w)
	}
	return out, nil
}

func toWire(v any) (wireValue, error) {
	switch x := v.(type) {
	case nil:
		return wireValue{Null: true}, nil
	case string:
		return wireValue{S: &x}, nil
	case float64:
		return wireValue{N: &x}, nil
	case float32:
		n := float64(x)
		return wireValue{N: &n}, nil
	case int:
		n := float64(x)
		return wireValue{N: &n}, nil
	case int64:
		n := float64(x)
		return wireValue{N: &n}, nil
	case bool:
		return wireValue{B: &x}, nil
	case time.Time:
		t := x.UTC()
		return wireValue{T: &t}, nil
	}
	return wireValue{}, fmt.Errorf("unsupported value type %T", v)
}

func fromWire(w wireValue) any {
	switch {
	case w.S != nil:
		return *w.S
	case w.N != nil:
		return *w.N
	case w.B != nil:
		return *w.B
	case w.T != nil:
		return *w.T
	}
	return nil
}
