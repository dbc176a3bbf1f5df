package design

import (
	"bytes"
	"encoding/json"
)

type kv struct {
	key   string
	value interface{}
}

// marshalOrdered renders key/value pairs as a JSON object in the given order.
func marshalOrdered(pairs ...kv) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pair := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(pair.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(pair.value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
