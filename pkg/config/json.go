package config

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON encodes the tree as nested objects keyed by command text.
// Keys appear in configuration order; a leaf is an empty object.
func (t *ConfigTree) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	if err := encodeChildren(&buf, t.Children()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON encodes the node's children the same way as the tree.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeChildren(&buf, n.Children()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeChildren(buf *bytes.Buffer, nodes []*Node) error {
	buf.WriteByte('{')
	for i, n := range nodes {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(n.Key)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := encodeChildren(buf, n.Children()); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// ToMap converts the tree to nested map[string]any values. Ordering is
// lost; use MarshalJSON or Keys when order matters.
func (t *ConfigTree) ToMap() map[string]any {
	if t == nil {
		return map[string]any{}
	}
	return nodesToMap(t.Children())
}

func nodesToMap(nodes []*Node) map[string]any {
	m := make(map[string]any, len(nodes))
	for _, n := range nodes {
		m[n.Key] = nodesToMap(n.Children())
	}
	return m
}
