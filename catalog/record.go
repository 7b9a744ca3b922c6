package catalog

import (
	"bytes"
	"reflect"
	"sort"
	"strings"

	"github.com/leeforge/catalogkit/json"
	"gopkg.in/yaml.v3"
)

// productRecord has the fields of Product without its codec methods.
type productRecord Product

var knownKeys = declaredKeys(reflect.TypeOf(productRecord{}))

func declaredKeys(t reflect.Type) map[string]struct{} {
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[name] = struct{}{}
		}
	}
	return keys
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var rec productRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Product(rec)
	for key, value := range raw {
		p.setExtra(key, value)
	}
	return nil
}

// MarshalJSON writes declared fields in struct order followed by extra keys
// in sorted order.
func (p Product) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(productRecord(p))
	if err != nil {
		return nil, err
	}
	keys := p.extraKeys()
	if len(keys) == 0 {
		return data, nil
	}

	data = bytes.TrimSpace(data)
	var buf bytes.Buffer
	buf.Write(data[:len(data)-1])
	for _, key := range keys {
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.Extra[key])
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *Product) UnmarshalYAML(value *yaml.Node) error {
	var rec productRecord
	if err := value.Decode(&rec); err != nil {
		return err
	}

	*p = Product(rec)
	if value.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		if _, ok := knownKeys[key]; ok {
			continue
		}
		var v any
		if err := value.Content[i+1].Decode(&v); err != nil {
			return err
		}
		p.setExtra(key, v)
	}
	return nil
}

func (p Product) MarshalYAML() (any, error) {
	keys := p.extraKeys()
	if len(keys) == 0 {
		return productRecord(p), nil
	}

	var node yaml.Node
	if err := node.Encode(productRecord(p)); err != nil {
		return nil, err
	}
	for _, key := range keys {
		var k, v yaml.Node
		k.SetString(key)
		if err := v.Encode(p.Extra[key]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &k, &v)
	}
	return &node, nil
}

func (p *Product) setExtra(key string, value any) {
	if _, ok := knownKeys[key]; ok {
		return
	}
	if p.Extra == nil {
		p.Extra = make(map[string]any)
	}
	p.Extra[key] = value
}

// extraKeys returns the sorted extra keys that do not shadow a declared field.
func (p Product) extraKeys() []string {
	keys := make([]string, 0, len(p.Extra))
	for key := range p.Extra {
		if _, ok := knownKeys[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
