package export

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// YAML renders v as a YAML document with two-space indentation. Object
// keys keep their order.
func YAML(v Value) ([]byte, error) {
	node, err := yamlNode(v, nil)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func yamlNode(v Value, path []string) (*yaml.Node, error) {
	scalar := func(tag, value string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
	}

	switch x := v.(type) {
	case Null:
		return scalar("!!null", "null"), nil
	case Bool:
		return scalar("!!bool", strconv.FormatBool(bool(x))), nil
	case Natural:
		return scalar("!!int", strconv.FormatUint(uint64(x), 10)), nil
	case Integer:
		return scalar("!!int", strconv.FormatInt(int64(x), 10)), nil
	case Double:
		return scalar("!!float", yamlFloat(float64(x))), nil
	case Text:
		return scalar("!!str", string(x)), nil
	case Array:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if len(x) == 0 {
			n.Style = yaml.FlowStyle
		}
		for i, el := range x {
			child, err := yamlNode(el, appendPath(path, "["+strconv.Itoa(i)+"]"))
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, child)
		}
		return n, nil
	case Object:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		if len(x) == 0 {
			n.Style = yaml.FlowStyle
		}
		for _, m := range x {
			child, err := yamlNode(m.Value, appendPath(path, m.Key))
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, scalar("!!str", m.Key), child)
		}
		return n, nil
	}
	return nil, fail(path, "unsupported value %T", v)
}

func yamlFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		s += ".0"
	}
	return s
}
