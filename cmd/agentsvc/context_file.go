package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// readDocument loads a YAML or JSON file as JSON, keeping mapping order so
// knowledge base entries are searched in the order they were written.
func readDocument(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return yamlToJSON(data)
}

func yamlToJSON(data []byte) (json.RawMessage, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if doc.Kind == 0 {
		return json.RawMessage("null"), nil
	}
	var buf bytes.Buffer
	if err := writeNode(&buf, &doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeNode(buf *bytes.Buffer, node *yaml.Node) error {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeNode(buf, node.Content[0])
	case yaml.AliasNode:
		return writeNode(buf, node.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(node.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(node.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeNode(buf, node.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range node.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case yaml.ScalarNode:
		return writeScalar(buf, node)
	}
	return fmt.Errorf("line %d: unsupported YAML node", node.Line)
}

func writeScalar(buf *bytes.Buffer, node *yaml.Node) error {
	switch node.ShortTag() {
	case "!!null":
		buf.WriteString("null")
		return nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		buf.WriteString(strconv.FormatBool(b))
		return nil
	case "!!int", "!!float":
		if json.Valid([]byte(node.Value)) {
			buf.WriteString(node.Value)
			return nil
		}
		var f float64
		if err := node.Decode(&f); err != nil {
			return err
		}
		out, err := json.Marshal(f)
		if err != nil {
			// .inf and .nan have no JSON form.
			return writeString(buf, node.Value)
		}
		buf.Write(out)
		return nil
	}
	return writeString(buf, node.Value)
}

func writeString(buf *bytes.Buffer, s string) error {
	out, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(out)
	return nil
}
