// Package clashconf reads and patches the mihomo config.yaml and fetches
// subscription configs.
//
// Patching works on the yaml.v3 node tree so keys, ordering and comments the
// tool does not own survive a write.
package clashconf

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"proxyctl/internal/shared/types"
)

const (
	KeyMixedPort          = "mixed-port"
	KeyLegacyPort         = "port"
	KeyExternalController = "external-controller"
)

// Document is a config.yaml loaded for patching.
type Document struct {
	path string
	root *yaml.Node // document node wrapping a mapping
}

// Load reads path. A missing or empty file yields an empty mapping; anything
// that is not a YAML mapping is a config patch error.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, types.NewError(types.KindConfigPatch, "read "+path, err)
	}
	doc, err := parse(data)
	if err != nil {
		return nil, types.NewError(types.KindConfigPatch, "parse "+path, err)
	}
	doc.path = path
	return doc, nil
}

func parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Document{root: emptyDocument()}, nil
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return &Document{root: emptyDocument()}, nil
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("top level is not a mapping")
	}
	return &Document{root: &root}, nil
}

func emptyDocument() *yaml.Node {
	return &yaml.Node{
		Kind:    yaml.DocumentNode,
		Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
	}
}

func (d *Document) mapping() *yaml.Node {
	return d.root.Content[0]
}

// lookup returns the value node stored under key.
func (d *Document) lookup(key string) *yaml.Node {
	m := d.mapping()
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// Has reports whether key is present at the top level.
func (d *Document) Has(key string) bool {
	return d.lookup(key) != nil
}

// ReadField decodes the value under key.
func (d *Document) ReadField(key string) (any, bool) {
	node := d.lookup(key)
	if node == nil {
		return nil, false
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// WriteField sets key to value, replacing an existing entry in place or
// appending a new one. Other keys are untouched.
func (d *Document) WriteField(key string, value any) error {
	var valueNode yaml.Node
	if err := valueNode.Encode(value); err != nil {
		return types.NewError(types.KindConfigPatch, "encode "+key, err)
	}

	if existing := d.lookup(key); existing != nil {
		// Keep comments attached to the old value.
		valueNode.HeadComment = existing.HeadComment
		valueNode.LineComment = existing.LineComment
		valueNode.FootComment = existing.FootComment
		*existing = valueNode
		return nil
	}

	m := d.mapping()
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&valueNode,
	)
	return nil
}

// MixedPort returns mixed-port, falling back to the legacy port key.
func (d *Document) MixedPort() (int, bool) {
	for _, key := range []string{KeyMixedPort, KeyLegacyPort} {
		node := d.lookup(key)
		if node == nil {
			continue
		}
		var port int
		if err := node.Decode(&port); err == nil && port > 0 && port < 65536 {
			return port, true
		}
	}
	return 0, false
}

// ExternalController returns the external-controller address, if set.
func (d *Document) ExternalController() (string, bool) {
	node := d.lookup(KeyExternalController)
	if node == nil || node.Kind != yaml.ScalarNode || node.Value == "" {
		return "", false
	}
	return node.Value, true
}

// Bytes renders the document.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the document back to the path it was loaded from.
func (d *Document) Save() error {
	data, err := d.Bytes()
	if err != nil {
		return types.NewError(types.KindConfigPatch, "render "+d.path, err)
	}
	if err := os.WriteFile(d.path, data, 0644); err != nil {
		return types.NewError(types.KindConfigPatch, "write "+d.path, err)
	}
	return nil
}

// UpdateMixedPort sets mixed-port in the file at path.
func UpdateMixedPort(path string, port int) error {
	return patch(path, KeyMixedPort, port)
}

// UpdateExternalController sets external-controller in the file at path.
func UpdateExternalController(path, hostPort string) error {
	return patch(path, KeyExternalController, hostPort)
}

func patch(path, key string, value any) error {
	doc, err := Load(path)
	if err != nil {
		return err
	}
	if err := doc.WriteField(key, value); err != nil {
		return err
	}
	if err := doc.Save(); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}
