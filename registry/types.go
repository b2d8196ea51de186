// Package registry resolves the concrete tag set served by the gateway.
//
// The registry is built once at startup from a static layout description and
// a table of wildcard tag templates, and is read-only afterwards.
package registry

import (
	"encoding/json"
	"os"
)

// Template is one row of the wildcard template table. The Pattern may
// contain '#' markers, each standing in for one or more digits; the same
// marker inside Label or Description is replaced with the digits captured
// from a matching concrete tag.
type Template struct {
	Pattern     string `json:"tagId"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Widget      string `json:"widget,omitempty"`
	ValueType   string `json:"valueType,omitempty"`
	Unit        string `json:"unit,omitempty"`
}

// Meta is the resolved display metadata for one concrete tag.
type Meta struct {
	TagID       string `json:"tagId"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Widget      string `json:"widget"`
	ValueType   string `json:"valueType"`
	Unit        string `json:"unit,omitempty"`
}

// Fallback returns the generic metadata used when no template matches a tag.
func Fallback(tagID string) Meta {
	return Meta{
		TagID:     tagID,
		Label:     tagID,
		Widget:    "raw",
		ValueType: "string",
	}
}

// Registry is the ordered, deduplicated set of concrete tags plus their
// resolved metadata. Built once; never mutated.
type Registry struct {
	Tags []string        `json:"tags"`
	Meta map[string]Meta `json:"meta"`
}

// Empty returns a registry with zero tags. Used when layout or template
// configuration cannot be loaded, so the gateway still starts.
func Empty() *Registry {
	return &Registry{
		Tags: []string{},
		Meta: map[string]Meta{},
	}
}

// LoadLayout reads and decodes a layout JSON file into a generic tree.
func LoadLayout(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tree map[string]interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// LoadTemplates reads and decodes the template table JSON file.
// Table order is preserved; matching is first-template-wins.
func LoadTemplates(path string) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var table []Template
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	return table, nil
}
