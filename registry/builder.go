package registry

import (
	"sort"
	"strings"

	"taglink/logging"
)

// skipKeys are layout object keys that never contain tag references.
// Display-only text (labels, titles) can legitimately contain strings that
// look like tags, so the walk ignores them to avoid false positives.
var skipKeys = map[string]bool{
	"override":    true,
	"label":       true,
	"title":       true,
	"description": true,
	"id":          true,
	"icon":        true,
	"unit":        true,
	"widget":      true,
	"valueType":   true,
}

// Builder collects concrete tag references from a layout tree and resolves
// each through the template table.
type Builder struct {
	resolver      *Resolver
	prefixes      []string
	translateMark string

	tags []string
	meta map[string]Meta
	seen map[string]bool
}

// NewBuilder creates a registry builder. prefixes gates which strings are
// treated as tag references; translateMark marks translation keys, which are
// never tags.
func NewBuilder(resolver *Resolver, prefixes []string, translateMark string) *Builder {
	return &Builder{
		resolver:      resolver,
		prefixes:      prefixes,
		translateMark: translateMark,
		tags:          []string{},
		meta:          map[string]Meta{},
		seen:          map[string]bool{},
	}
}

// Build walks the layout tree and returns the resolved registry.
// The result is immutable once returned; a layout change requires a restart.
func (b *Builder) Build(layout map[string]interface{}) *Registry {
	if layout == nil {
		return Empty()
	}
	b.walk(layout)
	logging.DebugLog("registry", "built registry: %d tags", len(b.tags))
	return &Registry{Tags: b.tags, Meta: b.meta}
}

// walk is a full deep traversal: an object carrying a tagId can still hold
// nested widgets with further tag references, so the walk never stops at the
// first tag found.
func (b *Builder) walk(node interface{}) {
	switch v := node.(type) {
	case string:
		b.collect(v, nil)

	case []interface{}:
		for _, item := range v {
			b.walk(item)
		}

	case map[string]interface{}:
		var override map[string]interface{}
		if o, ok := v["override"].(map[string]interface{}); ok {
			override = o
		}

		// Sorted key order keeps first-seen tag order deterministic;
		// document order within an object is lost at JSON decode.
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if k == "tagId" {
				if s, ok := v[k].(string); ok {
					b.collect(s, override)
				}
				continue
			}
			if skipKeys[k] {
				continue
			}
			b.walk(v[k])
		}
	}
}

// collect resolves and records a single tag reference, applying the optional
// per-reference override. First occurrence wins for both order and metadata.
func (b *Builder) collect(s string, override map[string]interface{}) {
	if !b.isTagRef(s) {
		return
	}
	if b.seen[s] {
		return
	}
	b.seen[s] = true

	meta := b.resolver.Resolve(s)
	if override != nil {
		applyOverride(&meta, override)
	}

	b.tags = append(b.tags, s)
	b.meta[s] = meta
}

// isTagRef reports whether a string has the recognized tag-name shape.
func (b *Builder) isTagRef(s string) bool {
	if s == "" {
		return false
	}
	if b.translateMark != "" && strings.HasPrefix(s, b.translateMark) {
		return false
	}
	for _, p := range b.prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// applyOverride shallow-merges an override object onto resolved metadata.
// Override wins on key conflicts; keys outside the metadata shape are ignored.
func applyOverride(meta *Meta, override map[string]interface{}) {
	for k, raw := range override {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		switch k {
		case "label":
			meta.Label = s
		case "description":
			meta.Description = s
		case "widget":
			meta.Widget = s
		case "valueType":
			meta.ValueType = s
		case "unit":
			meta.Unit = s
		}
	}
}
