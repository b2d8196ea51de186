package registry

import (
	"regexp"
	"strings"
)

// Placeholder is the wildcard marker in template patterns and label text.
// In a pattern it matches one or more digits; in label/description text it
// is replaced with the digits captured from the concrete tag.
const Placeholder = "#"

// compiledTemplate pairs a template with its anchored digit-capturing regex.
type compiledTemplate struct {
	tmpl Template
	re   *regexp.Regexp
}

// Resolver matches concrete tag names against a fixed template table.
// Compile once at startup; Match is then cheap and deterministic.
type Resolver struct {
	compiled []compiledTemplate
}

// NewResolver compiles the template table. Table order is preserved so that
// matching is first-template-wins. Patterns that fail to compile are skipped.
func NewResolver(table []Template) *Resolver {
	r := &Resolver{compiled: make([]compiledTemplate, 0, len(table))}
	for _, t := range table {
		re, err := compilePattern(t.Pattern)
		if err != nil {
			continue
		}
		r.compiled = append(r.compiled, compiledTemplate{tmpl: t, re: re})
	}
	return r
}

// compilePattern turns a wildcard pattern into an anchored regex where every
// placeholder becomes a digit-capturing group and all other characters are
// literal.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i, part := range strings.Split(pattern, Placeholder) {
		if i > 0 {
			b.WriteString(`(\d+)`)
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// Match returns the first template whose pattern fully matches the concrete
// tag, with the ordered captured digit strings. Returns ok=false when no
// template matches; the caller supplies the generic fallback.
func (r *Resolver) Match(tag string) (Template, []string, bool) {
	for _, c := range r.compiled {
		m := c.re.FindStringSubmatch(tag)
		if m == nil {
			continue
		}
		return c.tmpl, m[1:], true
	}
	return Template{}, nil, false
}

// Resolve matches and materializes in one step, falling back to generic
// metadata when no template matches.
func (r *Resolver) Resolve(tag string) Meta {
	tmpl, digits, ok := r.Match(tag)
	if !ok {
		return Fallback(tag)
	}
	return Materialize(tmpl, tag, digits)
}

// Materialize builds concrete metadata from a matched template. Placeholder
// occurrences in Label then Description consume the captured digits left to
// right; occurrences beyond the captured count are replaced with the empty
// string.
func Materialize(tmpl Template, tag string, digits []string) Meta {
	meta := Meta{
		TagID:       tag,
		Label:       tmpl.Label,
		Description: tmpl.Description,
		Widget:      tmpl.Widget,
		ValueType:   tmpl.ValueType,
		Unit:        tmpl.Unit,
	}
	if meta.Widget == "" {
		meta.Widget = "raw"
	}
	if meta.ValueType == "" {
		meta.ValueType = "string"
	}

	next := 0
	meta.Label = substitute(meta.Label, digits, &next)
	meta.Description = substitute(meta.Description, digits, &next)
	return meta
}

// substitute replaces each placeholder in s with the next captured digit
// string, advancing the shared cursor.
func substitute(s string, digits []string, next *int) string {
	if !strings.Contains(s, Placeholder) {
		return s
	}
	parts := strings.Split(s, Placeholder)
	var b strings.Builder
	b.WriteString(parts[0])
	for _, part := range parts[1:] {
		if *next < len(digits) {
			b.WriteString(digits[*next])
			*next++
		}
		b.WriteString(part)
	}
	return b.String()
}
