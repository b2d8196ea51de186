package registry

import (
	"encoding/json"
	"reflect"
	"testing"
)

func testBuilder(templates []Template) *Builder {
	return NewBuilder(NewResolver(templates), []string{"TOHMI_", "Recipe_"}, "$")
}

// decode parses a JSON layout literal for tests.
func decode(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var tree map[string]interface{}
	if err := json.Unmarshal([]byte(s), &tree); err != nil {
		t.Fatal(err)
	}
	return tree
}

func TestBuildCollectsTags(t *testing.T) {
	layout := decode(t, `{
		"pages": [
			{
				"title": "Overview",
				"sections": [
					{
						"items": [
							"TOHMI_Motor1_speed",
							{"tagId": "TOHMI_Motor2_speed"},
							"$overview.caption",
							"not_a_tag"
						]
					}
				]
			}
		]
	}`)

	reg := testBuilder(nil).Build(layout)

	want := []string{"TOHMI_Motor1_speed", "TOHMI_Motor2_speed"}
	if !reflect.DeepEqual(reg.Tags, want) {
		t.Errorf("tags = %v, want %v", reg.Tags, want)
	}
}

func TestBuildDeduplicates(t *testing.T) {
	layout := decode(t, `{
		"pages": [
			{"sections": [{"items": ["TOHMI_a", "TOHMI_b", "TOHMI_a"]}]},
			{"sections": [{"items": ["TOHMI_b", "TOHMI_c"]}]}
		]
	}`)

	reg := testBuilder(nil).Build(layout)

	want := []string{"TOHMI_a", "TOHMI_b", "TOHMI_c"}
	if !reflect.DeepEqual(reg.Tags, want) {
		t.Errorf("tags = %v, want %v (first-seen order, deduplicated)", reg.Tags, want)
	}
}

func TestBuildFallbackMeta(t *testing.T) {
	layout := decode(t, `{"pages": [{"sections": [{"items": ["TOHMI_Feedpoint2_currentJob"]}]}]}`)

	reg := testBuilder(nil).Build(layout)

	meta, ok := reg.Meta["TOHMI_Feedpoint2_currentJob"]
	if !ok {
		t.Fatal("tag not in registry")
	}
	want := Meta{
		TagID:     "TOHMI_Feedpoint2_currentJob",
		Label:     "TOHMI_Feedpoint2_currentJob",
		Widget:    "raw",
		ValueType: "string",
	}
	if meta != want {
		t.Errorf("meta = %+v, want %+v", meta, want)
	}
}

func TestBuildResolvesTemplates(t *testing.T) {
	layout := decode(t, `{"pages": [{"items": ["Recipe_Feedpoint3_projectName"]}]}`)

	reg := testBuilder([]Template{
		{Pattern: "Recipe_Feedpoint#_projectName", Label: "Feedpoint # project", Widget: "text", ValueType: "string"},
	}).Build(layout)

	meta := reg.Meta["Recipe_Feedpoint3_projectName"]
	if meta.Label != "Feedpoint 3 project" {
		t.Errorf("label = %q, want %q", meta.Label, "Feedpoint 3 project")
	}
	if meta.Widget != "text" {
		t.Errorf("widget = %q", meta.Widget)
	}
}

func TestBuildOverride(t *testing.T) {
	layout := decode(t, `{
		"pages": [{
			"items": [{
				"tagId": "TOHMI_Motor1_speed",
				"override": {"label": "Main drive", "unit": "rpm"}
			}]
		}]
	}`)

	reg := testBuilder([]Template{
		{Pattern: "TOHMI_Motor#_speed", Label: "Motor # speed", Widget: "gauge", ValueType: "number"},
	}).Build(layout)

	meta := reg.Meta["TOHMI_Motor1_speed"]
	if meta.Label != "Main drive" {
		t.Errorf("override label lost: %q", meta.Label)
	}
	if meta.Unit != "rpm" {
		t.Errorf("override unit lost: %q", meta.Unit)
	}
	// Non-overridden fields keep the template's values.
	if meta.Widget != "gauge" || meta.ValueType != "number" {
		t.Errorf("template fields lost: %+v", meta)
	}
}

func TestBuildDeepTraversal(t *testing.T) {
	// A widget carrying a tagId can itself contain child tag references;
	// the walk must not stop at the first tag found in an object.
	layout := decode(t, `{
		"pages": [{
			"items": [{
				"tagId": "TOHMI_parent",
				"children": [
					{"tagId": "TOHMI_child1"},
					{"rows": ["TOHMI_child2"]}
				]
			}]
		}]
	}`)

	reg := testBuilder(nil).Build(layout)

	for _, tag := range []string{"TOHMI_parent", "TOHMI_child1", "TOHMI_child2"} {
		if _, ok := reg.Meta[tag]; !ok {
			t.Errorf("missing tag %q", tag)
		}
	}
}

func TestBuildSkipsDisplayKeys(t *testing.T) {
	// Strings under skip keys look like tags but are display text.
	layout := decode(t, `{
		"pages": [{
			"items": [{
				"tagId": "TOHMI_real",
				"label": "TOHMI_fake_label",
				"title": "TOHMI_fake_title",
				"override": {"label": "TOHMI_fake_override"}
			}]
		}]
	}`)

	reg := testBuilder(nil).Build(layout)

	if !reflect.DeepEqual(reg.Tags, []string{"TOHMI_real"}) {
		t.Errorf("tags = %v, want only TOHMI_real", reg.Tags)
	}
}

func TestBuildSkipsTranslationKeys(t *testing.T) {
	b := NewBuilder(NewResolver(nil), []string{"TOHMI_"}, "$")
	layout := decode(t, `{"pages": ["$TOHMI_looks_like_tag", "TOHMI_actual"]}`)

	reg := b.Build(layout)

	if !reflect.DeepEqual(reg.Tags, []string{"TOHMI_actual"}) {
		t.Errorf("tags = %v", reg.Tags)
	}
}

func TestBuildNilLayout(t *testing.T) {
	reg := testBuilder(nil).Build(nil)
	if len(reg.Tags) != 0 || len(reg.Meta) != 0 {
		t.Errorf("expected empty registry, got %d tags", len(reg.Tags))
	}
}
