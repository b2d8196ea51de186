package registry

import (
	"reflect"
	"testing"
)

func TestMatch(t *testing.T) {
	table := []Template{
		{Pattern: "Recipe_Feedpoint#_projectName", Label: "Feedpoint # project"},
		{Pattern: "TOHMI_Motor#_speed", Label: "Motor # speed", Widget: "gauge", ValueType: "number"},
		{Pattern: "TOHMI_Motor#_speed", Label: "shadowed"}, // Duplicate: first wins
	}
	r := NewResolver(table)

	t.Run("captures digits", func(t *testing.T) {
		tmpl, digits, ok := r.Match("Recipe_Feedpoint3_projectName")
		if !ok {
			t.Fatal("expected match")
		}
		if tmpl.Label != "Feedpoint # project" {
			t.Errorf("wrong template: %q", tmpl.Label)
		}
		if !reflect.DeepEqual(digits, []string{"3"}) {
			t.Errorf("digits = %v, want [3]", digits)
		}
	})

	t.Run("multi-digit capture", func(t *testing.T) {
		_, digits, ok := r.Match("TOHMI_Motor42_speed")
		if !ok {
			t.Fatal("expected match")
		}
		if !reflect.DeepEqual(digits, []string{"42"}) {
			t.Errorf("digits = %v, want [42]", digits)
		}
	})

	t.Run("first template wins", func(t *testing.T) {
		tmpl, _, ok := r.Match("TOHMI_Motor1_speed")
		if !ok {
			t.Fatal("expected match")
		}
		if tmpl.Label != "Motor # speed" {
			t.Errorf("expected first matching template, got %q", tmpl.Label)
		}
	})

	t.Run("no match", func(t *testing.T) {
		if _, _, ok := r.Match("TOHMI_Feedpoint2_currentJob"); ok {
			t.Error("expected no match")
		}
	})

	t.Run("anchored matching", func(t *testing.T) {
		// Extra leading/trailing characters must not match.
		if _, _, ok := r.Match("XRecipe_Feedpoint3_projectName"); ok {
			t.Error("unanchored prefix matched")
		}
		if _, _, ok := r.Match("Recipe_Feedpoint3_projectNameX"); ok {
			t.Error("unanchored suffix matched")
		}
	})

	t.Run("placeholder requires digits", func(t *testing.T) {
		if _, _, ok := r.Match("Recipe_Feedpoint_projectName"); ok {
			t.Error("matched without digits")
		}
		if _, _, ok := r.Match("Recipe_FeedpointAB_projectName"); ok {
			t.Error("matched non-digit wildcard")
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		first, firstDigits, _ := r.Match("TOHMI_Motor7_speed")
		for i := 0; i < 10; i++ {
			tmpl, digits, ok := r.Match("TOHMI_Motor7_speed")
			if !ok || tmpl.Label != first.Label || !reflect.DeepEqual(digits, firstDigits) {
				t.Fatal("match result varied across calls")
			}
		}
	})
}

func TestMaterialize(t *testing.T) {
	t.Run("label substitution", func(t *testing.T) {
		tmpl := Template{
			Pattern: "Recipe_Feedpoint#_projectName",
			Label:   "Feedpoint # project",
		}
		meta := Materialize(tmpl, "Recipe_Feedpoint3_projectName", []string{"3"})

		if meta.TagID != "Recipe_Feedpoint3_projectName" {
			t.Errorf("tagId = %q", meta.TagID)
		}
		if meta.Label != "Feedpoint 3 project" {
			t.Errorf("label = %q, want %q", meta.Label, "Feedpoint 3 project")
		}
	})

	t.Run("placeholders consumed across fields", func(t *testing.T) {
		tmpl := Template{
			Pattern:     "TOHMI_Line#_Station#_state",
			Label:       "Line #",
			Description: "Station # state",
		}
		meta := Materialize(tmpl, "TOHMI_Line2_Station5_state", []string{"2", "5"})

		if meta.Label != "Line 2" {
			t.Errorf("label = %q", meta.Label)
		}
		if meta.Description != "Station 5 state" {
			t.Errorf("description = %q", meta.Description)
		}
	})

	t.Run("extra placeholders become empty", func(t *testing.T) {
		tmpl := Template{
			Pattern: "TOHMI_Pump#_mode",
			Label:   "Pump # mode #",
		}
		meta := Materialize(tmpl, "TOHMI_Pump4_mode", []string{"4"})

		if meta.Label != "Pump 4 mode " {
			t.Errorf("label = %q", meta.Label)
		}
	})

	t.Run("field without placeholders untouched", func(t *testing.T) {
		tmpl := Template{
			Pattern:     "TOHMI_Valve#_open",
			Label:       "Valve status",
			Description: "Valve # open state",
			Widget:      "led",
			ValueType:   "boolean",
		}
		meta := Materialize(tmpl, "TOHMI_Valve9_open", []string{"9"})

		if meta.Label != "Valve status" {
			t.Errorf("label = %q", meta.Label)
		}
		if meta.Description != "Valve 9 open state" {
			t.Errorf("description = %q", meta.Description)
		}
		if meta.Widget != "led" || meta.ValueType != "boolean" {
			t.Errorf("widget/valueType = %q/%q", meta.Widget, meta.ValueType)
		}
	})

	t.Run("defaults for empty widget and type", func(t *testing.T) {
		meta := Materialize(Template{Pattern: "TOHMI_x#", Label: "x"}, "TOHMI_x1", []string{"1"})
		if meta.Widget != "raw" || meta.ValueType != "string" {
			t.Errorf("defaults = %q/%q", meta.Widget, meta.ValueType)
		}
	})
}

func TestFallback(t *testing.T) {
	meta := Fallback("TOHMI_Feedpoint2_currentJob")

	want := Meta{
		TagID:     "TOHMI_Feedpoint2_currentJob",
		Label:     "TOHMI_Feedpoint2_currentJob",
		Widget:    "raw",
		ValueType: "string",
	}
	if meta != want {
		t.Errorf("fallback = %+v, want %+v", meta, want)
	}
}

func TestResolve(t *testing.T) {
	r := NewResolver([]Template{
		{Pattern: "TOHMI_Motor#_speed", Label: "Motor # speed", Widget: "gauge", ValueType: "number"},
	})

	t.Run("matched", func(t *testing.T) {
		meta := r.Resolve("TOHMI_Motor3_speed")
		if meta.Label != "Motor 3 speed" || meta.Widget != "gauge" {
			t.Errorf("meta = %+v", meta)
		}
	})

	t.Run("fallback", func(t *testing.T) {
		meta := r.Resolve("TOHMI_unknown")
		if meta.Label != "TOHMI_unknown" || meta.Widget != "raw" {
			t.Errorf("meta = %+v", meta)
		}
	})
}
