package search

import (
	"testing"
)

func sampleFeature() map[string]any {
	return map[string]any{
		"type":       "Feature",
		"id":         "item-1",
		"collection": "skyfotos2019",
		"geometry":   map[string]any{"type": "Point", "coordinates": []any{10.0, 55.0}},
		"bbox":       []any{10.0, 55.0, 10.0, 55.0},
		"links":      []any{},
		"assets":     map[string]any{},
		"properties": map[string]any{
			"datetime":  "2019-05-01T10:00:00Z",
			"direction": "north",
			"gsd":       0.08,
			"camera_id": "cam-7",
		},
	}
}

var defaults = []string{"id", "type", "geometry", "bbox", "links", "assets", "collection", "properties.datetime"}

func TestProjectionNilPassesThrough(t *testing.T) {
	feature := sampleFeature()
	var p *Projection
	if got := p.Apply(feature); len(got) != len(feature) {
		t.Errorf("nil projection altered the feature")
	}
	if resolveProjection(nil, defaults, nil) != nil {
		t.Error("empty selection produced a projection")
	}
}

func TestProjectionExclude(t *testing.T) {
	sel := &FieldsSelection{Exclude: []string{"properties.gsd"}}
	p := resolveProjection(sel, defaults, nil)
	got := p.Apply(sampleFeature())

	props := got["properties"].(map[string]any)
	if _, ok := props["gsd"]; ok {
		t.Error("excluded property survived")
	}
	if _, ok := props["direction"]; !ok {
		t.Error("unrelated property was dropped")
	}
	if _, ok := got["id"]; !ok {
		t.Error("top-level field was dropped by an exclude-only projection")
	}
}

func TestProjectionInclude(t *testing.T) {
	sel := &FieldsSelection{Include: []string{"properties.direction"}}
	p := resolveProjection(sel, defaults, nil)
	got := p.Apply(sampleFeature())

	props, ok := got["properties"].(map[string]any)
	if !ok {
		t.Fatal("properties missing from projected feature")
	}
	if _, ok := props["direction"]; !ok {
		t.Error("included property missing")
	}
	if _, ok := props["gsd"]; ok {
		t.Error("non-included property survived an include projection")
	}
	// Defaults are always present.
	if _, ok := got["geometry"]; !ok {
		t.Error("default field missing")
	}
	if _, ok := props["datetime"]; !ok {
		t.Error("default property missing")
	}
}

func TestProjectionFilterFieldsRetained(t *testing.T) {
	// A field the attribute filter references stays in the output...
	sel := &FieldsSelection{Include: []string{"properties.direction"}}
	p := resolveProjection(sel, defaults, []string{"properties.gsd"})
	got := p.Apply(sampleFeature())
	props := got["properties"].(map[string]any)
	if _, ok := props["gsd"]; !ok {
		t.Error("filter-referenced property missing from output")
	}

	// ...unless it is explicitly excluded...
	sel = &FieldsSelection{Exclude: []string{"properties.gsd"}}
	p = resolveProjection(sel, defaults, []string{"properties.gsd"})
	got = p.Apply(sampleFeature())
	props = got["properties"].(map[string]any)
	if _, ok := props["gsd"]; ok {
		t.Error("explicitly excluded property retained")
	}

	// ...but a default field wins even over an explicit exclusion.
	sel = &FieldsSelection{Exclude: []string{"properties.datetime"}}
	p = resolveProjection(sel, defaults, []string{"properties.datetime"})
	got = p.Apply(sampleFeature())
	props = got["properties"].(map[string]any)
	if _, ok := props["datetime"]; !ok {
		t.Error("default property lost to an exclusion")
	}
}

func TestProjectionExcludeBeatsInclude(t *testing.T) {
	// A field named on both sides of the selection is dropped; only
	// default fields override an explicit exclusion.
	sel := &FieldsSelection{
		Include: []string{"properties.gsd"},
		Exclude: []string{"properties.gsd"},
	}
	p := resolveProjection(sel, defaults, nil)
	got := p.Apply(sampleFeature())

	if props, ok := got["properties"].(map[string]any); ok {
		if _, ok := props["gsd"]; ok {
			t.Error("property included and excluded at once was retained")
		}
	}
	if _, ok := got["id"]; !ok {
		t.Error("default field missing")
	}
}

func TestProjectionDoesNotMutateInput(t *testing.T) {
	feature := sampleFeature()
	sel := &FieldsSelection{Exclude: []string{"properties.gsd"}}
	resolveProjection(sel, defaults, nil).Apply(feature)
	if _, ok := feature["properties"].(map[string]any)["gsd"]; !ok {
		t.Error("Apply mutated the input feature")
	}
}

func TestFeaturePath(t *testing.T) {
	cases := map[string]string{
		"id":                "id",
		"geometry":          "geometry",
		"direction":         "properties.direction",
		"datetime":          "properties.datetime",
		"properties.camera": "properties.camera",
	}
	for name, want := range cases {
		if got := featurePath(name); got != want {
			t.Errorf("featurePath(%q) = %q, want %q", name, got, want)
		}
	}
}
