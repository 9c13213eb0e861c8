package queryable

import (
	"errors"
	"reflect"
	"testing"
)

func TestIntersectionEmptyEqualsAll(t *testing.T) {
	r := NewSkyfotoRegistry()

	baseEmpty, sharedEmpty := r.Intersection(nil)
	baseAll, sharedAll := r.Intersection(r.CollectionIDs())

	if !reflect.DeepEqual(baseEmpty, baseAll) {
		t.Errorf("base differs: %v vs %v", baseEmpty, baseAll)
	}
	if !reflect.DeepEqual(sharedEmpty, sharedAll) {
		t.Errorf("shared differs: %v vs %v", sharedEmpty, sharedAll)
	}
}

func TestIntersectionExcludesUnsharedFields(t *testing.T) {
	r := NewSkyfotoRegistry()

	// sensor_rows exists only in skyfotos2021, so the all-collection
	// intersection must not contain it.
	_, sharedAll := r.Intersection(nil)
	for _, name := range sharedAll {
		if name == "sensor_rows" {
			t.Error("sensor_rows should not be shared across all collections")
		}
	}

	_, shared2021 := r.Intersection([]string{"skyfotos2021"})
	found := false
	for _, name := range shared2021 {
		if name == "sensor_rows" {
			found = true
		}
	}
	if !found {
		t.Error("sensor_rows missing from skyfotos2021 queryables")
	}
}

func TestIntersectionSharedIsSorted(t *testing.T) {
	r := NewSkyfotoRegistry()
	_, shared := r.Intersection(nil)
	for i := 1; i < len(shared); i++ {
		if shared[i-1] > shared[i] {
			t.Fatalf("shared queryables not sorted: %v", shared)
		}
	}
}

func TestResolve(t *testing.T) {
	r := NewSkyfotoRegistry()

	q, err := r.Resolve("direction")
	if err != nil {
		t.Fatalf("Resolve(direction) returned error: %v", err)
	}
	if q.Type != "string" || q.Column == "" {
		t.Errorf("unexpected queryable: %+v", q)
	}

	_, err = r.Resolve("nonexistent")
	var unknown *UnknownFieldError
	if !errors.As(err, &unknown) {
		t.Fatalf("Resolve(nonexistent) error is %T, want *UnknownFieldError", err)
	}
	if unknown.Name != "nonexistent" {
		t.Errorf("error names %q, want nonexistent", unknown.Name)
	}
}

func TestAllNamesContainsBaseAndCollectionFields(t *testing.T) {
	r := NewSkyfotoRegistry()
	names := r.AllNames()
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if set[n] {
			t.Errorf("AllNames returned duplicate %q", n)
		}
		set[n] = true
	}
	for _, want := range []string{"id", "datetime", "direction", "sensor_rows"} {
		if !set[want] {
			t.Errorf("AllNames missing %q", want)
		}
	}
}

func TestFieldMapping(t *testing.T) {
	r := NewSkyfotoRegistry()
	mapping := r.FieldMapping()
	if mapping["id"] != "id" {
		t.Errorf("id maps to %q", mapping["id"])
	}
	if mapping["direction"] != "json_extract(properties, '$.direction')" {
		t.Errorf("direction maps to %q", mapping["direction"])
	}
}

func TestSchemaDocument(t *testing.T) {
	r := NewSkyfotoRegistry()

	doc := r.SchemaDocument("http://example.com/", "skyfotos2019")
	if doc["$id"] != "http://example.com/collections/skyfotos2019/queryables" {
		t.Errorf("$id = %v", doc["$id"])
	}
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		t.Fatal("properties missing from schema document")
	}
	dt, ok := props["datetime"].(map[string]any)
	if !ok {
		t.Fatal("datetime missing from schema document")
	}
	if _, hasRef := dt["$ref"]; !hasRef {
		t.Error("datetime entry should use $ref")
	}
	if _, ok := props["sensor_rows"]; ok {
		t.Error("sensor_rows should not appear for skyfotos2019")
	}

	shared := r.SchemaDocument("http://example.com", "")
	if shared["$id"] != "http://example.com/queryables" {
		t.Errorf("shared $id = %v", shared["$id"])
	}
}
