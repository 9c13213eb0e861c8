package geo

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestDecodeGeometry(t *testing.T) {
	raw := json.RawMessage(`{"type":"Polygon","coordinates":[[[10,55],[11,55],[11,56],[10,56],[10,55]]]}`)
	g, err := DecodeGeometry(raw)
	if err != nil {
		t.Fatalf("DecodeGeometry returned error: %v", err)
	}
	if g.GeoJSONType() != "Polygon" {
		t.Errorf("geometry type = %s, want Polygon", g.GeoJSONType())
	}
}

func TestDecodeGeometryInvalid(t *testing.T) {
	if _, err := DecodeGeometry(json.RawMessage(`{"type":"Banana"}`)); err == nil {
		t.Error("expected error for unknown geometry type")
	}
	if _, err := DecodeGeometry(json.RawMessage(`not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestDecodeGeometryMap(t *testing.T) {
	obj := map[string]any{
		"type":        "Point",
		"coordinates": []any{10.0, 55.0},
	}
	g, err := DecodeGeometryMap(obj)
	if err != nil {
		t.Fatalf("DecodeGeometryMap returned error: %v", err)
	}
	pt, ok := g.(orb.Point)
	if !ok {
		t.Fatalf("geometry is %T, want orb.Point", g)
	}
	if pt[0] != 10 || pt[1] != 55 {
		t.Errorf("point = %v, want [10 55]", pt)
	}

	if _, err := DecodeGeometryMap(map[string]any{"type": "Feature"}); err == nil {
		t.Error("expected error for non-geometry type")
	}
}

func TestBBoxPolygon(t *testing.T) {
	poly := BBoxPolygon([]float64{10, 55, 11, 56})
	got := ComputeBBox(poly)
	want := []float64{10, 55, 11, 56}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bbox = %v, want %v", got, want)
		}
	}

	// 3-D box drops elevations.
	poly3d := BBoxPolygon([]float64{10, 55, -5, 11, 56, 100})
	got3d := ComputeBBox(poly3d)
	for i := range want {
		if got3d[i] != want[i] {
			t.Fatalf("3d bbox = %v, want %v", got3d, want)
		}
	}
}

func TestProjectRoundTrip(t *testing.T) {
	pt := orb.Point{10, 55}
	merc, err := Project(pt, 4326, 3857)
	if err != nil {
		t.Fatalf("Project to 3857 returned error: %v", err)
	}
	back, err := Project(merc, 3857, 4326)
	if err != nil {
		t.Fatalf("Project back to 4326 returned error: %v", err)
	}
	bp, ok := back.(orb.Point)
	if !ok {
		t.Fatalf("projected geometry is %T, want orb.Point", back)
	}
	if math.Abs(bp[0]-10) > 1e-6 || math.Abs(bp[1]-55) > 1e-6 {
		t.Errorf("round-trip point = %v, want [10 55]", bp)
	}
}

func TestProjectSameSRID(t *testing.T) {
	pt := orb.Point{10, 55}
	g, err := Project(pt, 4326, 4326)
	if err != nil {
		t.Fatalf("Project same SRID returned error: %v", err)
	}
	if g.(orb.Point) != pt {
		t.Errorf("same-SRID projection changed the geometry")
	}
}

func TestProjectUnsupported(t *testing.T) {
	if _, err := Project(orb.Point{1, 2}, 4326, 25832); err == nil {
		t.Error("expected error for unsupported SRID pair")
	}
}

func TestWKT(t *testing.T) {
	s := WKT(orb.Point{10, 55})
	if s != "POINT(10 55)" {
		t.Errorf("WKT = %q, want POINT(10 55)", s)
	}
}
