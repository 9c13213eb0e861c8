// Package geo provides GeoJSON geometry decoding, bounding box computation
// and SRID projection helpers used by the search pipeline.
package geo

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// GeometryTypes is the set of GeoJSON geometry types accepted anywhere a
// geometry literal may appear (intersects parameter, filter expressions).
var GeometryTypes = map[string]bool{
	"Point":              true,
	"MultiPoint":         true,
	"LineString":         true,
	"MultiLineString":    true,
	"Polygon":            true,
	"MultiPolygon":       true,
	"GeometryCollection": true,
}

// DecodeGeometry parses a raw GeoJSON geometry.
func DecodeGeometry(raw json.RawMessage) (orb.Geometry, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid GeoJSON geometry: %w", err)
	}
	geom := g.Geometry()
	if geom == nil {
		return nil, fmt.Errorf("invalid GeoJSON geometry: empty geometry")
	}
	return geom, nil
}

// DecodeGeometryMap parses a geometry given as an already-unmarshaled JSON
// object, as filter expressions deliver them.
func DecodeGeometryMap(obj map[string]any) (orb.Geometry, error) {
	typ, _ := obj["type"].(string)
	if !GeometryTypes[typ] {
		return nil, fmt.Errorf("invalid GeoJSON geometry: unknown type %q", typ)
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("invalid GeoJSON geometry: %w", err)
	}
	return DecodeGeometry(raw)
}

// EncodeGeometry renders a geometry back to its GeoJSON representation.
func EncodeGeometry(g orb.Geometry) *geojson.Geometry {
	return geojson.NewGeometry(g)
}

// BBoxPolygon converts a validated 2-D or 3-D bounding box into a polygon.
// Elevation values of a 3-D box are dropped; spatial filtering is planar.
func BBoxPolygon(bbox []float64) orb.Polygon {
	var b orb.Bound
	if len(bbox) == 6 {
		b = orb.Bound{
			Min: orb.Point{bbox[0], bbox[1]},
			Max: orb.Point{bbox[3], bbox[4]},
		}
	} else {
		b = orb.Bound{
			Min: orb.Point{bbox[0], bbox[1]},
			Max: orb.Point{bbox[2], bbox[3]},
		}
	}
	return b.ToPolygon()
}

// ComputeBBox returns the [west, south, east, north] bounding box of a geometry.
func ComputeBBox(g orb.Geometry) []float64 {
	b := g.Bound()
	return []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

// Project converts a geometry between two supported SRIDs.
// Only 4326 and 3857 carry projection math; identical SRIDs are a no-op.
func Project(g orb.Geometry, fromSRID, toSRID int) (orb.Geometry, error) {
	if fromSRID == toSRID {
		return g, nil
	}
	switch {
	case fromSRID == 3857 && toSRID == 4326:
		return project.Geometry(g, project.Mercator.ToWGS84), nil
	case fromSRID == 4326 && toSRID == 3857:
		return project.Geometry(g, project.WGS84.ToMercator), nil
	default:
		return nil, fmt.Errorf("no projection from SRID %d to SRID %d", fromSRID, toSRID)
	}
}

// WKT renders a geometry as well-known text for storage expressions.
func WKT(g orb.Geometry) string {
	return wkt.MarshalString(g)
}
