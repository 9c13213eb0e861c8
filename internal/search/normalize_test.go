package search

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/rkm/skyfoto-stac-api/internal/config"
	"github.com/rkm/skyfoto-stac-api/internal/crs"
	"github.com/rkm/skyfoto-stac-api/internal/filter"
	"github.com/rkm/skyfoto-stac-api/internal/pagination"
	"github.com/rkm/skyfoto-stac-api/internal/queryable"
	"github.com/rkm/skyfoto-stac-api/internal/storage"
)

func testConfig() config.SearchConfig {
	return config.SearchConfig{
		DefaultLimit:     10,
		MaxLimit:         1000,
		EnableContext:    true,
		EnableFields:     true,
		DefaultIncludes:  []string{"id", "type", "geometry", "bbox", "links", "assets", "collection", "properties.datetime"},
		RemovedOperators: []string{"meets", "metby"},
	}
}

func testNormalizer() *Normalizer {
	return &Normalizer{
		Registry: queryable.NewSkyfotoRegistry(),
		Config:   testConfig(),
		LowerGeometry: func(geom orb.Geometry, srid int) (storage.GeometryExpr, error) {
			return storage.GeometryExpr{Geometry: geom, SRID: crs.StorageSRID, Bound: geom.Bound()}, nil
		},
	}
}

func TestNormalizeBBoxAndIntersectsExclusive(t *testing.T) {
	raw := &SearchRequest{
		BBox:       []float64{10, 55, 11, 56},
		Intersects: []byte(`{"type":"Point","coordinates":[10.5,55.5]}`),
	}
	_, err := testNormalizer().Normalize(raw, "GET")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error is %T, want *ValidationError", err)
	}
}

func TestNormalizeBBoxOrdering(t *testing.T) {
	cases := [][]float64{
		{11, 55, 10, 56},          // xmax < xmin
		{10, 56, 11, 55},          // ymax < ymin
		{10, 55, 100, 11, 56, 50}, // max elevation < min elevation
		{10, 55, 11},              // wrong length
	}
	for _, bbox := range cases {
		_, err := testNormalizer().Normalize(&SearchRequest{BBox: bbox}, "GET")
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("bbox %v: error is %T, want *ValidationError", bbox, err)
		}
	}

	if _, err := testNormalizer().Normalize(&SearchRequest{BBox: []float64{10, 55, 0, 11, 56, 100}}, "GET"); err != nil {
		t.Errorf("valid 3-D bbox rejected: %v", err)
	}
}

func intp(v int) *int { return &v }

func TestNormalizeLimitBounds(t *testing.T) {
	n := testNormalizer()

	req, err := n.Normalize(&SearchRequest{}, "GET")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if req.Limit != 10 {
		t.Errorf("default limit = %d, want 10", req.Limit)
	}

	if _, err := n.Normalize(&SearchRequest{Limit: intp(1001)}, "GET"); err == nil {
		t.Error("limit above maximum accepted")
	}
	if _, err := n.Normalize(&SearchRequest{Limit: intp(-1)}, "GET"); err == nil {
		t.Error("negative limit accepted")
	}
	// An explicit zero is invalid; only an absent limit takes the default.
	if _, err := n.Normalize(&SearchRequest{Limit: intp(0)}, "GET"); err == nil {
		t.Error("explicit zero limit accepted")
	}
	req, err = n.Normalize(&SearchRequest{Limit: intp(1000)}, "GET")
	if err != nil {
		t.Fatalf("limit at maximum rejected: %v", err)
	}
	if req.Query.Limit != 1000 {
		t.Errorf("query limit = %d, want 1000", req.Query.Limit)
	}
}

func TestNormalizeIDLookupIgnoresSpatialTemporal(t *testing.T) {
	raw := &SearchRequest{
		IDs:      []string{"x", "y"},
		BBox:     []float64{10, 55, 11, 56},
		DateTime: "2020-01-01T00:00:00Z/..",
	}
	req, err := testNormalizer().Normalize(raw, "GET")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if req.Query.Spatial != nil {
		t.Error("spatial filter applied despite id lookup")
	}
	if req.Query.TemporalStart != nil || req.Query.TemporalInstant != nil {
		t.Error("temporal filter applied despite id lookup")
	}
	if len(req.Query.Sort) != 1 || req.Query.Sort[0].Field != "id" || req.Query.Sort[0].Descending {
		t.Errorf("id lookup sort = %+v, want ascending id only", req.Query.Sort)
	}
}

func TestNormalizeDefaultSort(t *testing.T) {
	req, err := testNormalizer().Normalize(&SearchRequest{}, "GET")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	sort := req.Query.Sort
	if len(sort) != 2 {
		t.Fatalf("default sort has %d keys, want 2", len(sort))
	}
	if sort[0].Field != "datetime" || !sort[0].Descending {
		t.Errorf("primary sort = %+v, want datetime descending", sort[0])
	}
	if sort[1].Field != "id" || sort[1].Descending {
		t.Errorf("tie-break = %+v, want id ascending", sort[1])
	}
}

func TestNormalizeSortAppendsIDTieBreak(t *testing.T) {
	raw := &SearchRequest{Sortby: []SortbyItem{{Field: "gsd", Direction: "desc"}}}
	req, err := testNormalizer().Normalize(raw, "GET")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	sort := req.Query.Sort
	if len(sort) != 2 || sort[0].Field != "gsd" || !sort[0].Descending || sort[1].Field != "id" {
		t.Errorf("sort = %+v, want gsd desc then id asc", sort)
	}

	// An explicit id key is not duplicated.
	raw = &SearchRequest{Sortby: []SortbyItem{{Field: "id", Direction: "desc"}}}
	req, err = testNormalizer().Normalize(raw, "GET")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(req.Query.Sort) != 1 {
		t.Errorf("sort = %+v, want single id key", req.Query.Sort)
	}
}

func TestNormalizeSortUnknownField(t *testing.T) {
	raw := &SearchRequest{Sortby: []SortbyItem{{Field: "nope"}}}
	_, err := testNormalizer().Normalize(raw, "GET")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error is %T, want *ValidationError", err)
	}
	var unknown *queryable.UnknownFieldError
	if !errors.As(err, &unknown) {
		t.Errorf("error does not wrap *queryable.UnknownFieldError: %v", err)
	}
}

func TestNormalizeDatetime(t *testing.T) {
	n := testNormalizer()

	req, err := n.Normalize(&SearchRequest{DateTime: "2020-01-01T00:00:00Z/.."}, "GET")
	if err != nil {
		t.Fatalf("open-ended interval rejected: %v", err)
	}
	want := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if req.Query.TemporalStart == nil || !req.Query.TemporalStart.Equal(want) {
		t.Errorf("interval start = %v, want %v", req.Query.TemporalStart, want)
	}
	if req.Query.TemporalEnd != nil {
		t.Errorf("open end resolved to %v", req.Query.TemporalEnd)
	}

	req, err = n.Normalize(&SearchRequest{DateTime: "2020-06-01T12:00:00Z"}, "GET")
	if err != nil {
		t.Fatalf("instant rejected: %v", err)
	}
	if req.Query.TemporalInstant == nil {
		t.Error("instant not resolved")
	}

	if _, err := n.Normalize(&SearchRequest{DateTime: "2021-01-01T00:00:00Z/2020-01-01T00:00:00Z"}, "GET"); err == nil {
		t.Error("interval with start after end accepted")
	}
	if _, err := n.Normalize(&SearchRequest{DateTime: "yesterday"}, "GET"); err == nil {
		t.Error("malformed datetime accepted")
	}
}

func TestNormalizeUnsupportedCRS(t *testing.T) {
	for _, raw := range []*SearchRequest{
		{CRS: "http://www.opengis.net/def/crs/EPSG/0/25832"},
		{BBox: []float64{10, 55, 11, 56}, BBoxCRS: "bogus"},
		{FilterCRS: "EPSG:9999"},
	} {
		_, err := testNormalizer().Normalize(raw, "GET")
		var unsupported *crs.UnsupportedCRSError
		if !errors.As(err, &unsupported) {
			t.Errorf("request %+v: error is %T, want wrapped *crs.UnsupportedCRSError", raw, err)
			continue
		}
		if len(unsupported.Supported) != len(crs.SupportedList()) {
			t.Errorf("error lists %d supported CRS, want %d", len(unsupported.Supported), len(crs.SupportedList()))
		}
	}
}

func TestNormalizeFilterFieldNotQueryable(t *testing.T) {
	raw := &SearchRequest{
		Collections: []string{"skyfotos2017"},
		Filter: map[string]any{
			"op":   "=",
			"args": []any{map[string]any{"property": "sensor_rows"}, 1024.0},
		},
	}
	_, err := testNormalizer().Normalize(raw, "GET")
	var notQueryable *filter.FieldNotQueryableError
	if !errors.As(err, &notQueryable) {
		t.Fatalf("error is %T, want wrapped *filter.FieldNotQueryableError", err)
	}
	if notQueryable.Name != "sensor_rows" {
		t.Errorf("error names %q, want sensor_rows", notQueryable.Name)
	}

	// The same filter is fine against the collection that has the field.
	raw.Collections = []string{"skyfotos2021"}
	if _, err := testNormalizer().Normalize(raw, "GET"); err != nil {
		t.Errorf("filter rejected for collection that defines the field: %v", err)
	}
}

func TestNormalizeFilterRemovedOperator(t *testing.T) {
	raw := &SearchRequest{
		Filter: map[string]any{
			"op": "t_meets",
			"args": []any{
				map[string]any{"property": "datetime"},
				map[string]any{"interval": []any{"2020-01-01T00:00:00Z", "2020-02-01T00:00:00Z"}},
			},
		},
	}
	_, err := testNormalizer().Normalize(raw, "GET")
	var unsupported *filter.UnsupportedOperatorError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error is %T, want wrapped *filter.UnsupportedOperatorError", err)
	}
	if unsupported.Op != "meets" {
		t.Errorf("error names %q, want meets", unsupported.Op)
	}
}

func TestNormalizeFilterLang(t *testing.T) {
	raw := &SearchRequest{
		Filter:     map[string]any{"op": "=", "args": []any{map[string]any{"property": "id"}, "a"}},
		FilterLang: "cql2-text",
	}
	if _, err := testNormalizer().Normalize(raw, "GET"); err == nil {
		t.Error("unsupported filter-lang accepted")
	}

	raw.FilterLang = filter.Lang
	if _, err := testNormalizer().Normalize(raw, "GET"); err != nil {
		t.Errorf("cql2-json filter-lang rejected: %v", err)
	}
}

func TestNormalizeFilterLowersPredicate(t *testing.T) {
	raw := &SearchRequest{
		Filter: map[string]any{
			"op":   "ge",
			"args": []any{map[string]any{"property": "gsd"}, 0.1},
		},
	}
	req, err := testNormalizer().Normalize(raw, "GET")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	cmp, ok := req.Query.Where.(storage.Compare)
	if !ok {
		t.Fatalf("lowered filter is %T, want storage.Compare", req.Query.Where)
	}
	if cmp.Op != ">=" {
		t.Errorf("lowered op = %q, want >=", cmp.Op)
	}
}

func TestNormalizeToken(t *testing.T) {
	n := testNormalizer()

	// Boundary arity must match the resolved sort (datetime + id here).
	token := pagination.Encode(&pagination.Key{Values: []any{"2020-06-01T00:00:00Z", "item-9"}})
	req, err := n.Normalize(&SearchRequest{Token: token}, "GET")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if req.Query.Boundary == nil || len(req.Query.Boundary.Values) != 2 {
		t.Fatalf("boundary = %+v", req.Query.Boundary)
	}

	_, err = n.Normalize(&SearchRequest{Token: "garbage!!!"}, "GET")
	var decodeErr *pagination.TokenDecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("error is %T, want *pagination.TokenDecodeError", err)
	}

	short := pagination.Encode(&pagination.Key{Values: []any{"item-9"}})
	if _, err := n.Normalize(&SearchRequest{Token: short}, "GET"); err == nil {
		t.Error("boundary with wrong arity accepted")
	}
}

func TestNormalizeUnknownCollection(t *testing.T) {
	_, err := testNormalizer().Normalize(&SearchRequest{Collections: []string{"skyfotos1999"}}, "GET")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error is %T, want *ValidationError", err)
	}
}

func TestParseSearchRequestGET(t *testing.T) {
	r := httptest.NewRequest("GET", "/search?bbox=10,55,11,56&limit=2&collections=skyfotos2017&sortby=-datetime,%2Bid&fields=-properties.gsd&datetime=2020-01-01T00:00:00Z/..&pt=abc", nil)
	raw, err := ParseSearchRequest(r)
	if err != nil {
		t.Fatalf("ParseSearchRequest failed: %v", err)
	}
	if len(raw.BBox) != 4 || raw.BBox[2] != 11 {
		t.Errorf("bbox = %v", raw.BBox)
	}
	if raw.Limit == nil || *raw.Limit != 2 || raw.Token != "abc" {
		t.Errorf("limit = %v, pt = %q", raw.Limit, raw.Token)
	}
	if len(raw.Sortby) != 2 || raw.Sortby[0].Direction != "desc" || raw.Sortby[1].Direction != "asc" {
		t.Errorf("sortby = %+v", raw.Sortby)
	}
	if raw.Fields == nil || len(raw.Fields.Exclude) != 1 || raw.Fields.Exclude[0] != "properties.gsd" {
		t.Errorf("fields = %+v", raw.Fields)
	}
}

func TestParseSearchRequestBadValues(t *testing.T) {
	for _, target := range []string{
		"/search?bbox=a,b,c,d",
		"/search?limit=abc",
		"/search?intersects=notjson",
		"/search?sortby=%2B",
	} {
		r := httptest.NewRequest("GET", target, nil)
		if _, err := ParseSearchRequest(r); err == nil {
			t.Errorf("%s: parse succeeded, want error", target)
		}
	}
}
