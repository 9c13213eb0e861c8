package search

import (
	"fmt"
	"strings"

	"github.com/rkm/skyfoto-stac-api/internal/config"
	"github.com/rkm/skyfoto-stac-api/internal/crs"
	"github.com/rkm/skyfoto-stac-api/internal/filter"
	"github.com/rkm/skyfoto-stac-api/internal/geo"
	"github.com/rkm/skyfoto-stac-api/internal/pagination"
	"github.com/rkm/skyfoto-stac-api/internal/queryable"
	"github.com/rkm/skyfoto-stac-api/internal/storage"
)

// Request is the canonical, immutable result of normalization. Once built
// it is complete: the executor runs Query as-is, and the assembler uses
// the rest to produce the response. No partially validated Request ever
// escapes Normalize.
type Request struct {
	Query      *storage.Query
	Limit      int
	OutputSRID int

	// Projection is the resolved fields selection, or nil for no
	// projection.
	Projection *Projection

	// Raw is the request as received; pagination links reproduce it.
	Raw    *SearchRequest
	Method string // http.MethodGet or http.MethodPost
}

// Normalizer validates raw search requests and produces canonical ones.
// It holds only read-only collaborators and is safe for concurrent use.
type Normalizer struct {
	Registry *queryable.Registry
	Config   config.SearchConfig

	// LowerGeometry converts validated request geometry into the storage
	// form, reprojecting from the tagged CRS. Supplied by the storage
	// collaborator.
	LowerGeometry storage.GeometryLowering
}

// Normalize runs the validation pipeline over a raw request. Stages run in
// a fixed order (fields, CRS, spatial, temporal, filter, sort, token); the
// first failure aborts, so no storage call is ever issued for a request
// that did not fully validate.
func (n *Normalizer) Normalize(raw *SearchRequest, method string) (*Request, error) {
	if raw == nil {
		return nil, validationErrorf("search request cannot be nil")
	}

	if err := n.validateShape(raw); err != nil {
		return nil, err
	}

	limit := n.Config.DefaultLimit
	if raw.Limit != nil {
		limit = *raw.Limit
	}

	outputSRID, bboxSRID, filterSRID, err := n.resolveCRS(raw)
	if err != nil {
		return nil, err
	}

	// An explicit id list takes precedence: spatial and temporal filters
	// are ignored downstream, not rejected.
	idLookup := len(raw.IDs) > 0

	query := &storage.Query{
		Collections: raw.Collections,
		IDs:         raw.IDs,
		Limit:       limit,
		Count:       n.Config.EnableContext,
		OutputSRID:  outputSRID,
	}

	if !idLookup {
		spatial, err := n.resolveSpatial(raw, bboxSRID)
		if err != nil {
			return nil, err
		}
		query.Spatial = spatial
	}

	temporal, err := ParseDatetime(raw.DateTime)
	if err != nil {
		return nil, err
	}
	if !idLookup && !temporal.IsZero() {
		query.TemporalInstant = temporal.Instant
		query.TemporalStart = temporal.Start
		query.TemporalEnd = temporal.End
	}

	filterPaths, err := n.resolveFilter(raw, filterSRID, query)
	if err != nil {
		return nil, err
	}

	query.Sort, err = resolveSort(raw.Sortby, n.Registry, idLookup)
	if err != nil {
		return nil, err
	}

	if raw.Token != "" {
		boundary, err := pagination.Decode(raw.Token)
		if err != nil {
			return nil, err
		}
		if len(boundary.Values) != len(query.Sort) {
			return nil, &pagination.TokenDecodeError{
				Token: raw.Token,
				Err:   fmt.Errorf("boundary has %d values, sort has %d keys", len(boundary.Values), len(query.Sort)),
			}
		}
		query.Boundary = boundary
	}

	var projection *Projection
	if n.Config.EnableFields {
		projection = resolveProjection(raw.Fields, n.Config.DefaultIncludes, filterPaths)
	}

	return &Request{
		Query:      query,
		Limit:      limit,
		OutputSRID: outputSRID,
		Projection: projection,
		Raw:        raw,
		Method:     method,
	}, nil
}

// validateShape checks the request fields that need no collaborator:
// bbox shape and ordering, mutual exclusions, limit bounds, collection
// and id names.
func (n *Normalizer) validateShape(raw *SearchRequest) error {
	if len(raw.BBox) > 0 {
		if err := validateBBox(raw.BBox); err != nil {
			return err
		}
	}
	if len(raw.BBox) > 0 && len(raw.Intersects) > 0 {
		return validationErrorf("cannot specify both bbox and intersects")
	}

	if raw.Limit != nil && (*raw.Limit < 1 || *raw.Limit > n.Config.MaxLimit) {
		return validationErrorf("limit must be between 1 and %d, got %d", n.Config.MaxLimit, *raw.Limit)
	}

	for _, id := range raw.IDs {
		if strings.TrimSpace(id) == "" {
			return validationErrorf("ids must not contain empty values")
		}
	}
	for _, coll := range raw.Collections {
		if !n.Registry.Has(coll) {
			return validationErrorf("unknown collection %q, known collections: %s",
				coll, strings.Join(n.Registry.CollectionIDs(), ", "))
		}
	}

	if raw.Filter != nil && raw.FilterLang != "" && raw.FilterLang != filter.Lang {
		return validationErrorf("unsupported filter-lang %q, only %q is supported", raw.FilterLang, filter.Lang)
	}

	return nil
}

// validateBBox checks a 2-D (4 element) or 3-D (6 element) bounding box.
func validateBBox(bbox []float64) error {
	switch len(bbox) {
	case 4:
		xmin, ymin, xmax, ymax := bbox[0], bbox[1], bbox[2], bbox[3]
		if xmax < xmin {
			return validationErrorf("bbox xmax (%f) must not be less than xmin (%f)", xmax, xmin)
		}
		if ymax < ymin {
			return validationErrorf("bbox ymax (%f) must not be less than ymin (%f)", ymax, ymin)
		}
	case 6:
		xmin, ymin, minElev := bbox[0], bbox[1], bbox[2]
		xmax, ymax, maxElev := bbox[3], bbox[4], bbox[5]
		if xmax < xmin {
			return validationErrorf("bbox xmax (%f) must not be less than xmin (%f)", xmax, xmin)
		}
		if ymax < ymin {
			return validationErrorf("bbox ymax (%f) must not be less than ymin (%f)", ymax, ymin)
		}
		if maxElev < minElev {
			return validationErrorf("bbox max elevation (%f) must not be less than min elevation (%f)", maxElev, minElev)
		}
	default:
		return validationErrorf("bbox must have 4 or 6 coordinates, got %d", len(bbox))
	}
	return nil
}

// resolveCRS validates the three independent CRS parameters and converts
// them to SRIDs. Each failure carries the supported catalog.
func (n *Normalizer) resolveCRS(raw *SearchRequest) (outputSRID, bboxSRID, filterSRID int, err error) {
	outputSRID = crs.StorageSRID
	if raw.CRS != "" {
		outputSRID, err = crs.ToSRID(raw.CRS)
		if err != nil {
			return 0, 0, 0, invalid(err)
		}
	}

	bboxSRID = crs.StorageSRID
	if raw.BBoxCRS != "" {
		bboxSRID, err = crs.ToSRID(raw.BBoxCRS)
		if err != nil {
			return 0, 0, 0, invalid(err)
		}
	}

	filterSRID = crs.StorageSRID
	if raw.FilterCRS != "" {
		filterSRID, err = crs.ToSRID(raw.FilterCRS)
		if err != nil {
			return 0, 0, 0, invalid(err)
		}
	}

	return outputSRID, bboxSRID, filterSRID, nil
}

// resolveSpatial builds the storage geometry expression from bbox or
// intersects. Mutual exclusion was already checked.
func (n *Normalizer) resolveSpatial(raw *SearchRequest, bboxSRID int) (*storage.GeometryExpr, error) {
	switch {
	case len(raw.BBox) > 0:
		poly := geo.BBoxPolygon(raw.BBox)
		expr, err := n.LowerGeometry(poly, bboxSRID)
		if err != nil {
			return nil, invalid(err)
		}
		return &expr, nil

	case len(raw.Intersects) > 0:
		g, err := geo.DecodeGeometry(raw.Intersects)
		if err != nil {
			return nil, invalid(fmt.Errorf("invalid intersects geometry: %w", err))
		}
		expr, err := n.LowerGeometry(g, crs.StorageSRID)
		if err != nil {
			return nil, invalid(err)
		}
		return &expr, nil
	}

	return nil, nil
}

// resolveFilter parses, validates and lowers the attribute filter onto the
// query. It returns the feature paths of the fields the filter references,
// which the projection retains in the output.
func (n *Normalizer) resolveFilter(raw *SearchRequest, filterSRID int, query *storage.Query) ([]string, error) {
	if raw.Filter == nil {
		return nil, nil
	}

	expr, err := filter.Parse(raw.Filter)
	if err != nil {
		return nil, invalid(err)
	}

	base, shared := n.Registry.Intersection(raw.Collections)
	allowed := append(base, shared...)
	if err := filter.ValidateFields(expr, allowed); err != nil {
		return nil, invalid(err)
	}
	if err := filter.ValidateOperators(expr, filter.AllowedOperators(n.Config.RemovedOperators)); err != nil {
		return nil, invalid(err)
	}

	if filterSRID != crs.StorageSRID {
		filter.RewriteGeometryCRS(expr, filterSRID)
	}

	fields := filter.CollectFields(expr)
	paths := make([]string, 0, len(fields))
	for _, name := range fields {
		paths = append(paths, featurePath(name))
	}

	query.Where, err = filter.Lower(expr, n.Registry.FieldMapping(), n.LowerGeometry)
	if err != nil {
		return nil, invalid(err)
	}

	return paths, nil
}
