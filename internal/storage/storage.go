// Package storage defines the contract between the search core and the
// engine that executes queries. The core hands an Executor a fully
// validated logical query (predicate, sort keys, limit, keyset boundary);
// the executor returns an ordered page of catalog items plus the boundary
// keys and has-more flags needed for pagination tokens.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/rkm/skyfoto-stac-api/internal/pagination"
	"github.com/rkm/skyfoto-stac-api/internal/stac"
)

var (
	// ErrNotFound is returned by item lookups that match no row.
	ErrNotFound = errors.New("item not found")
)

// StorageError wraps an opaque execution failure. It is surfaced as a
// server error and never retried by the core.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// GeometryExpr is a storage-native geometry constructor: the geometry
// reprojected into the storage CRS, carried both as WKT (for engines that
// take text geometry) and as the parsed form with its bound (for engines
// that evaluate spatial predicates themselves).
type GeometryExpr struct {
	WKT      string
	SRID     int
	Geometry orb.Geometry
	Bound    orb.Bound
}

// GeometryLowering converts a geometry literal tagged with a source SRID
// into a storage-native geometry expression, reprojecting when the tag
// differs from the storage CRS. The storage collaborator supplies the
// implementation; the filter translator only calls through it.
type GeometryLowering func(geom orb.Geometry, srid int) (GeometryExpr, error)

// SortKey is one resolved sort criterion.
type SortKey struct {
	Field      string // queryable name, used in boundary keys
	Column     string // storage-column accessor
	Descending bool
}

// Query is the logical description of one search the executor runs.
// All validation has happened before a Query is built; executors may
// assume the contents are well formed.
type Query struct {
	Collections []string

	// IDs, when non-empty, short-circuits spatial/temporal filtering.
	IDs []string

	// Spatial is the bbox/intersects filter in storage CRS, or nil.
	Spatial *GeometryExpr

	// Temporal filter: either Instant, or a half/fully bounded interval.
	TemporalInstant *time.Time
	TemporalStart   *time.Time
	TemporalEnd     *time.Time

	// Where is the lowered attribute filter, or nil.
	Where Predicate

	Sort  []SortKey
	Limit int

	// Boundary is the decoded pagination token, or nil for the first page.
	Boundary *pagination.Key

	// Count requests the total match count (a second, independent query;
	// there is no transactional consistency with the page listing).
	Count bool

	// OutputSRID selects the CRS geometries are returned in.
	OutputSRID int
}

// ResultPage is one executed page of results.
type ResultPage struct {
	Items []*stac.Item

	HasNext     bool
	HasPrevious bool

	// FirstKey/LastKey are the sort-key tuples of the page boundary rows,
	// used to mint the previous/next pagination tokens.
	FirstKey []any
	LastKey  []any

	// Matched is the total match count when Query.Count was set.
	Matched *int
}

// Executor runs logical queries against the catalog store.
type Executor interface {
	// Execute runs the query and returns one page. Failures are wrapped
	// in *StorageError.
	Execute(ctx context.Context, q *Query) (*ResultPage, error)

	// GetItem fetches a single item by id, with its geometry expressed in
	// outputSRID. Returns ErrNotFound when no row matches.
	GetItem(ctx context.Context, collection, id string, outputSRID int) (*stac.Item, error)

	// Collections lists the collection identifiers present in the store.
	Collections(ctx context.Context) ([]string, error)
}
