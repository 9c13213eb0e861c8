// Package sqlite implements the storage executor on an embedded SQLite
// catalog. Items live in one table with their footprint bound denormalized
// into bbox columns, which stand in for a spatial index; item properties
// are a JSON column queried through json_extract accessors.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/paulmach/orb"
	_ "modernc.org/sqlite"

	"github.com/rkm/skyfoto-stac-api/internal/crs"
	"github.com/rkm/skyfoto-stac-api/internal/geo"
	"github.com/rkm/skyfoto-stac-api/internal/stac"
	"github.com/rkm/skyfoto-stac-api/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id         TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	datetime   TEXT NOT NULL,
	geometry   TEXT NOT NULL,
	bbox_xmin  REAL NOT NULL,
	bbox_ymin  REAL NOT NULL,
	bbox_xmax  REAL NOT NULL,
	bbox_ymax  REAL NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}',
	assets     TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_items_collection ON items (collection);
CREATE INDEX IF NOT EXISTS idx_items_datetime ON items (datetime DESC, id ASC);
CREATE INDEX IF NOT EXISTS idx_items_bbox ON items (bbox_xmin, bbox_xmax, bbox_ymin, bbox_ymax);
`

const itemColumns = "id, collection, datetime, geometry, bbox_xmin, bbox_ymin, bbox_xmax, bbox_ymax, properties, assets"

// instantFormat is the canonical form of the datetime column. Every stored
// value is normalized to it so that lexicographic comparison in SQL matches
// chronological order.
const instantFormat = "2006-01-02T15:04:05Z"

// Store is the SQLite-backed catalog store. It is safe for concurrent use.
type Store struct {
	db          *sql.DB
	logger      *slog.Logger
	stacVersion string
}

// Open opens (or creates) the catalog database and applies the schema.
// Path ":memory:" gives an ephemeral catalog.
func Open(path, stacVersion string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; the pool must not
	// open a second one.
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("catalog database opened", "path", path)
	return &Store{db: db, logger: logger, stacVersion: stacVersion}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LowerGeometry implements storage.GeometryLowering: it reprojects a
// geometry tagged with a non-storage SRID into the storage CRS and renders
// the storage-native expression.
func (s *Store) LowerGeometry(g orb.Geometry, srid int) (storage.GeometryExpr, error) {
	if srid != crs.StorageSRID {
		projected, err := geo.Project(g, srid, crs.StorageSRID)
		if err != nil {
			return storage.GeometryExpr{}, err
		}
		g = projected
	}
	return storage.GeometryExpr{
		WKT:      geo.WKT(g),
		SRID:     crs.StorageSRID,
		Geometry: g,
		Bound:    g.Bound(),
	}, nil
}

// InsertItem writes one item into the catalog. The item's datetime
// property and geometry are required; the footprint bound is computed
// here.
func (s *Store) InsertItem(ctx context.Context, item *stac.Item) error {
	raw, _ := item.Properties["datetime"].(string)
	if raw == "" {
		return fmt.Errorf("item %q has no datetime property", item.Id)
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("item %q datetime: %w", item.Id, err)
	}
	// Offsets and fractional seconds are folded into the canonical UTC
	// form; the column value wins over the properties JSON on read.
	datetime := ts.UTC().Format(instantFormat)

	geomJSON, err := json.Marshal(item.Geometry)
	if err != nil {
		return fmt.Errorf("item %q geometry is not serializable: %w", item.Id, err)
	}
	g, err := geo.DecodeGeometry(geomJSON)
	if err != nil {
		return fmt.Errorf("item %q geometry: %w", item.Id, err)
	}
	bound := g.Bound()

	propsJSON, err := json.Marshal(item.Properties)
	if err != nil {
		return fmt.Errorf("item %q properties: %w", item.Id, err)
	}
	assetsJSON, err := json.Marshal(item.Assets)
	if err != nil {
		return fmt.Errorf("item %q assets: %w", item.Id, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO items
			(id, collection, datetime, geometry, bbox_xmin, bbox_ymin, bbox_xmax, bbox_ymax, properties, assets)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Id, item.Collection, datetime, string(geomJSON),
		bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1],
		string(propsJSON), string(assetsJSON))
	if err != nil {
		return &storage.StorageError{Op: "insert", Err: err}
	}
	return nil
}

// Execute runs one logical query and returns a page. A limit+1 probe row
// decides the has-more flag in the paging direction; paging backward runs
// the inverted query and re-reverses the rows.
func (s *Store) Execute(ctx context.Context, q *storage.Query) (*storage.ResultPage, error) {
	where, args, err := s.buildWhere(q)
	if err != nil {
		return nil, &storage.StorageError{Op: "compile", Err: err}
	}

	backward := q.Boundary != nil && q.Boundary.Backward

	listWhere := where
	listArgs := args
	if q.Boundary != nil {
		boundarySQL, boundaryArgs := compileBoundary(q.Sort, q.Boundary.Values, q.Boundary.Backward)
		listWhere = append(listWhere, boundarySQL)
		listArgs = append(listArgs, boundaryArgs...)
	}

	query := "SELECT " + itemColumns + keyColumns(q.Sort) + " FROM items"
	if len(listWhere) > 0 {
		query += " WHERE " + strings.Join(listWhere, " AND ")
	}
	query += " " + orderBy(q.Sort, backward)
	query += fmt.Sprintf(" LIMIT %d", q.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, listArgs...)
	if err != nil {
		return nil, &storage.StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	var items []*stac.Item
	var keys [][]any
	for rows.Next() {
		item, key, err := s.scanItem(rows, len(q.Sort), q.OutputSRID)
		if err != nil {
			return nil, &storage.StorageError{Op: "scan", Err: err}
		}
		items = append(items, item)
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.StorageError{Op: "query", Err: err}
	}

	hasMore := len(items) > q.Limit
	if hasMore {
		items = items[:q.Limit]
		keys = keys[:q.Limit]
	}

	page := &storage.ResultPage{Items: items}
	if backward {
		reverse(items)
		reverse(keys)
		page.HasPrevious = hasMore
		page.HasNext = true
	} else {
		page.HasNext = hasMore
		page.HasPrevious = q.Boundary != nil
	}
	if len(keys) > 0 {
		page.FirstKey = keys[0]
		page.LastKey = keys[len(keys)-1]
	}

	if q.Count {
		matched, err := s.count(ctx, where, args)
		if err != nil {
			return nil, err
		}
		page.Matched = &matched
	}

	return page, nil
}

// buildWhere renders the query's filters, without the keyset boundary.
// An id list short-circuits the spatial and temporal filters; the
// normalizer has already dropped them in that case.
func (s *Store) buildWhere(q *storage.Query) ([]string, []any, error) {
	var where []string
	var args []any

	if len(q.Collections) > 0 {
		where = append(where, "collection IN ("+placeholders(len(q.Collections))+")")
		for _, c := range q.Collections {
			args = append(args, c)
		}
	}

	if len(q.IDs) > 0 {
		where = append(where, "id IN ("+placeholders(len(q.IDs))+")")
		for _, id := range q.IDs {
			args = append(args, id)
		}
		return where, args, nil
	}

	if q.Spatial != nil {
		b := q.Spatial.Bound
		where = append(where, "bbox_xmax >= ? AND bbox_xmin <= ? AND bbox_ymax >= ? AND bbox_ymin <= ?")
		args = append(args, b.Min[0], b.Max[0], b.Min[1], b.Max[1])
	}

	switch {
	case q.TemporalInstant != nil:
		where = append(where, "datetime = ?")
		args = append(args, q.TemporalInstant.UTC().Format(instantFormat))
	default:
		if q.TemporalStart != nil {
			where = append(where, "datetime >= ?")
			args = append(args, q.TemporalStart.UTC().Format(instantFormat))
		}
		if q.TemporalEnd != nil {
			where = append(where, "datetime <= ?")
			args = append(args, q.TemporalEnd.UTC().Format(instantFormat))
		}
	}

	if q.Where != nil {
		sql, wargs, err := compilePredicate(q.Where)
		if err != nil {
			return nil, nil, err
		}
		where = append(where, "("+sql+")")
		args = append(args, wargs...)
	}

	return where, args, nil
}

func (s *Store) count(ctx context.Context, where []string, args []any) (int, error) {
	query := "SELECT COUNT(*) FROM items"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	var matched int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&matched); err != nil {
		return 0, &storage.StorageError{Op: "count", Err: err}
	}
	return matched, nil
}

// GetItem fetches one item by collection and id.
func (s *Store) GetItem(ctx context.Context, collection, id string, outputSRID int) (*stac.Item, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE collection = ? AND id = ?", collection, id)
	item, _, err := s.scanItem(row, 0, outputSRID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, &storage.StorageError{Op: "get", Err: err}
	}
	return item, nil
}

// Collections lists the distinct collection identifiers in the catalog.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT collection FROM items ORDER BY collection")
	if err != nil {
		return nil, &storage.StorageError{Op: "collections", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &storage.StorageError{Op: "collections", Err: err}
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanItem reads one row into an item plus its sort-key tuple. The
// geometry is reprojected when the requested output CRS differs from the
// storage CRS.
func (s *Store) scanItem(row scanner, sortKeys int, outputSRID int) (*stac.Item, []any, error) {
	var (
		id, collection, datetime       string
		geomJSON, propsJSON, assetJSON string
		xmin, ymin, xmax, ymax         float64
	)

	dest := []any{&id, &collection, &datetime, &geomJSON, &xmin, &ymin, &xmax, &ymax, &propsJSON, &assetJSON}
	key := make([]any, sortKeys)
	for i := range key {
		dest = append(dest, &key[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, nil, err
	}

	item := stac.NewItem(id, collection, s.stacVersion)
	if err := json.Unmarshal([]byte(propsJSON), &item.Properties); err != nil {
		return nil, nil, fmt.Errorf("item %q properties: %w", id, err)
	}
	if err := json.Unmarshal([]byte(assetJSON), &item.Assets); err != nil {
		return nil, nil, fmt.Errorf("item %q assets: %w", id, err)
	}
	item.Properties["datetime"] = datetime

	if outputSRID != 0 && outputSRID != crs.StorageSRID {
		g, err := geo.DecodeGeometry([]byte(geomJSON))
		if err != nil {
			return nil, nil, fmt.Errorf("item %q geometry: %w", id, err)
		}
		projected, err := geo.Project(g, crs.StorageSRID, outputSRID)
		if err != nil {
			return nil, nil, fmt.Errorf("item %q geometry: %w", id, err)
		}
		item.Geometry = geo.EncodeGeometry(projected)
		item.Bbox = geo.ComputeBBox(projected)
	} else {
		item.Geometry = json.RawMessage(geomJSON)
		item.Bbox = []float64{xmin, ymin, xmax, ymax}
	}

	return item, key, nil
}

func keyColumns(sort []storage.SortKey) string {
	var sb strings.Builder
	for _, key := range sort {
		sb.WriteString(", ")
		sb.WriteString(key.Column)
	}
	return sb.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
