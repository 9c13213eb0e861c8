// Package crs validates and normalizes coordinate reference system
// identifiers for the search API.
//
// Identifiers are OGC CRS URIs. The catalog of supported systems is fixed at
// startup; lookups are pure table reads and safe for concurrent use.
package crs

import (
	"fmt"
	"strconv"
	"strings"
)

// StorageSRID is the SRID geometries are stored in (WGS 84).
const StorageSRID = 4326

// CRS84 is the default CRS mandated by OGC API Features (lon/lat WGS 84).
const CRS84 = "http://www.opengis.net/def/crs/OGC/1.3/CRS84"

// supported maps each accepted CRS URI to its numeric SRID.
// The slice keeps the stable order used in error messages and the
// conformance advertisement.
var supportedOrder = []string{
	CRS84,
	"http://www.opengis.net/def/crs/EPSG/0/4326",
	"http://www.opengis.net/def/crs/EPSG/0/3857",
}

var supported = map[string]int{
	CRS84: 4326,
	"http://www.opengis.net/def/crs/EPSG/0/4326": 4326,
	"http://www.opengis.net/def/crs/EPSG/0/3857": 3857,
}

// UnsupportedCRSError is returned when a CRS identifier is outside the
// supported catalog. It carries the full supported list so callers can
// build self-correcting error messages.
type UnsupportedCRSError struct {
	Identifier string
	Supported  []string
}

func (e *UnsupportedCRSError) Error() string {
	return fmt.Sprintf("%q is not a supported CRS, supported CRS are: %s",
		e.Identifier, strings.Join(e.Supported, ", "))
}

// IsSupported reports whether the identifier is in the supported catalog.
// Both URI form and bare SRID form ("4326") are accepted.
func IsSupported(identifier string) bool {
	_, err := ToSRID(identifier)
	return err == nil
}

// ToSRID resolves a CRS identifier to its numeric SRID.
// Accepts the URI form ("http://www.opengis.net/def/crs/EPSG/0/4326") and,
// as the original API did, a bare SRID string ("4326").
func ToSRID(identifier string) (int, error) {
	if srid, ok := supported[identifier]; ok {
		return srid, nil
	}

	// Bare SRID form: accepted only if some supported URI maps to it.
	if n, err := strconv.Atoi(identifier); err == nil {
		for _, uri := range supportedOrder {
			if supported[uri] == n {
				return n, nil
			}
		}
	}

	return 0, &UnsupportedCRSError{Identifier: identifier, Supported: SupportedList()}
}

// SupportedList returns the supported CRS URIs in stable order.
func SupportedList() []string {
	out := make([]string, len(supportedOrder))
	copy(out, supportedOrder)
	return out
}

// Descriptor returns the named-CRS object stamped onto each returned
// feature, identifying the CRS its geometry is expressed in.
func Descriptor(srid int) map[string]any {
	return map[string]any{
		"type": "name",
		"properties": map[string]any{
			"name": fmt.Sprintf("EPSG:%d", srid),
		},
	}
}
