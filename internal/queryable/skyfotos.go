package queryable

// Built-in registry for the skyfoto catalog. The three vintages share one
// oblique-photo property schema; the newest vintage additionally records
// the camera sensor dimensions.

func baseQueryables() []Queryable {
	return []Queryable{
		{Name: "id", Type: "string", Description: "Item identifier", Column: "id"},
		{Name: "collection", Type: "string", Description: "Collection the item belongs to", Column: "collection"},
		{Name: "datetime", Type: "string", Description: "Acquisition time, RFC 3339 UTC",
			Ref: "https://schemas.opengis.net/ogcapi/features/part1/1.0/openapi/schemas/datetime.yaml", Column: "datetime"},
		{Name: "geometry", Type: "object", Description: "Footprint geometry",
			Ref: "https://geojson.org/schema/Geometry.json", Column: "geometry"},
	}
}

func obliqueQueryables() []Queryable {
	return []Queryable{
		{Name: "direction", Type: "string", Description: "Compass direction of the oblique view", Column: "json_extract(properties, '$.direction')"},
		{Name: "gsd", Type: "number", Description: "Ground sample distance in meters", Column: "json_extract(properties, '$.gsd')"},
		{Name: "camera_id", Type: "string", Description: "Identifier of the capturing camera", Column: "json_extract(properties, '$.camera_id')"},
		{Name: "photo_type", Type: "string", Description: "Photo type (oblique or nadir)", Column: "json_extract(properties, '$.photo_type')"},
		{Name: "producer", Type: "string", Description: "Producing organization", Column: "json_extract(properties, '$.producer')"},
	}
}

// NewSkyfotoRegistry returns the registry for the built-in collections.
func NewSkyfotoRegistry() *Registry {
	oblique := obliqueQueryables()

	latest := make([]Queryable, len(oblique), len(oblique)+1)
	copy(latest, oblique)
	latest = append(latest, Queryable{
		Name:        "sensor_rows",
		Type:        "integer",
		Description: "Sensor row count of the capturing camera",
		Column:      "json_extract(properties, '$.sensor_rows')",
	})

	return New(baseQueryables(), map[string][]Queryable{
		"skyfotos2017": oblique,
		"skyfotos2019": oblique,
		"skyfotos2021": latest,
	})
}
