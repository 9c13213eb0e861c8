package queryable

import (
	"fmt"
	"strings"
)

// SchemaDocument builds the JSON-Schema queryables document served by the
// /queryables endpoints. With an empty collectionID it describes the
// queryables shared by every collection.
func (r *Registry) SchemaDocument(baseURL, collectionID string) map[string]any {
	var ids []string
	id := strings.TrimRight(baseURL, "/") + "/queryables"
	title := "Skyfoto STAC API - Shared queryables"
	if collectionID != "" {
		ids = []string{collectionID}
		id = fmt.Sprintf("%s/collections/%s/queryables", strings.TrimRight(baseURL, "/"), collectionID)
		title = strings.ToUpper(collectionID[:1]) + collectionID[1:]
	}

	base, shared := r.Intersection(ids)

	properties := make(map[string]any, len(base)+len(shared))
	for _, name := range append(base, shared...) {
		q, err := r.Resolve(name)
		if err != nil {
			continue
		}
		entry := map[string]any{
			"description": q.Description,
		}
		if q.Ref != "" {
			entry["$ref"] = q.Ref
		} else {
			entry["type"] = q.Type
		}
		properties[name] = entry
	}

	return map[string]any{
		"$schema":    "https://json-schema.org/draft/2019-09/schema",
		"$id":        id,
		"type":       "object",
		"title":      title,
		"properties": properties,
	}
}
