package search

import (
	"github.com/rkm/skyfoto-stac-api/internal/queryable"
	"github.com/rkm/skyfoto-stac-api/internal/storage"
)

// resolveSort turns the requested sort criteria into executable sort keys.
// The id field is always the final key so ordering is total and keyset
// boundaries are unambiguous. With no criteria the default is newest
// first; an id-list lookup always sorts ascending by id.
func resolveSort(items []SortbyItem, registry *queryable.Registry, idLookup bool) ([]storage.SortKey, error) {
	if idLookup {
		return []storage.SortKey{idSortKey(registry)}, nil
	}

	if len(items) == 0 {
		datetime, err := registry.Resolve("datetime")
		if err != nil {
			return nil, invalid(err)
		}
		return []storage.SortKey{
			{Field: "datetime", Column: datetime.Column, Descending: true},
			idSortKey(registry),
		}, nil
	}

	keys := make([]storage.SortKey, 0, len(items)+1)
	sawID := false
	for _, item := range items {
		q, err := registry.Resolve(item.Field)
		if err != nil {
			return nil, invalid(err)
		}
		if item.Field == "id" {
			sawID = true
		}
		keys = append(keys, storage.SortKey{
			Field:      item.Field,
			Column:     q.Column,
			Descending: item.Direction == "desc",
		})
	}
	if !sawID {
		keys = append(keys, idSortKey(registry))
	}
	return keys, nil
}

func idSortKey(registry *queryable.Registry) storage.SortKey {
	key := storage.SortKey{Field: "id", Column: "id"}
	if q, err := registry.Resolve("id"); err == nil {
		key.Column = q.Column
	}
	return key
}
