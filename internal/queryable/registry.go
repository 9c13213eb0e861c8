// Package queryable holds the static per-collection registry of fields that
// may appear in filter and sort expressions.
//
// The registry is built once at startup and never mutated, so it is safe
// for unlimited concurrent readers.
package queryable

import (
	"fmt"
	"sort"
)

// Queryable describes a named logical field eligible for filtering.
type Queryable struct {
	Name        string
	Type        string // JSON-Schema type tag ("string", "number", ...)
	Description string
	Ref         string // optional $ref schema pointer, wins over Type when set
	Column      string // backing storage-column accessor
}

// UnknownFieldError is returned when a field name is not in the registry.
type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown queryable field: %s", e.Name)
}

// Registry maps collection identifiers to their queryable fields.
// Base queryables are valid for every collection.
type Registry struct {
	base        []Queryable
	collections map[string][]Queryable
	ids         []string // stable collection order
}

// New builds a registry from a base set and per-collection sets.
func New(base []Queryable, collections map[string][]Queryable) *Registry {
	ids := make([]string, 0, len(collections))
	for id := range collections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &Registry{base: base, collections: collections, ids: ids}
}

// CollectionIDs returns all known collection identifiers in stable order.
func (r *Registry) CollectionIDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Has reports whether the collection is known to the registry.
func (r *Registry) Has(collectionID string) bool {
	_, ok := r.collections[collectionID]
	return ok
}

// AllNames returns the union of queryable names across every collection
// plus the base set.
func (r *Registry) AllNames() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(q Queryable) {
		if !seen[q.Name] {
			seen[q.Name] = true
			names = append(names, q.Name)
		}
	}
	for _, q := range r.base {
		add(q)
	}
	for _, id := range r.ids {
		for _, q := range r.collections[id] {
			add(q)
		}
	}
	return names
}

// Intersection returns the base queryable names plus the names shared by
// ALL of the given collections. An empty input means the intersection
// across every known collection. Shared names come back sorted.
func (r *Registry) Intersection(collectionIDs []string) (base []string, shared []string) {
	for _, q := range r.base {
		base = append(base, q.Name)
	}

	ids := collectionIDs
	if len(ids) == 0 {
		ids = r.ids
	}

	var sets []map[string]bool
	for _, id := range ids {
		qs, ok := r.collections[id]
		if !ok {
			continue
		}
		set := make(map[string]bool, len(qs))
		for _, q := range qs {
			set[q.Name] = true
		}
		sets = append(sets, set)
	}
	if len(sets) == 0 {
		return base, nil
	}

	for name := range sets[0] {
		inAll := true
		for _, set := range sets[1:] {
			if !set[name] {
				inAll = false
				break
			}
		}
		if inAll {
			shared = append(shared, name)
		}
	}
	sort.Strings(shared)
	return base, shared
}

// Resolve looks up the metadata for a field name anywhere in the registry.
func (r *Registry) Resolve(name string) (Queryable, error) {
	for _, q := range r.base {
		if q.Name == name {
			return q, nil
		}
	}
	for _, id := range r.ids {
		for _, q := range r.collections[id] {
			if q.Name == name {
				return q, nil
			}
		}
	}
	return Queryable{}, &UnknownFieldError{Name: name}
}

// FieldMapping returns the field-name to storage-column accessor mapping
// used when lowering filter expressions.
func (r *Registry) FieldMapping() map[string]string {
	mapping := make(map[string]string)
	for _, q := range r.base {
		mapping[q.Name] = q.Column
	}
	for _, id := range r.ids {
		for _, q := range r.collections[id] {
			mapping[q.Name] = q.Column
		}
	}
	return mapping
}
