package search

import "strings"

// Projection is the resolved field include/exclude sets, expressed as
// dot-separated feature paths ("id", "properties.gsd"). The sets are
// disjoint: precedence between the raw selection, the filter-referenced
// fields and the always-included defaults is resolved when the projection
// is built, not when it is applied.
type Projection struct {
	Include map[string]bool
	Exclude map[string]bool
}

// resolveProjection merges the client's fields selection with the
// always-included default set and the feature paths referenced by the
// attribute filter. An explicit exclusion beats an explicit inclusion and
// a filter reference; only a default field overrides an exclusion.
func resolveProjection(sel *FieldsSelection, defaults []string, filterPaths []string) *Projection {
	if sel.IsZero() {
		return nil
	}

	include := make(map[string]bool)
	exclude := make(map[string]bool)

	for _, name := range sel.Exclude {
		exclude[name] = true
	}
	for _, name := range sel.Include {
		if !exclude[name] {
			include[name] = true
		}
	}
	for _, path := range filterPaths {
		if !exclude[path] {
			include[path] = true
		}
	}
	for _, name := range defaults {
		include[name] = true
		delete(exclude, name)
	}

	return &Projection{Include: include, Exclude: exclude}
}

// Apply projects one serialized feature. With an include set the output is
// rebuilt from only the included paths; otherwise the excluded paths are
// pruned from a copy. The input map is never modified.
func (p *Projection) Apply(feature map[string]any) map[string]any {
	if p == nil {
		return feature
	}

	var out map[string]any
	if len(p.Include) > 0 {
		out = make(map[string]any)
		for path := range p.Include {
			copyPath(out, feature, strings.Split(path, "."))
		}
	} else {
		out = deepCopyMap(feature)
	}

	for path := range p.Exclude {
		deletePath(out, strings.Split(path, "."))
	}

	return out
}

// copyPath copies the value at the path from src into dst, creating
// intermediate maps. Missing paths are skipped silently.
func copyPath(dst, src map[string]any, path []string) {
	if len(path) == 0 {
		return
	}
	head := path[0]
	val, ok := src[head]
	if !ok {
		return
	}
	if len(path) == 1 {
		dst[head] = val
		return
	}
	srcChild, ok := val.(map[string]any)
	if !ok {
		return
	}
	dstChild, ok := dst[head].(map[string]any)
	if !ok {
		dstChild = make(map[string]any)
		dst[head] = dstChild
	}
	copyPath(dstChild, srcChild, path[1:])
}

func deletePath(m map[string]any, path []string) {
	if len(path) == 0 {
		return
	}
	if len(path) == 1 {
		delete(m, path[0])
		return
	}
	child, ok := m[path[0]].(map[string]any)
	if !ok {
		return
	}
	deletePath(child, path[1:])
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if child, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(child)
			continue
		}
		out[k] = v
	}
	return out
}

// featurePath maps a queryable name onto the path of the field in a
// serialized feature. Core fields live at the top level; everything else
// is an item property.
func featurePath(name string) string {
	switch name {
	case "id", "collection", "geometry", "bbox", "assets", "links", "type":
		return name
	}
	if strings.HasPrefix(name, "properties.") {
		return name
	}
	return "properties." + name
}
