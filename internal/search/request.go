// Package search turns a raw, partially-untrusted search request into one
// canonical, fully validated query and assembles the response page. It is
// the pipeline between the HTTP layer and the storage executor: parse,
// normalize, execute (by the caller), assemble.
package search

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// SortbyItem represents a single sort criterion.
type SortbyItem struct {
	Field     string `json:"field"`
	Direction string `json:"direction"` // "asc" or "desc"
}

// FieldsSelection is the fields-extension projection request. In a POST
// body it arrives as this object; in a GET request it is parsed from the
// comma-separated token form where a leading "-" excludes a field.
type FieldsSelection struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// IsZero reports whether no projection was requested.
func (f *FieldsSelection) IsZero() bool {
	return f == nil || (len(f.Include) == 0 && len(f.Exclude) == 0)
}

// SearchRequest is the raw request as received, before normalization.
// It deserializes directly from a POST body; ParseSearchRequest builds the
// same shape from GET query parameters.
type SearchRequest struct {
	BBox        []float64       `json:"bbox,omitempty"`
	BBoxCRS     string          `json:"bbox-crs,omitempty"`
	Intersects  json.RawMessage `json:"intersects,omitempty"`
	DateTime    string          `json:"datetime,omitempty"`
	IDs         []string        `json:"ids,omitempty"`
	Collections []string        `json:"collections,omitempty"`

	// Limit is nil when absent; an explicit zero is invalid, not a
	// request for the default.
	Limit *int `json:"limit,omitempty"`

	// Token is the opaque keyset continuation token ("pt" on the wire).
	Token string `json:"pt,omitempty"`

	Sortby []SortbyItem     `json:"sortby,omitempty"`
	Fields *FieldsSelection `json:"fields,omitempty"`

	Filter     any    `json:"filter,omitempty"`
	FilterLang string `json:"filter-lang,omitempty"`
	FilterCRS  string `json:"filter-crs,omitempty"`

	// CRS selects the coordinate system of returned geometries.
	CRS string `json:"crs,omitempty"`
}

// ParseSearchRequest parses a search request from GET query parameters.
// Only wire-format errors are reported here; semantic validation happens
// in Normalize.
func ParseSearchRequest(r *http.Request) (*SearchRequest, error) {
	query := r.URL.Query()
	req := &SearchRequest{}

	if bboxStr := query.Get("bbox"); bboxStr != "" {
		parts := strings.Split(bboxStr, ",")
		bbox := make([]float64, len(parts))
		for i, part := range parts {
			val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, validationErrorf("invalid bbox coordinate at position %d: %w", i, err)
			}
			bbox[i] = val
		}
		req.BBox = bbox
	}
	req.BBoxCRS = query.Get("bbox-crs")

	if intersects := query.Get("intersects"); intersects != "" {
		if !json.Valid([]byte(intersects)) {
			return nil, validationErrorf("intersects must be valid GeoJSON geometry")
		}
		req.Intersects = json.RawMessage(intersects)
	}

	req.DateTime = query.Get("datetime")

	if ids := query.Get("ids"); ids != "" {
		req.IDs = splitTrimmed(ids)
	}
	if collections := query.Get("collections"); collections != "" {
		req.Collections = splitTrimmed(collections)
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, validationErrorf("invalid limit parameter: %w", err)
		}
		req.Limit = &limit
	}

	req.Token = query.Get("pt")

	if sortbyStr := query.Get("sortby"); sortbyStr != "" {
		items, err := parseSortbyParam(sortbyStr)
		if err != nil {
			return nil, invalid(fmt.Errorf("invalid sortby parameter: %w", err))
		}
		req.Sortby = items
	}

	if fieldsStr := query.Get("fields"); fieldsStr != "" {
		req.Fields = parseFieldsParam(fieldsStr)
	}

	// The filter arrives as a JSON string in GET requests; it is kept raw
	// here and handed to the filter parser during normalization.
	if filter := query.Get("filter"); filter != "" {
		req.Filter = filter
	}
	req.FilterLang = query.Get("filter-lang")
	req.FilterCRS = query.Get("filter-crs")

	req.CRS = query.Get("crs")

	return req, nil
}

// ParseSearchRequestBody parses a search request from a POST JSON body.
func ParseSearchRequestBody(body io.Reader) (*SearchRequest, error) {
	var req SearchRequest
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(&req); err != nil {
		return nil, validationErrorf("failed to parse search request body: %w", err)
	}
	return &req, nil
}

func splitTrimmed(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseSortbyParam parses the sortby query parameter.
// Format: sortby=-datetime,+id (leading + is asc, - is desc, default asc).
func parseSortbyParam(sortbyStr string) ([]SortbyItem, error) {
	fields := strings.Split(sortbyStr, ",")
	items := make([]SortbyItem, 0, len(fields))

	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		direction := "asc"
		name := field
		switch {
		case strings.HasPrefix(field, "+"):
			name = field[1:]
		case strings.HasPrefix(field, "-"):
			direction = "desc"
			name = field[1:]
		}
		if name == "" {
			return nil, fmt.Errorf("empty field name in sortby")
		}

		items = append(items, SortbyItem{Field: name, Direction: direction})
	}

	return items, nil
}

// parseFieldsParam parses the fields query parameter.
// Format: fields=+properties.gsd,-assets (leading - excludes, otherwise
// includes).
func parseFieldsParam(fieldsStr string) *FieldsSelection {
	sel := &FieldsSelection{}
	for _, token := range strings.Split(fieldsStr, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		switch {
		case strings.HasPrefix(token, "-"):
			if name := token[1:]; name != "" {
				sel.Exclude = append(sel.Exclude, name)
			}
		case strings.HasPrefix(token, "+"):
			if name := token[1:]; name != "" {
				sel.Include = append(sel.Include, name)
			}
		default:
			sel.Include = append(sel.Include, token)
		}
	}
	if sel.IsZero() {
		return nil
	}
	return sel
}

// ToQueryParams converts the raw request to URL query parameters. It is
// used to rebuild the query string in GET pagination links, so every
// recognized key that was set must survive the round trip.
func (req *SearchRequest) ToQueryParams() url.Values {
	params := url.Values{}

	if len(req.BBox) >= 4 {
		strs := make([]string, len(req.BBox))
		for i, v := range req.BBox {
			strs[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		params.Set("bbox", strings.Join(strs, ","))
	}
	if req.BBoxCRS != "" {
		params.Set("bbox-crs", req.BBoxCRS)
	}
	if len(req.Intersects) > 0 {
		params.Set("intersects", string(req.Intersects))
	}
	if req.DateTime != "" {
		params.Set("datetime", req.DateTime)
	}
	if len(req.IDs) > 0 {
		params.Set("ids", strings.Join(req.IDs, ","))
	}
	if len(req.Collections) > 0 {
		params.Set("collections", strings.Join(req.Collections, ","))
	}
	if len(req.Sortby) > 0 {
		var strs []string
		for _, item := range req.Sortby {
			prefix := "+"
			if item.Direction == "desc" {
				prefix = "-"
			}
			strs = append(strs, prefix+item.Field)
		}
		params.Set("sortby", strings.Join(strs, ","))
	}
	if !req.Fields.IsZero() {
		var tokens []string
		for _, name := range req.Fields.Include {
			tokens = append(tokens, name)
		}
		for _, name := range req.Fields.Exclude {
			tokens = append(tokens, "-"+name)
		}
		params.Set("fields", strings.Join(tokens, ","))
	}
	if req.Filter != nil {
		if text, ok := req.Filter.(string); ok {
			params.Set("filter", text)
		} else if data, err := json.Marshal(req.Filter); err == nil && string(data) != "null" {
			params.Set("filter", string(data))
		}
		if req.FilterLang != "" {
			params.Set("filter-lang", req.FilterLang)
		}
	}
	if req.FilterCRS != "" {
		params.Set("filter-crs", req.FilterCRS)
	}
	if req.CRS != "" {
		params.Set("crs", req.CRS)
	}

	return params
}

// ToBody converts the raw request to the map form carried in POST
// pagination link bodies. The pagination token is substituted by the
// caller.
func (req *SearchRequest) ToBody() map[string]any {
	data, err := json.Marshal(req)
	if err != nil {
		return map[string]any{}
	}
	body := make(map[string]any)
	if err := json.Unmarshal(data, &body); err != nil {
		return map[string]any{}
	}
	delete(body, "pt")
	return body
}
