package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rkm/skyfoto-stac-api/internal/config"
	"github.com/rkm/skyfoto-stac-api/internal/crs"
	"github.com/rkm/skyfoto-stac-api/internal/queryable"
	"github.com/rkm/skyfoto-stac-api/internal/search"
	"github.com/rkm/skyfoto-stac-api/internal/stac"
	"github.com/rkm/skyfoto-stac-api/internal/storage"
)

// Handlers contains all HTTP handlers for the STAC API.
type Handlers struct {
	cfg        *config.Config
	store      storage.Executor
	registry   *queryable.Registry
	normalizer *search.Normalizer
	assembler  *search.Assembler
	logger     *slog.Logger
}

// NewHandlers creates a new Handlers instance with the given dependencies.
// The geometry lowering strategy comes from the storage collaborator and is
// threaded into the normalizer.
func NewHandlers(
	cfg *config.Config,
	store storage.Executor,
	lowerGeometry storage.GeometryLowering,
	registry *queryable.Registry,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		cfg:      cfg,
		store:    store,
		registry: registry,
		normalizer: &search.Normalizer{
			Registry:      registry,
			Config:        cfg.Search,
			LowerGeometry: lowerGeometry,
		},
		assembler: &search.Assembler{
			BaseURL: cfg.STAC.BaseURL,
			Config:  cfg.Search,
		},
		logger: logger,
	}
}

// LandingPage returns the STAC API landing page (root catalog).
// GET /
func (h *Handlers) LandingPage(w http.ResponseWriter, r *http.Request) {
	baseURL := h.cfg.STAC.BaseURL

	landing := stac.NewLandingPage(
		"skyfoto-stac",
		h.cfg.STAC.Title,
		h.cfg.STAC.Description,
		h.cfg.STAC.Version,
		stac.DefaultConformance(),
	)

	landing.AddLink("self", baseURL+"/", "application/json")
	landing.AddLink("root", baseURL+"/", "application/json")
	landing.AddLink("conformance", baseURL+"/conformance", "application/json")
	landing.AddLink("data", baseURL+"/collections", "application/json")
	landing.AddLink("search", baseURL+"/search", "application/geo+json")
	if h.cfg.Search.EnableQueryables {
		landing.AddLink("http://www.opengis.net/def/rel/ogc/1.0/queryables", baseURL+"/queryables", "application/schema+json")
	}

	WriteJSON(w, http.StatusOK, landing)
}

// Conformance returns the conformance classes supported by this API.
// GET /conformance
func (h *Handlers) Conformance(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, stac.Conformance{ConformsTo: stac.DefaultConformance()})
}

// Collections returns the list of all available collections.
// GET /collections
func (h *Handlers) Collections(w http.ResponseWriter, r *http.Request) {
	collections := make([]*stac.Collection, 0, len(h.registry.CollectionIDs()))
	for _, id := range h.registry.CollectionIDs() {
		collections = append(collections, h.buildCollection(id))
	}

	list := stac.NewCollectionsList(collections)
	baseURL := h.cfg.STAC.BaseURL
	list.Links = append(list.Links,
		&stac.Link{Rel: "self", Href: baseURL + "/collections", Type: "application/json"},
		&stac.Link{Rel: "root", Href: baseURL + "/", Type: "application/json"},
	)

	WriteJSON(w, http.StatusOK, list)
}

// Collection returns a single collection by ID.
// GET /collections/{collectionId}
func (h *Handlers) Collection(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionId")
	if !h.registry.Has(collectionID) {
		WriteNotFound(w, "collection not found: "+collectionID)
		return
	}
	WriteJSON(w, http.StatusOK, h.buildCollection(collectionID))
}

// Items returns items from a specific collection. The endpoint accepts the
// same parameters as search, scoped to the one collection.
// GET /collections/{collectionId}/items
func (h *Handlers) Items(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionId")
	if !h.registry.Has(collectionID) {
		WriteNotFound(w, "collection not found: "+collectionID)
		return
	}

	raw, err := search.ParseSearchRequest(r)
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}
	raw.Collections = []string{collectionID}

	h.runSearch(w, r, raw, http.MethodGet)
}

// Item returns a single item by ID from a collection.
// GET /collections/{collectionId}/items/{itemId}
func (h *Handlers) Item(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionId")
	itemID := chi.URLParam(r, "itemId")

	if !h.registry.Has(collectionID) {
		WriteNotFound(w, "collection not found: "+collectionID)
		return
	}

	outputSRID := crs.StorageSRID
	if identifier := r.URL.Query().Get("crs"); identifier != "" {
		srid, err := crs.ToSRID(identifier)
		if err != nil {
			WriteInvalidParameter(w, err.Error())
			return
		}
		outputSRID = srid
	}

	item, err := h.store.GetItem(r.Context(), collectionID, itemID, outputSRID)
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}

	feature, err := itemFeature(item, outputSRID, h.cfg.STAC.BaseURL)
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}
	WriteGeoJSON(w, http.StatusOK, feature)
}

// Search performs a cross-collection search.
// GET/POST /search
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var raw *search.SearchRequest
	var err error

	method := r.Method
	if method == http.MethodPost {
		raw, err = search.ParseSearchRequestBody(r.Body)
	} else {
		raw, err = search.ParseSearchRequest(r)
	}
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}

	h.runSearch(w, r, raw, method)
}

// runSearch is the shared normalize/execute/assemble pipeline behind the
// search and collection-items endpoints.
func (h *Handlers) runSearch(w http.ResponseWriter, r *http.Request, raw *search.SearchRequest, method string) {
	req, err := h.normalizer.Normalize(raw, method)
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}

	page, err := h.store.Execute(r.Context(), req.Query)
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}

	ic, err := h.assembler.Assemble(req, page)
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}

	WriteGeoJSON(w, http.StatusOK, ic)
}

// Queryables returns the queryable properties document.
// GET /queryables
// GET /collections/{collectionId}/queryables
func (h *Handlers) Queryables(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionId")
	if collectionID != "" && !h.registry.Has(collectionID) {
		WriteNotFound(w, "collection not found: "+collectionID)
		return
	}

	doc := h.registry.SchemaDocument(h.cfg.STAC.BaseURL, collectionID)
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		h.logger.Error("failed to encode queryables", slog.String("error", err.Error()))
	}
}

// Health returns the health status of the service.
// GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.cfg.STAC.Version,
	})
}

// collectionTitles holds the static metadata for the built-in collections.
var collectionTitles = map[string][2]string{
	"skyfotos2017": {"Skyfotos 2017", "Oblique aerial photos, 2017 vintage"},
	"skyfotos2019": {"Skyfotos 2019", "Oblique aerial photos, 2019 vintage"},
	"skyfotos2021": {"Skyfotos 2021", "Oblique aerial photos, 2021 vintage"},
}

func (h *Handlers) buildCollection(id string) *stac.Collection {
	title, description := id, "Oblique aerial photo collection"
	if meta, ok := collectionTitles[id]; ok {
		title, description = meta[0], meta[1]
	}

	coll := stac.NewCollection(id, title, description, h.cfg.STAC.Version)

	baseURL := h.cfg.STAC.BaseURL
	coll.Links = append(coll.Links,
		&stac.CoreLink{Rel: "self", Href: baseURL + "/collections/" + id, Type: "application/json"},
		&stac.CoreLink{Rel: "root", Href: baseURL + "/", Type: "application/json"},
		&stac.CoreLink{Rel: "items", Href: baseURL + "/collections/" + id + "/items", Type: "application/geo+json"},
	)
	if h.cfg.Search.EnableQueryables {
		coll.Links = append(coll.Links, &stac.CoreLink{
			Rel:  "http://www.opengis.net/def/rel/ogc/1.0/queryables",
			Href: baseURL + "/collections/" + id + "/queryables",
			Type: "application/schema+json",
		})
	}

	return coll
}

// itemFeature serializes a single item with its CRS descriptor and
// navigation links.
func itemFeature(item *stac.Item, outputSRID int, baseURL string) (map[string]any, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	var feature map[string]any
	if err := json.Unmarshal(data, &feature); err != nil {
		return nil, err
	}

	feature["crs"] = crs.Descriptor(outputSRID)
	feature["links"] = []*stac.Link{
		{Rel: "self", Href: baseURL + "/collections/" + item.Collection + "/items/" + item.Id, Type: "application/geo+json"},
		{Rel: "collection", Href: baseURL + "/collections/" + item.Collection, Type: "application/json"},
		{Rel: "root", Href: baseURL + "/", Type: "application/json"},
	}
	return feature, nil
}
