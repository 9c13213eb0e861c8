package search

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rkm/skyfoto-stac-api/internal/config"
	"github.com/rkm/skyfoto-stac-api/internal/crs"
	"github.com/rkm/skyfoto-stac-api/internal/pagination"
	"github.com/rkm/skyfoto-stac-api/internal/stac"
	"github.com/rkm/skyfoto-stac-api/internal/storage"
)

const geoJSONType = "application/geo+json"

// Assembler builds the response feature collection for one executed page:
// serialized and projected features, CRS stamps, pagination links and the
// optional context block.
type Assembler struct {
	BaseURL string
	Config  config.SearchConfig
}

// Assemble renders one result page. Features are serialized first, then
// projected, then stamped with the CRS their geometry is expressed in.
func (a *Assembler) Assemble(req *Request, page *storage.ResultPage) (*stac.ItemCollection, error) {
	features := make([]map[string]any, 0, len(page.Items))
	descriptor := crs.Descriptor(req.OutputSRID)
	for _, item := range page.Items {
		feature, err := serializeItem(item)
		if err != nil {
			return nil, err
		}
		feature = req.Projection.Apply(feature)
		feature["crs"] = descriptor
		features = append(features, feature)
	}

	ic := stac.NewItemCollection(features)
	ic.Links = a.buildLinks(req, page)

	if a.Config.EnableContext {
		ic.SetContext(len(features), req.Limit, page.Matched)
	}

	return ic, nil
}

func serializeItem(item *stac.Item) (map[string]any, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize item %q: %w", item.Id, err)
	}
	var feature map[string]any
	if err := json.Unmarshal(data, &feature); err != nil {
		return nil, fmt.Errorf("failed to serialize item %q: %w", item.Id, err)
	}
	return feature, nil
}

// buildLinks produces the self link plus next/previous continuation links.
// A continuation link reproduces every original parameter with the token
// substituted: through the query string for GET-origin requests, through a
// structured body for POST-origin ones.
func (a *Assembler) buildLinks(req *Request, page *storage.ResultPage) []*stac.Link {
	searchURL := a.BaseURL + "/search"
	links := []*stac.Link{a.selfLink(req, searchURL)}

	if page.HasNext && len(page.LastKey) > 0 {
		token := pagination.Encode(&pagination.Key{Values: page.LastKey})
		links = append(links, a.continuationLink("next", req, searchURL, token))
	}
	if page.HasPrevious && len(page.FirstKey) > 0 {
		token := pagination.Encode(&pagination.Key{Values: page.FirstKey, Backward: true})
		links = append(links, a.continuationLink("previous", req, searchURL, token))
	}

	return links
}

func (a *Assembler) selfLink(req *Request, searchURL string) *stac.Link {
	if req.Method == http.MethodPost {
		return &stac.Link{
			Rel:    "self",
			Href:   searchURL,
			Type:   geoJSONType,
			Method: http.MethodPost,
			Body:   req.Raw.ToBody(),
		}
	}
	href := searchURL
	if params := req.Raw.ToQueryParams(); len(params) > 0 {
		href += "?" + params.Encode()
	}
	return &stac.Link{Rel: "self", Href: href, Type: geoJSONType}
}

func (a *Assembler) continuationLink(rel string, req *Request, searchURL, token string) *stac.Link {
	if req.Method == http.MethodPost {
		body := req.Raw.ToBody()
		body["pt"] = token
		body["limit"] = req.Limit
		return &stac.Link{
			Rel:    rel,
			Href:   searchURL,
			Type:   geoJSONType,
			Method: http.MethodPost,
			Body:   body,
		}
	}

	params := req.Raw.ToQueryParams()
	params.Set("pt", token)
	params.Set("limit", strconv.Itoa(req.Limit))
	return &stac.Link{
		Rel:  rel,
		Href: searchURL + "?" + params.Encode(),
		Type: geoJSONType,
	}
}
