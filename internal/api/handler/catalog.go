package handler

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openkpi/portal/internal/api/models"
	"github.com/openkpi/portal/internal/api/response"
	"github.com/openkpi/portal/internal/catalog"
)

// CatalogHandler serves the live catalog and the dbt catalog documents.
type CatalogHandler struct {
	catalog   Catalog
	documents Documents
	logger    zerolog.Logger
	now       Clock
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(cat Catalog, docs Documents, logger zerolog.Logger, now Clock) *CatalogHandler {
	return &CatalogHandler{
		catalog:   cat,
		documents: docs,
		logger:    logger,
		now:       now,
	}
}

// Tables handles GET /catalog/tables?page=&page_size=.
func (h *CatalogHandler) Tables(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.ListTables(r.Context(), intQuery(r, "page"), intQuery(r, "page_size"))
	out := models.Tables{Page: page}
	if err != nil {
		h.logger.Warn().Err(err).Msg("list tables failed")
		out.Error = err.Error()
	}
	response.OK(w, r, out)
}

// CatalogSearch handles GET /catalog/search?q=. A blank query returns the
// first page of the listing.
func (h *CatalogHandler) CatalogSearch(w http.ResponseWriter, r *http.Request) {
	response.OK(w, r, h.search(r, 1, catalog.DefaultPageSize))
}

// Search handles GET /search?q=&page=&page_size=. A blank query returns the
// requested page of the listing.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	response.OK(w, r, h.search(r, intQuery(r, "page"), intQuery(r, "page_size")))
}

func (h *CatalogHandler) search(r *http.Request, page, pageSize int) models.Search {
	ctx := r.Context()
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	if q == "" {
		listing, err := h.catalog.ListTables(ctx, page, pageSize)
		out := models.Search{Query: "", Matches: []catalog.Match{}, Page: &listing}
		if err != nil {
			h.logger.Warn().Err(err).Msg("list tables failed")
			out.Error = err.Error()
		}
		return out
	}

	res, err := h.catalog.Search(ctx, q)
	out := models.Search{Query: res.Query, Matches: res.Matches}
	if out.Matches == nil {
		out.Matches = []catalog.Match{}
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("query", q).Msg("catalog search failed")
		out.Error = err.Error()
	}
	return out
}

// DBTProjects handles GET /catalog/dbt/projects.
func (h *CatalogHandler) DBTProjects(w http.ResponseWriter, r *http.Request) {
	list, err := h.documents.Projects(r.Context())
	out := models.DBTProjects{GeneratedAt: h.now.stamp(), ProjectList: list}
	if out.Projects == nil {
		out.Projects = []catalog.Project{}
	}
	if err != nil {
		h.logger.Warn().Err(err).Msg("list dbt projects failed")
		out.Error = err.Error()
	}
	response.OK(w, r, out)
}

// DBTAssets handles GET /catalog/dbt/assets?project=&q=&page=&page_size=.
func (h *CatalogHandler) DBTAssets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	res, err := h.documents.Assets(r.Context(), query.Get("project"), query.Get("q"), intQuery(r, "page"), intQuery(r, "page_size"))
	out := models.DBTAssets{GeneratedAt: h.now.stamp(), AssetsResult: res}
	if out.Assets.Tables == nil {
		out.Assets.Tables = []catalog.Entry{}
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("project", res.Evidence.Project).Msg("load dbt catalog failed")
		out.Error = err.Error()
	}
	response.OK(w, r, out)
}
