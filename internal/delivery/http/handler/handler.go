package handler

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/user/soldprice-service/internal/delivery/http/response"
	"github.com/user/soldprice-service/internal/repository"
	"github.com/user/soldprice-service/internal/usecase"
)

type Handler struct {
	catalog usecase.CatalogQuery
	stats   usecase.StatsService
	health  usecase.HealthChecker
	logger  *zap.Logger
}

func NewHandler(catalog usecase.CatalogQuery, stats usecase.StatsService, health usecase.HealthChecker, logger *zap.Logger) *Handler {
	return &Handler{
		catalog: catalog,
		stats:   stats,
		health:  health,
		logger:  logger,
	}
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	checks, err := h.health.Check(r.Context())
	if err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		h.writeJSON(w, http.StatusServiceUnavailable, response.HealthResponse{Status: "unhealthy", Checks: checks})
		return
	}
	h.writeJSON(w, http.StatusOK, response.HealthResponse{Status: "healthy", Checks: checks})
}

func (h *Handler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListItems(r.Context(), r.URL.Query().Get("collection"))
	if err != nil {
		h.writeInternalError(w, "list items", err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.ItemsResponse{Count: len(items), Items: items})
}

func (h *Handler) HandleItemVariants(w http.ResponseWriter, r *http.Request) {
	ref, err := parseItemRef(r)
	if err != nil {
		h.writeJSONError(w, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}
	items, err := h.catalog.ItemVariants(r.Context(), ref.collection, ref.collectionSeq, ref.itemSeq)
	if err != nil {
		h.writeLookupError(w, "item variants", err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.ItemsResponse{Count: len(items), Items: items})
}

func (h *Handler) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	key, err := parseItemKey(r)
	if err != nil {
		h.writeJSONError(w, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}
	item, err := h.catalog.GetItem(r.Context(), key)
	if err != nil {
		h.writeLookupError(w, "get item", err)
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) HandleListings(w http.ResponseWriter, r *http.Request) {
	key, err := parseItemKey(r)
	if err != nil {
		h.writeJSONError(w, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}
	since, err := parseSince(r)
	if err != nil {
		h.writeJSONError(w, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	item, err := h.catalog.GetItem(r.Context(), key)
	if err != nil {
		h.writeLookupError(w, "get item", err)
		return
	}
	listings, err := h.catalog.Listings(r.Context(), key, since)
	if err != nil {
		h.writeLookupError(w, "list listings", err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.ListingsResponse{
		Item:     *item,
		Since:    formatSince(since),
		Count:    len(listings),
		Listings: listings,
	})
}

func (h *Handler) HandleItemStats(w http.ResponseWriter, r *http.Request) {
	key, err := parseItemKey(r)
	if err != nil {
		h.writeJSONError(w, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}
	since, err := parseSince(r)
	if err != nil {
		h.writeJSONError(w, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	item, err := h.catalog.GetItem(r.Context(), key)
	if err != nil {
		h.writeLookupError(w, "get item", err)
		return
	}
	stats, err := h.stats.ItemStats(r.Context(), key, since)
	if err != nil {
		h.writeLookupError(w, "item stats", err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.StatsResponse{Item: *item, Since: formatSince(since), Stats: stats})
}

func (h *Handler) HandleCrossSection(w http.ResponseWriter, r *http.Request) {
	recent, err := parseRecent(r)
	if err != nil {
		h.writeJSONError(w, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}
	items, err := h.stats.CrossSection(r.Context(), recent)
	if err != nil {
		h.writeInternalError(w, "cross-section", err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.CrossSectionResponse{Recent: recent, Count: len(items), Items: items})
}

func formatSince(since *time.Time) string {
	if since == nil {
		return ""
	}
	return since.Format(time.DateOnly)
}

func (h *Handler) writeLookupError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, repository.ErrItemNotFound) {
		h.writeJSONError(w, http.StatusNotFound, response.CodeNotFound, "item not found")
		return
	}
	h.writeInternalError(w, op, err)
}

func (h *Handler) writeInternalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	h.writeJSONError(w, http.StatusInternalServerError, response.CodeInternal, "internal server error")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	if err := response.JSON(w, status, data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, status int, code, message string) {
	if err := response.Error(w, status, code, message); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
