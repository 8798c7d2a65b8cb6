package handler

import (
	"encoding/json"
	"net/http"

	"seva/internal/listings/service"
	apperrors "seva/pkg/errors"
	httputil "seva/pkg/http"
	"seva/pkg/logger"
	"seva/pkg/middleware"
	"seva/pkg/model"
	"seva/pkg/protocol"

	"github.com/julienschmidt/httprouter"
)

type ListingHandler struct {
	service service.ListingService
	log     *logger.Logger
}

func NewListingHandler(service service.ListingService, log *logger.Logger) *ListingHandler {
	return &ListingHandler{
		service: service,
		log:     log,
	}
}

func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, "Create", apperrors.Unauthorized("Authentication required"))
		return
	}

	var input model.ListingInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
			Code:  apperrors.CodeBadRequest,
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}
	if input.IdempotencyKey == "" {
		input.IdempotencyKey = middleware.IdempotencyKeyFromContext(r.Context())
	}

	listing, err := h.service.CreateAndBroadcast(r.Context(), principal.UserID, &input)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, listing); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ListingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	listing, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, listing); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// Near answers GET /listings/near?lat=..&lng=..&radius=..&limit=..
func (h *ListingHandler) Near(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	lat, hasLat, err := httputil.QueryFloat(r, "lat")
	if err != nil {
		h.writeError(w, "Near", err)
		return
	}
	lng, hasLng, err := httputil.QueryFloat(r, "lng")
	if err != nil {
		h.writeError(w, "Near", err)
		return
	}
	if !hasLat || !hasLng {
		h.writeError(w, "Near", apperrors.InvalidInput("lat and lng are required"))
		return
	}
	radius, _, err := httputil.QueryFloat(r, "radius")
	if err != nil {
		h.writeError(w, "Near", err)
		return
	}
	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		h.writeError(w, "Near", err)
		return
	}

	listings, err := h.service.FindNearby(r.Context(), lat, lng, radius, limit)
	if err != nil {
		h.writeError(w, "Near", err)
		return
	}

	if err := httputil.WriteSuccess(w, listings); err != nil {
		h.log.Error("failed to write success response", "handler", "Near", "operation", "WriteSuccess", "error", err)
	}
}

// Mine answers GET /listings/mine with the caller's own listings, newest first.
func (h *ListingHandler) Mine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, "Mine", apperrors.Unauthorized("Authentication required"))
		return
	}
	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		h.writeError(w, "Mine", err)
		return
	}

	listings, err := h.service.ListByOwner(r.Context(), principal.UserID, limit)
	if err != nil {
		h.writeError(w, "Mine", err)
		return
	}

	if err := httputil.WriteSuccess(w, listings); err != nil {
		h.log.Error("failed to write success response", "handler", "Mine", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ListingHandler) Reserve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, "Reserve", apperrors.Unauthorized("Authentication required"))
		return
	}

	listing, err := h.service.Reserve(r.Context(), ps.ByName("id"), principal)
	if err != nil {
		h.writeError(w, "Reserve", err)
		return
	}

	if err := httputil.WriteSuccess(w, protocol.StatusOf(listing)); err != nil {
		h.log.Error("failed to write success response", "handler", "Reserve", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ListingHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, "Complete", apperrors.Unauthorized("Authentication required"))
		return
	}

	listing, err := h.service.Complete(r.Context(), ps.ByName("id"), principal.UserID)
	if err != nil {
		h.writeError(w, "Complete", err)
		return
	}

	if err := httputil.WriteSuccess(w, protocol.StatusOf(listing)); err != nil {
		h.log.Error("failed to write success response", "handler", "Complete", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ListingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ListingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/listings", h.Create)
	router.GET("/api/v1/listings/near", h.Near)
	router.GET("/api/v1/listings/mine", h.Mine)
	router.GET("/api/v1/listings/id/:id", h.GetByID)
	router.POST("/api/v1/listings/id/:id/reserve", h.Reserve)
	router.POST("/api/v1/listings/id/:id/complete", h.Complete)
}
