package handler

import (
	"encoding/json"
	"net/http"

	"parkhive/internal/parkings/service"
	apperrors "parkhive/pkg/errors"
	httputil "parkhive/pkg/http"
	"parkhive/pkg/logger"
	"parkhive/pkg/middleware"
	"parkhive/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ParkingHandler struct {
	service service.ParkingService
	log     *logger.Logger
}

func NewParkingHandler(service service.ParkingService, log *logger.Logger) *ParkingHandler {
	return &ParkingHandler{
		service: service,
		log:     log,
	}
}

func (h *ParkingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/parkings", h.Create)
	router.GET("/api/v1/parkings", h.GetAll)
	router.GET("/api/v1/parkings/id/:id", h.GetByID)
	router.PATCH("/api/v1/parkings/id/:id", h.Update)
	router.DELETE("/api/v1/parkings/id/:id", h.Delete)
}

// requireAdmin returns the caller's identity or writes the appropriate
// error. Mutating parking routes are admin-only.
func (h *ParkingHandler) requireAdmin(w http.ResponseWriter, r *http.Request, handlerName string) (middleware.Identity, bool) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, handlerName, apperrors.Unauthorized("Authentication required"))
		return middleware.Identity{}, false
	}
	if !identity.IsAdmin {
		h.writeError(w, handlerName, apperrors.Forbidden("Administrator access required"))
		return middleware.Identity{}, false
	}
	return identity, true
}

func (h *ParkingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, ok := h.requireAdmin(w, r, "Create"); !ok {
		return
	}

	var parking model.Parking
	if err := json.NewDecoder(r.Body).Decode(&parking); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), &parking); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, parking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ParkingHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	parkings, count, err := h.service.GetAll(r.Context(), limit, int(offset))
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, parkings, count, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *ParkingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	parking, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, parking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ParkingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, ok := h.requireAdmin(w, r, "Update"); !ok {
		return
	}

	id := ps.ByName("id")

	var update model.ParkingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Update(r.Context(), id, &update); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ParkingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, ok := h.requireAdmin(w, r, "Delete"); !ok {
		return
	}

	id := ps.ByName("id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ParkingHandler) writeError(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "operation", "WriteError", "error", writeErr)
	}
}
