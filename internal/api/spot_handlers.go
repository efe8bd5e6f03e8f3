package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rit-atlas/atlas/internal/auth"
	"github.com/rit-atlas/atlas/internal/middleware"
	"github.com/rit-atlas/atlas/internal/spot"
)

// CreateSpotRequest represents the request body for creating a spot.
// Pointer fields distinguish absent values from zero values so presence
// validation can report every missing field at once.
type CreateSpotRequest struct {
	Notes            *string           `json:"notes"`
	Descriptors      map[string]string `json:"descriptors"`
	TypeName         *string           `json:"type_name"`
	Lat              *float64          `json:"lat"`
	Lng              *float64          `json:"lng"`
	ClassificationID *int64            `json:"classification_id"`
}

// CreateSpotResponse is returned on successful creation. The message
// differs by approval path: immediately-approved submissions get a
// confirmation, pending ones a review notice.
type CreateSpotResponse struct {
	Spot    *spot.Spot `json:"spot"`
	Message string     `json:"message"`
}

// SpotHandlers holds dependencies for spot HTTP handlers.
type SpotHandlers struct {
	service *spot.Service
	logger  *slog.Logger
}

// NewSpotHandlers creates a new SpotHandlers instance.
func NewSpotHandlers(service *spot.Service, logger *slog.Logger) *SpotHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpotHandlers{service: service, logger: logger}
}

// GetSpots handles GET /spots - lists the spots visible to the caller.
// Anonymous requests see approved spots with anonymous-visible
// classifications only.
func (h *SpotHandlers) GetSpots(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	spots, err := h.service.List(r.Context(), principal)
	if err != nil {
		h.logger.Error("failed to list spots", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to list spots")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, spots)
}

// CreateSpot handles POST /spots - validates and persists a submission.
// Validation failures return 400 with a field-keyed message map
// collecting every problem found.
func (h *SpotHandlers) CreateSpot(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var req CreateSpotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			bag := spot.NewBag()
			bag.Add(typeErr.Field, malformedFieldMessage(typeErr.Field))
			WriteBag(w, r.Context(), http.StatusBadRequest, bag)
			return
		}
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	created, message, bag, err := h.service.Create(r.Context(), principal, spot.CreateInput{
		Notes:            req.Notes,
		Descriptors:      req.Descriptors,
		TypeName:         req.TypeName,
		Lat:              req.Lat,
		Lng:              req.Lng,
		ClassificationID: req.ClassificationID,
	})
	if err != nil {
		h.logger.Error("failed to create spot", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to create spot")
		return
	}
	if !bag.Empty() {
		WriteBag(w, r.Context(), http.StatusBadRequest, bag)
		return
	}

	WriteJSON(w, r.Context(), http.StatusCreated, CreateSpotResponse{Spot: created, Message: message})
}

// malformedFieldMessage phrases a JSON shape error for one field.
func malformedFieldMessage(field string) string {
	switch field {
	case "lat", "lng", "classification_id":
		return fmt.Sprintf("The %s field must be numeric.", field)
	default:
		return fmt.Sprintf("The %s field is malformed.", field)
	}
}

// GetDefaults handles GET /spots/defaults - returns the data the
// submission form needs: available categories with their taxonomy, the
// selected category's types and descriptors, and the classifications
// the caller may request. ?category= selects a category by name.
func (h *SpotHandlers) GetDefaults(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	defaults, err := h.service.GetDefaults(r.Context(), principal, r.URL.Query().Get("category"))
	if err != nil {
		if errors.Is(err, spot.ErrCategoryNotFound) {
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "Category not found")
			return
		}
		h.logger.Error("failed to load defaults", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to load defaults")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, defaults)
}

// ApproveSpot handles POST /spots/{id}/approve - marks a spot approved,
// reassigning its classification when the author cannot create
// designated spots. Requires the "approve spots" permission.
func (h *SpotHandlers) ApproveSpot(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}
	if !principal.Can(auth.PermApproveSpots) {
		WriteError(w, r.Context(), http.StatusForbidden, ErrCodeForbidden, "Approving spots requires the approve spots permission")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Spot ID must be numeric")
		return
	}

	if err := h.service.Approve(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, spot.ErrSpotNotFound):
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "Spot not found")
		case errors.Is(err, spot.ErrMissingSystemClassification):
			bag := spot.NewBag()
			bag.Add(spot.KeyInternal, "Public classification does not exist for the given category.")
			h.logger.Error("approval blocked by missing public classification", "error", err, "spot_id", id)
			WriteBag(w, r.Context(), http.StatusInternalServerError, bag)
		default:
			h.logger.Error("failed to approve spot", "error", err, "spot_id", id)
			WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to approve spot")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
