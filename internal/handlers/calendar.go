package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/b-cal/apiserver/internal/services"
	"github.com/b-cal/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// CalendarHandler serves the calendar entry endpoints of the authenticated
// user.
type CalendarHandler struct {
	calendar *services.CalendarService
	exports  *services.ExportService
	logger   *slog.Logger
}

func NewCalendarHandler(calendar *services.CalendarService, exports *services.ExportService, logger *slog.Logger) *CalendarHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarHandler{calendar: calendar, exports: exports, logger: logger}
}

// CalendarRouter registers calendar routes on the given router. Every route
// requires an access token.
func CalendarRouter(r chi.Router, handler *CalendarHandler, guards *Guards) {
	r.Use(guards.AccessGuard)

	r.Get("/", handler.ListEntries)
	r.Post("/", handler.CreateEntry)
	r.Post("/export", handler.CreateExport)
	r.Get("/export/{exportID}", handler.GetExport)
	r.Route("/{entryID}", func(r chi.Router) {
		r.Get("/", handler.GetEntry)
		r.Patch("/", handler.UpdateEntry)
		r.Delete("/", handler.DeleteEntry)
	})
}

type createEntryRequest struct {
	Title     string  `json:"title" validate:"required"`
	StartDate string  `json:"startDate" validate:"required,isodate"`
	EndDate   string  `json:"endDate" validate:"required,isodate"`
	Content   *string `json:"content"`
}

type updateEntryRequest struct {
	Title     *string `json:"title"`
	StartDate *string `json:"startDate" validate:"omitempty,isodate"`
	EndDate   *string `json:"endDate" validate:"omitempty,isodate"`
	Content   *string `json:"content"`
}

func (h *CalendarHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, h.logger, services.ErrUnauthorized)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	entries, err := h.calendar.List(r.Context(), identity.ID, filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: entries})
}

func (h *CalendarHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, h.logger, services.ErrUnauthorized)
		return
	}
	id := chi.URLParam(r, "entryID")
	entry, err := h.calendar.Get(r.Context(), identity.ID, id)
	if err != nil {
		h.writeEntryError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: entry})
}

func (h *CalendarHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, h.logger, services.ErrUnauthorized)
		return
	}
	var req createEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	// Both dates passed the isodate tag.
	start, _ := parseDate(req.StartDate)
	end, _ := parseDate(req.EndDate)
	created, err := h.calendar.Create(r.Context(), identity.ID, types.CalendarEntry{
		Title:     strings.TrimSpace(req.Title),
		StartDate: start,
		EndDate:   end,
		Content:   req.Content,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Calendar entry created", ID: created.ID})
}

func (h *CalendarHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, h.logger, services.ErrUnauthorized)
		return
	}
	id := chi.URLParam(r, "entryID")
	var req updateEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	patch := types.CalendarEntryPatch{Title: req.Title, Content: req.Content}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		patch.Title = &title
	}
	if req.StartDate != nil {
		start, _ := parseDate(*req.StartDate)
		patch.StartDate = &start
	}
	if req.EndDate != nil {
		end, _ := parseDate(*req.EndDate)
		patch.EndDate = &end
	}

	if _, err := h.calendar.Update(r.Context(), identity.ID, id, patch); err != nil {
		h.writeEntryError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Calendar entry updated", ID: id})
}

func (h *CalendarHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, h.logger, services.ErrUnauthorized)
		return
	}
	id := chi.URLParam(r, "entryID")
	if err := h.calendar.Delete(r.Context(), identity.ID, id); err != nil {
		h.writeEntryError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Calendar entry deleted", ID: id})
}

// CreateExport snapshots the caller's calendar to object storage.
func (h *CalendarHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, h.logger, services.ErrUnauthorized)
		return
	}
	exportID, err := h.exports.Export(r.Context(), identity.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Export created", ID: exportID})
}

// GetExport streams a previously created export of the caller.
func (h *CalendarHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, h.logger, services.ErrUnauthorized)
		return
	}
	exportID := chi.URLParam(r, "exportID")
	rc, err := h.exports.Open(r.Context(), identity.ID, exportID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Export with id %s not found", exportID))
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "stream export failed", "export_id", exportID, "err", err)
	}
}

func (h *CalendarHandler) writeEntryError(w http.ResponseWriter, r *http.Request, id string, err error) {
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Calendar entry with id %s not found", id))
		return
	}
	writeServiceError(w, r, h.logger, err)
}

func parseFilter(r *http.Request) (types.CalendarFilter, error) {
	var filter types.CalendarFilter
	query := r.URL.Query()
	for _, param := range []struct {
		name string
		dst  **time.Time
	}{
		{name: "startDate", dst: &filter.StartDate},
		{name: "endDate", dst: &filter.EndDate},
	} {
		raw := strings.TrimSpace(query.Get(param.name))
		if raw == "" {
			continue
		}
		parsed, err := parseDate(raw)
		if err != nil {
			return types.CalendarFilter{}, fmt.Errorf("%w: %s must be an ISO 8601 date", services.ErrValidation, param.name)
		}
		*param.dst = &parsed
	}
	return filter, nil
}
