package booking_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/availability"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// BookingService is what the handlers need from booking.Service.
type BookingService interface {
	CreateEvent(ctx context.Context, input models.Event) (*models.Event, error)
	ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	GetEvent(ctx context.Context, id string, includeBookings bool) (*models.Event, error)
	UpdateEvent(ctx context.Context, id string, patch models.EventPatch) (*models.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	CheckAvailability(ctx context.Context, eventID string, requested int) (availability.Result, error)

	CreateBooking(ctx context.Context, input models.Booking) (*models.Booking, availability.Result, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookingsForEvent(ctx context.Context, eventID string) ([]models.Booking, error)
	UpdateBooking(ctx context.Context, id string, patch models.BookingPatch) (*models.Booking, availability.Result, error)
	DeleteBooking(ctx context.Context, id string) error
}

type Handler struct {
	Service BookingService
	Logger  *logger.Logger
}

func NewHandler(service BookingService, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes mounts the events and bookings API on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/api/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)
		r.Put("/{id}", h.UpdateEvent)
		r.Delete("/{id}", h.DeleteEvent)
		r.Get("/{id}/availability", h.CheckAvailability)
	})

	r.Route("/api/bookings", func(r chi.Router) {
		r.Post("/", h.CreateBooking)
		r.Get("/", h.ListBookings)
		r.Get("/event/{eventId}", h.ListBookingsForEvent)
		r.Get("/{id}", h.GetBooking)
		r.Put("/{id}", h.UpdateBooking)
		r.Delete("/{id}", h.DeleteBooking)
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, utils.SuccessResponse("Event booking service is running", nil))
}

// ---------------- EVENTS ----------------

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	event, err := h.Service.CreateEvent(r.Context(), req.Model())
	if err != nil {
		h.writeError(w, "CreateEvent", err)
		return
	}
	h.write(w, http.StatusCreated, utils.SuccessResponse("Event created successfully", event))
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.EventFilter{Name: q.Get("name")}

	var err error
	if filter.DateFrom, err = parseDateParam(q.Get("dateFrom"), "dateFrom"); err != nil {
		h.writeError(w, "ListEvents", err)
		return
	}
	if filter.DateTo, err = parseDateParam(q.Get("dateTo"), "dateTo"); err != nil {
		h.writeError(w, "ListEvents", err)
		return
	}

	events, err := h.Service.ListEvents(r.Context(), filter)
	if err != nil {
		h.writeError(w, "ListEvents", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Events retrieved successfully", events).WithCount(len(events)))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.validID(w, "id", id) {
		return
	}
	includeBookings, _ := strconv.ParseBool(r.URL.Query().Get("includeBookings"))

	event, err := h.Service.GetEvent(r.Context(), id, includeBookings)
	if err != nil {
		h.writeError(w, "GetEvent", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Event retrieved successfully", event))
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.validID(w, "id", id) {
		return
	}
	var req UpdateEventRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	event, err := h.Service.UpdateEvent(r.Context(), id, req.Patch())
	if err != nil {
		h.writeError(w, "UpdateEvent", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Event updated successfully", event))
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.validID(w, "id", id) {
		return
	}

	if err := h.Service.DeleteEvent(r.Context(), id); err != nil {
		h.writeError(w, "DeleteEvent", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Event deleted successfully", nil))
}

func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.validID(w, "id", id) {
		return
	}
	// Unparsable or missing counts as a single ticket.
	requested, err := strconv.Atoi(r.URL.Query().Get("tickets"))
	if err != nil || requested <= 0 {
		requested = 1
	}

	res, err := h.Service.CheckAvailability(r.Context(), id, requested)
	if err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Availability checked successfully", res))
}

// ---------------- BOOKINGS ----------------

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	booking, res, err := h.Service.CreateBooking(r.Context(), req.Model())
	if err != nil {
		h.writeError(w, "CreateBooking", err)
		return
	}
	after := availability.Check(res.Capacity, res.Booked+res.Requested, 0)
	h.write(w, http.StatusCreated,
		utils.SuccessResponse("Booking created successfully", booking).WithAvailability(after))
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.BookingFilter{
		UserEmail: q.Get("user_email"),
		EventID:   q.Get("event_id"),
	}
	if filter.EventID != "" && !h.validID(w, "event_id", filter.EventID) {
		return
	}

	bookings, err := h.Service.ListBookings(r.Context(), filter)
	if err != nil {
		h.writeError(w, "ListBookings", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Bookings retrieved successfully", bookings).WithCount(len(bookings)))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.validID(w, "id", id) {
		return
	}

	booking, err := h.Service.GetBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetBooking", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Booking retrieved successfully", booking))
}

func (h *Handler) ListBookingsForEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if !h.validID(w, "eventId", eventID) {
		return
	}

	bookings, err := h.Service.ListBookingsForEvent(r.Context(), eventID)
	if err != nil {
		h.writeError(w, "ListBookingsForEvent", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Event bookings retrieved successfully", bookings).WithCount(len(bookings)))
}

func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.validID(w, "id", id) {
		return
	}
	var req UpdateBookingRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	booking, _, err := h.Service.UpdateBooking(r.Context(), id, req.Patch())
	if err != nil {
		h.writeError(w, "UpdateBooking", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Booking updated successfully", booking))
}

func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.validID(w, "id", id) {
		return
	}

	if err := h.Service.DeleteBooking(r.Context(), id); err != nil {
		h.writeError(w, "DeleteBooking", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Booking deleted successfully", nil))
}

// ---------------- HELPERS ----------------

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Invalid request body on %s %s: %v", r.Method, r.URL.Path, err))
		h.write(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return false
	}
	if err := models.ValidateStruct(dst); err != nil {
		h.writeError(w, "Validate", err)
		return false
	}
	return true
}

func (h *Handler) validID(w http.ResponseWriter, field, value string) bool {
	if err := models.Validator().Var(value, "required,uuid4"); err != nil {
		h.writeError(w, "Validate", models.NewValidationError(field, "must be a valid UUID"))
		return false
	}
	return true
}

// parseDateParam accepts RFC 3339 timestamps or plain dates.
func parseDateParam(value, field string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, models.NewValidationError(field, "must be an ISO 8601 date")
}

// writeError is the only place domain errors become HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var (
		verr   *models.ValidationError
		capErr *models.CapacityError
	)
	switch {
	case errors.As(err, &verr):
		h.write(w, http.StatusBadRequest,
			utils.ErrorResponse("Validation error", verr.Error()).WithErrors(verr.Fields))
	case errors.As(err, &capErr):
		h.write(w, http.StatusBadRequest,
			utils.ErrorResponse("Not enough tickets available for this event", capErr.Error()).
				WithAvailability(capErr.Availability))
	case errors.Is(err, models.ErrForeignKey), errors.Is(err, models.ErrEventNotFound):
		h.write(w, http.StatusNotFound, utils.ErrorResponse("Event not found", ""))
	case errors.Is(err, models.ErrBookingNotFound):
		h.write(w, http.StatusNotFound, utils.ErrorResponse("Booking not found", ""))
	case errors.Is(err, models.ErrNotFound):
		h.write(w, http.StatusNotFound, utils.ErrorResponse("Not found", ""))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		h.write(w, http.StatusInternalServerError, utils.ErrorResponse("Internal server error", ""))
	}
}

func (h *Handler) write(w http.ResponseWriter, status int, resp utils.APIResponse) {
	if err := utils.WriteJSON(w, status, resp); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}
