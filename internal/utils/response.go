package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"ms-booking/internal/availability"
	"ms-booking/internal/models"
)

type APIResponse struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message"`
	Data         interface{}          `json:"data,omitempty"`
	Count        *int                 `json:"count,omitempty"`
	Availability *availability.Result `json:"availability,omitempty"`
	Errors       []models.FieldError  `json:"errors,omitempty"`
	Error        string               `json:"error,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now().UTC(),
	}
}

func (r APIResponse) WithCount(n int) APIResponse {
	r.Count = &n
	return r
}

func (r APIResponse) WithAvailability(res availability.Result) APIResponse {
	r.Availability = &res
	return r
}

func (r APIResponse) WithErrors(fields []models.FieldError) APIResponse {
	r.Errors = fields
	return r
}

// WriteJSON sends resp with the given status code.
func WriteJSON(w http.ResponseWriter, status int, resp APIResponse) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(resp)
}
