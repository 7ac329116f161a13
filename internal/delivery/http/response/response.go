package response

import (
	"encoding/json"
	"net/http"

	"github.com/user/soldprice-service/internal/entity"
)

// Error codes returned in ErrorResponse.
const (
	CodeBadRequest  = "bad_request"
	CodeNotFound    = "not_found"
	CodeInternal    = "internal"
	CodeUnavailable = "unavailable"
)

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type ItemsResponse struct {
	Count int                  `json:"count"`
	Items []entity.CatalogItem `json:"items"`
}

// ListingsResponse lists the raw sales of one item-variant, newest first.
type ListingsResponse struct {
	Item     entity.CatalogItem `json:"item"`
	Since    string             `json:"since,omitempty"`
	Count    int                `json:"count"`
	Listings []entity.Listing   `json:"listings"`
}

type StatsResponse struct {
	Item  entity.CatalogItem     `json:"item"`
	Since string                 `json:"since,omitempty"`
	Stats *entity.AggregateStats `json:"stats"`
}

// CrossSectionResponse summarises the most recent listings of every
// item-variant.
type CrossSectionResponse struct {
	Recent int                     `json:"recent"`
	Count  int                     `json:"count"`
	Items  []entity.AggregateStats `json:"items"`
}

// JSON writes payload with the given status code.
func JSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

// Error writes an ErrorResponse.
func Error(w http.ResponseWriter, status int, code, message string) error {
	return JSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}
