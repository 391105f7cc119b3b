package http

import (
	"encoding/json"
	"errors"
	"net/http"

	invdomain "github.com/orderflow/inventory-engine/internal/inventory/domain"
	orderdomain "github.com/orderflow/inventory-engine/internal/order/domain"
)

type errorResp struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, err error) {
	var insufficient *invdomain.InsufficientStockError
	var transition *orderdomain.InvalidTransitionError

	switch {
	case errors.Is(err, invdomain.ErrProductNotFound), errors.Is(err, orderdomain.ErrOrderNotFound):
		respond(w, http.StatusNotFound, errorResp{Error: err.Error()})
	case errors.As(err, &insufficient):
		respond(w, http.StatusConflict, errorResp{Error: err.Error(), Details: map[string]int{
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		}})
	case errors.As(err, &transition):
		respond(w, http.StatusConflict, errorResp{Error: err.Error()})
	case errors.Is(err, invdomain.ErrDuplicateSKU):
		respond(w, http.StatusConflict, errorResp{Error: err.Error()})
	case errors.Is(err, invdomain.ErrProductInactive):
		respond(w, http.StatusConflict, errorResp{Error: err.Error()})
	case errors.Is(err, invdomain.ErrInvalidProduct), errors.Is(err, orderdomain.ErrInvalidOrder):
		respond(w, http.StatusUnprocessableEntity, errorResp{Error: err.Error()})
	default:
		respond(w, http.StatusInternalServerError, errorResp{Error: "internal error"})
	}
}
