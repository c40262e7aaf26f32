package handler

import (
	"encoding/json"
	"net/http"

	"wallet-ledger/internal/errors"
)

type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := Response{Data: data}
	json.NewEncoder(w).Encode(response)
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorStatus(w, err, 0)
}

// writeErrorStatus writes err using its default status, except that a
// persistence failure is reported with persistenceStatus when it is non-zero.
func writeErrorStatus(w http.ResponseWriter, err error, persistenceStatus int) {
	appErr := errors.AsAppError(err)

	statusCode := appErr.HTTPStatus()
	if appErr.Code == errors.PersistenceFailure && persistenceStatus != 0 {
		statusCode = persistenceStatus
	}

	errResponse := Error{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{Error: &errResponse})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.NewAppError(errors.ValidationFailure, "invalid request body").WithDetails(err.Error())
	}
	return nil
}
