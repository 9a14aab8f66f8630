// Package response writes the JSON envelope returned by every API route.
package response

import (
	"encoding/json"
	"net/http"

	"vidbatch/internal/entity"
)

// Response is the JSON envelope.
type Response struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Data    any    `json:"data"`
}

// Batch is the data of a finished batch.
type Batch struct {
	Outcomes  []entity.Outcome `json:"outcomes"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	// Results holds every success of the session so far, not only this batch.
	Results []entity.Entry `json:"results"`
}

// Capabilities is the data of the capability probe.
type Capabilities struct {
	Ready bool                     `json:"ready"`
	Tools []entity.CapabilityCheck `json:"tools"`
}

// Missing is the data of a batch rejected for absent tools.
type Missing struct {
	Missing []string `json:"missing"`
}

func WriteJSON(w http.ResponseWriter, status int, message string, data any, err error) {
	var errorMsg string
	if err != nil {
		errorMsg = err.Error()
	}

	r := Response{
		Message: message,
		Data:    data,
		Error:   errorMsg,
	}

	bytes, err := json.Marshal(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(bytes)
}

func OK(w http.ResponseWriter, message string, res any, err error) {
	WriteJSON(w, http.StatusOK, message, res, err)
}

func BadRequest(w http.ResponseWriter, message string, err error) {
	WriteJSON(w, http.StatusBadRequest, message, nil, err)
}

func NotFound(w http.ResponseWriter, message string, err error) {
	WriteJSON(w, http.StatusNotFound, message, nil, err)
}

func Conflict(w http.ResponseWriter, message string, err error) {
	WriteJSON(w, http.StatusConflict, message, nil, err)
}

func PreconditionFailed(w http.ResponseWriter, message string, res any, err error) {
	WriteJSON(w, http.StatusPreconditionFailed, message, res, err)
}

func RequestEntityTooLarge(w http.ResponseWriter, message string, err error) {
	WriteJSON(w, http.StatusRequestEntityTooLarge, message, nil, err)
}

func UnprocessableEntity(w http.ResponseWriter, message string, err error) {
	WriteJSON(w, http.StatusUnprocessableEntity, message, nil, err)
}

func InternalServerError(w http.ResponseWriter, message string, res any, err error) {
	WriteJSON(w, http.StatusInternalServerError, message, res, err)
}
