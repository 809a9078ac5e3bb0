package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	coreerrors "crosshub/core/errors"
	"crosshub/native/common"
)

const maxBodyBytes = 1 << 20

// ErrorBody is the JSON shape of every rejection.
type ErrorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusOf maps a classified error to its HTTP status.
func StatusOf(err error) int {
	if errors.Is(err, common.ErrModulePaused) || errors.Is(err, coreerrors.ErrHubLocked) {
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, coreerrors.ErrUnauthorized) {
		return http.StatusForbidden
	}
	switch coreerrors.KindOf(err) {
	case coreerrors.KindConflict:
		return http.StatusConflict
	case coreerrors.KindNotFound:
		return http.StatusNotFound
	case coreerrors.KindValidation, coreerrors.KindExternal:
		return http.StatusUnprocessableEntity
	case coreerrors.KindArithmetic:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err with its stable code. Unclassified errors are
// reported without their message.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	body := ErrorBody{Code: coreerrors.CodeOf(err), Error: err.Error()}
	if status == http.StatusInternalServerError {
		body.Error = http.StatusText(status)
	}
	WriteJSON(w, status, body)
}

// BadRequest reports a malformed request body or parameter.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{Code: "bad_request", Error: msg})
}

// DecodeJSON reads a size-limited JSON body into out, rejecting unknown
// fields. An empty body leaves out untouched.
func DecodeJSON(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
