package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/importer"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/reconcile"
	"github.com/cleared-dev/ledger/internal/reserve"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Error = "validation failed"
		resp.Details = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			resp.Details[fe.Namespace()] = fmt.Sprintf("failed on '%s' tag", fe.Tag())
		}
	}
	writeJSON(w, status, resp)
}

// statusFor maps domain errors to HTTP status codes. Not-found checks run
// first so a posting naming an unknown account is a 404 even when it is
// also unbalanced.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnknownAccount),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, reconcile.ErrUnknownLine),
		errors.Is(err, accounts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrLineAlreadyMatched),
		errors.Is(err, ledger.ErrAlreadyVoid),
		errors.Is(err, accounts.ErrDuplicateCode):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrLedgerUnbalanced),
		errors.Is(err, ledger.ErrInvalidEntry),
		errors.Is(err, ledger.ErrTooFewEntries),
		errors.Is(err, ledger.ErrBalanceOverflow),
		errors.Is(err, reconcile.ErrNoOperatingAccount),
		errors.Is(err, reserve.ErrInvalidRule),
		errors.Is(err, accounts.ErrInvalidType),
		errors.Is(err, accounts.ErrTypeImmutable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, importer.ErrUnknownFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, ErrorResponse{Error: "internal error"})
		return
	}
	writeError(w, status, err)
}

// decode reads a JSON body into v and validates it. It writes the 400 itself.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	return s.readJSON(w, r, v, false)
}

// decodeOptional is decode for endpoints whose body may be empty, including
// chunked requests that carry no bytes.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	return s.readJSON(w, r, v, true)
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if optional && errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed body: %w", err))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}
