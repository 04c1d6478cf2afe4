package ingress

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/IT-Networks/dmx-lighting-engine/internal/store"
)

// writeJSON writes v as the JSON body of the uniform {success, ...}
// envelope.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["success"] = true
	writeJSON(w, http.StatusOK, fields)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

// errNotFound builds the same error shape store's CRUD methods return for
// a missing id, for the several accessors (Scene, Group, Effect, Sequence)
// that return (value, bool) instead of an error.
func errNotFound(kind, id string) error {
	return &store.NotFoundError{Kind: kind, ID: id}
}

// statusFor maps a store error to an HTTP status: NotFound -> 404,
// everything else (LimitReached, DuplicateError, validation) -> 400.
func statusFor(err error) int {
	var notFound *store.NotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
