package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hazyhaar/sitelens/shield"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError answers {"error": message} with the status of err's kind.
// Server-side failures are logged with the request logger.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= 500 {
		shield.GetLogger(r.Context()).Error("request failed", "status", code, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// decodeBody reads a JSON object into v. An empty body decodes as {}.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return validationError("request body too large")
		}
		return validationError("invalid JSON body")
	}
	return nil
}
