package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError rejects a request before it reaches a handler; the body
// shape matches the handler package's error envelope.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg})
}
