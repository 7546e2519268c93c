package httpmw

import (
	"encoding/json"
	"net/http"
)

// writeError responds with the API's failure envelope so edge rejections
// look the same to clients as handler failures.
func writeError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": http.StatusText(status),
	})
}
