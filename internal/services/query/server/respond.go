package server

import (
	"encoding/json"
	"net/http"
)

// envelope is the body of every /api/query* response.
type envelope struct {
	Success     bool   `json:"success"`
	Data        any    `json:"data,omitempty"`
	Message     string `json:"message,omitempty"`
	Environment string `json:"environment,omitempty"`
}

// healthReport is the body of /api/health responses.
type healthReport struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp,omitempty"`
	Environment string `json:"environment,omitempty"`
	Database    string `json:"database,omitempty"`
	Message     string `json:"message"`
}

type environmentList struct {
	Environments []string `json:"environments"`
	Default      string   `json:"default"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, message, environment string) {
	writeJSON(w, status, envelope{Success: false, Message: message, Environment: environment})
}
