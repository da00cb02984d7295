package api

import (
	"encoding/json"
	"net/http"
	"time"
)

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "online",
		"timestamp": time.Now().UTC(),
	})
}
