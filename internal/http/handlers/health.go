package handlers

import (
	"net/http"
)

// Health reports liveness plus whether the analysis archive is wired in.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	archive := "disabled"
	if a.Repo != nil {
		archive = "enabled"
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "archive": archive})
}
