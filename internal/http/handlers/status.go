package handlers

import (
	"net/http"
	"time"
)

type statusResponse struct {
	LastCallAt       string         `json:"last_call_at,omitempty"`
	SecondsSinceCall int            `json:"seconds_since_last_call,omitempty"`
	CooldownActive   bool           `json:"cooldown_active"`
	GlobalCooldown   int            `json:"global_cooldown_seconds"`
	ActiveUsers      int            `json:"active_users"`
	CacheSize        int            `json:"cache_size"`
	ResetDate        string         `json:"quota_reset_date"`
	TotalDailyCalls  int            `json:"total_daily_calls"`
	DailyLimit       int            `json:"daily_limit"`
	UserBreakdown    map[string]int `json:"user_breakdown,omitempty"`
}

// GeminiStatus reports the gate's operational snapshot: cooldown position,
// cache size and the day's quota spending.
func (a *App) GeminiStatus(w http.ResponseWriter, r *http.Request) {
	st := a.Gate.Status()
	resp := statusResponse{
		CooldownActive:  st.CooldownActive,
		GlobalCooldown:  int(st.GlobalCooldown / time.Second),
		ActiveUsers:     st.ActiveUsers,
		CacheSize:       st.CacheSize,
		ResetDate:       st.ResetDate,
		TotalDailyCalls: st.TotalDailyCalls,
		DailyLimit:      st.DailyLimit,
		UserBreakdown:   st.UserBreakdown,
	}
	if !st.LastCallAt.IsZero() {
		resp.LastCallAt = st.LastCallAt.UTC().Format(time.RFC3339)
		resp.SecondsSinceCall = int(st.SinceLastCall / time.Second)
	}
	a.json(w, http.StatusOK, resp)
}

// CooldownReset clears the cooldown stamps so an operator can unblock
// traffic after an investigation. Quota counts stay as they are.
func (a *App) CooldownReset(w http.ResponseWriter, r *http.Request) {
	prev := a.Gate.ResetCooldown()
	resp := map[string]any{"status": "ok"}
	if !prev.IsZero() {
		resp["previous_last_call"] = prev.UTC().Format(time.RFC3339)
	}
	a.json(w, http.StatusOK, resp)
}

// GeminiModels lists the models visible to the configured API key, for
// diagnosing fallback-chain misconfiguration.
func (a *App) GeminiModels(w http.ResponseWriter, r *http.Request) {
	if a.Models == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "model catalog is not configured")
		return
	}
	models, err := a.Models.ListModels(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: list models")
		a.error(w, http.StatusBadGateway, "provider_error", "failed to list models")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"models": models})
}
