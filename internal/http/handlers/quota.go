package handlers

import (
	"net/http"
	"time"
)

type quotaResponse struct {
	UserID        string `json:"user_id"`
	Used          int    `json:"used"`
	Limit         int    `json:"limit"`
	Remaining     int    `json:"remaining"`
	HasQuota      bool   `json:"has_quota"`
	CanCall       bool   `json:"can_call"`
	WaitSeconds   int    `json:"wait_seconds,omitempty"`
	Message       string `json:"message"`
	ResetsAtUTC   string `json:"resets_at_utc"`
	CooldownEvery int    `json:"cooldown_seconds"`
}

// Quota reports the caller's daily usage and cooldown position. Read-only:
// asking about quota never charges it.
func (a *App) Quota(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	s := a.Gate.Standing(userID)
	remaining := s.Limit - s.Used
	if remaining < 0 {
		remaining = 0
	}
	a.json(w, http.StatusOK, quotaResponse{
		UserID:        s.UserID,
		Used:          s.Used,
		Limit:         s.Limit,
		Remaining:     remaining,
		HasQuota:      s.HasQuota,
		CanCall:       s.CanCall,
		WaitSeconds:   int(s.Wait / time.Second),
		Message:       s.Message,
		ResetsAtUTC:   nextMidnightUTC(time.Now()).Format(time.RFC3339),
		CooldownEvery: int(s.Cooldown / time.Second),
	})
}

func nextMidnightUTC(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
