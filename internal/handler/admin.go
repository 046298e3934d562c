package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ellielabs/ellie/backend/internal/store"
	"github.com/ellielabs/ellie/backend/pkg/utils"
)

// AdminHandler writes authorization records directly to the store,
// bypassing the state machine.
type AdminHandler struct {
	store store.Store
	token string
	log   zerolog.Logger
}

// authenticate rejects the request unless the admin token matches. It
// writes the error response itself and reports whether to continue.
func (h *AdminHandler) authenticate(w http.ResponseWriter, r *http.Request) bool {
	if h.token == "" {
		utils.RespondError(w, http.StatusServiceUnavailable, "admin API disabled")
		return false
	}
	provided := r.Header.Get("X-Admin-Token")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.token)) != 1 {
		utils.RespondError(w, http.StatusUnauthorized, "invalid admin token")
		return false
	}
	return true
}

func (h *AdminHandler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if !h.authenticate(w, r) {
		return
	}

	var payload struct {
		UserID        int64   `json:"userId"`
		Token         string  `json:"token"`
		PersonaName   *string `json:"personaName"`
		PersonaPrompt *string `json:"personaPrompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UserID == 0 || payload.Token == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId and token are required")
		return
	}

	if err := h.store.PutAuthorization(r.Context(), payload.UserID, payload.Token, payload.PersonaName, payload.PersonaPrompt); err != nil {
		h.log.Error().Err(err).Int64("user_id", payload.UserID).Msg("authorization write failed")
		utils.RespondError(w, http.StatusInternalServerError, "authorization write failed")
		return
	}

	h.log.Info().Int64("user_id", payload.UserID).Msg("user authorized")
	utils.RespondJSON(w, http.StatusCreated, map[string]string{"status": "authorized"})
}

func (h *AdminHandler) handleListJournal(w http.ResponseWriter, r *http.Request) {
	if !h.authenticate(w, r) {
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID == 0 {
		utils.RespondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.RespondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.store.ListJournal(r.Context(), userID, limit)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("journal listing failed")
		utils.RespondError(w, http.StatusInternalServerError, "journal listing failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, entries)
}
