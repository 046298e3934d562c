package handler

import (
	"net/http"

	"github.com/ellielabs/ellie/backend/internal/service/conversation"
	"github.com/ellielabs/ellie/backend/pkg/utils"
)

func handleHealth(engine *conversation.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": engine.Sessions(),
		})
	}
}
