package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ellielabs/ellie/backend/internal/model/chat"
	"github.com/ellielabs/ellie/backend/internal/service/conversation"
	"github.com/ellielabs/ellie/backend/pkg/utils"
)

// EventsHandler feeds inbound transport events to the conversation engine.
type EventsHandler struct {
	engine *conversation.Engine
}

func (h *EventsHandler) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev chat.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ev.UserID == 0 {
		utils.RespondError(w, http.StatusBadRequest, "userId is required")
		return
	}
	switch ev.Kind {
	case chat.KindCommand, chat.KindText:
	default:
		utils.RespondError(w, http.StatusBadRequest, "kind must be command or text")
		return
	}

	reply := h.engine.HandleEvent(r.Context(), ev)
	utils.RespondJSON(w, http.StatusOK, reply)
}
