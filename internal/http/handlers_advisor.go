package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"contaae/internal/advisor"
	"contaae/internal/log"
)

const maxAdvisorMessages = 50

type chatRequest struct {
	Messages []advisor.Message `json:"messages"`
}

func (s *Server) handleAdvisorChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Advisor == nil {
		writeMessage(w, r, http.StatusServiceUnavailable, "the advisor is not configured")
		return
	}
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Messages) > maxAdvisorMessages {
		req.Messages = req.Messages[len(req.Messages)-maxAdvisorMessages:]
	}

	history := make([]advisor.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role != advisor.RoleUser && m.Role != advisor.RoleAssistant {
			writeMessage(w, r, http.StatusUnprocessableEntity, "message role must be user or assistant")
			return
		}
		content := sanitizeInput(m.Content)
		if content == "" {
			continue
		}
		history = append(history, advisor.Message{Role: m.Role, Content: content})
	}

	reply, err := s.deps.Advisor.SendMessage(r.Context(), history)
	if err != nil {
		if errors.Is(err, advisor.ErrEmptyConversation) {
			writeError(w, r, err)
			return
		}
		log.FromContext(r.Context()).WithComponent(log.ComponentAdvisor).ErrorContext(r.Context(), "Advisor call failed", log.FieldError, err.Error())
		writeMessage(w, r, http.StatusBadGateway, "the advisor is unavailable, try again later")
		return
	}
	render.JSON(w, r, map[string]string{"reply": reply})
}
