package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/llmcore/internal/convo"
	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/storage"
)

type createConversationRequest struct {
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
	Title        string `json:"title"`
}

type sendMessageRequest struct {
	Prompt string   `json:"prompt"`
	Tools  []string `json:"tools,omitempty"`
}

type sendMessageResponse struct {
	ConversationID string      `json:"conversation_id"`
	Message        llm.Message `json:"message"`
	Usage          llm.Usage   `json:"usage"`
}

func handleCreateConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createConversationRequest
		if !decodeBody(w, r, &req) {
			return
		}
		model := req.Model
		if model == "" {
			model = deps.DefaultModel
		}
		info, err := deps.Models.Lookup(model)
		if err != nil {
			engineError(w, err)
			return
		}

		conv := convo.NewConversation(info.Name)
		if req.Title != "" {
			conv.Title = req.Title
		}
		if req.SystemPrompt != "" {
			conv.Messages = append(conv.Messages, llm.SystemMessage(req.SystemPrompt))
		}
		if err := conv.Persist(deps.Store); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save conversation: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, conv)
	}
}

func handleListConversations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		recs, err := deps.Store.ListConversations(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list conversations: %v", err)
			return
		}

		out := make([]*convo.Conversation, 0, len(recs))
		for _, rec := range recs {
			c, err := convo.FromRecord(rec)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
				return
			}
			out = append(out, c)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGetConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv, ok := fetchConversation(w, deps, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

func handleDeleteConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteConversation(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete conversation: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// handleSendMessage runs one turn of a stored conversation and saves the
// result. A failed turn leaves the stored conversation unchanged.
func handleSendMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Prompt == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "prompt is required")
			return
		}

		conv, ok := fetchConversation(w, deps, chi.URLParam(r, "id"))
		if !ok {
			return
		}

		// Usage is recorded once per turn, under the conversation label.
		noRecorder := deps
		noRecorder.Recorder = nil
		e := openEngine(w, noRecorder, conv.ModelName, engineParams{tools: req.Tools})
		if e == nil {
			return
		}

		var opts []convo.Option
		if deps.Recorder != nil {
			opts = append(opts, convo.WithRecorder(deps.Recorder))
		}
		chat := convo.Resume(e, conv, opts...)
		msg, err := chat.Send(r.Context(), req.Prompt)
		if err != nil {
			engineError(w, err)
			return
		}
		if err := conv.Persist(deps.Store); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save conversation: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, sendMessageResponse{
			ConversationID: conv.ID,
			Message:        msg,
			Usage:          conv.Usage,
		})
	}
}

func fetchConversation(w http.ResponseWriter, deps Deps, id string) (*convo.Conversation, bool) {
	conv, err := convo.Fetch(deps.Store, id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "conversation not found")
		return nil, false
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to load conversation: %v", err)
		return nil, false
	}
	return conv, true
}
