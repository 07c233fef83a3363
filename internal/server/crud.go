package server

import (
	"net/http"
	"strings"

	"ukiyo/internal/logging"
	"ukiyo/internal/store"
	"ukiyo/internal/usage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// MEMORIES
// =============================================================================

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	ms, err := s.deps.Store.ListMemories(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if ms == nil {
		ms = []store.Memory{}
	}
	writeJSON(w, http.StatusOK, ms)
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var in store.MemoryInput
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	m, err := s.deps.Store.CreateMemory(r.Context(), userFrom(r.Context()).ID, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	var in store.MemoryInput
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	m, err := s.deps.Store.UpdateMemory(r.Context(), userFrom(r.Context()).ID, r.PathValue("id"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.DeleteMemory(r.Context(), userFrom(r.Context()).ID, r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SESSIONS
// =============================================================================

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ss, err := s.deps.Store.ListSessions(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if ss == nil {
		ss = []store.Session{}
	}
	writeJSON(w, http.StatusOK, ss)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := s.deps.Store.GetSession(ctx, userFrom(ctx).ID, r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	msgs, err := s.deps.Store.ListMessages(ctx, sess.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// =============================================================================
// TEMPLATES
// =============================================================================

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	ts, err := s.deps.Store.ListTemplates(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if ts == nil {
		ts = []store.Template{}
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in store.TemplateInput
	if err := decodeJSON(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	t, err := s.deps.Store.CreateTemplate(r.Context(), userFrom(r.Context()).ID, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.DeleteTemplate(r.Context(), userFrom(r.Context()).ID, r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSLATION AND USAGE
// =============================================================================

type translateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" || strings.TrimSpace(req.TargetLang) == "" {
		writeError(w, http.StatusBadRequest, "text and target_lang are required")
		return
	}
	if s.deps.Translator == nil {
		writeError(w, http.StatusBadGateway, "translation is not configured")
		return
	}

	ctx := usage.WithScope(r.Context(), usage.Scope{Mode: "translate", UserID: userFrom(r.Context()).ID})
	out, err := s.deps.Translator.Translate(ctx, req.Text, req.TargetLang)
	if err != nil {
		logging.WithRequestID(logging.CategoryServer, requestID(r.Context())).Warn("translate to %s: %v", req.TargetLang, err)
		writeError(w, http.StatusBadGateway, "translation failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{TranslatedText: out})
}

type usageResponse struct {
	UserID string            `json:"user_id"`
	User   usage.TokenCounts `json:"user"`
	Total  usage.TokenCounts `json:"total"`
	Calls  int64             `json:"calls"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	id := userFrom(r.Context()).ID
	resp := usageResponse{UserID: id}
	if s.deps.Usage != nil {
		stats := s.deps.Usage.Stats()
		resp.User = stats.ByUser[id]
		resp.Total = stats.Total
		resp.Calls = stats.Calls
	}
	writeJSON(w, http.StatusOK, resp)
}
