package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"ukiyo/internal/envelope"
	"ukiyo/internal/flow"
	"ukiyo/internal/logging"
	"ukiyo/internal/provider"
	"ukiyo/internal/store"
	"ukiyo/internal/usage"
)

// formOverhead is the room left for the non-file form fields of an upload.
const formOverhead = 1 << 20

type answerForm struct {
	prompt    string
	mode      string
	sessionID string
	genre     string
	charCount int
	file      *uploadedFile
}

func (s *Server) parseAnswerForm(w http.ResponseWriter, r *http.Request) (answerForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+formOverhead)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(32 << 20)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return answerForm{}, fmt.Errorf("%w: request exceeds %d bytes", errTooLarge, s.cfg.MaxUploadBytes)
		}
		return answerForm{}, fmt.Errorf("%w: %v", errBadInput, err)
	}

	f := answerForm{
		prompt:    strings.TrimSpace(r.FormValue("prompt")),
		mode:      strings.ToLower(strings.TrimSpace(r.FormValue("mode"))),
		sessionID: strings.TrimSpace(r.FormValue("session_id")),
		genre:     strings.TrimSpace(r.FormValue("genre")),
	}
	if f.prompt == "" {
		return answerForm{}, fmt.Errorf("%w: prompt is required", errBadInput)
	}
	if f.mode == "" {
		f.mode = flow.ModeBalance
	}
	if !slices.Contains(flow.Modes(), f.mode) {
		return answerForm{}, fmt.Errorf("%w: %q", flow.ErrUnknownMode, f.mode)
	}
	if v := strings.TrimSpace(r.FormValue("char_count")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return answerForm{}, fmt.Errorf("%w: char_count must be a non-negative integer", errBadInput)
		}
		f.charCount = n
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return f, nil
	case err != nil:
		return answerForm{}, fmt.Errorf("%w: %v", errBadInput, err)
	}
	defer file.Close()

	if header.Size > s.cfg.MaxUploadBytes {
		return answerForm{}, fmt.Errorf("%w: file exceeds %d bytes", errTooLarge, s.cfg.MaxUploadBytes)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return answerForm{}, fmt.Errorf("reading upload: %w", err)
	}
	f.file = &uploadedFile{name: header.Filename, contentType: header.Header.Get("Content-Type"), data: data}
	return f, nil
}

// handleCollaborativeAnswer runs one mode flow for the user and persists the turn.
func (s *Server) handleCollaborativeAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(ctx)
	log := logging.WithRequestID(logging.CategoryServer, requestID(ctx))

	form, err := s.parseAnswerForm(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	log.Info("answer: user=%s mode=%s session=%q prompt=%q", user.ID, form.mode, form.sessionID, logging.Truncate(form.prompt, 60))

	memories, err := s.deps.Store.ListMemories(ctx, user.ID)
	if err != nil {
		log.Warn("loading memories for %s: %v", user.ID, err)
		memories = nil
	}

	env := envelope.New(form.prompt, form.mode, form.sessionID)
	flowPrompt := form.prompt
	if form.file != nil {
		text, step := extractFile(*form.file)
		env.FileProcessing = &step
		flowPrompt = wrapUploadPrompt(form.file.name, form.prompt, text, step)
		env.Prompt = flowPrompt
	}

	var (
		sess    store.Session
		goal    = form.prompt
		history []provider.Turn
	)
	if form.sessionID != "" {
		sess, err = s.deps.Store.GetSession(ctx, user.ID, form.sessionID)
		if err != nil {
			fail(w, r, err)
			return
		}
		if first, err := s.deps.Store.FirstUserMessage(ctx, sess.ID); err != nil {
			log.Warn("first message of %s: %v", sess.ID, err)
		} else if strings.TrimSpace(first) != "" {
			goal = first
		}
		msgs, err := s.deps.Store.ListMessages(ctx, sess.ID)
		if err != nil {
			fail(w, r, err)
			return
		}
		history = make([]provider.Turn, 0, len(msgs))
		for _, m := range msgs {
			history = append(history, provider.Turn{Role: provider.NormalizeRole(m.Role), Content: m.Content})
		}
	} else {
		sess, err = s.deps.Store.CreateSession(ctx, user.ID, store.TitleFromPrompt(form.prompt), form.mode)
		if err != nil {
			fail(w, r, err)
			return
		}
	}
	env.ProcessedSessionID = sess.ID

	if _, err := s.deps.Store.AppendMessage(ctx, sess.ID, store.RoleUser, form.prompt, ""); err != nil {
		fail(w, r, err)
		return
	}
	if err := s.deps.Store.SetSessionStatus(ctx, sess.ID, envelope.StatusLoading, form.mode); err != nil {
		log.Warn("marking %s loading: %v", sess.ID, err)
	}

	if err := s.flows.Acquire(ctx, 1); err != nil {
		log.Warn("waiting for a flow slot: %v", err)
		env.OverallError = "request cancelled while waiting for a flow slot"
		s.persistOutcome(r, sess.ID, form.mode, env)
		writeError(w, http.StatusServiceUnavailable, "server busy")
		return
	}
	runCtx := usage.WithScope(ctx, usage.Scope{Mode: form.mode, SessionID: sess.ID, UserID: user.ID})
	if s.deps.Usage != nil {
		runCtx = usage.NewContext(runCtx, s.deps.Usage)
	}
	timer := logging.StartTimer(logging.CategoryServer, "mode "+form.mode)
	err = s.deps.Engine.Run(runCtx, form.mode, flow.Input{
		Prompt:       flowPrompt,
		History:      history,
		Goal:         goal,
		Memories:     store.Records(memories),
		Genre:        form.genre,
		DesiredChars: form.charCount,
	}, env)
	timer.Stop()
	s.flows.Release(1)
	if err != nil {
		log.Error("mode %s: %v", form.mode, err)
		env.OverallError = fmt.Sprintf("Error while processing mode '%s': %v", form.mode, err)
	}

	s.persistOutcome(r, sess.ID, form.mode, env)
	s.generateOutputFile(user.ID, sess.ID, form.prompt, env)

	writeJSON(w, http.StatusOK, env)
}

// persistOutcome stores the AI turn, if any, and the final session status.
func (s *Server) persistOutcome(r *http.Request, sessionID, mode string, env *envelope.Envelope) {
	// the turn is recorded even when the client has gone away
	ctx := context.WithoutCancel(r.Context())
	log := logging.WithRequestID(logging.CategoryServer, requestID(ctx))

	text, source, status := env.Outcome()
	if status == envelope.StatusCompleteNoResponse {
		log.Warn("mode %s produced no answer for session %s", mode, sessionID)
	}
	if text != "" {
		if source == "" {
			source = fallbackSource(mode, status)
		}
		if _, err := s.deps.Store.AppendMessage(ctx, sessionID, store.RoleAI, text, source); err != nil {
			log.Error("saving answer for %s: %v", sessionID, err)
		}
	}
	if err := s.deps.Store.SetSessionStatus(ctx, sessionID, status, mode); err != nil {
		log.Error("setting status of %s to %s: %v", sessionID, status, err)
	}
}

func fallbackSource(mode string, status envelope.Status) string {
	name := mode
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	if status == envelope.StatusError {
		return "Error in " + name + " Mode"
	}
	return "Final Output (" + name + " Mode)"
}
