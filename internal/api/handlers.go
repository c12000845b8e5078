package api

import (
	_ "embed"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/grantscout/internal/chat"
	"github.com/xkilldash9x/grantscout/internal/session"
	"github.com/xkilldash9x/grantscout/internal/tasks"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed web/index.html
var indexHTML []byte

// maxBodyBytes bounds a chat request body.
const maxBodyBytes = 64 << 10

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// sessionID returns the verified id from the request cookie.
func (s *Server) sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.cfg.SessionCookie)
	if err != nil {
		return "", false
	}
	id, err := s.signer.Verify(c.Value)
	if err != nil {
		return "", false
	}
	return id, true
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, id string) error {
	token, err := s.signer.Sign(id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// index starts a fresh conversation and serves the chat page.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	if old, ok := s.sessionID(r); ok {
		s.sessions.Delete(old)
	}
	id := session.NewID()
	s.sessions.Put(id, chat.NewState())
	if err := s.setSessionCookie(w, r, id); err != nil {
		s.logger.Error("Failed to sign session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(indexHTML)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	turns := []chat.Turn{}
	if id, ok := s.sessionID(r); ok {
		if state, found := s.sessions.Get(id); found {
			turns = state.History
		}
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, ok := s.sessionID(r)
	state, found := chat.State{}, false
	if ok {
		// One turn at a time per session; a concurrent post sees this turn's result.
		unlock := s.sessions.Lock(id)
		defer unlock()
		state, found = s.sessions.Get(id)
	}
	if !found {
		// Without a page load there is no greeting; the conversation starts at step 1.
		id = session.NewID()
		state = chat.State{Step: chat.StepAwaitingGrantType}
		if err := s.setSessionCookie(w, r, id); err != nil {
			s.logger.Error("Failed to sign session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to start session")
			return
		}
	}

	next, reply, err := s.engine.Handle(r.Context(), state, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("Chat turn failed", zap.Error(err), zap.Stringer("step", state.Step))
		writeError(w, http.StatusBadGateway, "the assistant is unavailable, please try again")
		return
	}

	s.sessions.Put(id, next)
	writeJSON(w, http.StatusOK, chatResponse{Response: reply})
}

func (s *Server) listTasks(w http.ResponseWriter, _ *http.Request) {
	list := s.tasks.List()
	if list == nil {
		list = []tasks.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": list})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tasks.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
