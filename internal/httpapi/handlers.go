package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MimeLyc/contextual-doc-translator/internal/config"
	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/internal/glossary"
	"github.com/MimeLyc/contextual-doc-translator/internal/jobs"
	"github.com/MimeLyc/contextual-doc-translator/internal/library"
	"github.com/MimeLyc/contextual-doc-translator/internal/session"
)

type openRequest struct {
	Ref string `json:"ref"`
}

type textRequest struct {
	Text string `json:"text"`
}

type batchRequest struct {
	Refs []string `json:"refs"`
}

type stepResponse struct {
	Changed  bool             `json:"changed"`
	Text     string           `json:"text"`
	Snapshot session.Snapshot `json:"snapshot"`
}

type batchResponse struct {
	State jobs.State        `json:"state"`
	Items []*jobs.BatchItem `json:"items"`
}

type glossaryEditRequest struct {
	Name    string           `json:"name"`
	NewName string           `json:"new_name,omitempty"`
	Source  string           `json:"source,omitempty"`
	Entries glossary.Entries `json:"entries,omitempty"`
}

type glossaryInfo struct {
	Name         string `json:"name"`
	AutoToPrompt bool   `json:"auto_to_prompt"`
	Entries      int    `json:"entries"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.app.Session.Snapshot())
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Ref) == "" {
		writeError(w, http.StatusBadRequest, "ref is required")
		return
	}
	if err := s.app.Session.OpenChapter(r.Context(), req.Ref); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Session.Snapshot())
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	s.app.Session.OnTextChanged(req.Text)
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.app.Session.OnTranslateRequested(); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.handleStep(w, r, s.app.Session.OnUndoRequested)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.handleStep(w, r, s.app.Session.OnRedoRequested)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request, step func() (string, bool)) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	text, ok := step()
	writeJSON(w, http.StatusOK, stepResponse{
		Changed:  ok,
		Text:     text,
		Snapshot: s.app.Session.Snapshot(),
	})
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.app.Session.Flush(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Session.Snapshot())
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sched := s.app.Session.Scheduler()
		writeJSON(w, http.StatusOK, batchResponse{State: sched.State(), Items: sched.List()})
	case http.MethodPost:
		var req batchRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid json body")
				return
			}
		}
		items, err := s.app.Session.OnBatchRequested(r.Context(), req.Refs)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, batchResponse{
			State: s.app.Session.Scheduler().State(),
			Items: items,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	chapters, err := s.app.Library.Chapters(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	if chapters == nil {
		chapters = []library.Chapter{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target_language": s.app.Library.TargetLanguage(),
		"chapters":        chapters,
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.app.Settings.GetRuntimeSettings().Redacted())
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := s.app.Settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved.Redacted())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.app.Scheduler.Info())
}

func (s *Server) handleGlossaries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeGlossaries(w)
	case http.MethodPost:
		// Reload from disk.
		err := s.app.Glossaries.Reload()
		resp := map[string]any{"loaded": len(s.app.Glossaries.Glossaries())}
		if err != nil {
			resp["error"] = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleGlossaryEntries adds entries (POST) or removes one source term
// (DELETE). Adding to an unknown glossary creates it.
func (s *Server) handleGlossaryEntries(w http.ResponseWriter, r *http.Request) {
	var req glossaryEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	var err error
	switch r.Method {
	case http.MethodPost:
		if len(req.Entries) == 0 {
			writeError(w, http.StatusBadRequest, "entries are required")
			return
		}
		err = s.app.Glossaries.AddEntries(req.Name, req.Entries)
	case http.MethodDelete:
		err = s.app.Glossaries.RemoveEntry(req.Name, req.Source)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	s.writeGlossaries(w)
}

func (s *Server) handleGlossaryRename(w http.ResponseWriter, r *http.Request) {
	s.handleGlossaryChange(w, r, func(req glossaryEditRequest) error {
		return s.app.Glossaries.Rename(req.Name, req.NewName)
	})
}

func (s *Server) handleGlossaryDelete(w http.ResponseWriter, r *http.Request) {
	s.handleGlossaryChange(w, r, func(req glossaryEditRequest) error {
		return s.app.Glossaries.Delete(req.Name)
	})
}

func (s *Server) handleGlossaryChange(w http.ResponseWriter, r *http.Request, change func(glossaryEditRequest) error) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req glossaryEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := change(req); err != nil {
		writeErr(w, err)
		return
	}
	s.writeGlossaries(w)
}

func (s *Server) writeGlossaries(w http.ResponseWriter) {
	items := s.app.Glossaries.Glossaries()
	ret := make([]glossaryInfo, 0, len(items))
	for _, g := range items {
		ret = append(ret, glossaryInfo{Name: g.Name, AutoToPrompt: g.AutoToPrompt, Entries: len(g.Entries)})
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Text == "" {
		req.Text = s.app.Session.Snapshot().Source
	}
	entries, err := s.app.SuggestGlossary(r.Context(), req.Text)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type synonymsRequest struct {
	Word  string `json:"word"`
	Left  string `json:"left"`
	Right string `json:"right"`
}

func (s *Server) handleSynonyms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req synonymsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	found, err := s.app.Synonyms(r.Context(), req.Word, req.Left, req.Right)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"synonyms": found})
}

// statusFor maps an error to the response status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrTranslationInFlight):
		return http.StatusConflict
	case errors.Is(err, library.ErrNoChapter):
		return http.StatusNotFound
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	}
	switch errs.TypeOf(err) {
	case errs.ErrValidation:
		return http.StatusBadRequest
	case errs.ErrConfig:
		return http.StatusUnprocessableEntity
	case errs.ErrProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]any{
		"error":  err.Error(),
		"kind":   errs.TypeOf(err).String(),
		"advice": errs.Advice(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
