package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"pdf-form-rag/internal/models"
	"pdf-form-rag/internal/rag"
)

const uploadField = "files"

type questionRequest struct {
	Question string `json:"question"`
}

type answerResponse struct {
	Question string                `json:"question"`
	Answer   string                `json:"answer"`
	Sources  []models.SearchResult `json:"sources"`
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

type uploadResponse struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Dimension int `json:"dimension"`
}

type historyResponse struct {
	SessionID string        `json:"session_id"`
	Order     string        `json:"order"`
	Turns     []models.Turn `json:"turns"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Create()
	if err != nil {
		log.Error().Err(err).Msg("Create session failed")
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Debug().Str("session", session.ID).Msg("Session created")
	s.respondJSON(w, http.StatusCreated, sessionResponse{SessionID: session.ID, CreatedAt: session.CreatedAt})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sessions.Delete(id) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	log.Debug().Str("session", id).Msg("Session deleted")
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	maxBytes := s.config.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d MB", s.config.MaxUploadMB))
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("no files in field %q", uploadField))
		return
	}

	docs := make([]models.Document, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("cannot open %s", fh.Filename))
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("cannot read %s", fh.Filename))
			return
		}
		docs = append(docs, models.Document{Name: fh.Filename, Data: data})
	}

	index, err := session.ProcessDocuments(r.Context(), docs)
	if err != nil {
		s.respondRAGError(w, session, err)
		return
	}
	s.respondJSON(w, http.StatusOK, uploadResponse{
		Documents: len(docs),
		Chunks:    index.Count(),
		Dimension: index.Dimension(),
	})
}

func (s *Server) handleAskQuestion(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}

	resp, err := session.AskQuestion(r.Context(), req.Question)
	if err != nil {
		s.respondRAGError(w, session, err)
		return
	}
	s.respondJSON(w, http.StatusOK, answerResponse{
		Question: resp.Query,
		Answer:   resp.Content,
		Sources:  resp.Source,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	order := r.URL.Query().Get("order")
	switch order {
	case "", "oldest":
		order = "oldest"
	case "newest":
	default:
		s.respondError(w, http.StatusBadRequest, "order must be oldest or newest")
		return
	}

	turns, err := session.History(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if order == "newest" {
		for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
			turns[i], turns[j] = turns[j], turns[i]
		}
	}
	s.respondJSON(w, http.StatusOK, historyResponse{SessionID: session.ID, Order: order, Turns: turns})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*rag.Session, bool) {
	session, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
	}
	return session, ok
}

func (s *Server) respondRAGError(w http.ResponseWriter, session *rag.Session, err error) {
	status := errorStatus(err)
	message := err.Error()
	if errors.Is(err, models.ErrNoIndex) {
		message = "upload PDF documents first"
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("session", session.ID).Msg("Request failed")
	} else {
		log.Warn().Err(err).Str("session", session.ID).Msg("Request rejected")
	}
	s.respondError(w, status, message)
}

// errorStatus maps pipeline errors to HTTP status codes.
func errorStatus(err error) int {
	var (
		extErr *models.ExtractionError
		embErr *models.EmbeddingError
		genErr *models.GenerationError
	)
	switch {
	case errors.Is(err, models.ErrNoIndex), errors.Is(err, models.ErrConcurrentExchange):
		return http.StatusConflict
	case errors.As(err, &extErr), errors.Is(err, models.ErrEmptyCorpus):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &embErr), errors.As(err, &genErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
