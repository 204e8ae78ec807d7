package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docqa/core"
)

// ConversationIDHeader carries the conversation id of a streamed answer.
const ConversationIDHeader = "X-Conversation-Id"

const defaultDocumentsLimit = 10

type uploadResponse struct {
	Message       string `json:"message"`
	InsertedCount int    `json:"inserted_count"`
}

type documentView struct {
	ID        uuid.UUID     `json:"id"`
	Content   string        `json:"content"`
	Embedding []float32     `json:"embedding"`
	Metadata  core.Metadata `json:"metadata"`
}

type queryRequest struct {
	Question       string  `json:"question"`
	ConversationID *string `json:"conversation_id,omitempty"`
}

type sourceView struct {
	ID         uuid.UUID     `json:"id"`
	Similarity float64       `json:"similarity"`
	Metadata   core.Metadata `json:"metadata"`
}

type queryResponse struct {
	Answer     string       `json:"answer"`
	SourceDocs []sourceView `json:"source_docs"`
}

type turnView struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

type historyResponse struct {
	ConversationID string     `json:"conversation_id"`
	History        []turnView `json:"history"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "multipart field \"file\" is required"})
		return
	}
	defer file.Close()

	count, err := s.backend.IngestUpload(r.Context(), header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Message:       "PDF ingested successfully",
		InsertedCount: count,
	})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	skip, err := intParam(r, "skip", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", defaultDocumentsLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	docs, err := s.backend.Documents(r.Context(), skip, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]documentView, len(docs))
	for i, doc := range docs {
		views[i] = documentView{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Embedding,
			Metadata:  doc.Metadata,
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid JSON body"})
		return
	}

	answer, err := s.backend.Answer(r.Context(), req.Question)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := queryResponse{Answer: answer.Text, SourceDocs: make([]sourceView, len(answer.Sources))}
	for i, src := range answer.Sources {
		resp.SourceDocs[i] = sourceView{ID: src.ID, Similarity: src.Similarity, Metadata: src.Metadata}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleQueryStream writes the answer as plain text, flushing after every
// token. Errors after the first byte can only end the response early.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid JSON body"})
		return
	}
	var conversationID string
	if req.ConversationID != nil {
		conversationID = *req.ConversationID
		if conversationID == "" {
			s.writeError(w, r, fmt.Errorf("%w: empty conversation_id", core.ErrInvalidIdentifier))
			return
		}
	}

	stream, err := s.backend.Stream(r.Context(), conversationID, req.Question)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set(ConversationIDHeader, stream.ConversationID())
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	for token := range stream.Tokens() {
		if _, err := io.WriteString(w, token); err != nil {
			s.logger.Warn("client went away during stream", "conversation_id", stream.ConversationID(), "err", err)
			break
		}
		if err := rc.Flush(); err != nil {
			break
		}
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversation_id")
	turns, err := s.backend.History(r.Context(), conversationID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := historyResponse{ConversationID: conversationID, History: make([]turnView, len(turns))}
	for i, turn := range turns {
		resp.History[i] = turnView{Question: turn.Question, Answer: turn.Answer, CreatedAt: turn.CreatedAt}
	}
	writeJSON(w, http.StatusOK, resp)
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", core.ErrInvalidPagination, name, raw)
	}
	return v, nil
}
