// Package api exposes the record store, the query pipeline and the operator
// endpoints over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/assistant"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/index"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/store"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/logger"
)

const (
	serviceName    = "Support Assistant"
	serviceVersion = "0.1.0"
)

type Handler struct {
	store     *store.Store
	assistant *assistant.Service
	index     *index.Index
	cfg       config.Config
	logger    *slog.Logger
}

func NewHandler(st *store.Store, svc *assistant.Service, idx *index.Index, cfg config.Config) *Handler {
	return &Handler{
		store:     st,
		assistant: svc,
		index:     idx,
		cfg:       cfg,
		logger:    slog.Default().With("component", "api-handler"),
	}
}

// Request fields are pointers so an absent field can be told apart from an
// empty string, which is accepted.
type ticketRequest struct {
	ExternalID *string        `json:"external_id"`
	Title      *string        `json:"title"`
	Body       *string        `json:"body"`
	Metadata   map[string]any `json:"metadata"`
}

type documentRequest struct {
	Name     *string        `json:"name"`
	Content  *string        `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type queryRequest struct {
	Query  *string `json:"query"`
	TopK   *int    `json:"top_k"`
	UseLLM bool    `json:"use_llm"`
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"name": serviceName, "version": serviceVersion})
}

func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req ticketRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := store.NewTicket{
		ExternalID: req.ExternalID,
		Title:      deref(req.Title),
		Body:       deref(req.Body),
		Metadata:   req.Metadata,
	}
	if err := ingest.ValidateTicket(in, missing(map[string]*string{"title": req.Title, "body": req.Body})...); err != nil {
		h.writeErr(w, r, err)
		return
	}
	t, err := h.store.CreateTicket(r.Context(), in)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("ticket created", "id", t.ID)
	h.writeJSON(w, http.StatusCreated, t)
}

// UploadTickets bulk-creates tickets from the multipart "file" field, a
// .json or .csv file.
func (h *Handler) UploadTickets(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeErr(w, r, &ingest.ValidationError{Fields: map[string]string{"file": "file is required"}})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		h.writeErr(w, r, apperrors.Invalid("reading upload: %v", err))
		return
	}

	tickets, err := ingest.ParseTicketFile(header.Filename, data)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	created, err := h.store.CreateTickets(r.Context(), tickets)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("tickets uploaded", "file", header.Filename, "created", len(created))
	h.writeJSON(w, http.StatusOK, map[string]int{"created": len(created)})
}

func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := store.NewDocument{Name: deref(req.Name), Content: deref(req.Content), Metadata: req.Metadata}
	if err := ingest.ValidateDocument(in, missing(map[string]*string{"name": req.Name, "content": req.Content})...); err != nil {
		h.writeErr(w, r, err)
		return
	}
	d, err := h.store.CreateDocument(r.Context(), in)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("document created", "id", d.ID)
	h.writeJSON(w, http.StatusCreated, d)
}

// UploadDocuments stores every file of the multipart "files" field as one
// document named after the file.
func (h *Handler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		h.writeErr(w, r, &ingest.ValidationError{Fields: map[string]string{"files": "at least one file is required"}})
		return
	}
	docs := make([]store.NewDocument, 0, len(files))
	for _, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			h.writeErr(w, r, apperrors.Invalid("reading %s: %v", fh.Filename, err))
			return
		}
		docs = append(docs, store.NewDocument{Name: fh.Filename, Content: ingest.ParseText(data)})
	}
	created, err := h.store.CreateDocuments(r.Context(), docs)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("documents uploaded", "created", len(created))
	h.writeJSON(w, http.StatusOK, map[string]int{"created": len(created)})
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	t, err := h.store.GetTicket(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	d, err := h.store.GetDocument(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

// Query answers {query, top_k, use_llm}. top_k defaults to the configured
// value; negative values yield no sources.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Query == nil {
		h.writeErr(w, r, &ingest.ValidationError{Fields: map[string]string{"query": "query is required"}})
		return
	}
	topK := h.cfg.Retrieval.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	resp, err := h.assistant.Answer(r.Context(), *req.Query, topK, req.UseLLM)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.index.Stats())
}

// InvalidateIndex forces a rebuild on the next query and drops cached
// answers.
func (h *Handler) InvalidateIndex(w http.ResponseWriter, r *http.Request) {
	h.index.Invalidate()
	deleted, err := h.assistant.Purge(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Warn("answer cache purge failed", "error", err)
	}
	logger.FromContext(r.Context()).Info("index invalidated by operator", "cache_keys_deleted", deleted)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"invalidated":        true,
		"cache_keys_deleted": deleted,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.Server.MaxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return false
		}
		h.writeError(w, http.StatusBadRequest, "expected a multipart/form-data body")
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		h.writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// missing returns the names of absent fields.
func missing(fields map[string]*string) []string {
	var out []string
	for name, v := range fields {
		if v == nil {
			out = append(out, name)
		}
	}
	return out
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// writeErr maps err onto a response. Validation failures list the offending
// fields; server-side failures are logged and reported without detail.
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	var validationErr *ingest.ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": "validation failed",
			"fields": validationErr.Fields,
		})
		return
	}
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status_code", status, "error", err)
	} else {
		log.Debug("request rejected", "status_code", status, "error", err)
	}
	h.writeError(w, status, apperrors.Message(err))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"detail": message})
}
