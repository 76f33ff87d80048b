package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driving"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing
const maxUploadMemory = 32 << 20

// VersionResponse is the API version payload
type VersionResponse struct {
	Version string `json:"version"`
}

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "database unreachable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "redis unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Asset endpoints

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := driven.AssetListOptions{
		Filter: domain.AssetFilter{
			Type:     domain.AssetType(q.Get("type")),
			MimeType: q.Get("mime_type"),
			Search:   q.Get("search"),
		},
		Sort:    q.Get("sort"),
		Order:   domain.SortOrder(q.Get("order")),
		Page:    intParam(q.Get("page"), 1),
		PerPage: intParam(q.Get("per_page"), 20),
	}
	if tags := q.Get("tags"); tags != "" {
		opts.Filter.Tags = strings.Split(tags, ",")
	}

	list, err := s.assetService.List(r.Context(), opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "expected multipart form upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "missing file field")
		return
	}
	defer file.Close()

	req, err := uploadRequest(r, file, header)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	req.CreatedBy = Subject(r.Context())

	asset, err := s.assetService.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// batchCreateResponse reports per-file outcomes for a batch upload
type batchCreateResponse struct {
	Created []*domain.Asset  `json:"created"`
	Failed  []batchItemError `json:"failed,omitempty"`
}

type batchItemError struct {
	Name  string    `json:"name"`
	Error ErrorBody `json:"error"`
}

func (s *Server) handleBatchCreateAssets(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "expected multipart form upload")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "missing files field")
		return
	}

	// One failed file never aborts the rest of the batch
	var resp batchCreateResponse
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			resp.Failed = append(resp.Failed, batchItemError{
				Name:  header.Filename,
				Error: ErrorBody{Code: "INVALID_INPUT", Message: err.Error()},
			})
			continue
		}

		req, err := uploadRequest(r, file, header)
		file.Close()
		if err != nil {
			resp.Failed = append(resp.Failed, batchItemError{
				Name:  header.Filename,
				Error: ErrorBody{Code: "INVALID_INPUT", Message: err.Error()},
			})
			continue
		}
		req.Name = header.Filename
		req.CreatedBy = Subject(r.Context())

		asset, err := s.assetService.Create(r.Context(), req)
		if err != nil {
			_, code, message := classifyError(err)
			resp.Failed = append(resp.Failed, batchItemError{
				Name:  header.Filename,
				Error: ErrorBody{Code: code, Message: message, Details: err.Error()},
			})
			continue
		}
		resp.Created = append(resp.Created, asset)
	}

	status := http.StatusCreated
	if len(resp.Created) == 0 {
		status = http.StatusBadRequest
	} else if len(resp.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

// uploadRequest builds a creation request from the shared multipart form
// fields and one file
func uploadRequest(r *http.Request, file multipart.File, header *multipart.FileHeader) (driving.CreateAssetRequest, error) {
	var req driving.CreateAssetRequest

	content, err := io.ReadAll(file)
	if err != nil {
		return req, fmt.Errorf("reading upload: %w", err)
	}

	req.Content = content
	req.Name = r.FormValue("name")
	if req.Name == "" {
		req.Name = header.Filename
	}
	req.Type = domain.AssetType(r.FormValue("type"))
	if req.Type == "" {
		req.Type = domain.AssetTypeFile
	}
	req.MimeType = r.FormValue("mime_type")
	if req.MimeType == "" {
		req.MimeType = header.Header.Get("Content-Type")
	}
	if tags := r.FormValue("tags"); tags != "" {
		req.Tags = strings.Split(tags, ",")
	}
	if meta := r.FormValue("metadata"); meta != "" {
		if err := json.Unmarshal([]byte(meta), &req.Metadata); err != nil {
			return req, fmt.Errorf("invalid metadata: %w", err)
		}
	}
	if parents := r.FormValue("parents"); parents != "" {
		if err := json.Unmarshal([]byte(parents), &req.Parents); err != nil {
			return req, fmt.Errorf("invalid parents: %w", err)
		}
	}
	req.GenerateEmbedding = r.FormValue("generate_embedding") != "false"

	return req, nil
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.assetService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Server) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	var update domain.AssetUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	asset, err := s.assetService.Update(r.Context(), r.PathValue("id"), update)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := s.assetService.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloadAsset(w http.ResponseWriter, r *http.Request) {
	download, err := s.assetService.Download(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	contentType := download.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(download.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(download.Content)
}

// processDocumentRequest is the JSON body for document processing
type processDocumentRequest struct {
	ChunkSize      int  `json:"chunk_size,omitempty"`
	ChunkOverlap   int  `json:"chunk_overlap,omitempty"`
	ForceReprocess bool `json:"force_reprocess,omitempty"`
}

func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	// The body is optional; absent means configured defaults
	var req processDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	result, err := s.ragService.ProcessDocument(r.Context(), driving.ProcessDocumentRequest{
		AssetID:        r.PathValue("id"),
		ChunkSize:      req.ChunkSize,
		ChunkOverlap:   req.ChunkOverlap,
		ForceReprocess: req.ForceReprocess,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Search endpoints

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query domain.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	resp, err := s.searchService.Search(r.Context(), query)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// vectorSearchRequest is the JSON body for raw vector search
type vectorSearchRequest struct {
	Query  string           `json:"query"`
	K      int              `json:"k,omitempty"`
	Filter domain.StringMap `json:"filter,omitempty"`
}

// vectorSearchResponse wraps raw remote matches
type vectorSearchResponse struct {
	Matches []domain.VectorMatch `json:"matches"`
}

func (s *Server) handleVectorSearch(w http.ResponseWriter, r *http.Request) {
	var req vectorSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "query is required")
		return
	}

	matches, err := s.searchService.VectorSearch(r.Context(), req.Query, req.K, req.Filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vectorSearchResponse{Matches: matches})
}

// suggestionsResponse carries autocomplete results
type suggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("q")

	names, err := s.searchService.GetSuggestions(r.Context(), prefix)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, suggestionsResponse{Suggestions: names})
}

// Conversation endpoints

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	list, err := s.conversationService.List(r.Context(),
		q.Get("search"),
		intParam(q.Get("page"), 1),
		intParam(q.Get("per_page"), 20),
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// createConversationRequest is the JSON body for starting a conversation
type createConversationRequest struct {
	Title    string          `json:"title"`
	Settings domain.Metadata `json:"settings,omitempty"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	conv, err := s.conversationService.Create(r.Context(), req.Title, req.Settings, Subject(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.conversationService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	var update domain.ConversationUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	conv, err := s.conversationService.Update(r.Context(), r.PathValue("id"), update)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.conversationService.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// messagesResponse carries a conversation's history
type messagesResponse struct {
	Messages []*domain.Message `json:"messages"`
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r.URL.Query().Get("limit"), 0)

	msgs, err := s.conversationService.GetMessages(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: msgs})
}

// sendMessageRequest is the JSON body for a RAG chat turn
type sendMessageRequest struct {
	Message       string   `json:"message"`
	ContextAssets []string `json:"context_assets,omitempty"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	turn, err := s.ragService.Chat(r.Context(), req.Message, r.PathValue("id"), req.ContextAssets)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

// intParam parses a query integer with a fallback
func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
