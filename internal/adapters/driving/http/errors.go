package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
)

// ErrorBody is the inner payload of the API error envelope
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ErrorResponse is the envelope every API error is wrapped in
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// StatusResponse is a simple status payload
type StatusResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// writeServiceError maps a domain sentinel to its HTTP status and error
// code and renders the envelope. The wrapped error text goes in details.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code, message := classifyError(err)
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{
		Code:    code,
		Message: message,
		Details: err.Error(),
	}})
}

func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidFileType):
		return http.StatusBadRequest, "INVALID_FILE_TYPE", "declared file type is not allowed"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT", "invalid input"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "authentication required"
	case errors.Is(err, domain.ErrAssetNotFound):
		return http.StatusNotFound, "ASSET_NOT_FOUND", "asset not found"
	case errors.Is(err, domain.ErrConversationNotFound):
		return http.StatusNotFound, "CONVERSATION_NOT_FOUND", "conversation not found"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "upload exceeds the size limit"
	case errors.Is(err, domain.ErrStoreProtocol):
		return http.StatusBadGateway, "STORE_PROTOCOL_ERROR", "asset store returned a malformed response"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "asset store is not connected"
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable, "EMBEDDING_UNAVAILABLE", "embedding provider is not configured"
	case errors.Is(err, domain.ErrChatUnavailable):
		return http.StatusServiceUnavailable, "CHAT_UNAVAILABLE", "chat service is not configured"
	case errors.Is(err, domain.ErrSearchFailed):
		return http.StatusInternalServerError, "SEARCH_FAILED", "search failed"
	case errors.Is(err, domain.ErrRAGFailed):
		return http.StatusInternalServerError, "RAG_FAILED", "document processing or chat failed"
	default:
		return http.StatusInternalServerError, "INTERNAL", "internal server error"
	}
}
