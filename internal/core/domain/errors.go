package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrStoreUnavailable indicates the remote asset store is not connected.
	// Recoverable: callers with a lexical fallback degrade instead of failing.
	ErrStoreUnavailable = errors.New("asset store unavailable")

	// ErrStoreProtocol indicates a malformed or unexpected remote response
	ErrStoreProtocol = errors.New("asset store protocol error")

	// ErrEmbeddingUnavailable indicates the embedding provider is not
	// configured or the call failed. Recoverable.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrAssetNotFound indicates the requested asset does not exist locally
	ErrAssetNotFound = errors.New("asset not found")

	// ErrConversationNotFound indicates the conversation does not exist
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrInvalidFileType indicates the declared mime type is not allowed
	ErrInvalidFileType = errors.New("invalid file type")

	// ErrFileTooLarge indicates the upload exceeds the size limit
	ErrFileTooLarge = errors.New("file too large")

	// ErrSearchFailed indicates both the vector and lexical search paths
	// were unusable. The only error search surfaces to callers.
	ErrSearchFailed = errors.New("search failed")

	// ErrRAGFailed indicates a document-processing or chat-pipeline failure
	ErrRAGFailed = errors.New("rag operation failed")

	// ErrChatUnavailable indicates the text-generation service is not configured
	ErrChatUnavailable = errors.New("chat service unavailable")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")
)
