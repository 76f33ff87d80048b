package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driving"
	"github.com/lodestone-hq/lodestone-core/internal/runtime"
)

// Ensure ragService implements RAGService
var _ driving.RAGService = (*ragService)(nil)

const (
	chunkTransformName = "text_chunker"

	// metadata key recording which chunker configuration produced the
	// stored chunks
	chunkDigestMetaKey = "chunk_transform_digest"
)

// RAGConfig bounds document processing and chat prompt assembly
type RAGConfig struct {
	ChunkSize    int // characters per chunk
	ChunkOverlap int // overlapping characters between consecutive chunks
	HistoryLimit int // conversation messages included in the prompt
	ContextLimit int // retrieved assets included in the prompt
	Temperature  float64
	MaxTokens    int
}

// DefaultRAGConfig returns the default processing bounds
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		HistoryLimit: 10,
		ContextLimit: 5,
		Temperature:  0.3,
		MaxTokens:    1024,
	}
}

// ragService grounds chat replies in retrieved asset content and turns
// asset text into embedded chunks for retrieval
type ragService struct {
	assetSvc   driving.AssetService
	searchSvc  driving.SearchService
	assetRepo  driven.AssetRepository
	chunkStore driven.TextChunkStore
	convStore  driven.ConversationStore
	services   *runtime.Services
	cfg        RAGConfig
	logger     *slog.Logger
}

// NewRAGService creates a new RAGService
func NewRAGService(
	assetSvc driving.AssetService,
	searchSvc driving.SearchService,
	assetRepo driven.AssetRepository,
	chunkStore driven.TextChunkStore,
	convStore driven.ConversationStore,
	services *runtime.Services,
	cfg RAGConfig,
	logger *slog.Logger,
) driving.RAGService {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultRAGConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaults.ChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = defaults.ChunkOverlap
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaults.HistoryLimit
	}
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = defaults.ContextLimit
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	return &ragService{
		assetSvc:   assetSvc,
		searchSvc:  searchSvc,
		assetRepo:  assetRepo,
		chunkStore: chunkStore,
		convStore:  convStore,
		services:   services,
		cfg:        cfg,
		logger:     logger,
	}
}

// ProcessDocument chunks an asset's text, embeds the chunks best-effort
// and stores them for retrieval
func (s *ragService) ProcessDocument(ctx context.Context, req driving.ProcessDocumentRequest) (*driving.ProcessDocumentResult, error) {
	asset, err := s.assetRepo.Get(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}

	if asset.IsProcessed && !req.ForceReprocess {
		existing, err := s.chunkStore.GetByAsset(ctx, asset.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRAGFailed, err)
		}
		return &driving.ProcessDocumentResult{
			ProcessingID:  uuid.NewString(),
			Status:        "skipped",
			ChunksCreated: len(existing),
		}, nil
	}

	if !strings.HasPrefix(asset.MimeType, "text/") {
		return nil, fmt.Errorf("%w: cannot process %s content", domain.ErrRAGFailed, asset.MimeType)
	}

	if err := s.assetRepo.SetProcessingState(ctx, asset.ID, false, domain.ProcessingRunning); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRAGFailed, err)
	}

	result, err := s.process(ctx, asset, req)
	if err != nil {
		if stateErr := s.assetRepo.SetProcessingState(ctx, asset.ID, false, domain.ProcessingFailed); stateErr != nil {
			s.logger.Warn("failed to mark processing failure", "asset_id", asset.ID, "error", stateErr)
		}
		return nil, err
	}
	return result, nil
}

func (s *ragService) process(ctx context.Context, asset *domain.Asset, req driving.ProcessDocumentRequest) (*driving.ProcessDocumentResult, error) {
	download, err := s.assetSvc.Download(ctx, asset.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching content: %v", domain.ErrRAGFailed, err)
	}
	text := string(download.Content)

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = s.cfg.ChunkSize
	}
	overlap := req.ChunkOverlap
	if overlap < 0 || overlap >= chunkSize {
		overlap = s.cfg.ChunkOverlap
		if overlap >= chunkSize {
			overlap = 0
		}
	}

	spans := chunkText(text, chunkSize, overlap)
	now := time.Now().UTC()
	chunks := make([]*domain.TextChunk, len(spans))
	texts := make([]string, len(spans))
	for i, span := range spans {
		chunks[i] = &domain.TextChunk{
			ID:        uuid.NewString(),
			AssetID:   asset.ID,
			Content:   span.content,
			Index:     i,
			StartChar: span.start,
			EndChar:   span.end,
			CreatedAt: now,
		}
		texts[i] = span.content
	}

	// Best-effort embeddings: chunks remain retrievable lexically
	if embeddingService := s.services.EmbeddingService(); embeddingService != nil && len(texts) > 0 {
		embeddings, err := embeddingService.GenerateEmbeddingsBatch(ctx, texts)
		if err != nil {
			s.logger.Warn("chunk embedding failed, storing without vectors", "asset_id", asset.ID, "error", err)
		} else {
			for i := range chunks {
				chunks[i].Embedding = embeddings[i]
			}
		}
	}

	// Reprocessing replaces prior chunks
	if err := s.chunkStore.DeleteByAsset(ctx, asset.ID); err != nil {
		return nil, fmt.Errorf("%w: clearing chunks: %v", domain.ErrRAGFailed, err)
	}
	if len(chunks) > 0 {
		if err := s.chunkStore.SaveBatch(ctx, chunks); err != nil {
			return nil, fmt.Errorf("%w: saving chunks: %v", domain.ErrRAGFailed, err)
		}
	}

	// Record the chunker configuration on the asset itself. Chunks are
	// not assets, so there is no child identity for a lineage edge; the
	// digest in metadata is what makes a replay with identical
	// parameters detectable.
	meta := domain.Metadata{}
	for k, v := range asset.Metadata {
		meta[k] = v
	}
	meta[chunkDigestMetaKey] = domain.MetaStringValue(chunkDigest(chunkSize, overlap))
	if _, err := s.assetRepo.Update(ctx, asset.ID, domain.AssetUpdate{Metadata: meta}); err != nil {
		s.logger.Warn("chunker digest not recorded", "asset_id", asset.ID, "error", err)
	}

	if err := s.assetRepo.SetProcessingState(ctx, asset.ID, true, domain.ProcessingCompleted); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRAGFailed, err)
	}

	s.logger.Info("document processed", "asset_id", asset.ID, "chunks", len(chunks))
	return &driving.ProcessDocumentResult{
		ProcessingID:  uuid.NewString(),
		Status:        "completed",
		ChunksCreated: len(chunks),
	}, nil
}

type chunkSpan struct {
	content    string
	start, end int
}

// chunkText slices text into contiguous spans of at most size characters
// with the given overlap between consecutive spans. Offsets are half-open
// byte positions into the original text.
func chunkText(text string, size, overlap int) []chunkSpan {
	if text == "" {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}

	var spans []chunkSpan
	for start := 0; start < len(text); start += step {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		spans = append(spans, chunkSpan{content: text[start:end], start: start, end: end})
		if end == len(text) {
			break
		}
	}
	return spans
}

func chunkDigest(size, overlap int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:size=%d:overlap=%d", chunkTransformName, size, overlap)))
	return hex.EncodeToString(sum[:8])
}

// Chat answers a query grounded in retrieved context, persisting the
// exchange on the conversation
func (s *ragService) Chat(ctx context.Context, query string, conversationID string, contextAssets []string) (*domain.ChatTurn, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	chatService := s.services.ChatService()
	if chatService == nil {
		return nil, domain.ErrChatUnavailable
	}

	conv, err := s.resolveConversation(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}

	sources, contextBlocks := s.retrieveContext(ctx, query, contextAssets)

	history, err := s.convStore.GetMessages(ctx, conv.ID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: loading history: %v", domain.ErrRAGFailed, err)
	}

	messages := buildPrompt(contextBlocks, history, query)
	reply, err := chatService.Complete(ctx, messages, driven.ChatOptions{
		Model:       chatService.Model(),
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: completion: %v", domain.ErrRAGFailed, err)
	}

	now := time.Now().UTC()
	userMsg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        query,
		CreatedAt:      now,
	}
	assistantMsg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        reply,
		Metadata:       domain.Metadata{"model": domain.MetaStringValue(chatService.Model())},
		CreatedAt:      now.Add(time.Millisecond),
	}

	if err := s.convStore.AddMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("%w: persisting user message: %v", domain.ErrRAGFailed, err)
	}
	if err := s.convStore.AddMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("%w: persisting assistant message: %v", domain.ErrRAGFailed, err)
	}

	for _, src := range sources {
		src.MessageID = assistantMsg.ID
	}
	if len(sources) > 0 {
		if err := s.convStore.AddSources(ctx, sources); err != nil {
			s.logger.Warn("source attributions not recorded", "message_id", assistantMsg.ID, "error", err)
		}
	}

	return &domain.ChatTurn{
		ConversationID:   conv.ID,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Sources:          sources,
	}, nil
}

// resolveConversation loads the conversation, or starts one titled from
// the query when no id is given
func (s *ragService) resolveConversation(ctx context.Context, query, conversationID string) (*domain.Conversation, error) {
	if conversationID != "" {
		return s.convStore.Get(ctx, conversationID)
	}

	title := query
	if len(title) > 60 {
		title = title[:60]
	}
	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.convStore.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("%w: creating conversation: %v", domain.ErrRAGFailed, err)
	}
	return conv, nil
}

// retrieveContext gathers grounding text, either from the named assets or
// via hybrid search. Retrieval failure degrades to an ungrounded reply.
func (s *ragService) retrieveContext(ctx context.Context, query string, contextAssets []string) ([]*domain.MessageSource, []string) {
	var sources []*domain.MessageSource
	var blocks []string

	appendAsset := func(asset *domain.Asset, relevance float64) {
		text, chunkIndex := s.bestChunk(ctx, asset)
		if text == "" {
			return
		}
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", asset.Name, text))
		sources = append(sources, &domain.MessageSource{
			ID:         uuid.NewString(),
			AssetID:    asset.ID,
			AssetName:  asset.Name,
			Relevance:  relevance,
			Snippet:    snippetOf(text),
			ChunkIndex: chunkIndex,
		})
	}

	if len(contextAssets) > 0 {
		for _, id := range contextAssets {
			asset, err := s.assetRepo.Get(ctx, id)
			if err != nil {
				s.logger.Warn("context asset not found", "asset_id", id, "error", err)
				continue
			}
			appendAsset(asset, 1.0)
		}
		return sources, blocks
	}

	resp, err := s.searchSvc.Search(ctx, domain.SearchQuery{
		Query:   query,
		Page:    1,
		PerPage: s.cfg.ContextLimit,
	})
	if err != nil {
		s.logger.Warn("context retrieval failed, replying ungrounded", "error", err)
		return nil, nil
	}
	for _, hit := range resp.Results {
		appendAsset(hit.Asset, hit.Relevance)
	}
	return sources, blocks
}

// bestChunk returns the first stored chunk of the asset, falling back to
// the metadata description for unprocessed assets
func (s *ragService) bestChunk(ctx context.Context, asset *domain.Asset) (string, int) {
	chunks, err := s.chunkStore.GetByAsset(ctx, asset.ID)
	if err == nil && len(chunks) > 0 {
		return chunks[0].Content, chunks[0].Index
	}
	return asset.Metadata.Description(), 0
}

const systemPrompt = "You are a helpful assistant. Answer using the provided context. " +
	"If the context does not contain the answer, say so instead of guessing."

// buildPrompt assembles the grounded message sequence: system context,
// bounded history, then the user query
func buildPrompt(contextBlocks []string, history []*domain.Message, query string) []domain.ChatMessage {
	system := systemPrompt
	if len(contextBlocks) > 0 {
		system += "\n\nContext:\n" + strings.Join(contextBlocks, "\n---\n")
	}

	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: system})
	for _, msg := range history {
		messages = append(messages, domain.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: query})
	return messages
}
