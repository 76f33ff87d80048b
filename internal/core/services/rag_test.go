package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven/mocks"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driving"
	"github.com/lodestone-hq/lodestone-core/internal/runtime"
)

type ragFixture struct {
	repo       *mocks.MockAssetRepository
	manager    *mocks.MockStoreManager
	chunkStore *mocks.MockTextChunkStore
	convStore  *mocks.MockConversationStore
	embedding  *mocks.MockEmbeddingService
	chat       *mocks.MockChatService
	services   *runtime.Services
	assetSvc   driving.AssetService
	rag        driving.RAGService
}

func newRAGFixture(t *testing.T) *ragFixture {
	t.Helper()
	f := &ragFixture{
		repo:       mocks.NewMockAssetRepository(),
		manager:    mocks.NewMockStoreManager(),
		chunkStore: mocks.NewMockTextChunkStore(),
		convStore:  mocks.NewMockConversationStore(),
		embedding:  mocks.NewMockEmbeddingService(),
		chat:       mocks.NewMockChatService(),
	}
	f.services = createTestServices(f.embedding)
	f.services.SetChatService(f.chat)
	f.assetSvc = NewAssetService(f.repo, f.manager, f.services, AssetConfig{}, testLogger())
	searchSvc := NewSearchService(f.repo, f.manager, nil, f.services, testLogger())
	f.rag = NewRAGService(f.assetSvc, searchSvc, f.repo, f.chunkStore, f.convStore, f.services, RAGConfig{}, testLogger())
	return f
}

func (f *ragFixture) createTextAsset(t *testing.T, name, text string) *domain.Asset {
	t.Helper()
	asset, err := f.assetSvc.Create(context.Background(), driving.CreateAssetRequest{
		Name:     name,
		Type:     domain.AssetTypeFile,
		MimeType: "text/plain",
		Content:  []byte(text),
	})
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	return asset
}

func TestProcessDocument(t *testing.T) {
	f := newRAGFixture(t)
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 60)
	asset := f.createTextAsset(t, "corpus.txt", text)

	result, err := f.rag.ProcessDocument(context.Background(), driving.ProcessDocumentRequest{
		AssetID:      asset.ID,
		ChunkSize:    500,
		ChunkOverlap: 100,
	})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.Status != "completed" {
		t.Errorf("expected completed, got %s", result.Status)
	}
	if result.ChunksCreated < 2 {
		t.Fatalf("expected multiple chunks, got %d", result.ChunksCreated)
	}

	chunks, err := f.chunkStore.GetByAsset(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("chunks: %v", err)
	}
	if len(chunks) != result.ChunksCreated {
		t.Fatalf("stored %d chunks, reported %d", len(chunks), result.ChunksCreated)
	}

	// Offsets are contiguous with the configured overlap
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d: index %d", i, chunk.Index)
		}
		if chunk.Content != text[chunk.StartChar:chunk.EndChar] {
			t.Errorf("chunk %d: content does not match offsets", i)
		}
		if i > 0 {
			wantStart := chunks[i-1].EndChar - 100
			if chunks[i-1].EndChar != len(text) && chunk.StartChar != wantStart {
				t.Errorf("chunk %d: start %d, want %d", i, chunk.StartChar, wantStart)
			}
		}
		if chunk.Embedding == nil {
			t.Errorf("chunk %d: expected embedding", i)
		}
	}
	if chunks[len(chunks)-1].EndChar != len(text) {
		t.Error("final chunk does not reach end of text")
	}

	// Asset marked processed
	stored, _ := f.repo.Get(context.Background(), asset.ID)
	if !stored.IsProcessed || stored.ProcessingStatus != domain.ProcessingCompleted {
		t.Errorf("expected processed asset, got %v/%s", stored.IsProcessed, stored.ProcessingStatus)
	}

	// The chunker digest is recorded in asset metadata and is stable on
	// reprocess with identical parameters
	digest := stored.Metadata["chunk_transform_digest"].Str()
	if digest == "" {
		t.Fatal("expected chunker digest in asset metadata")
	}
	_, err = f.rag.ProcessDocument(context.Background(), driving.ProcessDocumentRequest{
		AssetID: asset.ID, ChunkSize: 500, ChunkOverlap: 100, ForceReprocess: true,
	})
	if err != nil {
		t.Fatalf("reprocess failed: %v", err)
	}
	stored, _ = f.repo.Get(context.Background(), asset.ID)
	if got := stored.Metadata["chunk_transform_digest"].Str(); got != digest {
		t.Errorf("digest changed on identical reprocess: %s != %s", got, digest)
	}
}

func TestProcessDocumentCreatesNoLineageEdge(t *testing.T) {
	f := newRAGFixture(t)
	asset := f.createTextAsset(t, "notes.txt", strings.Repeat("alpha beta gamma. ", 40))

	if _, err := f.rag.ProcessDocument(context.Background(), driving.ProcessDocumentRequest{
		AssetID: asset.ID,
	}); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	// Chunking derives no new asset, so the asset must not become its
	// own parent
	rels, err := f.repo.GetRelationships(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("relationships: %v", err)
	}
	for _, rel := range rels {
		if rel.ParentID == rel.ChildID {
			t.Fatalf("self-referential lineage edge persisted: %s -> %s", rel.ParentID, rel.ChildID)
		}
	}
	if len(rels) != 0 {
		t.Errorf("expected no lineage edges from processing, got %d", len(rels))
	}
}

func TestProcessDocumentSkipsProcessed(t *testing.T) {
	f := newRAGFixture(t)
	asset := f.createTextAsset(t, "once.txt", strings.Repeat("content ", 100))

	if _, err := f.rag.ProcessDocument(context.Background(), driving.ProcessDocumentRequest{AssetID: asset.ID}); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	result, err := f.rag.ProcessDocument(context.Background(), driving.ProcessDocumentRequest{AssetID: asset.ID})
	if err != nil {
		t.Fatalf("second process failed: %v", err)
	}
	if result.Status != "skipped" {
		t.Errorf("expected skipped, got %s", result.Status)
	}
}

func TestProcessDocumentNonText(t *testing.T) {
	f := newRAGFixture(t)
	asset, err := f.assetSvc.Create(context.Background(), driving.CreateAssetRequest{
		Name: "image.png", Type: domain.AssetTypeFile, MimeType: "image/png", Content: []byte{0x89, 0x50},
	})
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}

	_, err = f.rag.ProcessDocument(context.Background(), driving.ProcessDocumentRequest{AssetID: asset.ID})
	if !errors.Is(err, domain.ErrRAGFailed) {
		t.Fatalf("expected RAG error for non-text asset, got %v", err)
	}

	stored, _ := f.repo.Get(context.Background(), asset.ID)
	if stored.IsProcessed {
		t.Error("expected asset not marked processed")
	}
}

func TestProcessDocumentMissingAsset(t *testing.T) {
	f := newRAGFixture(t)
	_, err := f.rag.ProcessDocument(context.Background(), driving.ProcessDocumentRequest{AssetID: "ghost"})
	if !errors.Is(err, domain.ErrAssetNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProcessDocumentEmbeddingFailure(t *testing.T) {
	f := newRAGFixture(t)
	asset := f.createTextAsset(t, "offline.txt", strings.Repeat("words ", 300))

	f.embedding.SetFailWith(context.DeadlineExceeded)
	result, err := f.rag.ProcessDocument(context.Background(), driving.ProcessDocumentRequest{AssetID: asset.ID})
	if err != nil {
		t.Fatalf("expected processing despite embedding failure, got %v", err)
	}
	if result.Status != "completed" {
		t.Errorf("expected completed, got %s", result.Status)
	}

	chunks, _ := f.chunkStore.GetByAsset(context.Background(), asset.ID)
	for i, chunk := range chunks {
		if chunk.Embedding != nil {
			t.Errorf("chunk %d: expected no embedding", i)
		}
	}
}

func TestChunkText(t *testing.T) {
	spans := chunkText("0123456789", 4, 1)
	want := []chunkSpan{
		{content: "0123", start: 0, end: 4},
		{content: "3456", start: 3, end: 7},
		{content: "6789", start: 6, end: 10},
	}
	if len(spans) != len(want) {
		t.Fatalf("expected %d spans, got %d", len(want), len(spans))
	}
	for i := range want {
		if spans[i] != want[i] {
			t.Errorf("span %d: got %+v, want %+v", i, spans[i], want[i])
		}
	}

	if spans := chunkText("", 4, 1); spans != nil {
		t.Errorf("expected no spans for empty text, got %v", spans)
	}

	// Text shorter than a chunk yields a single full span
	spans = chunkText("ab", 4, 1)
	if len(spans) != 1 || spans[0].content != "ab" {
		t.Errorf("unexpected spans: %+v", spans)
	}
}

func TestChatGroundedTurn(t *testing.T) {
	f := newRAGFixture(t)
	asset := f.createTextAsset(t, "handbook", "Employees get 25 days of annual leave.")
	if _, err := f.rag.ProcessDocument(context.Background(), driving.ProcessDocumentRequest{AssetID: asset.ID}); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	f.chat.SetReply("You get 25 days.")
	turn, err := f.rag.Chat(context.Background(), "how much annual leave do I get from the handbook", "", nil)
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}

	if turn.ConversationID == "" {
		t.Fatal("expected auto-created conversation")
	}
	if turn.UserMessage.Role != domain.RoleUser || turn.AssistantMessage.Role != domain.RoleAssistant {
		t.Error("unexpected message roles")
	}
	if turn.AssistantMessage.Content != "You get 25 days." {
		t.Errorf("unexpected reply: %s", turn.AssistantMessage.Content)
	}

	// Both messages persisted on the conversation
	msgs, _ := f.convStore.GetMessages(context.Background(), turn.ConversationID, 0)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(msgs))
	}

	// The grounding context reached the model
	if len(f.chat.LastMessages) == 0 || f.chat.LastMessages[0].Role != domain.RoleSystem {
		t.Fatal("expected system message first")
	}
	if !strings.Contains(f.chat.LastMessages[0].Content, "annual leave") {
		t.Error("expected retrieved context in the system prompt")
	}

	// Sources recorded against the assistant message
	if len(turn.Sources) == 0 {
		t.Fatal("expected source attributions")
	}
	if turn.Sources[0].AssetID != asset.ID || turn.Sources[0].MessageID != turn.AssistantMessage.ID {
		t.Errorf("unexpected source: %+v", turn.Sources[0])
	}
	if recorded := f.convStore.SourcesFor(turn.AssistantMessage.ID); len(recorded) == 0 {
		t.Error("expected sources persisted")
	}
}

func TestChatHistoryBounded(t *testing.T) {
	f := newRAGFixture(t)

	conv := &domain.Conversation{ID: "conv-1", Title: "long chat", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := f.convStore.Create(context.Background(), conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	for i := 0; i < 15; i++ {
		msg := &domain.Message{
			ID:             fmt.Sprintf("m-%02d", i),
			ConversationID: conv.ID,
			Role:           domain.RoleUser,
			Content:        fmt.Sprintf("message %d", i),
			CreatedAt:      time.Now(),
		}
		if err := f.convStore.AddMessage(context.Background(), msg); err != nil {
			t.Fatalf("add message: %v", err)
		}
	}

	if _, err := f.rag.Chat(context.Background(), "follow-up question", conv.ID, nil); err != nil {
		t.Fatalf("chat failed: %v", err)
	}

	// system + last 10 history + new user query
	if len(f.chat.LastMessages) != 12 {
		t.Fatalf("expected 12 prompt messages, got %d", len(f.chat.LastMessages))
	}
	// The oldest messages are dropped
	if !strings.Contains(f.chat.LastMessages[1].Content, "message 5") {
		t.Errorf("expected history to start at message 5, got %q", f.chat.LastMessages[1].Content)
	}
}

func TestChatContextAssetsPinned(t *testing.T) {
	f := newRAGFixture(t)
	pinned := f.createTextAsset(t, "pinned-doc", "Pinned context body.")
	f.createTextAsset(t, "other-doc", "Unrelated body.")
	if _, err := f.rag.ProcessDocument(context.Background(), driving.ProcessDocumentRequest{AssetID: pinned.ID}); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	turn, err := f.rag.Chat(context.Background(), "summarise", "", []string{pinned.ID})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if len(turn.Sources) != 1 || turn.Sources[0].AssetID != pinned.ID {
		t.Errorf("expected pinned asset as the only source, got %+v", turn.Sources)
	}
}

func TestChatUnavailable(t *testing.T) {
	f := newRAGFixture(t)
	f.services.SetChatService(nil)

	_, err := f.rag.Chat(context.Background(), "hello", "", nil)
	if !errors.Is(err, domain.ErrChatUnavailable) {
		t.Fatalf("expected chat unavailable, got %v", err)
	}
}

func TestChatUnknownConversation(t *testing.T) {
	f := newRAGFixture(t)
	_, err := f.rag.Chat(context.Background(), "hello", "no-such-conversation", nil)
	if !errors.Is(err, domain.ErrConversationNotFound) {
		t.Fatalf("expected conversation not found, got %v", err)
	}
}
