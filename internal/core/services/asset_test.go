package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven/mocks"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driving"
)

func newAssetService(repo *mocks.MockAssetRepository, manager *mocks.MockStoreManager, embedding *mocks.MockEmbeddingService) driving.AssetService {
	return NewAssetService(repo, manager, createTestServices(embedding), AssetConfig{
		MaxFileSize:      1 << 20,
		AllowedMimeTypes: []string{"text/*", "application/pdf"},
	}, testLogger())
}

func TestCreateAssetPipeline(t *testing.T) {
	repo := mocks.NewMockAssetRepository()
	manager := mocks.NewMockStoreManager()
	embedding := mocks.NewMockEmbeddingService()
	svc := newAssetService(repo, manager, embedding)

	content := []byte("hello content-addressed world")
	asset, err := svc.Create(context.Background(), driving.CreateAssetRequest{
		Name:              "greeting.txt",
		Type:              domain.AssetTypeFile,
		MimeType:          "text/plain",
		Content:           content,
		Tags:              []string{"docs"},
		GenerateEmbedding: true,
		CreatedBy:         "tester",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	digest := sha256.Sum256(content)
	if asset.ContentHash != hex.EncodeToString(digest[:]) {
		t.Errorf("content hash mismatch: %s", asset.ContentHash)
	}
	if asset.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), asset.Size)
	}
	if asset.Embedding == nil {
		t.Error("expected embedding for text content")
	}
	if asset.ProcessingStatus != domain.ProcessingPending {
		t.Errorf("expected pending status, got %s", asset.ProcessingStatus)
	}

	// Persisted locally
	stored, err := repo.Get(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("local record missing: %v", err)
	}
	if stored.ContentHash != asset.ContentHash {
		t.Error("stored hash mismatch")
	}

	// Written remotely with the local id recorded both ways
	if manager.Store.PutCalls != 1 {
		t.Errorf("expected 1 remote put, got %d", manager.Store.PutCalls)
	}
	remoteID := stored.Metadata["remote_id"].Str()
	if remoteID == "" {
		t.Fatal("expected remote id recorded in metadata")
	}
	remote, err := manager.Store.GetAsset(context.Background(), remoteID, true)
	if err != nil {
		t.Fatalf("remote record missing: %v", err)
	}
	if remote.Metadata["asset_id"] != asset.ID {
		t.Error("expected local id in remote metadata")
	}
	if string(remote.Data) != string(content) {
		t.Error("remote bytes mismatch")
	}
}

func TestCreateAssetEmbeddingFailureDoesNotBlock(t *testing.T) {
	repo := mocks.NewMockAssetRepository()
	manager := mocks.NewMockStoreManager()
	embedding := mocks.NewMockEmbeddingService()
	embedding.SetFailWith(context.DeadlineExceeded)
	svc := newAssetService(repo, manager, embedding)

	asset, err := svc.Create(context.Background(), driving.CreateAssetRequest{
		Name:              "degraded.txt",
		Type:              domain.AssetTypeFile,
		MimeType:          "text/plain",
		Content:           []byte("five hundred characters of text, more or less"),
		GenerateEmbedding: true,
	})
	if err != nil {
		t.Fatalf("expected creation despite embedding failure, got %v", err)
	}
	if asset.Embedding != nil {
		t.Error("expected nil embedding after provider failure")
	}
	if asset.IsProcessed {
		t.Error("expected asset not marked processed")
	}
}

func TestCreateAssetRemoteFailureDoesNotBlock(t *testing.T) {
	repo := mocks.NewMockAssetRepository()
	manager := mocks.NewMockStoreManager()
	manager.Store.SetPutError(domain.ErrStoreUnavailable)
	svc := newAssetService(repo, manager, nil)

	asset, err := svc.Create(context.Background(), driving.CreateAssetRequest{
		Name:     "local-only.txt",
		Type:     domain.AssetTypeFile,
		MimeType: "text/plain",
		Content:  []byte("kept locally"),
	})
	if err != nil {
		t.Fatalf("expected creation despite remote failure, got %v", err)
	}

	stored, err := repo.Get(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("local record missing: %v", err)
	}
	if stored.Metadata["remote_id"].Str() != "" {
		t.Error("expected no remote id after failed put")
	}
}

func TestCreateAssetDisconnectedStore(t *testing.T) {
	repo := mocks.NewMockAssetRepository()
	manager := mocks.NewDisconnectedStoreManager()
	svc := NewAssetService(repo, manager, createTestServices(nil), AssetConfig{}, testLogger())

	asset, err := svc.Create(context.Background(), driving.CreateAssetRequest{
		Name:     "offline.txt",
		Type:     domain.AssetTypeFile,
		MimeType: "text/plain",
		Content:  []byte("written while offline"),
	})
	if err != nil {
		t.Fatalf("expected creation while disconnected, got %v", err)
	}
	if _, err := repo.Get(context.Background(), asset.ID); err != nil {
		t.Errorf("local record missing: %v", err)
	}
	if manager.Store.PutCalls != 0 {
		t.Errorf("expected no remote put while disconnected, got %d", manager.Store.PutCalls)
	}
}

func TestCreateAssetValidation(t *testing.T) {
	svc := newAssetService(mocks.NewMockAssetRepository(), mocks.NewMockStoreManager(), nil)

	cases := []struct {
		name    string
		req     driving.CreateAssetRequest
		wantErr error
	}{
		{
			name:    "missing name",
			req:     driving.CreateAssetRequest{Type: domain.AssetTypeFile, MimeType: "text/plain"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "bad type",
			req:     driving.CreateAssetRequest{Name: "x", Type: "blob", MimeType: "text/plain"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "disallowed mime type",
			req:     driving.CreateAssetRequest{Name: "x", Type: domain.AssetTypeFile, MimeType: "application/x-msdownload"},
			wantErr: domain.ErrInvalidFileType,
		},
		{
			name: "too large",
			req: driving.CreateAssetRequest{
				Name: "x", Type: domain.AssetTypeFile, MimeType: "text/plain",
				Content: make([]byte, 2<<20),
			},
			wantErr: domain.ErrFileTooLarge,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.req)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreateAssetWildcardMime(t *testing.T) {
	svc := newAssetService(mocks.NewMockAssetRepository(), mocks.NewMockStoreManager(), nil)

	_, err := svc.Create(context.Background(), driving.CreateAssetRequest{
		Name:     "notes.md",
		Type:     domain.AssetTypeFile,
		MimeType: "text/markdown",
		Content:  []byte("# notes"),
	})
	if err != nil {
		t.Fatalf("expected text/* wildcard to allow text/markdown, got %v", err)
	}
}

func TestCreateAssetLineage(t *testing.T) {
	repo := mocks.NewMockAssetRepository()
	svc := newAssetService(repo, mocks.NewMockStoreManager(), nil)

	parent, err := svc.Create(context.Background(), driving.CreateAssetRequest{
		Name: "source.txt", Type: domain.AssetTypeFile, MimeType: "text/plain", Content: []byte("origin"),
	})
	if err != nil {
		t.Fatalf("parent create failed: %v", err)
	}

	child, err := svc.Create(context.Background(), driving.CreateAssetRequest{
		Name: "derived.txt", Type: domain.AssetTypeFile, MimeType: "text/plain", Content: []byte("derived"),
		Parents: []domain.ParentEdge{{AssetID: parent.ID, TransformName: "summarise", TransformDigest: "v1"}},
	})
	if err != nil {
		t.Fatalf("child create failed: %v", err)
	}

	rels, err := repo.GetRelationships(context.Background(), parent.ID)
	if err != nil {
		t.Fatalf("relationships failed: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("expected 1 lineage edge, got %d", len(rels))
	}
	if rels[0].ChildID != child.ID || rels[0].Type != domain.RelationshipTransformed {
		t.Errorf("unexpected edge: %+v", rels[0])
	}
}

func TestUpdateAssetImmutableFields(t *testing.T) {
	repo := mocks.NewMockAssetRepository()
	svc := newAssetService(repo, mocks.NewMockStoreManager(), nil)

	created, err := svc.Create(context.Background(), driving.CreateAssetRequest{
		Name: "before.txt", Type: domain.AssetTypeFile, MimeType: "text/plain", Content: []byte("immutable core"),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	newName := "after.txt"
	updated, err := svc.Update(context.Background(), created.ID, domain.AssetUpdate{
		Name: &newName,
		Tags: []string{"renamed"},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if updated.Name != newName {
		t.Errorf("expected renamed asset, got %s", updated.Name)
	}
	if updated.ID != created.ID {
		t.Error("id changed on update")
	}
	if updated.ContentHash != created.ContentHash {
		t.Error("content hash changed on update")
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("creation time changed on update")
	}
}

func TestDeleteAssetBestEffortRemote(t *testing.T) {
	repo := mocks.NewMockAssetRepository()
	manager := mocks.NewMockStoreManager()
	svc := newAssetService(repo, manager, nil)

	created, err := svc.Create(context.Background(), driving.CreateAssetRequest{
		Name: "doomed.txt", Type: domain.AssetTypeFile, MimeType: "text/plain", Content: []byte("bytes"),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Remote delete failing must not resurrect the local record
	manager.Store.SetDeleteError(domain.ErrStoreUnavailable)
	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.Get(context.Background(), created.ID); !errors.Is(err, domain.ErrAssetNotFound) {
		t.Errorf("expected local record gone, got %v", err)
	}

	if err := svc.Delete(context.Background(), created.ID); !errors.Is(err, domain.ErrAssetNotFound) {
		t.Errorf("expected not found on repeat delete, got %v", err)
	}
}

func TestDownloadAsset(t *testing.T) {
	repo := mocks.NewMockAssetRepository()
	manager := mocks.NewMockStoreManager()
	svc := newAssetService(repo, manager, nil)

	content := []byte("downloadable bytes")
	created, err := svc.Create(context.Background(), driving.CreateAssetRequest{
		Name: "payload.txt", Type: domain.AssetTypeFile, MimeType: "text/plain", Content: content,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	download, err := svc.Download(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if string(download.Content) != string(content) {
		t.Error("downloaded bytes mismatch")
	}
	if download.Name != "payload.txt" || download.MimeType != "text/plain" {
		t.Errorf("unexpected download metadata: %+v", download)
	}

	// Disconnected store surfaces unavailability
	manager.SetConnected(false)
	if _, err := svc.Download(context.Background(), created.ID); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected store unavailable, got %v", err)
	}
}
