package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driving"
	"github.com/lodestone-hq/lodestone-core/internal/runtime"
)

// Ensure assetService implements AssetService
var _ driving.AssetService = (*assetService)(nil)

// metadata key recording the remote store id after a successful put
const remoteIDKey = "remote_id"

// AssetConfig bounds the creation pipeline
type AssetConfig struct {
	// MaxFileSize is the upload size limit in bytes
	MaxFileSize int64

	// AllowedMimeTypes whitelists uploads; empty allows everything.
	// A trailing "/*" matches a whole top-level type.
	AllowedMimeTypes []string
}

// DefaultAssetConfig returns the default pipeline bounds
func DefaultAssetConfig() AssetConfig {
	return AssetConfig{
		MaxFileSize: 50 << 20,
	}
}

// assetService implements the asset creation pipeline. Local persistence
// is authoritative; the remote store write is fire-and-log.
type assetService struct {
	repo         driven.AssetRepository
	storeManager driven.StoreManager
	services     *runtime.Services
	cfg          AssetConfig
	logger       *slog.Logger
}

// NewAssetService creates a new AssetService
func NewAssetService(
	repo driven.AssetRepository,
	storeManager driven.StoreManager,
	services *runtime.Services,
	cfg AssetConfig,
	logger *slog.Logger,
) driving.AssetService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultAssetConfig().MaxFileSize
	}
	return &assetService{
		repo:         repo,
		storeManager: storeManager,
		services:     services,
		cfg:          cfg,
		logger:       logger,
	}
}

// Create runs the upload pipeline: validate, hash, best-effort embed,
// persist locally, then best-effort remote store write
func (s *assetService) Create(ctx context.Context, req driving.CreateAssetRequest) (*domain.Asset, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	digest := sha256.Sum256(req.Content)
	now := time.Now().UTC()

	asset := &domain.Asset{
		ID:               domain.NewAssetID(),
		Name:             req.Name,
		Type:             req.Type,
		MimeType:         req.MimeType,
		Size:             int64(len(req.Content)),
		ContentHash:      hex.EncodeToString(digest[:]),
		Tags:             req.Tags,
		Metadata:         req.Metadata,
		ProcessingStatus: domain.ProcessingPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        req.CreatedBy,
	}

	// Best-effort embedding for text content; failure never blocks
	// creation
	if req.GenerateEmbedding && strings.HasPrefix(req.MimeType, "text/") {
		asset.Embedding = s.tryEmbed(ctx, string(req.Content))
	}

	// Local persistence is authoritative and happens first
	if err := s.repo.Create(ctx, asset); err != nil {
		return nil, err
	}

	for _, parent := range req.Parents {
		if err := s.saveLineage(ctx, asset.ID, parent); err != nil {
			s.logger.Warn("lineage edge not recorded", "asset_id", asset.ID, "parent_id", parent.AssetID, "error", err)
		}
	}

	s.putRemote(ctx, asset, req.Content, req.Parents)

	s.logger.Info("asset created", "asset_id", asset.ID, "name", asset.Name, "size", asset.Size)
	return asset, nil
}

func (s *assetService) validate(req driving.CreateAssetRequest) error {
	if req.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if !req.Type.Valid() {
		return fmt.Errorf("%w: unknown asset type %q", domain.ErrInvalidInput, req.Type)
	}
	if !s.mimeAllowed(req.MimeType) {
		return fmt.Errorf("%w: %s", domain.ErrInvalidFileType, req.MimeType)
	}
	if int64(len(req.Content)) > s.cfg.MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrFileTooLarge, len(req.Content), s.cfg.MaxFileSize)
	}
	return nil
}

func (s *assetService) mimeAllowed(mimeType string) bool {
	if len(s.cfg.AllowedMimeTypes) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedMimeTypes {
		if allowed == mimeType {
			return true
		}
		if prefix, ok := strings.CutSuffix(allowed, "/*"); ok && strings.HasPrefix(mimeType, prefix+"/") {
			return true
		}
	}
	return false
}

func (s *assetService) tryEmbed(ctx context.Context, text string) []float32 {
	embeddingService := s.services.EmbeddingService()
	if embeddingService == nil {
		s.logger.Warn("embedding requested but no provider configured")
		return nil
	}
	embedding, err := embeddingService.GenerateEmbedding(ctx, text)
	if err != nil {
		s.logger.Warn("embedding generation failed, creating asset without one", "error", err)
		return nil
	}
	return embedding
}

func (s *assetService) saveLineage(ctx context.Context, childID string, parent domain.ParentEdge) error {
	relType := domain.RelationshipDerived
	if parent.TransformName != "" {
		relType = domain.RelationshipTransformed
	}
	return s.repo.SaveRelationship(ctx, &domain.AssetRelationship{
		ParentID:        parent.AssetID,
		ChildID:         childID,
		Type:            relType,
		TransformName:   parent.TransformName,
		TransformDigest: parent.TransformDigest,
		CreatedAt:       time.Now().UTC(),
	})
}

// putRemote is fire-and-log: a failed remote write leaves the local
// record valid and searchable
func (s *assetService) putRemote(ctx context.Context, asset *domain.Asset, content []byte, parents []domain.ParentEdge) {
	client, err := s.storeManager.Client()
	if err != nil {
		s.logger.Warn("remote store write skipped", "asset_id", asset.ID, "error", err)
		return
	}

	metadata := asset.Metadata.Wire()
	if metadata == nil {
		metadata = domain.StringMap{}
	}
	metadata["asset_id"] = asset.ID
	metadata["name"] = asset.Name
	metadata["mime_type"] = asset.MimeType
	metadata["content_hash"] = asset.ContentHash

	remoteID, err := client.PutAsset(ctx, driven.PutAssetRequest{
		Data:      content,
		Kind:      domain.RemoteKindBlob,
		Embedding: asset.Embedding,
		Metadata:  metadata,
		Parents:   parents,
	})
	if err != nil {
		s.logger.Warn("remote store write failed", "asset_id", asset.ID, "error", err)
		return
	}

	// Remember the remote id so downloads and deletes can reach the bytes
	updated := domain.Metadata{}
	for k, v := range asset.Metadata {
		updated[k] = v
	}
	updated[remoteIDKey] = domain.MetaStringValue(remoteID)
	if _, err := s.repo.Update(ctx, asset.ID, domain.AssetUpdate{Metadata: updated}); err != nil {
		s.logger.Warn("remote id not recorded", "asset_id", asset.ID, "remote_id", remoteID, "error", err)
		return
	}
	asset.Metadata = updated
}

// Get retrieves an asset by ID
func (s *assetService) Get(ctx context.Context, id string) (*domain.Asset, error) {
	return s.repo.Get(ctx, id)
}

// List returns a filtered, paginated asset listing
func (s *assetService) List(ctx context.Context, opts driven.AssetListOptions) (*driving.AssetList, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 20
	}
	if opts.PerPage > 100 {
		opts.PerPage = 100
	}

	assets, total, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &driving.AssetList{
		Assets:  assets,
		Total:   total,
		Page:    opts.Page,
		PerPage: opts.PerPage,
		Pages:   domain.PageCount(total, opts.PerPage),
	}, nil
}

// Update mutates name, metadata and tags only
func (s *assetService) Update(ctx context.Context, id string, update domain.AssetUpdate) (*domain.Asset, error) {
	return s.repo.Update(ctx, id, update)
}

// Delete hard-deletes the local record and best-effort requests remote
// deletion. The local delete is never rolled back.
func (s *assetService) Delete(ctx context.Context, id string) error {
	asset, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if remoteID := asset.Metadata[remoteIDKey].Str(); remoteID != "" {
		if client, err := s.storeManager.Client(); err != nil {
			s.logger.Warn("remote delete skipped", "asset_id", id, "error", err)
		} else if err := client.DeleteAsset(ctx, remoteID); err != nil {
			s.logger.Warn("remote delete failed", "asset_id", id, "remote_id", remoteID, "error", err)
		}
	}

	s.logger.Info("asset deleted", "asset_id", id)
	return nil
}

// Download fetches asset bytes from the remote store
func (s *assetService) Download(ctx context.Context, id string) (*driving.AssetDownload, error) {
	asset, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	remoteID := asset.Metadata[remoteIDKey].Str()
	if remoteID == "" {
		return nil, fmt.Errorf("%w: asset %s has no stored content", domain.ErrAssetNotFound, id)
	}

	client, err := s.storeManager.Client()
	if err != nil {
		return nil, err
	}
	remote, err := client.GetAsset(ctx, remoteID, true)
	if err != nil {
		return nil, err
	}

	return &driving.AssetDownload{
		Content:  remote.Data,
		Name:     asset.Name,
		MimeType: asset.MimeType,
	}, nil
}
