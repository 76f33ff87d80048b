package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driving"
	"github.com/lodestone-hq/lodestone-core/internal/runtime"
)

// Ensure searchService implements SearchService
var _ driving.SearchService = (*searchService)(nil)

const (
	suggestionLimit    = 10
	suggestionCacheTTL = 60 * time.Second

	// lexicalScanLimit bounds how many rows the lexical path ranks in
	// memory. Tier ranking needs the candidate set up front, so the
	// fetch is capped; matches beyond the cap are reachable by
	// narrowing the filter.
	lexicalScanLimit = 10000
)

// searchService implements the hybrid retrieval policy: vector search
// first when the embedding provider and the remote store are both
// usable, lexical matching otherwise. A vector-path failure degrades to
// the lexical path without surfacing to the caller.
type searchService struct {
	assetRepo    driven.AssetRepository
	storeManager driven.StoreManager
	cache        driven.SuggestionCache // optional, may be nil
	services     *runtime.Services      // Dynamic AI services
	logger       *slog.Logger
}

// NewSearchService creates a new SearchService.
// AI services (embedding) are accessed dynamically via runtime.Services.
func NewSearchService(
	assetRepo driven.AssetRepository,
	storeManager driven.StoreManager,
	cache driven.SuggestionCache,
	services *runtime.Services,
	logger *slog.Logger,
) driving.SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &searchService{
		assetRepo:    assetRepo,
		storeManager: storeManager,
		cache:        cache,
		services:     services,
		logger:       logger,
	}
}

// Search runs the hybrid retrieval policy
func (s *searchService) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error) {
	query.Normalize()

	if query.Query != "" && s.services.Config().CanDoSemanticSearch() {
		resp, err := s.vectorPath(ctx, query)
		if err == nil {
			return resp, nil
		}
		// Degrade to lexical matching. Protocol errors are flagged
		// explicitly so a systemic store bug is visible in the logs.
		if errors.Is(err, domain.ErrStoreProtocol) {
			s.logger.Warn("vector search protocol error, falling back to text search", "error", err)
		} else {
			s.logger.Warn("vector search unavailable, falling back to text search", "error", err)
		}
	}

	return s.textPath(ctx, query)
}

// vectorPath embeds the query, asks the remote store for candidates and
// resolves them to local asset records
func (s *searchService) vectorPath(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error) {
	embeddingService := s.services.EmbeddingService()
	if embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	queryEmbedding, err := embeddingService.GenerateEmbedding(ctx, query.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}

	client, err := s.storeManager.Client()
	if err != nil {
		return nil, err
	}

	// Over-fetch so candidates without a local record can be discarded
	// and still fill the page
	k := query.PerPage * 2
	matches, err := client.VectorSearch(ctx, queryEmbedding, k, remoteFilter(query.Filter))
	if err != nil {
		return nil, err
	}

	hits := make([]*domain.SearchHit, 0, len(matches))
	for _, match := range matches {
		localID := match.Metadata["asset_id"]
		if localID == "" {
			localID = match.AssetID
		}
		asset, err := s.assetRepo.Get(ctx, localID)
		if errors.Is(err, domain.ErrAssetNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		hits = append(hits, &domain.SearchHit{
			Asset:         asset,
			Relevance:     float64(match.Score),
			MatchedFields: []string{"embedding"},
		})
	}

	return paginate(hits, query, len(hits)), nil
}

// textPath is the lexical fallback: substring matching over asset name
// and metadata description with deterministic tiered scoring
func (s *searchService) textPath(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error) {
	filter := query.Filter
	if query.Query != "" {
		filter.Search = query.Query
	}

	// Fetch the match set up front so the relevance tiers are computed
	// over the whole candidate set, then paginate locally. The scan is
	// capped at lexicalScanLimit rows; the reported total stays the
	// repository count.
	assets, total, err := s.assetRepo.List(ctx, driven.AssetListOptions{
		Filter:  filter,
		Sort:    query.Sort,
		Order:   query.Order,
		Page:    1,
		PerPage: lexicalScanLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchFailed, err)
	}

	hits := make([]*domain.SearchHit, 0, len(assets))
	for _, asset := range assets {
		hit := &domain.SearchHit{Asset: asset}
		if query.Query != "" {
			hit.Relevance, hit.MatchedFields, hit.Snippet = scoreLexical(asset, query.Query)
		}
		hits = append(hits, hit)
	}

	// Rank by relevance tier; the stable sort keeps the requested sort
	// order within each tier. Pure listings keep the repository order.
	if query.Query != "" {
		sort.SliceStable(hits, func(i, j int) bool {
			return hits[i].Relevance > hits[j].Relevance
		})
	}

	return paginate(hits, query, total), nil
}

// scoreLexical computes the tiered fallback relevance for one asset.
// The score is an ordinal ranking signal, not a semantic measure.
func scoreLexical(asset *domain.Asset, query string) (float64, []string, string) {
	name := strings.ToLower(asset.Name)
	q := strings.ToLower(query)

	switch {
	case name == q:
		return domain.RelevanceExact, []string{"name"}, asset.Name
	case strings.Contains(name, q):
		return domain.RelevanceSubstring, []string{"name"}, asset.Name
	}
	for _, token := range strings.Fields(q) {
		if strings.Contains(name, token) {
			return domain.RelevanceToken, []string{"name"}, asset.Name
		}
	}
	return domain.RelevanceResidual, []string{"metadata.description"}, snippetOf(asset.Metadata.Description())
}

const snippetMax = 160

func snippetOf(text string) string {
	if len(text) <= snippetMax {
		return text
	}
	return text[:snippetMax]
}

// paginate slices ranked hits into the requested page and strips
// embeddings unless the caller asked for them. total may exceed
// len(hits) when the lexical scan was capped.
func paginate(hits []*domain.SearchHit, query domain.SearchQuery, total int) *domain.SearchResponse {
	start, end := domain.PageBounds(query.Page, query.PerPage, len(hits))
	page := hits[start:end]

	if !query.IncludeEmbeddings {
		for _, hit := range page {
			if hit.Asset != nil && hit.Asset.Embedding != nil {
				stripped := *hit.Asset
				stripped.Embedding = nil
				hit.Asset = &stripped
			}
		}
	}

	return &domain.SearchResponse{
		Results: page,
		Total:   total,
		Page:    query.Page,
		PerPage: query.PerPage,
		Pages:   domain.PageCount(total, query.PerPage),
	}
}

// remoteFilter projects the caller filter onto the remote store's
// string-pair metadata filter
func remoteFilter(filter domain.AssetFilter) domain.StringMap {
	m := domain.StringMap{}
	if filter.Type != "" {
		m["type"] = string(filter.Type)
	}
	if filter.MimeType != "" {
		m["mime_type"] = filter.MimeType
	}
	if len(filter.Tags) > 0 {
		m["tags"] = strings.Join(filter.Tags, ",")
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// VectorSearch is the raw remote-search passthrough, no lexical fallback
func (s *searchService) VectorSearch(ctx context.Context, query string, k int, filter domain.StringMap) ([]domain.VectorMatch, error) {
	embeddingService := s.services.EmbeddingService()
	if embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	queryEmbedding, err := embeddingService.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}

	client, err := s.storeManager.Client()
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 10
	}
	return client.VectorSearch(ctx, queryEmbedding, k, filter)
}

// GetSuggestions returns up to 10 asset names containing the query
// substring, served through the cache when one is configured
func (s *searchService) GetSuggestions(ctx context.Context, prefix string) ([]string, error) {
	if prefix == "" {
		return nil, nil
	}

	if s.cache != nil {
		if names, err := s.cache.Get(ctx, prefix); err == nil && names != nil {
			return names, nil
		} else if err != nil {
			s.logger.Warn("suggestion cache read failed", "error", err)
		}
	}

	names, err := s.assetRepo.ListNamesContaining(ctx, prefix, suggestionLimit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, prefix, names, suggestionCacheTTL); err != nil {
			s.logger.Warn("suggestion cache write failed", "error", err)
		}
	}
	return names, nil
}
