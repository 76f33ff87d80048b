package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
)

// MockAssetRepository is an in-memory implementation of AssetRepository
// for testing
type MockAssetRepository struct {
	mu            sync.RWMutex
	assets        map[string]*domain.Asset
	relationships []*domain.AssetRelationship
	order         []string // insertion order of asset IDs

	failMu       sync.Mutex
	failNext     error
	lastListOpts driven.AssetListOptions
}

// NewMockAssetRepository creates a new MockAssetRepository
func NewMockAssetRepository() *MockAssetRepository {
	return &MockAssetRepository{
		assets: make(map[string]*domain.Asset),
	}
}

// SetFailNext makes the next call fail with the given error
func (m *MockAssetRepository) SetFailNext(err error) {
	m.failMu.Lock()
	defer m.failMu.Unlock()
	m.failNext = err
}

// LastListOptions returns the options of the most recent List call
func (m *MockAssetRepository) LastListOptions() driven.AssetListOptions {
	m.failMu.Lock()
	defer m.failMu.Unlock()
	return m.lastListOpts
}

func (m *MockAssetRepository) takeFailure() error {
	m.failMu.Lock()
	defer m.failMu.Unlock()
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *MockAssetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	cp := *asset
	m.assets[asset.ID] = &cp
	m.order = append(m.order, asset.ID)
	return nil
}

func (m *MockAssetRepository) Get(ctx context.Context, id string) (*domain.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	asset, ok := m.assets[id]
	if !ok {
		return nil, domain.ErrAssetNotFound
	}
	cp := *asset
	return &cp, nil
}

func (m *MockAssetRepository) List(ctx context.Context, opts driven.AssetListOptions) ([]*domain.Asset, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.takeFailure(); err != nil {
		return nil, 0, err
	}

	m.failMu.Lock()
	m.lastListOpts = opts
	m.failMu.Unlock()

	var matched []*domain.Asset
	for _, id := range m.order {
		asset := m.assets[id]
		if matchesFilter(asset, opts.Filter) {
			matched = append(matched, asset)
		}
	}

	sortAssets(matched, opts.Sort, opts.Order)

	total := len(matched)
	start, end := 0, total
	if opts.PerPage > 0 {
		start, end = domain.PageBounds(opts.Page, opts.PerPage, total)
	}
	page := make([]*domain.Asset, 0, end-start)
	for _, a := range matched[start:end] {
		cp := *a
		page = append(page, &cp)
	}
	return page, total, nil
}

func matchesFilter(asset *domain.Asset, f domain.AssetFilter) bool {
	if f.Type != "" && asset.Type != f.Type {
		return false
	}
	if f.MimeType != "" && asset.MimeType != f.MimeType {
		return false
	}
	for _, tag := range f.Tags {
		if !asset.HasTag(tag) {
			return false
		}
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		name := strings.ToLower(asset.Name)
		desc := strings.ToLower(asset.Metadata.Description())
		if !strings.Contains(name, needle) && !strings.Contains(desc, needle) {
			return false
		}
	}
	return true
}

func sortAssets(assets []*domain.Asset, field string, order domain.SortOrder) {
	less := func(a, b *domain.Asset) bool {
		switch field {
		case "name":
			return a.Name < b.Name
		case "size":
			return a.Size < b.Size
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(assets, func(i, j int) bool {
		if order == domain.SortAsc {
			return less(assets[i], assets[j])
		}
		return less(assets[j], assets[i])
	})
}

func (m *MockAssetRepository) Update(ctx context.Context, id string, update domain.AssetUpdate) (*domain.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	asset, ok := m.assets[id]
	if !ok {
		return nil, domain.ErrAssetNotFound
	}
	if update.Name != nil {
		asset.Name = *update.Name
	}
	if update.Metadata != nil {
		asset.Metadata = update.Metadata
	}
	if update.Tags != nil {
		asset.Tags = update.Tags
	}
	asset.UpdatedAt = time.Now().UTC()
	cp := *asset
	return &cp, nil
}

func (m *MockAssetRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[id]; !ok {
		return domain.ErrAssetNotFound
	}
	delete(m.assets, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockAssetRepository) SetProcessingState(ctx context.Context, id string, processed bool, status domain.ProcessingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	asset, ok := m.assets[id]
	if !ok {
		return domain.ErrAssetNotFound
	}
	asset.IsProcessed = processed
	asset.ProcessingStatus = status
	asset.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockAssetRepository) ListNamesContaining(ctx context.Context, substr string, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	var names []string
	for _, id := range m.order {
		if len(names) >= limit {
			break
		}
		if strings.Contains(m.assets[id].Name, substr) {
			names = append(names, m.assets[id].Name)
		}
	}
	return names, nil
}

func (m *MockAssetRepository) SaveRelationship(ctx context.Context, rel *domain.AssetRelationship) error {
	if rel.ParentID == rel.ChildID {
		return fmt.Errorf("%w: lineage edge parent and child must differ", domain.ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.relationships {
		if existing.ParentID == rel.ParentID &&
			existing.TransformName == rel.TransformName &&
			existing.TransformDigest == rel.TransformDigest {
			return nil
		}
	}
	cp := *rel
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	m.relationships = append(m.relationships, &cp)
	return nil
}

func (m *MockAssetRepository) GetRelationships(ctx context.Context, parentID string) ([]*domain.AssetRelationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var rels []*domain.AssetRelationship
	for _, rel := range m.relationships {
		if rel.ParentID == parentID {
			cp := *rel
			rels = append(rels, &cp)
		}
	}
	return rels, nil
}
