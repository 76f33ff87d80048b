package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.AssetRepository = (*AssetRepository)(nil)

// assetColumns is the canonical select list shared by every asset query
const assetColumns = `id, name, type, mime_type, size, content_hash, embedding, tags, metadata, is_processed, processing_status, created_at, updated_at, created_by`

// sortColumns whitelists the columns a caller may sort by. Anything else
// falls back to created_at.
var sortColumns = map[string]string{
	"name":       "name",
	"size":       "size",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// AssetRepository implements driven.AssetRepository using PostgreSQL
type AssetRepository struct {
	db *DB
}

// NewAssetRepository creates a new AssetRepository
func NewAssetRepository(db *DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create persists a new asset record
func (r *AssetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	embeddingJSON, err := marshalVector(asset.Embedding)
	if err != nil {
		return err
	}
	metadataJSON, err := json.Marshal(asset.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO assets (` + assetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(ctx, query,
		asset.ID,
		asset.Name,
		string(asset.Type),
		NullString(asset.MimeType),
		asset.Size,
		asset.ContentHash,
		embeddingJSON,
		pq.Array(asset.Tags),
		metadataJSON,
		asset.IsProcessed,
		string(asset.ProcessingStatus),
		asset.CreatedAt,
		asset.UpdatedAt,
		NullString(asset.CreatedBy),
	)
	return err
}

// Get retrieves an asset by ID
func (r *AssetRepository) Get(ctx context.Context, id string) (*domain.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`

	asset, err := scanAsset(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrAssetNotFound
	}
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// List returns a filtered, sorted page of assets and the total count
func (r *AssetRepository) List(ctx context.Context, opts driven.AssetListOptions) ([]*domain.Asset, int, error) {
	where, args := buildAssetFilter(opts.Filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM assets` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[opts.Sort]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if opts.Order == domain.SortAsc {
		direction = "ASC"
	}

	query := `SELECT ` + assetColumns + ` FROM assets` + where +
		fmt.Sprintf(" ORDER BY %s %s", column, direction)

	// PerPage <= 0 means the caller wants the full result set
	if opts.PerPage > 0 {
		page := opts.Page
		if page < 1 {
			page = 1
		}
		args = append(args, opts.PerPage, (page-1)*opts.PerPage)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	assets, err := scanAssets(rows)
	if err != nil {
		return nil, 0, err
	}
	return assets, total, nil
}

// Update mutates name, metadata and tags only; all other fields are
// write-once
func (r *AssetRepository) Update(ctx context.Context, id string, update domain.AssetUpdate) (*domain.Asset, error) {
	asset, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
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

	metadataJSON, err := json.Marshal(asset.Metadata)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE assets
		SET name = $2, metadata = $3, tags = $4, updated_at = $5
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, asset.Name, metadataJSON, pq.Array(asset.Tags), asset.UpdatedAt); err != nil {
		return nil, err
	}

	return asset, nil
}

// Delete removes the local record
func (r *AssetRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrAssetNotFound
	}
	return nil
}

// SetProcessingState updates the processing flags after document processing
func (r *AssetRepository) SetProcessingState(ctx context.Context, id string, processed bool, status domain.ProcessingStatus) error {
	query := `
		UPDATE assets
		SET is_processed = $2, processing_status = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, processed, string(status), time.Now().UTC())
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrAssetNotFound
	}
	return nil
}

// ListNamesContaining returns up to limit asset names containing the
// substring, oldest first
func (r *AssetRepository) ListNamesContaining(ctx context.Context, substr string, limit int) ([]string, error) {
	query := `
		SELECT name FROM assets
		WHERE name LIKE $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, "%"+escapeLike(substr)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SaveRelationship upserts a lineage edge. Replays of the same
// (parent, transform name, transform digest) triple are absorbed by the
// unique constraint.
func (r *AssetRepository) SaveRelationship(ctx context.Context, rel *domain.AssetRelationship) error {
	if rel.ParentID == rel.ChildID {
		return fmt.Errorf("%w: lineage edge parent and child must differ", domain.ErrInvalidInput)
	}
	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO asset_relationships (id, parent_id, child_id, relationship_type, transform_name, transform_digest, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (parent_id, transform_name, transform_digest) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		rel.ID,
		rel.ParentID,
		rel.ChildID,
		string(rel.Type),
		rel.TransformName,
		rel.TransformDigest,
		rel.CreatedAt,
	)
	return err
}

// GetRelationships returns the lineage edges where the asset is the parent
func (r *AssetRepository) GetRelationships(ctx context.Context, parentID string) ([]*domain.AssetRelationship, error) {
	query := `
		SELECT id, parent_id, child_id, relationship_type, transform_name, transform_digest, created_at
		FROM asset_relationships
		WHERE parent_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []*domain.AssetRelationship
	for rows.Next() {
		var rel domain.AssetRelationship
		var relType string
		err := rows.Scan(
			&rel.ID,
			&rel.ParentID,
			&rel.ChildID,
			&relType,
			&rel.TransformName,
			&rel.TransformDigest,
			&rel.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		rel.Type = domain.RelationshipType(relType)
		rels = append(rels, &rel)
	}
	return rels, rows.Err()
}

// buildAssetFilter renders an AssetFilter as a WHERE clause and its
// positional arguments
func buildAssetFilter(f domain.AssetFilter) (string, []any) {
	var conds []string
	var args []any

	if f.Type != "" {
		args = append(args, string(f.Type))
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.MimeType != "" {
		args = append(args, f.MimeType)
		conds = append(conds, fmt.Sprintf("mime_type = $%d", len(args)))
	}
	if len(f.Tags) > 0 {
		args = append(args, pq.Array(f.Tags))
		conds = append(conds, fmt.Sprintf("tags @> $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR COALESCE(metadata->>'description', '') ILIKE $%d)", n, n))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// escapeLike neutralises LIKE metacharacters in user-supplied substrings
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

// rowScanner generalises over sql.Row and sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*domain.Asset, error) {
	var asset domain.Asset
	var assetType, status string
	var mimeType, createdBy sql.NullString
	var embeddingJSON, metadataJSON []byte
	var tags pq.StringArray

	err := row.Scan(
		&asset.ID,
		&asset.Name,
		&assetType,
		&mimeType,
		&asset.Size,
		&asset.ContentHash,
		&embeddingJSON,
		&tags,
		&metadataJSON,
		&asset.IsProcessed,
		&status,
		&asset.CreatedAt,
		&asset.UpdatedAt,
		&createdBy,
	)
	if err != nil {
		return nil, err
	}

	asset.Type = domain.AssetType(assetType)
	asset.ProcessingStatus = domain.ProcessingStatus(status)
	asset.Tags = []string(tags)
	asset.MimeType = StringValue(mimeType)
	asset.CreatedBy = StringValue(createdBy)

	if len(embeddingJSON) > 0 {
		if err := json.Unmarshal(embeddingJSON, &asset.Embedding); err != nil {
			return nil, err
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &asset.Metadata); err != nil {
			return nil, err
		}
	}

	return &asset, nil
}

func scanAssets(rows *sql.Rows) ([]*domain.Asset, error) {
	var assets []*domain.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// marshalVector renders an embedding as JSON, or nil for the empty vector
func marshalVector(v []float32) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}
