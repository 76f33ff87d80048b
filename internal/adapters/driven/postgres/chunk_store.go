package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TextChunkStore = (*ChunkStore)(nil)

// ChunkStore implements driven.TextChunkStore using PostgreSQL
type ChunkStore struct {
	db *DB
}

// NewChunkStore creates a new ChunkStore
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// SaveBatch saves chunks in a transaction
func (s *ChunkStore) SaveBatch(ctx context.Context, chunks []*domain.TextChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO text_chunks (id, asset_id, content, chunk_index, start_char, end_char, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				chunk_index = EXCLUDED.chunk_index,
				start_char = EXCLUDED.start_char,
				end_char = EXCLUDED.end_char,
				embedding = EXCLUDED.embedding
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			embeddingJSON, err := marshalVector(chunk.Embedding)
			if err != nil {
				return err
			}

			_, err = stmt.ExecContext(ctx,
				chunk.ID,
				chunk.AssetID,
				chunk.Content,
				chunk.Index,
				chunk.StartChar,
				chunk.EndChar,
				embeddingJSON,
				chunk.CreatedAt,
			)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// GetByAsset retrieves all chunks for an asset ordered by chunk index
func (s *ChunkStore) GetByAsset(ctx context.Context, assetID string) ([]*domain.TextChunk, error) {
	query := `
		SELECT id, asset_id, content, chunk_index, start_char, end_char, embedding, created_at
		FROM text_chunks
		WHERE asset_id = $1
		ORDER BY chunk_index ASC
	`

	rows, err := s.db.QueryContext(ctx, query, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.TextChunk
	for rows.Next() {
		var chunk domain.TextChunk
		var embeddingJSON []byte
		err := rows.Scan(
			&chunk.ID,
			&chunk.AssetID,
			&chunk.Content,
			&chunk.Index,
			&chunk.StartChar,
			&chunk.EndChar,
			&embeddingJSON,
			&chunk.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if len(embeddingJSON) > 0 {
			if err := json.Unmarshal(embeddingJSON, &chunk.Embedding); err != nil {
				return nil, err
			}
		}

		chunks = append(chunks, &chunk)
	}

	return chunks, rows.Err()
}

// DeleteByAsset removes all chunks for an asset
func (s *ChunkStore) DeleteByAsset(ctx context.Context, assetID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM text_chunks WHERE asset_id = $1`, assetID)
	return err
}
