package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ConversationStore = (*ConversationStore)(nil)

// ConversationStore implements driven.ConversationStore using PostgreSQL
type ConversationStore struct {
	db *DB
}

// NewConversationStore creates a new ConversationStore
func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Create persists a new conversation
func (s *ConversationStore) Create(ctx context.Context, conv *domain.Conversation) error {
	settingsJSON, err := json.Marshal(conv.Settings)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO conversations (id, title, settings, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.db.ExecContext(ctx, query,
		conv.ID,
		conv.Title,
		settingsJSON,
		conv.CreatedAt,
		conv.UpdatedAt,
		NullString(conv.CreatedBy),
	)
	return err
}

// Get retrieves a conversation by ID
func (s *ConversationStore) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	query := `
		SELECT id, title, settings, created_at, updated_at, created_by
		FROM conversations
		WHERE id = $1
	`

	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// List returns conversations matching the optional title search, newest
// first, with the total count
func (s *ConversationStore) List(ctx context.Context, search string, page, perPage int) ([]*domain.Conversation, int, error) {
	where := ""
	var args []any
	if search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		where = " WHERE title ILIKE $1"
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	query := `
		SELECT id, title, settings, created_at, updated_at, created_by
		FROM conversations` + where + `
		ORDER BY updated_at DESC
	` + fmt.Sprintf("LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var convs []*domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, 0, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return convs, total, nil
}

// Update mutates title and settings
func (s *ConversationStore) Update(ctx context.Context, id string, update domain.ConversationUpdate) (*domain.Conversation, error) {
	conv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		conv.Title = *update.Title
	}
	if update.Settings != nil {
		conv.Settings = update.Settings
	}
	conv.UpdatedAt = time.Now().UTC()

	settingsJSON, err := json.Marshal(conv.Settings)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE conversations
		SET title = $2, settings = $3, updated_at = $4
		WHERE id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, id, conv.Title, settingsJSON, conv.UpdatedAt); err != nil {
		return nil, err
	}

	return conv, nil
}

// Delete removes the conversation; messages and sources cascade
func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

// AddMessage appends a message and bumps the conversation's updated_at
func (s *ConversationStore) AddMessage(ctx context.Context, msg *domain.Message) error {
	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return err
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE conversations SET updated_at = $2 WHERE id = $1`,
			msg.ConversationID, msg.CreatedAt,
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrConversationNotFound
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, role, content, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			msg.ID,
			msg.ConversationID,
			string(msg.Role),
			msg.Content,
			metadataJSON,
			msg.CreatedAt,
		)
		return err
	})
}

// GetMessages returns a conversation's messages in creation order. A
// positive limit keeps only the most recent messages.
func (s *ConversationStore) GetMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, metadata, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`
	args := []any{conversationID}

	if limit > 0 {
		// Take the newest rows, then restore creation order
		query = `
			SELECT id, conversation_id, role, content, metadata, created_at
			FROM (
				SELECT id, conversation_id, role, content, metadata, created_at
				FROM messages
				WHERE conversation_id = $1
				ORDER BY created_at DESC
				LIMIT $2
			) recent
			ORDER BY created_at ASC
		`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*domain.Message
	for rows.Next() {
		var msg domain.Message
		var role string
		var metadataJSON []byte
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&role,
			&msg.Content,
			&metadataJSON,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		msg.Role = domain.MessageRole(role)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &msg.Metadata); err != nil {
				return nil, err
			}
		}

		msgs = append(msgs, &msg)
	}

	return msgs, rows.Err()
}

// AddSources records source attributions for an assistant message
func (s *ConversationStore) AddSources(ctx context.Context, sources []*domain.MessageSource) error {
	if len(sources) == 0 {
		return nil
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO message_sources (id, message_id, asset_id, asset_name, relevance_score, snippet, page_number, chunk_index)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, src := range sources {
			if src.ID == "" {
				src.ID = uuid.NewString()
			}
			_, err := stmt.ExecContext(ctx,
				src.ID,
				src.MessageID,
				src.AssetID,
				src.AssetName,
				src.Relevance,
				src.Snippet,
				src.PageNumber,
				src.ChunkIndex,
			)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var conv domain.Conversation
	var settingsJSON []byte
	var createdBy sql.NullString

	err := row.Scan(
		&conv.ID,
		&conv.Title,
		&settingsJSON,
		&conv.CreatedAt,
		&conv.UpdatedAt,
		&createdBy,
	)
	if err != nil {
		return nil, err
	}
	conv.CreatedBy = StringValue(createdBy)

	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &conv.Settings); err != nil {
			return nil, err
		}
	}

	return &conv, nil
}
