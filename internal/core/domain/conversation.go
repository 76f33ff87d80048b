package domain

import "time"

// MessageRole identifies the author of a chat message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Valid reports whether the role is one of the known values
func (r MessageRole) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Conversation is a RAG chat session
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Settings  Metadata  `json:"settings,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by,omitempty"`
}

// ConversationUpdate carries the mutable conversation fields.
// Nil means "leave unchanged".
type ConversationUpdate struct {
	Title    *string  `json:"title,omitempty"`
	Settings Metadata `json:"settings,omitempty"`
}

// Message is a single chat turn within a conversation
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	Metadata       Metadata    `json:"metadata,omitempty"` // model, token usage
	CreatedAt      time.Time   `json:"created_at"`
}

// MessageSource attributes an assistant message to a supporting asset
type MessageSource struct {
	ID         string  `json:"id"`
	MessageID  string  `json:"message_id"`
	AssetID    string  `json:"asset_id"`
	AssetName  string  `json:"asset_name"`
	Relevance  float64 `json:"relevance_score"`
	Snippet    string  `json:"snippet,omitempty"`
	PageNumber int     `json:"page_number,omitempty"`
	ChunkIndex int     `json:"chunk_index,omitempty"`
}

// ChatTurn is the result of one RAG chat exchange
type ChatTurn struct {
	ConversationID   string           `json:"conversation_id"`
	UserMessage      *Message         `json:"user_message"`
	AssistantMessage *Message         `json:"assistant_message"`
	Sources          []*MessageSource `json:"sources,omitempty"`
}

// ChatMessage is the provider-neutral form sent to the text-generation service
type ChatMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}
