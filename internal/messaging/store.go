package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Conversation is an SMS thread keyed by phone number.
type Conversation struct {
	ID          uuid.UUID
	PhoneNumber string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Message is a single directional SMS in a conversation. Messages are
// append-only and ordered by creation time.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Direction      string
	Body           string
	ProviderSID    string
	CreatedAt      time.Time
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists SMS conversations and messages in Postgres.
type Store struct {
	db DB
}

// NewStore creates a messaging store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// FindOrCreateConversation returns the thread for a phone number, creating
// it on first contact.
func (s *Store) FindOrCreateConversation(ctx context.Context, phone string) (*Conversation, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO sms_conversations (phone_number)
		VALUES ($1)
		ON CONFLICT (phone_number) DO UPDATE SET updated_at = now()
		RETURNING id, phone_number, created_at, updated_at`, phone)
	var c Conversation
	if err := row.Scan(&c.ID, &c.PhoneNumber, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("messaging: find or create conversation: %w", err)
	}
	return &c, nil
}

// AppendMessage persists one message in a thread.
func (s *Store) AppendMessage(ctx context.Context, conversationID uuid.UUID, direction, body, providerSID string) (*Message, error) {
	m := Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Direction:      direction,
		Body:           body,
		ProviderSID:    providerSID,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO sms_messages (id, conversation_id, direction, body, provider_sid)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		m.ID, m.ConversationID, m.Direction, m.Body, nullable(m.ProviderSID))
	if err := row.Scan(&m.CreatedAt); err != nil {
		return nil, fmt.Errorf("messaging: append message: %w", err)
	}
	return &m, nil
}

// ListMessages returns a thread's messages oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, conversation_id, direction, body, COALESCE(provider_sid, ''), created_at
		FROM sms_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
		LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("messaging: list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Direction, &m.Body, &m.ProviderSID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("messaging: scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messaging: iterate messages: %w", err)
	}
	return out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
