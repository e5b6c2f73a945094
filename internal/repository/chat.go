package repository

import (
	"context"

	"classroom_chat/internal/domain"
	"classroom_chat/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatRepository хранит сообщения. Порядок переписки - порядок id (BIGSERIAL)
type ChatRepository interface {
	CreateMessage(ctx context.Context, message *domain.ChatMessage) error
	ListDirect(ctx context.Context, userID, peerID int64) ([]*domain.ChatMessage, error)
	ListGroup(ctx context.Context, groupID int64) ([]*domain.ChatMessage, error)
}

type chatRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewChatRepository(db *pgxpool.Pool, log logger.Logger) ChatRepository {
	return &chatRepository{db: db, log: log}
}

const messageColumns = `id, sender_id, sender_name, content, type, group_id, recipient_id, created_at`

func (r *chatRepository) CreateMessage(ctx context.Context, message *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (sender_id, sender_name, content, type, group_id, recipient_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		message.SenderID, message.SenderName, message.Content, message.Type,
		message.GroupID, message.RecipientID,
	).Scan(&message.ID, &message.Timestamp)

	if err != nil {
		r.log.Error("Failed to create message", "error", err)
		return err
	}

	return nil
}

func (r *chatRepository) ListDirect(ctx context.Context, userID, peerID int64) ([]*domain.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM chat_messages
		WHERE type = 'direct'
		  AND ((sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1))
		ORDER BY id ASC
	`

	rows, err := r.db.Query(ctx, query, userID, peerID)
	if err != nil {
		r.log.Error("Failed to get direct messages", "error", err)
		return nil, err
	}

	return r.scanMessages(rows)
}

func (r *chatRepository) ListGroup(ctx context.Context, groupID int64) ([]*domain.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM chat_messages
		WHERE type = 'group' AND group_id = $1
		ORDER BY id ASC
	`

	rows, err := r.db.Query(ctx, query, groupID)
	if err != nil {
		r.log.Error("Failed to get group messages", "error", err, "group_id", groupID)
		return nil, err
	}

	return r.scanMessages(rows)
}

func (r *chatRepository) scanMessages(rows pgx.Rows) ([]*domain.ChatMessage, error) {
	defer rows.Close()

	messages := []*domain.ChatMessage{}
	for rows.Next() {
		message := &domain.ChatMessage{}
		err := rows.Scan(
			&message.ID, &message.SenderID, &message.SenderName, &message.Content, &message.Type,
			&message.GroupID, &message.RecipientID, &message.Timestamp,
		)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, err
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}
