package repository

import (
	"context"
	"time"

	"classroom_chat/internal/domain"
	"classroom_chat/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ReadReceiptRepository interface {
	// MarkRead возвращает только впервые отмеченные сообщения; повторная отметка ничего не меняет
	MarkRead(ctx context.Context, readerID int64, messageIDs []int64, scope domain.ReadScope, readAt time.Time) ([]domain.ReadReceipt, error)
}

type readReceiptRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewReadReceiptRepository(db *pgxpool.Pool, log logger.Logger) ReadReceiptRepository {
	return &readReceiptRepository{db: db, log: log}
}

func (r *readReceiptRepository) MarkRead(ctx context.Context, readerID int64, messageIDs []int64, scope domain.ReadScope, readAt time.Time) ([]domain.ReadReceipt, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	// Отмечаются только сообщения, видимые читателю, и не его собственные
	query := `
		WITH inserted AS (
			INSERT INTO message_reads (message_id, reader_id, read_at)
			SELECT m.id, $1, $3
			FROM chat_messages m
			WHERE m.id = ANY($2)
			  AND m.sender_id <> $1
			  AND (m.recipient_id = $1
			       OR m.group_id IN (SELECT group_id FROM chat_group_members WHERE user_id = $1))
			  AND ($4::bigint IS NULL OR (m.sender_id = $4 AND m.recipient_id = $1))
			  AND ($5::bigint IS NULL OR m.group_id = $5)
			ON CONFLICT (message_id, reader_id) DO NOTHING
			RETURNING message_id, read_at
		)
		SELECT i.message_id, m.sender_id, m.group_id, i.read_at
		FROM inserted i
		JOIN chat_messages m ON m.id = i.message_id
		ORDER BY i.message_id
	`

	rows, err := r.db.Query(ctx, query, readerID, messageIDs, readAt, scope.SenderID, scope.GroupID)
	if err != nil {
		r.log.Error("Failed to mark messages read", "error", err, "reader_id", readerID)
		return nil, err
	}
	defer rows.Close()

	var receipts []domain.ReadReceipt
	for rows.Next() {
		rr := domain.ReadReceipt{ReaderID: readerID}
		if err := rows.Scan(&rr.MessageID, &rr.SenderID, &rr.GroupID, &rr.ReadAt); err != nil {
			r.log.Error("Failed to scan read receipt", "error", err)
			return nil, err
		}
		receipts = append(receipts, rr)
	}

	return receipts, rows.Err()
}
