package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/model"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

const messageCols = `m.id, m.room_id, m.sender_id, m.message_type, m.content,
	        COALESCE(m.file_url,''), COALESCE(m.file_name,''), COALESCE(m.file_size,0), COALESCE(m.file_type,''),
	        m.is_edited, m.is_deleted, m.reply_to_message_id, m.created_at, m.updated_at,
	        u.id, u.username, u.role,
	        rm.id, rm.sender_id, ru.username, rm.content`

const messageJoins = ` FROM messages m
	 JOIN users u ON u.id = m.sender_id
	 LEFT JOIN messages rm ON rm.id = m.reply_to_message_id
	 LEFT JOIN users ru ON ru.id = rm.sender_id`

func scanMessage(s interface{ Scan(dest ...any) error }) (*model.Message, error) {
	m := &model.Message{}
	sender := &model.UserPublic{}
	var (
		replyID, replySender *int64
		replyName, replyBody *string
	)
	err := s.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Type, &m.Content,
		&m.FileURL, &m.FileName, &m.FileSize, &m.FileType,
		&m.IsEdited, &m.IsDeleted, &m.ReplyToID, &m.CreatedAt, &m.UpdatedAt,
		&sender.ID, &sender.Username, &sender.Role,
		&replyID, &replySender, &replyName, &replyBody)
	if err != nil {
		return nil, err
	}
	m.Sender = sender
	if replyID != nil {
		preview := &model.ReplyPreview{ID: *replyID}
		if replySender != nil {
			preview.SenderID = *replySender
		}
		if replyName != nil {
			preview.SenderName = *replyName
		}
		if replyBody != nil {
			preview.Content = *replyBody
		}
		m.ReplyTo = preview
	}
	return m, nil
}

// Create вставляет сообщение и в той же транзакции обновляет rooms.updated_at:
// комната не должна подняться в списке без сообщения и наоборот.
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("msgRepo.Create begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO messages (room_id, sender_id, message_type, content, file_url, file_name, file_size, file_type, reply_to_message_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5,''), NULLIF($6,''), NULLIF($7,0), NULLIF($8,''), $9, $10, $10)
		 RETURNING id`,
		m.RoomID, m.SenderID, m.Type, m.Content, m.FileURL, m.FileName, m.FileSize, m.FileType, m.ReplyToID, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("msgRepo.Create insert: %w", err)
	}
	m.UpdatedAt = m.CreatedAt

	if _, err := tx.Exec(ctx,
		`UPDATE rooms SET updated_at = $1 WHERE id = $2`, m.CreatedAt, m.RoomID,
	); err != nil {
		return fmt.Errorf("msgRepo.Create touch room: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("msgRepo.Create commit: %w", err)
	}
	return nil
}

// GetByID returns the message with sender and reply preview attached.
// Deleted messages are returned too: edit/delete authorization and the
// idempotent delete path need them.
func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m, err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageCols+messageJoins+` WHERE m.id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	return m, nil
}

// ListByRoom returns non-deleted messages newest-first (paging order).
// Callers reverse the page to chronological order for delivery.
func (r *MessageRepository) ListByRoom(ctx context.Context, roomID int64, limit, offset int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ListByRoom", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageCols+messageJoins+`
		 WHERE m.room_id = $1 AND m.is_deleted = false
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT $2 OFFSET $3`, roomID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListByRoom query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("msgRepo.ListByRoom scan: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ListByRoom rows: %w", err)
	}
	return messages, nil
}

// UpdateContent edits a message's content and marks it edited.
func (r *MessageRepository) UpdateContent(ctx context.Context, id int64, content string, updatedAt time.Time) error {
	defer logger.DeferLogDuration("msg.UpdateContent", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET content = $1, is_edited = true, updated_at = $2 WHERE id = $3`,
		content, updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.UpdateContent: %w", err)
	}
	return nil
}

// SoftDelete помечает сообщение удалённым; content сохраняется.
// Повторный вызов ничего не меняет (идемпотентность).
func (r *MessageRepository) SoftDelete(ctx context.Context, id int64, deletedAt time.Time) error {
	defer logger.DeferLogDuration("msg.SoftDelete", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET is_deleted = true, updated_at = $1 WHERE id = $2 AND is_deleted = false`,
		deletedAt, id,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.SoftDelete: %w", err)
	}
	return nil
}
