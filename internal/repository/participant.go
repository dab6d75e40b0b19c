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

var (
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyJoined = errors.New("already joined")
)

type ParticipantRepository struct {
	pool *pgxpool.Pool
}

func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// Join вставляет строку участника, атомарно проверяя вместимость комнаты.
// Строка комнаты блокируется (FOR UPDATE), чтобы параллельные join не
// переполнили комнату: проверка и вставка — одна транзакция.
func (r *ParticipantRepository) Join(ctx context.Context, roomID, userID int64, role model.ParticipantRole) error {
	defer logger.DeferLogDuration("participant.Join", time.Now())()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("participantRepo.Join begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var maxParticipants int
	err = tx.QueryRow(ctx,
		`SELECT max_participants FROM rooms WHERE id = $1 AND is_active = true FOR UPDATE`,
		roomID,
	).Scan(&maxParticipants)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("participantRepo.Join lock room: %w", err)
	}

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM room_participants WHERE room_id = $1 AND user_id = $2)`,
		roomID, userID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("participantRepo.Join check: %w", err)
	}
	if exists {
		return ErrAlreadyJoined
	}

	var count int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM room_participants WHERE room_id = $1`, roomID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("participantRepo.Join count: %w", err)
	}
	if count >= maxParticipants {
		return ErrRoomFull
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`INSERT INTO room_participants (room_id, user_id, role, is_online, joined_at, last_seen)
		 VALUES ($1, $2, $3, true, $4, $4)`,
		roomID, userID, role, now,
	)
	if err != nil {
		return fmt.Errorf("participantRepo.Join insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("participantRepo.Join commit: %w", err)
	}
	return nil
}

func (r *ParticipantRepository) Get(ctx context.Context, roomID, userID int64) (*model.Participant, error) {
	defer logger.DeferLogDuration("participant.Get", time.Now())()
	p := &model.Participant{}
	err := r.pool.QueryRow(ctx,
		`SELECT room_id, user_id, role, is_online, joined_at, last_seen
		 FROM room_participants WHERE room_id = $1 AND user_id = $2`,
		roomID, userID,
	).Scan(&p.RoomID, &p.UserID, &p.Role, &p.IsOnline, &p.JoinedAt, &p.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("participantRepo.Get: %w", err)
	}
	return p, nil
}

// ListByRoom returns the roster in join order, with public user fields attached.
func (r *ParticipantRepository) ListByRoom(ctx context.Context, roomID int64) ([]model.Participant, error) {
	defer logger.DeferLogDuration("participant.ListByRoom", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT rp.room_id, rp.user_id, rp.role, rp.is_online, rp.joined_at, rp.last_seen,
		        u.id, u.username, u.role
		 FROM room_participants rp
		 JOIN users u ON u.id = rp.user_id
		 WHERE rp.room_id = $1
		 ORDER BY rp.joined_at, rp.user_id`, roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("participantRepo.ListByRoom query: %w", err)
	}
	defer rows.Close()

	list := make([]model.Participant, 0, 8)
	for rows.Next() {
		var p model.Participant
		u := &model.UserPublic{}
		if err := rows.Scan(&p.RoomID, &p.UserID, &p.Role, &p.IsOnline, &p.JoinedAt, &p.LastSeen,
			&u.ID, &u.Username, &u.Role); err != nil {
			return nil, fmt.Errorf("participantRepo.ListByRoom scan: %w", err)
		}
		p.User = u
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("participantRepo.ListByRoom rows: %w", err)
	}
	return list, nil
}

func (r *ParticipantRepository) Remove(ctx context.Context, roomID, userID int64) error {
	defer logger.DeferLogDuration("participant.Remove", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM room_participants WHERE room_id = $1 AND user_id = $2`,
		roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("participantRepo.Remove: %w", err)
	}
	return nil
}

// SetOnline обновляет присутствие в одной комнате; last_seen обновляется всегда.
func (r *ParticipantRepository) SetOnline(ctx context.Context, roomID, userID int64, online bool) error {
	defer logger.DeferLogDuration("participant.SetOnline", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE room_participants SET is_online = $1, last_seen = $2 WHERE room_id = $3 AND user_id = $4`,
		online, time.Now().UTC(), roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("participantRepo.SetOnline: %w", err)
	}
	return nil
}

// SetAllOffline снимает флаг присутствия во всех комнатах пользователя.
// Вызывается при разрыве соединения: одно соединение — одна сессия пользователя.
func (r *ParticipantRepository) SetAllOffline(ctx context.Context, userID int64) error {
	defer logger.DeferLogDuration("participant.SetAllOffline", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE room_participants SET is_online = false, last_seen = $1 WHERE user_id = $2 AND is_online = true`,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("participantRepo.SetAllOffline: %w", err)
	}
	return nil
}

// ResetAllOnline сбрасывает присутствие всех участников (вызывается на старте:
// после рестарта сервера активных соединений нет).
func (r *ParticipantRepository) ResetAllOnline(ctx context.Context) error {
	defer logger.DeferLogDuration("participant.ResetAllOnline", time.Now())()
	_, err := r.pool.Exec(ctx, `UPDATE room_participants SET is_online = false WHERE is_online = true`)
	if err != nil {
		return fmt.Errorf("participantRepo.ResetAllOnline: %w", err)
	}
	return nil
}
