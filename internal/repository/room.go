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

type RoomRepository struct {
	pool *pgxpool.Pool
}

func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

const roomCols = `id, name, COALESCE(description,''), room_type, is_active, max_participants, created_by, created_at, updated_at`

func scanRoom(s interface{ Scan(dest ...any) error }, room *model.Room) error {
	return s.Scan(&room.ID, &room.Name, &room.Description, &room.RoomType, &room.IsActive,
		&room.MaxParticipants, &room.CreatedBy, &room.CreatedAt, &room.UpdatedAt)
}

func (r *RoomRepository) Create(ctx context.Context, room *model.Room) error {
	defer logger.DeferLogDuration("room.Create", time.Now())()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO rooms (name, description, room_type, is_active, max_participants, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id`,
		room.Name, room.Description, room.RoomType, room.IsActive, room.MaxParticipants, room.CreatedBy, room.CreatedAt,
	).Scan(&room.ID)
	if err != nil {
		return fmt.Errorf("roomRepo.Create: %w", err)
	}
	room.UpdatedAt = room.CreatedAt
	return nil
}

// GetActive возвращает только активную комнату; деактивированная для чата
// неотличима от отсутствующей.
func (r *RoomRepository) GetActive(ctx context.Context, id int64) (*model.Room, error) {
	defer logger.DeferLogDuration("room.GetActive", time.Now())()
	room := &model.Room{}
	err := scanRoom(r.pool.QueryRow(ctx,
		`SELECT `+roomCols+` FROM rooms WHERE id = $1 AND is_active = true`, id,
	), room)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("roomRepo.GetActive: %w", err)
	}
	return room, nil
}

// ListForUser returns the caller's active rooms, most recently written-to first
// (updated_at is touched on every message insert).
func (r *RoomRepository) ListForUser(ctx context.Context, userID int64) ([]model.Room, error) {
	defer logger.DeferLogDuration("room.ListForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.name, COALESCE(r.description,''), r.room_type, r.is_active, r.max_participants, r.created_by, r.created_at, r.updated_at
		 FROM rooms r
		 JOIN room_participants rp ON rp.room_id = r.id
		 WHERE rp.user_id = $1 AND r.is_active = true
		 ORDER BY r.updated_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("roomRepo.ListForUser query: %w", err)
	}
	defer rows.Close()

	list := make([]model.Room, 0, 16)
	for rows.Next() {
		var room model.Room
		if err := scanRoom(rows, &room); err != nil {
			return nil, fmt.Errorf("roomRepo.ListForUser scan: %w", err)
		}
		list = append(list, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roomRepo.ListForUser rows: %w", err)
	}
	return list, nil
}

func (r *RoomRepository) Deactivate(ctx context.Context, id int64) error {
	defer logger.DeferLogDuration("room.Deactivate", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE rooms SET is_active = false WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("roomRepo.Deactivate: %w", err)
	}
	return nil
}
