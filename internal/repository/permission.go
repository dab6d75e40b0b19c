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

type PermissionRepository struct {
	pool *pgxpool.Pool
}

func NewPermissionRepository(pool *pgxpool.Pool) *PermissionRepository {
	return &PermissionRepository{pool: pool}
}

// Get возвращает переопределение прав для пары (room, user).
// Если записи нет — PermissionNone без ошибки: отсутствие строки легально.
func (r *PermissionRepository) Get(ctx context.Context, roomID, userID int64) (model.PermissionType, error) {
	defer logger.DeferLogDuration("permission.Get", time.Now())()
	var pt model.PermissionType
	err := r.pool.QueryRow(ctx,
		`SELECT permission_type FROM room_permissions WHERE room_id = $1 AND user_id = $2`,
		roomID, userID,
	).Scan(&pt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PermissionNone, nil
	}
	if err != nil {
		return model.PermissionNone, fmt.Errorf("permissionRepo.Get: %w", err)
	}
	return pt, nil
}

// Upsert создаёт или обновляет переопределение прав.
func (r *PermissionRepository) Upsert(ctx context.Context, roomID, userID int64, pt model.PermissionType) error {
	defer logger.DeferLogDuration("permission.Upsert", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO room_permissions (room_id, user_id, permission_type, granted_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (room_id, user_id) DO UPDATE SET permission_type = EXCLUDED.permission_type`,
		roomID, userID, pt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("permissionRepo.Upsert: %w", err)
	}
	return nil
}

// Revoke удаляет переопределение: пара возвращается к базовым правам роли.
func (r *PermissionRepository) Revoke(ctx context.Context, roomID, userID int64) error {
	defer logger.DeferLogDuration("permission.Revoke", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM room_permissions WHERE room_id = $1 AND user_id = $2`,
		roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("permissionRepo.Revoke: %w", err)
	}
	return nil
}
