package repository

import (
	"context"
	"errors"
	"time"

	"github.com/medimeet/rtc-backend/internal/domain"
	"github.com/medimeet/rtc-backend/internal/repository/model"
	"gorm.io/gorm"
)

type PostgresRoomRepository struct {
	db *gorm.DB
}

func NewPostgresRoomRepository(db *gorm.DB) *PostgresRoomRepository {
	return &PostgresRoomRepository{db: db}
}

func (r *PostgresRoomRepository) FindRoom(ctx context.Context, joinCode int, password string) (*domain.RoomRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var room model.Room
	err := r.db.WithContext(ctx).
		First(&room, "join_code = ? AND password = ?", joinCode, password).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	return toDomainRecord(&room), nil
}

func (r *PostgresRoomRepository) RecordActivity(ctx context.Context, joinCode int, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("join_code = ?", joinCode).
		Update("last_activity", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func toDomainRecord(room *model.Room) *domain.RoomRecord {
	return &domain.RoomRecord{
		JoinCode:     room.JoinCode,
		RoomName:     room.RoomName,
		Password:     room.Password,
		LastActivity: room.LastActivity.UTC(),
	}
}
