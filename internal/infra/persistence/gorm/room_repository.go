package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/YusufStar/code-craft/internal/domain"
	"github.com/YusufStar/code-craft/internal/repository"
)

// GormRoomRepository is the GORM implementation of RoomRepository.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a GormRoomRepository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

func (r *GormRoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %d: %w", id, err)
	}
	return &room, nil
}

func (r *GormRoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("room_code = ?", code).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by code '%s': %w", code, err)
	}
	return &room, nil
}

// Create inserts the room and the creator's membership in one transaction.
// A join racing the creation either misses the room entirely or sees it with
// its lead already in place.
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room, creator *domain.RoomMember) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		creator.RoomID = room.ID
		return tx.Create(creator).Error
	})
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room (code: %s): %w", room.RoomCode, err)
	}
	return nil
}

func (r *GormRoomRepository) Save(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Save(room).Error
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save room (id: %d, code: %s): %w", room.ID, room.RoomCode, err)
	}
	return nil
}

// Delete removes the room together with its membership rows and editor
// snapshot in one transaction, so a torn-down room leaves nothing behind.
func (r *GormRoomRepository) Delete(ctx context.Context, roomID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&domain.RoomMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&domain.RoomEditor{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Room{}, roomID).Error
	})
	if err != nil {
		return fmt.Errorf("gorm: delete room %d: %w", roomID, err)
	}
	return nil
}

func (r *GormRoomRepository) IsRoomCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("room_code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by code '%s': %w", code, err)
	}
	return count > 0, nil
}

func (r *GormRoomRepository) FindAllByUserID(ctx context.Context, userID uint) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ?", userID).
		Order("rooms.id").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find rooms by user %d: %w", userID, err)
	}
	return rooms, nil
}

func (r *GormRoomRepository) FindInactiveSince(ctx context.Context, cutoff time.Time) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).Where("last_active < ?", cutoff).Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find inactive rooms: %w", err)
	}
	return rooms, nil
}

func (r *GormRoomRepository) ListMembers(ctx context.Context, roomID uint) ([]domain.RoomMember, error) {
	var members []domain.RoomMember
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("id").Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list members of room %d: %w", roomID, err)
	}
	return members, nil
}

func (r *GormRoomRepository) FindMember(ctx context.Context, roomID, userID uint) (*domain.RoomMember, error) {
	var member domain.RoomMember
	err := r.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrMemberNotFound
		}
		return nil, fmt.Errorf("gorm: find member (room %d, user %d): %w", roomID, userID, err)
	}
	return &member, nil
}

func (r *GormRoomRepository) AddMember(ctx context.Context, member *domain.RoomMember) error {
	err := r.db.WithContext(ctx).Create(member).Error
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: add member (room %d, user %d): %w", member.RoomID, member.UserID, err)
	}
	return nil
}

func (r *GormRoomRepository) UpdateMember(ctx context.Context, member *domain.RoomMember) error {
	err := r.db.WithContext(ctx).Save(member).Error
	if err != nil {
		return fmt.Errorf("gorm: update member (room %d, user %d): %w", member.RoomID, member.UserID, err)
	}
	return nil
}

func (r *GormRoomRepository) RemoveMember(ctx context.Context, roomID, userID uint) error {
	result := r.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).Delete(&domain.RoomMember{})
	if result.Error != nil {
		return fmt.Errorf("gorm: remove member (room %d, user %d): %w", roomID, userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrMemberNotFound
	}
	return nil
}

func (r *GormRoomRepository) CountMembers(ctx context.Context, roomID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.RoomMember{}).Where("room_id = ?", roomID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count members of room %d: %w", roomID, err)
	}
	return count, nil
}

// SaveEditorSnapshot upserts on the room_id unique index, so repeated flushes
// of the same room touch a single row.
func (r *GormRoomRepository) SaveEditorSnapshot(ctx context.Context, roomID uint, state domain.EditorState) error {
	editor := domain.RoomEditor{
		RoomID:   roomID,
		Code:     state.Code,
		Language: state.Language,
		Version:  state.Version,
		Output:   state.Output,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "language", "version", "output", "updated_at"}),
	}).Create(&editor).Error
	if err != nil {
		return fmt.Errorf("gorm: save editor snapshot for room %d: %w", roomID, err)
	}
	return nil
}

func (r *GormRoomRepository) LoadEditorSnapshot(ctx context.Context, roomID uint) (*domain.RoomEditor, error) {
	var editor domain.RoomEditor
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&editor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrEditorNotFound
		}
		return nil, fmt.Errorf("gorm: load editor snapshot for room %d: %w", roomID, err)
	}
	return &editor, nil
}
