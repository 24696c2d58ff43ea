package registry

import (
	"context"

	"github.com/SentimentalK/Avalon-Tunnel/model"
	"gorm.io/gorm"
)

type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	Create(ctx context.Context, user *model.User) error
	FirstByUUID(ctx context.Context, uuid string) (*model.User, error)
	Find(ctx context.Context, enabledOnly bool) ([]*model.User, error)
	Updates(ctx context.Context, uuid string, columns map[string]interface{}) (int64, error)
	Delete(ctx context.Context, uuid string) (int64, error)
	MaxPortIndex(ctx context.Context) (uint, bool, error)
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return NewUserRepository(tx)
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FirstByUUID(ctx context.Context, uuid string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Find(ctx context.Context, enabledOnly bool) ([]*model.User, error) {
	var users []*model.User
	query := r.db.WithContext(ctx).Order("port_index ASC")
	if enabledOnly {
		query = query.Where("enabled = ?", true)
	}
	err := query.Find(&users).Error
	return users, err
}

func (r *userRepository) Updates(ctx context.Context, uuid string, columns map[string]interface{}) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.User{}).Where("uuid = ?", uuid).Updates(columns)
	return ret.RowsAffected, ret.Error
}

func (r *userRepository) Delete(ctx context.Context, uuid string) (int64, error) {
	ret := r.db.WithContext(ctx).Where("uuid = ?", uuid).Delete(&model.User{})
	return ret.RowsAffected, ret.Error
}

// MaxPortIndex reports the highest assigned listener slot. The second return
// value is false when no users exist yet.
func (r *userRepository) MaxPortIndex(ctx context.Context) (uint, bool, error) {
	var max *uint
	err := r.db.WithContext(ctx).Model(&model.User{}).Select("MAX(port_index)").Scan(&max).Error
	if err != nil {
		return 0, false, err
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db}
}
