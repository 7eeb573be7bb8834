package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mathtutor/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *model.User) error {
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("create user failed: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByUsername(username string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by username failed: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByID(id uint) (*model.User, error) {
	var user model.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by id failed: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) ListAll() ([]model.User, error) {
	var users []model.User
	if err := r.db.Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users failed: %w", err)
	}
	return users, nil
}

// AppendStudentTurn appends one student utterance to the persisted history.
// Read and write share a transaction so concurrent turns cannot drop lines.
func (r *UserRepository) AppendStudentTurn(id uint, text string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error; err != nil {
			return err
		}
		if user.History == "" {
			user.History = text
		} else {
			user.History += "\n" + text
		}
		return tx.Model(&model.User{}).Where("id = ?", id).
			Update("history", user.History).Error
	})
	if err != nil {
		return fmt.Errorf("append student turn failed: %w", err)
	}
	return nil
}

// SetLevel overwrites level and justification in a single update.
func (r *UserRepository) SetLevel(id uint, level, lydo string) error {
	if !model.ValidLevel(level) {
		level = model.DefaultLevel
	}
	err := r.db.Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"level": level, "lydo": lydo}).Error
	if err != nil {
		return fmt.Errorf("set user level failed: %w", err)
	}
	return nil
}
