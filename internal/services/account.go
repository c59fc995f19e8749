package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/paytrace/installments/internal/models"
)

var (
	ErrUsernameTaken = errors.New("username already exists")
	ErrUserNotFound  = errors.New("user not found")
)

// AccountService owns the credential store: user rows and the cascade that
// removes them.
type AccountService struct {
	DB *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService { return &AccountService{DB: db} }

// Register creates a user with an already-hashed password. Uniqueness is
// decided by the insert itself: when it fails and the username turns out to
// be taken, the caller gets ErrUsernameTaken regardless of who inserted
// first.
func (s *AccountService) Register(username, passwordHash string) (*models.User, error) {
	u := &models.User{Username: username, Password: passwordHash}
	if err := s.DB.Create(u).Error; err != nil {
		var count int64
		if s.DB.Model(&models.User{}).Where("username = ?", username).Count(&count).Error == nil && count > 0 {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return u, nil
}

func (s *AccountService) FindByUsername(username string) (*models.User, error) {
	var u models.User
	if err := s.DB.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *AccountService) FindByID(id uint) (*models.User, error) {
	var u models.User
	if err := s.DB.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Exists is the token-verification hook: a deleted account must invalidate
// every outstanding token.
func (s *AccountService) Exists(ctx context.Context, id uint) bool {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Limit(1).Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// Delete removes the user and everything they own in one transaction.
// Installments and their payments go before the user row so a failure can
// never leave orphaned plans behind.
func (s *AccountService) Delete(id uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var planIDs []uint
		if err := tx.Model(&models.Installment{}).Where("user_id = ?", id).Pluck("id", &planIDs).Error; err != nil {
			return err
		}
		if len(planIDs) > 0 {
			if err := tx.Where("installment_id IN ?", planIDs).Delete(&models.MonthlyPayment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", id).Delete(&models.Installment{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.User{}, id).Error
	})
}
