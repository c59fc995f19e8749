package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paytrace/installments/internal/models"
	"github.com/paytrace/installments/internal/validation"
)

// ErrNotFound covers both a missing row and a row owned by someone else.
// Callers must not be able to tell the two apart.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a toggle keeps losing races against
// concurrent writers.
var ErrConflict = errors.New("concurrent modification")

// InstallmentService owns all reads and writes of installment plans. Every
// operation is scoped by the owner id it is given.
type InstallmentService struct {
	DB *gorm.DB
}

func NewInstallmentService(db *gorm.DB) *InstallmentService {
	return &InstallmentService{DB: db}
}

// Create persists a validated installment for the owner. Each payment gets a
// fresh public id, unpaid, with no paid date.
func (s *InstallmentService) Create(ownerID uint, in *validation.Installment) (*models.Installment, error) {
	inst := &models.Installment{
		UserID:          ownerID,
		Title:           in.Title,
		Amount:          in.Amount,
		MonthCount:      in.MonthCount,
		StartDate:       in.StartDate,
		MonthlyPayments: buildPayments(in.Payments),
	}
	if err := s.DB.Create(inst).Error; err != nil {
		return nil, err
	}
	return inst, nil
}

// List returns the owner's installments, newest first.
func (s *InstallmentService) List(ownerID uint) ([]models.Installment, error) {
	out := make([]models.Installment, 0)
	err := s.DB.Preload("MonthlyPayments").
		Where("user_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *InstallmentService) Get(ownerID, id uint) (*models.Installment, error) {
	var inst models.Installment
	err := s.DB.Preload("MonthlyPayments").
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&inst).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// Update is a full replace: scalar fields are overwritten and the payment
// rows are rebuilt, which reissues their public ids.
func (s *InstallmentService) Update(ownerID, id uint, in *validation.Installment) (*models.Installment, error) {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var inst models.Installment
		if err := tx.Where("id = ? AND user_id = ?", id, ownerID).First(&inst).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Where("installment_id = ?", inst.ID).Delete(&models.MonthlyPayment{}).Error; err != nil {
			return err
		}
		updates := map[string]any{
			"title":       in.Title,
			"amount":      in.Amount,
			"month_count": in.MonthCount,
			"start_date":  in.StartDate,
		}
		if err := tx.Model(&inst).Updates(updates).Error; err != nil {
			return err
		}
		payments := buildPayments(in.Payments)
		for i := range payments {
			payments[i].InstallmentID = inst.ID
		}
		return tx.Create(&payments).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ownerID, id)
}

// TogglePayment flips the paid flag of one payment and stamps or clears its
// paid date. The write is a compare-and-set on the previous flag so two
// concurrent toggles cannot silently overwrite each other; a loser reloads
// and flips from the fresh state, once.
func (s *InstallmentService) TogglePayment(ownerID, installmentID uint, paymentID string) (*models.MonthlyPayment, error) {
	var p models.MonthlyPayment
	err := s.DB.Joins("JOIN installments ON installments.id = monthly_payments.installment_id").
		Where("monthly_payments.public_id = ? AND installments.id = ? AND installments.user_id = ?",
			paymentID, installmentID, ownerID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		newPaid := !p.Paid
		var paidDate *time.Time
		if newPaid {
			now := time.Now()
			paidDate = &now
		}
		res := s.DB.Model(&models.MonthlyPayment{}).
			Where("id = ? AND paid = ?", p.ID, p.Paid).
			Updates(map[string]any{"paid": newPaid, "paid_date": paidDate})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			p.Paid = newPaid
			p.PaidDate = paidDate
			return &p, nil
		}
		if err := s.DB.First(&p, p.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
	}
	return nil, ErrConflict
}

// PaymentRef addresses one payment inside one installment, as sent by the
// batch toggle endpoint.
type PaymentRef struct {
	InstallmentID uint   `json:"installmentId"`
	PaymentID     string `json:"paymentId"`
}

// ToggleBatch flips every resolvable payment in refs and returns the
// affected installments in first-touched order. Refs that do not resolve
// under this owner are skipped, not errors.
func (s *InstallmentService) ToggleBatch(ownerID uint, refs []PaymentRef) ([]models.Installment, error) {
	seen := map[uint]bool{}
	var order []uint
	for _, ref := range refs {
		if _, err := s.TogglePayment(ownerID, ref.InstallmentID, ref.PaymentID); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !seen[ref.InstallmentID] {
			seen[ref.InstallmentID] = true
			order = append(order, ref.InstallmentID)
		}
	}
	out := make([]models.Installment, 0, len(order))
	for _, id := range order {
		inst, err := s.Get(ownerID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *inst)
	}
	return out, nil
}

// Delete removes the installment and its payments. Payment rows go first:
// the schema's foreign key has no delete cascade.
func (s *InstallmentService) Delete(ownerID, id uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var inst models.Installment
		if err := tx.Select("id").Where("id = ? AND user_id = ?", id, ownerID).First(&inst).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Where("installment_id = ?", inst.ID).Delete(&models.MonthlyPayment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Installment{}, inst.ID).Error
	})
}

func buildPayments(in []validation.Payment) []models.MonthlyPayment {
	out := make([]models.MonthlyPayment, 0, len(in))
	for _, p := range in {
		out = append(out, models.MonthlyPayment{
			PublicID: uuid.NewString(),
			Date:     p.Date,
			Amount:   p.Amount,
		})
	}
	return out
}
