package models

import "time"

// Installment is one plan: a total amount split across MonthCount monthly
// payments. Payments live and die with their installment.
type Installment struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	UserID          uint             `gorm:"not null;index" json:"-"`
	Title           string           `gorm:"not null" json:"title"`
	Amount          float64          `gorm:"not null" json:"amount"`
	MonthCount      int              `gorm:"not null" json:"monthCount"`
	StartDate       time.Time        `gorm:"not null" json:"startDate"`
	MonthlyPayments []MonthlyPayment `gorm:"foreignKey:InstallmentID" json:"monthlyPayments"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// MonthlyPayment has no existence outside its installment. PublicID is the
// stable handle clients use to address a payment for toggling; the numeric
// primary key never leaves the process.
type MonthlyPayment struct {
	ID            uint       `gorm:"primaryKey" json:"-"`
	InstallmentID uint       `gorm:"not null;index" json:"-"`
	PublicID      string     `gorm:"not null;uniqueIndex" json:"id"`
	Date          time.Time  `gorm:"not null" json:"date"`
	Amount        float64    `gorm:"not null" json:"amount"`
	Paid          bool       `gorm:"not null;default:false" json:"paid"`
	PaidDate      *time.Time `json:"paidDate"`
}
