package model

import "time"

// RollbackFailure records a compensating cancel that the rollback consumer
// could not complete at the gateway. The purchase itself stays in
// rollback_requested; an operator resolves the record via force-refund.
type RollbackFailure struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	PurchaseID uint64    `gorm:"column:purchase_id;index;not null"`
	ChargeUID  string    `gorm:"column:charge_uid;size:64;not null"`
	Amount     int64     `gorm:"column:amount;not null"`
	Reason     string    `gorm:"column:reason;type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (RollbackFailure) TableName() string {
	return "rollback_failures"
}

// CancelFailure records the partial failure where the gateway confirmed a
// cancel but the ledger write afterwards failed. Removed when force-cancel
// reconciles the ledger.
type CancelFailure struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	PurchaseID uint64    `gorm:"column:purchase_id;index;not null"`
	ChargeUID  string    `gorm:"column:charge_uid;size:64;not null"`
	Amount     int64     `gorm:"column:amount;not null"`
	Reason     string    `gorm:"column:reason;type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (CancelFailure) TableName() string {
	return "cancel_failures"
}
