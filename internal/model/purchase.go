package model

import (
	"errors"
	"fmt"
	"time"
)

type PurchaseStatus string

const (
	PurchaseStatusPending           PurchaseStatus = "pending"
	PurchaseStatusCompleted         PurchaseStatus = "completed"
	PurchaseStatusCanceled          PurchaseStatus = "canceled"
	PurchaseStatusFailed            PurchaseStatus = "failed"
	PurchaseStatusRollbackRequested PurchaseStatus = "rollback_requested"
	PurchaseStatusRefunded          PurchaseStatus = "refunded"
)

// ErrInvalidTransition is returned when a transition is requested from a
// status that does not allow it. Callers must treat it as a programming or
// business-rule violation, never as a retryable upstream failure.
var ErrInvalidTransition = errors.New("invalid_transition")

// Purchase is the ledger record of a single payment. Rows are never
// deleted; canceled and refunded purchases stay as historical record.
type Purchase struct {
	ID            uint64         `gorm:"primaryKey;autoIncrement"`
	UserUID       string         `gorm:"column:user_uid;size:128;index;not null"`
	ProductID     uint64         `gorm:"column:product_id;index;not null"`
	MerchantUID   string         `gorm:"column:merchant_uid;size:64;uniqueIndex;not null"`
	ChargeUID     string         `gorm:"column:charge_uid;size:64;index"`
	ProductPrice  int64          `gorm:"column:product_price;not null"`
	PaidAmount    int64          `gorm:"column:paid_amount;not null"`
	PaymentMethod string         `gorm:"column:payment_method;size:32"`
	Status        PurchaseStatus `gorm:"column:status;size:32;index;not null"`
	Verified      bool           `gorm:"column:verified;not null"`
	Reason        *string        `gorm:"column:reason;type:text"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
}

func (Purchase) TableName() string {
	return "purchases"
}

// Verify marks the purchase as checked against the gateway and records the
// charge reference the gateway confirmed.
func (p Purchase) Verify(chargeUID string) Purchase {
	p.ChargeUID = chargeUID
	p.Status = PurchaseStatusCompleted
	p.Verified = true
	p.Reason = nil
	return p
}

// Cancel is only legal on a completed purchase. Anything else means the
// caller skipped verification and must hear about it.
func (p Purchase) Cancel() (Purchase, error) {
	if p.Status != PurchaseStatusCompleted {
		return p, fmt.Errorf("%w: cannot cancel purchase in status %q", ErrInvalidTransition, p.Status)
	}
	p.Status = PurchaseStatusCanceled
	p.Reason = nil
	return p, nil
}

// Rollback flags the purchase for a compensating cancel at the gateway.
func (p Purchase) Rollback() Purchase {
	p.Status = PurchaseStatusRollbackRequested
	p.Verified = false
	p.Reason = nil
	return p
}

// Refund settles a rollback. Only a purchase awaiting rollback can move
// here; administrative recovery reaches it by rolling back first.
func (p Purchase) Refund() (Purchase, error) {
	if p.Status != PurchaseStatusRollbackRequested {
		return p, fmt.Errorf("%w: cannot refund purchase in status %q", ErrInvalidTransition, p.Status)
	}
	p.Status = PurchaseStatusRefunded
	p.Verified = false
	p.Reason = nil
	return p, nil
}

func (p Purchase) Fail(reason string) Purchase {
	p.Status = PurchaseStatusFailed
	p.Verified = false
	p.Reason = &reason
	return p
}
