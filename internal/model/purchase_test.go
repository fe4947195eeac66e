package model

import (
	"errors"
	"testing"
)

func pending() Purchase {
	reason := "previous failure"
	return Purchase{
		ID:           1,
		UserUID:      "uid-1",
		ProductID:    10,
		MerchantUID:  "merchant-123",
		ChargeUID:    "charge-001",
		ProductPrice: 10000,
		PaidAmount:   10000,
		Status:       PurchaseStatusPending,
		Reason:       &reason,
	}
}

func TestVerify(t *testing.T) {
	for _, from := range []PurchaseStatus{
		PurchaseStatusPending, PurchaseStatusFailed, PurchaseStatusCompleted,
	} {
		p := pending()
		p.Status = from
		got := p.Verify("charge-001")
		if got.Status != PurchaseStatusCompleted {
			t.Fatalf("from %s: status=%s want completed", from, got.Status)
		}
		if !got.Verified {
			t.Fatalf("from %s: verified=false", from)
		}
		if got.Reason != nil {
			t.Fatalf("from %s: reason not cleared", from)
		}
	}
}

func TestCancel(t *testing.T) {
	tests := []struct {
		from    PurchaseStatus
		wantErr bool
	}{
		{PurchaseStatusCompleted, false},
		{PurchaseStatusPending, true},
		{PurchaseStatusFailed, true},
		{PurchaseStatusRollbackRequested, true},
		{PurchaseStatusRefunded, true},
		{PurchaseStatusCanceled, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			p := pending()
			p.Status = tt.from
			got, err := p.Cancel()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("err=%v want ErrInvalidTransition", err)
				}
				if got.Status != tt.from {
					t.Fatalf("status changed on failed transition: %s", got.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if got.Status != PurchaseStatusCanceled {
				t.Fatalf("status=%s want canceled", got.Status)
			}
			if got.Reason != nil {
				t.Fatal("reason not cleared")
			}
		})
	}
}

func TestRefund(t *testing.T) {
	for _, tt := range []struct {
		from    PurchaseStatus
		wantErr bool
	}{
		{PurchaseStatusRollbackRequested, false},
		{PurchaseStatusPending, true},
		{PurchaseStatusCompleted, true},
		{PurchaseStatusFailed, true},
		{PurchaseStatusCanceled, true},
	} {
		p := pending()
		p.Status = tt.from
		got, err := p.Refund()
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("from %s: err=%v want ErrInvalidTransition", tt.from, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if got.Status != PurchaseStatusRefunded || got.Verified || got.Reason != nil {
			t.Fatalf("refund result: status=%s verified=%v reason=%v", got.Status, got.Verified, got.Reason)
		}
	}
}

func TestRollbackThenRefund(t *testing.T) {
	p := pending().Rollback()
	if p.Status != PurchaseStatusRollbackRequested || p.Verified {
		t.Fatalf("rollback result: status=%s verified=%v", p.Status, p.Verified)
	}
	refunded, err := p.Refund()
	if err != nil {
		t.Fatalf("refund after rollback: %v", err)
	}
	if refunded.Status != PurchaseStatusRefunded || refunded.Verified || refunded.Reason != nil {
		t.Fatalf("refund result: status=%s verified=%v reason=%v",
			refunded.Status, refunded.Verified, refunded.Reason)
	}
}

func TestFail(t *testing.T) {
	p := pending().Fail("gateway timeout")
	if p.Status != PurchaseStatusFailed {
		t.Fatalf("status=%s want failed", p.Status)
	}
	if p.Verified {
		t.Fatal("verified should be false")
	}
	if p.Reason == nil || *p.Reason != "gateway timeout" {
		t.Fatalf("reason=%v", p.Reason)
	}
}

func TestPaidAmountNeverChanges(t *testing.T) {
	p := pending()
	steps := []Purchase{
		p.Verify("charge-001"),
		p.Rollback(),
		p.Fail("x"),
	}
	for i, s := range steps {
		if s.PaidAmount != p.PaidAmount {
			t.Fatalf("step %d mutated paid amount: %d", i, s.PaidAmount)
		}
	}
}
