package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/yeonho-dev/lecture-payments/internal/event"
	"github.com/yeonho-dev/lecture-payments/internal/gateway"
	"github.com/yeonho-dev/lecture-payments/internal/model"
	"github.com/yeonho-dev/lecture-payments/internal/repository"
)

// AdminService exposes the manual overrides operators use when the
// automatic recovery loops cannot make progress on their own.
type AdminService interface {
	ForceRefund(ctx context.Context, failureID uint64) (string, error)
	RetryVerification(ctx context.Context, purchaseID uint64) (string, error)
	ForceCancel(ctx context.Context, purchaseID uint64) (string, error)

	ListRollbackFailures(ctx context.Context, limit, offset int) ([]model.RollbackFailure, error)
	ListCancelFailures(ctx context.Context, limit, offset int) ([]model.CancelFailure, error)
	ListFailedPurchases(ctx context.Context, limit, offset int) ([]model.Purchase, error)
}

type adminService struct {
	purchases        repository.PurchaseRepository
	rollbackFailures repository.RollbackFailureRepository
	cancelFailures   repository.CancelFailureRepository
	gateway          gateway.Client
	bus              event.Bus
}

func NewAdminService(
	purchases repository.PurchaseRepository,
	rollbackFailures repository.RollbackFailureRepository,
	cancelFailures repository.CancelFailureRepository,
	gc gateway.Client,
	bus event.Bus,
) AdminService {
	return &adminService{
		purchases:        purchases,
		rollbackFailures: rollbackFailures,
		cancelFailures:   cancelFailures,
		gateway:          gc,
		bus:              bus,
	}
}

// ForceRefund retries the refund recorded in a rollback failure. The
// failure record is deleted only once the gateway confirms the cancel
// and the ledger write succeeds.
func (s *adminService) ForceRefund(ctx context.Context, failureID uint64) (string, error) {
	failure, err := s.rollbackFailures.FindByID(ctx, failureID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: rollback failure %d", ErrNotFound, failureID)
		}
		return "", err
	}

	p, err := s.purchases.FindByID(ctx, failure.PurchaseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: purchase %d", ErrNotFound, failure.PurchaseID)
		}
		return "", err
	}

	if p.Status == model.PurchaseStatusCanceled || p.Status == model.PurchaseStatusRefunded {
		return fmt.Sprintf("purchase %d already settled (status=%s), nothing to refund", p.ID, p.Status), nil
	}

	if _, err := s.gateway.Cancel(ctx, failure.ChargeUID, failure.Amount); err != nil {
		return "", fmt.Errorf("gateway cancel: %w", err)
	}

	next := *p
	if next.Status != model.PurchaseStatusRollbackRequested {
		next = next.Rollback()
	}
	refunded, err := next.Refund()
	if err != nil {
		return "", err
	}
	if err := s.purchases.Update(ctx, &refunded); err != nil {
		return "", err
	}
	if err := s.rollbackFailures.Delete(ctx, failure.ID); err != nil {
		log.Printf("admin: refund succeeded but deleting rollback failure %d failed: %v", failure.ID, err)
	}
	return fmt.Sprintf("purchase %d refunded, rollback failure %d cleared", p.ID, failure.ID), nil
}

// RetryVerification re-runs the gateway check for a failed purchase and
// reports the outcome synchronously.
func (s *adminService) RetryVerification(ctx context.Context, purchaseID uint64) (string, error) {
	p, err := s.purchases.FindByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: purchase %d", ErrNotFound, purchaseID)
		}
		return "", err
	}
	if p.Status != model.PurchaseStatusFailed {
		return "", fmt.Errorf("%w: retry verification only applies to failed purchases (status=%s)", model.ErrInvalidTransition, p.Status)
	}

	status, err := s.gateway.Verify(ctx, p.ChargeUID)
	if errors.Is(err, gateway.ErrChargeNotFound) {
		refunded, rerr := p.Rollback().Refund()
		if rerr != nil {
			return "", rerr
		}
		if uerr := s.purchases.Update(ctx, &refunded); uerr != nil {
			return "", uerr
		}
		return fmt.Sprintf("charge %s no longer exists upstream, purchase %d marked refunded", p.ChargeUID, p.ID), nil
	}
	if err != nil {
		return "", fmt.Errorf("gateway verify: %w", err)
	}

	if status.Amount == p.PaidAmount {
		verified := p.Verify(p.ChargeUID)
		if err := s.purchases.Update(ctx, &verified); err != nil {
			return "", err
		}
		return fmt.Sprintf("purchase %d verified and completed", p.ID), nil
	}

	rolledBack := p.Rollback()
	if err := s.bus.Publish(ctx, event.TopicRollbackRequest, event.RollbackRequest{
		PurchaseID: p.ID,
		ChargeUID:  p.ChargeUID,
		PaidAmount: p.PaidAmount,
		ProductID:  p.ProductID,
	}); err != nil {
		log.Printf("admin: publishing rollback request for purchase %d failed: %v", p.ID, err)
	}
	if err := s.purchases.Update(ctx, &rolledBack); err != nil {
		return "", err
	}
	return fmt.Sprintf("amount mismatch for purchase %d (expected=%d, actual=%d), rollback requested", p.ID, p.PaidAmount, status.Amount), nil
}

// ForceCancel applies the cancel transition locally without touching the
// gateway. It backs the recovery path for cancels that already settled
// upstream but never reached the ledger.
func (s *adminService) ForceCancel(ctx context.Context, purchaseID uint64) (string, error) {
	p, err := s.purchases.FindByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: purchase %d", ErrNotFound, purchaseID)
		}
		return "", err
	}

	if p.Status == model.PurchaseStatusCanceled || p.Status == model.PurchaseStatusRefunded {
		return fmt.Sprintf("purchase %d already settled (status=%s), nothing to cancel", p.ID, p.Status), nil
	}

	canceled, err := p.Cancel()
	if err != nil {
		return "", err
	}
	if err := s.purchases.Update(ctx, &canceled); err != nil {
		return "", err
	}

	if failure, ferr := s.cancelFailures.FindByPurchaseID(ctx, p.ID); ferr == nil {
		if derr := s.cancelFailures.Delete(ctx, failure.ID); derr != nil {
			log.Printf("admin: deleting cancel failure %d failed: %v", failure.ID, derr)
		}
	} else if !errors.Is(ferr, repository.ErrNotFound) {
		log.Printf("admin: looking up cancel failure for purchase %d failed: %v", p.ID, ferr)
	}
	return fmt.Sprintf("purchase %d canceled", p.ID), nil
}

func (s *adminService) ListRollbackFailures(ctx context.Context, limit, offset int) ([]model.RollbackFailure, error) {
	return s.rollbackFailures.List(ctx, limit, offset)
}

func (s *adminService) ListCancelFailures(ctx context.Context, limit, offset int) ([]model.CancelFailure, error) {
	return s.cancelFailures.List(ctx, limit, offset)
}

func (s *adminService) ListFailedPurchases(ctx context.Context, limit, offset int) ([]model.Purchase, error) {
	return s.purchases.ListByStatusPage(ctx, model.PurchaseStatusFailed, limit, offset)
}
