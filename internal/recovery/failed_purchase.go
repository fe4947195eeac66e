package recovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yeonho-dev/lecture-payments/internal/event"
	"github.com/yeonho-dev/lecture-payments/internal/gateway"
	"github.com/yeonho-dev/lecture-payments/internal/model"
	"github.com/yeonho-dev/lecture-payments/internal/repository"
)

// FailedPurchaseLoop periodically re-verifies every failed purchase
// directly against the gateway, bypassing the event bus. It is the
// self-healing path for purchases whose verification hit a transient
// outage or whose result event was lost.
type FailedPurchaseLoop struct {
	purchases repository.PurchaseRepository
	gateway   gateway.Client
	bus       event.Bus
	interval  time.Duration
}

func NewFailedPurchaseLoop(purchases repository.PurchaseRepository, gc gateway.Client, bus event.Bus, interval time.Duration) *FailedPurchaseLoop {
	return &FailedPurchaseLoop{purchases: purchases, gateway: gc, bus: bus, interval: interval}
}

func (l *FailedPurchaseLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	log.Printf("recovery: failed-purchase loop started interval=%s", l.interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("recovery: failed-purchase loop stopped")
			return
		case <-ticker.C:
			l.runOnce(ctx)
		}
	}
}

func (l *FailedPurchaseLoop) runOnce(ctx context.Context) {
	failed, err := l.purchases.ListByStatus(ctx, model.PurchaseStatusFailed)
	if err != nil {
		log.Printf("recovery: listing failed purchases failed err=%v", err)
		return
	}

	for _, p := range failed {
		if err := l.retryVerification(ctx, p); err != nil {
			// One purchase must not block the rest of the cycle.
			log.Printf("recovery: retry failed purchaseId=%d err=%v", p.ID, err)
		}
	}
}

func (l *FailedPurchaseLoop) retryVerification(ctx context.Context, p model.Purchase) error {
	status, err := l.gateway.Verify(ctx, p.ChargeUID)
	switch {
	case errors.Is(err, gateway.ErrChargeNotFound):
		// The charge no longer exists upstream: already compensated there,
		// so settle the ledger side as refunded.
		rolled := p.Rollback()
		refunded, rerr := rolled.Refund()
		if rerr != nil {
			return rerr
		}
		log.Printf("recovery: charge gone upstream, refunding purchaseId=%d", p.ID)
		return l.purchases.Update(ctx, &refunded)

	case err != nil:
		failed := p.Fail(fmt.Sprintf("verification retry: gateway error: %v", err))
		if uerr := l.purchases.Update(ctx, &failed); uerr != nil {
			return uerr
		}
		return err

	case status.Amount == p.PaidAmount:
		verified := p.Verify(p.ChargeUID)
		log.Printf("recovery: re-verification succeeded purchaseId=%d", p.ID)
		return l.purchases.Update(ctx, &verified)

	default:
		reason := fmt.Sprintf("%s (expected=%d, actual=%d)", event.ReasonAmountMismatch, p.PaidAmount, status.Amount)
		log.Printf("recovery: re-verification mismatch purchaseId=%d %s", p.ID, reason)
		rolled := p.Rollback()
		msg := event.RollbackRequest{
			PurchaseID: rolled.ID,
			ChargeUID:  rolled.ChargeUID,
			PaidAmount: rolled.PaidAmount,
			ProductID:  rolled.ProductID,
		}
		if perr := l.bus.Publish(ctx, event.TopicRollbackRequest, msg); perr != nil {
			log.Printf("recovery: publishing rollback request failed purchaseId=%d err=%v", p.ID, perr)
		}
		return l.purchases.Update(ctx, &rolled)
	}
}
