package recovery

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/yeonho-dev/lecture-payments/internal/catalog"
	"github.com/yeonho-dev/lecture-payments/internal/event"
	"github.com/yeonho-dev/lecture-payments/internal/gateway"
	"github.com/yeonho-dev/lecture-payments/internal/model"
	"github.com/yeonho-dev/lecture-payments/internal/repository"
)

// Ingestor turns a gateway-reported charge into a ledger row. Both the
// missing-payment loop and the webhook endpoint funnel through it, so a
// charge always lands in the ledger the same way no matter which safety
// net caught it first.
type Ingestor struct {
	purchases repository.PurchaseRepository
	catalog   catalog.Client
	bus       event.Bus
}

func NewIngestor(purchases repository.PurchaseRepository, cat catalog.Client, bus event.Bus) *Ingestor {
	return &Ingestor{purchases: purchases, catalog: cat, bus: bus}
}

// IngestCharge records a charge that has no local purchase yet. Idempotent
// on the charge reference: a known charge is a no-op. Charges missing
// correlation data or carrying a non-positive amount are logged and
// dropped; the gateway contract is fire-and-forget.
func (i *Ingestor) IngestCharge(ctx context.Context, rec gateway.PaymentRecord) error {
	exists, err := i.purchases.ExistsByChargeUID(ctx, rec.ChargeUID)
	if err != nil {
		return fmt.Errorf("check charge existence: %w", err)
	}
	if exists {
		log.Printf("recovery: charge already recorded chargeUid=%s", rec.ChargeUID)
		return nil
	}

	userUID := rec.Custom["user_uid"]
	productStr := rec.Custom["product_id"]
	if userUID == "" || productStr == "" {
		log.Printf("recovery: dropping charge without correlation data chargeUid=%s", rec.ChargeUID)
		return nil
	}
	productID, err := strconv.ParseUint(productStr, 10, 64)
	if err != nil {
		log.Printf("recovery: dropping charge with bad product id chargeUid=%s productId=%q", rec.ChargeUID, productStr)
		return nil
	}
	if rec.Amount <= 0 {
		log.Printf("recovery: dropping charge with non-positive amount chargeUid=%s amount=%d", rec.ChargeUID, rec.Amount)
		return nil
	}

	info, err := i.catalog.Info(ctx, productID)
	if err != nil {
		return fmt.Errorf("resolve product price: %w", err)
	}
	if info.Price <= 0 {
		log.Printf("recovery: dropping charge, no catalog price chargeUid=%s productId=%d", rec.ChargeUID, productID)
		return nil
	}

	p := model.Purchase{
		UserUID:       userUID,
		ProductID:     productID,
		MerchantUID:   rec.MerchantUID,
		ChargeUID:     rec.ChargeUID,
		ProductPrice:  info.Price,
		PaidAmount:    rec.Amount,
		PaymentMethod: rec.Method,
	}
	if rec.Amount == info.Price {
		p.Status = model.PurchaseStatusCompleted
		p.Verified = true
	} else {
		reason := fmt.Sprintf("%s (expected=%d, actual=%d)", event.ReasonAmountMismatch, info.Price, rec.Amount)
		p.Status = model.PurchaseStatusRollbackRequested
		p.Reason = &reason
	}

	if err := i.purchases.Create(ctx, &p); err != nil {
		return fmt.Errorf("insert recovered purchase: %w", err)
	}
	log.Printf("recovery: recorded charge chargeUid=%s status=%s", p.ChargeUID, p.Status)

	if p.Status == model.PurchaseStatusRollbackRequested {
		msg := event.RollbackRequest{
			PurchaseID: p.ID,
			ChargeUID:  p.ChargeUID,
			PaidAmount: p.PaidAmount,
			ProductID:  p.ProductID,
		}
		if err := i.bus.Publish(ctx, event.TopicRollbackRequest, msg); err != nil {
			log.Printf("recovery: publishing rollback request failed purchaseId=%d err=%v", p.ID, err)
		}
	}
	return nil
}
