package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/yeonho-dev/lecture-payments/internal/event"
	"github.com/yeonho-dev/lecture-payments/internal/model"
	"github.com/yeonho-dev/lecture-payments/internal/repository"
)

// CreatePurchase is the input to a new purchase saga. PaidAmount is the
// amount the payment page actually charged, after any reserved discount.
type CreatePurchase struct {
	ProductID     uint64
	MerchantUID   string
	ChargeUID     string
	ProductPrice  int64
	PaidAmount    int64
	PaymentMethod string
}

// Coordinator owns the purchase state machine across the asynchronous
// verify/rollback exchanges. Handlers are safe to invoke more than once
// with the same payload: a result for a purchase that already left PENDING
// is discarded, not re-applied.
type Coordinator struct {
	purchases repository.PurchaseRepository
	failures  repository.RollbackFailureRepository
	bus       event.Bus
}

func NewCoordinator(purchases repository.PurchaseRepository, failures repository.RollbackFailureRepository, bus event.Bus) *Coordinator {
	return &Coordinator{purchases: purchases, failures: failures, bus: bus}
}

// Start wires the coordinator to the result topics.
func (c *Coordinator) Start() {
	c.bus.Subscribe(event.TopicVerifyResult, c.onVerifyResult)
	c.bus.Subscribe(event.TopicRollbackResult, c.onRollbackResult)
}

// Begin persists a pending purchase and only then publishes the verify
// request. Ordering matters: an event without a durable record would leave
// the verifier answering about a purchase nobody can find.
func (c *Coordinator) Begin(ctx context.Context, req CreatePurchase, userUID string) (*model.Purchase, error) {
	p := &model.Purchase{
		UserUID:       userUID,
		ProductID:     req.ProductID,
		MerchantUID:   req.MerchantUID,
		ChargeUID:     req.ChargeUID,
		ProductPrice:  req.ProductPrice,
		PaidAmount:    req.PaidAmount,
		PaymentMethod: req.PaymentMethod,
		Status:        model.PurchaseStatusPending,
	}
	if err := c.purchases.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("persist pending purchase: %w", err)
	}

	msg := event.VerifyRequest{
		PurchaseID: p.ID,
		ChargeUID:  p.ChargeUID,
		PaidAmount: p.PaidAmount,
	}
	if err := c.bus.Publish(ctx, event.TopicVerifyRequest, msg); err != nil {
		// The record is durable; the failed-purchase loop or a webhook will
		// finish verification even if this request never reaches the worker.
		log.Printf("saga: publishing verify request failed purchaseId=%d err=%v", p.ID, err)
	}
	return p, nil
}

func (c *Coordinator) onVerifyResult(ctx context.Context, payload []byte) error {
	var msg event.VerifyResult
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decode verify result: %w", err)
	}

	p, err := c.purchases.FindByID(ctx, msg.PurchaseID)
	if err != nil {
		log.Printf("saga: verify result for unknown purchase id=%d err=%v", msg.PurchaseID, err)
		return nil
	}
	if p.Status != model.PurchaseStatusPending {
		log.Printf("saga: discarding verify result, purchase already handled id=%d status=%s", p.ID, p.Status)
		return nil
	}

	switch {
	case msg.Valid:
		verified := p.Verify(p.ChargeUID)
		if err := c.purchases.Update(ctx, &verified); err != nil {
			log.Printf("saga: persisting verified purchase failed id=%d err=%v", p.ID, err)
		}
	case strings.Contains(msg.Reason, event.ReasonAmountMismatch):
		log.Printf("saga: verification mismatch id=%d reason=%s", p.ID, msg.Reason)
		c.rollback(ctx, p)
	default:
		reason := msg.Reason
		if reason == "" {
			reason = "verification failed: no reason from verifier"
		}
		log.Printf("saga: verification failed id=%d reason=%s", p.ID, reason)
		failed := p.Fail(reason)
		if err := c.purchases.Update(ctx, &failed); err != nil {
			log.Printf("saga: persisting failed purchase failed id=%d err=%v", p.ID, err)
		}
	}
	return nil
}

func (c *Coordinator) onRollbackResult(ctx context.Context, payload []byte) error {
	var msg event.RollbackResult
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decode rollback result: %w", err)
	}

	p, err := c.purchases.FindByID(ctx, msg.PurchaseID)
	if err != nil {
		log.Printf("saga: rollback result for unknown purchase id=%d err=%v", msg.PurchaseID, err)
		return nil
	}

	if !msg.Succeeded {
		// The purchase stays rollback_requested; reconciliation or an
		// operator force-refund finishes the compensation.
		failure := &model.RollbackFailure{
			PurchaseID: p.ID,
			ChargeUID:  p.ChargeUID,
			Amount:     p.PaidAmount,
			Reason:     msg.Reason,
		}
		if err := c.failures.Create(ctx, failure); err != nil {
			log.Printf("saga: persisting rollback failure failed id=%d err=%v", p.ID, err)
		}
		return nil
	}

	refunded, err := p.Refund()
	if err != nil {
		log.Printf("saga: discarding rollback result id=%d err=%v", p.ID, err)
		return nil
	}
	if err := c.purchases.Update(ctx, &refunded); err != nil {
		log.Printf("saga: persisting refunded purchase failed id=%d err=%v", p.ID, err)
	}
	return nil
}

// rollback publishes the compensating request and moves the purchase to
// rollback_requested. Only a pending purchase may start a rollback; an
// already-settled one is failed loudly instead of silently unwound.
func (c *Coordinator) rollback(ctx context.Context, p *model.Purchase) {
	if p.Status != model.PurchaseStatusPending {
		log.Printf("saga: rollback refused, purchase not pending id=%d status=%s", p.ID, p.Status)
		failed := p.Fail("invalid transition: rollback requested on settled purchase")
		if err := c.purchases.Update(ctx, &failed); err != nil {
			log.Printf("saga: persisting failed purchase failed id=%d err=%v", p.ID, err)
		}
		return
	}

	rolledBack := p.Rollback()
	msg := event.RollbackRequest{
		PurchaseID: rolledBack.ID,
		ChargeUID:  rolledBack.ChargeUID,
		PaidAmount: rolledBack.PaidAmount,
		ProductID:  rolledBack.ProductID,
	}
	if err := c.bus.Publish(ctx, event.TopicRollbackRequest, msg); err != nil {
		log.Printf("saga: publishing rollback request failed id=%d err=%v", p.ID, err)
	}
	if err := c.purchases.Update(ctx, &rolledBack); err != nil {
		log.Printf("saga: persisting rollback_requested purchase failed id=%d err=%v", p.ID, err)
	}
}
