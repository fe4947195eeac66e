package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yeonho-dev/lecture-payments/internal/catalog"
	"github.com/yeonho-dev/lecture-payments/internal/gateway"
	"github.com/yeonho-dev/lecture-payments/internal/model"
	"github.com/yeonho-dev/lecture-payments/internal/repository"
	"github.com/yeonho-dev/lecture-payments/internal/saga"
)

var (
	ErrNotFound  = errors.New("not_found")
	ErrForbidden = errors.New("forbidden")

	// ErrCancelNotSettled reports the partial failure where the gateway
	// confirmed the cancel but the ledger write afterwards failed. A
	// CancelFailure record exists when this is returned.
	ErrCancelNotSettled = errors.New("cancel completed at gateway but ledger update failed")
)

type PurchaseRequest struct {
	ProductID     uint64 `json:"productId"`
	MerchantUID   string `json:"merchantUid"`
	ChargeUID     string `json:"chargeUid"`
	ProductPrice  int64  `json:"productPrice"`
	PaymentMethod string `json:"paymentMethod"`
}

type PurchaseSummary struct {
	MerchantUID   string    `json:"merchantUid"`
	ProductID     uint64    `json:"productId"`
	ProductTitle  string    `json:"productTitle"`
	Instructor    string    `json:"instructor"`
	Status        string    `json:"status"`
	PaidAmount    int64     `json:"paidAmount"`
	PaymentMethod string    `json:"paymentMethod"`
	CreatedAt     time.Time `json:"createdAt"`
}

type PurchaseService interface {
	Save(ctx context.Context, req PurchaseRequest, userUID string) (*model.Purchase, error)
	CancelPayment(ctx context.Context, merchantUID, userUID string) (*model.Purchase, error)
	ListByUser(ctx context.Context, userUID string) ([]PurchaseSummary, error)
}

type purchaseService struct {
	purchases      repository.PurchaseRepository
	cancelFailures repository.CancelFailureRepository
	gateway        gateway.Client
	catalog        catalog.Client
	saga           *saga.Coordinator
}

func NewPurchaseService(
	purchases repository.PurchaseRepository,
	cancelFailures repository.CancelFailureRepository,
	gc gateway.Client,
	cat catalog.Client,
	coordinator *saga.Coordinator,
) PurchaseService {
	return &purchaseService{
		purchases:      purchases,
		cancelFailures: cancelFailures,
		gateway:        gc,
		catalog:        cat,
		saga:           coordinator,
	}
}

// Save reserves any active discount, prices the purchase, and hands it to
// the saga coordinator.
func (s *purchaseService) Save(ctx context.Context, req PurchaseRequest, userUID string) (*model.Purchase, error) {
	discount, err := s.catalog.ReserveDiscount(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("reserve discount: %w", err)
	}

	paidAmount := req.ProductPrice
	if discount.Applied {
		paidAmount = ApplyDiscount(req.ProductPrice, discount.Rate)
	}

	return s.saga.Begin(ctx, saga.CreatePurchase{
		ProductID:     req.ProductID,
		MerchantUID:   req.MerchantUID,
		ChargeUID:     req.ChargeUID,
		ProductPrice:  req.ProductPrice,
		PaidAmount:    paidAmount,
		PaymentMethod: req.PaymentMethod,
	}, userUID)
}

// ApplyDiscount computes the paid amount for a percentage discount,
// flooring toward the customer's favor on fractional currency.
func ApplyDiscount(productPrice int64, rate decimal.Decimal) int64 {
	if rate.LessThanOrEqual(decimal.Zero) {
		return productPrice
	}
	multiplier := decimal.NewFromInt(1).Sub(rate.Div(decimal.NewFromInt(100)))
	return decimal.NewFromInt(productPrice).Mul(multiplier).Floor().IntPart()
}

func (s *purchaseService) CancelPayment(ctx context.Context, merchantUID, userUID string) (*model.Purchase, error) {
	p, err := s.purchases.FindByMerchantUID(ctx, merchantUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p.UserUID != userUID {
		return nil, ErrForbidden
	}
	if p.Status != model.PurchaseStatusCompleted {
		return nil, fmt.Errorf("%w: only completed purchases can be canceled (status=%s)", model.ErrInvalidTransition, p.Status)
	}

	res, err := s.gateway.Cancel(ctx, p.ChargeUID, p.PaidAmount)
	if err != nil {
		return nil, fmt.Errorf("gateway cancel: %w", err)
	}
	if res.Status != "cancelled" {
		return nil, fmt.Errorf("gateway cancel not confirmed: status=%s", res.Status)
	}

	canceled, err := p.Cancel()
	if err != nil {
		return nil, err
	}
	if err := s.purchases.Update(ctx, &canceled); err != nil {
		// The money already moved back; record the divergence so the
		// operator's force-cancel can reconcile the ledger later.
		log.Printf("purchase: cancel settled at gateway but ledger write failed id=%d err=%v", p.ID, err)
		failure := &model.CancelFailure{
			PurchaseID: p.ID,
			ChargeUID:  p.ChargeUID,
			Amount:     p.PaidAmount,
			Reason:     err.Error(),
		}
		if cerr := s.cancelFailures.Create(ctx, failure); cerr != nil {
			log.Printf("purchase: persisting cancel failure failed id=%d err=%v", p.ID, cerr)
		}
		return nil, ErrCancelNotSettled
	}
	return &canceled, nil
}

func (s *purchaseService) ListByUser(ctx context.Context, userUID string) ([]PurchaseSummary, error) {
	purchases, err := s.purchases.ListByUser(ctx, userUID)
	if err != nil {
		return nil, err
	}

	summaries := make([]PurchaseSummary, 0, len(purchases))
	for _, p := range purchases {
		if p.Status != model.PurchaseStatusCompleted {
			continue
		}
		info, err := s.catalog.Info(ctx, p.ProductID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, PurchaseSummary{
			MerchantUID:   p.MerchantUID,
			ProductID:     p.ProductID,
			ProductTitle:  info.Title,
			Instructor:    info.Instructor,
			Status:        string(p.Status),
			PaidAmount:    p.PaidAmount,
			PaymentMethod: p.PaymentMethod,
			CreatedAt:     p.CreatedAt,
		})
	}
	return summaries, nil
}
