package recovery

import (
	"context"
	"log"
	"time"

	"github.com/yeonho-dev/lecture-payments/internal/gateway"
)

// MissingPaymentLoop polls the gateway for recently settled charges and
// inserts any the ledger never saw. It is the safety net for purchases
// whose initiating request or webhook was entirely lost. The window
// trails longer than the interval on purpose: re-checking settled charges
// tolerates scheduler jitter and delayed settlement, and the ingestor's
// idempotency makes the overlap harmless.
type MissingPaymentLoop struct {
	gateway  gateway.Client
	ingestor *Ingestor
	interval time.Duration
	window   time.Duration
}

func NewMissingPaymentLoop(gc gateway.Client, ingestor *Ingestor, interval, window time.Duration) *MissingPaymentLoop {
	return &MissingPaymentLoop{gateway: gc, ingestor: ingestor, interval: interval, window: window}
}

func (l *MissingPaymentLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	log.Printf("recovery: missing-payment loop started interval=%s window=%s", l.interval, l.window)

	for {
		select {
		case <-ctx.Done():
			log.Printf("recovery: missing-payment loop stopped")
			return
		case <-ticker.C:
			l.runOnce(ctx)
		}
	}
}

func (l *MissingPaymentLoop) runOnce(ctx context.Context) {
	now := time.Now()
	records, err := l.gateway.ListPaid(ctx, now.Add(-l.window), now)
	if err != nil {
		log.Printf("recovery: listing paid charges failed err=%v", err)
		return
	}

	for _, rec := range records {
		if err := l.ingestor.IngestCharge(ctx, rec); err != nil {
			log.Printf("recovery: ingesting charge failed chargeUid=%s err=%v", rec.ChargeUID, err)
		}
	}
}
