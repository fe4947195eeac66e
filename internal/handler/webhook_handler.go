package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/yeonho-dev/lecture-payments/internal/gateway"
	"github.com/yeonho-dev/lecture-payments/internal/recovery"
)

// WebhookHandler receives the gateway's push notifications. The contract
// is fire-and-forget: the gateway ignores our response body and never
// retries on our errors, so every outcome answers 200 and problems go to
// the log and the reconciliation loops.
type WebhookHandler struct {
	gateway  gateway.Client
	ingestor *recovery.Ingestor
}

func NewWebhookHandler(gc gateway.Client, ingestor *recovery.Ingestor) *WebhookHandler {
	return &WebhookHandler{gateway: gc, ingestor: ingestor}
}

type webhookNotification struct {
	ChargeUID   string `json:"imp_uid"`
	MerchantUID string `json:"merchant_uid"`
	Status      string `json:"status"`
}

func (h *WebhookHandler) Payment(c echo.Context) error {
	var body webhookNotification
	if err := c.Bind(&body); err != nil || body.ChargeUID == "" {
		log.Printf("webhook: malformed notification: %v", err)
		return c.NoContent(http.StatusOK)
	}
	if body.Status != "paid" {
		log.Printf("webhook: ignoring non-paid notification chargeUid=%s status=%s", body.ChargeUID, body.Status)
		return c.NoContent(http.StatusOK)
	}

	// The notification body is unauthenticated; only the gateway's own
	// record of the charge is trusted.
	rec, err := h.gateway.FetchByChargeUID(c.Request().Context(), body.ChargeUID)
	if err != nil {
		if errors.Is(err, gateway.ErrChargeNotFound) {
			log.Printf("webhook: notified charge unknown at gateway chargeUid=%s", body.ChargeUID)
		} else {
			log.Printf("webhook: fetching charge failed chargeUid=%s err=%v", body.ChargeUID, err)
		}
		return c.NoContent(http.StatusOK)
	}

	if err := h.ingestor.IngestCharge(c.Request().Context(), *rec); err != nil {
		log.Printf("webhook: ingest failed chargeUid=%s err=%v", body.ChargeUID, err)
	}
	return c.NoContent(http.StatusOK)
}
