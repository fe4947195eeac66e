package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yeonho-dev/lecture-payments/internal/model"
	"github.com/yeonho-dev/lecture-payments/internal/service"
)

type PurchaseHandler struct {
	svc service.PurchaseService
}

func NewPurchaseHandler(svc service.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{svc: svc}
}

type PurchaseResponse struct {
	ID            uint64  `json:"id"`
	ProductID     uint64  `json:"productId"`
	MerchantUID   string  `json:"merchantUid"`
	ChargeUID     string  `json:"chargeUid"`
	ProductPrice  int64   `json:"productPrice"`
	PaidAmount    int64   `json:"paidAmount"`
	PaymentMethod string  `json:"paymentMethod"`
	Status        string  `json:"status"`
	Verified      bool    `json:"verified"`
	Reason        *string `json:"reason,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

func toPurchaseResponse(p *model.Purchase) PurchaseResponse {
	return PurchaseResponse{
		ID:            p.ID,
		ProductID:     p.ProductID,
		MerchantUID:   p.MerchantUID,
		ChargeUID:     p.ChargeUID,
		ProductPrice:  p.ProductPrice,
		PaidAmount:    p.PaidAmount,
		PaymentMethod: p.PaymentMethod,
		Status:        string(p.Status),
		Verified:      p.Verified,
		Reason:        p.Reason,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     p.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *PurchaseHandler) Pay(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	var req service.PurchaseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	if req.MerchantUID == "" || req.ChargeUID == "" || req.ProductID == 0 {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "merchantUid, chargeUid and productId are required"))
	}
	if req.ProductPrice <= 0 {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "productPrice must be positive"))
	}

	p, err := h.svc.Save(c.Request().Context(), req, uid)
	if err != nil {
		return c.JSON(http.StatusBadGateway, NewErrorResponse("upstream_failure", err.Error()))
	}
	return c.JSON(http.StatusCreated, toPurchaseResponse(p))
}

func (h *PurchaseHandler) Cancel(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	var body struct {
		MerchantUID string `json:"merchantUid"`
	}
	if err := c.Bind(&body); err != nil || body.MerchantUID == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "merchantUid is required"))
	}

	p, err := h.svc.CancelPayment(c.Request().Context(), body.MerchantUID, uid)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "purchase not found"))
		case errors.Is(err, service.ErrForbidden):
			return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not your purchase"))
		case errors.Is(err, model.ErrInvalidTransition):
			return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid_transition", err.Error()))
		case errors.Is(err, service.ErrCancelNotSettled):
			return c.JSON(http.StatusInternalServerError, NewErrorResponse("cancel_not_settled", err.Error()))
		default:
			return c.JSON(http.StatusBadGateway, NewErrorResponse("upstream_failure", err.Error()))
		}
	}
	return c.JSON(http.StatusOK, toPurchaseResponse(p))
}

func (h *PurchaseHandler) ListMine(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	list, err := h.svc.ListByUser(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal", err.Error()))
	}
	if list == nil {
		list = []service.PurchaseSummary{}
	}
	return c.JSON(http.StatusOK, list)
}
