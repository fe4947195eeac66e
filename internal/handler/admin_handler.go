package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/yeonho-dev/lecture-payments/internal/model"
	"github.com/yeonho-dev/lecture-payments/internal/service"
)

type AdminHandler struct {
	svc service.AdminService
}

func NewAdminHandler(svc service.AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func pageParams(c echo.Context) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

func idParam(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

func (h *AdminHandler) adminError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", err.Error()))
	case errors.Is(err, model.ErrInvalidTransition):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid_transition", err.Error()))
	default:
		return c.JSON(http.StatusBadGateway, NewErrorResponse("upstream_failure", err.Error()))
	}
}

func (h *AdminHandler) ListRefundFailures(c echo.Context) error {
	limit, offset := pageParams(c)
	list, err := h.svc.ListRollbackFailures(c.Request().Context(), limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal", err.Error()))
	}
	if list == nil {
		list = []model.RollbackFailure{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AdminHandler) ListCancelFailures(c echo.Context) error {
	limit, offset := pageParams(c)
	list, err := h.svc.ListCancelFailures(c.Request().Context(), limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal", err.Error()))
	}
	if list == nil {
		list = []model.CancelFailure{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AdminHandler) ListFailedPurchases(c echo.Context) error {
	limit, offset := pageParams(c)
	list, err := h.svc.ListFailedPurchases(c.Request().Context(), limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal", err.Error()))
	}
	if list == nil {
		list = []model.Purchase{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AdminHandler) ForceRefund(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid failure id"))
	}
	msg, err := h.svc.ForceRefund(c.Request().Context(), id)
	if err != nil {
		return h.adminError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"result": msg})
}

func (h *AdminHandler) RetryVerify(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid purchase id"))
	}
	msg, err := h.svc.RetryVerification(c.Request().Context(), id)
	if err != nil {
		return h.adminError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"result": msg})
}

func (h *AdminHandler) ForceCancel(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid purchase id"))
	}
	msg, err := h.svc.ForceCancel(c.Request().Context(), id)
	if err != nil {
		return h.adminError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"result": msg})
}
