package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/yeonho-dev/lecture-payments/internal/catalog"
	"github.com/yeonho-dev/lecture-payments/internal/config"
	"github.com/yeonho-dev/lecture-payments/internal/event"
	"github.com/yeonho-dev/lecture-payments/internal/gateway"
	"github.com/yeonho-dev/lecture-payments/internal/handler"
	appmw "github.com/yeonho-dev/lecture-payments/internal/middleware"
	"github.com/yeonho-dev/lecture-payments/internal/recovery"
	"github.com/yeonho-dev/lecture-payments/internal/repository"
	"github.com/yeonho-dev/lecture-payments/internal/saga"
	"github.com/yeonho-dev/lecture-payments/internal/service"
	"gorm.io/gorm"
)

type Server struct {
	e *echo.Echo
}

func New(
	db *gorm.DB,
	cfg *config.Config,
	gc gateway.Client,
	cat catalog.Client,
	bus event.Bus,
	coordinator *saga.Coordinator,
	ingestor *recovery.Ingestor,
) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			low := strings.ToLower(origin)
			if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
				strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
				return true, nil
			}
			return false, nil
		},
	}))

	purchaseRepo := repository.NewPurchaseRepository(db)
	rollbackFailureRepo := repository.NewRollbackFailureRepository(db)
	cancelFailureRepo := repository.NewCancelFailureRepository(db)

	purchaseSvc := service.NewPurchaseService(purchaseRepo, cancelFailureRepo, gc, cat, coordinator)
	adminSvc := service.NewAdminService(purchaseRepo, rollbackFailureRepo, cancelFailureRepo, gc, bus)

	purchaseHandler := handler.NewPurchaseHandler(purchaseSvc)
	adminHandler := handler.NewAdminHandler(adminSvc)
	webhookHandler := handler.NewWebhookHandler(gc, ingestor)

	authMw, err := appmw.NewAuthMiddleware(context.Background(), cfg.FirebaseProjectID, cfg.AdminUIDs)
	if err != nil {
		return nil, err
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"ok": "true"})
	})

	// The gateway cannot send credentials; the webhook handler trusts only
	// what it re-fetches from the gateway itself.
	e.POST("/webhook/payment", webhookHandler.Payment)

	api := e.Group("/api")
	api.POST("/pay", purchaseHandler.Pay, authMw.RequireAuth)
	api.POST("/pay/cancel", purchaseHandler.Cancel, authMw.RequireAuth)
	api.GET("/me/purchases", purchaseHandler.ListMine, authMw.RequireAuth)

	admin := api.Group("/admin")
	admin.GET("/refund-failures", adminHandler.ListRefundFailures, authMw.RequireAdmin)
	admin.GET("/cancel-failures", adminHandler.ListCancelFailures, authMw.RequireAdmin)
	admin.GET("/failed-purchases", adminHandler.ListFailedPurchases, authMw.RequireAdmin)
	admin.POST("/force-refund/:id", adminHandler.ForceRefund, authMw.RequireAdmin)
	admin.POST("/retry-verify/:id", adminHandler.RetryVerify, authMw.RequireAdmin)
	admin.POST("/force-cancel/:id", adminHandler.ForceCancel, authMw.RequireAdmin)

	return &Server{e: e}, nil
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
