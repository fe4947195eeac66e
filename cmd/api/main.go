package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/yeonho-dev/lecture-payments/internal/catalog"
	"github.com/yeonho-dev/lecture-payments/internal/config"
	"github.com/yeonho-dev/lecture-payments/internal/db"
	"github.com/yeonho-dev/lecture-payments/internal/event"
	"github.com/yeonho-dev/lecture-payments/internal/gateway"
	"github.com/yeonho-dev/lecture-payments/internal/model"
	"github.com/yeonho-dev/lecture-payments/internal/recovery"
	"github.com/yeonho-dev/lecture-payments/internal/repository"
	"github.com/yeonho-dev/lecture-payments/internal/saga"
	"github.com/yeonho-dev/lecture-payments/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	if err := conn.AutoMigrate(&model.Purchase{}, &model.RollbackFailure{}, &model.CancelFailure{}); err != nil {
		log.Fatalf("auto migrate error: %v", err)
	}

	bus := event.NewInProcBus()
	defer bus.Close()

	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayKey, cfg.GatewaySecret, cfg.GatewayTimeout)
	catalogClient := catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogTimeout)

	purchaseRepo := repository.NewPurchaseRepository(conn)
	rollbackFailureRepo := repository.NewRollbackFailureRepository(conn)

	coordinator := saga.NewCoordinator(purchaseRepo, rollbackFailureRepo, bus)
	coordinator.Start()

	ingestor := recovery.NewIngestor(purchaseRepo, catalogClient, bus)
	failedLoop := recovery.NewFailedPurchaseLoop(purchaseRepo, gatewayClient, bus, cfg.FailedPurchaseInterval)
	missingLoop := recovery.NewMissingPaymentLoop(gatewayClient, ingestor, cfg.MissingPaymentInterval, cfg.MissingPaymentWindow)

	loopCtx, stopLoops := context.WithCancel(context.Background())
	defer stopLoops()
	go failedLoop.Run(loopCtx)
	go missingLoop.Run(loopCtx)

	srv, err := server.New(conn, cfg, gatewayClient, catalogClient, bus, coordinator, ingestor)
	if err != nil {
		log.Fatalf("server init error: %v", err)
	}

	addr := ":" + cfg.Port
	go func() {
		log.Printf("starting server on %s", addr)
		if err := srv.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
	log.Println("signal received, shutting down")

	stopLoops()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown error: %v", err)
	}
}
