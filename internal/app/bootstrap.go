package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"futures_go/internal/domain"
	"futures_go/internal/infra"
	"futures_go/internal/infra/binance"
	"futures_go/internal/infra/storage"
	"futures_go/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Client   *binance.Client
	TimeSync *infra.TimeSync
	Storage  *storage.Storage
	Orders   *service.OrderService
	Market   *service.MarketService
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger,
// client, DB, services). Credentials come from the config file or the
// environment and never reach a log line.
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Futures Go...")

	// 1. Load .env if present, then the config file
	_ = godotenv.Load()

	configPath := os.Getenv("FUTURES_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Credentials
	creds, err := domain.NewCredentials(cfg)
	if err != nil {
		return err
	}

	// 4. Signed REST client
	client := binance.NewClient(creds, binance.Config{
		BaseURL:              cfg.API.Binance.BaseURL,
		RecvWindow:           cfg.API.Binance.RecvWindowMS,
		Timeout:              time.Duration(cfg.API.Binance.TimeoutSec) * time.Second,
		MaxRequestsPerSecond: cfg.API.Binance.RequestsPerSecond,
	}, logger)
	b.Client = client
	slog.Info("✅ REST client ready", slog.String("base_url", client.BaseURL()))

	// 5. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 6. Services
	b.Orders = service.NewOrderService(client, logger)
	b.Market = service.NewMarketService(client, store, logger)

	// 7. Exchange clock sync (started separately, needs a context)
	b.TimeSync = infra.NewTimeSync(client.ServerTime, logger)

	return nil
}

// StartTimeSync syncs against the exchange clock and switches the client
// onto the corrected timestamp source. A failed initial sync is already
// tolerated inside TimeSync; trading continues on the local clock.
func (b *Bootstrap) StartTimeSync(ctx context.Context) {
	if err := b.TimeSync.Start(ctx); err != nil {
		slog.Warn("Time sync failed to start", slog.Any("error", err))
		return
	}
	b.Client.SetClock(b.TimeSync.Now)
	slog.Info("✅ Exchange clock sync active", slog.Int64("offset_ms", b.TimeSync.Offset()))
}

// NewUserStream builds a user-data stream worker delivering order
// updates to the handler.
func (b *Bootstrap) NewUserStream(handler binance.OrderUpdateHandler) *binance.UserStreamWorker {
	return binance.NewUserStreamWorker(b.Client, b.Config.API.Binance.StreamURL, handler, slog.Default())
}

// Shutdown stops background services.
func (b *Bootstrap) Shutdown() {
	if b.TimeSync != nil {
		b.TimeSync.Stop()
	}
}
