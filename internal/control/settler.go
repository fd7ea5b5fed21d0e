package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/velia-labs/settler/internal/custody"
	"github.com/velia-labs/settler/internal/gas"
	"github.com/velia-labs/settler/internal/health"
	"github.com/velia-labs/settler/internal/infra/chain"
	redisclient "github.com/velia-labs/settler/internal/infra/redis"
	"github.com/velia-labs/settler/internal/infra/rpc"
	"github.com/velia-labs/settler/internal/infra/storage"
	"github.com/velia-labs/settler/internal/infra/storage/memory"
	"github.com/velia-labs/settler/internal/infra/storage/postgres"
	"github.com/velia-labs/settler/internal/reconcile"
	"github.com/velia-labs/settler/internal/webhook"
)

// Settler is the main application struct that manages the reconciler
// lifecycle.
type Settler struct {
	cfg          Config
	engines      map[string]*reconcile.Engine
	monitors     map[string]*gas.Monitor
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	cursors      storage.CursorRepository
	custodyRepo  storage.CustodyRepository
	log          *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSettler creates a Settler instance with all dependencies initialized.
func NewSettler(cfg Config) (*Settler, error) {
	log := slog.Default()

	// 1. Storage
	var (
		cursorRepo  storage.CursorRepository
		custodyRepo storage.CustodyRepository
		idemRepo    storage.IdempotencyRepository
		db          *postgres.DB
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		dir := cfg.MigrationsDir
		if dir == "" {
			dir = "migrations"
		}
		if err := goose.Up(db.DB.DB, dir); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		cursorRepo = postgres.NewCursorRepo(db)
		custodyRepo = postgres.NewCustodyRepo(db)
		idemRepo = postgres.NewIdempotencyRepo(db)
		log.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewStore()
		cursorRepo = store.CursorRepo()
		custodyRepo = store.CustodyRepo()
		idemRepo = store.IdempotencyRepo()
		log.Warn("Using memory storage; state will not survive restarts")
	}

	// 2. Redis (leader election + alert queue); optional
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
	}

	// 3. Custody gateway (shared across chains)
	gateway := custody.NewHTTPGateway(cfg.Custody, log)

	// 4. Health surface
	monitor := health.NewMonitor(cursorRepo)
	if db != nil {
		monitor.AddCheck("database", db.Health)
	}
	if redisClient != nil {
		monitor.AddCheck("redis", redisClient.Health)
	}
	healthServer := health.NewServer(monitor, cfg.Port)
	healthServer.Handle("/webhooks/custody",
		webhook.NewHandler(cfg.Custody.WebhookSecret, idemRepo, log))

	// 5. Per-chain readers, liquidity monitors, engines
	var alerter gas.Alerter
	var leader reconcile.Leader
	if redisClient != nil {
		alerter = redisClient
		leader = redisClient
	}

	engines := make(map[string]*reconcile.Engine, len(cfg.Chains))
	monitors := make(map[string]*gas.Monitor, len(cfg.Chains))
	for _, chainCfg := range cfg.Chains {
		endpoints := make([]rpc.Endpoint, 0, len(chainCfg.Providers))
		for _, p := range chainCfg.Providers {
			endpoints = append(endpoints, rpc.Endpoint{Name: p.Name, URL: p.URL})
		}
		client := rpc.NewClient(chainCfg.ChainID, endpoints, 10*time.Second)
		reader := chain.NewRPCReader(client)
		monitor.AddChain(chainCfg.ChainID, reader)

		threshold := decimal.Zero
		if chainCfg.LiquidityThreshold != "" {
			var err error
			threshold, err = decimal.NewFromString(chainCfg.LiquidityThreshold)
			if err != nil {
				return nil, fmt.Errorf("chain %s: bad liquidity_threshold: %w", chainCfg.ChainID, err)
			}
		}
		gasMonitor := gas.NewMonitor(gas.Config{
			ChainID:   chainCfg.ChainID,
			Threshold: threshold,
			Interval:  chainCfg.LiquidityInterval,
		}, gateway, alerter, log)
		monitors[chainCfg.ChainID] = gasMonitor

		engines[chainCfg.ChainID] = reconcile.New(
			reconcile.Config{
				ChainID:       chainCfg.ChainID,
				PollInterval:  chainCfg.PollInterval,
				BatchSize:     chainCfg.BatchSize,
				Confirmations: chainCfg.Confirmations,
				StartBlock:    chainCfg.StartBlock,
				MaxAttempts:   chainCfg.MaxAttempts,
			},
			reader, gateway, gasMonitor,
			cursorRepo, custodyRepo, idemRepo,
			alerter, leader, log,
		)
	}

	return &Settler{
		cfg:          cfg,
		engines:      engines,
		monitors:     monitors,
		healthServer: healthServer,
		db:           db,
		redisClient:  redisClient,
		cursors:      cursorRepo,
		custodyRepo:  custodyRepo,
		log:          log,
	}, nil
}

// Start launches all components.
func (s *Settler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("health server stopped", "error", err)
		}
	}()

	for chainID, engine := range s.engines {
		chainID, engine := chainID, engine
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := engine.Start(runCtx); err != nil {
				s.log.Error("engine stopped", "chain", chainID, "error", err)
			}
		}()
	}

	for _, monitor := range s.monitors {
		monitor := monitor
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			monitor.Run(runCtx)
		}()
	}

	s.log.Info("settler started", "chains", len(s.engines), "port", s.cfg.Port)
	return nil
}

// Stop shuts everything down. New block ranges stop immediately;
// in-flight custody calls finish or are abandoned for retry, which the
// idempotency keys make safe.
func (s *Settler) Stop(ctx context.Context) error {
	for chainID, engine := range s.engines {
		if err := engine.Stop(ctx); err != nil {
			s.log.Warn("engine stop timed out", "chain", chainID, "error", err)
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.healthServer.Stop(ctx); err != nil {
		s.log.Warn("health server stop failed", "error", err)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	s.log.Info("settler stopped")
	return nil
}

// Cursors exposes the cursor repository for CLI tooling.
func (s *Settler) Cursors() storage.CursorRepository { return s.cursors }

// CustodyRecords exposes the custody repository for CLI tooling.
func (s *Settler) CustodyRecords() storage.CustodyRepository { return s.custodyRepo }

// ChainIDs lists configured chains.
func (s *Settler) ChainIDs() []string {
	ids := make([]string, 0, len(s.engines))
	for id := range s.engines {
		ids = append(ids, id)
	}
	return ids
}
