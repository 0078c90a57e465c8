package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"predictsol/internal/auth"
	"predictsol/internal/blockchain"
	"predictsol/internal/config"
	"predictsol/internal/custody"
	"predictsol/internal/database"
	"predictsol/internal/handlers"
	"predictsol/internal/jobs"
	"predictsol/internal/lock"
	"predictsol/internal/logger"
	"predictsol/internal/oracle"
	"predictsol/internal/repository"
	"predictsol/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN(), zl); err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run migrations
	if err := database.AutoMigrate(zl); err != nil {
		zl.Fatal("failed to run migrations", zap.Error(err))
	}
	db := database.GetDB()

	addrs, err := blockchain.NewProgramAddresses(cfg.Solana.ProgramID, cfg.Solana.TruthProgramID)
	if err != nil {
		zl.Fatal("invalid program ids", zap.Error(err))
	}

	rpcURL := cfg.Solana.RPCURL
	if rpcURL == "" {
		rpcURL = blockchain.RPCURL(cfg.Solana.Network)
	}
	solanaClient := blockchain.NewSolanaClient(rpcURL, zl)

	// Oracle: database store in development, Truth Network program otherwise
	var orc oracle.Oracle
	var oracleStore *oracle.Store
	switch cfg.Solana.OracleMode {
	case "chain":
		truth, err := blockchain.NewTruthClient(solanaClient, addrs.TruthProgramID(), cfg.Solana.ServerKey, zl)
		if err != nil {
			zl.Fatal("failed to initialize truth client", zap.Error(err))
		}
		orc = oracle.NewChain(truth)
	default:
		oracleStore = oracle.NewStore(db, addrs, time.Now, zl)
		orc = oracleStore
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			zl.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		locker = lock.NewRedis(rdb, cfg.Redis.LockTTL, 50*time.Millisecond, zl)
		zl.Info("using redis event lock")
	}

	// Initialize engine collaborators
	repo := repository.NewRepository(db)
	vaults := custody.NewVaults(db, cfg.Settlement.KeepAliveReserve)
	issuer := custody.NewIssuer(db)

	// Initialize services
	eventService := services.NewEventService(db, repo, vaults, issuer, orc, addrs, locker, services.Params{
		RedemptionFeeBps:      cfg.Settlement.RedemptionFeeBps,
		ConsensusThresholdBps: cfg.Settlement.ConsensusThresholdBps,
		SweepDelay:            cfg.Settlement.SweepDelay,
		MintRentLamports:      cfg.Settlement.MintRentLamports,
		HouseWallet:           cfg.Settlement.HouseWallet,
	}, zl)
	walletService := services.NewWalletService(db, repo, vaults, issuer, solanaClient, locker, cfg.Solana.TreasuryWallet, zl)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(walletService, zl)
	walletHandler := handlers.NewWalletHandler(walletService, zl)
	eventHandler := handlers.NewEventHandler(eventService, zl)
	blockchainHandler := handlers.NewBlockchainHandler(solanaClient, addrs, blockchain.DiagnosticTargets{
		ServerKey:      cfg.Solana.ServerKey,
		TreasuryWallet: cfg.Solana.TreasuryWallet,
		HouseWallet:    cfg.Settlement.HouseWallet,
	}, zl)

	keeper := jobs.NewSettlementKeeper(eventService, cfg.Settlement.HouseWallet, cfg.App.KeeperInterval, zl)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/wallet", authHandler.WalletLogin)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware(zl))
	{
		authProtected.GET("/me", authHandler.GetMe)
	}

	// Public read routes
	router.GET("/api/events", eventHandler.ListEvents)
	router.GET("/api/events/:address", eventHandler.GetEvent)
	router.GET("/api/events/:address/transactions", eventHandler.GetTransactions)
	router.GET("/api/counters/:creator", eventHandler.GetCounter)
	router.GET("/api/addresses/:creator/:id", blockchainHandler.DeriveEventAccounts)
	router.GET("/api/diagnostics", blockchainHandler.Diagnostics)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware(zl))
	{
		api.GET("/wallet", walletHandler.GetWallet)
		api.POST("/wallet/deposits", walletHandler.Deposit)

		api.POST("/counters", eventHandler.AllocateCounter)
		api.POST("/events", eventHandler.CreateEvent)
		api.DELETE("/events/:address", eventHandler.DeleteEvent)

		events := api.Group("/events/:address")
		{
			events.POST("/bootstrap", eventHandler.Bootstrap)
			events.POST("/buy", eventHandler.Buy)
			events.POST("/redeem-pair", eventHandler.RedeemPair)
			events.POST("/finalize", eventHandler.Finalize)
			events.POST("/redeem-winner", eventHandler.RedeemWinner)
			events.POST("/redeem-side", eventHandler.RedeemSide)
			events.POST("/claim-commission", eventHandler.ClaimCommission)
			events.POST("/sweep", eventHandler.Sweep)
		}

		if oracleStore != nil {
			oracleHandler := handlers.NewOracleHandler(oracleStore, zl)
			api.POST("/oracle/questions", oracleHandler.CreateQuestion)
			api.GET("/oracle/questions/:address", oracleHandler.GetQuestion)
			api.POST("/oracle/questions/:address/votes", oracleHandler.RecordVote)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zl.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		keeper.Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down server")

		// Graceful shutdown with 5 second timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		keeper.Stop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zl.Fatal("server exited with error", zap.Error(err))
	}
	zl.Info("server exited")
}

func corsConfig(allowed string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if allowed == "" || allowed == "*" {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, origin := range strings.Split(allowed, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}
	cfg.AllowCredentials = true
	return cfg
}
