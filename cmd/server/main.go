package main

import (
	"github.com/BAGS69FUN/BAGS69/internal/config"
	"github.com/BAGS69FUN/BAGS69/internal/database"
	"github.com/BAGS69FUN/BAGS69/internal/fees"
	"github.com/BAGS69FUN/BAGS69/internal/launchpad"
	"github.com/BAGS69FUN/BAGS69/internal/logger"
	"github.com/BAGS69FUN/BAGS69/internal/logic"
	"github.com/BAGS69FUN/BAGS69/internal/router"
	"github.com/BAGS69FUN/BAGS69/internal/solana"
	"github.com/BAGS69FUN/BAGS69/internal/store"
	"github.com/BAGS69FUN/BAGS69/internal/task"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	setupLogger(cfg)
	defer logger.Sync()

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}
	ledger := store.New(db)

	// 初始化Solana客户端与托管钱包
	chainClient := solana.NewClient(cfg.Chain.RpcUrl)
	escrowWallet, err := solana.NewWallet(cfg.Chain.EscrowPrivateKey, chainClient)
	if err != nil {
		logger.Fatal("Failed to initialize escrow wallet: %v", err)
	}
	verifier := solana.NewVerifier(chainClient, cfg.Chain.DepositToleranceLamports,
		cfg.Chain.VerifyRetries, cfg.Chain.VerifyRetryWait)
	logger.Info("Escrow wallet initialized: %s", escrowWallet.Address())

	// 初始化发射平台客户端
	launchpadClient := launchpad.NewClient(cfg.Launchpad.BaseUrl, cfg.Launchpad.ApiKey,
		cfg.Launchpad.Timeout)

	// 组装业务逻辑
	feeEngine := fees.NewEngine(ledger)
	launchLogic := logic.NewLaunchLogic(ledger, feeEngine, launchpadClient, escrowWallet, verifier, cfg)
	presaleLogic := logic.NewPresaleLogic(ledger, verifier, escrowWallet, launchLogic, launchpadClient, cfg)

	// 初始化路由
	r := router.Setup(presaleLogic, cfg)

	// 启动定时任务
	manager := task.Start(ledger, presaleLogic, cfg)
	defer manager.Stop()

	// 启动服务器
	logger.Info("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}

// setupLogger 按配置初始化全局日志器
func setupLogger(cfg *config.Config) {
	level := logger.ParseLogLevel(cfg.Log.Level)

	var l *logger.Logger
	var err error
	if cfg.Log.Output == "file" {
		l, err = logger.NewWithRotation(level, logger.RotationConfig{
			Filename: cfg.Log.File,
			Compress: true,
		})
	} else {
		l, err = logger.New(level)
	}
	if err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	logger.SetDefaultLogger(l)
}
