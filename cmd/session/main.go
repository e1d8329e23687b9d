package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"go-monopoly/board"
	"go-monopoly/chain"
	"go-monopoly/config"
	"go-monopoly/gameapi"
	"go-monopoly/middleware"
	"go-monopoly/session"
	"go-monopoly/utils"
	"go-monopoly/ws"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 会话客户端：连接钱包、驱动对局状态机，并通过 /ws 把快照推给界面
func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Sync()

	geometry, err := board.FromDimensions(cfg.Board)
	if err != nil {
		logger.Fatal("棋盘配置无效", zap.Error(err))
	}
	minimum, err := decimal.NewFromString(cfg.Client.MinimumStake)
	if err != nil {
		logger.Fatal("最低质押金额无效", zap.String("minimum_stake", cfg.Client.MinimumStake), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	provider, err := rpc.DialContext(ctx, cfg.Client.WalletRPCURL)
	if err != nil {
		logger.Fatal("连接钱包失败", zap.String("url", cfg.Client.WalletRPCURL), zap.Error(err))
	}
	defer provider.Close()

	wallet, err := chain.NewClient(provider, chain.Options{
		TokenAddress:   cfg.Client.TokenAddress,
		EscrowAddress:  cfg.Client.EscrowAddress,
		ConfirmTimeout: cfg.Client.ConfirmTimeout,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("链客户端初始化失败", zap.Error(err))
	}
	account, err := wallet.Connect(ctx)
	cancel()
	if err != nil {
		logger.Fatal("❌ 无法切换到游戏网络", zap.String("network", chain.ReddioDevnet.Name), zap.Error(err))
	}
	logger.Info("✅ 钱包已连接", zap.String("account", account))

	opts := []gameapi.Option{gameapi.WithTimeout(cfg.Client.APITimeout), gameapi.WithLogger(logger)}
	if cfg.Operator.Secret != "" {
		opts = append(opts, gameapi.WithOperator([]byte(cfg.Operator.Secret), cfg.Operator.Name))
	}
	api := gameapi.New(cfg.Client.APIBaseURL, opts...)

	hub := ws.NewHub(logger)
	controller, err := session.NewController(wallet, api, session.Config{
		Board:         geometry,
		MinimumStake:  minimum,
		TokenDecimals: cfg.Client.TokenDecimals,
		RollDelay:     cfg.Client.RollDelay,
		Logger:        logger,
		OnChange:      hub.Broadcast,
	})
	if err != nil {
		logger.Fatal("会话初始化失败", zap.Error(err))
	}
	defer controller.Close()
	hub.Bind(controller)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.ZapLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		MaxAge:          12 * time.Hour,
	}))
	r.GET("/ws", hub.HandleWebSocket)
	r.GET("/snapshot", func(c *gin.Context) {
		c.JSON(http.StatusOK, controller.Snapshot())
	})

	logger.Info("🚀 会话客户端启动", zap.String("addr", cfg.Client.UIAddr), zap.String("backend", cfg.Client.APIBaseURL))
	if err := r.Run(cfg.Client.UIAddr); err != nil {
		logger.Fatal("服务退出", zap.Error(err))
	}
}
