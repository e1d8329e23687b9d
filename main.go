package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go-monopoly/board"
	"go-monopoly/config"
	"go-monopoly/controller"
	"go-monopoly/middleware"
	"go-monopoly/repository"
	"go-monopoly/router"
	"go-monopoly/service"
	"go-monopoly/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 本地沙盒后端，实现与线上后端相同的 REST 接口
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

	ctx := context.Background()
	rdb, err := repository.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Redis 初始化失败", zap.Error(err))
	}
	defer rdb.Close()

	geometry, err := board.FromDimensions(cfg.Board)
	if err != nil {
		logger.Fatal("棋盘配置无效", zap.Error(err))
	}

	opts := service.Options{
		BoardSize:    geometry.Size(),
		MinimumStake: cfg.Server.MinimumStake,
		Logger:       logger,
	}
	if cfg.MySQL.DSN != "" {
		db, err := repository.OpenMySQL(ctx, cfg.MySQL.DSN)
		if err != nil {
			logger.Fatal("MySQL 初始化失败", zap.Error(err))
		}
		defer db.Close()
		settlements := repository.NewSettlementRepo(db)
		if err := settlements.Migrate(ctx); err != nil {
			logger.Fatal("MySQL 建表失败", zap.Error(err))
		}
		opts.Settlements = settlements
		logger.Info("✅ 结算历史写入 MySQL")
	}
	games := service.NewGameService(rdb, opts)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.ZapLogger(logger))

	// 设置 CORS 中间件，允许所有域名、所有方法、所有 header
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true, // 允许所有来源
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	router.InitRouter(r, controller.NewGameController(games, logger), []byte(cfg.Operator.Secret))

	logger.Info("🚀 沙盒后端启动", zap.String("addr", cfg.Server.Addr), zap.Int("board", geometry.Size()))
	if err := r.Run(cfg.Server.Addr); err != nil {
		logger.Fatal("服务退出", zap.Error(err))
	}
}
