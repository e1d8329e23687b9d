package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go-monopoly/board"

	"gopkg.in/yaml.v3"
)

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MySQL struct {
	// DSN 为空时不记录结算历史
	DSN string `yaml:"dsn"`
}

type Operator struct {
	Name   string `yaml:"name"`
	Secret string `yaml:"secret"` // 为空时 /end 不鉴权
}

// Server 本地沙盒后端
type Server struct {
	Addr         string  `yaml:"addr"`
	MinimumStake float64 `yaml:"minimum_stake"`
}

// Client 会话客户端及其界面桥
type Client struct {
	UIAddr         string        `yaml:"ui_addr"`
	APIBaseURL     string        `yaml:"api_base_url"`
	APITimeout     time.Duration `yaml:"api_timeout"`
	WalletRPCURL   string        `yaml:"wallet_rpc_url"`
	TokenAddress   string        `yaml:"token_address"`
	EscrowAddress  string        `yaml:"escrow_address"`
	TokenDecimals  int32         `yaml:"token_decimals"`
	MinimumStake   string        `yaml:"minimum_stake"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	RollDelay      time.Duration `yaml:"roll_delay"`
}

type Config struct {
	Debug    bool             `yaml:"debug"`
	Board    board.Dimensions `yaml:"board"`
	Redis    Redis            `yaml:"redis"`
	MySQL    MySQL            `yaml:"mysql"`
	Operator Operator         `yaml:"operator"`
	Server   Server           `yaml:"server"`
	Client   Client           `yaml:"client"`
}

func Default() Config {
	return Config{
		Board:    board.Large,
		Redis:    Redis{Addr: "localhost:6379"},
		Operator: Operator{Name: "operator"},
		Server:   Server{Addr: ":8080", MinimumStake: 3},
		Client: Client{
			UIAddr:         ":8000",
			APIBaseURL:     "http://localhost:8080",
			APITimeout:     10 * time.Second,
			WalletRPCURL:   "http://localhost:8545",
			TokenDecimals:  6,
			MinimumStake:   "3",
			ConfirmTimeout: 2 * time.Minute,
			RollDelay:      time.Second,
		},
	}
}

// Load 读取 YAML 配置，再用环境变量覆盖。path 为空或文件不存在时只用默认值。
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("读取配置失败: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("解析配置失败: %w", err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if _, err := board.FromDimensions(cfg.Board); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("REDIS_ADDR", &cfg.Redis.Addr)
	setString("REDIS_PASSWORD", &cfg.Redis.Password)
	setString("MYSQL_DSN", &cfg.MySQL.DSN)
	setString("OPERATOR_SECRET", &cfg.Operator.Secret)
	setString("SERVER_ADDR", &cfg.Server.Addr)
	setString("UI_ADDR", &cfg.Client.UIAddr)
	setString("API_BASE_URL", &cfg.Client.APIBaseURL)
	setString("WALLET_RPC_URL", &cfg.Client.WalletRPCURL)
	setString("TOKEN_ADDRESS", &cfg.Client.TokenAddress)
	setString("ESCROW_ADDRESS", &cfg.Client.EscrowAddress)

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB 不是整数: %w", err)
		}
		cfg.Redis.DB = db
	}
	if v := os.Getenv("DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEBUG 取值无效: %w", err)
		}
		cfg.Debug = debug
	}
	return nil
}
