package entities

import "time"

// 沙盒后端存进 Redis 的数据结构

type Player struct {
	ID         string  `json:"id"`
	USDTLocked float64 `json:"usdt_locked"`
	GameCoins  int64   `json:"game_coins"`
	WalletAddr string  `json:"wallet_addr"`
	Position   int     `json:"position"`
}

type Property struct {
	Index int    `json:"index"`
	Price int64  `json:"price"`
	Owner string `json:"owner"`
}

type GameStatus string

const (
	GameStatusWaiting GameStatus = "waiting" // 还没有玩家
	GameStatusPlaying GameStatus = "playing"
)

type GameInfo struct {
	GameID    string     `json:"gameID" mapstructure:"gameID"`
	Status    GameStatus `json:"status" mapstructure:"status"`
	Moves     int        `json:"moves" mapstructure:"moves"`
	TotalUSDT float64    `json:"totalUSDT" mapstructure:"totalUSDT"`
}

// Settlement 一局结束后的结算记录，写入 MySQL
type Settlement struct {
	GameID    string    `json:"gameID"`
	Winner    string    `json:"winner"`
	Players   int       `json:"players"`
	TotalUSDT float64   `json:"totalUSDT"`
	Payouts   string    `json:"payouts"` // JSON
	EndedAt   time.Time `json:"endedAt"`
}
