package dto

// 与后端约定的 REST 请求/响应结构，客户端与本地沙盒后端共用

type JoinRequest struct {
	PlayerID   string  `json:"player_id" binding:"required"`
	USDTAmount float64 `json:"usdt_amount" binding:"required"`
	WalletAddr string  `json:"wallet_addr" binding:"required"`
}

type PlayerResponse struct {
	ID         string  `json:"id"`
	USDTLocked float64 `json:"usdt_locked"`
	GameCoins  int64   `json:"game_coins"`
	WalletAddr string  `json:"wallet_addr"`
	Position   int     `json:"position"`
}

type PropertyResponse struct {
	Index int    `json:"index"`
	Price int64  `json:"price"`
	Owner string `json:"owner"` // 空字符串表示无主
}

type RollRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
}

type RollResponse struct {
	PlayerID string `json:"player_id"`
	Position int    `json:"position"`
	Dice     int    `json:"dice"`
}

// TradeRequest 买地和卖地共用
type TradeRequest struct {
	PlayerID    string `json:"player_id" binding:"required"`
	PropertyIdx int    `json:"property_idx" binding:"min=0"`
}

type TradeResponse struct {
	Message string `json:"message,omitempty"`
	Price   int64  `json:"price"`
}

type Payout struct {
	WalletAddr string  `json:"wallet_addr"`
	USDT       float64 `json:"usdt"`
}

type EndResponse struct {
	Winner      string   `json:"winner"`
	USDTPayouts []Payout `json:"usdt_payouts"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
