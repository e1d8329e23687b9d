package session

import (
	"go-monopoly/board"

	"github.com/shopspring/decimal"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseJoining    Phase = "joining"
	PhaseInProgress Phase = "in_progress"
	PhaseEnding     Phase = "ending"
	PhaseSettled    Phase = "settled"
)

// TurnPhase 只在 PhaseInProgress 下有意义。
// 切换玩家在一次加锁内同步完成，快照中不会出现 TurnAdvancing，它只用于界面的完整状态枚举。
type TurnPhase string

const (
	TurnNone           TurnPhase = ""
	TurnAwaitingRoll   TurnPhase = "awaiting_roll"
	TurnRolling        TurnPhase = "rolling"
	TurnAwaitingAction TurnPhase = "awaiting_action"
	TurnAdvancing      TurnPhase = "advancing"
)

type Player struct {
	ID              string          `json:"id"`
	WalletAddr      string          `json:"walletAddr"`
	USDTLocked      decimal.Decimal `json:"usdtLocked"`
	GameCoins       int64           `json:"gameCoins"`
	Position        int             `json:"position"`
	OwnedProperties []int           `json:"ownedProperties"`
}

func (p Player) Owns(index int) bool {
	for _, i := range p.OwnedProperties {
		if i == index {
			return true
		}
	}
	return false
}

// Property 只镜像后端给出的价格与归属
type Property struct {
	Index   int    `json:"index"`
	Price   int64  `json:"price"`
	OwnerID string `json:"ownerId,omitempty"`
}

type Payout struct {
	WalletAddr string          `json:"walletAddr"`
	USDT       decimal.Decimal `json:"usdt"`
}

// Settlement 后端已算好的结算结果，分账成功前一直缓存
type Settlement struct {
	Winner  string   `json:"winner"`
	Payouts []Payout `json:"payouts"`
}

type Session struct {
	Phase              Phase            `json:"phase"`
	Turn               TurnPhase        `json:"turn"`
	Players            []Player         `json:"players"`
	Properties         map[int]Property `json:"properties"`
	CurrentPlayerIndex int              `json:"currentPlayerIndex"`
	Round              int              `json:"round"`
	PendingDice        *int             `json:"pendingDice"`
	Settlement         *Settlement      `json:"settlement,omitempty"`
	SettlementError    string           `json:"settlementError,omitempty"`
	Stale              bool             `json:"stale"`
}

// CurrentPlayer 会话未开始时返回 false
func (s Session) CurrentPlayer() (Player, bool) {
	if s.Phase != PhaseInProgress || len(s.Players) == 0 {
		return Player{}, false
	}
	return s.Players[s.CurrentPlayerIndex], true
}

func (s Session) Player(id string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// View 推给渲染层的只读快照
type View struct {
	Session
	Colors      map[string]string           `json:"colors"`
	Coordinates map[string]board.Coordinate `json:"coordinates"`
	BoardSize   int                         `json:"boardSize"`
	Busy        bool                        `json:"busy"`
}
