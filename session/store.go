package session

import (
	"sort"
	"sync"

	"go-monopoly/dto"

	"github.com/shopspring/decimal"
)

// Store 持有本地会话快照。写方法不导出，只有 Controller 能修改；
// 关闭后所有写操作都被忽略，防止已销毁的界面收到过期结果。
type Store struct {
	mu     sync.RWMutex
	s      Session
	closed bool
}

func NewStore() *Store {
	return &Store{s: emptySession()}
}

func emptySession() Session {
	return Session{
		Phase:      PhaseIdle,
		Turn:       TurnNone,
		Players:    []Player{},
		Properties: map[int]Property{},
	}
}

// Snapshot 深拷贝，调用方可以随意持有
func (st *Store) Snapshot() Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := st.s
	out.Players = make([]Player, len(st.s.Players))
	for i, p := range st.s.Players {
		p.OwnedProperties = append([]int(nil), p.OwnedProperties...)
		out.Players[i] = p
	}
	out.Properties = make(map[int]Property, len(st.s.Properties))
	for k, v := range st.s.Properties {
		out.Properties[k] = v
	}
	if st.s.PendingDice != nil {
		d := *st.s.PendingDice
		out.PendingDice = &d
	}
	if st.s.Settlement != nil {
		settlement := *st.s.Settlement
		settlement.Payouts = append([]Payout(nil), st.s.Settlement.Payouts...)
		out.Settlement = &settlement
	}
	return out
}

func (st *Store) update(fn func(s *Session)) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return false
	}
	fn(&st.s)
	return true
}

func (st *Store) close() {
	st.mu.Lock()
	st.closed = true
	st.mu.Unlock()
}

func (st *Store) setPhase(p Phase) bool {
	return st.update(func(s *Session) { s.Phase = p })
}

func (st *Store) setTurn(t TurnPhase) bool {
	return st.update(func(s *Session) { s.Turn = t })
}

// addPlayer 追加到出手顺序末尾；第一个玩家加入时开局
func (st *Store) addPlayer(p Player) bool {
	return st.update(func(s *Session) {
		s.Players = append(s.Players, p)
		if s.Phase != PhaseInProgress {
			s.Phase = PhaseInProgress
			s.Turn = TurnAwaitingRoll
			s.CurrentPlayerIndex = 0
			s.Round = 1
			s.PendingDice = nil
		}
	})
}

func (st *Store) applyRoll(playerID string, position, dice int) bool {
	return st.update(func(s *Session) {
		for i := range s.Players {
			if s.Players[i].ID == playerID {
				s.Players[i].Position = position
			}
		}
		s.PendingDice = &dice
		s.Turn = TurnAwaitingAction
	})
}

func (st *Store) applyBuy(playerID string, index int, price int64) bool {
	return st.update(func(s *Session) {
		for i := range s.Players {
			p := &s.Players[i]
			if p.ID != playerID {
				continue
			}
			p.GameCoins -= price
			if !p.Owns(index) {
				p.OwnedProperties = append(p.OwnedProperties, index)
				sort.Ints(p.OwnedProperties)
			}
		}
		prop := s.Properties[index]
		prop.Index = index
		prop.Price = price
		prop.OwnerID = playerID
		s.Properties[index] = prop
	})
}

// applySell 按后端报出的当前价格返还一半，整数除法向下取整
func (st *Store) applySell(playerID string, index int, price int64) bool {
	return st.update(func(s *Session) {
		for i := range s.Players {
			p := &s.Players[i]
			if p.ID != playerID {
				continue
			}
			p.GameCoins += price / 2
			p.OwnedProperties = removeIndex(p.OwnedProperties, index)
		}
		if prop, ok := s.Properties[index]; ok {
			prop.Price = price
			prop.OwnerID = ""
			s.Properties[index] = prop
		}
	})
}

// advance 轮到下一位，回到 0 号玩家时回合数加一。整个切换在一次加锁内完成，快照直接看到 TurnAwaitingRoll。
func (st *Store) advance() bool {
	return st.update(func(s *Session) {
		if len(s.Players) > 0 {
			s.CurrentPlayerIndex = (s.CurrentPlayerIndex + 1) % len(s.Players)
		}
		s.PendingDice = nil
		if s.CurrentPlayerIndex == 0 {
			s.Round++
		}
		s.Turn = TurnAwaitingRoll
	})
}

// replaceProperties 用后端快照覆盖地产，并据此校正每个玩家的持有列表
func (st *Store) replaceProperties(props []dto.PropertyResponse) bool {
	return st.update(func(s *Session) {
		s.Properties = make(map[int]Property, len(props))
		owned := make(map[string][]int)
		for _, p := range props {
			s.Properties[p.Index] = Property{Index: p.Index, Price: p.Price, OwnerID: p.Owner}
			if p.Owner != "" {
				owned[p.Owner] = append(owned[p.Owner], p.Index)
			}
		}
		for i := range s.Players {
			list := owned[s.Players[i].ID]
			sort.Ints(list)
			if list == nil {
				list = []int{}
			}
			s.Players[i].OwnedProperties = list
		}
		s.Stale = false
	})
}

func (st *Store) markStale() bool {
	return st.update(func(s *Session) { s.Stale = true })
}

func (st *Store) beginSettlement(settlement Settlement) bool {
	return st.update(func(s *Session) {
		s.Phase = PhaseEnding
		s.Turn = TurnNone
		s.Settlement = &settlement
		s.SettlementError = ""
	})
}

func (st *Store) setSettlementError(msg string) bool {
	return st.update(func(s *Session) { s.SettlementError = msg })
}

func (st *Store) reset() bool {
	return st.update(func(s *Session) { *s = emptySession() })
}

func newPlayer(resp *dto.PlayerResponse) Player {
	return Player{
		ID:              resp.ID,
		WalletAddr:      resp.WalletAddr,
		USDTLocked:      decimal.NewFromFloat(resp.USDTLocked),
		GameCoins:       resp.GameCoins,
		Position:        resp.Position,
		OwnedProperties: []int{},
	}
}

func removeIndex(list []int, index int) []int {
	out := list[:0]
	for _, i := range list {
		if i != index {
			out = append(out, i)
		}
	}
	return out
}
