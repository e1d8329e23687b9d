package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go-monopoly/dto"
	"go-monopoly/entities"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySettlements struct {
	saved []entities.Settlement
	err   error
}

func (m *memorySettlements) Save(ctx context.Context, s entities.Settlement) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, s)
	return nil
}

func (m *memorySettlements) Recent(ctx context.Context, limit int) ([]entities.Settlement, error) {
	return m.saved, nil
}

func newTestService(t *testing.T, settlements SettlementStore) (*GameService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewGameService(rdb, Options{BoardSize: 16, Seed: 42, Settlements: settlements}), mr
}

func join(t *testing.T, s *GameService, id string, usdt float64) *dto.PlayerResponse {
	t.Helper()
	p, err := s.Join(context.Background(), dto.JoinRequest{PlayerID: id, USDTAmount: usdt, WalletAddr: id})
	require.NoError(t, err)
	return p
}

func TestJoinConvertsStake(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	p := join(t, s, "alice", 5)
	assert.Equal(t, int64(4000), p.GameCoins)
	assert.Zero(t, p.Position)

	_, err := s.Join(ctx, dto.JoinRequest{PlayerID: "alice", USDTAmount: 5, WalletAddr: "alice"})
	assert.ErrorIs(t, err, ErrPlayerExists)

	_, err = s.Join(ctx, dto.JoinRequest{PlayerID: "bob", USDTAmount: 2.5, WalletAddr: "bob"})
	assert.ErrorIs(t, err, ErrMinimumStake)
	assert.True(t, IsRejection(err))

	info, err := s.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.GameStatusPlaying, info.Status)
	assert.InDelta(t, 4.0, info.TotalUSDT, 1e-9)
	assert.Len(t, info.GameID, 8)
}

func TestPropertiesSeeded(t *testing.T) {
	s, _ := newTestService(t, nil)

	props, err := s.Properties(context.Background())
	require.NoError(t, err)
	require.Len(t, props, 16)
	for i, p := range props {
		assert.Equal(t, i, p.Index)
		assert.GreaterOrEqual(t, p.Price, int64(minPrice))
		assert.LessOrEqual(t, p.Price, int64(maxPrice))
		assert.Empty(t, p.Owner)
	}
}

func TestRollWrapsAndRaisesPrices(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()
	join(t, s, "alice", 3)

	before, err := s.Properties(ctx)
	require.NoError(t, err)

	position := 0
	for i := 0; i < priceStepMoves; i++ {
		res, err := s.Roll(ctx, "alice")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Dice, 1)
		assert.LessOrEqual(t, res.Dice, 6)
		position = (position + res.Dice) % 16
		assert.Equal(t, position, res.Position)
	}

	after, err := s.Properties(ctx)
	require.NoError(t, err)
	for i := range before {
		assert.Equal(t, int64(float64(before[i].Price)*1.1), after[i].Price)
	}

	_, err = s.Roll(ctx, "nobody")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestBuyAndSell(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()
	join(t, s, "alice", 3)
	join(t, s, "bob", 3)

	props, err := s.Properties(ctx)
	require.NoError(t, err)
	price := props[4].Price

	res, err := s.Buy(ctx, "alice", 4)
	require.NoError(t, err)
	assert.Equal(t, price, res.Price)

	_, err = s.Buy(ctx, "bob", 4)
	assert.ErrorIs(t, err, ErrAlreadyOwned)
	_, err = s.Sell(ctx, "bob", 4)
	assert.ErrorIs(t, err, ErrNotOwner)
	_, err = s.Buy(ctx, "bob", 16)
	assert.ErrorIs(t, err, ErrInvalidIndex)

	res, err = s.Sell(ctx, "alice", 4)
	require.NoError(t, err)
	assert.Equal(t, price, res.Price)

	alice, err := s.getPlayer(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2400-price+price/2, alice.GameCoins)

	props, err = s.Properties(ctx)
	require.NoError(t, err)
	assert.Empty(t, props[4].Owner)
}

func TestBuyInsufficientCoins(t *testing.T) {
	s, mr := newTestService(t, nil)
	ctx := context.Background()
	join(t, s, "alice", 3)

	data, _ := json.Marshal(entities.Player{ID: "alice", WalletAddr: "alice", GameCoins: 1})
	mr.HSet(playersKey, "alice", string(data))

	_, err := s.Buy(ctx, "alice", 0)
	assert.ErrorIs(t, err, ErrInsufficient)
}

func TestEndSplitsPoolAndStartsNewGame(t *testing.T) {
	history := &memorySettlements{}
	s, mr := newTestService(t, history)
	ctx := context.Background()
	join(t, s, "alice", 3)
	join(t, s, "bob", 5)

	// 手动调成 1:3 的金币比例
	for id, coins := range map[string]int64{"alice": 1000, "bob": 3000} {
		data, _ := json.Marshal(entities.Player{ID: id, WalletAddr: id, GameCoins: coins})
		mr.HSet(playersKey, id, string(data))
	}
	before, err := s.Info(ctx)
	require.NoError(t, err)

	res, err := s.End(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", res.Winner)
	require.Len(t, res.USDTPayouts, 2)
	assert.Equal(t, dto.Payout{WalletAddr: "alice", USDT: 1.6}, res.USDTPayouts[0])
	assert.Equal(t, dto.Payout{WalletAddr: "bob", USDT: 4.8}, res.USDTPayouts[1])

	require.Len(t, history.saved, 1)
	assert.Equal(t, before.GameID, history.saved[0].GameID)
	assert.Equal(t, 2, history.saved[0].Players)

	after, err := s.Info(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before.GameID, after.GameID)
	assert.Equal(t, entities.GameStatusWaiting, after.Status)
	assert.False(t, mr.Exists(playersKey))

	_, err = s.End(ctx)
	assert.ErrorIs(t, err, ErrNoPlayers)
}

func TestEndSurvivesHistoryFailure(t *testing.T) {
	s, _ := newTestService(t, &memorySettlements{err: errors.New("mysql down")})
	join(t, s, "alice", 3)

	res, err := s.End(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Winner)
	assert.Equal(t, 2.4, res.USDTPayouts[0].USDT)
}

func TestPayoutsWhenNoCoinsLeft(t *testing.T) {
	got := payouts([]entities.Player{
		{WalletAddr: "a", USDTLocked: 3},
		{WalletAddr: "b", USDTLocked: 5},
	}, 6.4)
	assert.Equal(t, []dto.Payout{{WalletAddr: "a", USDT: 2.4}, {WalletAddr: "b", USDT: 4}}, got)
}
