package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go-monopoly/dto"
	"go-monopoly/entities"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

const (
	infoKey       = "game:info"
	playersKey    = "game:players"
	propertiesKey = "game:properties"

	operatorShare  = 0.2
	coinsPerUSDT   = 1000
	priceStepMoves = 5 // 每 5 次移动地价上涨 10%
	minPrice       = 5
	maxPrice       = 20
)

// 以下错误是规则拒绝，对外返回 400
var (
	ErrMinimumStake   = errors.New("Minimum stake not met")
	ErrPlayerExists   = errors.New("Player already joined")
	ErrPlayerNotFound = errors.New("Player not found")
	ErrInvalidIndex   = errors.New("Invalid property index")
	ErrAlreadyOwned   = errors.New("Property already owned")
	ErrInsufficient   = errors.New("Insufficient coins")
	ErrNotOwner       = errors.New("You do not own this property")
	ErrNoPlayers      = errors.New("No players in game")
)

var rejections = []error{
	ErrMinimumStake, ErrPlayerExists, ErrPlayerNotFound, ErrInvalidIndex,
	ErrAlreadyOwned, ErrInsufficient, ErrNotOwner, ErrNoPlayers,
}

func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

// SettlementStore 由 repository.SettlementRepo 实现
type SettlementStore interface {
	Save(ctx context.Context, s entities.Settlement) error
	Recent(ctx context.Context, limit int) ([]entities.Settlement, error)
}

type Options struct {
	BoardSize    int
	MinimumStake float64
	Settlements  SettlementStore // 可为空
	Logger       *zap.Logger
	Seed         uint64
}

// GameService 本地沙盒后端：同一时间只有一局，数据放在 Redis 的 game:* 下
type GameService struct {
	rdb  *redis.Client
	opts Options
	log  *zap.Logger

	mu  sync.Mutex // 串行化所有读改写，同时保护 rng
	rng *rand.Rand
}

func NewGameService(rdb *redis.Client, opts Options) *GameService {
	if opts.MinimumStake == 0 {
		opts.MinimumStake = 3
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &GameService{
		rdb:  rdb,
		opts: opts,
		log:  opts.Logger,
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}
}

// Info 当前对局信息，不存在时新开一局
func (s *GameService) Info(ctx context.Context) (entities.GameInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureGame(ctx)
}

func (s *GameService) ensureGame(ctx context.Context) (entities.GameInfo, error) {
	hash, err := s.rdb.HGetAll(ctx, infoKey).Result()
	if err != nil {
		return entities.GameInfo{}, fmt.Errorf("获取对局信息失败: %w", err)
	}
	if len(hash) == 0 {
		return s.newGame(ctx)
	}
	var info entities.GameInfo
	if err := decodeHash(hash, &info); err != nil {
		return entities.GameInfo{}, fmt.Errorf("对局信息解析失败: %w", err)
	}
	return info, nil
}

// newGame 清空上一局并随机生成地价
func (s *GameService) newGame(ctx context.Context) (entities.GameInfo, error) {
	info := entities.GameInfo{
		GameID: strings.ReplaceAll(uuid.New().String(), "-", "")[:8],
		Status: entities.GameStatusWaiting,
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, infoKey, playersKey, propertiesKey)
	pipe.HSet(ctx, infoKey, map[string]interface{}{
		"gameID":    info.GameID,
		"status":    string(info.Status),
		"moves":     0,
		"totalUSDT": 0,
	})
	for i := 0; i < s.opts.BoardSize; i++ {
		prop := entities.Property{Index: i, Price: int64(minPrice + s.rng.Intn(maxPrice-minPrice+1))}
		data, err := JsonMarshal(prop)
		if err != nil {
			return info, err
		}
		pipe.HSet(ctx, propertiesKey, strconv.Itoa(i), data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return info, fmt.Errorf("初始化对局失败: %w", err)
	}
	s.log.Info("🆕 新对局", zap.String("gameID", info.GameID), zap.Int("properties", s.opts.BoardSize))
	return info, nil
}

func (s *GameService) getPlayer(ctx context.Context, id string) (*entities.Player, error) {
	data, err := s.rdb.HGet(ctx, playersKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("获取玩家失败: %w", err)
	}
	var p entities.Player
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("玩家数据解析失败: %w", err)
	}
	return &p, nil
}

func (s *GameService) getProperty(ctx context.Context, index int) (*entities.Property, error) {
	if index < 0 || index >= s.opts.BoardSize {
		return nil, ErrInvalidIndex
	}
	data, err := s.rdb.HGet(ctx, propertiesKey, strconv.Itoa(index)).Result()
	if err != nil {
		return nil, fmt.Errorf("获取地产失败: %w", err)
	}
	var p entities.Property
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("地产数据解析失败: %w", err)
	}
	return &p, nil
}

func (s *GameService) listPlayers(ctx context.Context) ([]entities.Player, error) {
	hash, err := s.rdb.HGetAll(ctx, playersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("获取玩家列表失败: %w", err)
	}
	players := make([]entities.Player, 0, len(hash))
	for _, data := range hash {
		var p entities.Player
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("玩家数据解析失败: %w", err)
		}
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players, nil
}

func (s *GameService) listProperties(ctx context.Context) ([]entities.Property, error) {
	hash, err := s.rdb.HGetAll(ctx, propertiesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("获取地产列表失败: %w", err)
	}
	props := make([]entities.Property, 0, len(hash))
	for _, data := range hash {
		var p entities.Property
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("地产数据解析失败: %w", err)
		}
		props = append(props, p)
	}
	sort.Slice(props, func(i, j int) bool { return props[i].Index < props[j].Index })
	return props, nil
}

// Join 扣除 20% 运营份额，其余按 1 USDT = 1000 金币兑换
func (s *GameService) Join(ctx context.Context, req dto.JoinRequest) (*dto.PlayerResponse, error) {
	if req.USDTAmount < s.opts.MinimumStake {
		return nil, fmt.Errorf("%w: %.2f < %.2f", ErrMinimumStake, req.USDTAmount, s.opts.MinimumStake)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ensureGame(ctx); err != nil {
		return nil, err
	}
	exists, err := s.rdb.HExists(ctx, playersKey, req.PlayerID).Result()
	if err != nil {
		return nil, fmt.Errorf("查询玩家失败: %w", err)
	}
	if exists {
		return nil, ErrPlayerExists
	}

	pool := decimal.NewFromFloat(req.USDTAmount).Mul(decimal.NewFromFloat(1 - operatorShare))
	player := entities.Player{
		ID:         req.PlayerID,
		USDTLocked: req.USDTAmount,
		GameCoins:  pool.Mul(decimal.NewFromInt(coinsPerUSDT)).IntPart(),
		WalletAddr: req.WalletAddr,
	}
	data, err := JsonMarshal(player)
	if err != nil {
		return nil, err
	}
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, playersKey, player.ID, data)
	pipe.HIncrByFloat(ctx, infoKey, "totalUSDT", pool.InexactFloat64())
	pipe.HSet(ctx, infoKey, "status", string(entities.GameStatusPlaying))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("保存玩家失败: %w", err)
	}
	s.log.Info("✅ 玩家加入", zap.String("player", player.ID), zap.Int64("coins", player.GameCoins))
	return toPlayerResponse(player), nil
}

func (s *GameService) Properties(ctx context.Context) ([]dto.PropertyResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ensureGame(ctx); err != nil {
		return nil, err
	}
	props, err := s.listProperties(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PropertyResponse, len(props))
	for i, p := range props {
		out[i] = dto.PropertyResponse{Index: p.Index, Price: p.Price, Owner: p.Owner}
	}
	return out, nil
}

// Roll 移动玩家，累计移动次数达到 5 的倍数时全场地价上涨 10%
func (s *GameService) Roll(ctx context.Context, playerID string) (*dto.RollResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, err := s.getPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	dice := s.rng.Intn(6) + 1
	player.Position = (player.Position + dice) % s.opts.BoardSize
	if err := s.savePlayer(ctx, player); err != nil {
		return nil, err
	}

	moves, err := s.rdb.HIncrBy(ctx, infoKey, "moves", 1).Result()
	if err != nil {
		return nil, fmt.Errorf("更新移动次数失败: %w", err)
	}
	if moves%priceStepMoves == 0 {
		if err := s.raisePrices(ctx); err != nil {
			return nil, err
		}
	}
	s.log.Debug("🎲 掷骰", zap.String("player", playerID), zap.Int("dice", dice), zap.Int("position", player.Position))
	return &dto.RollResponse{PlayerID: playerID, Position: player.Position, Dice: dice}, nil
}

func (s *GameService) raisePrices(ctx context.Context) error {
	props, err := s.listProperties(ctx)
	if err != nil {
		return err
	}
	pipe := s.rdb.Pipeline()
	for _, p := range props {
		p.Price = int64(float64(p.Price) * 1.1)
		data, err := JsonMarshal(p)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, propertiesKey, strconv.Itoa(p.Index), data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("地价上涨写入失败: %w", err)
	}
	s.log.Info("📈 地价上涨 10%")
	return nil
}

func (s *GameService) Buy(ctx context.Context, playerID string, index int) (*dto.TradeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, err := s.getPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	prop, err := s.getProperty(ctx, index)
	if err != nil {
		return nil, err
	}
	if prop.Owner != "" {
		return nil, ErrAlreadyOwned
	}
	if player.GameCoins < prop.Price {
		return nil, ErrInsufficient
	}

	player.GameCoins -= prop.Price
	prop.Owner = playerID
	if err := s.saveTrade(ctx, player, prop); err != nil {
		return nil, err
	}
	return &dto.TradeResponse{Message: "Property bought", Price: prop.Price}, nil
}

// Sell 按当前地价返还一半金币
func (s *GameService) Sell(ctx context.Context, playerID string, index int) (*dto.TradeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, err := s.getPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	prop, err := s.getProperty(ctx, index)
	if err != nil {
		return nil, err
	}
	if prop.Owner != playerID {
		return nil, ErrNotOwner
	}

	player.GameCoins += prop.Price / 2
	prop.Owner = ""
	if err := s.saveTrade(ctx, player, prop); err != nil {
		return nil, err
	}
	return &dto.TradeResponse{Message: "Property sold", Price: prop.Price}, nil
}

// End 按金币占比瓜分 80% 奖池，记录结算后开新局
func (s *GameService) End(ctx context.Context) (*dto.EndResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.ensureGame(ctx)
	if err != nil {
		return nil, err
	}
	players, err := s.listPlayers(ctx)
	if err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return nil, ErrNoPlayers
	}

	res := &dto.EndResponse{USDTPayouts: payouts(players, info.TotalUSDT)}
	winner := players[0]
	for _, p := range players[1:] {
		if p.GameCoins > winner.GameCoins {
			winner = p
		}
	}
	res.Winner = winner.ID

	s.record(ctx, info, res, len(players))
	if _, err := s.newGame(ctx); err != nil {
		return nil, err
	}
	s.log.Info("🏁 对局结束", zap.String("gameID", info.GameID), zap.String("winner", res.Winner))
	return res, nil
}

// payouts 截断到 6 位小数，保证总额不超过奖池
func payouts(players []entities.Player, totalUSDT float64) []dto.Payout {
	// Redis 里累加的浮点数先还原成 6 位精度
	pool := decimal.NewFromFloat(totalUSDT).Round(6)
	var totalCoins int64
	for _, p := range players {
		totalCoins += p.GameCoins
	}

	out := make([]dto.Payout, 0, len(players))
	for _, p := range players {
		var share decimal.Decimal
		if totalCoins > 0 {
			share = pool.Mul(decimal.NewFromInt(p.GameCoins)).Div(decimal.NewFromInt(totalCoins))
		} else {
			// 全员金币归零时退回各自的奖池份额
			share = decimal.NewFromFloat(p.USDTLocked).Mul(decimal.NewFromFloat(1 - operatorShare))
		}
		out = append(out, dto.Payout{WalletAddr: p.WalletAddr, USDT: share.Truncate(6).InexactFloat64()})
	}
	return out
}

// record 结算历史写失败只记日志，不影响本局结算
func (s *GameService) record(ctx context.Context, info entities.GameInfo, res *dto.EndResponse, players int) {
	if s.opts.Settlements == nil {
		return
	}
	data, err := JsonMarshal(res.USDTPayouts)
	if err != nil {
		s.log.Warn("结算记录序列化失败", zap.Error(err))
		return
	}
	err = s.opts.Settlements.Save(ctx, entities.Settlement{
		GameID:    info.GameID,
		Winner:    res.Winner,
		Players:   players,
		TotalUSDT: info.TotalUSDT,
		Payouts:   data,
		EndedAt:   time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("❌ 写入结算历史失败", zap.String("gameID", info.GameID), zap.Error(err))
	}
}

// History 最近的结算记录；未配置 MySQL 时为空
func (s *GameService) History(ctx context.Context, limit int) ([]entities.Settlement, error) {
	if s.opts.Settlements == nil {
		return []entities.Settlement{}, nil
	}
	return s.opts.Settlements.Recent(ctx, limit)
}

func (s *GameService) savePlayer(ctx context.Context, p *entities.Player) error {
	data, err := JsonMarshal(p)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, playersKey, p.ID, data).Err(); err != nil {
		return fmt.Errorf("保存玩家失败: %w", err)
	}
	return nil
}

func (s *GameService) saveTrade(ctx context.Context, player *entities.Player, prop *entities.Property) error {
	playerData, err := JsonMarshal(player)
	if err != nil {
		return err
	}
	propData, err := JsonMarshal(prop)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, playersKey, player.ID, playerData)
	pipe.HSet(ctx, propertiesKey, strconv.Itoa(prop.Index), propData)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("保存交易失败: %w", err)
	}
	return nil
}

func toPlayerResponse(p entities.Player) *dto.PlayerResponse {
	return &dto.PlayerResponse{
		ID:         p.ID,
		USDTLocked: p.USDTLocked,
		GameCoins:  p.GameCoins,
		WalletAddr: p.WalletAddr,
		Position:   p.Position,
	}
}
