// Package session 是客户端的对局状态机：加入 → 回合循环（掷骰 → 买/卖 → 下一位）→ 结算。
//
// 同一时刻只处理一个操作，进行中再提交的操作会立即返回 ErrBusy，不排队。
// 每个已生效的网络操作之后都会重新拉取地产快照。
package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"go-monopoly/board"
	"go-monopoly/chain"
	"go-monopoly/dto"
	"go-monopoly/gameapi"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Chain 由 *chain.Client 实现
type Chain interface {
	Account() string
	Escrow() string
	Allowance(ctx context.Context, owner, spender string) (*big.Int, error)
	Approve(ctx context.Context, spender string, amount *big.Int) error
	JoinGame(ctx context.Context, amount *big.Int) error
	Distribute(ctx context.Context, addresses []string, shares []*big.Int) error
	TxStatus(ctx context.Context, hash string) (chain.TxStatus, error)
	Nonce(ctx context.Context) (uint64, error)
}

// GameAPI 由 *gameapi.Client 实现
type GameAPI interface {
	Join(ctx context.Context, req dto.JoinRequest) (*dto.PlayerResponse, error)
	Properties(ctx context.Context) ([]dto.PropertyResponse, error)
	Roll(ctx context.Context, playerID string) (*dto.RollResponse, error)
	Buy(ctx context.Context, playerID string, index int) (*dto.TradeResponse, error)
	Sell(ctx context.Context, playerID string, index int) (*dto.TradeResponse, error)
	End(ctx context.Context) (*dto.EndResponse, error)
}

type Config struct {
	Board         *board.Geometry
	MinimumStake  decimal.Decimal
	TokenDecimals int32
	// RollDelay 掷骰动画的最短时长，只用于界面节奏
	RollDelay time.Duration
	Colors    ColorAssigner
	Logger    *zap.Logger
	OnChange  func(View)
}

// joinProgress 记录某个账户加入流程在链上已完成的步骤，重试时跳过
type joinProgress struct {
	approved        *big.Int
	approvalUnknown bool
	joinTx          string
	joinNonce       *uint64 // 质押发送结果未知且没有交易哈希时，发送前的 nonce
	staked          *big.Int
}

type Controller struct {
	chain  Chain
	api    GameAPI
	cfg    Config
	store  *Store
	colors ColorAssigner
	log    *zap.Logger

	busy      atomic.Bool
	done      chan struct{}
	closeOnce sync.Once

	// 以下字段只在持有 busy 时读写
	progress    map[string]*joinProgress
	payoutTx    string
	payoutNonce *uint64
}

func NewController(c Chain, api GameAPI, cfg Config) (*Controller, error) {
	if cfg.Board == nil {
		return nil, fmt.Errorf("%w: 未指定棋盘", board.ErrConfiguration)
	}
	if cfg.MinimumStake.IsZero() {
		cfg.MinimumStake = decimal.NewFromInt(3)
	}
	if cfg.TokenDecimals == 0 {
		cfg.TokenDecimals = chain.DefaultTokenDecimals
	}
	if cfg.Colors == nil {
		cfg.Colors = NewColorTable(uint64(time.Now().UnixNano()))
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Controller{
		chain:    c,
		api:      api,
		cfg:      cfg,
		store:    NewStore(),
		colors:   cfg.Colors,
		log:      cfg.Logger,
		done:     make(chan struct{}),
		progress: make(map[string]*joinProgress),
	}, nil
}

// Snapshot 当前会话及展示信息
func (c *Controller) Snapshot() View {
	s := c.store.Snapshot()
	v := View{
		Session:     s,
		Colors:      c.colors.All(),
		Coordinates: make(map[string]board.Coordinate, len(s.Players)),
		BoardSize:   c.cfg.Board.Size(),
		Busy:        c.busy.Load(),
	}
	for _, p := range s.Players {
		if coord, err := c.cfg.Board.ToCoordinate(p.Position); err == nil {
			v.Coordinates[p.ID] = coord
		}
	}
	return v
}

// Close 界面销毁时调用；进行中的操作结束后不会再写入会话
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.store.close()
	})
}

func (c *Controller) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Controller) acquire() error {
	if c.closed() {
		return ErrClosed
	}
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (c *Controller) release() {
	c.busy.Store(false)
	c.notify()
}

func (c *Controller) notify() {
	if c.cfg.OnChange == nil || c.closed() {
		return
	}
	c.cfg.OnChange(c.Snapshot())
}

// Join 授权 → 质押 → 后端登记。任一步失败都不会加入玩家，已在链上完成的步骤留给重试复用。
func (c *Controller) Join(ctx context.Context, amount decimal.Decimal) error {
	if amount.LessThan(c.cfg.MinimumStake) {
		return fmt.Errorf("%w: %s < %s", ErrInvalidAmount, amount, c.cfg.MinimumStake)
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	s := c.store.Snapshot()
	opening := s.Phase == PhaseIdle
	if !opening && !(s.Phase == PhaseInProgress && s.Turn == TurnAwaitingRoll) {
		return fmt.Errorf("%w: join 于 %s/%s", ErrIllegalPhase, s.Phase, s.Turn)
	}
	account := c.chain.Account()
	if account == "" {
		return chain.ErrNotConnected
	}
	if _, ok := s.Player(account); ok {
		return ErrAlreadyJoined
	}

	if opening {
		c.store.setPhase(PhaseJoining)
		c.notify()
	}
	player, err := c.join(ctx, account, amount)
	if err != nil {
		if opening {
			c.store.setPhase(PhaseIdle)
		}
		c.log.Warn("❌ 加入对局失败", zap.String("account", account), zap.Error(err))
		return err
	}

	c.colors.Assign(player.ID)
	if !c.store.addPlayer(player) {
		return ErrClosed
	}
	c.log.Info("✅ 玩家加入", zap.String("player", player.ID), zap.Int64("coins", player.GameCoins))
	return c.refresh(ctx)
}

func (c *Controller) join(ctx context.Context, account string, amount decimal.Decimal) (Player, error) {
	units := chain.ToBaseUnits(amount, c.cfg.TokenDecimals)
	if err := c.stake(ctx, account, units); err != nil {
		return Player{}, err
	}
	resp, err := c.api.Join(ctx, dto.JoinRequest{
		PlayerID:   account,
		USDTAmount: amount.InexactFloat64(),
		WalletAddr: account,
	})
	if err != nil {
		return Player{}, err
	}
	if !c.cfg.Board.Contains(resp.Position) {
		return Player{}, fmt.Errorf("%w: 初始位置 %d", ErrBadResponse, resp.Position)
	}
	delete(c.progress, account)
	return newPlayer(resp), nil
}

func (c *Controller) stake(ctx context.Context, account string, units *big.Int) error {
	p, ok := c.progress[account]
	if !ok {
		p = &joinProgress{}
		c.progress[account] = p
	}

	if p.staked != nil {
		if p.staked.Cmp(units) != 0 {
			return fmt.Errorf("%w: 链上已质押 %s，需以相同金额完成加入", ErrInvalidAmount,
				chain.FromBaseUnits(p.staked, c.cfg.TokenDecimals))
		}
		c.log.Info("复用已完成的质押", zap.String("account", account))
		return nil
	}

	// 上次质押交易结果未知，先查链上状态再决定是否重发
	if p.joinTx != "" {
		status, err := c.chain.TxStatus(ctx, p.joinTx)
		if err != nil {
			return err
		}
		switch status {
		case chain.TxSucceeded:
			p.staked, p.joinTx, p.approved = units, "", nil
			return nil
		case chain.TxPending:
			return fmt.Errorf("%w: 质押交易 %s 仍未确认", chain.ErrChainTimeout, p.joinTx)
		case chain.TxReverted:
			p.joinTx = ""
		}
	}

	if p.joinNonce != nil {
		if err := c.checkUnsent(ctx, "joinGame", *p.joinNonce); err != nil {
			return err
		}
		p.joinNonce = nil
	}

	if err := c.ensureAllowance(ctx, account, p, units); err != nil {
		return err
	}
	nonce, err := c.chain.Nonce(ctx)
	if err != nil {
		return err
	}
	if err := c.chain.JoinGame(ctx, units); err != nil {
		if hash, ok := chain.PendingHash(err); ok {
			p.joinTx = hash.Hex()
		} else if errors.Is(err, chain.ErrOutcomeUnknown) {
			p.joinNonce = &nonce
		}
		return err
	}
	p.staked, p.approved = units, nil
	return nil
}

// checkUnsent 发送结果未知的交易只有在 nonce 没有变化（确认没有广播）时才允许重发
func (c *Controller) checkUnsent(ctx context.Context, op string, before uint64) error {
	current, err := c.chain.Nonce(ctx)
	if err != nil {
		return err
	}
	if current != before {
		c.log.Warn("⚠️ 账户 nonce 已变化，不自动重发", zap.String("op", op), zap.Uint64("before", before), zap.Uint64("current", current))
		return fmt.Errorf("%w: %s 可能已广播（nonce %d → %d），需在链上确认后处理", chain.ErrOutcomeUnknown, op, before, current)
	}
	c.log.Info("确认交易未广播，重新发送", zap.String("op", op), zap.Uint64("nonce", before))
	return nil
}

func (c *Controller) ensureAllowance(ctx context.Context, account string, p *joinProgress, units *big.Int) error {
	if p.approvalUnknown {
		allowance, err := c.chain.Allowance(ctx, account, c.chain.Escrow())
		if err != nil {
			return err
		}
		p.approved, p.approvalUnknown = allowance, false
	}
	if p.approved != nil && p.approved.Cmp(units) >= 0 {
		c.log.Info("复用已有授权", zap.String("account", account), zap.String("allowance", p.approved.String()))
		return nil
	}
	if err := c.chain.Approve(ctx, c.chain.Escrow(), units); err != nil {
		if !errors.Is(err, chain.ErrStakeRejected) {
			p.approvalUnknown = true
		}
		return err
	}
	p.approved = units
	return nil
}

// Roll 为当前玩家掷骰。动画时长内不接受其他操作，只有 Close 能打断等待。
func (c *Controller) Roll(ctx context.Context) (int, error) {
	if err := c.acquire(); err != nil {
		return 0, err
	}
	defer c.release()

	s := c.store.Snapshot()
	player, ok := s.CurrentPlayer()
	if !ok || s.Turn != TurnAwaitingRoll {
		return 0, fmt.Errorf("%w: roll 于 %s/%s", ErrIllegalPhase, s.Phase, s.Turn)
	}

	c.store.setTurn(TurnRolling)
	c.notify()
	started := time.Now()

	resp, err := c.api.Roll(ctx, player.ID)
	if err == nil && (resp.Dice < 1 || resp.Dice > 6 || !c.cfg.Board.Contains(resp.Position)) {
		err = fmt.Errorf("%w: dice=%d position=%d", ErrBadResponse, resp.Dice, resp.Position)
	}
	if err != nil {
		c.store.setTurn(TurnAwaitingRoll)
		return 0, err
	}

	if wait := c.cfg.RollDelay - time.Since(started); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-c.done:
			timer.Stop()
			return 0, ErrClosed
		}
	}
	if !c.store.applyRoll(player.ID, resp.Position, resp.Dice) {
		return 0, ErrClosed
	}
	c.log.Info("🎲 掷骰", zap.String("player", player.ID), zap.Int("dice", resp.Dice), zap.Int("position", resp.Position))
	return resp.Dice, c.refresh(ctx)
}

// Buy 购买当前玩家所在格子，本地能判断的拒绝条件不发请求
func (c *Controller) Buy(ctx context.Context) (int64, error) {
	if err := c.acquire(); err != nil {
		return 0, err
	}
	defer c.release()

	s := c.store.Snapshot()
	player, ok := s.CurrentPlayer()
	if !ok || s.Turn != TurnAwaitingAction {
		return 0, fmt.Errorf("%w: buy 于 %s/%s", ErrIllegalPhase, s.Phase, s.Turn)
	}
	prop, ok := s.Properties[player.Position]
	switch {
	case !ok:
		return 0, fmt.Errorf("%w: 格子 %d 不可购买", ErrPurchaseRejected, player.Position)
	case prop.OwnerID != "":
		return 0, fmt.Errorf("%w: 格子 %d 已有主人", ErrPurchaseRejected, player.Position)
	case player.GameCoins < prop.Price:
		return 0, fmt.Errorf("%w: 金币不足 %d < %d", ErrPurchaseRejected, player.GameCoins, prop.Price)
	}

	resp, err := c.api.Buy(ctx, player.ID, player.Position)
	if err != nil {
		return 0, rejection(ErrPurchaseRejected, err)
	}
	if !c.store.applyBuy(player.ID, player.Position, resp.Price) {
		return 0, ErrClosed
	}
	c.log.Info("🏠 购买地产", zap.String("player", player.ID), zap.Int("index", player.Position), zap.Int64("price", resp.Price))
	return resp.Price, c.refresh(ctx)
}

// Sell 出售当前所在且自己持有的地产，按后端当前价格返还一半
func (c *Controller) Sell(ctx context.Context) (int64, error) {
	if err := c.acquire(); err != nil {
		return 0, err
	}
	defer c.release()

	s := c.store.Snapshot()
	player, ok := s.CurrentPlayer()
	if !ok || s.Turn != TurnAwaitingAction {
		return 0, fmt.Errorf("%w: sell 于 %s/%s", ErrIllegalPhase, s.Phase, s.Turn)
	}
	if !player.Owns(player.Position) {
		return 0, fmt.Errorf("%w: 未持有格子 %d", ErrSaleRejected, player.Position)
	}

	resp, err := c.api.Sell(ctx, player.ID, player.Position)
	if err != nil {
		return 0, rejection(ErrSaleRejected, err)
	}
	if !c.store.applySell(player.ID, player.Position, resp.Price) {
		return 0, ErrClosed
	}
	c.log.Info("出售地产", zap.String("player", player.ID), zap.Int("index", player.Position), zap.Int64("refund", resp.Price/2))
	return resp.Price / 2, c.refresh(ctx)
}

// NextTurn 结束当前玩家回合，不涉及网络
func (c *Controller) NextTurn() error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	s := c.store.Snapshot()
	if s.Phase != PhaseInProgress || s.Turn != TurnAwaitingAction {
		return fmt.Errorf("%w: next_turn 于 %s/%s", ErrIllegalPhase, s.Phase, s.Turn)
	}
	if !c.store.advance() {
		return ErrClosed
	}
	return nil
}

// End 后端结算后在链上分账。分账失败时停留在 PhaseEnding 并缓存结算结果，
// 再次调用只重试分账，不会重复请求 /end。
func (c *Controller) End(ctx context.Context) (*Settlement, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()

	s := c.store.Snapshot()
	switch s.Phase {
	case PhaseInProgress:
		resp, err := c.api.End(ctx)
		if err != nil {
			return nil, err
		}
		settlement, err := newSettlement(resp)
		if err != nil {
			return nil, err
		}
		if !c.store.beginSettlement(settlement) {
			return nil, ErrClosed
		}
		c.notify()
		c.log.Info("后端已结算", zap.String("winner", settlement.Winner), zap.Int("payouts", len(settlement.Payouts)))
		c.refreshQuietly(ctx)
	case PhaseEnding:
		c.log.Info("重试链上分账")
	default:
		return nil, fmt.Errorf("%w: end 于 %s", ErrIllegalPhase, s.Phase)
	}
	return c.settle(ctx)
}

func (c *Controller) settle(ctx context.Context) (*Settlement, error) {
	s := c.store.Snapshot()
	settlement := s.Settlement

	if c.payoutTx != "" {
		status, err := c.chain.TxStatus(ctx, c.payoutTx)
		if err != nil {
			return nil, c.settlementFailed(err)
		}
		switch status {
		case chain.TxSucceeded:
			c.payoutTx = ""
			return settlement, c.finish(settlement)
		case chain.TxPending:
			return nil, c.settlementFailed(fmt.Errorf("%w: 分账交易 %s 仍未确认", chain.ErrChainTimeout, c.payoutTx))
		case chain.TxReverted:
			c.payoutTx = ""
		}
	}

	if c.payoutNonce != nil {
		if err := c.checkUnsent(ctx, "distribute", *c.payoutNonce); err != nil {
			return nil, c.settlementFailed(err)
		}
		c.payoutNonce = nil
	}

	addresses := make([]string, 0, len(settlement.Payouts))
	shares := make([]*big.Int, 0, len(settlement.Payouts))
	for _, p := range settlement.Payouts {
		addresses = append(addresses, p.WalletAddr)
		shares = append(shares, chain.ToBaseUnits(p.USDT, c.cfg.TokenDecimals))
	}
	if len(addresses) > 0 {
		nonce, err := c.chain.Nonce(ctx)
		if err != nil {
			return nil, c.settlementFailed(err)
		}
		if err := c.chain.Distribute(ctx, addresses, shares); err != nil {
			if hash, ok := chain.PendingHash(err); ok {
				c.payoutTx = hash.Hex()
			} else if errors.Is(err, chain.ErrOutcomeUnknown) {
				c.payoutNonce = &nonce
			}
			return nil, c.settlementFailed(err)
		}
	}
	return settlement, c.finish(settlement)
}

func (c *Controller) settlementFailed(err error) error {
	c.store.setSettlementError(err.Error())
	c.log.Error("❌ 链上分账失败，等待重试", zap.Error(err))
	return err
}

// finish 短暂进入 Settled 让界面看到结果，随后清空回到 Idle
func (c *Controller) finish(settlement *Settlement) error {
	if !c.store.setPhase(PhaseSettled) {
		return ErrClosed
	}
	c.notify()
	c.log.Info("✅ 对局已结算", zap.String("winner", settlement.Winner))

	c.store.reset()
	c.colors.Reset()
	c.progress = make(map[string]*joinProgress)
	c.payoutTx, c.payoutNonce = "", nil
	return nil
}

// Refresh 手动重新拉取地产快照，用于 ErrStaleSnapshot 之后
func (c *Controller) Refresh(ctx context.Context) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()
	return c.refresh(ctx)
}

func (c *Controller) refresh(ctx context.Context) error {
	props, err := c.api.Properties(ctx)
	if err != nil {
		c.store.markStale()
		return fmt.Errorf("%w: %w", ErrStaleSnapshot, err)
	}
	if len(props) != c.cfg.Board.Size() {
		c.log.Warn("地产数量与棋盘格子数不一致", zap.Int("properties", len(props)), zap.Int("board", c.cfg.Board.Size()))
	}
	if !c.store.replaceProperties(props) {
		return ErrClosed
	}
	return nil
}

// refreshQuietly 用于结算阶段：快照失败不应掩盖分账结果
func (c *Controller) refreshQuietly(ctx context.Context) {
	if err := c.refresh(ctx); err != nil {
		c.log.Warn("结算后刷新地产失败", zap.Error(err))
	}
}

func newSettlement(resp *dto.EndResponse) (Settlement, error) {
	s := Settlement{Winner: resp.Winner, Payouts: make([]Payout, 0, len(resp.USDTPayouts))}
	for _, p := range resp.USDTPayouts {
		if p.USDT < 0 {
			return Settlement{}, fmt.Errorf("%w: 分账金额为负 %s", ErrBadResponse, p.WalletAddr)
		}
		s.Payouts = append(s.Payouts, Payout{WalletAddr: p.WalletAddr, USDT: decimal.NewFromFloat(p.USDT)})
	}
	return s, nil
}

// rejection 后端 4xx 视为业务拒绝，其余错误原样返回
func rejection(kind, err error) error {
	var apiErr *gameapi.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return err
}
