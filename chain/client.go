// Package chain 是钱包与托管合约之间的一层薄封装：连接账户、切换网络、授权、质押、分账。
//
// 交易一律通过钱包的 eth_sendTransaction 发出，再轮询回执直到确认或超时。
// 结果未知的交易不会在这里重发，调用方需要先用 TxStatus 或 Nonce 查询链上状态。
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// Provider 钱包/节点的 JSON-RPC 连接，*rpc.Client 满足该接口
type Provider interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

type Options struct {
	TokenAddress   string
	EscrowAddress  string
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Logger         *zap.Logger

	// 仅测试时覆盖，默认 ReddioDevnet
	Network *Network
}

type Client struct {
	provider Provider
	network  Network
	token    common.Address
	escrow   common.Address
	confirm  time.Duration
	poll     time.Duration
	erc20    abi.ABI
	game     abi.ABI
	log      *zap.Logger

	mu      sync.RWMutex
	state   ConnState
	account common.Address
}

type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxSucceeded TxStatus = "succeeded"
	TxReverted  TxStatus = "reverted"
)

func NewClient(provider Provider, opts Options) (*Client, error) {
	if !common.IsHexAddress(opts.TokenAddress) {
		return nil, fmt.Errorf("代币合约地址非法: %q", opts.TokenAddress)
	}
	if !common.IsHexAddress(opts.EscrowAddress) {
		return nil, fmt.Errorf("托管合约地址非法: %q", opts.EscrowAddress)
	}
	erc20, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("解析 ERC20 ABI 失败: %w", err)
	}
	game, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		return nil, fmt.Errorf("解析托管合约 ABI 失败: %w", err)
	}

	c := &Client{
		provider: provider,
		network:  ReddioDevnet,
		token:    common.HexToAddress(opts.TokenAddress),
		escrow:   common.HexToAddress(opts.EscrowAddress),
		confirm:  opts.ConfirmTimeout,
		poll:     opts.PollInterval,
		erc20:    erc20,
		game:     game,
		log:      opts.Logger,
		state:    StateUnconnected,
	}
	if opts.Network != nil {
		c.network = *opts.Network
	}
	if c.confirm <= 0 {
		c.confirm = 2 * time.Minute
	}
	if c.poll <= 0 {
		c.poll = 2 * time.Second
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c, nil
}

// Account 返回已连接账户的地址，未连接时为空
func (c *Client) Account() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateConnected {
		return ""
	}
	return c.account.Hex()
}

// Escrow 托管合约地址，即授权的 spender
func (c *Client) Escrow() string {
	return c.escrow.Hex()
}

func (c *Client) from() (common.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateConnected {
		return common.Address{}, ErrNotConnected
	}
	return c.account, nil
}

// Approve 授权 spender 使用 amount 的质押代币，返回时交易已确认
func (c *Client) Approve(ctx context.Context, spender string, amount *big.Int) error {
	if !common.IsHexAddress(spender) {
		return fmt.Errorf("spender 地址非法: %q", spender)
	}
	data, err := c.erc20.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return fmt.Errorf("编码 approve 失败: %w", err)
	}
	return c.transact(ctx, "approve", c.token, data, ErrStakeRejected)
}

func (c *Client) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	data, err := c.erc20.Pack("allowance", common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, fmt.Errorf("编码 allowance 失败: %w", err)
	}
	var out hexutil.Bytes
	if err := c.provider.CallContext(ctx, &out, "eth_call", callArgs{To: c.token, Data: data}, "latest"); err != nil {
		return nil, fmt.Errorf("查询授权额度失败: %w", err)
	}
	values, err := c.erc20.Unpack("allowance", out)
	if err != nil {
		return nil, fmt.Errorf("解码授权额度失败: %w", err)
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("授权额度类型错误: %T", values[0])
	}
	return amount, nil
}

// JoinGame 把 amount 质押进托管合约
func (c *Client) JoinGame(ctx context.Context, amount *big.Int) error {
	data, err := c.game.Pack("joinGame", amount)
	if err != nil {
		return fmt.Errorf("编码 joinGame 失败: %w", err)
	}
	return c.transact(ctx, "joinGame", c.escrow, data, ErrStakeRejected)
}

// Distribute 按 shares[i] 向 addresses[i] 分账，调用者必须是合约指定的运营方
func (c *Client) Distribute(ctx context.Context, addresses []string, shares []*big.Int) error {
	if len(addresses) == 0 || len(addresses) != len(shares) {
		return fmt.Errorf("%w: 地址数 %d 与金额数 %d 不匹配", ErrPayoutRejected, len(addresses), len(shares))
	}
	to := make([]common.Address, 0, len(addresses))
	for _, addr := range addresses {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%w: 地址非法 %q", ErrPayoutRejected, addr)
		}
		to = append(to, common.HexToAddress(addr))
	}
	data, err := c.game.Pack("distribute", to, shares)
	if err != nil {
		return fmt.Errorf("编码 distribute 失败: %w", err)
	}
	return c.transact(ctx, "distribute", c.escrow, data, ErrPayoutRejected)
}

// Nonce 账户的 pending nonce。发送结果未知时，比较发送前后的 nonce 判断交易是否已广播。
func (c *Client) Nonce(ctx context.Context) (uint64, error) {
	from, err := c.from()
	if err != nil {
		return 0, err
	}
	var n hexutil.Uint64
	if err := c.provider.CallContext(ctx, &n, "eth_getTransactionCount", from, "pending"); err != nil {
		return 0, fmt.Errorf("查询账户 nonce 失败: %w", err)
	}
	return uint64(n), nil
}

// TxStatus 查询交易当前状态，没有回执视为仍在等待
func (c *Client) TxStatus(ctx context.Context, hash string) (TxStatus, error) {
	r, err := c.receipt(ctx, common.HexToHash(hash))
	if err != nil {
		return "", err
	}
	if r == nil {
		return TxPending, nil
	}
	if r.Status == 0 {
		return TxReverted, nil
	}
	return TxSucceeded, nil
}

type callArgs struct {
	From *common.Address `json:"from,omitempty"`
	To   common.Address  `json:"to"`
	Data hexutil.Bytes   `json:"data"`
}

type receipt struct {
	TxHash      common.Hash    `json:"transactionHash"`
	Status      hexutil.Uint64 `json:"status"`
	BlockNumber *hexutil.Big   `json:"blockNumber"`
}

func (c *Client) transact(ctx context.Context, op string, to common.Address, data []byte, rejected error) error {
	from, err := c.from()
	if err != nil {
		return err
	}

	var hash common.Hash
	err = c.provider.CallContext(ctx, &hash, "eth_sendTransaction", callArgs{From: &from, To: to, Data: data})
	if err != nil {
		// 钱包或节点明确拒绝，交易没有发出
		if code, ok := rpcErrorCode(err); ok {
			if code == codeUserRejected {
				c.log.Info("用户取消交易", zap.String("op", op))
				return fmt.Errorf("%w: %w: %s", rejected, ErrUserRejected, op)
			}
			return fmt.Errorf("%w: %s: %v", rejected, op, err)
		}
		c.log.Warn("⚠️ 发送交易失败，结果未知", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrOutcomeUnknown, op, err)
	}
	c.log.Info("交易已提交", zap.String("op", op), zap.String("tx", hash.Hex()))

	r, err := c.waitMined(ctx, hash)
	if err != nil {
		return &TxError{Op: op, Hash: hash, Err: err}
	}
	if r.Status == 0 {
		c.log.Warn("❌ 交易被回滚", zap.String("op", op), zap.String("tx", hash.Hex()))
		return &TxError{Op: op, Hash: hash, Err: rejected}
	}
	c.log.Info("✅ 交易已确认", zap.String("op", op), zap.String("tx", hash.Hex()))
	return nil
}

func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.confirm)
	defer cancel()

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		r, err := c.receipt(ctx, hash)
		if err != nil && ctx.Err() == nil {
			c.log.Debug("查询回执失败，继续等待", zap.String("tx", hash.Hex()), zap.Error(err))
		}
		if r != nil {
			return r, nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrChainTimeout
			}
			return nil, fmt.Errorf("%w: %v", ErrChainTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) receipt(ctx context.Context, hash common.Hash) (*receipt, error) {
	var r *receipt
	if err := c.provider.CallContext(ctx, &r, "eth_getTransactionReceipt", hash); err != nil {
		return nil, fmt.Errorf("查询交易回执失败: %w", err)
	}
	return r, nil
}
