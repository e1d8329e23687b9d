package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrChainMismatch  = errors.New("钱包网络与游戏网络不一致")
	ErrChainTimeout   = errors.New("等待链上确认超时")
	ErrStakeRejected  = errors.New("质押被合约拒绝")
	ErrPayoutRejected = errors.New("分账被合约拒绝")
	ErrNoAccount      = errors.New("钱包没有可用账户")
	ErrNotConnected   = errors.New("钱包未连接")
	ErrUserRejected   = errors.New("用户在钱包中取消了交易")
	// 发送请求本身失败（超时、连接断开），交易可能已广播，也可能没有
	ErrOutcomeUnknown = errors.New("交易发送结果未知")
)

// 钱包相关的错误码（EIP-1193 / EIP-3085）
const (
	codeUserRejected = 4001
	codeUnknownChain = 4902
)

// TxError 携带已提交交易的哈希，调用方可据此查询链上结果
type TxError struct {
	Op   string
	Hash common.Hash
	Err  error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("%s (tx %s): %v", e.Op, e.Hash.Hex(), e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }

// PendingHash 从错误中取出结果未知的交易哈希
func PendingHash(err error) (common.Hash, bool) {
	var txErr *TxError
	if errors.As(err, &txErr) && errors.Is(err, ErrChainTimeout) {
		return txErr.Hash, true
	}
	return common.Hash{}, false
}

func rpcErrorCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}
