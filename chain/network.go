package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Network 自动添加网络时提交给钱包的描述，固定不可配置
type Network struct {
	ChainID     *big.Int
	Name        string
	RPCURL      string
	Currency    NativeCurrency
	ExplorerURL string
}

var ReddioDevnet = Network{
	ChainID:     big.NewInt(50341),
	Name:        "Reddio Devnet",
	RPCURL:      "https://reddio-dev.reddio.com",
	Currency:    NativeCurrency{Name: "Reddio", Symbol: "RED", Decimals: 18},
	ExplorerURL: "https://reddio-devnet.l2scan.co",
}

type ConnState string

const (
	StateUnconnected     ConnState = "unconnected"
	StateSwitchRequested ConnState = "switch_requested"
	StateAddRequested    ConnState = "add_requested"
	StateConnected       ConnState = "connected"
)

type switchChainParams struct {
	ChainID string `json:"chainId"`
}

type addChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls"`
}

// Connect 获取当前账户并确保钱包处于游戏网络。
// 切换失败且钱包不认识该网络时，添加一次网络后再切换一次；其余失败都返回 ErrChainMismatch。
func (c *Client) Connect(ctx context.Context) (string, error) {
	var accounts []string
	if err := c.provider.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return "", fmt.Errorf("获取钱包账户失败: %w", err)
	}
	if len(accounts) == 0 {
		return "", ErrNoAccount
	}

	state := StateUnconnected
	added := false
	for state != StateConnected {
		c.setState(state)
		switch state {
		case StateUnconnected:
			ok, err := c.onGameNetwork(ctx)
			if err != nil {
				return "", err
			}
			if ok {
				state = StateConnected
				continue
			}
			state = StateSwitchRequested

		case StateSwitchRequested:
			err := c.provider.CallContext(ctx, nil, "wallet_switchEthereumChain", switchChainParams{
				ChainID: hexutil.EncodeBig(c.network.ChainID),
			})
			if err != nil {
				if code, ok := rpcErrorCode(err); ok && code == codeUnknownChain && !added {
					state = StateAddRequested
					continue
				}
				c.setState(StateUnconnected)
				return "", fmt.Errorf("%w: 切换网络失败: %v", ErrChainMismatch, err)
			}
			if err := c.requireGameNetwork(ctx); err != nil {
				return "", err
			}
			state = StateConnected

		case StateAddRequested:
			added = true
			err := c.provider.CallContext(ctx, nil, "wallet_addEthereumChain", addChainParams{
				ChainID:           hexutil.EncodeBig(c.network.ChainID),
				ChainName:         c.network.Name,
				NativeCurrency:    c.network.Currency,
				RPCURLs:           []string{c.network.RPCURL},
				BlockExplorerURLs: []string{c.network.ExplorerURL},
			})
			if err != nil {
				c.setState(StateUnconnected)
				return "", fmt.Errorf("%w: 添加网络失败: %v", ErrChainMismatch, err)
			}
			// 部分钱包添加后会自动切换
			ok, err := c.onGameNetwork(ctx)
			if err != nil {
				return "", err
			}
			if ok {
				state = StateConnected
				continue
			}
			state = StateSwitchRequested
		}
	}

	account := common.HexToAddress(accounts[0])
	c.mu.Lock()
	c.account = account
	c.state = StateConnected
	c.mu.Unlock()
	c.log.Info("✅ 钱包已连接", zap.String("account", account.Hex()), zap.String("chainId", c.network.ChainID.String()))
	return account.Hex(), nil
}

func (c *Client) onGameNetwork(ctx context.Context) (bool, error) {
	var id hexutil.Big
	if err := c.provider.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return false, fmt.Errorf("获取网络ID失败: %w", err)
	}
	return (*big.Int)(&id).Cmp(c.network.ChainID) == 0, nil
}

func (c *Client) requireGameNetwork(ctx context.Context) error {
	ok, err := c.onGameNetwork(ctx)
	if err != nil {
		return err
	}
	if !ok {
		c.setState(StateUnconnected)
		return fmt.Errorf("%w: 切换后网络仍不一致", ErrChainMismatch)
	}
	return nil
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
