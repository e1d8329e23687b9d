package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"

	"go-monopoly/chain"
	"go-monopoly/dto"
	"go-monopoly/gameapi"
)

const testEscrow = "0x3333333333333333333333333333333333333333"

type fakeChain struct {
	mu      sync.Mutex
	account string
	calls   []string

	approveErr    []error
	joinErr       []error
	distributeErr []error
	allowance     *big.Int
	txStatus      chain.TxStatus
	nonce         uint64

	distributed [][]*big.Int
}

func (f *fakeChain) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeChain) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeChain) Account() string { return f.account }
func (f *fakeChain) Escrow() string  { return testEscrow }

func (f *fakeChain) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	f.record("allowance")
	if f.allowance == nil {
		return big.NewInt(0), nil
	}
	return f.allowance, nil
}

func (f *fakeChain) Approve(ctx context.Context, spender string, amount *big.Int) error {
	f.record("approve")
	return pop(&f.approveErr)
}

func (f *fakeChain) JoinGame(ctx context.Context, amount *big.Int) error {
	f.record("joinGame")
	return pop(&f.joinErr)
}

func (f *fakeChain) Distribute(ctx context.Context, addresses []string, shares []*big.Int) error {
	f.record("distribute")
	if err := pop(&f.distributeErr); err != nil {
		return err
	}
	f.distributed = append(f.distributed, shares)
	return nil
}

func (f *fakeChain) Nonce(ctx context.Context) (uint64, error) {
	f.record("nonce")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

// unknownSend 模拟 eth_sendTransaction 请求本身超时
func unknownSend(op string) error {
	return fmt.Errorf("%w: %s: %w", chain.ErrOutcomeUnknown, op, errors.New("read tcp: i/o timeout"))
}

func (f *fakeChain) TxStatus(ctx context.Context, hash string) (chain.TxStatus, error) {
	f.record("txStatus")
	return f.txStatus, nil
}

// fakeAPI 一个极简的内存后端，规则与沙盒后端一致
type fakeAPI struct {
	mu         sync.Mutex
	calls      []string
	size       int
	players    map[string]*dto.PlayerResponse
	properties []dto.PropertyResponse
	dice       []int

	joinErr       []error
	rollGate      chan struct{} // 非空时 Roll 阻塞直到关闭
	rollEntered   chan struct{}
	propertiesErr error
	endErr        error
}

func newFakeAPI(size int) *fakeAPI {
	props := make([]dto.PropertyResponse, size)
	for i := range props {
		props[i] = dto.PropertyResponse{Index: i, Price: int64(5 + i%16)}
	}
	return &fakeAPI{size: size, players: map[string]*dto.PlayerResponse{}, properties: props}
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func badRequest(msg string) error {
	return &gameapi.APIError{StatusCode: http.StatusBadRequest, Message: msg}
}

func (f *fakeAPI) Join(ctx context.Context, req dto.JoinRequest) (*dto.PlayerResponse, error) {
	f.record("join")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(&f.joinErr); err != nil {
		return nil, err
	}
	p := &dto.PlayerResponse{
		ID: req.PlayerID, WalletAddr: req.WalletAddr, USDTLocked: req.USDTAmount,
		GameCoins: int64(req.USDTAmount * 0.8 * 1000),
	}
	f.players[p.ID] = p
	out := *p
	return &out, nil
}

func (f *fakeAPI) Properties(ctx context.Context) ([]dto.PropertyResponse, error) {
	f.record("properties")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.propertiesErr != nil {
		return nil, f.propertiesErr
	}
	return append([]dto.PropertyResponse(nil), f.properties...), nil
}

func (f *fakeAPI) Roll(ctx context.Context, playerID string) (*dto.RollResponse, error) {
	f.record("roll")
	if f.rollGate != nil {
		f.rollEntered <- struct{}{}
		<-f.rollGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[playerID]
	if !ok {
		return nil, badRequest("Player not found")
	}
	dice := 1
	if len(f.dice) > 0 {
		dice, f.dice = f.dice[0], f.dice[1:]
	}
	p.Position = (p.Position + dice) % f.size
	return &dto.RollResponse{PlayerID: playerID, Position: p.Position, Dice: dice}, nil
}

func (f *fakeAPI) Buy(ctx context.Context, playerID string, index int) (*dto.TradeResponse, error) {
	f.record("buy")
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.players[playerID]
	prop := &f.properties[index]
	if prop.Owner != "" {
		return nil, badRequest("Property already owned")
	}
	if p.GameCoins < prop.Price {
		return nil, badRequest("Insufficient coins")
	}
	p.GameCoins -= prop.Price
	prop.Owner = playerID
	return &dto.TradeResponse{Price: prop.Price}, nil
}

func (f *fakeAPI) Sell(ctx context.Context, playerID string, index int) (*dto.TradeResponse, error) {
	f.record("sell")
	f.mu.Lock()
	defer f.mu.Unlock()
	prop := &f.properties[index]
	if prop.Owner != playerID {
		return nil, badRequest("You do not own this property")
	}
	f.players[playerID].GameCoins += prop.Price / 2
	prop.Owner = ""
	return &dto.TradeResponse{Price: prop.Price}, nil
}

func (f *fakeAPI) End(ctx context.Context) (*dto.EndResponse, error) {
	f.record("end")
	if f.endErr != nil {
		return nil, f.endErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	res := &dto.EndResponse{}
	var best int64 = -1
	for id, p := range f.players {
		res.USDTPayouts = append(res.USDTPayouts, dto.Payout{WalletAddr: p.WalletAddr, USDT: p.USDTLocked * 0.8})
		if p.GameCoins > best {
			best, res.Winner = p.GameCoins, id
		}
	}
	return res, nil
}

func (f *fakeAPI) setOwner(index int, owner string) {
	f.mu.Lock()
	f.properties[index].Owner = owner
	f.mu.Unlock()
}

func account(n int) string {
	return fmt.Sprintf("0x%040d", n)
}
