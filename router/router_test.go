package router_test

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-monopoly/board"
	"go-monopoly/chain"
	"go-monopoly/controller"
	"go-monopoly/dto"
	"go-monopoly/gameapi"
	"go-monopoly/router"
	"go-monopoly/service"
	"go-monopoly/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// walletStub 链上操作全部立即成功
type walletStub struct {
	account     string
	distributed []*big.Int
}

func (w *walletStub) Account() string { return w.account }
func (w *walletStub) Escrow() string  { return "0x2222222222222222222222222222222222222222" }
func (w *walletStub) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (w *walletStub) Approve(ctx context.Context, spender string, amount *big.Int) error { return nil }
func (w *walletStub) JoinGame(ctx context.Context, amount *big.Int) error               { return nil }
func (w *walletStub) Distribute(ctx context.Context, addresses []string, shares []*big.Int) error {
	w.distributed = append(w.distributed, shares...)
	return nil
}
func (w *walletStub) Nonce(ctx context.Context) (uint64, error) { return 0, nil }
func (w *walletStub) TxStatus(ctx context.Context, hash string) (chain.TxStatus, error) {
	return chain.TxSucceeded, nil
}

func joinReq(id string) dto.JoinRequest {
	return dto.JoinRequest{PlayerID: id, USDTAmount: 3, WalletAddr: id}
}

func newSandbox(t *testing.T, g *board.Geometry, secret []byte) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	games := service.NewGameService(rdb, service.Options{BoardSize: g.Size(), Seed: 7})
	r := gin.New()
	router.InitRouter(r, controller.NewGameController(games, zap.NewNop()), secret)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestSessionAgainstSandbox(t *testing.T) {
	g, err := board.FromDimensions(board.Classic)
	require.NoError(t, err)
	secret := []byte("operator-secret")
	api := gameapi.New(newSandbox(t, g, secret), gameapi.WithOperator(secret, "ops"))

	wallet := &walletStub{}
	ctrl, err := session.NewController(wallet, api, session.Config{Board: g})
	require.NoError(t, err)
	defer ctrl.Close()
	ctx := context.Background()

	for _, acct := range []string{"0x000000000000000000000000000000000000000a", "0x000000000000000000000000000000000000000b"} {
		wallet.account = acct
		require.NoError(t, ctrl.Join(ctx, decimal.NewFromInt(3)))
	}
	v := ctrl.Snapshot()
	require.Len(t, v.Players, 2)
	assert.Len(t, v.Properties, g.Size())

	_, err = ctrl.Roll(ctx)
	require.NoError(t, err)
	price, err := ctrl.Buy(ctx)
	require.NoError(t, err)

	v = ctrl.Snapshot()
	first := v.Players[0]
	assert.Equal(t, int64(2400)-price, first.GameCoins)
	assert.Equal(t, []int{first.Position}, first.OwnedProperties)
	assert.Equal(t, first.ID, v.Properties[first.Position].OwnerID)

	require.NoError(t, ctrl.NextTurn())
	_, err = ctrl.Roll(ctx)
	require.NoError(t, err)
	require.NoError(t, ctrl.NextTurn())
	assert.Equal(t, 2, ctrl.Snapshot().Round)

	settlement, err := ctrl.End(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x000000000000000000000000000000000000000b", settlement.Winner)

	total := new(big.Int)
	for _, share := range wallet.distributed {
		total.Add(total, share)
	}
	assert.LessOrEqual(t, total.Int64(), int64(4_800_000))
	assert.Greater(t, total.Int64(), int64(4_799_990))
	assert.Equal(t, session.PhaseIdle, ctrl.Snapshot().Phase)
}

func TestEndRequiresOperatorToken(t *testing.T) {
	g, err := board.FromDimensions(board.Classic)
	require.NoError(t, err)
	base := newSandbox(t, g, []byte("operator-secret"))

	_, err = gameapi.New(base).Join(context.Background(), joinReq("0x01"))
	require.NoError(t, err)

	_, err = gameapi.New(base).End(context.Background())
	var apiErr *gameapi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	res, err := gameapi.New(base, gameapi.WithOperator([]byte("operator-secret"), "ops")).End(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0x01", res.Winner)
}

func TestRejectionsAreBadRequests(t *testing.T) {
	g, err := board.FromDimensions(board.Classic)
	require.NoError(t, err)
	api := gameapi.New(newSandbox(t, g, nil))
	ctx := context.Background()

	req := joinReq("0x01")
	req.USDTAmount = 2
	_, err = api.Join(ctx, req)
	var apiErr *gameapi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "Minimum stake")

	_, err = api.Roll(ctx, "ghost")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Player not found", apiErr.Message)
}
