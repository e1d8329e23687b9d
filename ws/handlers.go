package ws

import (
	"context"
	"fmt"

	"go-monopoly/session"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Intents 由 *session.Controller 实现
type Intents interface {
	Snapshot() session.View
	Join(ctx context.Context, amount decimal.Decimal) error
	Roll(ctx context.Context) (int, error)
	Buy(ctx context.Context) (int64, error)
	Sell(ctx context.Context) (int64, error)
	NextTurn() error
	End(ctx context.Context) (*session.Settlement, error)
	Refresh(ctx context.Context) error
}

// intentMessage 界面发来的操作；amount 可以是字符串或数字
type intentMessage struct {
	Type   string `mapstructure:"type"`
	Amount string `mapstructure:"amount"`
}

type messageHandler func(ctx context.Context, intents Intents, msg intentMessage) (map[string]interface{}, error)

var messageHandlers = map[string]messageHandler{
	"join":      handleJoin,
	"roll":      handleRoll,
	"buy":       handleBuy,
	"sell":      handleSell,
	"next_turn": handleNextTurn,
	"end":       handleEnd,
	"refresh":   handleRefresh,
}

func decodeIntent(msgMap map[string]interface{}) (intentMessage, error) {
	var msg intentMessage
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &msg,
	})
	if err != nil {
		return msg, err
	}
	return msg, decoder.Decode(msgMap)
}

// dispatch 返回要回给发起连接的消息
func (h *Hub) dispatch(ctx context.Context, msgMap map[string]interface{}) []byte {
	msg, err := decodeIntent(msgMap)
	if err != nil {
		return buildMessage("error", map[string]interface{}{"message": fmt.Sprintf("消息格式错误: %v", err)})
	}
	handler, found := messageHandlers[msg.Type]
	if !found {
		h.log.Warn("⚠️ 未知的消息类型", zap.String("type", msg.Type))
		return buildMessage("error", map[string]interface{}{"intent": msg.Type, "message": "未知的消息类型"})
	}
	if h.intents == nil {
		return buildMessage("error", map[string]interface{}{"intent": msg.Type, "message": "会话尚未就绪"})
	}

	data, err := handler(ctx, h.intents, msg)
	if err != nil {
		h.log.Info("操作失败", zap.String("intent", msg.Type), zap.Error(err))
		return buildMessage("error", map[string]interface{}{"intent": msg.Type, "message": err.Error()})
	}
	return buildMessage("result", map[string]interface{}{"intent": msg.Type, "data": data})
}

func handleJoin(ctx context.Context, intents Intents, msg intentMessage) (map[string]interface{}, error) {
	amount, err := decimal.NewFromString(msg.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", session.ErrInvalidAmount, msg.Amount)
	}
	return nil, intents.Join(ctx, amount)
}

func handleRoll(ctx context.Context, intents Intents, msg intentMessage) (map[string]interface{}, error) {
	dice, err := intents.Roll(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"dice": dice}, nil
}

func handleBuy(ctx context.Context, intents Intents, msg intentMessage) (map[string]interface{}, error) {
	price, err := intents.Buy(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"price": price}, nil
}

func handleSell(ctx context.Context, intents Intents, msg intentMessage) (map[string]interface{}, error) {
	refund, err := intents.Sell(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"refund": refund}, nil
}

func handleNextTurn(ctx context.Context, intents Intents, msg intentMessage) (map[string]interface{}, error) {
	return nil, intents.NextTurn()
}

func handleEnd(ctx context.Context, intents Intents, msg intentMessage) (map[string]interface{}, error) {
	settlement, err := intents.End(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"settlement": settlement}, nil
}

func handleRefresh(ctx context.Context, intents Intents, msg intentMessage) (map[string]interface{}, error) {
	return nil, intents.Refresh(ctx)
}
