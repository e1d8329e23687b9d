// Package gameapi 是后端 REST 接口的无状态封装，每个方法对应一个接口，不做任何重试。
package gameapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go-monopoly/dto"
	"go-monopoly/utils"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// APIError 非 2xx 响应或网络失败；网络失败时 StatusCode 为 0
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("后端请求失败: %s", e.Message)
	}
	return fmt.Sprintf("后端返回 %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	http     *resty.Client
	secret   []byte
	operator string
	log      *zap.Logger
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithOperator 调用 /end 时附带运营方令牌
func WithOperator(secret []byte, operator string) Option {
	return func(c *Client) {
		c.secret = secret
		c.operator = operator
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json"),
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Join(ctx context.Context, req dto.JoinRequest) (*dto.PlayerResponse, error) {
	var out dto.PlayerResponse
	if err := c.do(ctx, c.http.R(), http.MethodPost, "/join", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Properties(ctx context.Context) ([]dto.PropertyResponse, error) {
	var out []dto.PropertyResponse
	if err := c.do(ctx, c.http.R(), http.MethodGet, "/properties", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Roll(ctx context.Context, playerID string) (*dto.RollResponse, error) {
	var out dto.RollResponse
	if err := c.do(ctx, c.http.R(), http.MethodPost, "/roll", dto.RollRequest{PlayerID: playerID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Buy(ctx context.Context, playerID string, index int) (*dto.TradeResponse, error) {
	var out dto.TradeResponse
	req := dto.TradeRequest{PlayerID: playerID, PropertyIdx: index}
	if err := c.do(ctx, c.http.R(), http.MethodPost, "/buy", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Sell(ctx context.Context, playerID string, index int) (*dto.TradeResponse, error) {
	var out dto.TradeResponse
	req := dto.TradeRequest{PlayerID: playerID, PropertyIdx: index}
	if err := c.do(ctx, c.http.R(), http.MethodPost, "/sell", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) End(ctx context.Context) (*dto.EndResponse, error) {
	r := c.http.R()
	if len(c.secret) > 0 {
		token, err := utils.GenerateOperatorToken(c.secret, c.operator)
		if err != nil {
			return nil, fmt.Errorf("生成运营方令牌失败: %w", err)
		}
		r.SetAuthToken(token)
	}
	var out dto.EndResponse
	if err := c.do(ctx, r, http.MethodPost, "/end", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, r *resty.Request, method, path string, body, out interface{}) error {
	var apiErr dto.ErrorResponse
	r.SetContext(ctx).SetResult(out).SetError(&apiErr)
	if body != nil {
		r.SetBody(body)
	}

	resp, err := r.Execute(method, path)
	if err != nil {
		c.log.Warn("后端请求失败", zap.String("path", path), zap.Error(err))
		return &APIError{Message: err.Error()}
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		c.log.Info("后端拒绝请求", zap.String("path", path), zap.Int("status", resp.StatusCode()), zap.String("error", msg))
		return &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}
	c.log.Debug("后端请求成功", zap.String("path", path), zap.Duration("elapsed", resp.Time()))
	return nil
}
