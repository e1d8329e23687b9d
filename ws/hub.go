package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"go-monopoly/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientConn 一个界面连接；gorilla 的连接不支持并发写
type clientConn struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *clientConn) send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Hub 把会话快照推给所有界面连接，并把界面操作转交给会话控制器
type Hub struct {
	log     *zap.Logger
	intents Intents

	mu    sync.Mutex
	conns map[string]*clientConn
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, conns: make(map[string]*clientConn)}
}

// Bind 控制器的 OnChange 需要先拿到 Hub，所以分两步装配
func (h *Hub) Bind(intents Intents) {
	h.intents = intents
}

// 构建一条统一格式的消息（type + data）
func buildMessage(msgType string, data map[string]interface{}) []byte {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["type"] = msgType // 加入消息类型字段
	msg, _ := json.Marshal(data)
	return msg
}

// Broadcast 推送快照给所有连接，写失败的连接直接移除
func (h *Hub) Broadcast(v session.View) {
	msg := buildMessage("snapshot", map[string]interface{}{"data": v})

	h.mu.Lock()
	targets := make([]*clientConn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.send(msg); err != nil {
			h.log.Warn("广播失败，移除连接", zap.String("conn", c.id), zap.Error(err))
			h.remove(c)
			c.conn.Close()
		}
	}
}

func (h *Hub) add(c *clientConn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
	return len(h.conns)
}

func (h *Hub) remove(c *clientConn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
}

// HandleWebSocket WebSocket 主入口（处理每个连接）
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket 升级失败", zap.Error(err))
		return
	}
	defer conn.Close()

	client := &clientConn{id: uuid.New().String(), conn: conn}
	count := h.add(client)
	defer h.remove(client)
	h.log.Info("界面连接", zap.String("conn", client.id), zap.Int("connections", count))

	// 连接后先同步一次完整快照
	if !h.reply(client, buildMessage("init", map[string]interface{}{"connId": client.id})) {
		return
	}
	if h.intents != nil {
		if !h.reply(client, buildMessage("snapshot", map[string]interface{}{"data": h.intents.Snapshot()})) {
			return
		}
	}

	h.listen(c.Request.Context(), client)
	h.log.Info("界面断开", zap.String("conn", client.id))
}

// listen 持续读取界面发来的操作，结果只回给发起的连接，状态变化由 Broadcast 推送。
// 每个操作在单独的 goroutine 中执行，读循环不等待；重叠的操作由控制器以 ErrBusy 拒绝。
func (h *Hub) listen(ctx context.Context, client *clientConn) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, msg, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		msgMap := make(map[string]interface{})
		if err := json.Unmarshal(msg, &msgMap); err != nil {
			if !h.reply(client, buildMessage("error", map[string]interface{}{"message": "消息解析失败"})) {
				return
			}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.reply(client, h.dispatch(ctx, msgMap))
		}()
	}
}

// reply 写失败时关闭连接，读循环随之退出
func (h *Hub) reply(client *clientConn, msg []byte) bool {
	if err := client.send(msg); err != nil {
		h.log.Warn("回复失败，关闭连接", zap.String("conn", client.id), zap.Error(err))
		client.conn.Close()
		return false
	}
	return true
}
