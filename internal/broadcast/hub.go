package broadcast

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/han-fei/hostguard/internal/config"
	"github.com/han-fei/hostguard/internal/models"
)

const (
	pingInterval = 30 * time.Second
	pongTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// wsClient WebSocket客户端连接
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	mu     sync.Mutex
	closed bool
}

// Hub WebSocket广播中心
// 所有连上来的客户端都会收到每条告警事件
type Hub struct {
	cfg        config.WebSocketConfig
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	upgrader   websocket.Upgrader
	stopChan   chan struct{}
	mu         sync.RWMutex
}

// NewHub 创建WebSocket广播中心
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		cfg:        cfg,
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, cfg.BufferSize),
		stopChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有来源，生产环境应该限制
			},
		},
	}
}

// Start 启动广播主循环
func (h *Hub) Start() {
	go h.run()
}

// Stop 停止广播中心并断开全部客户端
func (h *Hub) Stop() {
	close(h.stopChan)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.close()
	}
}

// HandleWebSocket 处理WebSocket连接升级
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("升级WebSocket连接失败: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, h.cfg.BufferSize),
		hub:  h,
	}

	// 停机后主循环不再收新客户端，直接断开
	select {
	case h.register <- client:
	case <-h.stopChan:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// BroadcastAlert 向所有客户端广播告警事件
func (h *Hub) BroadcastAlert(ctx context.Context, event models.AlertEvent) error {
	message := map[string]interface{}{
		"type": "alert",
		"data": event,
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.stopChan:
		return nil
	}
}

// run 广播主循环
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("客户端已连接，当前连接数: %d", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("客户端已断开，当前连接数: %d", count)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
					// 成功发送
				default:
					// 客户端缓冲区已满，关闭连接
					client.close()
				}
			}
			h.mu.RUnlock()

		case <-h.stopChan:
			return
		}
	}
}

// readPump 读取客户端消息，只用于感知断连
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopChan:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("读取WebSocket消息错误: %v", err)
			}
			break
		}
		// 目前不处理客户端消息
	}
}

// writePump 发送消息到客户端
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// 通道已关闭
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// 将队列中的所有消息添加到当前WebSocket消息中
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.mu.Unlock()
				c.close()
				return
			}
			c.mu.Unlock()
		}
	}
}

// close 关闭客户端连接
func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.conn.Close()
}
